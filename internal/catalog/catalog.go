// Package catalog manages the game catalog and the hosts that run each game.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/stampcard/internal/model"
	"github.com/dukerupert/stampcard/internal/store"
	"github.com/gosimple/slug"
)

// maxCodeAttempts bounds the suffix search when a slug collides.
const maxCodeAttempts = 20

type Catalog struct {
	games  *store.GameStore
	hosts  *store.HostStore
	logger *slog.Logger
}

func New(games *store.GameStore, hosts *store.HostStore, logger *slog.Logger) *Catalog {
	return &Catalog{games: games, hosts: hosts, logger: logger}
}

// ListActive returns the games that currently count toward a full card,
// ordered by creation. When no game carries an explicit active flag the
// legacy unflagged rows are returned instead.
func (c *Catalog) ListActive(ctx context.Context) ([]model.Game, error) {
	games, err := c.games.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(games) > 0 {
		return games, nil
	}

	legacy, err := c.games.ListUnflagged(ctx)
	if err != nil {
		return nil, err
	}
	if len(legacy) > 0 {
		c.logger.Warn("no flagged active games, using unflagged catalog", "count", len(legacy))
	}
	return legacy, nil
}

func (c *Catalog) ListAll(ctx context.Context) ([]model.Game, error) {
	return c.games.List(ctx)
}

// GetGame looks a game up by id, falling back to its code.
func (c *Catalog) GetGame(ctx context.Context, ref string) (*model.Game, error) {
	g, err := c.games.GetByID(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return c.games.GetByCode(ctx, ref)
	}
	return g, err
}

// CreateGame derives the game code from its name. If the slug is taken a
// numeric suffix is appended.
func (c *Catalog) CreateGame(ctx context.Context, name, description string, active bool) (*model.Game, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("create game: name is required: %w", store.ErrMalformed)
	}
	base := slug.Make(name)
	if base == "" {
		base = "game"
	}

	code := base
	for i := 2; i <= maxCodeAttempts+1; i++ {
		g, err := c.games.Create(ctx, code, name, strings.TrimSpace(description), active)
		if err == nil {
			c.logger.Info("game created", "id", g.ID, "code", g.Code, "active", g.IsActive)
			return g, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		code = fmt.Sprintf("%s-%d", base, i)
	}
	return nil, fmt.Errorf("create game %q: no free code: %w", name, store.ErrConflict)
}

func (c *Catalog) UpdateGame(ctx context.Context, id, name, description string) (*model.Game, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("update game: name is required: %w", store.ErrMalformed)
	}
	return c.games.Update(ctx, id, name, strings.TrimSpace(description))
}

func (c *Catalog) SetGameActive(ctx context.Context, id string, active bool) (*model.Game, error) {
	g, err := c.games.SetActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	c.logger.Info("game activation changed", "id", id, "active", active)
	return g, nil
}

// DeleteGame removes the game and its hosts. Participants keep any
// completion already credited for it.
func (c *Catalog) DeleteGame(ctx context.Context, id string) error {
	hosts, err := c.hosts.ListByGame(ctx, id)
	if err != nil {
		return err
	}
	if err := c.games.Delete(ctx, id); err != nil {
		return err
	}
	for _, h := range hosts {
		if err := c.hosts.Delete(ctx, h.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	c.logger.Info("game deleted", "id", id, "hosts_removed", len(hosts))
	return nil
}

func (c *Catalog) CreateHost(ctx context.Context, name, gameID string) (*model.GameHost, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("create host: name is required: %w", store.ErrMalformed)
	}
	if _, err := c.games.GetByID(ctx, gameID); err != nil {
		return nil, err
	}
	return c.hosts.Create(ctx, name, gameID, true)
}

func (c *Catalog) GetHost(ctx context.Context, id string) (*model.GameHost, error) {
	return c.hosts.GetByID(ctx, id)
}

// ListHosts returns every host, or only those of gameID when it is set.
func (c *Catalog) ListHosts(ctx context.Context, gameID string) ([]model.GameHost, error) {
	if gameID != "" {
		return c.hosts.ListByGame(ctx, gameID)
	}
	return c.hosts.List(ctx)
}

func (c *Catalog) SetHostActive(ctx context.Context, id string, active bool) (*model.GameHost, error) {
	return c.hosts.SetActive(ctx, id, active)
}

func (c *Catalog) DeleteHost(ctx context.Context, id string) error {
	return c.hosts.Delete(ctx, id)
}

// HostForGame returns the first active host assigned to gameID.
func (c *Catalog) HostForGame(ctx context.Context, gameID string) (*model.GameHost, error) {
	hosts, err := c.hosts.ListByGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	for i := range hosts {
		if hosts[i].IsActive {
			return &hosts[i], nil
		}
	}
	return nil, fmt.Errorf("host for game %s: %w", gameID, store.ErrNotFound)
}
