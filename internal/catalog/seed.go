package catalog

import (
	"context"
	"fmt"
)

type sampleGame struct {
	name        string
	description string
	host        string
}

var sampleGames = []sampleGame{
	{"Treasure Hunt", "Find hidden items around the venue", "Alice Johnson"},
	{"Photo Challenge", "Take creative photos with your team", "Bob Smith"},
	{"Quiz Master", "Test your company knowledge", "Carol Davis"},
	{"Team Building", "Collaborate on a group puzzle", "David Wilson"},
	{"Speed Networking", "Meet five new colleagues", "Emma Brown"},
	{"Innovation Lab", "Pitch an idea in sixty seconds", "Frank Miller"},
}

// SeedResult reports what SeedSample created.
type SeedResult struct {
	Games   int  `json:"games"`
	Hosts   int  `json:"hosts"`
	Skipped bool `json:"skipped"`
}

// SeedSample loads a demo catalog of six active games, one host each. It
// does nothing when any game already exists.
func (c *Catalog) SeedSample(ctx context.Context) (*SeedResult, error) {
	existing, err := c.games.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &SeedResult{Skipped: true}, nil
	}

	res := &SeedResult{}
	for _, s := range sampleGames {
		g, err := c.CreateGame(ctx, s.name, s.description, true)
		if err != nil {
			return res, fmt.Errorf("seed game %q: %w", s.name, err)
		}
		res.Games++
		if _, err := c.hosts.Create(ctx, s.host, g.ID, true); err != nil {
			return res, fmt.Errorf("seed host %q: %w", s.host, err)
		}
		res.Hosts++
	}
	c.logger.Info("sample catalog seeded", "games", res.Games, "hosts", res.Hosts)
	return res, nil
}
