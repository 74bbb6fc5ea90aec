package catalog

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/stampcard/internal/database"
	"github.com/dukerupert/stampcard/internal/store"
)

func setupCatalog(t *testing.T) (*Catalog, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store.NewGameStore(db), store.NewHostStore(db), logger), db
}

func TestCreateGameDerivesCode(t *testing.T) {
	c, _ := setupCatalog(t)
	ctx := context.Background()

	g, err := c.CreateGame(ctx, "  Treasure Hunt ", "find things", true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.Code != "treasure-hunt" {
		t.Errorf("code = %q, want treasure-hunt", g.Code)
	}
	if g.Name != "Treasure Hunt" {
		t.Errorf("name = %q, want trimmed", g.Name)
	}

	dup, err := c.CreateGame(ctx, "Treasure Hunt", "again", true)
	if err != nil {
		t.Fatalf("create duplicate name: %v", err)
	}
	if dup.Code != "treasure-hunt-2" {
		t.Errorf("code = %q, want treasure-hunt-2", dup.Code)
	}

	if _, err := c.CreateGame(ctx, "   ", "", true); !errors.Is(err, store.ErrMalformed) {
		t.Errorf("blank name err = %v, want ErrMalformed", err)
	}
}

func TestGetGameByIDOrCode(t *testing.T) {
	c, _ := setupCatalog(t)
	ctx := context.Background()
	g, _ := c.CreateGame(ctx, "Quiz Master", "", true)

	byID, err := c.GetGame(ctx, g.ID)
	if err != nil || byID.ID != g.ID {
		t.Fatalf("get by id = %v, %v", byID, err)
	}
	byCode, err := c.GetGame(ctx, "quiz-master")
	if err != nil || byCode.ID != g.ID {
		t.Fatalf("get by code = %v, %v", byCode, err)
	}
	if _, err := c.GetGame(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}
}

func TestListActive(t *testing.T) {
	c, _ := setupCatalog(t)
	ctx := context.Background()

	games, err := c.ListActive(ctx)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(games) != 0 {
		t.Errorf("empty catalog len = %d, want 0", len(games))
	}

	a, _ := c.CreateGame(ctx, "A", "", true)
	c.CreateGame(ctx, "B", "", false)
	cg, _ := c.CreateGame(ctx, "C", "", true)

	games, err = c.ListActive(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(games) != 2 || games[0].ID != a.ID || games[1].ID != cg.ID {
		t.Errorf("active = %+v, want [A C]", games)
	}

	if _, err := c.SetGameActive(ctx, a.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	games, _ = c.ListActive(ctx)
	if len(games) != 1 || games[0].ID != cg.ID {
		t.Errorf("after deactivate = %+v, want [C]", games)
	}
}

func TestListActiveFallsBackToUnflagged(t *testing.T) {
	c, db := setupCatalog(t)
	ctx := context.Background()

	// A catalog with only an explicitly inactive game and no flagged active
	// ones falls back to nothing rather than the inactive game.
	c.CreateGame(ctx, "Off", "", false)
	list, _ := c.ListActive(ctx)
	if len(list) != 0 {
		t.Errorf("inactive only len = %d, want 0", len(list))
	}

	_, err := db.Exec(`INSERT INTO games (id, code, name, created_at) VALUES ('legacy', 'legacy', 'Legacy', ?)`, time.Now().UTC())
	if err != nil {
		t.Fatalf("insert legacy game: %v", err)
	}

	list, err = c.ListActive(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "legacy" {
		t.Errorf("fallback = %+v, want [legacy]", list)
	}
}

func TestHosts(t *testing.T) {
	c, _ := setupCatalog(t)
	ctx := context.Background()
	g, _ := c.CreateGame(ctx, "Photo Challenge", "", true)

	if _, err := c.CreateHost(ctx, "Bob", "missing-game"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("host for missing game err = %v, want ErrNotFound", err)
	}

	h, err := c.CreateHost(ctx, "Bob Smith", g.ID)
	if err != nil {
		t.Fatalf("create host: %v", err)
	}
	found, err := c.HostForGame(ctx, g.ID)
	if err != nil || found.ID != h.ID {
		t.Fatalf("host for game = %v, %v", found, err)
	}

	if _, err := c.SetHostActive(ctx, h.ID, false); err != nil {
		t.Fatalf("deactivate host: %v", err)
	}
	if _, err := c.HostForGame(ctx, g.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("inactive host err = %v, want ErrNotFound", err)
	}

	if err := c.DeleteGame(ctx, g.ID); err != nil {
		t.Fatalf("delete game: %v", err)
	}
	hosts, _ := c.ListHosts(ctx, "")
	if len(hosts) != 0 {
		t.Errorf("hosts after game delete = %d, want 0", len(hosts))
	}
}

func TestSeedSample(t *testing.T) {
	c, _ := setupCatalog(t)
	ctx := context.Background()

	res, err := c.SeedSample(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if res.Games != 6 || res.Hosts != 6 || res.Skipped {
		t.Errorf("seed = %+v, want 6 games 6 hosts", res)
	}
	active, _ := c.ListActive(ctx)
	if len(active) != 6 {
		t.Errorf("active = %d, want 6", len(active))
	}
	if active[0].Code != "treasure-hunt" {
		t.Errorf("first code = %q, want treasure-hunt", active[0].Code)
	}

	again, err := c.SeedSample(ctx)
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if !again.Skipped {
		t.Error("second seed should be skipped")
	}
}
