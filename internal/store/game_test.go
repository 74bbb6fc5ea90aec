package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGameCRUD(t *testing.T) {
	gs := NewGameStore(setupTestDB(t))
	ctx := context.Background()

	g, err := gs.Create(ctx, "treasure-hunt", "Treasure Hunt", "Find hidden treasures", true)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if g.Name != "Treasure Hunt" || !g.IsActive {
		t.Errorf("game = %+v", g)
	}

	byCode, err := gs.GetByCode(ctx, "treasure-hunt")
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if byCode.ID != g.ID {
		t.Errorf("id = %q, want %q", byCode.ID, g.ID)
	}

	updated, err := gs.Update(ctx, g.ID, "Treasure Hunt 2", "Harder")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Treasure Hunt 2" {
		t.Errorf("name = %q, want %q", updated.Name, "Treasure Hunt 2")
	}

	toggled, err := gs.SetActive(ctx, g.ID, false)
	if err != nil {
		t.Fatalf("set active: %v", err)
	}
	if toggled.IsActive {
		t.Error("expected inactive")
	}

	if err := gs.Delete(ctx, g.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := gs.GetByID(ctx, g.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := gs.Delete(ctx, g.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestGameDuplicateCode(t *testing.T) {
	gs := NewGameStore(setupTestDB(t))
	ctx := context.Background()

	gs.Create(ctx, "quiz", "Quiz", "", true)
	if _, err := gs.Create(ctx, "quiz", "Quiz Again", "", true); !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestGameListActiveOrdering(t *testing.T) {
	gs := NewGameStore(setupTestDB(t))
	ctx := context.Background()

	first, _ := gs.Create(ctx, "zebra", "Zebra", "", true)
	time.Sleep(2 * time.Millisecond)
	gs.Create(ctx, "inactive", "Inactive", "", false)
	time.Sleep(2 * time.Millisecond)
	third, _ := gs.Create(ctx, "alpha", "Alpha", "", true)

	active, err := gs.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active games, got %d", len(active))
	}
	// Creation order, not name order.
	if active[0].ID != first.ID || active[1].ID != third.ID {
		t.Errorf("order = [%s %s], want [%s %s]", active[0].Name, active[1].Name, first.Name, third.Name)
	}

	all, err := gs.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 games, got %d", len(all))
	}
}

func TestGameUnflaggedReadsAsActive(t *testing.T) {
	db := setupTestDB(t)
	gs := NewGameStore(db)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO games (id, code, name, created_at) VALUES ('legacy', 'legacy', 'Legacy Booth', ?)`, time.Now().UTC())
	if err != nil {
		t.Fatalf("insert legacy game: %v", err)
	}

	active, _ := gs.ListActive(ctx)
	if len(active) != 0 {
		t.Errorf("flag-filtered list should skip legacy rows, got %d", len(active))
	}

	legacy, err := gs.ListUnflagged(ctx)
	if err != nil {
		t.Fatalf("list unflagged: %v", err)
	}
	if len(legacy) != 1 || !legacy[0].IsActive {
		t.Errorf("legacy = %+v, want one implicitly active game", legacy)
	}
}

func TestHostCRUD(t *testing.T) {
	db := setupTestDB(t)
	hs := NewHostStore(db)
	gs := NewGameStore(db)
	ctx := context.Background()

	g, _ := gs.Create(ctx, "quiz", "Quiz", "", true)
	h, err := hs.Create(ctx, "Alice Johnson", g.ID, true)
	if err != nil {
		t.Fatalf("create host: %v", err)
	}
	if h.GameID != g.ID || !h.IsActive {
		t.Errorf("host = %+v", h)
	}

	byGame, err := hs.ListByGame(ctx, g.ID)
	if err != nil {
		t.Fatalf("list by game: %v", err)
	}
	if len(byGame) != 1 {
		t.Fatalf("expected 1 host, got %d", len(byGame))
	}

	off, err := hs.SetActive(ctx, h.ID, false)
	if err != nil {
		t.Fatalf("set active: %v", err)
	}
	if off.IsActive {
		t.Error("expected inactive host")
	}

	if err := hs.Delete(ctx, h.ID); err != nil {
		t.Fatalf("delete host: %v", err)
	}
	if _, err := hs.GetByID(ctx, h.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
