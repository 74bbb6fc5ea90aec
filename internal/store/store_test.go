package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dukerupert/stampcard/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustCreateParticipant(t *testing.T, ps *ParticipantStore, staffID, lastName string) string {
	t.Helper()
	p, err := ps.Create(context.Background(), staffID, lastName)
	if err != nil {
		t.Fatalf("create participant: %v", err)
	}
	return p.ID
}
