package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/stampcard/internal/model"
	"github.com/google/uuid"
)

type HostStore struct {
	db *sql.DB
}

func NewHostStore(db *sql.DB) *HostStore {
	return &HostStore{db: db}
}

const hostCols = `id, name, game_id, is_active, created_at`

func scanHost(scanner interface{ Scan(...any) error }) (*model.GameHost, error) {
	var h model.GameHost
	var active int
	if err := scanner.Scan(&h.ID, &h.Name, &h.GameID, &active, &h.CreatedAt); err != nil {
		return nil, err
	}
	h.IsActive = active != 0
	return &h, nil
}

func (s *HostStore) Create(ctx context.Context, name, gameID string, active bool) (*model.GameHost, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO game_hosts (id, name, game_id, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, gameID, boolInt(active), time.Now().UTC(),
	)
	if err != nil {
		return nil, dbError("insert game host", err)
	}
	return s.GetByID(ctx, id)
}

func (s *HostStore) GetByID(ctx context.Context, id string) (*model.GameHost, error) {
	h, err := scanHost(s.db.QueryRowContext(ctx, `SELECT `+hostCols+` FROM game_hosts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game host %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, dbError("get game host", err)
	}
	return h, nil
}

func (s *HostStore) List(ctx context.Context) ([]model.GameHost, error) {
	return s.query(ctx, `SELECT `+hostCols+` FROM game_hosts ORDER BY created_at ASC, rowid ASC`)
}

func (s *HostStore) ListByGame(ctx context.Context, gameID string) ([]model.GameHost, error) {
	return s.query(ctx, `SELECT `+hostCols+` FROM game_hosts WHERE game_id = ? ORDER BY created_at ASC, rowid ASC`, gameID)
}

func (s *HostStore) query(ctx context.Context, query string, args ...any) ([]model.GameHost, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("list game hosts", err)
	}
	defer rows.Close()

	hosts := []model.GameHost{}
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, dbError("scan game host", err)
		}
		hosts = append(hosts, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate game hosts", err)
	}
	return hosts, nil
}

func (s *HostStore) SetActive(ctx context.Context, id string, active bool) (*model.GameHost, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE game_hosts SET is_active = ? WHERE id = ?`, boolInt(active), id)
	if err != nil {
		return nil, dbError("set game host active", err)
	}
	if err := requireAffected(res, "game host", id); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *HostStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM game_hosts WHERE id = ?`, id)
	if err != nil {
		return dbError("delete game host", err)
	}
	return requireAffected(res, "game host", id)
}
