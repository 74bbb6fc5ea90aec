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

type GameStore struct {
	db *sql.DB
}

func NewGameStore(db *sql.DB) *GameStore {
	return &GameStore{db: db}
}

const gameCols = `id, code, name, description, is_active, created_at`

func scanGame(scanner interface{ Scan(...any) error }) (*model.Game, error) {
	var g model.Game
	var active sql.NullInt64

	err := scanner.Scan(&g.ID, &g.Code, &g.Name, &g.Description, &active, &g.CreatedAt)
	if err != nil {
		return nil, err
	}

	// Legacy rows without the flag count as active.
	g.IsActive = !active.Valid || active.Int64 != 0
	return &g, nil
}

func (s *GameStore) queryGames(ctx context.Context, op, query string, args ...any) ([]model.Game, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError(op, err)
	}
	defer rows.Close()

	games := []model.Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, dbError("scan game", err)
		}
		games = append(games, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(op, err)
	}
	return games, nil
}

func (s *GameStore) Create(ctx context.Context, code, name, description string, active bool) (*model.Game, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO games (id, code, name, description, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, code, name, description, boolInt(active), time.Now().UTC(),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("create game %q: code taken: %w", code, ErrConflict)
	}
	if err != nil {
		return nil, dbError("insert game", err)
	}
	return s.GetByID(ctx, id)
}

func (s *GameStore) GetByID(ctx context.Context, id string) (*model.Game, error) {
	return s.getOne(ctx, `SELECT `+gameCols+` FROM games WHERE id = ?`, id)
}

func (s *GameStore) GetByCode(ctx context.Context, code string) (*model.Game, error) {
	return s.getOne(ctx, `SELECT `+gameCols+` FROM games WHERE code = ?`, code)
}

func (s *GameStore) getOne(ctx context.Context, query, key string) (*model.Game, error) {
	g, err := scanGame(s.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, dbError("get game", err)
	}
	return g, nil
}

// List returns every game, oldest first.
func (s *GameStore) List(ctx context.Context) ([]model.Game, error) {
	return s.queryGames(ctx, "list games",
		`SELECT `+gameCols+` FROM games ORDER BY created_at ASC, rowid ASC`)
}

// ListActive returns games explicitly flagged active, oldest first.
func (s *GameStore) ListActive(ctx context.Context) ([]model.Game, error) {
	return s.queryGames(ctx, "list active games",
		`SELECT `+gameCols+` FROM games WHERE is_active = 1 ORDER BY created_at ASC, rowid ASC`)
}

// ListUnflagged returns legacy games that carry no is_active value.
func (s *GameStore) ListUnflagged(ctx context.Context) ([]model.Game, error) {
	return s.queryGames(ctx, "list unflagged games",
		`SELECT `+gameCols+` FROM games WHERE is_active IS NULL ORDER BY created_at ASC, rowid ASC`)
}

func (s *GameStore) Update(ctx context.Context, id, name, description string) (*model.Game, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE games SET name = ?, description = ? WHERE id = ?`, name, description, id)
	if err != nil {
		return nil, dbError("update game", err)
	}
	if err := requireAffected(res, "game", id); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *GameStore) SetActive(ctx context.Context, id string, active bool) (*model.Game, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE games SET is_active = ? WHERE id = ?`, boolInt(active), id)
	if err != nil {
		return nil, dbError("set game active", err)
	}
	if err := requireAffected(res, "game", id); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Delete hard-deletes a game. Participants keep the id in their completed set.
func (s *GameStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, id)
	if err != nil {
		return dbError("delete game", err)
	}
	return requireAffected(res, "game", id)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dbError("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
	}
	return nil
}
