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

type ArchiveStore struct {
	db *sql.DB
}

func NewArchiveStore(db *sql.DB) *ArchiveStore {
	return &ArchiveStore{db: db}
}

const archiveCols = `id, filename, s3_key, size_bytes, status, error_message, started_at, completed_at, created_at`

func scanArchive(scanner interface{ Scan(...any) error }) (*model.Archive, error) {
	var a model.Archive
	var errMsg sql.NullString
	var startedAt, completedAt sql.NullTime
	err := scanner.Scan(&a.ID, &a.Filename, &a.S3Key, &a.SizeBytes, &a.Status, &errMsg, &startedAt, &completedAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.ErrorMessage = errMsg.String
	if startedAt.Valid {
		a.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return &a, nil
}

func (s *ArchiveStore) Create(ctx context.Context, filename, s3Key string) (*model.Archive, error) {
	now := time.Now().UTC()
	a := &model.Archive{
		ID:        uuid.NewString(),
		Filename:  filename,
		S3Key:     s3Key,
		Status:    model.ArchiveStatusPending,
		StartedAt: &now,
		CreatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO archives (id, filename, s3_key, status, started_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Filename, a.S3Key, a.Status, now, now,
	)
	if err != nil {
		return nil, dbError("create archive", err)
	}
	return a, nil
}

func (s *ArchiveStore) GetByID(ctx context.Context, id string) (*model.Archive, error) {
	a, err := scanArchive(s.db.QueryRowContext(ctx, `SELECT `+archiveCols+` FROM archives WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("archive %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, dbError("get archive", err)
	}
	return a, nil
}

func (s *ArchiveStore) List(ctx context.Context, limit int) ([]model.Archive, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+archiveCols+` FROM archives ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, dbError("list archives", err)
	}
	defer rows.Close()

	archives := []model.Archive{}
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, dbError("scan archive", err)
		}
		archives = append(archives, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate archives", err)
	}
	return archives, nil
}

func (s *ArchiveStore) MarkUploading(ctx context.Context, id string, sizeBytes int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE archives SET status = ?, size_bytes = ? WHERE id = ?`,
		model.ArchiveStatusUploading, sizeBytes, id)
	if err != nil {
		return dbError("mark archive uploading", err)
	}
	return nil
}

func (s *ArchiveStore) MarkCompleted(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE archives SET status = ?, completed_at = ? WHERE id = ?`,
		model.ArchiveStatusCompleted, time.Now().UTC(), id)
	if err != nil {
		return dbError("mark archive completed", err)
	}
	return nil
}

func (s *ArchiveStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE archives SET status = ?, error_message = ? WHERE id = ?`,
		model.ArchiveStatusFailed, errMsg, id)
	if err != nil {
		return dbError("mark archive failed", err)
	}
	return nil
}

// LastCompleted returns the most recent successful archive, or nil if none.
func (s *ArchiveStore) LastCompleted(ctx context.Context) (*model.Archive, error) {
	a, err := scanArchive(s.db.QueryRowContext(ctx,
		`SELECT `+archiveCols+` FROM archives WHERE status = ? ORDER BY completed_at DESC LIMIT 1`,
		model.ArchiveStatusCompleted))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbError("last completed archive", err)
	}
	return a, nil
}
