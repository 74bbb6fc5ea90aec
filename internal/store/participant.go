package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/stampcard/internal/model"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// IdentityKey folds a staff id or last name for case-insensitive matching.
// Stored display values are never rewritten.
func IdentityKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

type ParticipantStore struct {
	db *sql.DB
}

func NewParticipantStore(db *sql.DB) *ParticipantStore {
	return &ParticipantStore{db: db}
}

const participantCols = `id, staff_id, last_name, completed_games, gift_redeemed, gift_redeemed_at, version, created_at`

// participantRow holds raw column values before validation.
type participantRow struct {
	id             string
	staffID        string
	lastName       string
	completedGames string
	giftRedeemed   int
	giftRedeemedAt sql.NullTime
	version        int64
	createdAt      time.Time
}

func scanParticipantRow(scanner interface{ Scan(...any) error }) (*participantRow, error) {
	var r participantRow
	err := scanner.Scan(&r.id, &r.staffID, &r.lastName, &r.completedGames, &r.giftRedeemed, &r.giftRedeemedAt, &r.version, &r.createdAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// decode validates the row and converts it to a Participant.
func (r *participantRow) decode() (*model.Participant, error) {
	if r.id == "" || strings.TrimSpace(r.staffID) == "" || strings.TrimSpace(r.lastName) == "" {
		return nil, fmt.Errorf("participant %q: missing identity fields: %w", r.id, ErrMalformed)
	}

	var games []string
	if err := json.Unmarshal([]byte(r.completedGames), &games); err != nil {
		return nil, fmt.Errorf("participant %q: completed_games: %w: %v", r.id, ErrMalformed, err)
	}
	seen := make(map[string]struct{}, len(games))
	for _, g := range games {
		if g == "" {
			return nil, fmt.Errorf("participant %q: empty game id: %w", r.id, ErrMalformed)
		}
		if _, dup := seen[g]; dup {
			return nil, fmt.Errorf("participant %q: duplicate game id %q: %w", r.id, g, ErrMalformed)
		}
		seen[g] = struct{}{}
	}
	if games == nil {
		games = []string{}
	}

	p := &model.Participant{
		ID:             r.id,
		StaffID:        r.staffID,
		LastName:       r.lastName,
		CompletedGames: games,
		GiftRedeemed:   r.giftRedeemed != 0,
		Version:        r.version,
		CreatedAt:      r.createdAt,
	}
	if r.giftRedeemedAt.Valid {
		t := r.giftRedeemedAt.Time
		p.GiftRedeemedAt = &t
	}
	if p.GiftRedeemed != (p.GiftRedeemedAt != nil) {
		return nil, fmt.Errorf("participant %q: gift flag and timestamp disagree: %w", r.id, ErrMalformed)
	}
	return p, nil
}

func scanParticipant(scanner interface{ Scan(...any) error }) (*model.Participant, error) {
	r, err := scanParticipantRow(scanner)
	if err != nil {
		return nil, err
	}
	return r.decode()
}

// Create inserts a participant with no completions. A second participant
// with the same folded (staffID, lastName) pair fails with ErrConflict.
func (s *ParticipantStore) Create(ctx context.Context, staffID, lastName string) (*model.Participant, error) {
	staffID = strings.TrimSpace(staffID)
	lastName = strings.TrimSpace(lastName)
	if staffID == "" || lastName == "" {
		return nil, fmt.Errorf("create participant: staff id and last name are required: %w", ErrMalformed)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO participants (id, staff_id, last_name, staff_key, last_name_key, completed_games, created_at)
		 VALUES (?, ?, ?, ?, ?, '[]', ?)`,
		id, staffID, lastName, IdentityKey(staffID), IdentityKey(lastName), now,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("create participant %q/%q: %w", staffID, lastName, ErrConflict)
	}
	if err != nil {
		return nil, dbError("insert participant", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ParticipantStore) GetByID(ctx context.Context, id string) (*model.Participant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+participantCols+` FROM participants WHERE id = ?`, id)
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("participant %q: %w", id, ErrNotFound)
	}
	if err != nil && !errors.Is(err, ErrMalformed) {
		return nil, dbError("get participant", err)
	}
	return p, err
}

// GetByIdentity matches both fields exactly after case folding. A staff id
// match with a different last name is ErrNotFound.
func (s *ParticipantStore) GetByIdentity(ctx context.Context, staffID, lastName string) (*model.Participant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+participantCols+` FROM participants WHERE staff_key = ? AND last_name_key = ?`,
		IdentityKey(staffID), IdentityKey(lastName),
	)
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("participant %q/%q: %w", staffID, lastName, ErrNotFound)
	}
	if err != nil && !errors.Is(err, ErrMalformed) {
		return nil, dbError("get participant by identity", err)
	}
	return p, err
}

// ParticipantRecord is one row of a full scan. Err is set, and Participant
// is nil, when the row failed validation.
type ParticipantRecord struct {
	ID          string
	StaffID     string
	LastName    string
	CreatedAt   time.Time
	Participant *model.Participant
	Err         error
}

// ListRecords returns every participant in registration order. Rows that fail
// validation are reported individually instead of failing the scan.
func (s *ParticipantStore) ListRecords(ctx context.Context) ([]ParticipantRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+participantCols+` FROM participants ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, dbError("list participants", err)
	}
	defer rows.Close()

	var records []ParticipantRecord
	for rows.Next() {
		r, err := scanParticipantRow(rows)
		if err != nil {
			return nil, dbError("scan participant", err)
		}
		rec := ParticipantRecord{ID: r.id, StaffID: r.staffID, LastName: r.lastName, CreatedAt: r.createdAt}
		rec.Participant, rec.Err = r.decode()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate participants", err)
	}
	return records, nil
}

func (s *ParticipantStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM participants`).Scan(&n); err != nil {
		return 0, dbError("count participants", err)
	}
	return n, nil
}

// getParticipantTx reads a participant inside an open transaction.
func getParticipantTx(ctx context.Context, tx *sql.Tx, id string) (*model.Participant, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+participantCols+` FROM participants WHERE id = ?`, id)
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("participant %q: %w", id, ErrNotFound)
	}
	if err != nil && !errors.Is(err, ErrMalformed) {
		return nil, dbError("get participant", err)
	}
	return p, err
}
