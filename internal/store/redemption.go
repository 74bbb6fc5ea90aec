package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/stampcard/internal/model"
	"github.com/google/uuid"
)

type RedemptionStore struct {
	db *sql.DB
}

func NewRedemptionStore(db *sql.DB) *RedemptionStore {
	return &RedemptionStore{db: db}
}

const redemptionCols = `id, participant_id, redeemed_at, redeemed_by`

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.GiftRedemption, error) {
	var r model.GiftRedemption
	if err := scanner.Scan(&r.ID, &r.ParticipantID, &r.RedeemedAt, &r.RedeemedBy); err != nil {
		return nil, err
	}
	return &r, nil
}

// Redeem flips the participant's gift flag and appends the redemption record in
// one transaction. The flag flip is conditional on gift_redeemed = 0, so a
// second call fails with ErrConflict and writes nothing.
func (s *RedemptionStore) Redeem(ctx context.Context, participantID, redeemedBy string) (*model.GiftRedemption, *model.Participant, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, dbError("begin redemption", err)
	}
	defer tx.Rollback()

	if _, err := getParticipantTx(ctx, tx, participantID); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE participants SET gift_redeemed = 1, gift_redeemed_at = ?, version = version + 1
		 WHERE id = ? AND gift_redeemed = 0`,
		now, participantID,
	)
	if err != nil {
		return nil, nil, dbError("flag gift redeemed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, nil, dbError("rows affected", err)
	}
	if n == 0 {
		return nil, nil, fmt.Errorf("participant %q already redeemed: %w", participantID, ErrConflict)
	}

	r := &model.GiftRedemption{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		RedeemedAt:    now,
		RedeemedBy:    redeemedBy,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO gift_redemptions (`+redemptionCols+`) VALUES (?, ?, ?, ?)`,
		r.ID, r.ParticipantID, r.RedeemedAt, r.RedeemedBy,
	)
	if err != nil {
		return nil, nil, dbError("insert gift redemption", err)
	}

	p, err := getParticipantTx(ctx, tx, participantID)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, dbError("commit redemption", err)
	}
	return r, p, nil
}

func (s *RedemptionStore) ListByParticipant(ctx context.Context, participantID string) ([]model.GiftRedemption, error) {
	return s.query(ctx,
		`SELECT `+redemptionCols+` FROM gift_redemptions WHERE participant_id = ? ORDER BY redeemed_at ASC, rowid ASC`,
		participantID)
}

func (s *RedemptionStore) List(ctx context.Context) ([]model.GiftRedemption, error) {
	return s.query(ctx, `SELECT `+redemptionCols+` FROM gift_redemptions ORDER BY redeemed_at ASC, rowid ASC`)
}

func (s *RedemptionStore) query(ctx context.Context, query string, args ...any) ([]model.GiftRedemption, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("list gift redemptions", err)
	}
	defer rows.Close()

	redemptions := []model.GiftRedemption{}
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, dbError("scan gift redemption", err)
		}
		redemptions = append(redemptions, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate gift redemptions", err)
	}
	return redemptions, nil
}
