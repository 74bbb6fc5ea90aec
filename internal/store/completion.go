package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/stampcard/internal/model"
	"github.com/google/uuid"
)

type CompletionStore struct {
	db *sql.DB
}

func NewCompletionStore(db *sql.DB) *CompletionStore {
	return &CompletionStore{db: db}
}

const completionCols = `id, participant_id, game_id, host_id, completed_at`

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.GameCompletion, error) {
	var c model.GameCompletion
	if err := scanner.Scan(&c.ID, &c.ParticipantID, &c.GameID, &c.HostID, &c.CompletedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// appendGameSQL adds a game id to the participant's set at field level. The
// guard makes it a no-op when the id is already present, so concurrent hosts
// never overwrite each other's additions.
const appendGameSQL = `UPDATE participants
	SET completed_games = json_insert(completed_games, '$[#]', ?1), version = version + 1
	WHERE id = ?2
	  AND NOT EXISTS (SELECT 1 FROM json_each(participants.completed_games) WHERE json_each.value = ?1)`

// CompletionBatch is the outcome of Record.
type CompletionBatch struct {
	Participant *model.Participant
	Recorded    []model.GameCompletion
	Skipped     []string
}

// Record appends every game id not yet completed to the participant's set and
// writes one ledger entry per appended id, all in one transaction. Ids already
// present are reported in Skipped and produce no writes.
func (s *CompletionStore) Record(ctx context.Context, participantID, hostID string, gameIDs []string) (*CompletionBatch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbError("begin completion", err)
	}
	defer tx.Rollback()

	if _, err := getParticipantTx(ctx, tx, participantID); err != nil {
		return nil, err
	}

	batch := &CompletionBatch{}
	now := time.Now().UTC()
	for _, gameID := range gameIDs {
		res, err := tx.ExecContext(ctx, appendGameSQL, gameID, participantID)
		if err != nil {
			return nil, dbError("append completed game", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, dbError("rows affected", err)
		}
		if n == 0 {
			batch.Skipped = append(batch.Skipped, gameID)
			continue
		}

		c := model.GameCompletion{
			ID:            uuid.NewString(),
			ParticipantID: participantID,
			GameID:        gameID,
			HostID:        hostID,
			CompletedAt:   now,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO game_completions (`+completionCols+`) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.ParticipantID, c.GameID, c.HostID, c.CompletedAt,
		)
		if err != nil {
			return nil, dbError("insert game completion", err)
		}
		batch.Recorded = append(batch.Recorded, c)
	}

	batch.Participant, err = getParticipantTx(ctx, tx, participantID)
	if err != nil {
		return nil, err
	}

	if len(batch.Recorded) == 0 {
		// Nothing written; release the write lock without a commit.
		return batch, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, dbError("commit completion", err)
	}
	return batch, nil
}

// ListByParticipant returns the participant's ledger, newest first.
func (s *CompletionStore) ListByParticipant(ctx context.Context, participantID string) ([]model.GameCompletion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+completionCols+` FROM game_completions WHERE participant_id = ? ORDER BY completed_at DESC, rowid DESC`,
		participantID,
	)
	if err != nil {
		return nil, dbError("list game completions", err)
	}
	defer rows.Close()

	completions := []model.GameCompletion{}
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, dbError("scan game completion", err)
		}
		completions = append(completions, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate game completions", err)
	}
	return completions, nil
}

// CountByGame returns ledger entry counts keyed by game id.
func (s *CompletionStore) CountByGame(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT game_id, COUNT(*) FROM game_completions GROUP BY game_id`)
	if err != nil {
		return nil, dbError("count completions by game", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var gameID string
		var n int
		if err := rows.Scan(&gameID, &n); err != nil {
			return nil, fmt.Errorf("scan completion count: %w", err)
		}
		counts[gameID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate completion counts", err)
	}
	return counts, nil
}
