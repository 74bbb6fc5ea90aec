// Package ledger records game completions. The participant's completed set is
// authoritative for progress; the completion entries are the audit trail.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/stampcard/internal/metrics"
	"github.com/dukerupert/stampcard/internal/model"
	"github.com/dukerupert/stampcard/internal/store"
)

type Outcome string

const (
	Recorded         Outcome = "recorded"
	AlreadyCompleted Outcome = "already_completed"
)

type completionStore interface {
	Record(ctx context.Context, participantID, hostID string, gameIDs []string) (*store.CompletionBatch, error)
	ListByParticipant(ctx context.Context, participantID string) ([]model.GameCompletion, error)
}

type gameLookup interface {
	GetByID(ctx context.Context, id string) (*model.Game, error)
}

// Invalidator is notified after a participant's set changes.
type Invalidator interface {
	Invalidate(p *model.Participant)
}

type Result struct {
	Outcome     Outcome               `json:"outcome"`
	Participant *model.Participant    `json:"participant"`
	Completion  *model.GameCompletion `json:"completion,omitempty"`
}

type BatchResult struct {
	Participant      *model.Participant     `json:"participant"`
	Recorded         []model.GameCompletion `json:"recorded"`
	AlreadyCompleted []string               `json:"already_completed"`
}

type Ledger struct {
	completions completionStore
	games       gameLookup
	cache       Invalidator
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func New(completions completionStore, games gameLookup, cache Invalidator, m *metrics.Metrics, logger *slog.Logger) *Ledger {
	return &Ledger{completions: completions, games: games, cache: cache, metrics: m, logger: logger}
}

// RecordCompletion credits gameID to the participant. Recording a game that
// is already in the set is not an error: the result reports AlreadyCompleted
// and nothing is written, so retries after a transient failure are safe.
func (l *Ledger) RecordCompletion(ctx context.Context, participantID, gameID, hostID string) (*Result, error) {
	batch, err := l.RecordCompletions(ctx, participantID, []string{gameID}, hostID)
	if err != nil {
		return nil, err
	}
	res := &Result{Outcome: AlreadyCompleted, Participant: batch.Participant}
	if len(batch.Recorded) == 1 {
		res.Outcome = Recorded
		res.Completion = &batch.Recorded[0]
	}
	return res, nil
}

// RecordCompletions credits several games in one transaction. Duplicates in
// gameIDs are collapsed and ids already completed are skipped; when every id
// is skipped the call writes nothing.
func (l *Ledger) RecordCompletions(ctx context.Context, participantID string, gameIDs []string, hostID string) (*BatchResult, error) {
	ids, err := l.normalize(ctx, gameIDs)
	if err != nil {
		return nil, err
	}

	batch, err := l.completions.Record(ctx, participantID, hostID, ids)
	if err != nil {
		return nil, fmt.Errorf("record completions for %s: %w", participantID, err)
	}

	res := &BatchResult{
		Participant:      batch.Participant,
		Recorded:         batch.Recorded,
		AlreadyCompleted: batch.Skipped,
	}
	if res.Recorded == nil {
		res.Recorded = []model.GameCompletion{}
	}
	if res.AlreadyCompleted == nil {
		res.AlreadyCompleted = []string{}
	}

	l.metrics.ObserveCompletion(string(Recorded), len(res.Recorded))
	l.metrics.ObserveCompletion(string(AlreadyCompleted), len(res.AlreadyCompleted))

	if len(res.Recorded) > 0 {
		if l.cache != nil {
			l.cache.Invalidate(res.Participant)
		}
		l.logger.Info("completions recorded",
			"participant_id", participantID,
			"host_id", hostID,
			"recorded", len(res.Recorded),
			"already_completed", len(res.AlreadyCompleted),
			"total_completed", len(res.Participant.CompletedGames),
		)
	}
	return res, nil
}

// normalize trims, deduplicates and checks that each game exists.
func (l *Ledger) normalize(ctx context.Context, gameIDs []string) ([]string, error) {
	seen := make(map[string]bool, len(gameIDs))
	ids := make([]string, 0, len(gameIDs))
	for _, id := range gameIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("record completion: empty game id: %w", store.ErrMalformed)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("record completion: no game ids: %w", store.ErrMalformed)
	}

	if l.games != nil {
		for _, id := range ids {
			if _, err := l.games.GetByID(ctx, id); err != nil {
				return nil, fmt.Errorf("record completion: game %s: %w", id, err)
			}
		}
	}
	return ids, nil
}

// History returns the participant's ledger entries, newest first.
func (l *Ledger) History(ctx context.Context, participantID string) ([]model.GameCompletion, error) {
	return l.completions.ListByParticipant(ctx, participantID)
}
