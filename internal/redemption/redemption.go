// Package redemption implements the gift state machine:
// not_eligible -> eligible -> redeemed. Redeemed is terminal.
package redemption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/stampcard/internal/metrics"
	"github.com/dukerupert/stampcard/internal/model"
	"github.com/dukerupert/stampcard/internal/progress"
	"github.com/dukerupert/stampcard/internal/store"
)

// ErrNotEligible is returned when a card is not yet full.
var ErrNotEligible = errors.New("participant not eligible for gift")

type participantLookup interface {
	GetByID(ctx context.Context, id string) (*model.Participant, error)
}

type gameSource interface {
	ListActive(ctx context.Context) ([]model.Game, error)
}

type redemptionStore interface {
	Redeem(ctx context.Context, participantID, redeemedBy string) (*model.GiftRedemption, *model.Participant, error)
	ListByParticipant(ctx context.Context, participantID string) ([]model.GiftRedemption, error)
}

type invalidator interface {
	Invalidate(p *model.Participant)
}

type Status struct {
	ParticipantID string          `json:"participant_id"`
	State         model.GiftState `json:"state"`
	Completed     int             `json:"completed"`
	Total         int             `json:"total"`
	RedeemedAt    *time.Time      `json:"redeemed_at,omitempty"`
	RedeemedBy    string          `json:"redeemed_by,omitempty"`
}

type Service struct {
	participants participantLookup
	games        gameSource
	redemptions  redemptionStore
	cache        invalidator
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func New(participants participantLookup, games gameSource, redemptions redemptionStore, cache invalidator, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		participants: participants,
		games:        games,
		redemptions:  redemptions,
		cache:        cache,
		metrics:      m,
		logger:       logger,
	}
}

// StateOf derives the gift state from a participant and the active catalog.
func StateOf(p *model.Participant, active []model.Game) model.GiftState {
	switch {
	case p.GiftRedeemed:
		return model.GiftRedeemed
	case progress.Eligible(len(p.CompletedGames), len(active)):
		return model.GiftEligible
	default:
		return model.GiftNotEligible
	}
}

// State reads the participant and catalog without caching.
func (s *Service) State(ctx context.Context, participantID string) (*Status, error) {
	p, active, err := s.load(ctx, participantID)
	if err != nil {
		return nil, err
	}

	st := &Status{
		ParticipantID: p.ID,
		State:         StateOf(p, active),
		Completed:     len(p.CompletedGames),
		Total:         len(active),
		RedeemedAt:    p.GiftRedeemedAt,
	}
	if st.State == model.GiftRedeemed {
		records, err := s.redemptions.ListByParticipant(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			st.RedeemedAt = &records[0].RedeemedAt
			st.RedeemedBy = records[0].RedeemedBy
		}
	}
	return st, nil
}

func (s *Service) load(ctx context.Context, participantID string) (*model.Participant, []model.Game, error) {
	p, err := s.participants.GetByID(ctx, participantID)
	if err != nil {
		return nil, nil, err
	}
	active, err := s.games.ListActive(ctx)
	if err != nil {
		return nil, nil, err
	}
	return p, active, nil
}

// Redeem moves an eligible participant to redeemed. An already redeemed
// participant is store.ErrConflict and an incomplete card is ErrNotEligible;
// neither writes anything.
func (s *Service) Redeem(ctx context.Context, participantID, redeemedBy string) (*model.GiftRedemption, error) {
	redeemedBy = strings.TrimSpace(redeemedBy)
	if redeemedBy == "" {
		return nil, fmt.Errorf("redeem gift: redeemed by is required: %w", store.ErrMalformed)
	}

	p, active, err := s.load(ctx, participantID)
	if err != nil {
		return nil, err
	}

	switch StateOf(p, active) {
	case model.GiftRedeemed:
		s.metrics.ObserveRedemption("conflict")
		return nil, fmt.Errorf("redeem gift for %s: already redeemed: %w", participantID, store.ErrConflict)
	case model.GiftNotEligible:
		s.metrics.ObserveRedemption("not_eligible")
		return nil, fmt.Errorf("redeem gift for %s: %d of %d games: %w",
			participantID, len(p.CompletedGames), len(active), ErrNotEligible)
	}

	r, updated, err := s.redemptions.Redeem(ctx, participantID, redeemedBy)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.metrics.ObserveRedemption("conflict")
		}
		return nil, err
	}

	s.metrics.ObserveRedemption("redeemed")
	if s.cache != nil {
		s.cache.Invalidate(updated)
	}
	s.logger.Info("gift redeemed", "participant_id", participantID, "redeemed_by", redeemedBy)
	return r, nil
}
