// Package report aggregates every participant's progress for the admin
// dashboard. One malformed participant never fails the whole report.
package report

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/dukerupert/stampcard/internal/model"
	"github.com/dukerupert/stampcard/internal/progress"
	"github.com/dukerupert/stampcard/internal/store"
)

type participantLister interface {
	ListRecords(ctx context.Context) ([]store.ParticipantRecord, error)
}

type gameSource interface {
	ListActive(ctx context.Context) ([]model.Game, error)
}

type redemptionLister interface {
	List(ctx context.Context) ([]model.GiftRedemption, error)
}

type completionCounter interface {
	CountByGame(ctx context.Context) (map[string]int, error)
}

type ParticipantRow struct {
	ID             string                `json:"id"`
	StaffID        string                `json:"staff_id"`
	LastName       string                `json:"last_name"`
	RegisteredAt   time.Time             `json:"registered_at"`
	CompletedGames int                   `json:"completed_games"`
	TotalGames     int                   `json:"total_games"`
	CompletionPct  int                   `json:"completion_percentage"`
	GiftRedeemed   bool                  `json:"gift_redeemed"`
	GiftRedeemedAt *time.Time            `json:"gift_redeemed_at,omitempty"`
	GiftRedeemedBy string                `json:"gift_redeemed_by,omitempty"`
	Games          []progress.GameStatus `json:"games"`
	Error          string                `json:"error,omitempty"`
}

type GameRow struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Completions int    `json:"completions"`
}

type Summary struct {
	TotalParticipants     int `json:"total_participants"`
	TotalGames            int `json:"total_games"`
	ParticipantsWithGifts int `json:"participants_with_gifts"`
	AverageCompletion     int `json:"average_completion"`
	MalformedParticipants int `json:"malformed_participants"`
}

type Report struct {
	GeneratedAt  time.Time        `json:"generated_at"`
	Participants []ParticipantRow `json:"participants"`
	Games        []GameRow        `json:"games"`
	Summary      Summary          `json:"summary"`
}

type Builder struct {
	participants participantLister
	games        gameSource
	redemptions  redemptionLister
	completions  completionCounter
	logger       *slog.Logger
}

func NewBuilder(participants participantLister, games gameSource, redemptions redemptionLister, completions completionCounter, logger *slog.Logger) *Builder {
	return &Builder{
		participants: participants,
		games:        games,
		redemptions:  redemptions,
		completions:  completions,
		logger:       logger,
	}
}

// Build reads the whole dataset once. Percentages use the active catalog at
// the time of the call.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	active, err := b.games.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	records, err := b.participants.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	redemptions, err := b.redemptions.List(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := b.completions.CountByGame(ctx)
	if err != nil {
		return nil, err
	}

	// Earliest redemption per participant is authoritative.
	redeemed := make(map[string]model.GiftRedemption, len(redemptions))
	for _, r := range redemptions {
		if _, ok := redeemed[r.ParticipantID]; !ok {
			redeemed[r.ParticipantID] = r
		}
	}

	rep := &Report{
		GeneratedAt:  time.Now().UTC(),
		Participants: make([]ParticipantRow, 0, len(records)),
		Games:        make([]GameRow, 0, len(active)),
	}
	for _, g := range active {
		rep.Games = append(rep.Games, GameRow{ID: g.ID, Code: g.Code, Name: g.Name, Completions: counts[g.ID]})
	}

	pctSum := 0
	for _, rec := range records {
		row := b.participantRow(rec, active, redeemed, rep.GeneratedAt)
		if row.Error != "" {
			rep.Summary.MalformedParticipants++
		}
		if row.GiftRedeemed {
			rep.Summary.ParticipantsWithGifts++
		}
		pctSum += row.CompletionPct
		rep.Participants = append(rep.Participants, row)
	}

	rep.Summary.TotalParticipants = len(rep.Participants)
	rep.Summary.TotalGames = len(active)
	if n := len(rep.Participants); n > 0 {
		rep.Summary.AverageCompletion = int(math.Round(float64(pctSum) / float64(n)))
	}
	return rep, nil
}

// participantRow never fails. A record that did not decode becomes a
// placeholder carrying only its identity and the error text.
func (b *Builder) participantRow(rec store.ParticipantRecord, active []model.Game, redeemed map[string]model.GiftRedemption, now time.Time) ParticipantRow {
	row := ParticipantRow{
		ID:           rec.ID,
		StaffID:      rec.StaffID,
		LastName:     rec.LastName,
		RegisteredAt: rec.CreatedAt,
		TotalGames:   len(active),
		Games:        []progress.GameStatus{},
	}
	if rec.Err != nil || rec.Participant == nil {
		msg := "participant record unreadable"
		if rec.Err != nil {
			msg = rec.Err.Error()
		}
		b.logger.Warn("report row skipped", "participant_id", rec.ID, "error", msg)
		row.Error = msg
		return row
	}

	pr := progress.Compute(rec.Participant, active, now)
	row.CompletedGames = pr.Completed
	row.CompletionPct = pr.Percentage
	row.Games = pr.Games
	row.GiftRedeemed = rec.Participant.GiftRedeemed
	row.GiftRedeemedAt = rec.Participant.GiftRedeemedAt
	if r, ok := redeemed[rec.ID]; ok {
		at := r.RedeemedAt
		row.GiftRedeemedAt = &at
		row.GiftRedeemedBy = r.RedeemedBy
	}
	return row
}
