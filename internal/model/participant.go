package model

import (
	"slices"
	"time"
)

// Participant is a registered event-goer. The (StaffID, LastName) pair,
// compared case-insensitively, is the business key.
type Participant struct {
	ID             string     `json:"id"`
	StaffID        string     `json:"staff_id"`
	LastName       string     `json:"last_name"`
	CompletedGames []string   `json:"completed_games"`
	GiftRedeemed   bool       `json:"gift_redeemed"`
	GiftRedeemedAt *time.Time `json:"gift_redeemed_at,omitempty"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
}

// HasCompleted reports whether gameID is in the participant's completed set.
func (p *Participant) HasCompleted(gameID string) bool {
	return slices.Contains(p.CompletedGames, gameID)
}
