package model

import "time"

// GameCompletion is an append-only ledger entry. The participant's
// CompletedGames set is authoritative; the ledger is the audit trail.
type GameCompletion struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	GameID        string    `json:"game_id"`
	HostID        string    `json:"host_id"`
	CompletedAt   time.Time `json:"completed_at"`
}
