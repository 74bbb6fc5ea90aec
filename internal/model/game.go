package model

import "time"

// Game is a booth a participant must complete. Only active games count
// toward progress totals and gift eligibility.
type Game struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// GameHost operates a booth. GameID is informational and does not restrict
// which games the host may mark complete.
type GameHost struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	GameID    string    `json:"game_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
