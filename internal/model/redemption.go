package model

import "time"

type GiftRedemption struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	RedeemedAt    time.Time `json:"redeemed_at"`
	RedeemedBy    string    `json:"redeemed_by"`
}

// GiftState is the position of a participant in the redemption state machine.
type GiftState string

const (
	GiftNotEligible GiftState = "not_eligible"
	GiftEligible    GiftState = "eligible"
	GiftRedeemed    GiftState = "redeemed"
)
