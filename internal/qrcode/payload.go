// Package qrcode serializes the identity payload carried by participant QR
// codes and renders it as an image. Camera decoders and manual text entry
// both feed Decode with the same text format.
package qrcode

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukerupert/stampcard/internal/store"
)

// Payload is the identity record embedded in a QR code. The codec does not
// check that ParticipantID exists.
type Payload struct {
	StaffID       string `json:"staffId"`
	LastName      string `json:"lastName"`
	ParticipantID string `json:"participantId"`
}

// ErrMalformed is returned by Decode for any input that is not a valid payload.
var ErrMalformed = fmt.Errorf("qr payload: %w", store.ErrMalformed)

// Encode serializes p as a flat JSON object.
func Encode(p Payload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode qr payload: %w", err)
	}
	return string(b), nil
}

// Decode parses text produced by Encode. It never panics: anything other than
// a JSON object carrying the three fields as strings is ErrMalformed. Values
// are returned as encoded, blanks included; the identity lookup rejects them.
// Unknown keys are ignored.
func Decode(text string) (Payload, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil || raw == nil {
		return Payload{}, ErrMalformed
	}

	var p Payload
	fields := []struct {
		key string
		dst *string
	}{
		{"staffId", &p.StaffID},
		{"lastName", &p.LastName},
		{"participantId", &p.ParticipantID},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok {
			return Payload{}, fmt.Errorf("%w: missing %s", ErrMalformed, f.key)
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return Payload{}, fmt.Errorf("%w: %s is not a string", ErrMalformed, f.key)
		}
	}
	return p, nil
}
