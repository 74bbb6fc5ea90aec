package model

import "time"

const (
	DefaultEventName        = "Event Name Placeholder"
	DefaultEventDescription = "Start your stamp collection journey"
)

// Configuration is the single event configuration record.
type Configuration struct {
	EventName        string    `json:"event_name"`
	EventDescription string    `json:"event_description"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DefaultConfiguration is returned when no record has been stored yet.
func DefaultConfiguration() Configuration {
	return Configuration{
		EventName:        DefaultEventName,
		EventDescription: DefaultEventDescription,
	}
}
