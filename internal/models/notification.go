package models

import "time"

// NotificationType enumerates the state-change notifications emitted for
// external indexers. They are side-channel only and never gate correctness.
type NotificationType string

const (
	NotifyEventCreated          NotificationType = "event.created"
	NotifySessionCreated        NotificationType = "session.created"
	NotifyEnrolled              NotificationType = "event.enrolled"
	NotifyVestingReleased       NotificationType = "session.vesting_released"
	NotifySessionCodeSet        NotificationType = "session.code_set"
	NotifyAttended              NotificationType = "session.attended"
	NotifyFirstPortionClaimed   NotificationType = "event.first_portion_claimed"
	NotifyUnattendedClaimed     NotificationType = "session.unattended_claimed"
	NotifyMaxSessionsConfigured NotificationType = "protocol.max_sessions_set"
)

// Notification is the structured payload published to the indexer channel and
// the websocket feed.
type Notification struct {
	ID           string                 `json:"id"`
	Type         NotificationType       `json:"type"`
	EventID      int64                  `json:"event_id,omitempty"`
	SessionIndex *int                   `json:"session_index,omitempty"`
	Address      string                 `json:"address,omitempty"`
	Amount       int64                  `json:"amount,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	EmittedAt    time.Time              `json:"emitted_at"`
}
