package models

import "time"

// SessionCodeLength is the required length of an attendance code.
const SessionCodeLength = 6

// Session is one entry of an event's immutable schedule, addressed by its
// index. Code and the claim timestamp follow the one-shot rule: nil until set,
// immutable afterwards.
type Session struct {
	EventID       int64     `db:"event_id" json:"event_id"`
	SessionIndex  int       `db:"session_index" json:"session_index"`
	StartTime     time.Time `db:"start_time" json:"start_time"`
	EndTime       time.Time `db:"end_time" json:"end_time"`
	AttendedCount int       `db:"attended_count" json:"attended_count"`

	Code      *string    `db:"code" json:"-"`
	CodeSetAt *time.Time `db:"code_set_at" json:"code_set_at,omitempty"`

	ReleasedAmount int64 `db:"released_amount" json:"released_amount"`

	UnattendedClaimedAt    *time.Time `db:"unattended_claimed_at" json:"unattended_claimed_at,omitempty"`
	UnattendedOrganizerFee int64      `db:"unattended_organizer_fee" json:"unattended_organizer_fee"`
	UnattendedProtocolFee  int64      `db:"unattended_protocol_fee" json:"unattended_protocol_fee"`
}

// CodeSet reports whether the organizer already issued this session's code.
func (s *Session) CodeSet() bool {
	return s.Code != nil
}

// UnattendedClaimed reports whether the unattended-fee claim is settled.
func (s *Session) UnattendedClaimed() bool {
	return s.UnattendedClaimedAt != nil
}

// SessionView is the organizer-aware read model; the code is only populated
// for the event organizer.
type SessionView struct {
	Session
	RevealedCode *string `json:"code,omitempty"`
}
