package models

import "time"

// Participant is the per-event enrollment record owning the remaining
// commitment stake. CommitmentBalance only decreases, via attendance rewards,
// and never goes negative.
type Participant struct {
	EventID               int64     `db:"event_id" json:"event_id"`
	Address               string    `db:"address" json:"address"`
	EnrolledAt            time.Time `db:"enrolled_at" json:"enrolled_at"`
	CommitmentBalance     int64     `db:"commitment_balance" json:"commitment_balance"`
	AttendedSessionsCount int       `db:"attended_sessions_count" json:"attended_sessions_count"`
}

// Attendance is the one-shot per-session proof row, keyed by
// (event, participant, session).
type Attendance struct {
	EventID      int64     `db:"event_id" json:"event_id"`
	Address      string    `db:"address" json:"address"`
	SessionIndex int       `db:"session_index" json:"session_index"`
	AttendedAt   time.Time `db:"attended_at" json:"attended_at"`
	RewardAmount int64     `db:"reward_amount" json:"reward_amount"`
}

// ParticipantDetail bundles the enrollment record with its attendance proofs.
type ParticipantDetail struct {
	Participant
	Attendance []Attendance `json:"attendance"`
}
