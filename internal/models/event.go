package models

import "time"

// Event holds the immutable terms of a published event. Only EnrolledCount
// changes after creation; it is incremented per enrollment and never
// decremented. PriceAmount and CommitmentAmount are unscaled unit prices,
// multiplied by the payment asset's decimal factor at the moment of use.
type Event struct {
	ID                 int64     `db:"id" json:"id"`
	OrganizerAddress   string    `db:"organizer_address" json:"organizer_address"`
	Title              string    `db:"title" json:"title"`
	Description        string    `db:"description" json:"description"`
	PriceAmount        int64     `db:"price_amount" json:"price_amount"`
	CommitmentAmount   int64     `db:"commitment_amount" json:"commitment_amount"`
	TotalSessions      int       `db:"total_sessions" json:"total_sessions"`
	StartSaleDate      time.Time `db:"start_sale_date" json:"start_sale_date"`
	EndSaleDate        time.Time `db:"end_sale_date" json:"end_sale_date"`
	LastSessionEndTime time.Time `db:"last_session_end_time" json:"last_session_end_time"`
	EnrolledCount      int       `db:"enrolled_count" json:"enrolled_count"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// EventDetail bundles an event with its session schedule for read endpoints.
type EventDetail struct {
	Event
	Sessions []Session `json:"sessions"`
}

// EventFilter captures listing criteria.
type EventFilter struct {
	OrganizerAddress string
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}
