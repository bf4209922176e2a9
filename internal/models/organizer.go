package models

// OrganizerBalance tracks the price-revenue ledger for one organizer on one
// event. Claimable is immediately withdrawable, vested releases per session
// code, claimed is the audit running total of everything paid out. Over the
// event's life claimable + vested + claimed equals the total price revenue
// collected from enrollments.
type OrganizerBalance struct {
	OrganizerAddress string `db:"organizer_address" json:"organizer_address"`
	EventID          int64  `db:"event_id" json:"event_id"`
	Claimable        int64  `db:"claimable" json:"claimable"`
	Vested           int64  `db:"vested" json:"vested"`
	Claimed          int64  `db:"claimed" json:"claimed"`
}
