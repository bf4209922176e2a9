package models

// ProtocolState is the single-row protocol ledger: the running TVL accumulated
// from protocol shares of unattended-fee claims (held in contract custody) and
// the admin-configurable cap on sessions per event.
type ProtocolState struct {
	TVL                 int64 `db:"tvl" json:"tvl"`
	MaxSessionsPerEvent int   `db:"max_sessions_per_event" json:"max_sessions_per_event"`
}
