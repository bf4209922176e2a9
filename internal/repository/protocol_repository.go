package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/attendfi/attendfi-api/internal/models"
)

// ProtocolRepository serves the read side of the single-row protocol ledger.
type ProtocolRepository struct {
	db *sqlx.DB
}

// NewProtocolRepository constructs a ProtocolRepository.
func NewProtocolRepository(db *sqlx.DB) *ProtocolRepository {
	return &ProtocolRepository{db: db}
}

// State fetches the current TVL and the session cap.
func (r *ProtocolRepository) State(ctx context.Context) (*models.ProtocolState, error) {
	const query = `SELECT tvl, max_sessions_per_event FROM protocol_state WHERE id = 1`
	var state models.ProtocolState
	if err := r.db.GetContext(ctx, &state, query); err != nil {
		return nil, err
	}
	return &state, nil
}
