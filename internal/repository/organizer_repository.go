package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/attendfi/attendfi-api/internal/models"
)

// OrganizerRepository serves the read side of organizer revenue ledgers.
type OrganizerRepository struct {
	db *sqlx.DB
}

// NewOrganizerRepository constructs an OrganizerRepository.
func NewOrganizerRepository(db *sqlx.DB) *OrganizerRepository {
	return &OrganizerRepository{db: db}
}

// Balance fetches the ledger for one organizer on one event. A missing row
// reads as an all-zero ledger, matching an event with no enrollments yet.
func (r *OrganizerRepository) Balance(ctx context.Context, organizer string, eventID int64) (*models.OrganizerBalance, error) {
	const query = `SELECT organizer_address, event_id, claimable, vested, claimed
        FROM organizer_balances WHERE organizer_address = $1 AND event_id = $2`
	var balance models.OrganizerBalance
	err := r.db.GetContext(ctx, &balance, query, organizer, eventID)
	if err == sql.ErrNoRows {
		return &models.OrganizerBalance{OrganizerAddress: organizer, EventID: eventID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// ListByOrganizer returns all event ledgers of one organizer.
func (r *OrganizerRepository) ListByOrganizer(ctx context.Context, organizer string) ([]models.OrganizerBalance, error) {
	const query = `SELECT organizer_address, event_id, claimable, vested, claimed
        FROM organizer_balances WHERE organizer_address = $1 ORDER BY event_id`
	var balances []models.OrganizerBalance
	if err := r.db.SelectContext(ctx, &balances, query, organizer); err != nil {
		return nil, fmt.Errorf("list organizer balances: %w", err)
	}
	return balances, nil
}
