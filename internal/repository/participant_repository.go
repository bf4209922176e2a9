package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/attendfi/attendfi-api/internal/models"
)

// ParticipantRepository serves the read side of enrollments and attendance
// proofs.
type ParticipantRepository struct {
	db *sqlx.DB
}

// NewParticipantRepository constructs a ParticipantRepository.
func NewParticipantRepository(db *sqlx.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// Find fetches a participant record for an event.
func (r *ParticipantRepository) Find(ctx context.Context, eventID int64, address string) (*models.Participant, error) {
	const query = `SELECT event_id, address, enrolled_at, commitment_balance, attended_sessions_count
        FROM participants WHERE event_id = $1 AND address = $2`
	var participant models.Participant
	if err := r.db.GetContext(ctx, &participant, query, eventID, address); err != nil {
		return nil, err
	}
	return &participant, nil
}

// Exists reports whether an address already enrolled in an event.
func (r *ParticipantRepository) Exists(ctx context.Context, eventID int64, address string) (bool, error) {
	const query = `SELECT 1 FROM participants WHERE event_id = $1 AND address = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, eventID, address); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// ListByEvent returns all participants of an event ordered by enrollment time.
func (r *ParticipantRepository) ListByEvent(ctx context.Context, eventID int64) ([]models.Participant, error) {
	const query = `SELECT event_id, address, enrolled_at, commitment_balance, attended_sessions_count
        FROM participants WHERE event_id = $1 ORDER BY enrolled_at`
	var participants []models.Participant
	if err := r.db.SelectContext(ctx, &participants, query, eventID); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return participants, nil
}

// ListByAddress returns every enrollment of one address across events.
func (r *ParticipantRepository) ListByAddress(ctx context.Context, address string) ([]models.Participant, error) {
	const query = `SELECT event_id, address, enrolled_at, commitment_balance, attended_sessions_count
        FROM participants WHERE address = $1 ORDER BY enrolled_at DESC`
	var participants []models.Participant
	if err := r.db.SelectContext(ctx, &participants, query, address); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return participants, nil
}

// Attendance returns the proofs one participant holds on an event.
func (r *ParticipantRepository) Attendance(ctx context.Context, eventID int64, address string) ([]models.Attendance, error) {
	const query = `SELECT event_id, address, session_index, attended_at, reward_amount
        FROM attendance WHERE event_id = $1 AND address = $2 ORDER BY session_index`
	var proofs []models.Attendance
	if err := r.db.SelectContext(ctx, &proofs, query, eventID, address); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return proofs, nil
}

// AttendanceBySession returns every proof recorded for one session.
func (r *ParticipantRepository) AttendanceBySession(ctx context.Context, eventID int64, index int) ([]models.Attendance, error) {
	const query = `SELECT event_id, address, session_index, attended_at, reward_amount
        FROM attendance WHERE event_id = $1 AND session_index = $2 ORDER BY attended_at`
	var proofs []models.Attendance
	if err := r.db.SelectContext(ctx, &proofs, query, eventID, index); err != nil {
		return nil, fmt.Errorf("list session attendance: %w", err)
	}
	return proofs, nil
}
