package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/attendfi/attendfi-api/internal/models"
)

const eventColumns = `id, organizer_address, title, description, price_amount, commitment_amount,
    total_sessions, start_sale_date, end_sale_date, last_session_end_time, enrolled_count, created_at`

const sessionColumns = `event_id, session_index, start_time, end_time, attended_count, code, code_set_at,
    released_amount, unattended_claimed_at, unattended_organizer_fee, unattended_protocol_fee`

// EventRepository serves the read side of events and their schedules. All
// writes go through SettlementRepository so the one-shot guards hold.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// List returns events matching the provided filters.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.OrganizerAddress != "" {
		conditions = append(conditions, fmt.Sprintf("organizer_address = $%d", len(args)+1))
		args = append(args, filter.OrganizerAddress)
	}
	where := strings.Join(conditions, " AND ")

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"created_at":      "created_at",
		"start_sale_date": "start_sale_date",
		"end_sale_date":   "end_sale_date",
		"enrolled_count":  "enrolled_count",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		eventColumns, where, column, order, size, offset)

	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM events WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	return events, total, nil
}

// FindByID fetches one event by its identifier.
func (r *EventRepository) FindByID(ctx context.Context, id int64) (*models.Event, error) {
	query := fmt.Sprintf("SELECT %s FROM events WHERE id = $1", eventColumns)
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// Sessions returns the full schedule of an event ordered by index.
func (r *EventRepository) Sessions(ctx context.Context, eventID int64) ([]models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM event_sessions WHERE event_id = $1 ORDER BY session_index", sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, eventID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// FindSession fetches one session of an event by index.
func (r *EventRepository) FindSession(ctx context.Context, eventID int64, index int) (*models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM event_sessions WHERE event_id = $1 AND session_index = $2", sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, eventID, index); err != nil {
		return nil, err
	}
	return &session, nil
}
