package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/attendfi/attendfi-api/internal/models"
	"github.com/attendfi/attendfi-api/internal/repository"
	"github.com/attendfi/attendfi-api/pkg/clock"
	appErrors "github.com/attendfi/attendfi-api/pkg/errors"
)

type eventReader interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
	FindByID(ctx context.Context, id int64) (*models.Event, error)
	Sessions(ctx context.Context, eventID int64) ([]models.Session, error)
	FindSession(ctx context.Context, eventID int64, index int) (*models.Session, error)
}

type protocolReader interface {
	State(ctx context.Context) (*models.ProtocolState, error)
}

// EventService owns event publication, the protocol session cap, and the read
// side of events.
type EventService struct {
	settlement settlementRunner
	events     eventReader
	protocol   protocolReader
	emitter    notificationEmitter
	validator  *validator.Validate
	logger     *zap.Logger
	clock      clock.Clock
}

// NewEventService constructs the event service.
func NewEventService(settlement settlementRunner, events eventReader, protocol protocolReader, emitter notificationEmitter, validate *validator.Validate, logger *zap.Logger, clk clock.Clock) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &EventService{settlement: settlement, events: events, protocol: protocol, emitter: emitter, validator: validate, logger: logger, clock: clk}
}

// SessionWindow is one schedule entry of a create request.
type SessionWindow struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

// CreateEventRequest describes the publication payload. Amounts are unscaled
// unit prices; the session list is the immutable schedule.
type CreateEventRequest struct {
	Title            string          `json:"title" validate:"required,max=200"`
	Description      string          `json:"description" validate:"max=2000"`
	PriceAmount      int64           `json:"price_amount" validate:"gte=0"`
	CommitmentAmount int64           `json:"commitment_amount" validate:"gte=0"`
	StartSaleDate    time.Time       `json:"start_sale_date" validate:"required"`
	EndSaleDate      time.Time       `json:"end_sale_date" validate:"required"`
	Sessions         []SessionWindow `json:"sessions" validate:"required,min=1,dive"`
}

// EventView is the caller-aware read model: session codes are only revealed to
// the event organizer.
type EventView struct {
	models.Event
	Sessions []models.SessionView `json:"sessions"`
}

// CreateEvent publishes a new event with its full session schedule in one
// transaction. The schedule and terms are immutable afterwards.
func (s *EventService) CreateEvent(ctx context.Context, organizer string, req CreateEventRequest) (*EventView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	now := s.clock.Now()
	if req.StartSaleDate.Before(now) {
		return nil, appErrors.Clonef(appErrors.ErrSaleWindow, "sale start %s is in the past", req.StartSaleDate)
	}
	if req.EndSaleDate.Before(now) {
		return nil, appErrors.Clonef(appErrors.ErrSaleWindow, "sale end %s is in the past", req.EndSaleDate)
	}
	if req.EndSaleDate.Before(req.StartSaleDate) {
		return nil, appErrors.Clone(appErrors.ErrSaleWindow, "sale must not end before it starts")
	}
	// The schedule is taken as given; only the last entry is checked against
	// the sale window.
	if !req.Sessions[len(req.Sessions)-1].EndTime.After(req.EndSaleDate) {
		return nil, appErrors.Clone(appErrors.ErrSessionSchedule, "last session must end after the sale period")
	}

	event := &models.Event{
		OrganizerAddress:   organizer,
		Title:              req.Title,
		Description:        req.Description,
		PriceAmount:        req.PriceAmount,
		CommitmentAmount:   req.CommitmentAmount,
		TotalSessions:      len(req.Sessions),
		StartSaleDate:      req.StartSaleDate.UTC(),
		EndSaleDate:        req.EndSaleDate.UTC(),
		LastSessionEndTime: req.Sessions[len(req.Sessions)-1].EndTime.UTC(),
		CreatedAt:          now,
	}

	var sessions []models.Session
	err := s.settlement.Run(ctx, func(tx repository.SettlementTx) error {
		state, err := tx.ProtocolForUpdate(ctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read protocol state")
		}
		if len(req.Sessions) > state.MaxSessionsPerEvent {
			return appErrors.Clonef(appErrors.ErrSessionCount, "session count %d exceeds the protocol cap %d", len(req.Sessions), state.MaxSessionsPerEvent)
		}
		if err := tx.InsertEvent(ctx, event); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist event")
		}
		sessions = make([]models.Session, 0, len(req.Sessions))
		for i, window := range req.Sessions {
			sessions = append(sessions, models.Session{
				EventID:      event.ID,
				SessionIndex: i,
				StartTime:    window.StartTime.UTC(),
				EndTime:      window.EndTime.UTC(),
			})
		}
		if err := tx.InsertSessions(ctx, sessions); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist sessions")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("event created",
		zap.Int64("event_id", event.ID),
		zap.String("organizer", organizer),
		zap.Int("sessions", event.TotalSessions))
	s.emit(models.NotifyEventCreated, event.ID, nil, organizer, 0)
	for i := range sessions {
		index := i
		s.emit(models.NotifySessionCreated, event.ID, &index, organizer, 0)
	}

	return s.view(event, sessions, organizer), nil
}

// SetMaxSessions tunes the protocol-wide cap on sessions per event. Existing
// events keep their schedules; only future publications are bounded.
func (s *EventService) SetMaxSessions(ctx context.Context, max int) (*models.ProtocolState, error) {
	if max < 1 {
		return nil, appErrors.Clonef(appErrors.ErrSessionCount, "max sessions must be at least 1, got %d", max)
	}
	var state *models.ProtocolState
	err := s.settlement.Run(ctx, func(tx repository.SettlementTx) error {
		current, err := tx.ProtocolForUpdate(ctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read protocol state")
		}
		if err := tx.SetMaxSessions(ctx, max); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update session cap")
		}
		current.MaxSessionsPerEvent = max
		state = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("protocol session cap updated", zap.Int("max_sessions", max))
	s.emit(models.NotifyMaxSessionsConfigured, 0, nil, "", int64(max))
	return state, nil
}

// List returns events matching the filter together with pagination metadata.
func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]models.Event, *models.Pagination, error) {
	events, total, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list events")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return events, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns an event with its schedule. The viewer address decides whether
// issued session codes are revealed.
func (s *EventService) Get(ctx context.Context, eventID int64, viewer string) (*EventView, error) {
	event, err := s.findEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.events.Sessions(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load sessions")
	}
	return s.view(event, sessions, viewer), nil
}

// GetSession returns one session of an event, organizer-aware.
func (s *EventService) GetSession(ctx context.Context, eventID int64, index int, viewer string) (*models.SessionView, error) {
	event, err := s.findEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	session, err := s.events.FindSession(ctx, eventID, index)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrSessionNotFound, "event %d has no session %d", eventID, index)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load session")
	}
	view := models.SessionView{Session: *session}
	if viewer == event.OrganizerAddress {
		view.RevealedCode = session.Code
	}
	return &view, nil
}

// ProtocolState returns the running TVL and the current session cap.
func (s *EventService) ProtocolState(ctx context.Context) (*models.ProtocolState, error) {
	state, err := s.protocol.State(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read protocol state")
	}
	return state, nil
}

func (s *EventService) findEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrEventNotFound, "event %d does not exist", eventID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load event")
	}
	return event, nil
}

func (s *EventService) view(event *models.Event, sessions []models.Session, viewer string) *EventView {
	views := make([]models.SessionView, 0, len(sessions))
	organizer := viewer == event.OrganizerAddress
	for _, session := range sessions {
		view := models.SessionView{Session: session}
		if organizer {
			view.RevealedCode = session.Code
		}
		views = append(views, view)
	}
	return &EventView{Event: *event, Sessions: views}
}

func (s *EventService) emit(kind models.NotificationType, eventID int64, index *int, address string, amount int64) {
	s.emitter.Emit(models.Notification{
		ID:           uuid.NewString(),
		Type:         kind,
		EventID:      eventID,
		SessionIndex: index,
		Address:      address,
		Amount:       amount,
		EmittedAt:    s.clock.Now(),
	})
}
