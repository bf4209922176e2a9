package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/attendfi/attendfi-api/internal/models"
	"github.com/attendfi/attendfi-api/pkg/clock"
	appErrors "github.com/attendfi/attendfi-api/pkg/errors"
	"github.com/attendfi/attendfi-api/pkg/export"
	"github.com/attendfi/attendfi-api/pkg/storage"
)

// StatementFormat selects the rendered statement format.
type StatementFormat string

const (
	StatementCSV StatementFormat = "csv"
	StatementPDF StatementFormat = "pdf"
)

type statementEventReader interface {
	FindByID(ctx context.Context, id int64) (*models.Event, error)
	Sessions(ctx context.Context, eventID int64) ([]models.Session, error)
}

type statementParticipantReader interface {
	ListByEvent(ctx context.Context, eventID int64) ([]models.Participant, error)
}

type statementOrganizerReader interface {
	Balance(ctx context.Context, organizer string, eventID int64) (*models.OrganizerBalance, error)
}

type statementArchive interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
}

// Statement is a rendered settlement statement.
type Statement struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// StatementLink is an expiring download reference to an archived statement.
type StatementLink struct {
	StatementID string    `json:"statement_id"`
	Token       string    `json:"token"`
	Filename    string    `json:"filename"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// StatementService renders per-event settlement statements for organizers:
// session-level vesting and unattended-fee figures plus the participant
// commitment ledger.
type StatementService struct {
	events       statementEventReader
	participants statementParticipantReader
	organizers   statementOrganizerReader
	archive      statementArchive
	signer       *storage.SignedURLSigner
	logger       *zap.Logger
	clock        clock.Clock
}

// NewStatementService constructs the statement service.
func NewStatementService(events statementEventReader, participants statementParticipantReader, organizers statementOrganizerReader, logger *zap.Logger, clk clock.Clock) *StatementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &StatementService{events: events, participants: participants, organizers: organizers, logger: logger, clock: clk}
}

// WithArchive enables archived statements and signed download links.
func (s *StatementService) WithArchive(archive statementArchive, signer *storage.SignedURLSigner) *StatementService {
	s.archive = archive
	s.signer = signer
	return s
}

// EventStatement renders the settlement statement of one event. Only the
// organizer may request it.
func (s *StatementService) EventStatement(ctx context.Context, eventID int64, caller string, format StatementFormat) (*Statement, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrEventNotFound, "event %d does not exist", eventID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load event")
	}
	if caller != event.OrganizerAddress {
		return nil, appErrors.Clonef(appErrors.ErrNotOrganizer, "only %s may export statements for event %d", event.OrganizerAddress, eventID)
	}

	sessions, err := s.events.Sessions(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load sessions")
	}
	participants, err := s.participants.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load participants")
	}
	balance, err := s.organizers.Balance(ctx, event.OrganizerAddress, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load organizer balance")
	}

	dataset := buildStatementDataset(event, sessions, participants, balance)
	title := fmt.Sprintf("Settlement statement - event %d - %s", event.ID, event.Title)

	var payload []byte
	var contentType, ext string
	switch format {
	case StatementPDF:
		payload, err = export.PDF(dataset, title)
		contentType, ext = "application/pdf", "pdf"
	case StatementCSV, "":
		payload, err = export.CSV(dataset)
		contentType, ext = "text/csv", "csv"
	default:
		return nil, appErrors.Clonef(appErrors.ErrValidation, "unsupported statement format %q", format)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render statement")
	}

	s.logger.Info("statement rendered",
		zap.Int64("event_id", eventID),
		zap.String("format", string(format)),
		zap.Int("bytes", len(payload)))
	return &Statement{
		Filename:    fmt.Sprintf("event-%d-statement-%s.%s", eventID, s.clock.Now().Format("20060102"), ext),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

// StatementLink renders the statement, archives it and returns an expiring
// download token. Requires WithArchive.
func (s *StatementService) StatementLink(ctx context.Context, eventID int64, caller string, format StatementFormat) (*StatementLink, error) {
	if s.archive == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "statement archive is not configured")
	}
	statement, err := s.EventStatement(ctx, eventID, caller, format)
	if err != nil {
		return nil, err
	}
	statementID := uuid.NewString()
	filename := fmt.Sprintf("event-%d/%s-%s", eventID, statementID, statement.Filename)
	if _, err := s.archive.Save(filename, statement.Payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "archive statement")
	}
	token, expiresAt, err := s.signer.Generate(statementID, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign statement link")
	}
	s.logger.Info("statement archived",
		zap.Int64("event_id", eventID),
		zap.String("statement_id", statementID),
		zap.Time("expires_at", expiresAt))
	return &StatementLink{
		StatementID: statementID,
		Token:       token,
		Filename:    statement.Filename,
		ExpiresAt:   expiresAt,
	}, nil
}

// StatementByToken resolves a signed download token back to the archived
// payload.
func (s *StatementService) StatementByToken(token string) (*Statement, error) {
	if s.archive == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "statement archive is not configured")
	}
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid statement token")
	}
	payload, err := s.archive.Read(relPath)
	if err != nil {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "statement %s is no longer available", relPath)
	}
	contentType := "text/csv"
	if strings.HasSuffix(relPath, ".pdf") {
		contentType = "application/pdf"
	}
	return &Statement{
		Filename:    filepath.Base(relPath),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

func buildStatementDataset(event *models.Event, sessions []models.Session, participants []models.Participant, balance *models.OrganizerBalance) export.Dataset {
	headers := []string{"Section", "Reference", "Detail", "Amount"}
	rows := []map[string]string{
		{"Section": "event", "Reference": strconv.FormatInt(event.ID, 10), "Detail": "enrolled", "Amount": strconv.Itoa(event.EnrolledCount)},
		{"Section": "ledger", "Reference": "claimable", "Detail": balance.OrganizerAddress, "Amount": strconv.FormatInt(balance.Claimable, 10)},
		{"Section": "ledger", "Reference": "vested", "Detail": balance.OrganizerAddress, "Amount": strconv.FormatInt(balance.Vested, 10)},
		{"Section": "ledger", "Reference": "claimed", "Detail": balance.OrganizerAddress, "Amount": strconv.FormatInt(balance.Claimed, 10)},
	}
	for _, session := range sessions {
		detail := "pending"
		if session.CodeSet() {
			detail = "code set " + session.CodeSetAt.Format(time.RFC3339)
		}
		rows = append(rows, map[string]string{
			"Section":   "session",
			"Reference": strconv.Itoa(session.SessionIndex),
			"Detail":    detail,
			"Amount":    strconv.FormatInt(session.ReleasedAmount, 10),
		})
		if session.UnattendedClaimed() {
			rows = append(rows, map[string]string{
				"Section":   "unattended",
				"Reference": strconv.Itoa(session.SessionIndex),
				"Detail":    "organizer fee",
				"Amount":    strconv.FormatInt(session.UnattendedOrganizerFee, 10),
			})
			rows = append(rows, map[string]string{
				"Section":   "unattended",
				"Reference": strconv.Itoa(session.SessionIndex),
				"Detail":    "protocol fee",
				"Amount":    strconv.FormatInt(session.UnattendedProtocolFee, 10),
			})
		}
	}
	for _, participant := range participants {
		rows = append(rows, map[string]string{
			"Section":   "participant",
			"Reference": participant.Address,
			"Detail":    fmt.Sprintf("attended %d", participant.AttendedSessionsCount),
			"Amount":    strconv.FormatInt(participant.CommitmentBalance, 10),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
