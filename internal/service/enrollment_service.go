package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/attendfi/attendfi-api/internal/models"
	"github.com/attendfi/attendfi-api/internal/repository"
	"github.com/attendfi/attendfi-api/internal/token"
	"github.com/attendfi/attendfi-api/pkg/clock"
	appErrors "github.com/attendfi/attendfi-api/pkg/errors"
)

type participantReader interface {
	Find(ctx context.Context, eventID int64, address string) (*models.Participant, error)
	ListByAddress(ctx context.Context, address string) ([]models.Participant, error)
	Attendance(ctx context.Context, eventID int64, address string) ([]models.Attendance, error)
}

// EnrollmentService handles participant enrollment: collecting price plus
// commitment stake and opening the per-event ledgers.
type EnrollmentService struct {
	settlement   settlementRunner
	participants participantReader
	ledger       token.Ledger
	custody      string
	emitter      notificationEmitter
	logger       *zap.Logger
	clock        clock.Clock
}

// NewEnrollmentService constructs the enrollment service. The custody address
// is the ledger account holding stakes and protocol funds.
func NewEnrollmentService(settlement settlementRunner, participants participantReader, ledger token.Ledger, custody string, emitter notificationEmitter, logger *zap.Logger, clk clock.Clock) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &EnrollmentService{settlement: settlement, participants: participants, ledger: ledger, custody: custody, emitter: emitter, logger: logger, clock: clk}
}

// Enroll joins a participant to an event during the sale period. Price and
// commitment are collected in one token transfer; the transfer runs inside the
// settlement transaction so a failed pull leaves no enrollment behind.
func (s *EnrollmentService) Enroll(ctx context.Context, eventID int64, address string) (*models.Participant, error) {
	now := s.clock.Now()
	var participant *models.Participant
	var total int64
	err := s.settlement.Run(ctx, func(tx repository.SettlementTx) error {
		event, err := tx.EventForUpdate(ctx, eventID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clonef(appErrors.ErrEventNotFound, "event %d does not exist", eventID)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load event")
		}
		if now.Before(event.StartSaleDate) || now.After(event.EndSaleDate) {
			return appErrors.Clonef(appErrors.ErrSaleClosed, "sale for event %d runs %s to %s", eventID, event.StartSaleDate, event.EndSaleDate)
		}
		if _, err := tx.Participant(ctx, eventID, address); err == nil {
			return appErrors.Clonef(appErrors.ErrAlreadyEnrolled, "%s already enrolled in event %d", address, eventID)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check enrollment")
		}

		decimals, err := s.ledger.Decimals(ctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read token decimals")
		}
		scaledPrice := scaleAmount(event.PriceAmount, decimals)
		scaledCommitment := scaleAmount(event.CommitmentAmount, decimals)
		total = scaledPrice + scaledCommitment

		if total > 0 {
			allowance, err := s.ledger.Allowance(ctx, address, s.custody)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read allowance")
			}
			if allowance < total {
				return appErrors.Clonef(appErrors.ErrInsufficientAllowance, "allowance %d below required %d", allowance, total)
			}
			balance, err := s.ledger.BalanceOf(ctx, address)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read balance")
			}
			if balance < total {
				return appErrors.Clonef(appErrors.ErrInsufficientBalance, "balance %d below required %d", balance, total)
			}
		}

		participant = &models.Participant{
			EventID:           eventID,
			Address:           address,
			EnrolledAt:        now,
			CommitmentBalance: scaledCommitment,
		}
		if err := tx.InsertParticipant(ctx, participant); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist enrollment")
		}
		if err := tx.IncrementEnrolled(ctx, eventID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "count enrollment")
		}
		claimable, vested := splitPrice(scaledPrice)
		if claimable > 0 || vested > 0 {
			if err := tx.CreditOrganizer(ctx, event.OrganizerAddress, eventID, claimable, vested); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "credit organizer")
			}
		}
		if total > 0 {
			if err := s.ledger.TransferFrom(ctx, address, s.custody, total); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInsufficientBalance.Code, appErrors.ErrInsufficientBalance.Status, "collect enrollment payment")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("participant enrolled",
		zap.Int64("event_id", eventID),
		zap.String("address", address),
		zap.Int64("total_debited", total))
	// the notification carries the full amount pulled from the participant,
	// price and commitment together
	s.emitter.Emit(models.Notification{
		ID:        uuid.NewString(),
		Type:      models.NotifyEnrolled,
		EventID:   eventID,
		Address:   address,
		Amount:    total,
		EmittedAt: now,
	})
	return participant, nil
}

// GetParticipant returns the enrollment record with its attendance proofs.
func (s *EnrollmentService) GetParticipant(ctx context.Context, eventID int64, address string) (*models.ParticipantDetail, error) {
	participant, err := s.participants.Find(ctx, eventID, address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "no enrollment for %s on event %d", address, eventID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load enrollment")
	}
	proofs, err := s.participants.Attendance(ctx, eventID, address)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load attendance")
	}
	return &models.ParticipantDetail{Participant: *participant, Attendance: proofs}, nil
}

// ListEnrollments returns every enrollment of one address.
func (s *EnrollmentService) ListEnrollments(ctx context.Context, address string) ([]models.Participant, error) {
	enrollments, err := s.participants.ListByAddress(ctx, address)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list enrollments")
	}
	return enrollments, nil
}
