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

// AttendanceService settles attendance proofs: a participant presents the
// session code during the session window and gets one commitment slice back.
type AttendanceService struct {
	settlement settlementRunner
	ledger     token.Ledger
	emitter    notificationEmitter
	logger     *zap.Logger
	clock      clock.Clock
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(settlement settlementRunner, ledger token.Ledger, emitter notificationEmitter, logger *zap.Logger, clk clock.Clock) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &AttendanceService{settlement: settlement, ledger: ledger, emitter: emitter, logger: logger, clock: clk}
}

// Attend records an attendance proof and refunds the session's commitment
// slice. One proof per participant per session; the final session pays the
// exact remainder so the stake round-trips to zero.
func (s *AttendanceService) Attend(ctx context.Context, eventID int64, index int, address, code string) (*models.Attendance, error) {
	if len(code) != models.SessionCodeLength {
		return nil, appErrors.Clonef(appErrors.ErrCodeLength, "code must be exactly %d characters", models.SessionCodeLength)
	}
	now := s.clock.Now()
	var proof *models.Attendance
	err := s.settlement.Run(ctx, func(tx repository.SettlementTx) error {
		event, err := tx.EventForUpdate(ctx, eventID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clonef(appErrors.ErrEventNotFound, "event %d does not exist", eventID)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load event")
		}
		session, err := tx.Session(ctx, eventID, index)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clonef(appErrors.ErrSessionNotFound, "event %d has no session %d", eventID, index)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load session")
		}
		participant, err := tx.Participant(ctx, eventID, address)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clonef(appErrors.ErrNotFound, "no enrollment for %s on event %d", address, eventID)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load enrollment")
		}
		if !session.CodeSet() {
			return appErrors.Clonef(appErrors.ErrSessionInactive, "session %d has no code issued yet", index)
		}
		if now.Before(session.StartTime) || !now.Before(session.EndTime) {
			return appErrors.Clonef(appErrors.ErrSessionInactive, "session %d window is %s to %s", index, session.StartTime, session.EndTime)
		}
		if *session.Code != code {
			return appErrors.Clonef(appErrors.ErrCodeMismatch, "code does not match session %d", index)
		}
		attended, err := tx.HasAttendance(ctx, eventID, address, index)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check attendance")
		}
		if attended {
			return appErrors.Clonef(appErrors.ErrAlreadyAttended, "%s already attended session %d", address, index)
		}

		decimals, err := s.ledger.Decimals(ctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read token decimals")
		}
		scaledCommitment := scaleAmount(event.CommitmentAmount, decimals)
		reward := attendanceReward(scaledCommitment, event.TotalSessions, participant.AttendedSessionsCount, participant.CommitmentBalance)

		proof = &models.Attendance{
			EventID:      eventID,
			Address:      address,
			SessionIndex: index,
			AttendedAt:   now,
			RewardAmount: reward,
		}
		if err := tx.InsertAttendance(ctx, proof); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist attendance")
		}
		if reward > 0 {
			if err := tx.DebitParticipant(ctx, eventID, address, reward); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "debit commitment balance")
			}
		} else {
			if err := tx.DebitParticipant(ctx, eventID, address, 0); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "count attendance")
			}
		}
		if err := tx.IncrementSessionAttended(ctx, eventID, index); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "count session attendance")
		}
		if reward > 0 {
			if err := s.ledger.Transfer(ctx, address, reward); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "pay attendance reward")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("attendance settled",
		zap.Int64("event_id", eventID),
		zap.Int("session_index", index),
		zap.String("address", address),
		zap.Int64("reward", proof.RewardAmount))
	idx := index
	s.emitter.Emit(models.Notification{
		ID:           uuid.NewString(),
		Type:         models.NotifyAttended,
		EventID:      eventID,
		SessionIndex: &idx,
		Address:      address,
		Amount:       proof.RewardAmount,
		EmittedAt:    now,
	})
	return proof, nil
}
