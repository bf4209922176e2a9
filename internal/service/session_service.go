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

// SessionService handles attendance-code issuance. Setting a code is the
// organizer's liveness proof for a session and unlocks one vesting release.
type SessionService struct {
	settlement settlementRunner
	ledger     token.Ledger
	emitter    notificationEmitter
	logger     *zap.Logger
	clock      clock.Clock
}

// NewSessionService constructs the session service.
func NewSessionService(settlement settlementRunner, ledger token.Ledger, emitter notificationEmitter, logger *zap.Logger, clk clock.Clock) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &SessionService{settlement: settlement, ledger: ledger, emitter: emitter, logger: logger, clock: clk}
}

// SetSessionCode issues the attendance code for one session, one-shot, and
// releases the session's vested revenue slice to the organizer. Callable only
// by the organizer while the session window is open.
func (s *SessionService) SetSessionCode(ctx context.Context, eventID int64, index int, caller, code string) (*models.SessionView, error) {
	if len(code) != models.SessionCodeLength {
		return nil, appErrors.Clonef(appErrors.ErrCodeLength, "code must be exactly %d characters", models.SessionCodeLength)
	}
	now := s.clock.Now()
	var (
		event   *models.Event
		session *models.Session
		release int64
	)
	err := s.settlement.Run(ctx, func(tx repository.SettlementTx) error {
		var err error
		event, err = tx.EventForUpdate(ctx, eventID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clonef(appErrors.ErrEventNotFound, "event %d does not exist", eventID)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load event")
		}
		if caller != event.OrganizerAddress {
			return appErrors.Clonef(appErrors.ErrNotOrganizer, "only %s may set codes for event %d", event.OrganizerAddress, eventID)
		}
		session, err = tx.Session(ctx, eventID, index)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clonef(appErrors.ErrSessionNotFound, "event %d has no session %d", eventID, index)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load session")
		}
		if session.CodeSet() {
			return appErrors.Clonef(appErrors.ErrCodeAlreadySet, "session %d already has a code", index)
		}
		if now.Before(session.StartTime) || !now.Before(session.EndTime) {
			return appErrors.Clonef(appErrors.ErrSessionInactive, "session %d window is %s to %s", index, session.StartTime, session.EndTime)
		}

		decimals, err := s.ledger.Decimals(ctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read token decimals")
		}
		scaledPrice := scaleAmount(event.PriceAmount, decimals)
		release = vestingReleaseAmount(scaledPrice, event.TotalSessions, event.EnrolledCount)

		balance, err := tx.OrganizerBalance(ctx, event.OrganizerAddress, eventID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load organizer balance")
		}
		if balance.Vested < release {
			// A free or empty event has nothing vested to release; the code
			// is still issued so attendance proofs work.
			if event.CommitmentAmount == 0 || event.EnrolledCount == 0 {
				release = 0
			} else {
				return appErrors.Clonef(appErrors.ErrNothingVested, "vested %d below release %d", balance.Vested, release)
			}
		}
		release = foldDust(release, balance.Vested)

		if err := tx.SetSessionCode(ctx, eventID, index, code, now); err != nil {
			return appErrors.Clonef(appErrors.ErrCodeAlreadySet, "session %d already has a code", index)
		}
		if release > 0 {
			if err := tx.ReleaseVesting(ctx, event.OrganizerAddress, eventID, index, release); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "release vesting")
			}
			if err := s.ledger.Transfer(ctx, event.OrganizerAddress, release); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "pay vesting release")
			}
		}
		session.Code = &code
		session.CodeSetAt = &now
		session.ReleasedAmount = release
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitCodeSet(event, index, release)
	s.logger.Info("session code set",
		zap.Int64("event_id", eventID),
		zap.Int("session_index", index),
		zap.Int64("released", release))
	return &models.SessionView{Session: *session, RevealedCode: session.Code}, nil
}

func (s *SessionService) emitCodeSet(event *models.Event, index int, release int64) {
	idx := index
	s.emitter.Emit(models.Notification{
		ID:           uuid.NewString(),
		Type:         models.NotifySessionCodeSet,
		EventID:      event.ID,
		SessionIndex: &idx,
		Address:      event.OrganizerAddress,
		EmittedAt:    s.clock.Now(),
	})
	if release > 0 {
		s.emitter.Emit(models.Notification{
			ID:           uuid.NewString(),
			Type:         models.NotifyVestingReleased,
			EventID:      event.ID,
			SessionIndex: &idx,
			Address:      event.OrganizerAddress,
			Amount:       release,
			EmittedAt:    s.clock.Now(),
		})
	}
}
