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

type organizerReader interface {
	Balance(ctx context.Context, organizer string, eventID int64) (*models.OrganizerBalance, error)
	ListByOrganizer(ctx context.Context, organizer string) ([]models.OrganizerBalance, error)
}

// ClaimService settles organizer payouts: the immediately claimable revenue
// half and the forfeited commitment of no-shows.
type ClaimService struct {
	settlement settlementRunner
	organizers organizerReader
	ledger     token.Ledger
	emitter    notificationEmitter
	logger     *zap.Logger
	clock      clock.Clock
}

// NewClaimService constructs the claim service.
func NewClaimService(settlement settlementRunner, organizers organizerReader, ledger token.Ledger, emitter notificationEmitter, logger *zap.Logger, clk clock.Clock) *ClaimService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &ClaimService{settlement: settlement, organizers: organizers, ledger: ledger, emitter: emitter, logger: logger, clock: clk}
}

// ClaimResult reports one settled payout.
type ClaimResult struct {
	EventID      int64  `json:"event_id"`
	SessionIndex *int   `json:"session_index,omitempty"`
	Amount       int64  `json:"amount"`
	ProtocolFee  int64  `json:"protocol_fee,omitempty"`
	Organizer    string `json:"organizer"`
}

// ClaimFirstPortion drains the organizer's claimable revenue into claimed and
// pays it out. Repeatable across the life of the event: new enrollments
// replenish claimable, a claim with nothing accrued fails.
func (s *ClaimService) ClaimFirstPortion(ctx context.Context, eventID int64, caller string) (*ClaimResult, error) {
	now := s.clock.Now()
	var result *ClaimResult
	err := s.settlement.Run(ctx, func(tx repository.SettlementTx) error {
		event, err := tx.EventForUpdate(ctx, eventID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clonef(appErrors.ErrEventNotFound, "event %d does not exist", eventID)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load event")
		}
		if caller != event.OrganizerAddress {
			return appErrors.Clonef(appErrors.ErrNotOrganizer, "only %s may claim for event %d", event.OrganizerAddress, eventID)
		}
		balance, err := tx.OrganizerBalance(ctx, event.OrganizerAddress, eventID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load organizer balance")
		}
		if balance.Claimable <= 0 {
			return appErrors.Clonef(appErrors.ErrNothingToClaim, "event %d has no claimable revenue", eventID)
		}
		amount := balance.Claimable
		if err := tx.PayoutClaimable(ctx, event.OrganizerAddress, eventID, amount); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "payout claimable")
		}
		if err := s.ledger.Transfer(ctx, event.OrganizerAddress, amount); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "pay first portion")
		}
		result = &ClaimResult{EventID: eventID, Amount: amount, Organizer: event.OrganizerAddress}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("first portion claimed",
		zap.Int64("event_id", eventID),
		zap.String("organizer", result.Organizer),
		zap.Int64("amount", result.Amount))
	s.emitter.Emit(models.Notification{
		ID:        uuid.NewString(),
		Type:      models.NotifyFirstPortionClaimed,
		EventID:   eventID,
		Address:   result.Organizer,
		Amount:    result.Amount,
		EmittedAt: now,
	})
	return result, nil
}

// ClaimUnattendedFees settles the forfeited commitment of a finished session's
// no-shows: 70 percent to the organizer, the remainder to protocol TVL. One
// shot per session.
func (s *ClaimService) ClaimUnattendedFees(ctx context.Context, eventID int64, index int, caller string) (*ClaimResult, error) {
	now := s.clock.Now()
	var result *ClaimResult
	err := s.settlement.Run(ctx, func(tx repository.SettlementTx) error {
		event, err := tx.EventForUpdate(ctx, eventID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clonef(appErrors.ErrEventNotFound, "event %d does not exist", eventID)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load event")
		}
		if caller != event.OrganizerAddress {
			return appErrors.Clonef(appErrors.ErrNotOrganizer, "only %s may claim for event %d", event.OrganizerAddress, eventID)
		}
		session, err := tx.Session(ctx, eventID, index)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clonef(appErrors.ErrSessionNotFound, "event %d has no session %d", eventID, index)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load session")
		}
		if !now.After(session.EndTime) {
			return appErrors.Clonef(appErrors.ErrSessionNotOver, "session %d ends %s", index, session.EndTime)
		}
		if !session.CodeSet() {
			return appErrors.Clonef(appErrors.ErrSessionInactive, "session %d has no code issued yet", index)
		}
		if session.UnattendedClaimed() {
			return appErrors.Clonef(appErrors.ErrAlreadyClaimed, "session %d unattended fees already claimed", index)
		}

		decimals, err := s.ledger.Decimals(ctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read token decimals")
		}
		scaledCommitment := scaleAmount(event.CommitmentAmount, decimals)
		total, organizerShare, protocolShare := unattendedFees(scaledCommitment, event.TotalSessions, event.EnrolledCount, session.AttendedCount)
		if total <= 0 {
			return appErrors.Clonef(appErrors.ErrNoUnattended, "session %d has no unattended fees", index)
		}
		if err := tx.SettleUnattended(ctx, eventID, index, now, organizerShare, protocolShare); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "settle unattended fees")
		}
		// The protocol share stays in custody and is accounted as TVL.
		if organizerShare > 0 {
			if err := s.ledger.Transfer(ctx, event.OrganizerAddress, organizerShare); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "pay unattended fees")
			}
		}
		result = &ClaimResult{
			EventID:      eventID,
			SessionIndex: &index,
			Amount:       organizerShare,
			ProtocolFee:  protocolShare,
			Organizer:    event.OrganizerAddress,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("unattended fees claimed",
		zap.Int64("event_id", eventID),
		zap.Int("session_index", index),
		zap.Int64("organizer_fee", result.Amount),
		zap.Int64("protocol_fee", result.ProtocolFee))
	idx := index
	s.emitter.Emit(models.Notification{
		ID:           uuid.NewString(),
		Type:         models.NotifyUnattendedClaimed,
		EventID:      eventID,
		SessionIndex: &idx,
		Address:      result.Organizer,
		Amount:       result.Amount,
		EmittedAt:    now,
	})
	return result, nil
}

// OrganizerBalance returns the revenue ledger for one organizer on one event.
func (s *ClaimService) OrganizerBalance(ctx context.Context, organizer string, eventID int64) (*models.OrganizerBalance, error) {
	balance, err := s.organizers.Balance(ctx, organizer, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load organizer balance")
	}
	return balance, nil
}

// OrganizerBalances returns every event ledger of one organizer.
func (s *ClaimService) OrganizerBalances(ctx context.Context, organizer string) ([]models.OrganizerBalance, error) {
	balances, err := s.organizers.ListByOrganizer(ctx, organizer)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list organizer balances")
	}
	return balances, nil
}
