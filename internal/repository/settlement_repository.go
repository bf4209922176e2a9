package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/attendfi/attendfi-api/internal/models"
)

// SettlementTx is the write surface of one settlement transaction. Every
// money-moving operation acquires the event row lock first (EventForUpdate),
// which serializes conflicting calls on the same event so the one-shot guards
// can be re-checked safely inside the transaction.
type SettlementTx interface {
	EventForUpdate(ctx context.Context, eventID int64) (*models.Event, error)
	Session(ctx context.Context, eventID int64, index int) (*models.Session, error)
	Participant(ctx context.Context, eventID int64, address string) (*models.Participant, error)
	OrganizerBalance(ctx context.Context, organizer string, eventID int64) (*models.OrganizerBalance, error)
	ProtocolForUpdate(ctx context.Context) (*models.ProtocolState, error)

	InsertEvent(ctx context.Context, event *models.Event) error
	InsertSessions(ctx context.Context, sessions []models.Session) error
	SetMaxSessions(ctx context.Context, max int) error

	InsertParticipant(ctx context.Context, participant *models.Participant) error
	IncrementEnrolled(ctx context.Context, eventID int64) error
	CreditOrganizer(ctx context.Context, organizer string, eventID int64, claimable, vested int64) error

	SetSessionCode(ctx context.Context, eventID int64, index int, code string, at time.Time) error
	ReleaseVesting(ctx context.Context, organizer string, eventID int64, index int, amount int64) error

	HasAttendance(ctx context.Context, eventID int64, address string, index int) (bool, error)
	InsertAttendance(ctx context.Context, attendance *models.Attendance) error
	DebitParticipant(ctx context.Context, eventID int64, address string, reward int64) error
	IncrementSessionAttended(ctx context.Context, eventID int64, index int) error

	PayoutClaimable(ctx context.Context, organizer string, eventID int64, amount int64) error
	SettleUnattended(ctx context.Context, eventID int64, index int, at time.Time, organizerFee, protocolFee int64) error
}

// SettlementRepository runs settlement operations as single atomic database
// transactions.
type SettlementRepository struct {
	db      *sqlx.DB
	observe func(label string, d time.Duration)
}

// NewSettlementRepository constructs the repository.
func NewSettlementRepository(db *sqlx.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// WithObserver registers a duration callback invoked once per transaction.
func (r *SettlementRepository) WithObserver(observe func(label string, d time.Duration)) *SettlementRepository {
	r.observe = observe
	return r
}

// Run executes fn inside one transaction; any error rolls everything back so
// a failed operation leaves zero side effects.
func (r *SettlementRepository) Run(ctx context.Context, fn func(tx SettlementTx) error) (err error) {
	if r.observe != nil {
		start := time.Now()
		defer func() { r.observe("settlement_tx", time.Since(start)) }()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settlement transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&settlementTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit settlement transaction: %w", err)
	}
	return nil
}

type settlementTx struct {
	tx *sqlx.Tx
}

func (s *settlementTx) EventForUpdate(ctx context.Context, eventID int64) (*models.Event, error) {
	const query = `SELECT id, organizer_address, title, description, price_amount, commitment_amount,
        total_sessions, start_sale_date, end_sale_date, last_session_end_time, enrolled_count, created_at
        FROM events WHERE id = $1 FOR UPDATE`
	var event models.Event
	if err := s.tx.GetContext(ctx, &event, query, eventID); err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *settlementTx) Session(ctx context.Context, eventID int64, index int) (*models.Session, error) {
	const query = `SELECT event_id, session_index, start_time, end_time, attended_count, code, code_set_at,
        released_amount, unattended_claimed_at, unattended_organizer_fee, unattended_protocol_fee
        FROM event_sessions WHERE event_id = $1 AND session_index = $2`
	var session models.Session
	if err := s.tx.GetContext(ctx, &session, query, eventID, index); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *settlementTx) Participant(ctx context.Context, eventID int64, address string) (*models.Participant, error) {
	const query = `SELECT event_id, address, enrolled_at, commitment_balance, attended_sessions_count
        FROM participants WHERE event_id = $1 AND address = $2`
	var participant models.Participant
	if err := s.tx.GetContext(ctx, &participant, query, eventID, address); err != nil {
		return nil, err
	}
	return &participant, nil
}

func (s *settlementTx) OrganizerBalance(ctx context.Context, organizer string, eventID int64) (*models.OrganizerBalance, error) {
	const query = `SELECT organizer_address, event_id, claimable, vested, claimed
        FROM organizer_balances WHERE organizer_address = $1 AND event_id = $2`
	var balance models.OrganizerBalance
	err := s.tx.GetContext(ctx, &balance, query, organizer, eventID)
	if err == sql.ErrNoRows {
		return &models.OrganizerBalance{OrganizerAddress: organizer, EventID: eventID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (s *settlementTx) ProtocolForUpdate(ctx context.Context) (*models.ProtocolState, error) {
	const query = `SELECT tvl, max_sessions_per_event FROM protocol_state WHERE id = 1 FOR UPDATE`
	var state models.ProtocolState
	if err := s.tx.GetContext(ctx, &state, query); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *settlementTx) InsertEvent(ctx context.Context, event *models.Event) error {
	const query = `INSERT INTO events (organizer_address, title, description, price_amount, commitment_amount,
        total_sessions, start_sale_date, end_sale_date, last_session_end_time, enrolled_count, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10) RETURNING id`
	if err := s.tx.QueryRowxContext(ctx, query,
		event.OrganizerAddress, event.Title, event.Description, event.PriceAmount, event.CommitmentAmount,
		event.TotalSessions, event.StartSaleDate, event.EndSaleDate, event.LastSessionEndTime, event.CreatedAt,
	).Scan(&event.ID); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *settlementTx) InsertSessions(ctx context.Context, sessions []models.Session) error {
	const query = `INSERT INTO event_sessions (event_id, session_index, start_time, end_time, attended_count)
        VALUES (:event_id, :session_index, :start_time, :end_time, 0)`
	for i := range sessions {
		if _, err := s.tx.NamedExecContext(ctx, query, sessions[i]); err != nil {
			return fmt.Errorf("insert session %d: %w", sessions[i].SessionIndex, err)
		}
	}
	return nil
}

func (s *settlementTx) SetMaxSessions(ctx context.Context, max int) error {
	const query = `UPDATE protocol_state SET max_sessions_per_event = $1 WHERE id = 1`
	if _, err := s.tx.ExecContext(ctx, query, max); err != nil {
		return fmt.Errorf("set max sessions: %w", err)
	}
	return nil
}

func (s *settlementTx) InsertParticipant(ctx context.Context, participant *models.Participant) error {
	const query = `INSERT INTO participants (event_id, address, enrolled_at, commitment_balance, attended_sessions_count)
        VALUES (:event_id, :address, :enrolled_at, :commitment_balance, 0)`
	if _, err := s.tx.NamedExecContext(ctx, query, participant); err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *settlementTx) IncrementEnrolled(ctx context.Context, eventID int64) error {
	const query = `UPDATE events SET enrolled_count = enrolled_count + 1 WHERE id = $1`
	if _, err := s.tx.ExecContext(ctx, query, eventID); err != nil {
		return fmt.Errorf("increment enrolled count: %w", err)
	}
	return nil
}

func (s *settlementTx) CreditOrganizer(ctx context.Context, organizer string, eventID int64, claimable, vested int64) error {
	const query = `INSERT INTO organizer_balances (organizer_address, event_id, claimable, vested, claimed)
        VALUES ($1, $2, $3, $4, 0)
        ON CONFLICT (organizer_address, event_id)
        DO UPDATE SET claimable = organizer_balances.claimable + $3, vested = organizer_balances.vested + $4`
	if _, err := s.tx.ExecContext(ctx, query, organizer, eventID, claimable, vested); err != nil {
		return fmt.Errorf("credit organizer balance: %w", err)
	}
	return nil
}

func (s *settlementTx) SetSessionCode(ctx context.Context, eventID int64, index int, code string, at time.Time) error {
	const query = `UPDATE event_sessions SET code = $3, code_set_at = $4
        WHERE event_id = $1 AND session_index = $2 AND code IS NULL`
	res, err := s.tx.ExecContext(ctx, query, eventID, index, code, at)
	if err != nil {
		return fmt.Errorf("set session code: %w", err)
	}
	return requireOneRow(res, "set session code")
}

func (s *settlementTx) ReleaseVesting(ctx context.Context, organizer string, eventID int64, index int, amount int64) error {
	const balanceQuery = `UPDATE organizer_balances
        SET vested = vested - $3, claimed = claimed + $3
        WHERE organizer_address = $1 AND event_id = $2 AND vested >= $3`
	res, err := s.tx.ExecContext(ctx, balanceQuery, organizer, eventID, amount)
	if err != nil {
		return fmt.Errorf("release vesting: %w", err)
	}
	if err := requireOneRow(res, "release vesting"); err != nil {
		return err
	}
	const sessionQuery = `UPDATE event_sessions SET released_amount = $3
        WHERE event_id = $1 AND session_index = $2`
	if _, err := s.tx.ExecContext(ctx, sessionQuery, eventID, index, amount); err != nil {
		return fmt.Errorf("record session release: %w", err)
	}
	return nil
}

func (s *settlementTx) HasAttendance(ctx context.Context, eventID int64, address string, index int) (bool, error) {
	const query = `SELECT 1 FROM attendance WHERE event_id = $1 AND address = $2 AND session_index = $3 LIMIT 1`
	var exists int
	if err := s.tx.GetContext(ctx, &exists, query, eventID, address, index); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return true, nil
}

func (s *settlementTx) InsertAttendance(ctx context.Context, attendance *models.Attendance) error {
	const query = `INSERT INTO attendance (event_id, address, session_index, attended_at, reward_amount)
        VALUES (:event_id, :address, :session_index, :attended_at, :reward_amount)`
	if _, err := s.tx.NamedExecContext(ctx, query, attendance); err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

func (s *settlementTx) DebitParticipant(ctx context.Context, eventID int64, address string, reward int64) error {
	const query = `UPDATE participants
        SET commitment_balance = commitment_balance - $3, attended_sessions_count = attended_sessions_count + 1
        WHERE event_id = $1 AND address = $2 AND commitment_balance >= $3`
	res, err := s.tx.ExecContext(ctx, query, eventID, address, reward)
	if err != nil {
		return fmt.Errorf("debit participant: %w", err)
	}
	return requireOneRow(res, "debit participant")
}

func (s *settlementTx) IncrementSessionAttended(ctx context.Context, eventID int64, index int) error {
	const query = `UPDATE event_sessions SET attended_count = attended_count + 1
        WHERE event_id = $1 AND session_index = $2`
	if _, err := s.tx.ExecContext(ctx, query, eventID, index); err != nil {
		return fmt.Errorf("increment attended count: %w", err)
	}
	return nil
}

func (s *settlementTx) PayoutClaimable(ctx context.Context, organizer string, eventID int64, amount int64) error {
	const query = `UPDATE organizer_balances
        SET claimable = claimable - $3, claimed = claimed + $3
        WHERE organizer_address = $1 AND event_id = $2 AND claimable >= $3`
	res, err := s.tx.ExecContext(ctx, query, organizer, eventID, amount)
	if err != nil {
		return fmt.Errorf("payout claimable: %w", err)
	}
	return requireOneRow(res, "payout claimable")
}

func (s *settlementTx) SettleUnattended(ctx context.Context, eventID int64, index int, at time.Time, organizerFee, protocolFee int64) error {
	const sessionQuery = `UPDATE event_sessions
        SET unattended_claimed_at = $3, unattended_organizer_fee = $4, unattended_protocol_fee = $5
        WHERE event_id = $1 AND session_index = $2 AND unattended_claimed_at IS NULL`
	res, err := s.tx.ExecContext(ctx, sessionQuery, eventID, index, at, organizerFee, protocolFee)
	if err != nil {
		return fmt.Errorf("settle unattended claim: %w", err)
	}
	if err := requireOneRow(res, "settle unattended claim"); err != nil {
		return err
	}
	const protocolQuery = `UPDATE protocol_state SET tvl = tvl + $1 WHERE id = 1`
	if _, err := s.tx.ExecContext(ctx, protocolQuery, protocolFee); err != nil {
		return fmt.Errorf("accrue protocol tvl: %w", err)
	}
	return nil
}

func requireOneRow(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected != 1 {
		return fmt.Errorf("%s: expected 1 row, got %d", op, affected)
	}
	return nil
}
