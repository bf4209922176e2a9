package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/attendfi/attendfi-api/internal/models"
	"github.com/attendfi/attendfi-api/internal/repository"
)

// fakeStore is an in-memory settlement store with transactional rollback: a
// failed Run restores the pre-transaction snapshot, mirroring the database
// behaviour the services rely on.
type fakeStore struct {
	events       map[int64]*models.Event
	sessions     map[string]*models.Session
	participants map[string]*models.Participant
	attendance   map[string]*models.Attendance
	balances     map[string]*models.OrganizerBalance
	protocol     models.ProtocolState
	nextEventID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:       make(map[int64]*models.Event),
		sessions:     make(map[string]*models.Session),
		participants: make(map[string]*models.Participant),
		attendance:   make(map[string]*models.Attendance),
		balances:     make(map[string]*models.OrganizerBalance),
		protocol:     models.ProtocolState{MaxSessionsPerEvent: 12},
		nextEventID:  1,
	}
}

func sessionKey(eventID int64, index int) string {
	return fmt.Sprintf("%d|%d", eventID, index)
}

func participantKey(eventID int64, address string) string {
	return fmt.Sprintf("%d|%s", eventID, address)
}

func attendanceKey(eventID int64, address string, index int) string {
	return fmt.Sprintf("%d|%s|%d", eventID, address, index)
}

func balanceKey(organizer string, eventID int64) string {
	return fmt.Sprintf("%s|%d", organizer, eventID)
}

func (f *fakeStore) clone() *fakeStore {
	c := newFakeStore()
	c.protocol = f.protocol
	c.nextEventID = f.nextEventID
	for k, v := range f.events {
		cp := *v
		c.events[k] = &cp
	}
	for k, v := range f.sessions {
		cp := *v
		c.sessions[k] = &cp
	}
	for k, v := range f.participants {
		cp := *v
		c.participants[k] = &cp
	}
	for k, v := range f.attendance {
		cp := *v
		c.attendance[k] = &cp
	}
	for k, v := range f.balances {
		cp := *v
		c.balances[k] = &cp
	}
	return c
}

func (f *fakeStore) Run(ctx context.Context, fn func(tx repository.SettlementTx) error) error {
	snapshot := f.clone()
	if err := fn(&fakeTx{store: f}); err != nil {
		*f = *snapshot
		return err
	}
	return nil
}

// seedEvent installs an event with an evenly spaced schedule starting at
// start, one hour per session, one day apart.
func (f *fakeStore) seedEvent(organizer string, price, commitment int64, totalSessions int, saleStart, saleEnd, firstSession time.Time) *models.Event {
	event := &models.Event{
		ID:                 f.nextEventID,
		OrganizerAddress:   organizer,
		Title:              "seeded",
		PriceAmount:        price,
		CommitmentAmount:   commitment,
		TotalSessions:      totalSessions,
		StartSaleDate:      saleStart,
		EndSaleDate:        saleEnd,
		LastSessionEndTime: firstSession.Add(time.Duration(totalSessions-1)*24*time.Hour + time.Hour),
		CreatedAt:          saleStart,
	}
	f.nextEventID++
	f.events[event.ID] = event
	for i := 0; i < totalSessions; i++ {
		start := firstSession.Add(time.Duration(i) * 24 * time.Hour)
		f.sessions[sessionKey(event.ID, i)] = &models.Session{
			EventID:      event.ID,
			SessionIndex: i,
			StartTime:    start,
			EndTime:      start.Add(time.Hour),
		}
	}
	return event
}

// Read-side accessors so one fakeStore can back every service in a test.

func (f *fakeStore) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	var out []models.Event
	for id := int64(1); id < f.nextEventID; id++ {
		event, ok := f.events[id]
		if !ok {
			continue
		}
		if filter.OrganizerAddress != "" && event.OrganizerAddress != filter.OrganizerAddress {
			continue
		}
		out = append(out, *event)
	}
	return out, len(out), nil
}

func (f *fakeStore) FindByID(ctx context.Context, id int64) (*models.Event, error) {
	event, ok := f.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *event
	return &cp, nil
}

func (f *fakeStore) Sessions(ctx context.Context, eventID int64) ([]models.Session, error) {
	event, ok := f.events[eventID]
	if !ok {
		return nil, nil
	}
	out := make([]models.Session, 0, event.TotalSessions)
	for i := 0; i < event.TotalSessions; i++ {
		if session, ok := f.sessions[sessionKey(eventID, i)]; ok {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (f *fakeStore) FindSession(ctx context.Context, eventID int64, index int) (*models.Session, error) {
	session, ok := f.sessions[sessionKey(eventID, index)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *session
	return &cp, nil
}

func (f *fakeStore) State(ctx context.Context) (*models.ProtocolState, error) {
	cp := f.protocol
	return &cp, nil
}

func (f *fakeStore) Find(ctx context.Context, eventID int64, address string) (*models.Participant, error) {
	participant, ok := f.participants[participantKey(eventID, address)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *participant
	return &cp, nil
}

func (f *fakeStore) ListByAddress(ctx context.Context, address string) ([]models.Participant, error) {
	var out []models.Participant
	for _, participant := range f.participants {
		if participant.Address == address {
			out = append(out, *participant)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByEvent(ctx context.Context, eventID int64) ([]models.Participant, error) {
	var out []models.Participant
	for _, participant := range f.participants {
		if participant.EventID == eventID {
			out = append(out, *participant)
		}
	}
	return out, nil
}

func (f *fakeStore) Attendance(ctx context.Context, eventID int64, address string) ([]models.Attendance, error) {
	var out []models.Attendance
	for _, proof := range f.attendance {
		if proof.EventID == eventID && proof.Address == address {
			out = append(out, *proof)
		}
	}
	return out, nil
}

func (f *fakeStore) Balance(ctx context.Context, organizer string, eventID int64) (*models.OrganizerBalance, error) {
	balance, ok := f.balances[balanceKey(organizer, eventID)]
	if !ok {
		return &models.OrganizerBalance{OrganizerAddress: organizer, EventID: eventID}, nil
	}
	cp := *balance
	return &cp, nil
}

func (f *fakeStore) ListByOrganizer(ctx context.Context, organizer string) ([]models.OrganizerBalance, error) {
	var out []models.OrganizerBalance
	for _, balance := range f.balances {
		if balance.OrganizerAddress == organizer {
			out = append(out, *balance)
		}
	}
	return out, nil
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) EventForUpdate(ctx context.Context, eventID int64) (*models.Event, error) {
	event, ok := t.store.events[eventID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *event
	return &cp, nil
}

func (t *fakeTx) Session(ctx context.Context, eventID int64, index int) (*models.Session, error) {
	session, ok := t.store.sessions[sessionKey(eventID, index)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *session
	return &cp, nil
}

func (t *fakeTx) Participant(ctx context.Context, eventID int64, address string) (*models.Participant, error) {
	participant, ok := t.store.participants[participantKey(eventID, address)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *participant
	return &cp, nil
}

func (t *fakeTx) OrganizerBalance(ctx context.Context, organizer string, eventID int64) (*models.OrganizerBalance, error) {
	balance, ok := t.store.balances[balanceKey(organizer, eventID)]
	if !ok {
		return &models.OrganizerBalance{OrganizerAddress: organizer, EventID: eventID}, nil
	}
	cp := *balance
	return &cp, nil
}

func (t *fakeTx) ProtocolForUpdate(ctx context.Context) (*models.ProtocolState, error) {
	cp := t.store.protocol
	return &cp, nil
}

func (t *fakeTx) InsertEvent(ctx context.Context, event *models.Event) error {
	event.ID = t.store.nextEventID
	t.store.nextEventID++
	cp := *event
	t.store.events[event.ID] = &cp
	return nil
}

func (t *fakeTx) InsertSessions(ctx context.Context, sessions []models.Session) error {
	for i := range sessions {
		cp := sessions[i]
		t.store.sessions[sessionKey(cp.EventID, cp.SessionIndex)] = &cp
	}
	return nil
}

func (t *fakeTx) SetMaxSessions(ctx context.Context, max int) error {
	t.store.protocol.MaxSessionsPerEvent = max
	return nil
}

func (t *fakeTx) InsertParticipant(ctx context.Context, participant *models.Participant) error {
	cp := *participant
	t.store.participants[participantKey(cp.EventID, cp.Address)] = &cp
	return nil
}

func (t *fakeTx) IncrementEnrolled(ctx context.Context, eventID int64) error {
	t.store.events[eventID].EnrolledCount++
	return nil
}

func (t *fakeTx) CreditOrganizer(ctx context.Context, organizer string, eventID int64, claimable, vested int64) error {
	key := balanceKey(organizer, eventID)
	balance, ok := t.store.balances[key]
	if !ok {
		balance = &models.OrganizerBalance{OrganizerAddress: organizer, EventID: eventID}
		t.store.balances[key] = balance
	}
	balance.Claimable += claimable
	balance.Vested += vested
	return nil
}

func (t *fakeTx) SetSessionCode(ctx context.Context, eventID int64, index int, code string, at time.Time) error {
	session := t.store.sessions[sessionKey(eventID, index)]
	if session == nil || session.Code != nil {
		return fmt.Errorf("set session code: expected 1 row, got 0")
	}
	session.Code = &code
	session.CodeSetAt = &at
	return nil
}

func (t *fakeTx) ReleaseVesting(ctx context.Context, organizer string, eventID int64, index int, amount int64) error {
	balance := t.store.balances[balanceKey(organizer, eventID)]
	if balance == nil || balance.Vested < amount {
		return fmt.Errorf("release vesting: expected 1 row, got 0")
	}
	balance.Vested -= amount
	balance.Claimed += amount
	t.store.sessions[sessionKey(eventID, index)].ReleasedAmount = amount
	return nil
}

func (t *fakeTx) HasAttendance(ctx context.Context, eventID int64, address string, index int) (bool, error) {
	_, ok := t.store.attendance[attendanceKey(eventID, address, index)]
	return ok, nil
}

func (t *fakeTx) InsertAttendance(ctx context.Context, attendance *models.Attendance) error {
	cp := *attendance
	t.store.attendance[attendanceKey(cp.EventID, cp.Address, cp.SessionIndex)] = &cp
	return nil
}

func (t *fakeTx) DebitParticipant(ctx context.Context, eventID int64, address string, reward int64) error {
	participant := t.store.participants[participantKey(eventID, address)]
	if participant == nil || participant.CommitmentBalance < reward {
		return fmt.Errorf("debit participant: expected 1 row, got 0")
	}
	participant.CommitmentBalance -= reward
	participant.AttendedSessionsCount++
	return nil
}

func (t *fakeTx) IncrementSessionAttended(ctx context.Context, eventID int64, index int) error {
	t.store.sessions[sessionKey(eventID, index)].AttendedCount++
	return nil
}

func (t *fakeTx) PayoutClaimable(ctx context.Context, organizer string, eventID int64, amount int64) error {
	balance := t.store.balances[balanceKey(organizer, eventID)]
	if balance == nil || balance.Claimable < amount {
		return fmt.Errorf("payout claimable: expected 1 row, got 0")
	}
	balance.Claimable -= amount
	balance.Claimed += amount
	return nil
}

func (t *fakeTx) SettleUnattended(ctx context.Context, eventID int64, index int, at time.Time, organizerFee, protocolFee int64) error {
	session := t.store.sessions[sessionKey(eventID, index)]
	if session == nil || session.UnattendedClaimedAt != nil {
		return fmt.Errorf("settle unattended claim: expected 1 row, got 0")
	}
	session.UnattendedClaimedAt = &at
	session.UnattendedOrganizerFee = organizerFee
	session.UnattendedProtocolFee = protocolFee
	t.store.protocol.TVL += protocolFee
	return nil
}

// fakeEmitter records emitted notifications for assertions.
type fakeEmitter struct {
	emitted []models.Notification
}

func (f *fakeEmitter) Emit(n models.Notification) {
	f.emitted = append(f.emitted, n)
}

func (f *fakeEmitter) ofType(kind models.NotificationType) []models.Notification {
	var out []models.Notification
	for _, n := range f.emitted {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

// testClock is an adjustable clock for multi-step settlement scenarios.
type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time {
	return c.t
}
