package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/attendfi/attendfi-api/internal/models"
	"github.com/attendfi/attendfi-api/internal/token"
	appErrors "github.com/attendfi/attendfi-api/pkg/errors"
)

const custody = "CUSTODY"

func newEnrollmentService(store *fakeStore, ledger *token.MemoryLedger, emitter *fakeEmitter, clk *testClock) *EnrollmentService {
	if emitter == nil {
		emitter = &fakeEmitter{}
	}
	return NewEnrollmentService(store, store, ledger, custody, emitter, zap.NewNop(), clk)
}

// seedFunded creates a 3-session event (price 1000, commitment 500) and a
// funded, approved participant wallet at 2 token decimals.
func seedFunded(store *fakeStore, address string, amount int64) (*models.Event, *token.MemoryLedger) {
	event := store.seedEvent("ORG", 1000, 500, 3,
		testBase, testBase.Add(7*24*time.Hour), testBase.Add(8*24*time.Hour))
	ledger := token.NewMemoryLedger(2, custody)
	ledger.Mint(address, amount)
	ledger.Approve(address, custody, amount)
	return event, ledger
}

func TestEnrollCollectsPricePlusCommitment(t *testing.T) {
	store := newFakeStore()
	emitter := &fakeEmitter{}
	event, ledger := seedFunded(store, "ALICE", 200000)
	clk := &testClock{t: testBase.Add(24 * time.Hour)}
	svc := newEnrollmentService(store, ledger, emitter, clk)

	participant, err := svc.Enroll(context.Background(), event.ID, "ALICE")
	require.NoError(t, err)

	// commitment 500 scaled by 10^2
	assert.Equal(t, int64(50000), participant.CommitmentBalance)
	assert.Equal(t, 0, participant.AttendedSessionsCount)
	assert.Equal(t, 1, store.events[event.ID].EnrolledCount)

	balance := store.balances[balanceKey("ORG", event.ID)]
	require.NotNil(t, balance)
	assert.Equal(t, int64(50000), balance.Claimable)
	assert.Equal(t, int64(50000), balance.Vested)
	assert.Equal(t, int64(0), balance.Claimed)

	// 150000 minor units moved into custody
	custodyBalance, _ := ledger.BalanceOf(context.Background(), custody)
	assert.Equal(t, int64(150000), custodyBalance)
	aliceBalance, _ := ledger.BalanceOf(context.Background(), "ALICE")
	assert.Equal(t, int64(50000), aliceBalance)

	notes := emitter.ofType(models.NotifyEnrolled)
	require.Len(t, notes, 1)
	// the notification reports everything debited, not just the commitment
	assert.Equal(t, int64(150000), notes[0].Amount)
}

func TestEnrollOutsideSalePeriod(t *testing.T) {
	store := newFakeStore()
	event, ledger := seedFunded(store, "ALICE", 200000)

	early := newEnrollmentService(store, ledger, nil, &testClock{t: testBase.Add(-time.Hour)})
	_, err := early.Enroll(context.Background(), event.ID, "ALICE")
	assert.True(t, appErrors.Is(err, appErrors.ErrSaleClosed))

	late := newEnrollmentService(store, ledger, nil, &testClock{t: event.EndSaleDate.Add(time.Second)})
	_, err = late.Enroll(context.Background(), event.ID, "ALICE")
	assert.True(t, appErrors.Is(err, appErrors.ErrSaleClosed))

	assert.Equal(t, 0, store.events[event.ID].EnrolledCount)
}

func TestEnrollAtSaleWindowBounds(t *testing.T) {
	store := newFakeStore()
	event, ledger := seedFunded(store, "ALICE", 200000)

	// the window is inclusive on both ends
	atOpen := newEnrollmentService(store, ledger, nil, &testClock{t: event.StartSaleDate})
	_, err := atOpen.Enroll(context.Background(), event.ID, "ALICE")
	require.NoError(t, err)

	ledger.Mint("BOB", 200000)
	ledger.Approve("BOB", custody, 200000)
	atClose := newEnrollmentService(store, ledger, nil, &testClock{t: event.EndSaleDate})
	_, err = atClose.Enroll(context.Background(), event.ID, "BOB")
	require.NoError(t, err)

	assert.Equal(t, 2, store.events[event.ID].EnrolledCount)
}

func TestEnrollTwice(t *testing.T) {
	store := newFakeStore()
	event, ledger := seedFunded(store, "ALICE", 400000)
	svc := newEnrollmentService(store, ledger, nil, &testClock{t: testBase.Add(time.Hour)})

	_, err := svc.Enroll(context.Background(), event.ID, "ALICE")
	require.NoError(t, err)
	_, err = svc.Enroll(context.Background(), event.ID, "ALICE")
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyEnrolled))
	assert.Equal(t, 1, store.events[event.ID].EnrolledCount)
}

func TestEnrollInsufficientAllowance(t *testing.T) {
	store := newFakeStore()
	event, ledger := seedFunded(store, "ALICE", 200000)
	ledger.Approve("ALICE", custody, 149999)
	svc := newEnrollmentService(store, ledger, nil, &testClock{t: testBase.Add(time.Hour)})

	_, err := svc.Enroll(context.Background(), event.ID, "ALICE")
	assert.True(t, appErrors.Is(err, appErrors.ErrInsufficientAllowance))
	assert.Empty(t, store.participants)
}

func TestEnrollInsufficientBalance(t *testing.T) {
	store := newFakeStore()
	event, _ := seedFunded(store, "ALICE", 200000)
	ledger := token.NewMemoryLedger(2, custody)
	ledger.Mint("ALICE", 100000)
	ledger.Approve("ALICE", custody, 150000)
	svc := newEnrollmentService(store, ledger, nil, &testClock{t: testBase.Add(time.Hour)})

	_, err := svc.Enroll(context.Background(), event.ID, "ALICE")
	assert.True(t, appErrors.Is(err, appErrors.ErrInsufficientBalance))
	assert.Equal(t, 0, store.events[event.ID].EnrolledCount)
	assert.Empty(t, store.balances)
}

func TestEnrollUnknownEvent(t *testing.T) {
	store := newFakeStore()
	ledger := token.NewMemoryLedger(2, custody)
	svc := newEnrollmentService(store, ledger, nil, &testClock{t: testBase})

	_, err := svc.Enroll(context.Background(), 9, "ALICE")
	assert.True(t, appErrors.Is(err, appErrors.ErrEventNotFound))
}

func TestEnrollFreeEventSkipsTransfer(t *testing.T) {
	store := newFakeStore()
	event := store.seedEvent("ORG", 0, 0, 2,
		testBase, testBase.Add(24*time.Hour), testBase.Add(48*time.Hour))
	ledger := token.NewMemoryLedger(2, custody)
	svc := newEnrollmentService(store, ledger, nil, &testClock{t: testBase.Add(time.Hour)})

	participant, err := svc.Enroll(context.Background(), event.ID, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, int64(0), participant.CommitmentBalance)
	assert.Equal(t, 1, store.events[event.ID].EnrolledCount)
}
