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

func newClaimService(store *fakeStore, ledger *token.MemoryLedger, emitter *fakeEmitter, clk *testClock) *ClaimService {
	if emitter == nil {
		emitter = &fakeEmitter{}
	}
	return NewClaimService(store, store, ledger, emitter, zap.NewNop(), clk)
}

func TestClaimFirstPortionDrainsClaimable(t *testing.T) {
	store := newFakeStore()
	ledger := token.NewMemoryLedger(2, custody)
	event := store.seedEvent("ORG", 1000, 500, 3,
		testBase, testBase.Add(24*time.Hour), testBase.Add(48*time.Hour))
	enrollDirect(store, ledger, event, "ALICE")
	enrollDirect(store, ledger, event, "BOB")

	emitter := &fakeEmitter{}
	svc := newClaimService(store, ledger, emitter, &testClock{t: event.EndSaleDate.Add(time.Minute)})

	result, err := svc.ClaimFirstPortion(context.Background(), event.ID, "ORG")
	require.NoError(t, err)
	// two enrollments at scaled price 100000 each; half claimable
	assert.Equal(t, int64(100000), result.Amount)

	balance := store.balances[balanceKey("ORG", event.ID)]
	assert.Equal(t, int64(0), balance.Claimable)
	assert.Equal(t, int64(100000), balance.Claimed)
	assert.Equal(t, int64(100000), balance.Vested)

	organizerBalance, _ := ledger.BalanceOf(context.Background(), "ORG")
	assert.Equal(t, int64(100000), organizerBalance)
	assert.Len(t, emitter.ofType(models.NotifyFirstPortionClaimed), 1)

	_, err = svc.ClaimFirstPortion(context.Background(), event.ID, "ORG")
	assert.True(t, appErrors.Is(err, appErrors.ErrNothingToClaim))
}

func TestClaimFirstPortionRepeatsAsClaimableRefills(t *testing.T) {
	store := newFakeStore()
	ledger := token.NewMemoryLedger(2, custody)
	event := store.seedEvent("ORG", 1000, 500, 3,
		testBase, testBase.Add(24*time.Hour), testBase.Add(48*time.Hour))
	enrollDirect(store, ledger, event, "ALICE")
	svc := newClaimService(store, ledger, nil, &testClock{t: testBase.Add(time.Hour)})

	result, err := svc.ClaimFirstPortion(context.Background(), event.ID, "ORG")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), result.Amount)

	_, err = svc.ClaimFirstPortion(context.Background(), event.ID, "ORG")
	assert.True(t, appErrors.Is(err, appErrors.ErrNothingToClaim))

	enrollDirect(store, ledger, event, "BOB")
	result, err = svc.ClaimFirstPortion(context.Background(), event.ID, "ORG")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), result.Amount)

	balance := store.balances[balanceKey("ORG", event.ID)]
	assert.Equal(t, int64(100000), balance.Claimed)
}

func TestClaimFirstPortionOnlyOrganizer(t *testing.T) {
	store := newFakeStore()
	ledger := token.NewMemoryLedger(2, custody)
	event := store.seedEvent("ORG", 1000, 500, 3,
		testBase, testBase.Add(24*time.Hour), testBase.Add(48*time.Hour))
	svc := newClaimService(store, ledger, nil, &testClock{t: event.EndSaleDate.Add(time.Minute)})

	_, err := svc.ClaimFirstPortion(context.Background(), event.ID, "MALLORY")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotOrganizer))
}

func TestClaimUnattendedFeesSplitsSeventyThirty(t *testing.T) {
	store := newFakeStore()
	ledger := token.NewMemoryLedger(2, custody)
	event := store.seedEvent("ORG", 1000, 500, 3,
		testBase, testBase.Add(24*time.Hour), testBase.Add(48*time.Hour))
	enrollDirect(store, ledger, event, "ALICE")
	enrollDirect(store, ledger, event, "BOB")
	enrollDirect(store, ledger, event, "CAROL")
	// only one of three showed up
	store.sessions[sessionKey(event.ID, 0)].AttendedCount = 1
	setCodeDirect(store, event.ID, 0, "ABC123")

	session := store.sessions[sessionKey(event.ID, 0)]
	emitter := &fakeEmitter{}
	svc := newClaimService(store, ledger, emitter, &testClock{t: session.EndTime.Add(time.Minute)})

	result, err := svc.ClaimUnattendedFees(context.Background(), event.ID, 0, "ORG")
	require.NoError(t, err)
	// two no-shows forfeit 16666 each: 33332 total, 70% floored to organizer
	assert.Equal(t, int64(23332), result.Amount)
	assert.Equal(t, int64(10000), result.ProtocolFee)

	assert.Equal(t, int64(10000), store.protocol.TVL)
	assert.Equal(t, int64(23332), session.UnattendedOrganizerFee)
	assert.Equal(t, int64(10000), session.UnattendedProtocolFee)

	organizerBalance, _ := ledger.BalanceOf(context.Background(), "ORG")
	assert.Equal(t, int64(23332), organizerBalance)
	assert.Len(t, emitter.ofType(models.NotifyUnattendedClaimed), 1)

	_, err = svc.ClaimUnattendedFees(context.Background(), event.ID, 0, "ORG")
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyClaimed))
	assert.Equal(t, int64(10000), store.protocol.TVL)
}

func TestClaimUnattendedFeesBeforeSessionEnds(t *testing.T) {
	store := newFakeStore()
	ledger := token.NewMemoryLedger(2, custody)
	event := store.seedEvent("ORG", 1000, 500, 1,
		testBase, testBase.Add(24*time.Hour), testBase.Add(48*time.Hour))
	enrollDirect(store, ledger, event, "ALICE")
	setCodeDirect(store, event.ID, 0, "ABC123")
	session := store.sessions[sessionKey(event.ID, 0)]
	svc := newClaimService(store, ledger, nil, &testClock{t: session.StartTime.Add(time.Minute)})

	_, err := svc.ClaimUnattendedFees(context.Background(), event.ID, 0, "ORG")
	assert.True(t, appErrors.Is(err, appErrors.ErrSessionNotOver))

	// exactly at the session end is not "strictly after" yet
	atEnd := newClaimService(store, ledger, nil, &testClock{t: session.EndTime})
	_, err = atEnd.ClaimUnattendedFees(context.Background(), event.ID, 0, "ORG")
	assert.True(t, appErrors.Is(err, appErrors.ErrSessionNotOver))
}

func TestClaimUnattendedFeesWithoutCode(t *testing.T) {
	store := newFakeStore()
	ledger := token.NewMemoryLedger(2, custody)
	event := store.seedEvent("ORG", 1000, 500, 1,
		testBase, testBase.Add(24*time.Hour), testBase.Add(48*time.Hour))
	enrollDirect(store, ledger, event, "ALICE")
	session := store.sessions[sessionKey(event.ID, 0)]
	svc := newClaimService(store, ledger, nil, &testClock{t: session.EndTime.Add(time.Minute)})

	_, err := svc.ClaimUnattendedFees(context.Background(), event.ID, 0, "ORG")
	assert.True(t, appErrors.Is(err, appErrors.ErrSessionInactive))
	assert.Equal(t, int64(0), store.protocol.TVL)
}

func TestClaimUnattendedFeesFullAttendance(t *testing.T) {
	store := newFakeStore()
	ledger := token.NewMemoryLedger(2, custody)
	event := store.seedEvent("ORG", 1000, 500, 1,
		testBase, testBase.Add(24*time.Hour), testBase.Add(48*time.Hour))
	enrollDirect(store, ledger, event, "ALICE")
	store.sessions[sessionKey(event.ID, 0)].AttendedCount = 1
	setCodeDirect(store, event.ID, 0, "ABC123")
	session := store.sessions[sessionKey(event.ID, 0)]
	svc := newClaimService(store, ledger, nil, &testClock{t: session.EndTime.Add(time.Minute)})

	_, err := svc.ClaimUnattendedFees(context.Background(), event.ID, 0, "ORG")
	assert.True(t, appErrors.Is(err, appErrors.ErrNoUnattended))
	assert.Equal(t, int64(0), store.protocol.TVL)
}

func TestClaimUnattendedFeesUnknownSession(t *testing.T) {
	store := newFakeStore()
	ledger := token.NewMemoryLedger(2, custody)
	event := store.seedEvent("ORG", 1000, 500, 1,
		testBase, testBase.Add(24*time.Hour), testBase.Add(48*time.Hour))
	svc := newClaimService(store, ledger, nil, &testClock{t: testBase.Add(72 * time.Hour)})

	_, err := svc.ClaimUnattendedFees(context.Background(), event.ID, 5, "ORG")
	assert.True(t, appErrors.Is(err, appErrors.ErrSessionNotFound))
}
