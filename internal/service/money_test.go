package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScaleAmount(t *testing.T) {
	assert.Equal(t, int64(100000), scaleAmount(1000, 2))
	assert.Equal(t, int64(1000), scaleAmount(1000, 0))
	assert.Equal(t, int64(500000000), scaleAmount(500, 6))
}

func TestSplitPriceOddUnitGoesClaimable(t *testing.T) {
	claimable, vested := splitPrice(100000)
	assert.Equal(t, int64(50000), claimable)
	assert.Equal(t, int64(50000), vested)

	claimable, vested = splitPrice(101)
	assert.Equal(t, int64(51), claimable)
	assert.Equal(t, int64(50), vested)
	assert.Equal(t, int64(101), claimable+vested)
}

func TestVestingReleaseScalesWithEnrollment(t *testing.T) {
	// price 1000 at 2 decimals, 3 sessions: half is 50000, slice 16666
	assert.Equal(t, int64(16666), vestingReleaseAmount(100000, 3, 1))
	assert.Equal(t, int64(33332), vestingReleaseAmount(100000, 3, 2))
	assert.Equal(t, int64(0), vestingReleaseAmount(100000, 3, 0))
	assert.Equal(t, int64(0), vestingReleaseAmount(100000, 0, 5))
}

func TestFoldDustDrainsFinalRelease(t *testing.T) {
	// three releases of 16666 from 50000: the last folds the 2-unit remainder
	vested := int64(50000)
	release := foldDust(16666, vested)
	assert.Equal(t, int64(16666), release)
	vested -= release

	release = foldDust(16666, vested)
	assert.Equal(t, int64(16666), release)
	vested -= release

	release = foldDust(16666, vested)
	assert.Equal(t, int64(16668), release)
	vested -= release
	assert.Equal(t, int64(0), vested)
}

func TestFoldDustNoOpWhenRemainderFundsAnother(t *testing.T) {
	assert.Equal(t, int64(16666), foldDust(16666, 33334))
	assert.Equal(t, int64(0), foldDust(0, 100))
}

func TestAttendanceRewardExhaustsStake(t *testing.T) {
	// commitment 500 at 2 decimals over 3 sessions
	balance := int64(50000)

	reward := attendanceReward(50000, 3, 0, balance)
	assert.Equal(t, int64(16666), reward)
	balance -= reward

	reward = attendanceReward(50000, 3, 1, balance)
	assert.Equal(t, int64(16666), reward)
	balance -= reward

	reward = attendanceReward(50000, 3, 2, balance)
	assert.Equal(t, int64(16668), reward)
	balance -= reward
	assert.Equal(t, int64(0), balance)
}

func TestAttendanceRewardClampsToBalance(t *testing.T) {
	assert.Equal(t, int64(100), attendanceReward(50000, 3, 0, 100))
	assert.Equal(t, int64(0), attendanceReward(50000, 3, 0, 0))
}

func TestUnattendedFeesSplit(t *testing.T) {
	// 3 enrolled, 1 attended, commitment 500 at 2 decimals over 3 sessions:
	// 2 no-shows forfeit 16666 each
	total, organizer, protocol := unattendedFees(50000, 3, 3, 1)
	assert.Equal(t, int64(33332), total)
	assert.Equal(t, int64(23332), organizer)
	assert.Equal(t, int64(10000), protocol)
	assert.Equal(t, total, organizer+protocol)
}

func TestUnattendedFeesFullAttendance(t *testing.T) {
	total, organizer, protocol := unattendedFees(50000, 3, 2, 2)
	assert.Equal(t, int64(0), total)
	assert.Equal(t, int64(0), organizer)
	assert.Equal(t, int64(0), protocol)
}

func TestUnattendedFeesAttendedExceedsEnrolled(t *testing.T) {
	total, _, _ := unattendedFees(50000, 3, 1, 2)
	assert.Equal(t, int64(0), total)
}
