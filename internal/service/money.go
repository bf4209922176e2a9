package service

// unattendedOrganizerPercent is the organizer share of forfeited commitment
// fees; the protocol keeps the exact remainder so the split never loses units.
const unattendedOrganizerPercent = 70

// pow10 returns 10^n for the small decimal scales token ledgers use.
func pow10(n int) int64 {
	result := int64(1)
	for i := 0; i < n; i++ {
		result *= 10
	}
	return result
}

// scaleAmount converts an unscaled unit price into ledger minor units.
func scaleAmount(amount int64, decimals int) int64 {
	return amount * pow10(decimals)
}

// splitPrice divides scaled price revenue into the immediately claimable half
// and the vested half. Integer halving truncates toward the vested side's
// complement, so claimable absorbs the odd unit.
func splitPrice(scaledPrice int64) (claimable, vested int64) {
	vested = scaledPrice / 2
	claimable = scaledPrice - vested
	return claimable, vested
}

// vestingReleaseAmount is the vested revenue unlocked by issuing one session
// code: the per-enrollment per-session slice times the current enrollment.
func vestingReleaseAmount(scaledPrice int64, totalSessions, enrolledCount int) int64 {
	if totalSessions <= 0 {
		return 0
	}
	perEnrollment := (scaledPrice / 2) / int64(totalSessions)
	return int64(enrolledCount) * perEnrollment
}

// foldDust widens a release to drain the vested balance entirely when the
// post-release remainder could not fund another full release. Truncation dust
// otherwise strands in the vested ledger forever.
func foldDust(release, vested int64) int64 {
	if release > 0 && vested-release < release {
		return vested
	}
	return release
}

// attendanceReward is the commitment slice returned for one attendance proof.
// The final session pays the exact remainder of an even split so the stake
// round-trips to zero, clamped to what the participant still holds.
func attendanceReward(scaledCommitment int64, totalSessions, attendedSoFar int, balance int64) int64 {
	if totalSessions <= 0 {
		return 0
	}
	base := scaledCommitment / int64(totalSessions)
	reward := base
	if attendedSoFar == totalSessions-1 {
		reward = scaledCommitment - base*int64(totalSessions-1)
	}
	if reward > balance {
		reward = balance
	}
	return reward
}

// unattendedFees computes the forfeited commitment for one finished session
// and its organizer/protocol split. The organizer share floors; the protocol
// share is the exact remainder.
func unattendedFees(scaledCommitment int64, totalSessions, enrolled, attended int) (total, organizerShare, protocolShare int64) {
	if totalSessions <= 0 {
		return 0, 0, 0
	}
	unattended := enrolled - attended
	if unattended < 0 {
		unattended = 0
	}
	total = int64(unattended) * (scaledCommitment / int64(totalSessions))
	organizerShare = total * unattendedOrganizerPercent / 100
	protocolShare = total - organizerShare
	return total, organizerShare, protocolShare
}
