package commission

// milestones are the lifetime referral counts that earn a congratulation.
var milestones = [...]int{5, 10, 25, 50, 100, 250, 500, 1000}

// Milestones returns the referral-count checkpoints in ascending order.
func Milestones() []int {
	out := make([]int, len(milestones))
	copy(out, milestones[:])
	return out
}

// MilestoneCrossed returns the highest checkpoint in (previous, current].
func MilestoneCrossed(previous, current int) (int, bool) {
	for i := len(milestones) - 1; i >= 0; i-- {
		m := milestones[i]
		if previous < m && m <= current {
			return m, true
		}
	}
	return 0, false
}

// IsFirstReferral reports whether the count just moved off zero.
func IsFirstReferral(previous, current int) bool {
	return previous == 0 && current > 0
}
