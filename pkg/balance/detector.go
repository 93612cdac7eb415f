package balance

// Detector decides whether a goodness reading warrants planning.
type Detector struct {
	// Tolerance is the relative drop below baseline ignored as noise.
	Tolerance float64
	// Floor is the goodness below which planning always triggers, whatever
	// the baseline.
	Floor float64
}

// Imbalanced reports whether current is below the floor, or has dropped
// below baseline by more than the tolerance. Above the floor it is never
// true while current is at or above baseline.
func (d Detector) Imbalanced(current, baseline float64) bool {
	if current < d.Floor {
		return true
	}
	if current >= baseline {
		return false
	}
	return baseline-current > baseline*d.Tolerance
}
