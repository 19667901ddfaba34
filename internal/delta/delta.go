// Package delta suppresses noisy reserve and price readings: a value is
// reported only when it has moved past a fractional threshold since the
// last reported value.
package delta

import "github.com/shopspring/decimal"

// Changed reports whether current deviates from baseline by more than
// threshold, expressed as a fraction of the baseline (0.0005 = 0.05%).
// A zero baseline is treated as always changed once a nonzero value
// appears, so arbitrarily small thresholds never divide by zero.
func Changed(baseline, current, threshold decimal.Decimal) bool {
	if baseline.Sign() == 0 {
		return current.Sign() != 0
	}
	diff := current.Sub(baseline).Abs()
	return diff.GreaterThan(baseline.Abs().Mul(threshold))
}

// Tracker carries the repeat-suppression state for one observed series.
// After a report the comparison baseline becomes the last reported value,
// not the original one, so a value drifting back across the band
// re-triggers.
type Tracker struct {
	threshold decimal.Decimal
	last      decimal.Decimal
}

// NewTracker creates a tracker seeded with the series' initial baseline.
func NewTracker(baseline, threshold decimal.Decimal) *Tracker {
	return &Tracker{threshold: threshold, last: baseline}
}

// Observe records a reading and reports whether it should be surfaced.
// On a report the reading becomes the new suppression baseline.
func (t *Tracker) Observe(current decimal.Decimal) bool {
	if !Changed(t.last, current, t.threshold) {
		return false
	}
	t.last = current
	return true
}

// Last returns the most recently reported value.
func (t *Tracker) Last() decimal.Decimal {
	return t.last
}
