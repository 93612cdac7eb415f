package types

import (
	"fmt"
	"time"
)

// Nanos is a uint64 wrapper representing a high-resolution time span in
// nanoseconds, as kept by the kernel statistics counters.
type Nanos uint64

// Humanized returns a human-readable string with automatic unit (ns, us, ms, s).
func (n Nanos) Humanized() string {
	v := float64(n)
	switch {
	case n >= 1e9:
		return fmt.Sprintf("%.2f s", v/1e9)
	case n >= 1e6:
		return fmt.Sprintf("%.2f ms", v/1e6)
	case n >= 1e3:
		return fmt.Sprintf("%.2f us", v/1e3)
	default:
		return fmt.Sprintf("%d ns", n)
	}
}

// Seconds returns the span as floating point seconds.
func (n Nanos) Seconds() float64 { return float64(n) / 1e9 }

// Duration converts the span to a time.Duration, saturating at the maximum.
func (n Nanos) Duration() time.Duration {
	if n > Nanos(1<<63-1) {
		return time.Duration(1<<63 - 1)
	}
	return time.Duration(n)
}

// FromDuration converts a non-negative duration; negative durations become 0.
func FromDuration(d time.Duration) Nanos {
	if d < 0 {
		return 0
	}
	return Nanos(d)
}
