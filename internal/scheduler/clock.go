package scheduler

import "time"

// Clock abstracts time.Now so due-order behavior can be tested
// deterministically with a simulated clock.
type Clock interface {
	Now() time.Time
}

// RealClock wraps time.Now.
type RealClock struct{}

// Now returns the current wall-clock time.
func (RealClock) Now() time.Time {
	return time.Now()
}
