package engine

import "time"

// Clock abstracts time.Now() so tests can pin the date.
// Calendar generation uses it to decide which years get events and to
// stamp DTSTAMP.
type Clock interface {
	Now() time.Time
}

// RealClock is the wall-clock implementation.
type RealClock struct{}

// Now reports the current local time.
func (RealClock) Now() time.Time {
	return time.Now()
}
