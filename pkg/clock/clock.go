package clock

import "time"

// Clock is the single time authority for the settlement engine. Every window
// check compares against this source so tests can pin the current moment.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in UTC.
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}
