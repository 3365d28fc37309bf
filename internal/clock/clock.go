// Package clock provides an injectable time source. Production code uses
// Wall; tests use Fake, which only moves when Advance is called and fires
// AfterFunc callbacks synchronously in deadline order.
package clock

import "time"

// Clock abstracts the current time and one-shot timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop cancels the call. It reports whether the call was still pending.
	Stop() bool
}

// Wall is a Clock backed by the time package, reporting times in a fixed
// location so schedule hours follow the configured local timezone.
type Wall struct {
	loc *time.Location
}

// NewWall returns a wall clock in loc. A nil loc means time.Local.
func NewWall(loc *time.Location) Wall {
	if loc == nil {
		loc = time.Local
	}
	return Wall{loc: loc}
}

// Now returns the current time in the clock's location.
func (w Wall) Now() time.Time {
	return time.Now().In(w.loc)
}

// AfterFunc calls f in its own goroutine after d.
func (w Wall) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Location returns the clock's location.
func (w Wall) Location() *time.Location {
	return w.loc
}
