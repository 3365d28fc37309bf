package trigger

import (
	"sync"
	"time"

	"github.com/sweeney/glade/internal/clock"
)

// ClockScheduler implements Scheduler on a clock.Clock. Due events are
// passed to deliver, which runs on the clock's callback goroutine.
type ClockScheduler struct {
	clock   clock.Clock
	deliver func(Event)
}

// NewClockScheduler returns a scheduler that hands due events to deliver.
func NewClockScheduler(c clock.Clock, deliver func(Event)) *ClockScheduler {
	return &ClockScheduler{clock: c, deliver: deliver}
}

// Once delivers ev after d. It cannot be cancelled.
func (s *ClockScheduler) Once(d time.Duration, ev Event) {
	s.clock.AfterFunc(d, func() { s.deliver(ev) })
}

// Repeat delivers ev every d until cancel is called.
func (s *ClockScheduler) Repeat(d time.Duration, ev Event) func() {
	var (
		mu      sync.Mutex
		stopped bool
		timer   clock.Timer
		fire    func()
	)

	fire = func() {
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		timer = s.clock.AfterFunc(d, fire)
		mu.Unlock()

		s.deliver(ev)
	}

	mu.Lock()
	timer = s.clock.AfterFunc(d, fire)
	mu.Unlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		stopped = true
		timer.Stop()
	}
}
