// Package debounce turns raw button samples into debounced edges.
// It has no GPIO or OS dependencies; time is passed in with each sample.
package debounce

import "time"

// Edge is a debounced transition of the button.
type Edge string

const (
	EdgePress   Edge = "PRESS"
	EdgeRelease Edge = "RELEASE"
)

// Sample is one reading of the button. Pressed is the logical level,
// already inverted from the active-low pin.
type Sample struct {
	Pressed bool
	Time    time.Time
}

// Debouncer tracks one input. No edges are reported until a baseline
// has been stable for the debounce duration, so a button held down at
// boot does not count as a press.
type Debouncer struct {
	duration time.Duration

	stable       bool
	pending      bool
	hasPending   bool
	pendingSince time.Time
	baselined    bool

	presses int
}

// New returns a Debouncer that requires a level to hold for duration.
func New(duration time.Duration) *Debouncer {
	return &Debouncer{duration: duration}
}

// Process consumes a sample and reports an edge if one completed.
func (d *Debouncer) Process(s Sample) (Edge, bool) {
	if !d.baselined {
		if !d.hasPending || d.pending != s.Pressed {
			d.startPending(s)
			return "", false
		}
		if s.Time.Sub(d.pendingSince) >= d.duration {
			d.stable = s.Pressed
			d.baselined = true
			d.hasPending = false
		}
		return "", false
	}

	if s.Pressed == d.stable {
		d.hasPending = false
		return "", false
	}

	if !d.hasPending || d.pending != s.Pressed {
		d.startPending(s)
		return "", false
	}

	if s.Time.Sub(d.pendingSince) < d.duration {
		return "", false
	}

	d.stable = s.Pressed
	d.hasPending = false
	if d.stable {
		d.presses++
		return EdgePress, true
	}
	return EdgeRelease, true
}

func (d *Debouncer) startPending(s Sample) {
	d.pending = s.Pressed
	d.hasPending = true
	d.pendingSince = s.Time
}

// Baselined reports whether a stable starting level has been observed.
func (d *Debouncer) Baselined() bool {
	return d.baselined
}

// Pressed returns the debounced level.
func (d *Debouncer) Pressed() bool {
	return d.stable
}

// Presses returns the number of press edges reported.
func (d *Debouncer) Presses() int {
	return d.presses
}
