package gpio

import (
	"errors"
	"sync"
)

// FakeOutput records trigger line changes. Safe for concurrent use.
type FakeOutput struct {
	mu        sync.Mutex
	high      bool
	asserts   int
	deasserts int

	// AssertError, if set, is returned by Assert. The level still changes.
	AssertError error
}

// Assert drives the fake line high.
func (f *FakeOutput) Assert() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.high = true
	f.asserts++
	return f.AssertError
}

// Deassert drives the fake line low.
func (f *FakeOutput) Deassert() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.high = false
	f.deasserts++
	return nil
}

// High reports the line level.
func (f *FakeOutput) High() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.high
}

// Counts returns how many times the line was asserted and deasserted.
func (f *FakeOutput) Counts() (asserts, deasserts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.asserts, f.deasserts
}

// FakeButton returns scripted button levels. Safe for concurrent use.
type FakeButton struct {
	mu sync.Mutex

	// Samples are returned in order; the last one repeats.
	Samples []bool
	index   int

	// ReadError, if set, is returned by Pressed.
	ReadError error
}

// NewFakeButton creates a FakeButton with the given samples.
func NewFakeButton(samples ...bool) *FakeButton {
	return &FakeButton{Samples: samples}
}

// Pressed returns the next scripted level.
func (f *FakeButton) Pressed() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	v := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return v, nil
}

// Set replaces the script with a single level held from now on.
func (f *FakeButton) Set(pressed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Samples = []bool{pressed}
	f.index = 0
}
