//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealPins is not available on non-Linux platforms.
type RealPins struct{}

// NewRealPins returns an error on non-Linux platforms.
func NewRealPins(chipName string, pinTrigger, pinButton int) (*RealPins, error) {
	return nil, errUnsupported
}

func (p *RealPins) Assert() error          { return errUnsupported }
func (p *RealPins) Deassert() error        { return errUnsupported }
func (p *RealPins) Pressed() (bool, error) { return false, errUnsupported }
func (p *RealPins) Close() error           { return nil }
