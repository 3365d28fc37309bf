//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealPins owns the trigger and button lines on a GPIO chip.
type RealPins struct {
	chip    *gpiocdev.Chip
	trigger *gpiocdev.Line
	button  *gpiocdev.Line
}

// NewRealPins requests the trigger line as an output, initially low, and
// the button line as an input with pull-up. A negative pinButton leaves
// the button unclaimed.
func NewRealPins(chipName string, pinTrigger, pinButton int) (*RealPins, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	trigger, err := chip.RequestLine(pinTrigger, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request trigger pin %d: %w", pinTrigger, err)
	}

	p := &RealPins{chip: chip, trigger: trigger}
	if pinButton < 0 {
		return p, nil
	}

	p.button, err = chip.RequestLine(pinButton, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		trigger.Close()
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pinButton, err)
	}
	return p, nil
}

// Assert drives the trigger line high.
func (p *RealPins) Assert() error {
	if err := p.trigger.SetValue(1); err != nil {
		return fmt.Errorf("set trigger pin: %w", err)
	}
	return nil
}

// Deassert drives the trigger line low.
func (p *RealPins) Deassert() error {
	if err := p.trigger.SetValue(0); err != nil {
		return fmt.Errorf("clear trigger pin: %w", err)
	}
	return nil
}

// Pressed reports whether the button is held. Raw 0 = pressed.
func (p *RealPins) Pressed() (bool, error) {
	if p.button == nil {
		return false, errors.New("button pin not configured")
	}
	raw, err := p.button.Value()
	if err != nil {
		return false, fmt.Errorf("read button pin: %w", err)
	}
	return raw == 0, nil
}

// Close drives the trigger low and returns both lines to input with
// pull-down, the Pi boot default, before releasing them.
func (p *RealPins) Close() error {
	var errs []error

	if p.trigger != nil {
		if err := p.trigger.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear trigger pin: %w", err))
		}
		if err := p.trigger.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure trigger pin: %w", err))
		}
		if err := p.trigger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close trigger pin: %w", err))
		}
	}
	if p.button != nil {
		if err := p.button.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure button pin: %w", err))
		}
		if err := p.button.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", err))
		}
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
