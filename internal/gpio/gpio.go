// Package gpio drives the trigger output and reads the manual button.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

// Output is the trigger line.
type Output interface {
	// Assert drives the line high.
	Assert() error
	// Deassert drives the line low.
	Deassert() error
}

// Button reads the manual trigger button.
type Button interface {
	// Pressed returns the logical button state.
	// The button is active-low: raw 0 = pressed.
	Pressed() (bool, error)
}

// Defaults (BCM numbering).
const (
	DefaultChip       = "gpiochip0"
	DefaultPinTrigger = 17
	DefaultPinButton  = 27
)
