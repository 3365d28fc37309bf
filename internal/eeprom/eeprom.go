// Package eeprom emulates a small byte-addressable non-volatile memory.
// Writes go to a RAM cache and reach the backing store only on Commit,
// matching the flash-backed EEPROM the settings layout was designed for.
package eeprom

import (
	"errors"
	"fmt"
)

// DefaultSize matches the EEPROM region the firmware reserved.
const DefaultSize = 512

// erased is the value of a never-written flash byte.
const erased = 0xFF

// ErrOutOfRange is returned for reads or writes outside the image.
var ErrOutOfRange = errors.New("eeprom: access out of range")

// image is the RAM cache shared by every medium.
type image struct {
	buf   []byte
	dirty bool
}

func newImage(size int) image {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = erased
	}
	return image{buf: buf}
}

func (m *image) check(offset, length int) error {
	if offset < 0 || length < 0 || offset+length > len(m.buf) {
		return fmt.Errorf("%w: offset %d length %d size %d", ErrOutOfRange, offset, length, len(m.buf))
	}
	return nil
}

// ReadAt returns a copy of length bytes starting at offset.
func (m *image) ReadAt(offset, length int) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.buf[offset:offset+length])
	return out, nil
}

// WriteAt stages data at offset. It is not durable until Commit.
func (m *image) WriteAt(offset int, data []byte) error {
	if err := m.check(offset, len(data)); err != nil {
		return err
	}
	copy(m.buf[offset:], data)
	m.dirty = true
	return nil
}

// Size returns the image size in bytes.
func (m *image) Size() int {
	return len(m.buf)
}
