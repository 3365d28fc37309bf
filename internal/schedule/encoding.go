package schedule

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PayloadSize is the length of a serialized Schedule:
// active (1) + days (7) + hours (24) + interval (2, little-endian).
const PayloadSize = 34

const (
	offActive   = 0
	offDays     = 1
	offHours    = 8
	offInterval = 32
)

// ErrMalformed is returned when a payload cannot be decoded into a Schedule.
var ErrMalformed = errors.New("schedule: malformed payload")

// MarshalBinary encodes the schedule into its fixed PayloadSize layout.
func (s Schedule) MarshalBinary() ([]byte, error) {
	buf := make([]byte, PayloadSize)
	buf[offActive] = boolByte(s.Active)
	for i, on := range s.Days {
		buf[offDays+i] = boolByte(on)
	}
	for i, on := range s.Hours {
		buf[offHours+i] = boolByte(on)
	}
	binary.LittleEndian.PutUint16(buf[offInterval:], s.Interval)
	return buf, nil
}

// UnmarshalBinary decodes a PayloadSize payload. Flag bytes other than 0 or 1
// are rejected.
func (s *Schedule) UnmarshalBinary(data []byte) error {
	if len(data) != PayloadSize {
		return fmt.Errorf("%w: length %d, want %d", ErrMalformed, len(data), PayloadSize)
	}

	var out Schedule
	var err error
	if out.Active, err = byteBool(data[offActive], offActive); err != nil {
		return err
	}
	for i := range out.Days {
		if out.Days[i], err = byteBool(data[offDays+i], offDays+i); err != nil {
			return err
		}
	}
	for i := range out.Hours {
		if out.Hours[i], err = byteBool(data[offHours+i], offHours+i); err != nil {
			return err
		}
	}
	out.Interval = binary.LittleEndian.Uint16(data[offInterval:])

	*s = out
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func byteBool(b byte, offset int) (bool, error) {
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: flag byte %#02x at offset %d", ErrMalformed, b, offset)
}
