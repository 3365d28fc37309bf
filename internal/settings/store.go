// Package settings persists the trigger Schedule as a checksum-guarded record
// on a byte-addressable medium.
//
// Record layout:
//
//	offset 0: CRC-32 (IEEE) of the payload, uint32 little-endian
//	offset 4: schedule payload (schedule.PayloadSize bytes)
//
// The checksum is written before the payload, so an interrupted save leaves a
// new checksum over an old payload and Load reports it as missing rather than
// returning a mix of old and new settings.
package settings

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/crc32"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/glade/internal/schedule"
)

const (
	checksumOffset = 0
	checksumSize   = 4
	payloadOffset  = checksumOffset + checksumSize

	// RecordSize is the number of medium bytes a record occupies.
	RecordSize = payloadOffset + schedule.PayloadSize
)

// ErrNoRecord is returned by Load when the medium holds no valid record,
// either because it was never written or because the checksum does not match.
var ErrNoRecord = errors.New("settings: no valid record")

// Medium is a byte-addressable non-volatile store. Writes may be staged
// until Commit; reads observe staged writes.
type Medium interface {
	ReadAt(offset, length int) ([]byte, error)
	WriteAt(offset int, data []byte) error
	Commit() error
}

// Store loads and saves the Schedule record on a Medium.
// Not safe for concurrent use.
type Store struct {
	medium Medium
}

// NewStore returns a Store backed by m.
func NewStore(m Medium) *Store {
	return &Store{medium: m}
}

// Checksum returns the CRC-32 (IEEE) of payload.
func Checksum(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}

// Load reads and verifies the stored record. It returns ErrNoRecord if the
// checksum does not match the payload or the payload cannot be decoded.
func (s *Store) Load() (schedule.Schedule, error) {
	raw, err := s.medium.ReadAt(checksumOffset, checksumSize)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("read checksum: %w", err)
	}
	stored := binary.LittleEndian.Uint32(raw)

	payload, err := s.medium.ReadAt(payloadOffset, schedule.PayloadSize)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("read payload: %w", err)
	}
	computed := Checksum(payload)

	log.Debug().
		Str("stored_crc", fmt.Sprintf("%08x", stored)).
		Str("computed_crc", fmt.Sprintf("%08x", computed)).
		Msg("settings: verifying record")

	if stored != computed {
		return schedule.Schedule{}, ErrNoRecord
	}

	var sch schedule.Schedule
	if err := sch.UnmarshalBinary(payload); err != nil {
		return schedule.Schedule{}, fmt.Errorf("%w: %v", ErrNoRecord, err)
	}
	return sch, nil
}

// Save writes sch as a new record: checksum first, then payload, then Commit.
func (s *Store) Save(sch schedule.Schedule) error {
	payload, err := sch.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}

	sum := make([]byte, checksumSize)
	binary.LittleEndian.PutUint32(sum, Checksum(payload))

	if err := s.medium.WriteAt(checksumOffset, sum); err != nil {
		return fmt.Errorf("write checksum: %w", err)
	}
	if err := s.medium.WriteAt(payloadOffset, payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	if err := s.medium.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadOrDefault loads the stored schedule. If there is no valid record it
// persists schedule.Default() and returns it with defaulted set. The defaults
// are returned alongside any error so the caller can keep running.
func (s *Store) LoadOrDefault() (sch schedule.Schedule, defaulted bool, err error) {
	sch, err = s.Load()
	if err == nil {
		return sch, false, nil
	}
	if !errors.Is(err, ErrNoRecord) {
		return schedule.Default(), true, err
	}

	log.Warn().Msg("settings: no valid record, writing defaults")
	sch = schedule.Default()
	if err := s.Save(sch); err != nil {
		return sch, true, fmt.Errorf("write default settings: %w", err)
	}
	return sch, true, nil
}
