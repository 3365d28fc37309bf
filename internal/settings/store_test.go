package settings

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/sweeney/glade/internal/eeprom"
	"github.com/sweeney/glade/internal/schedule"
)

func custom() schedule.Schedule {
	s := schedule.Default()
	s.Active = false
	s.Days[0] = false
	s.Hours[3] = true
	s.Interval = 1234
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	mem := eeprom.NewMemory(eeprom.DefaultSize)
	store := NewStore(mem)

	want := custom()
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	mem.Reboot()
	got, err := NewStore(mem).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if mem.Commits() != 1 {
		t.Errorf("Commits: got %d, want 1", mem.Commits())
	}
}

func TestRecordLayout(t *testing.T) {
	mem := eeprom.NewMemory(eeprom.DefaultSize)
	want := custom()
	NewStore(mem).Save(want)

	image := mem.Committed()
	payload, _ := want.MarshalBinary()

	if got := binary.LittleEndian.Uint32(image[0:4]); got != Checksum(payload) {
		t.Errorf("checksum: got %08x, want %08x", got, Checksum(payload))
	}
	for i, b := range payload {
		if image[payloadOffset+i] != b {
			t.Fatalf("payload byte %d: got %#x, want %#x", i, image[payloadOffset+i], b)
		}
	}
}

func TestChecksumKnownValue(t *testing.T) {
	// Standard CRC-32 check value.
	if got := Checksum([]byte("123456789")); got != 0xCBF43926 {
		t.Errorf("got %08x, want cbf43926", got)
	}
}

func TestErasedMediumHasNoRecord(t *testing.T) {
	_, err := NewStore(eeprom.NewMemory(eeprom.DefaultSize)).Load()
	if !errors.Is(err, ErrNoRecord) {
		t.Fatalf("got %v, want ErrNoRecord", err)
	}
}

func TestZeroedMediumHasNoRecord(t *testing.T) {
	mem := eeprom.NewMemory(RecordSize)
	mem.WriteAt(0, make([]byte, RecordSize))
	mem.Commit()

	// CRC of 34 zero bytes is not zero, so an all-zero image is rejected.
	_, err := NewStore(mem).Load()
	if !errors.Is(err, ErrNoRecord) {
		t.Fatalf("got %v, want ErrNoRecord", err)
	}
}

func TestEveryBitFlipDetected(t *testing.T) {
	for offset := 0; offset < RecordSize; offset++ {
		for bit := uint(0); bit < 8; bit++ {
			mem := eeprom.NewMemory(RecordSize)
			store := NewStore(mem)
			if err := store.Save(schedule.Default()); err != nil {
				t.Fatalf("Save: %v", err)
			}

			mem.FlipBit(offset, bit)

			if _, err := store.Load(); !errors.Is(err, ErrNoRecord) {
				t.Fatalf("flip at byte %d bit %d: got %v, want ErrNoRecord", offset, bit, err)
			}
		}
	}
}

func TestLoadOrDefaultWritesDefaults(t *testing.T) {
	mem := eeprom.NewMemory(eeprom.DefaultSize)
	store := NewStore(mem)

	got, defaulted, err := store.LoadOrDefault()
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if !defaulted {
		t.Error("expected defaulted")
	}
	if got != schedule.Default() {
		t.Errorf("got %+v, want defaults", got)
	}

	mem.Reboot()
	again, err := store.Load()
	if err != nil {
		t.Fatalf("defaults were not persisted: %v", err)
	}
	if again != schedule.Default() {
		t.Errorf("persisted %+v, want defaults", again)
	}
}

func TestLoadOrDefaultKeepsValidRecord(t *testing.T) {
	mem := eeprom.NewMemory(eeprom.DefaultSize)
	store := NewStore(mem)
	store.Save(custom())
	commits := mem.Commits()

	got, defaulted, err := store.LoadOrDefault()
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if defaulted {
		t.Error("valid record reported as defaulted")
	}
	if got != custom() {
		t.Errorf("got %+v", got)
	}
	if mem.Commits() != commits {
		t.Error("valid record should not be rewritten")
	}
}

func TestLoadOrDefaultCommitFailure(t *testing.T) {
	mem := eeprom.NewMemory(eeprom.DefaultSize)
	mem.CommitError = errors.New("flash worn out")

	got, defaulted, err := NewStore(mem).LoadOrDefault()
	if err == nil {
		t.Fatal("expected error")
	}
	if !defaulted || got != schedule.Default() {
		t.Errorf("got (%+v, %v), want defaults", got, defaulted)
	}
}

func TestMediumErrorsWrapped(t *testing.T) {
	small := eeprom.NewMemory(2)
	store := NewStore(small)

	if _, err := store.Load(); !errors.Is(err, eeprom.ErrOutOfRange) {
		t.Errorf("Load: got %v, want ErrOutOfRange", err)
	}
	if err := store.Save(schedule.Default()); !errors.Is(err, eeprom.ErrOutOfRange) {
		t.Errorf("Save: got %v, want ErrOutOfRange", err)
	}
	_, defaulted, err := store.LoadOrDefault()
	if err == nil || !defaulted {
		t.Errorf("LoadOrDefault: got (%v, %v)", defaulted, err)
	}
}

// directMedium writes straight through with no staging, and fails the
// payload write when failPayload is set.
type directMedium struct {
	buf         []byte
	failPayload bool
}

func (d *directMedium) ReadAt(offset, length int) ([]byte, error) {
	return append([]byte(nil), d.buf[offset:offset+length]...), nil
}

func (d *directMedium) WriteAt(offset int, data []byte) error {
	if offset == payloadOffset && d.failPayload {
		return errors.New("power lost")
	}
	copy(d.buf[offset:], data)
	return nil
}

func (d *directMedium) Commit() error { return nil }

func TestInterruptedSaveDetected(t *testing.T) {
	med := &directMedium{buf: make([]byte, RecordSize)}
	store := NewStore(med)
	if err := store.Save(schedule.Default()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	med.failPayload = true
	if err := store.Save(custom()); err == nil {
		t.Fatal("expected interrupted save to fail")
	}

	if _, err := store.Load(); !errors.Is(err, ErrNoRecord) {
		t.Fatalf("got %v, want ErrNoRecord after torn write", err)
	}
}
