package eeprom

// Memory is an in-process medium. Committed holds what survived the last
// Commit; tests use it to inspect or damage the durable image.
type Memory struct {
	image
	committed []byte
	commits   int

	// CommitError, if set, is returned by Commit and nothing is persisted.
	CommitError error
}

// NewMemory returns an erased Memory of size bytes.
func NewMemory(size int) *Memory {
	m := &Memory{image: newImage(size)}
	m.committed = append([]byte(nil), m.buf...)
	return m
}

// Commit copies staged writes to the durable image.
func (m *Memory) Commit() error {
	if m.CommitError != nil {
		return m.CommitError
	}
	if m.dirty {
		copy(m.committed, m.buf)
		m.dirty = false
	}
	m.commits++
	return nil
}

// Commits returns how many times Commit succeeded.
func (m *Memory) Commits() int {
	return m.commits
}

// Committed returns a copy of the durable image.
func (m *Memory) Committed() []byte {
	return append([]byte(nil), m.committed...)
}

// Reboot discards staged writes, as a power cycle would.
func (m *Memory) Reboot() {
	copy(m.buf, m.committed)
	m.dirty = false
}

// FlipBit inverts one bit in both the cache and the durable image.
func (m *Memory) FlipBit(offset int, bit uint) {
	m.buf[offset] ^= 1 << (bit % 8)
	m.committed[offset] ^= 1 << (bit % 8)
}
