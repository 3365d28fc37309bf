package mqtt

import "github.com/rs/zerolog/log"

// DefaultOutboxSize is how many messages are held while disconnected.
const DefaultOutboxSize = 100

// message is a serialized publish waiting for a connection.
type message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
	id       uint64 // assigned by push
}

// outbox is a fixed-capacity FIFO that drops the oldest message when full.
// Not safe for concurrent use; caller must synchronize.
type outbox struct {
	buf      []message
	head     int // next write position
	count    int
	overflow bool // a message was dropped since the last drain
	nextID   uint64
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{buf: make([]message, capacity)}
}

func (o *outbox) push(m message) {
	capacity := len(o.buf)
	o.nextID++
	m.id = o.nextID
	o.buf[o.head] = m
	o.head = (o.head + 1) % capacity

	if o.count < capacity {
		o.count++
		return
	}
	if !o.overflow {
		log.Warn().Int("capacity", capacity).Msg("mqtt: outbox full, dropping oldest")
		o.overflow = true
	}
}

func (o *outbox) tail() int {
	return (o.head - o.count + len(o.buf)) % len(o.buf)
}

// front returns the oldest queued message without removing it.
func (o *outbox) front() (message, bool) {
	if o.count == 0 {
		return message{}, false
	}
	return o.buf[o.tail()], true
}

// popIf removes the oldest message if it is still the one with id. It is a
// no-op when that message was already dropped by an overflowing push.
func (o *outbox) popIf(id uint64) {
	if o.count == 0 {
		return
	}
	i := o.tail()
	if o.buf[i].id != id {
		return
	}
	o.buf[i] = message{}
	o.count--
	if o.count == 0 {
		o.overflow = false
	}
}

// drain returns queued messages oldest first and empties the outbox.
func (o *outbox) drain() []message {
	if o.count == 0 {
		return nil
	}

	capacity := len(o.buf)
	out := make([]message, o.count)
	start := o.tail()
	for i := range out {
		out[i] = o.buf[(start+i)%capacity]
	}

	clear(o.buf)
	o.head = 0
	o.count = 0
	o.overflow = false
	return out
}

func (o *outbox) len() int {
	return o.count
}
