package mqtt

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultRetryInterval is how long the pump waits after a failed send
// before trying the same message again.
const DefaultRetryInterval = 5 * time.Second

// pump sends queued messages in order from its own goroutine. Every
// message goes through the outbox, so a failed send is retried before
// anything queued after it.
type pump struct {
	send  func(message) error
	retry time.Duration

	mu     sync.Mutex
	box    *outbox
	online bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func newPump(capacity int, retry time.Duration, send func(message) error) *pump {
	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	return &pump{
		send:  send,
		retry: retry,
		box:   newOutbox(capacity),
		wake:  make(chan struct{}, 1),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (p *pump) start() {
	go p.run()
}

// enqueue queues m and returns immediately.
func (p *pump) enqueue(m message) {
	p.mu.Lock()
	p.box.push(m)
	p.mu.Unlock()
	p.poke()
}

func (p *pump) setOnline(up bool) {
	p.mu.Lock()
	p.online = up
	p.mu.Unlock()
	if up {
		p.poke()
	}
}

func (p *pump) isOnline() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

func (p *pump) queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.box.len()
}

func (p *pump) poke() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// stop makes one last attempt to send what is queued, then returns the
// messages that could not be sent.
func (p *pump) stop() []message {
	p.once.Do(func() { close(p.quit) })
	<-p.done

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.box.drain()
}

func (p *pump) run() {
	defer close(p.done)

	for {
		sent := p.flush()

		var retry <-chan time.Time
		if !sent {
			retry = time.After(p.retry)
		}
		select {
		case <-p.quit:
			if sent {
				p.flush()
			}
			return
		case <-p.wake:
		case <-retry:
		}
	}
}

// flush sends queued messages oldest first while the connection is up.
// It stops at the first failure, leaving that message at the front, and
// reports whether the queue was left without a failed send.
func (p *pump) flush() bool {
	for {
		p.mu.Lock()
		if !p.online {
			p.mu.Unlock()
			return true
		}
		m, ok := p.box.front()
		p.mu.Unlock()
		if !ok {
			return true
		}

		if err := p.send(m); err != nil {
			log.Warn().Err(err).Str("topic", m.topic).Msg("mqtt: send failed, will retry")
			return false
		}

		p.mu.Lock()
		p.box.popIf(m.id)
		p.mu.Unlock()
	}
}
