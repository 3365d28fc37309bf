// Package device runs the trigger controller on a single goroutine and
// connects it to the button, MQTT, metrics and the status tracker.
package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/glade/internal/clock"
	"github.com/sweeney/glade/internal/debounce"
	"github.com/sweeney/glade/internal/gpio"
	"github.com/sweeney/glade/internal/metrics"
	"github.com/sweeney/glade/internal/mqtt"
	"github.com/sweeney/glade/internal/schedule"
	"github.com/sweeney/glade/internal/status"
	"github.com/sweeney/glade/internal/trigger"
	"github.com/sweeney/glade/internal/web"
)

// Loop-internal timer events. The controller never sees these.
const (
	eventPoll      trigger.Event = "poll"
	eventHeartbeat trigger.Event = "heartbeat"
)

// Defaults for the button poller.
const (
	DefaultButtonPoll     = 20 * time.Millisecond
	DefaultButtonDebounce = 50 * time.Millisecond
)

const (
	workQueueSize    = 64
	publishQueueSize = 64
)

// ErrStopped is returned by requests made after the loop has exited.
var ErrStopped = errors.New("device loop stopped")

// SignalError is a cancellation cause carrying the signal that stopped
// the daemon.
type SignalError struct {
	Signal os.Signal
}

func (e SignalError) Error() string {
	return "received " + e.Signal.String()
}

// Config holds the loop's collaborators. Clock, Output and Store are
// required; the rest are optional.
type Config struct {
	Clock       clock.Clock
	Output      trigger.Output
	Store       trigger.SettingsSaver
	Schedule    schedule.Schedule
	HistorySize int

	// Button is polled every ButtonPoll; nil disables the button.
	Button         gpio.Button
	ButtonPoll     time.Duration
	ButtonDebounce time.Duration

	Publisher mqtt.Publisher
	Tracker   *status.Tracker
	Metrics   *metrics.Metrics

	// Heartbeat is the system event period; zero disables it.
	Heartbeat time.Duration
	// Network, if set, is consulted on every heartbeat.
	Network func() *status.NetworkInfo
}

// Loop owns a trigger.Controller. All controller access happens on the
// goroutine running Run; other goroutines submit work and wait.
type Loop struct {
	clock     clock.Clock
	ctrl      *trigger.Controller
	timers    *trigger.ClockScheduler
	button    gpio.Button
	debouncer *debounce.Debouncer
	publisher mqtt.Publisher
	tracker   *status.Tracker
	metrics   *metrics.Metrics
	network   func() *status.NetworkInfo

	pollEvery time.Duration
	heartbeat time.Duration

	work chan func(context.Context)
	done chan struct{}

	// outbound feeds the publish worker. Only the loop goroutine sends on
	// it, so broker I/O never delays timer or button handling.
	outbound  chan func()
	published chan struct{}
}

// New builds the controller and the loop around it.
func New(cfg Config) (*Loop, error) {
	if cfg.Clock == nil {
		return nil, errors.New("device: Clock is required")
	}

	l := &Loop{
		clock:     cfg.Clock,
		button:    cfg.Button,
		publisher: cfg.Publisher,
		tracker:   cfg.Tracker,
		metrics:   cfg.Metrics,
		network:   cfg.Network,
		pollEvery: cfg.ButtonPoll,
		heartbeat: cfg.Heartbeat,
		work:      make(chan func(context.Context), workQueueSize),
		done:      make(chan struct{}),
		outbound:  make(chan func(), publishQueueSize),
		published: make(chan struct{}),
	}
	if l.publisher == nil {
		l.publisher = mqtt.Discard{}
	}
	if l.tracker == nil {
		l.tracker = status.NewTracker(cfg.Clock.Now(), status.Config{})
	}
	if l.metrics == nil {
		l.metrics = metrics.New()
	}
	if l.pollEvery <= 0 {
		l.pollEvery = DefaultButtonPoll
	}
	debounceFor := cfg.ButtonDebounce
	if debounceFor <= 0 {
		debounceFor = DefaultButtonDebounce
	}
	l.debouncer = debounce.New(debounceFor)

	l.timers = trigger.NewClockScheduler(cfg.Clock, l.post)

	var store trigger.SettingsSaver
	if cfg.Store != nil {
		store = observedStore{saver: cfg.Store, metrics: l.metrics}
	}
	ctrl, err := trigger.New(trigger.Config{
		Schedule:    cfg.Schedule,
		HistorySize: cfg.HistorySize,
		Store:       store,
		Clock:       cfg.Clock,
		Output:      cfg.Output,
		Timers:      l.timers,
	})
	if err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}
	l.ctrl = ctrl
	return l, nil
}

// post queues a timer event for the loop. It drops the event once the
// loop has exited.
func (l *Loop) post(ev trigger.Event) {
	select {
	case l.work <- func(ctx context.Context) { l.handle(ctx, ev) }:
	case <-l.done:
	}
}

// Run processes events until ctx is done, then publishes SHUTDOWN with
// the cancellation cause as its reason.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	go l.runPublisher()
	defer func() {
		close(l.outbound)
		<-l.published
	}()

	l.refresh()
	l.publishSystem(mqtt.EventStartup, "")

	l.ctrl.Start()
	defer l.ctrl.Stop()

	if l.button != nil {
		cancelPoll := l.timers.Repeat(l.pollEvery, eventPoll)
		defer cancelPoll()
	}
	if l.heartbeat > 0 {
		cancelHeartbeat := l.timers.Repeat(l.heartbeat, eventHeartbeat)
		defer cancelHeartbeat()
	}

	log.Info().
		Dur("button_poll", l.pollEvery).
		Dur("heartbeat", l.heartbeat).
		Bool("button", l.button != nil).
		Msg("device loop started")

	for {
		select {
		case <-ctx.Done():
			reason := shutdownReason(ctx)
			log.Info().Str("reason", reason).Msg("device loop stopping")
			l.refresh()
			l.publishSystem(mqtt.EventShutdown, reason)
			return nil

		case fn := <-l.work:
			fn(ctx)
		}
	}
}

func (l *Loop) handle(ctx context.Context, ev trigger.Event) {
	switch ev {
	case eventPoll:
		l.pollButton(ctx)
	case eventHeartbeat:
		l.sendHeartbeat()
	default:
		l.dispatch(ctx, ev)
	}
}

func (l *Loop) dispatch(ctx context.Context, ev trigger.Event) trigger.Outcome {
	out := l.ctrl.Dispatch(ctx, ev)

	l.metrics.ObserveOutcome(out)
	l.tracker.RecordOutcome(out)
	l.refresh()

	if out.Activation != nil {
		a := *out.Activation
		l.enqueuePublish("activation", func() {
			if err := l.publisher.Publish(a); err != nil {
				log.Warn().Err(err).Str("source", string(a.Source)).Msg("publish activation failed")
			}
		})
	}
	return out
}

// runPublisher hands queued messages to the publisher until outbound is
// closed and drained.
func (l *Loop) runPublisher() {
	defer close(l.published)
	for fn := range l.outbound {
		fn()
	}
}

// enqueuePublish queues fn for the publish worker. It never blocks; when
// the worker is that far behind the message is dropped.
func (l *Loop) enqueuePublish(what string, fn func()) bool {
	select {
	case l.outbound <- fn:
		return true
	default:
		log.Warn().Str("message", what).Msg("publish queue full, dropping")
		return false
	}
}

// Flush waits until every message queued by earlier events has been
// handed to the publisher.
func (l *Loop) Flush(ctx context.Context) error {
	marker, err := call(ctx, l, func(context.Context) chan struct{} {
		ch := make(chan struct{})
		if !l.enqueuePublish("flush", func() { close(ch) }) {
			return nil
		}
		return ch
	})
	if err != nil {
		return err
	}
	if marker == nil {
		return errors.New("publish queue full")
	}
	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) pollButton(ctx context.Context) {
	pressed, err := l.button.Pressed()
	if err != nil {
		log.Warn().Err(err).Msg("button read failed")
		return
	}

	edge, ok := l.debouncer.Process(debounce.Sample{Pressed: pressed, Time: l.clock.Now()})
	if !ok || edge != debounce.EdgePress {
		return
	}
	log.Info().Int("presses", l.debouncer.Presses()).Msg("button pressed")
	l.dispatch(ctx, trigger.EventButton)
}

func (l *Loop) sendHeartbeat() {
	if l.network != nil {
		if info := l.network(); info != nil {
			l.tracker.SetNetwork(info)
		}
	}
	l.refresh()

	snap := l.tracker.Snapshot()
	log.Info().
		Dur("uptime", snap.Uptime()).
		Int("timer", snap.Counts.Timer).
		Int("button", snap.Counts.Button).
		Int("remote", snap.Counts.Remote).
		Int("rejected", snap.Counts.Rejected).
		Msg("heartbeat")
	l.publishSystem(mqtt.EventHeartbeat, "")
}

// refresh copies controller and broker state into the tracker and gauges.
func (l *Loop) refresh() {
	l.tracker.Update(l.ctrl.Active(), l.ctrl.Schedule(), l.ctrl.History())
	if cs, ok := l.publisher.(mqtt.ConnectionStatus); ok {
		up := cs.IsConnected()
		l.tracker.SetMQTTConnected(up)
		l.metrics.SetBrokerConnected(up)
	}
}

func (l *Loop) publishSystem(event, reason string) {
	ev := mqtt.SystemEvent{
		Timestamp: l.clock.Now(),
		Event:     event,
		Reason:    reason,
		Retained:  event != mqtt.EventHeartbeat,
	}
	raw, err := status.FormatStatusEvent(l.tracker.Snapshot(), event, reason)
	if err != nil {
		log.Warn().Err(err).Str("event", event).Msg("format status event, sending plain event")
	} else {
		ev.RawPayload = raw
	}

	l.enqueuePublish(event, func() {
		if err := l.publisher.PublishSystem(ev); err != nil {
			log.Warn().Err(err).Str("event", event).Msg("publish system event failed")
			return
		}
		log.Debug().Str("event", event).Msg("published system event")
	})
}

// States of a request handed to the loop by call.
const (
	callPending int32 = iota
	callStarted
	callAbandoned
)

// call runs fn on the loop goroutine and returns its result. A request
// whose caller gives up before the loop reaches it is skipped, so an
// UnavailableError means fn did not run. Once fn has started, call waits
// for its result.
func call[T any](ctx context.Context, l *Loop, fn func(context.Context) T) (T, error) {
	var zero T
	var state atomic.Int32
	result := make(chan T, 1)

	job := func(runCtx context.Context) {
		if !state.CompareAndSwap(callPending, callStarted) {
			return
		}
		result <- fn(runCtx)
	}

	select {
	case l.work <- job:
	case <-ctx.Done():
		return zero, &web.UnavailableError{Err: ctx.Err()}
	case <-l.done:
		return zero, &web.UnavailableError{Err: ErrStopped}
	}

	var cause error
	select {
	case v := <-result:
		return v, nil
	case <-ctx.Done():
		cause = ctx.Err()
	case <-l.done:
		cause = ErrStopped
	}
	if state.CompareAndSwap(callPending, callAbandoned) {
		return zero, &web.UnavailableError{Err: cause}
	}
	return <-result, nil
}

// RequestTrigger submits a remote trigger request.
func (l *Loop) RequestTrigger(ctx context.Context) (trigger.Outcome, error) {
	return call(ctx, l, func(runCtx context.Context) trigger.Outcome {
		return l.dispatch(runCtx, trigger.EventRemote)
	})
}

type updateReply struct {
	res trigger.UpdateResult
	err error
}

// UpdateSettings applies u. Persisted changes are announced with a
// SETTINGS system event.
func (l *Loop) UpdateSettings(ctx context.Context, u trigger.Update) (trigger.UpdateResult, error) {
	reply, err := call(ctx, l, func(context.Context) updateReply {
		res, err := l.ctrl.UpdateSettings(u)
		if err != nil {
			log.Error().Err(err).Msg("settings update failed")
			return updateReply{res: res, err: err}
		}
		l.metrics.ObserveUpdate(res)
		l.refresh()
		if res.Changed {
			l.publishSystem(mqtt.EventSettings, "")
		}
		return updateReply{res: res}
	})
	if err != nil {
		return trigger.UpdateResult{}, err
	}
	return reply.res, reply.err
}

// Schedule returns the schedule in effect.
func (l *Loop) Schedule(ctx context.Context) (schedule.Schedule, error) {
	return call(ctx, l, func(context.Context) schedule.Schedule {
		return l.ctrl.Schedule()
	})
}

// History returns activation epochs, oldest first.
func (l *Loop) History(ctx context.Context) ([]uint64, error) {
	return call(ctx, l, func(context.Context) []uint64 {
		return l.ctrl.History()
	})
}

// Active reports whether the output is asserted.
func (l *Loop) Active(ctx context.Context) (bool, error) {
	return call(ctx, l, func(context.Context) bool {
		return l.ctrl.Active()
	})
}

type observedStore struct {
	saver   trigger.SettingsSaver
	metrics *metrics.Metrics
}

func (s observedStore) Save(sch schedule.Schedule) error {
	start := time.Now()
	err := s.saver.Save(sch)
	s.metrics.ObserveSave(time.Since(start), err)
	return err
}

func shutdownReason(ctx context.Context) string {
	cause := context.Cause(ctx)

	var sig SignalError
	if errors.As(cause, &sig) {
		switch sig.Signal {
		case syscall.SIGINT:
			return "SIGINT"
		case syscall.SIGTERM:
			return "SIGTERM"
		}
		return "UNKNOWN"
	}
	if cause == nil || errors.Is(cause, context.Canceled) {
		return "UNKNOWN"
	}
	return cause.Error()
}
