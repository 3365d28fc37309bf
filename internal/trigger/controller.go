package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/glade/internal/history"
	"github.com/sweeney/glade/internal/schedule"
)

// fsm event names.
const (
	fsmActivate = "activate"
	fsmRelease  = "release"
)

// Config holds the controller's collaborators and initial settings.
type Config struct {
	Schedule    schedule.Schedule
	HistorySize int
	Store       SettingsSaver
	Clock       Clock
	Output      Output
	Timers      Scheduler
}

// Controller decides when the output is activated.
type Controller struct {
	fsm      *fsm.FSM
	schedule schedule.Schedule
	history  *history.Bounded[uint64]

	store  SettingsSaver
	clock  Clock
	output Output
	timers Scheduler

	started    bool
	cancelTick func()

	// Set by fsm callbacks during a single Dispatch.
	denied Reason
	last   *Activation
}

// New returns an idle controller.
func New(cfg Config) (*Controller, error) {
	var errs []error
	if cfg.Store == nil {
		errs = append(errs, errors.New("trigger: Store is required"))
	}
	if cfg.Clock == nil {
		errs = append(errs, errors.New("trigger: Clock is required"))
	}
	if cfg.Output == nil {
		errs = append(errs, errors.New("trigger: Output is required"))
	}
	if cfg.Timers == nil {
		errs = append(errs, errors.New("trigger: Timers is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	c := &Controller{
		schedule: cfg.Schedule,
		history:  history.New[uint64](cfg.HistorySize),
		store:    cfg.Store,
		clock:    cfg.Clock,
		output:   cfg.Output,
		timers:   cfg.Timers,
	}

	c.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: fsmActivate, Src: []string{StateIdle}, Dst: StateActive},
			{Name: fsmRelease, Src: []string{StateActive}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"before_" + fsmActivate: c.guardSchedule,
			"enter_" + StateActive:  c.enterActive,
			"enter_" + StateIdle:    c.enterIdle,
		},
	)

	return c, nil
}

// Dispatch processes one event and reports what happened. A trigger while
// active is rejected without side effects.
func (c *Controller) Dispatch(ctx context.Context, ev Event) Outcome {
	now := c.clock.Now()
	out := Outcome{Event: ev}

	if ev == EventRearm {
		if !c.fsm.Is(StateActive) {
			log.Warn().Msg("trigger: rearm while idle, ignoring")
			return out
		}
		if err := c.fsm.Event(ctx, fsmRelease, now); err != nil {
			log.Error().Err(err).Msg("trigger: release failed")
			return out
		}
		out.Released = true
		return out
	}

	src, ok := ev.Source()
	if !ok {
		log.Warn().Str("event", string(ev)).Msg("trigger: unknown event")
		out.Reason = ReasonUnknownEvent
		return out
	}
	out.Source = src

	if c.fsm.Is(StateActive) {
		log.Debug().Str("source", string(src)).Msg("trigger: already active")
		out.Reason = ReasonAlreadyActive
		return out
	}

	c.denied = ""
	c.last = nil
	err := c.fsm.Event(ctx, fsmActivate, src, now)
	if c.denied != "" {
		out.Reason = c.denied
		return out
	}
	if isFsmRealError(err) {
		log.Error().Err(err).Str("source", string(src)).Msg("trigger: activation failed")
		return out
	}

	out.Accepted = c.last != nil
	out.Activation = c.last
	return out
}

// guardSchedule cancels timer activations the schedule does not allow.
// Button and remote requests bypass the schedule.
func (c *Controller) guardSchedule(_ context.Context, e *fsm.Event) {
	src := e.Args[0].(Source)
	if src != SourceTimer {
		return
	}

	now := e.Args[1].(time.Time)
	verdict := c.schedule.Evaluate(now.Weekday(), now.Hour())
	if verdict == schedule.Allowed {
		return
	}

	log.Debug().
		Str("verdict", string(verdict)).
		Str("weekday", now.Weekday().String()).
		Int("hour", now.Hour()).
		Msg("trigger: tick outside schedule")
	c.denied = reasonFromVerdict(verdict)
	e.Cancel()
}

func (c *Controller) enterActive(_ context.Context, e *fsm.Event) {
	src := e.Args[0].(Source)
	now := e.Args[1].(time.Time)

	if err := c.output.Assert(); err != nil {
		log.Error().Err(err).Msg("trigger: assert output")
	}
	c.timers.Once(RearmDelay, EventRearm)

	var epoch uint64
	if unix := now.Unix(); unix > 0 {
		epoch = uint64(unix)
	}
	c.history.Push(epoch)
	c.last = &Activation{Timestamp: now, Epoch: epoch, Source: src}

	log.Info().
		Str("source", string(src)).
		Uint64("epoch", epoch).
		Msg("trigger: activated")
}

func (c *Controller) enterIdle(_ context.Context, _ *fsm.Event) {
	if err := c.output.Deassert(); err != nil {
		log.Error().Err(err).Msg("trigger: deassert output")
	}
	log.Debug().Msg("trigger: re-armed")
}

// Start arms the repeating schedule tick and the startup check.
func (c *Controller) Start() {
	c.started = true
	c.armTick()
	c.timers.Once(StartupDelay, EventTick)
}

// Stop cancels the repeating tick. A pending rearm still fires.
func (c *Controller) Stop() {
	c.started = false
	if c.cancelTick != nil {
		c.cancelTick()
		c.cancelTick = nil
	}
}

func (c *Controller) armTick() {
	if c.cancelTick != nil {
		c.cancelTick()
	}
	interval, corrected := schedule.ValidateInterval(int(c.schedule.Interval))
	if corrected {
		log.Warn().
			Uint16("stored", c.schedule.Interval).
			Uint16("interval", interval).
			Msg("trigger: stored interval out of range, using fallback")
	}
	period := time.Duration(interval) * time.Second
	c.cancelTick = c.timers.Repeat(period, EventTick)
	log.Info().Dur("period", period).Msg("trigger: schedule tick armed")
}

// UpdateSettings validates and applies u. The new schedule is persisted
// before it is adopted; if nothing changed nothing is written.
func (c *Controller) UpdateSettings(u Update) (UpdateResult, error) {
	interval, corrected := schedule.ValidateInterval(u.Interval)
	if corrected {
		log.Warn().
			Int("requested", u.Interval).
			Uint16("interval", interval).
			Msg("trigger: invalid interval, using fallback")
	}

	next := c.schedule
	next.Active = u.Active
	next.Interval = interval

	res := UpdateResult{IntervalCorrected: corrected, Schedule: c.schedule}
	if next == c.schedule {
		return res, nil
	}

	if err := c.store.Save(next); err != nil {
		return res, fmt.Errorf("save settings: %w", err)
	}

	intervalChanged := next.Interval != c.schedule.Interval
	c.schedule = next
	res.Changed = true
	res.Schedule = next
	log.Info().
		Bool("active", next.Active).
		Uint16("interval", next.Interval).
		Msg("trigger: settings saved")

	if intervalChanged && c.started {
		c.armTick()
	}
	return res, nil
}

// Schedule returns the schedule in effect.
func (c *Controller) Schedule() schedule.Schedule {
	return c.schedule
}

// History returns activation epochs, oldest first.
func (c *Controller) History() []uint64 {
	return c.history.Items()
}

// Active reports whether the output is asserted.
func (c *Controller) Active() bool {
	return c.fsm.Is(StateActive)
}

// State returns the current state name.
func (c *Controller) State() string {
	return c.fsm.Current()
}

func isFsmRealError(err error) bool {
	if err == nil {
		return false
	}

	var noTransition fsm.NoTransitionError
	var canceled fsm.CanceledError

	if errors.As(err, &noTransition) || errors.As(err, &canceled) {
		return false
	}
	return true
}
