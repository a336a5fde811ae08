// Package controller runs the rover's reactive control loop.
//
// Every tick senses proximity and a camera frame, labels the colour at the
// centre of the frame, reports each colour the first time it is seen, and
// drives through the turn state machine. An optional classifier is run at
// most once per run, on the first white patch, after which the rover holds
// still for a fixed number of ticks.
//
// All loop state lives in State and is owned by the goroutine calling Tick
// or Run. Sinks receive copies.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/classify"
	"github.com/teslashibe/go-rover/pkg/navigation"
	"github.com/teslashibe/go-rover/pkg/robot"
	"github.com/teslashibe/go-rover/pkg/sensor"
	"github.com/teslashibe/go-rover/pkg/vision"
)

// ErrNoDevices is returned by New when the device set is incomplete.
var ErrNoDevices = errors.New("controller: devices not acquired")

// State is the loop's persistent state.
type State struct {
	Seen *vision.SeenColors
	Turn *navigation.TurnMachine

	Ticks   uint64 // processed ticks
	Skipped uint64 // ticks skipped for lack of a usable frame

	// ClassifyAttempted is set once the optional classifier has been called.
	ClassifyAttempted bool
	// PauseRemaining counts the zero-velocity ticks still to hold.
	PauseRemaining int

	Command navigation.Command // last issued
}

// NewState returns the initial state: nothing seen, driving straight.
func NewState(nav navigation.Config) *State {
	return &State{
		Seen: vision.NewSeenColors(),
		Turn: navigation.NewTurnMachine(nav),
	}
}

// Snapshot is a read-only copy of State for observers.
type Snapshot struct {
	RunID   string             `json:"run_id,omitempty"`
	Tick    uint64             `json:"tick"`
	Skipped uint64             `json:"skipped"`
	Mode    string             `json:"mode"`
	Counter int                `json:"counter"`
	Command navigation.Command `json:"command"`
	Seen    []string           `json:"seen"`
	Paused  bool               `json:"paused"`
}

// TickResult describes what one tick did.
type TickResult struct {
	Step uint64

	// Skipped is true when no usable sample was available; Err says why.
	// A skipped tick mutates no state and issues no command.
	Skipped bool
	Err     error

	Sample   vision.Sample
	Label    vision.Label
	Obstacle bool

	Commanded bool
	Command   navigation.Command
	Paused    bool

	Events   []Event
	Duration time.Duration
	State    Snapshot
}

// Option configures a Controller.
type Option func(*Controller)

// WithClassifier sets the optional one-shot classifier.
func WithClassifier(opt classify.Optional) Option {
	return func(c *Controller) { c.classifier = opt }
}

// WithSinks adds event sinks.
func WithSinks(sinks ...EventSink) Option {
	return func(c *Controller) { c.sinks = append(c.sinks, sinks...) }
}

// WithRunID tags every event and snapshot.
func WithRunID(id string) Option {
	return func(c *Controller) { c.runID = id }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller ties the devices to the perception and navigation logic.
type Controller struct {
	cfg        Config
	dev        *robot.Devices
	state      *State
	classifier classify.Optional
	sinks      []EventSink
	runID      string
	now        func() time.Time
	pauseTicks int
}

// New creates a controller over an acquired device set.
func New(cfg Config, dev *robot.Devices, opts ...Option) (*Controller, error) {
	if dev == nil || dev.Stepper == nil || dev.Camera == nil || dev.Drive == nil {
		return nil, ErrNoDevices
	}
	c := &Controller{
		cfg:        cfg,
		dev:        dev,
		state:      NewState(cfg.Navigation),
		classifier: classify.Absent(),
		now:        time.Now,
		pauseTicks: cfg.PauseTicks(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns the live state. Only the loop goroutine may use it.
func (c *Controller) State() *State { return c.state }

// RunID returns the run identifier, if any.
func (c *Controller) RunID() string { return c.runID }

// Snapshot copies the current state.
func (c *Controller) Snapshot() Snapshot {
	ts := c.state.Turn.State()
	labels := c.state.Seen.Labels()
	seen := make([]string, len(labels))
	for i, l := range labels {
		seen[i] = l.String()
	}
	return Snapshot{
		RunID:   c.runID,
		Tick:    c.state.Ticks,
		Skipped: c.state.Skipped,
		Mode:    ts.Mode().String(),
		Counter: ts.Counter,
		Command: c.state.Command,
		Seen:    seen,
		Paused:  c.state.PauseRemaining > 0,
	}
}

// Sense reads one snapshot from the devices. A camera failure leaves
// Frame nil, which Tick treats as a degenerate frame.
func (c *Controller) Sense(step uint64) sensor.Snapshot {
	snap := sensor.Snapshot{Step: step, Proximity: c.dev.ReadProximity()}
	frame, err := c.dev.Camera.Capture()
	if err != nil {
		log.Debug("camera capture failed", "step", step, "error", err)
		return snap
	}
	snap.Frame = frame
	return snap
}

// Run steps the devices until the stepper stops or ctx is cancelled.
// It returns ctx.Err() on cancellation and nil when the stepper ends the run.
func (c *Controller) Run(ctx context.Context) error {
	log.Info("control loop starting",
		"run_id", c.runID,
		"profile", c.cfg.Thresholds.Name,
		"timestep_ms", c.cfg.TimeStep.Milliseconds(),
		"classifier", c.classifier.Name(),
	)

	var step uint64
	for c.dev.Stepper.Step(ctx, c.cfg.TimeStep) {
		step++
		c.Tick(ctx, c.Sense(step))
	}

	snap := c.Snapshot()
	log.Info("control loop stopped",
		"run_id", c.runID,
		"ticks", snap.Tick,
		"skipped", snap.Skipped,
		"seen", snap.Seen,
	)
	return ctx.Err()
}

// Tick runs one timestep against snap.
func (c *Controller) Tick(ctx context.Context, snap sensor.Snapshot) TickResult {
	start := c.now()
	res := TickResult{Step: snap.Step}

	sample, err := vision.SamplePatch(snap.Frame)
	if err != nil {
		c.state.Skipped++
		res.Skipped = true
		res.Err = err
		log.Debug("tick skipped", "step", snap.Step, "error", err)
		return c.finish(ctx, start, res)
	}
	c.state.Ticks++
	res.Sample = sample
	res.Label = c.cfg.Thresholds.Classify(sample)

	if s, ok := c.state.Seen.Report(res.Label); ok {
		c.emit(&res, Event{Kind: EventSighting, Label: s.Label, Seen: s.Seen})
	}

	if c.state.PauseRemaining > 0 {
		c.state.PauseRemaining--
		c.hold(&res)
		return c.finish(ctx, start, res)
	}

	if c.shouldClassify(sample) && c.classify(ctx, snap, &res) {
		c.state.PauseRemaining = c.pauseTicks
		c.hold(&res)
		return c.finish(ctx, start, res)
	}

	res.Obstacle = c.cfg.Navigation.ObstacleAhead(snap.Proximity)
	d := c.state.Turn.Step(res.Obstacle)
	if d.Triggered {
		c.emit(&res, Event{Kind: EventObstacle, Proximity: snap.Proximity})
	}
	c.drive(&res, d.Command)

	return c.finish(ctx, start, res)
}

func (c *Controller) shouldClassify(s vision.Sample) bool {
	return c.classifier.Available() && !c.state.ClassifyAttempted && vision.IsWhite(s)
}

// classify makes the single classifier call. It reports whether the call
// succeeded; failures are logged and leave the loop untouched.
func (c *Controller) classify(ctx context.Context, snap sensor.Snapshot, res *TickResult) bool {
	c.state.ClassifyAttempted = true
	c.drive(res, navigation.Command{})

	if c.cfg.ClassifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ClassifyTimeout)
		defer cancel()
	}

	start := time.Now()
	label, err := c.classifier.Classify(ctx, sensor.ToImage(snap.Frame))
	if err != nil {
		log.Warn("classifier failed, continuing without it",
			"classifier", c.classifier.Name(),
			"step", snap.Step,
			"error", err,
		)
		c.emit(res, Event{Kind: EventClassified, Err: err})
		return false
	}

	log.Info("classified white patch",
		"classifier", c.classifier.Name(),
		"label", label,
		"latency_ms", time.Since(start).Milliseconds(),
		"pause_ticks", c.pauseTicks,
	)
	c.emit(res, Event{Kind: EventClassified, Class: label})
	return true
}

func (c *Controller) hold(res *TickResult) {
	res.Paused = true
	c.drive(res, navigation.Command{})
}

func (c *Controller) drive(res *TickResult, cmd navigation.Command) {
	c.dev.Drive.SetVelocities(cmd.Left, cmd.Right)
	c.state.Command = cmd
	res.Commanded = true
	res.Command = cmd
}

func (c *Controller) emit(res *TickResult, ev Event) {
	ev.RunID = c.runID
	ev.Tick = res.Step
	ev.At = c.now()
	res.Events = append(res.Events, ev)
}

func (c *Controller) finish(ctx context.Context, start time.Time, res TickResult) TickResult {
	res.State = c.Snapshot()
	res.Duration = c.now().Sub(start)
	for _, ev := range res.Events {
		for _, s := range c.sinks {
			s.HandleEvent(ctx, ev)
		}
	}
	for _, s := range c.sinks {
		s.HandleTick(ctx, res)
	}
	return res
}

// String renders a result for debug logs.
func (r TickResult) String() string {
	if r.Skipped {
		return fmt.Sprintf("step %d skipped: %v", r.Step, r.Err)
	}
	return fmt.Sprintf("step %d label=%s obstacle=%t cmd=(%.1f, %.1f) paused=%t",
		r.Step, r.Label, r.Obstacle, r.Command.Left, r.Command.Right, r.Paused)
}
