// Package autopilot arbitrates between lane following, the crosswalk stop,
// and the inner-loop maneuvers. Each frame produces exactly one decision;
// a maneuver blocks the loop until its script completes.
package autopilot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/banshee-data/autopilot/internal/frame"
	"github.com/banshee-data/autopilot/internal/maneuver"
	"github.com/banshee-data/autopilot/internal/motion"
	"github.com/banshee-data/autopilot/internal/signals"
	"github.com/banshee-data/autopilot/internal/timeutil"
)

// Behavior is the arbitration outcome of one tick, in priority order.
type Behavior int

const (
	LaneFollowing Behavior = iota
	StoppedForRedline
	EnteringInnerLoop
	AligningInnerLoop
	AwaitingObstacleClearance
	ExecutingHardTurn
)

var behaviorNames = map[Behavior]string{
	LaneFollowing:             "lane_following",
	StoppedForRedline:         "stopped_for_redline",
	EnteringInnerLoop:         "entering_inner_loop",
	AligningInnerLoop:         "aligning_inner_loop",
	AwaitingObstacleClearance: "awaiting_obstacle_clearance",
	ExecutingHardTurn:         "executing_hard_turn",
}

func (b Behavior) String() string {
	if s, ok := behaviorNames[b]; ok {
		return s
	}
	return fmt.Sprintf("behavior(%d)", int(b))
}

// Steerer is the lane-following controller.
type Steerer interface {
	AutoSteer(frame.Frame) motion.Twist
	Stop()
	MoveForwards(time.Duration)
}

// PedestrianDetector reports when it is safe to cross the crosswalk.
type PedestrianDetector interface {
	RobotShouldCross(frame.Frame) bool
}

// ObstacleDetector reports when the inner-loop obstacle has cleared.
type ObstacleDetector interface {
	CanProceed(frame.Frame) bool
}

// Maneuvers runs named scripts.
type Maneuvers interface {
	Run(ctx context.Context, name string) error
}

// Components are the collaborators the arbiter drives.
type Components struct {
	Board      *signals.Board
	Steering   Steerer
	Pedestrian PedestrianDetector
	Obstacle   ObstacleDetector
	Maneuvers  Maneuvers
}

// Config gates the inner-loop entry and the crosswalk.
type Config struct {
	CrossingDuration   time.Duration
	MinLap             int
	MinLicenseDuration int // repeats of the entry marker required, exclusive
}

// DefaultConfig returns the course defaults.
func DefaultConfig() Config {
	return Config{
		CrossingDuration:   1250 * time.Millisecond,
		MinLap:             0,
		MinLicenseDuration: 1,
	}
}

// Transition describes a change of behavior.
type Transition struct {
	Seq     uint64
	At      time.Time
	From    Behavior
	To      Behavior
	Signals signals.Snapshot
}

// Observer is told about every behavior change.
type Observer interface {
	Transition(Transition)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Transition)

// Transition calls f(t).
func (f ObserverFunc) Transition(t Transition) { f(t) }

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(a *Arbiter) { a.observers = append(a.observers, o) }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Arbiter) { a.log = l }
}

// WithClock sets the clock used to timestamp transitions.
func WithClock(c timeutil.Clock) Option {
	return func(a *Arbiter) { a.clock = c }
}

// Arbiter is the per-frame state machine.
type Arbiter struct {
	cfg       Config
	c         Components
	observers []Observer
	log       zerolog.Logger
	clock     timeutil.Clock

	current Behavior
	ticks   uint64
}

// New returns an Arbiter starting in LaneFollowing.
func New(cfg Config, c Components, opts ...Option) *Arbiter {
	a := &Arbiter{
		cfg:   cfg,
		c:     c,
		log:   zerolog.Nop(),
		clock: timeutil.RealClock{},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Behavior returns the behavior selected by the last tick.
func (a *Arbiter) Behavior() Behavior { return a.current }

// Ticks returns the number of frames processed.
func (a *Arbiter) Ticks() uint64 { return a.ticks }

// Tick makes one decision for f. An error is only returned when a maneuver
// could not run.
func (a *Arbiter) Tick(ctx context.Context, f frame.Frame) (Behavior, error) {
	a.ticks++
	b := a.c.Board
	var (
		next Behavior
		err  error
	)
	switch {
	case b.Redline():
		next = StoppedForRedline
		a.c.Steering.Stop()
		if a.c.Pedestrian.RobotShouldCross(f) {
			a.log.Info().Uint64("seq", f.Seq).Msg("crosswalk clear")
			a.c.Steering.MoveForwards(a.cfg.CrossingDuration)
			b.SetRedline(false)
		}
	case a.shouldEnterInnerLoop():
		next = EnteringInnerLoop
		b.SetInnerLoop(true)
	case b.InnerLoop():
		switch {
		case !b.Aligned():
			next = AligningInnerLoop
			a.transition(f, next)
			a.c.Steering.Stop()
			if err = a.c.Maneuvers.Run(ctx, maneuver.FaceInward); err == nil {
				b.SetAligned(true)
			}
		case a.c.Obstacle.CanProceed(f):
			next = ExecutingHardTurn
			a.transition(f, next)
			if err = a.c.Maneuvers.Run(ctx, maneuver.HardTurn); err == nil {
				b.SetInnerLoop(false)
				b.SetAligned(false)
			}
		default:
			next = AwaitingObstacleClearance
			a.c.Steering.Stop()
		}
	default:
		next = LaneFollowing
		a.c.Steering.AutoSteer(f)
	}
	a.transition(f, next)
	return next, err
}

func (a *Arbiter) shouldEnterInnerLoop() bool {
	b := a.c.Board
	code, dur := b.License()
	return code == signals.EntryMarker &&
		dur > a.cfg.MinLicenseDuration &&
		b.Greenline() &&
		!b.InnerLoop() &&
		b.Lap() >= a.cfg.MinLap
}

func (a *Arbiter) transition(f frame.Frame, next Behavior) {
	if next == a.current {
		return
	}
	t := Transition{
		Seq:     f.Seq,
		At:      a.clock.Now(),
		From:    a.current,
		To:      next,
		Signals: a.c.Board.Snapshot(),
	}
	a.current = next
	a.log.Info().
		Uint64("seq", f.Seq).
		Stringer("from", t.From).
		Stringer("to", t.To).
		Msg("behavior changed")
	for _, o := range a.observers {
		o.Transition(t)
	}
}

// Run ticks once per frame until frames closes or ctx is done, then stops
// the vehicle. A closed frame channel is a normal end of run.
func (a *Arbiter) Run(ctx context.Context, frames <-chan frame.Frame) error {
	defer a.c.Steering.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				a.log.Info().Uint64("ticks", a.ticks).Msg("frame stream ended")
				return nil
			}
			if _, err := a.Tick(ctx, f); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				return fmt.Errorf("tick %d: %w", f.Seq, err)
			}
		}
	}
}
