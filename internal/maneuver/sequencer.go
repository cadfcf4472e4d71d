package maneuver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/banshee-data/autopilot/internal/frame"
	"github.com/banshee-data/autopilot/internal/motion"
	"github.com/banshee-data/autopilot/internal/vision"
)

// Config holds the primitive parameters. The defaults are the values the
// course vehicle was tuned with.
type Config struct {
	Left          motion.Twist
	Right         motion.Twist
	TurnDuration  time.Duration
	StraightSpeed float64
	BackSpeed     float64
	Align         AlignConfig
}

// AlignConfig tunes the ALIGN primitive.
type AlignConfig struct {
	Timeout        time.Duration
	Tolerance      float64 // |slope| treated as level
	RotateRate     float64
	CreepSpeed     float64
	NearRow        float64 // fraction of frame height the line must reach
	LostLimit      int
	BackupSpeed    float64
	BackupDuration time.Duration
}

// DefaultConfig returns the tuned primitive parameters.
func DefaultConfig() Config {
	return Config{
		Left:          motion.Twist{Linear: 0.35, Angular: 1.05},
		Right:         motion.Twist{Linear: 0.35, Angular: -1.06},
		TurnDuration:  1500 * time.Millisecond,
		StraightSpeed: 0.3,
		BackSpeed:     0.3,
		Align: AlignConfig{
			Timeout:        30 * time.Second,
			Tolerance:      0.01,
			RotateRate:     0.2,
			CreepSpeed:     0.08,
			NearRow:        0.9,
			LostLimit:      10,
			BackupSpeed:    0.08,
			BackupDuration: 100 * time.Millisecond,
		},
	}
}

// Sequencer runs scripts through a motion driver. It is not safe for
// concurrent use; the arbiter owns it.
type Sequencer struct {
	cfg     Config
	driver  *motion.Driver
	aux     frame.Source
	lines   vision.LineLocator
	scripts map[string]Script
	onMark  func(string)
	log     zerolog.Logger
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithScripts replaces the script table.
func WithScripts(scripts map[string]Script) Option {
	return func(s *Sequencer) { s.scripts = scripts }
}

// WithMarkHook sets the function called for MARK steps.
func WithMarkHook(fn func(name string)) Option {
	return func(s *Sequencer) { s.onMark = fn }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Sequencer) { s.log = l }
}

// New returns a Sequencer. aux and lines are only used by ALIGN steps.
func New(cfg Config, driver *motion.Driver, aux frame.Source, lines vision.LineLocator, opts ...Option) *Sequencer {
	s := &Sequencer{
		cfg:     cfg,
		driver:  driver,
		aux:     aux,
		lines:   lines,
		scripts: Builtin(),
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Script returns the named script.
func (s *Sequencer) Script(name string) (Script, bool) {
	sc, ok := s.scripts[name]
	return sc, ok
}

// Names returns the registered script names in order.
func (s *Sequencer) Names() []string { return SortedNames(s.scripts) }

// Run executes the named script.
func (s *Sequencer) Run(ctx context.Context, name string) error {
	sc, ok := s.scripts[name]
	if !ok {
		return fmt.Errorf("%w: %q (have %v)", ErrUnknownScript, name, lo.Keys(s.scripts))
	}
	start := s.driver.Clock().Now()
	s.log.Info().Str("script", name).Int("steps", len(sc)).Msg("maneuver started")
	if err := s.Execute(ctx, sc); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	s.log.Info().Str("script", name).Dur("elapsed", s.driver.Clock().Now().Sub(start)).Msg("maneuver finished")
	return nil
}

// Execute runs sc step by step, blocking until it completes. The context is
// only checked between steps and inside ALIGN; a step that fails to align is
// logged and the script carries on.
func (s *Sequencer) Execute(ctx context.Context, sc Script) error {
	for i, st := range sc {
		if err := ctx.Err(); err != nil {
			s.driver.Stop()
			return err
		}
		s.log.Debug().Int("step", i+1).Stringer("op", st).Msg("step")
		if err := s.step(ctx, st); err != nil {
			if ctx.Err() != nil {
				return err
			}
			if errors.Is(err, ErrInvalidStep) {
				s.driver.Stop()
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			s.log.Warn().Err(err).Int("step", i+1).Msg("alignment abandoned, continuing")
		}
	}
	return nil
}

func (s *Sequencer) step(ctx context.Context, st Step) error {
	d := s.driver
	switch st.Op {
	case OpLeft:
		d.Pulse(s.cfg.Left, s.cfg.TurnDuration)
	case OpRight:
		d.Pulse(s.cfg.Right, s.cfg.TurnDuration)
	case OpStraight:
		d.Pulse(motion.Twist{Linear: orDefault(st.Speed, s.cfg.StraightSpeed)}, st.Duration)
	case OpBack:
		d.Pulse(motion.Twist{Linear: -orDefault(st.Speed, s.cfg.BackSpeed)}, st.Duration)
	case OpTwist:
		d.Pulse(motion.Twist{Angular: st.Rate}, st.Duration)
	case OpStop:
		d.Stop()
	case OpMark:
		s.log.Info().Str("mark", st.Name).Msg("mark")
		if s.onMark != nil {
			s.onMark(st.Name)
		}
	case OpAlign:
		return s.Align(ctx)
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidStep, st.Op)
	}
	return nil
}

func orDefault(v, def float64) float64 {
	return lo.Ternary(v != 0, v, def)
}
