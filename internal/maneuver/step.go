// Package maneuver executes scripted open-loop movement sequences such as the
// inner-loop entry and the hard turn around the obstacle.
//
// A Script is an ordered list of Steps. Every movement step issues one
// command, holds it for a duration, then stops the vehicle. The ALIGN step is
// closed-loop: it watches the auxiliary camera and rotates or creeps until the
// painted reference line is level and stable.
package maneuver

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// Op names a primitive.
type Op string

const (
	OpLeft     Op = "left"
	OpRight    Op = "right"
	OpStraight Op = "straight"
	OpBack     Op = "back"
	OpTwist    Op = "twist"
	OpStop     Op = "stop"
	OpAlign    Op = "align"
	OpMark     Op = "mark"
)

var knownOps = []Op{OpLeft, OpRight, OpStraight, OpBack, OpTwist, OpStop, OpAlign, OpMark}

var (
	// ErrUnknownScript is returned when a script name is not registered.
	ErrUnknownScript = errors.New("unknown maneuver script")
	// ErrInvalidStep is returned for a step that cannot be executed.
	ErrInvalidStep = errors.New("invalid maneuver step")
)

// Step is one primitive of a script. Speed and Rate are optional overrides;
// zero selects the sequencer's configured value.
type Step struct {
	Op       Op            `yaml:"op"`
	Duration time.Duration `yaml:"duration,omitempty"`
	Speed    float64       `yaml:"speed,omitempty"`
	Rate     float64       `yaml:"rate,omitempty"`
	Name     string        `yaml:"name,omitempty"`
}

// Left is the fixed left turn.
func Left() Step { return Step{Op: OpLeft} }

// Right is the fixed right turn.
func Right() Step { return Step{Op: OpRight} }

// Straight drives forward at the configured speed for d.
func Straight(d time.Duration) Step { return Step{Op: OpStraight, Duration: d} }

// Back reverses for d. A zero speed selects the configured reverse speed.
func Back(d time.Duration, speed float64) Step {
	return Step{Op: OpBack, Duration: d, Speed: speed}
}

// Twist rotates in place at rate rad/s for d.
func Twist(rate float64, d time.Duration) Step {
	return Step{Op: OpTwist, Rate: rate, Duration: d}
}

// Stop issues the zero command.
func Stop() Step { return Step{Op: OpStop} }

// Align squares the vehicle up against the reference line.
func Align() Step { return Step{Op: OpAlign} }

// Mark reports name to the sequencer's mark hook.
func Mark(name string) Step { return Step{Op: OpMark, Name: name} }

// Validate reports whether s can be executed.
func (s Step) Validate() error {
	if !lo.Contains(knownOps, s.Op) {
		return fmt.Errorf("%w: unknown op %q", ErrInvalidStep, s.Op)
	}
	if s.Duration < 0 {
		return fmt.Errorf("%w: %s: negative duration %v", ErrInvalidStep, s.Op, s.Duration)
	}
	if s.Speed < 0 {
		return fmt.Errorf("%w: %s: negative speed %v", ErrInvalidStep, s.Op, s.Speed)
	}
	switch s.Op {
	case OpStraight, OpBack, OpTwist:
		if s.Duration == 0 {
			return fmt.Errorf("%w: %s needs a duration", ErrInvalidStep, s.Op)
		}
	case OpMark:
		if s.Name == "" {
			return fmt.Errorf("%w: mark needs a name", ErrInvalidStep)
		}
	}
	return nil
}

func (s Step) String() string {
	switch s.Op {
	case OpStraight:
		return fmt.Sprintf("straight %v", s.Duration)
	case OpBack:
		if s.Speed != 0 {
			return fmt.Sprintf("back %v @%.2f", s.Duration, s.Speed)
		}
		return fmt.Sprintf("back %v", s.Duration)
	case OpTwist:
		return fmt.Sprintf("twist %.2f %v", s.Rate, s.Duration)
	case OpMark:
		return "mark " + s.Name
	}
	return string(s.Op)
}

// MarshalYAML renders durations as strings so that a dumped script can be
// loaded back.
func (s Step) MarshalYAML() (interface{}, error) {
	type out struct {
		Op       Op      `yaml:"op"`
		Duration string  `yaml:"duration,omitempty"`
		Speed    float64 `yaml:"speed,omitempty"`
		Rate     float64 `yaml:"rate,omitempty"`
		Name     string  `yaml:"name,omitempty"`
	}
	o := out{Op: s.Op, Speed: s.Speed, Rate: s.Rate, Name: s.Name}
	if s.Duration != 0 {
		o.Duration = s.Duration.String()
	}
	return o, nil
}

// Script is an ordered list of steps.
type Script []Step

// Validate checks every step.
func (sc Script) Validate() error {
	for i, s := range sc {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}
