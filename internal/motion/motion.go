// Package motion defines the velocity command sent to the drive base and the
// single executor that issues commands and waits between them.
package motion

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/banshee-data/autopilot/internal/timeutil"
)

// Twist is a planar velocity command: forward speed in m/s and yaw rate in
// rad/s, positive to the left.
type Twist struct {
	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`
}

// Zero is the stop command.
var Zero = Twist{}

// IsZero reports whether t commands the vehicle to stand still.
func (t Twist) IsZero() bool { return t == Zero }

func (t Twist) String() string {
	return fmt.Sprintf("lin=%.3f ang=%.3f", t.Linear, t.Angular)
}

// Sink accepts one command at a time. There is no acknowledgement.
type Sink interface {
	Send(Twist) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Twist) error

// Send calls f(t).
func (f SinkFunc) Send(t Twist) error { return f(t) }

// Driver issues commands to a Sink and performs the waits between them on an
// injected clock. Commands are fire-and-forget: sink errors are logged and
// otherwise ignored.
type Driver struct {
	sink  Sink
	clock timeutil.Clock
	log   zerolog.Logger
}

// NewDriver returns a Driver. A nil clock selects the real clock.
func NewDriver(sink Sink, clock timeutil.Clock, log zerolog.Logger) *Driver {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Driver{sink: sink, clock: clock, log: log}
}

// Clock returns the clock the driver waits on.
func (d *Driver) Clock() timeutil.Clock { return d.clock }

// Send issues a single command.
func (d *Driver) Send(t Twist) {
	if err := d.sink.Send(t); err != nil {
		d.log.Warn().Err(err).Stringer("cmd", t).Msg("motion command dropped")
	}
}

// Stop issues the zero command.
func (d *Driver) Stop() { d.Send(Zero) }

// Hold issues t and blocks for dur. The command stays in effect afterwards.
func (d *Driver) Hold(t Twist, dur time.Duration) {
	d.Send(t)
	if dur > 0 {
		d.clock.Sleep(dur)
	}
}

// Pulse issues t for dur and then stops.
func (d *Driver) Pulse(t Twist, dur time.Duration) {
	d.Hold(t, dur)
	d.Stop()
}

// Wait blocks for dur without issuing a command.
func (d *Driver) Wait(dur time.Duration) {
	if dur > 0 {
		d.clock.Sleep(dur)
	}
}
