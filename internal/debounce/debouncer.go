// Package debounce turns a stream of frames into a smoothed motion magnitude.
//
// Detectors that need to know whether something is moving in front of the
// camera share the same front end: a Meter compares each frame with the one
// before it and the Debouncer averages that magnitude over a short Window.
// The call counter lets a detector ignore its first few outputs after a
// reset, while the window still holds samples from before the reset.
package debounce

import (
	"image"

	"github.com/banshee-data/autopilot/internal/frame"
)

// Debouncer is a sliding-window motion-magnitude averager.
type Debouncer struct {
	meter  Meter
	window *Window
	prev   *image.Gray
	calls  int
}

// New returns a Debouncer averaging over history samples.
func New(meter Meter, history int) *Debouncer {
	return &Debouncer{meter: meter, window: NewWindow(history)}
}

// Observe measures f against the previously observed frame, pushes the
// magnitude into the window and returns the rolling mean. The first frame
// after construction or Reset is compared with itself.
func (d *Debouncer) Observe(f frame.Frame) float64 {
	d.calls++
	if d.prev == nil {
		d.prev = f.Image
	}
	mag := d.meter.Measure(d.prev, f.Image)
	if mag < 0 {
		mag = 0
	}
	d.prev = f.Image
	d.window.Push(mag)
	return d.window.Mean()
}

// Calls returns the number of Observe calls since construction or the last
// ResetCalls.
func (d *Debouncer) Calls() int { return d.calls }

// ResetCalls restarts the call counter.
func (d *Debouncer) ResetCalls() { d.calls = 0 }

// ClearHistory zeroes the window but keeps the previous frame.
func (d *Debouncer) ClearHistory() { d.window.Clear() }

// Reset zeroes the window and forgets the previous frame.
func (d *Debouncer) Reset() {
	d.window.Clear()
	d.prev = nil
}

// History returns the window samples, oldest first.
func (d *Debouncer) History() []float64 { return d.window.Samples() }
