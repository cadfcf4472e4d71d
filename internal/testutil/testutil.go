// Package testutil provides shared test utilities and fixtures.
//
// The control packages are tested against these fakes. FakeSource counts
// its subscriptions so tests can check they are released.
package testutil

import (
	"image"
	"sync"

	"github.com/banshee-data/autopilot/internal/frame"
	"github.com/banshee-data/autopilot/internal/motion"
	"github.com/banshee-data/autopilot/internal/vision"
)

// BlankFrame returns a black w x h frame.
func BlankFrame(w, h int) frame.Frame {
	return frame.Frame{Image: image.NewGray(image.Rect(0, 0, w, h))}
}

// Recorder is a motion.Sink that keeps every command it is sent.
type Recorder struct {
	mu       sync.Mutex
	commands []motion.Twist
	Err      error
}

// Send records tw and returns r.Err.
func (r *Recorder) Send(tw motion.Twist) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, tw)
	return r.Err
}

// Commands returns a copy of the recorded commands.
func (r *Recorder) Commands() []motion.Twist {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]motion.Twist(nil), r.commands...)
}

// Last returns the most recent command, or the zero Twist.
func (r *Recorder) Last() motion.Twist {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.commands) == 0 {
		return motion.Twist{}
	}
	return r.commands[len(r.commands)-1]
}

// ScriptedLines is a vision.LineLocator that replays Lines one per frame. A
// nil entry reports no line. Once exhausted the last entry repeats.
type ScriptedLines struct {
	Lines []*vision.Segment
	mu    sync.Mutex
	calls int
}

// ReferenceLine implements vision.LineLocator.
func (s *ScriptedLines) ReferenceLine(frame.Frame) (vision.Segment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Lines) == 0 {
		return vision.Segment{}, false
	}
	i := s.calls
	if i >= len(s.Lines) {
		i = len(s.Lines) - 1
	}
	s.calls++
	if s.Lines[i] == nil {
		return vision.Segment{}, false
	}
	return *s.Lines[i], true
}

// Calls returns how many frames were inspected.
func (s *ScriptedLines) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// SlopeLine returns a segment 100px wide with the given slope, centred
// vertically on meanY.
func SlopeLine(slope, meanY float64) *vision.Segment {
	return &vision.Segment{X1: 0, Y1: meanY - 50*slope, X2: 100, Y2: meanY + 50*slope}
}

// FixedLane is a vision.LaneLocator that always reports the same centroid.
type FixedLane struct {
	Point vision.Point
	Found bool
}

// LaneCentroid implements vision.LaneLocator.
func (l FixedLane) LaneCentroid(frame.Frame) (vision.Point, bool) {
	return l.Point, l.Found
}
