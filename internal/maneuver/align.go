package maneuver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/autopilot/internal/frame"
	"github.com/banshee-data/autopilot/internal/motion"
)

var (
	// ErrAlignTimeout is returned when the reference line does not settle
	// within the configured timeout.
	ErrAlignTimeout = errors.New("align timed out")
	// ErrStreamClosed is returned when the auxiliary frame stream ends
	// before alignment converged.
	ErrStreamClosed = errors.New("alignment frame stream closed")
)

type alignState struct {
	last float64
	lost int
	seen int
}

// Align rotates and creeps until the reference line seen by the auxiliary
// camera is level, close to the bottom of the frame, and unchanged from the
// previous frame. The subscription is released on every return path.
func (s *Sequencer) Align(ctx context.Context) error {
	sub, err := s.aux.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribe alignment camera: %w", err)
	}
	defer sub.Close()

	timer := s.driver.Clock().NewTimer(s.cfg.Align.Timeout)
	defer timer.Stop()

	st := alignState{last: 1.0}
	frames := sub.Frames()
	for {
		// the deadline wins over a ready frame
		select {
		case <-timer.C():
			s.driver.Stop()
			return fmt.Errorf("%w after %d frames", ErrAlignTimeout, st.seen)
		default:
		}

		select {
		case <-ctx.Done():
			s.driver.Stop()
			return ctx.Err()
		case <-timer.C():
			s.driver.Stop()
			return fmt.Errorf("%w after %d frames", ErrAlignTimeout, st.seen)
		case f, ok := <-frames:
			if !ok {
				s.driver.Stop()
				return ErrStreamClosed
			}
			st.seen++
			if s.alignStep(&st, f) {
				s.log.Info().Int("frames", st.seen).Float64("slope", st.last).Msg("aligned")
				return nil
			}
		}
	}
}

// alignStep handles one frame and reports whether alignment converged.
func (s *Sequencer) alignStep(st *alignState, f frame.Frame) bool {
	cfg := s.cfg.Align
	seg, ok := s.lines.ReferenceLine(f)
	if !ok {
		st.lost++
		if st.lost > cfg.LostLimit {
			s.driver.Pulse(motion.Twist{Linear: -cfg.BackupSpeed}, cfg.BackupDuration)
		}
		return false
	}
	st.lost = 0

	slope := seg.Slope()
	var cmd motion.Twist
	switch {
	case isClose(0, slope, cfg.Tolerance):
		if seg.MeanY() < math.Floor(float64(f.Height())*cfg.NearRow) {
			cmd.Linear = cfg.CreepSpeed
		} else if isClose(st.last, slope, 1e-8) {
			s.driver.Stop()
			st.last = slope
			return true
		}
	case slope > 0:
		cmd.Angular = -cfg.RotateRate
	case slope < 0:
		cmd.Angular = cfg.RotateRate
	}
	st.last = slope
	s.driver.Send(cmd)
	return false
}

// isClose reports whether a and b are within atol plus a 1e-5 relative
// tolerance of b. Infinities are only close to an equal infinity and NaN is
// never close.
func isClose(a, b, atol float64) bool {
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a == b
	}
	return math.Abs(a-b) <= atol+1e-5*math.Abs(b)
}
