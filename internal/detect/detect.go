// Package detect holds the two frame-differencing detectors the arbiter
// consults: one that decides when a pedestrian has finished crossing in
// front of the vehicle and one that decides when a moving obstacle has
// cleared.
//
// Both detectors ignore their first few observations after a reset, since the
// previous frame they compare against was captured before the vehicle moved.
package detect

import (
	"github.com/banshee-data/autopilot/internal/debounce"
	"github.com/banshee-data/autopilot/internal/frame"
)

// Config parameterises a detector.
type Config struct {
	Threshold float64 `toml:"threshold"`
	History   int     `toml:"history"`
	Ignore    int     `toml:"ignore"`
}

// DefaultPedestrianConfig returns the tuning used at the crosswalk.
func DefaultPedestrianConfig() Config {
	return Config{Threshold: 200, History: 3, Ignore: 8}
}

// DefaultObstacleConfig returns the tuning used in the inner loop.
func DefaultObstacleConfig() Config {
	return Config{Threshold: 100, History: 5, Ignore: 3}
}

// PedestrianRegion is the part of the frame watched at the crosswalk.
var PedestrianRegion = debounce.Region{Top: 0.4, Bottom: 0.8, Left: 0.3, Right: 0.7}

// ObstacleRegion is the part of the frame watched for the inner-loop truck.
var ObstacleRegion = debounce.Region{Top: 0, Bottom: 0.45, Left: 0, Right: 0.65}

// DefaultPixelThreshold is the per-pixel difference that counts as motion.
const DefaultPixelThreshold = 55

// Pedestrian emits a one-shot signal when motion in front of the vehicle
// stops after having been above threshold.
type Pedestrian struct {
	cfg      Config
	deb      *debounce.Debouncer
	crossing bool
}

// NewPedestrian returns a detector measuring motion with meter. A nil meter
// selects a DiffMeter over PedestrianRegion.
func NewPedestrian(meter debounce.Meter, cfg Config) *Pedestrian {
	if meter == nil {
		meter = debounce.DiffMeter{Region: PedestrianRegion, PixelThreshold: DefaultPixelThreshold}
	}
	return &Pedestrian{cfg: cfg, deb: debounce.New(meter, cfg.History)}
}

// RobotShouldCross observes f and returns true exactly once per crossing,
// on the first frame where the smoothed motion falls back to or below the
// threshold. Emitting resets the detector, call counter included.
func (p *Pedestrian) RobotShouldCross(f frame.Frame) bool {
	mean := p.deb.Observe(f)
	if p.deb.Calls() <= p.cfg.Ignore {
		mean = 0
		p.deb.ClearHistory()
	}
	crossing := mean > p.cfg.Threshold
	if p.crossing && !crossing {
		p.crossing = false
		p.deb.Reset()
		p.deb.ResetCalls()
		return true
	}
	p.crossing = crossing
	return false
}

// Crossing reports whether the last observation was above threshold.
func (p *Pedestrian) Crossing() bool { return p.crossing }

// Obstacle emits a one-shot signal when the smoothed motion drops to exactly
// zero after having exceeded the threshold.
type Obstacle struct {
	cfg   Config
	deb   *debounce.Debouncer
	armed bool
}

// NewObstacle returns a detector measuring motion with meter. A nil meter
// selects a DiffMeter over ObstacleRegion.
func NewObstacle(meter debounce.Meter, cfg Config) *Obstacle {
	if meter == nil {
		meter = debounce.DiffMeter{Region: ObstacleRegion, PixelThreshold: DefaultPixelThreshold}
	}
	return &Obstacle{cfg: cfg, deb: debounce.New(meter, cfg.History)}
}

// CanProceed observes f and returns true once the obstacle has been seen
// moving and the window has since gone completely still. The call counter
// survives the reset, so the ignore period only applies once per detector.
func (o *Obstacle) CanProceed(f frame.Frame) bool {
	mean := o.deb.Observe(f)
	if o.deb.Calls() <= o.cfg.Ignore {
		mean = 0
		o.deb.ClearHistory()
	}
	// exact zero: any residual motion in the window keeps the vehicle waiting
	if o.armed && mean == 0 {
		o.armed = false
		o.deb.Reset()
		return true
	}
	if !o.armed {
		o.armed = mean > o.cfg.Threshold
	}
	return false
}

// Armed reports whether the obstacle has been seen above threshold and the
// detector is waiting for it to clear.
func (o *Obstacle) Armed() bool { return o.armed }
