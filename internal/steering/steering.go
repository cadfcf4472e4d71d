// Package steering keeps the vehicle on the lane by steering toward a fixed
// target line in image coordinates.
package steering

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/banshee-data/autopilot/internal/frame"
	"github.com/banshee-data/autopilot/internal/motion"
	"github.com/banshee-data/autopilot/internal/vision"
)

// Line is y = Slope*x + Intercept in image coordinates.
type Line struct {
	Slope     float64 `toml:"slope"`
	Intercept float64 `toml:"intercept"`
}

// HorizontalDistance returns the signed horizontal offset from p to l,
// measured along p's row. It is positive when p lies left of the line.
func HorizontalDistance(p vision.Point, l Line) float64 {
	return (p.Y-l.Intercept)/l.Slope - p.X
}

// Config holds the lane-following gains.
type Config struct {
	BaseSpeed float64 `toml:"base_speed"`
	Kp        float64 `toml:"kp"`
	Target    Line    `toml:"target"`
}

// DefaultConfig returns the gains tuned for the course camera.
func DefaultConfig() Config {
	return Config{
		BaseSpeed: 0.28,
		Kp:        0.02,
		Target:    Line{Slope: 0.6228, Intercept: -44},
	}
}

// Speeds for the open-loop moves.
const (
	ForwardSpeed = 0.5

	startupLinear  = 0.19
	startupAngular = 0.62
)

// Controller is a proportional lane follower.
type Controller struct {
	cfg    Config
	lane   vision.LaneLocator
	driver *motion.Driver
	log    zerolog.Logger
}

// New returns a Controller locating the lane edge with lane and issuing
// commands through driver.
func New(cfg Config, lane vision.LaneLocator, driver *motion.Driver, log zerolog.Logger) *Controller {
	return &Controller{cfg: cfg, lane: lane, driver: driver, log: log}
}

// Config returns the controller's gains.
func (c *Controller) Config() Config { return c.cfg }

// Error returns the angular velocity that steers p onto the target line.
func (c *Controller) Error(p vision.Point) float64 {
	return c.cfg.Kp * HorizontalDistance(p, c.cfg.Target)
}

// Command returns the lane-following command for f. Without a lane centroid
// the vehicle holds its heading at base speed.
func (c *Controller) Command(f frame.Frame) motion.Twist {
	p, ok := c.lane.LaneCentroid(f)
	if !ok {
		c.log.Debug().Uint64("seq", f.Seq).Msg("no lane centroid")
		return motion.Twist{Linear: c.cfg.BaseSpeed}
	}
	return motion.Twist{Linear: c.cfg.BaseSpeed, Angular: c.Error(p)}
}

// AutoSteer issues the lane-following command for f and returns it.
func (c *Controller) AutoSteer(f frame.Frame) motion.Twist {
	cmd := c.Command(f)
	c.driver.Send(cmd)
	return cmd
}

// Stop issues the zero command.
func (c *Controller) Stop() { c.driver.Stop() }

// MoveForwards drives straight at ForwardSpeed for d. The command is left in
// effect.
func (c *Controller) MoveForwards(d time.Duration) {
	c.driver.Hold(motion.Twist{Linear: ForwardSpeed}, d)
}

// SlowStop ramps linear speed from start to end over interval in steps equal
// decrements. The last command sent is end.
func (c *Controller) SlowStop(start, end float64, interval time.Duration, steps int) {
	if steps < 1 {
		c.driver.Send(motion.Twist{Linear: end})
		return
	}
	dec := (start - end) / float64(steps)
	wait := interval / time.Duration(steps)
	for i := 0; i < steps; i++ {
		v := start - float64(i+1)*dec
		if i == steps-1 {
			v = end
		}
		c.driver.Hold(motion.Twist{Linear: v}, wait)
	}
}

// TurnLeft performs the startup arc onto the course: a gentle left turn held
// for d, then a one-second ramp down to a stop.
func (c *Controller) TurnLeft(d time.Duration) {
	c.driver.Hold(motion.Twist{Linear: startupLinear, Angular: startupAngular}, d)
	c.SlowStop(0.2, 0, time.Second, 5)
}
