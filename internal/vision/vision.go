// Package vision is the boundary to the image-processing collaborator. The
// control core only consumes its geometric outputs: a lane-edge centroid for
// steering and a reference line segment for alignment.
//
// The adapters here threshold brightness and fit lines by least squares,
// which is enough for the simulator's painted course.
package vision

import (
	"math"

	"github.com/banshee-data/autopilot/internal/frame"
)

// Point is an image coordinate in pixels, y growing downwards.
type Point struct {
	X, Y float64
}

// Segment is a detected line segment in image coordinates.
type Segment struct {
	X1, Y1, X2, Y2 float64
}

// Slope returns dy/dx. A vertical segment reports +Inf.
func (s Segment) Slope() float64 {
	dx := s.X2 - s.X1
	if dx == 0 {
		return math.Inf(1)
	}
	return (s.Y2 - s.Y1) / dx
}

// MeanY returns the vertical midpoint of the segment.
func (s Segment) MeanY() float64 {
	return (s.Y1 + s.Y2) / 2
}

// LaneLocator finds the lane-edge centroid used for steering.
type LaneLocator interface {
	LaneCentroid(f frame.Frame) (Point, bool)
}

// LineLocator finds the reference line used for alignment.
type LineLocator interface {
	ReferenceLine(f frame.Frame) (Segment, bool)
}
