package vision

import (
	"image"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/autopilot/internal/debounce"
	"github.com/banshee-data/autopilot/internal/frame"
)

// BrightCentroid locates the centroid of the pixels brighter than Threshold
// inside Region. With the default region (right half, lower band) this is the
// right-hand road line.
type BrightCentroid struct {
	Region    debounce.Region
	Threshold uint8
	MinPixels int
}

// DefaultLaneCentroid watches the lower right quarter of the primary camera.
func DefaultLaneCentroid() BrightCentroid {
	return BrightCentroid{
		Region:    debounce.Region{Top: 0.5, Bottom: 1, Left: 0.5, Right: 1},
		Threshold: 200,
		MinPixels: 20,
	}
}

// LaneCentroid implements LaneLocator.
func (b BrightCentroid) LaneCentroid(f frame.Frame) (Point, bool) {
	if f.Image == nil {
		return Point{}, false
	}
	var sx, sy float64
	n := 0
	eachBright(f.Image, b.Region.Rect(f.Image.Bounds()), b.Threshold, func(x, y int) {
		sx += float64(x)
		sy += float64(y)
		n++
	})
	if n == 0 || n < b.MinPixels {
		return Point{}, false
	}
	return Point{X: sx / float64(n), Y: sy / float64(n)}, true
}

// LineFit fits a straight line through the pixels brighter than Threshold
// inside Region, as the alignment camera sees the painted reference line.
type LineFit struct {
	Region    debounce.Region
	Threshold uint8
	MinPixels int
}

// DefaultLineFit looks for the reference line below the horizon of the
// alignment camera.
func DefaultLineFit() LineFit {
	return LineFit{
		Region:    debounce.Region{Top: 0.3, Bottom: 1, Left: 0, Right: 1},
		Threshold: 200,
		MinPixels: 20,
	}
}

// ReferenceLine implements LineLocator. The returned segment spans the
// horizontal extent of the fitted pixels.
func (l LineFit) ReferenceLine(f frame.Frame) (Segment, bool) {
	if f.Image == nil {
		return Segment{}, false
	}
	var xs, ys []float64
	eachBright(f.Image, l.Region.Rect(f.Image.Bounds()), l.Threshold, func(x, y int) {
		xs = append(xs, float64(x))
		ys = append(ys, float64(y))
	})
	need := l.MinPixels
	if need < 2 {
		need = 2
	}
	if len(xs) < need {
		return Segment{}, false
	}
	x1, x2 := xs[0], xs[0]
	for _, x := range xs {
		if x < x1 {
			x1 = x
		}
		if x > x2 {
			x2 = x
		}
	}
	if x1 == x2 {
		// vertical; a regression of y on x is undefined
		return Segment{}, false
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return Segment{X1: x1, Y1: alpha + beta*x1, X2: x2, Y2: alpha + beta*x2}, true
}

func eachBright(img *image.Gray, roi image.Rectangle, threshold uint8, fn func(x, y int)) {
	for y := roi.Min.Y; y < roi.Max.Y; y++ {
		off := img.PixOffset(roi.Min.X, y)
		for i, v := range img.Pix[off : off+roi.Dx()] {
			if v > threshold {
				fn(roi.Min.X+i, y)
			}
		}
	}
}
