package debounce

import "image"

// Meter measures how much changed between two consecutive frames.
type Meter interface {
	Measure(prev, cur *image.Gray) float64
}

// MeterFunc adapts a function to the Meter interface.
type MeterFunc func(prev, cur *image.Gray) float64

// Measure calls f(prev, cur).
func (f MeterFunc) Measure(prev, cur *image.Gray) float64 { return f(prev, cur) }

// Region is a rectangular region of interest expressed as fractions of the
// frame, so it survives a change of camera resolution. The zero Region covers
// the whole frame.
type Region struct {
	Top, Bottom, Left, Right float64
}

// Rect resolves the region against bounds.
func (r Region) Rect(bounds image.Rectangle) image.Rectangle {
	if r == (Region{}) {
		return bounds
	}
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	rect := image.Rect(
		bounds.Min.X+int(r.Left*w),
		bounds.Min.Y+int(r.Top*h),
		bounds.Min.X+int(r.Right*w),
		bounds.Min.Y+int(r.Bottom*h),
	)
	return rect.Intersect(bounds)
}

// DiffMeter counts the pixels inside Region whose absolute difference
// between the two frames exceeds PixelThreshold.
type DiffMeter struct {
	Region         Region
	PixelThreshold uint8
}

// Measure implements Meter. Frames of different size measure as zero.
func (m DiffMeter) Measure(prev, cur *image.Gray) float64 {
	if prev == nil || cur == nil || !prev.Bounds().Eq(cur.Bounds()) {
		return 0
	}
	roi := m.Region.Rect(cur.Bounds())
	count := 0
	for y := roi.Min.Y; y < roi.Max.Y; y++ {
		po := prev.PixOffset(roi.Min.X, y)
		co := cur.PixOffset(roi.Min.X, y)
		for x := 0; x < roi.Dx(); x++ {
			a, b := prev.Pix[po+x], cur.Pix[co+x]
			d := a - b
			if b > a {
				d = b - a
			}
			if d > m.PixelThreshold {
				count++
			}
		}
	}
	return float64(count)
}
