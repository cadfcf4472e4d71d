// Package frame carries camera frames from a transport to the control loop.
//
// Frames are delivered latest-wins: a subscriber that is still busy with the
// previous frame only ever sees the newest one, never a backlog.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"time"
)

// ErrEmptyPayload is returned by Decode for a zero-length message.
var ErrEmptyPayload = errors.New("frame: empty payload")

// Frame is a single grayscale camera image.
type Frame struct {
	Seq   uint64
	Stamp time.Time
	Image *image.Gray
}

// Height returns the image height in pixels, 0 for an empty frame.
func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// Width returns the image width in pixels, 0 for an empty frame.
func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

// Decode parses a PNG or JPEG payload into a grayscale image.
func Decode(payload []byte) (*image.Gray, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return ToGray(img), nil
}

// ToGray converts img to *image.Gray, returning it unchanged if it already is.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// Source hands out subscriptions to a frame stream.
type Source interface {
	Subscribe() (Subscription, error)
}

// Subscription is a live attachment to a frame stream. Close detaches it and
// closes the Frames channel; it is safe to call more than once.
type Subscription interface {
	Frames() <-chan Frame
	Close() error
}
