package debounce

import "gonum.org/v1/gonum/stat"

// Window is a fixed-capacity FIFO of motion magnitudes. It starts full of
// zeros, so its length never changes: every Push evicts the oldest sample.
type Window struct {
	samples []float64
	next    int
}

// NewWindow returns a zero-filled window holding n samples. n < 1 is treated
// as 1.
func NewWindow(n int) *Window {
	if n < 1 {
		n = 1
	}
	return &Window{samples: make([]float64, n)}
}

// Len returns the window capacity.
func (w *Window) Len() int { return len(w.samples) }

// Push appends v and evicts the oldest sample.
func (w *Window) Push(v float64) {
	w.samples[w.next] = v
	w.next = (w.next + 1) % len(w.samples)
}

// Mean returns the rolling mean of the window.
func (w *Window) Mean() float64 {
	return stat.Mean(w.samples, nil)
}

// Clear zeroes every sample.
func (w *Window) Clear() {
	for i := range w.samples {
		w.samples[i] = 0
	}
	w.next = 0
}

// Samples returns the samples oldest first.
func (w *Window) Samples() []float64 {
	out := make([]float64, 0, len(w.samples))
	out = append(out, w.samples[w.next:]...)
	return append(out, w.samples[:w.next]...)
}
