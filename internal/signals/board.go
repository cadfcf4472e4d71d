// Package signals holds the flags written by asynchronous sensor callbacks
// and read by the arbitration loop. Every cell is last-write-wins.
package signals

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
)

// EntryMarker is the license code posted at the inner-loop entrance.
const EntryMarker = 1

const recentLicenses = 5

// ErrMalformedLine is returned by ApplyLine for input it cannot parse.
var ErrMalformedLine = errors.New("malformed signal line")

// Board is the shared set of signal cells. The zero value is ready to use.
type Board struct {
	redline   atomic.Bool
	greenline atomic.Bool
	innerLoop atomic.Bool
	aligned   atomic.Bool

	mu       sync.Mutex
	license  int
	duration int
	lap      int
	recent   []int
}

// Snapshot is a copy of the board cells.
type Snapshot struct {
	Redline         bool
	Greenline       bool
	InnerLoop       bool
	Aligned         bool
	License         int
	LicenseDuration int
	Lap             int
}

// Redline reports whether the red line signal is set.
func (b *Board) Redline() bool { return b.redline.Load() }

// SetRedline sets the red line signal.
func (b *Board) SetRedline(v bool) { b.redline.Store(v) }

// Greenline reports whether the green line signal is set.
func (b *Board) Greenline() bool { return b.greenline.Load() }

// SetGreenline sets the green line signal.
func (b *Board) SetGreenline(v bool) { b.greenline.Store(v) }

// InnerLoop reports whether the vehicle has entered the inner loop.
func (b *Board) InnerLoop() bool { return b.innerLoop.Load() }

// SetInnerLoop records whether the vehicle has entered the inner loop.
func (b *Board) SetInnerLoop(v bool) { b.innerLoop.Store(v) }

// Aligned reports whether the inner-loop alignment has completed.
func (b *Board) Aligned() bool { return b.aligned.Load() }

// SetAligned records whether the inner-loop alignment has completed.
func (b *Board) SetAligned(v bool) { b.aligned.Store(v) }

// License returns the last license code and how many consecutive repeats of
// it have been reported.
func (b *Board) License() (code, duration int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.license, b.duration
}

// Lap returns the number of times the entry marker has been newly seen.
func (b *Board) Lap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lap
}

// SetLap overrides the lap counter, as when the controller reports it.
func (b *Board) SetLap(n int) {
	b.mu.Lock()
	b.lap = n
	b.mu.Unlock()
}

// UpdateLicense records a license detection. A change to the entry marker
// counts a lap; a repeat of the previous code extends its duration, anything
// else restarts it.
func (b *Board) UpdateLicense(code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.recent == nil {
		b.recent = make([]int, recentLicenses)
	}
	b.recent = lo.Subset(append(b.recent, code), -recentLicenses, recentLicenses)
	if code == EntryMarker && b.license != EntryMarker {
		b.lap++
	}
	if code == b.license {
		b.duration++
	} else {
		b.duration = 0
	}
	b.license = code
}

// RecentLicenses returns the last five codes reported, oldest first.
func (b *Board) RecentLicenses() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.recent == nil {
		return make([]int, recentLicenses)
	}
	return append([]int(nil), b.recent...)
}

// Snapshot copies every cell.
func (b *Board) Snapshot() Snapshot {
	code, dur := b.License()
	return Snapshot{
		Redline:         b.Redline(),
		Greenline:       b.Greenline(),
		InnerLoop:       b.InnerLoop(),
		Aligned:         b.Aligned(),
		License:         code,
		LicenseDuration: dur,
		Lap:             b.Lap(),
	}
}

// ApplyLine applies a key=value status line reported by the motor
// controller, e.g. "redline=1" or "license=3". Keys are case-insensitive.
func (b *Board) ApplyLine(line string) error {
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	key = strings.ToLower(strings.TrimSpace(key))
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrMalformedLine, line, err)
	}
	switch key {
	case "redline":
		b.SetRedline(n != 0)
	case "greenline":
		b.SetGreenline(n != 0)
	case "license":
		b.UpdateLicense(n)
	case "lap":
		b.SetLap(n)
	default:
		return fmt.Errorf("%w: unknown key %q", ErrMalformedLine, key)
	}
	return nil
}
