package maneuver

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/autopilot/internal/motion"
	"github.com/banshee-data/autopilot/internal/testutil"
	"github.com/banshee-data/autopilot/internal/vision"
)

func TestAlign_ConvergesOnStableLevelLine(t *testing.T) {
	f := newFixture(DefaultConfig(),
		testutil.SlopeLine(0.5, 100),
		testutil.SlopeLine(0.2, 100),
		testutil.SlopeLine(0.005, 100),
		testutil.SlopeLine(0.005, 100),
	)
	require.NoError(t, f.seq.Align(context.Background()))

	want := []motion.Twist{
		{Angular: -0.2},
		{Angular: -0.2},
		motion.Zero,
		motion.Zero,
	}
	if diff := cmp.Diff(want, f.rec.Commands()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 4, f.lines.Calls(), "frames inspected")
	assert.Equal(t, 1, f.src.Subscribes())
	assert.Equal(t, 1, f.src.Closes())
}

func TestAlign_RotatesTowardLevel(t *testing.T) {
	f := newFixture(DefaultConfig(),
		testutil.SlopeLine(-0.3, 100),
		testutil.SlopeLine(0.3, 100),
		testutil.SlopeLine(0, 100),
		testutil.SlopeLine(0, 100),
	)
	require.NoError(t, f.seq.Align(context.Background()))
	want := []motion.Twist{{Angular: 0.2}, {Angular: -0.2}, motion.Zero, motion.Zero}
	if diff := cmp.Diff(want, f.rec.Commands()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestAlign_CreepsUntilLineIsNear(t *testing.T) {
	f := newFixture(DefaultConfig(),
		testutil.SlopeLine(0, 50),
		testutil.SlopeLine(0, 50),
		testutil.SlopeLine(0, 95),
	)
	f.src.Width, f.src.Height = 100, 100
	require.NoError(t, f.seq.Align(context.Background()))

	want := []motion.Twist{{Linear: 0.08}, {Linear: 0.08}, motion.Zero}
	if diff := cmp.Diff(want, f.rec.Commands()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestAlign_BacksUpWhenLineLost(t *testing.T) {
	lines := make([]*vision.Segment, 12)
	lines = append(lines, testutil.SlopeLine(0, 100), testutil.SlopeLine(0, 100))
	f := newFixture(DefaultConfig(), lines...)
	require.NoError(t, f.seq.Align(context.Background()))

	back := motion.Twist{Linear: -0.08}
	want := []motion.Twist{back, motion.Zero, back, motion.Zero, motion.Zero, motion.Zero}
	if diff := cmp.Diff(want, f.rec.Commands()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 200*time.Millisecond, f.clock.Slept())
}

func TestAlign_Timeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Align.Timeout = time.Second
	f := newFixture(cfg, nil)

	err := f.seq.Align(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlignTimeout), "err = %v", err)
	assert.Equal(t, 1, f.src.Closes())
	assert.True(t, f.rec.Last().IsZero())
}

func TestAlign_StreamClosed(t *testing.T) {
	f := newFixture(DefaultConfig(), testutil.SlopeLine(0.5, 100))
	f.src.Limit = 3

	err := f.seq.Align(context.Background())
	assert.ErrorIs(t, err, ErrStreamClosed)
	assert.Equal(t, 3, f.lines.Calls())
	assert.Equal(t, 1, f.src.Closes())
}

func TestAlign_VerticalLineRotates(t *testing.T) {
	f := newFixture(DefaultConfig(), &vision.Segment{X1: 50, Y1: 0, X2: 50, Y2: 200})
	f.src.Limit = 3

	err := f.seq.Align(context.Background())
	assert.ErrorIs(t, err, ErrStreamClosed)
	want := []motion.Twist{{Angular: -0.2}, {Angular: -0.2}, {Angular: -0.2}, motion.Zero}
	if diff := cmp.Diff(want, f.rec.Commands()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestAlign_SubscribeError(t *testing.T) {
	f := newFixture(DefaultConfig())
	f.src.Err = errors.New("camera offline")

	err := f.seq.Align(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, f.src.Closes())
}

func TestAlign_ContextCancelled(t *testing.T) {
	f := newFixture(DefaultConfig(), testutil.SlopeLine(0.5, 100))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.seq.Align(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.src.Closes())
}

func TestIsClose(t *testing.T) {
	tests := []struct {
		a, b, atol float64
		want       bool
	}{
		{0, 0.005, 0.01, true},
		{0, 0.0101, 0.01, false},
		{0, -0.01, 0.01, true},
		{0.005, 0.005, 1e-8, true},
		{0.2, 0.005, 1e-8, false},
		{1.0, 1.000001, 1e-8, true},
		{0, math.Inf(1), 0.01, false},
		{0, math.Inf(-1), 0.01, false},
		{math.Inf(1), math.Inf(1), 1e-8, true},
		{math.Inf(1), math.Inf(-1), 1e-8, false},
		{0, math.NaN(), 0.01, false},
	}
	for _, tt := range tests {
		if got := isClose(tt.a, tt.b, tt.atol); got != tt.want {
			t.Errorf("isClose(%v, %v, %v) = %v, want %v", tt.a, tt.b, tt.atol, got, tt.want)
		}
	}
}
