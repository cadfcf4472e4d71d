package motion

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/banshee-data/autopilot/internal/timeutil"
)

type recorder struct {
	cmds []Twist
	err  error
}

func (r *recorder) Send(t Twist) error {
	r.cmds = append(r.cmds, t)
	return r.err
}

func newTestDriver() (*Driver, *recorder, *timeutil.MockClock) {
	rec := &recorder{}
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	return NewDriver(rec, clock, zerolog.Nop()), rec, clock
}

func TestTwist_IsZero(t *testing.T) {
	if !Zero.IsZero() {
		t.Error("Zero.IsZero() = false, want true")
	}
	if (Twist{Angular: 0.1}).IsZero() {
		t.Error("Twist{Angular: 0.1}.IsZero() = true, want false")
	}
}

func TestDriver_PulseStopsAfterDuration(t *testing.T) {
	d, rec, clock := newTestDriver()
	d.Pulse(Twist{Linear: 0.3}, 2*time.Second)

	want := []Twist{{Linear: 0.3}, Zero}
	if diff := cmp.Diff(want, rec.cmds); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	if got := clock.Slept(); got != 2*time.Second {
		t.Errorf("Slept() = %v, want 2s", got)
	}
}

func TestDriver_HoldLeavesCommandInEffect(t *testing.T) {
	d, rec, _ := newTestDriver()
	d.Hold(Twist{Angular: 0.5}, time.Second)
	if diff := cmp.Diff([]Twist{{Angular: 0.5}}, rec.cmds); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestDriver_ZeroDurationDoesNotSleep(t *testing.T) {
	d, _, clock := newTestDriver()
	d.Hold(Twist{Linear: 1}, 0)
	d.Wait(-time.Second)
	if got := len(clock.Sleeps()); got != 0 {
		t.Errorf("len(Sleeps()) = %d, want 0", got)
	}
}

func TestDriver_SinkErrorsAreNotFatal(t *testing.T) {
	rec := &recorder{err: errors.New("link down")}
	d := NewDriver(rec, timeutil.NewMockClock(time.Unix(0, 0)), zerolog.Nop())
	d.Pulse(Twist{Linear: 1}, time.Millisecond)
	if got := len(rec.cmds); got != 2 {
		t.Errorf("commands sent = %d, want 2", got)
	}
}

type lineCapture struct{ lines []string }

func (l *lineCapture) SendCommand(s string) error {
	l.lines = append(l.lines, s)
	return nil
}

func TestSerialSink_Format(t *testing.T) {
	w := &lineCapture{}
	s := NewSerialSink(w)
	if err := s.Send(Twist{Linear: 0.28, Angular: -0.5}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if diff := cmp.Diff([]string{"V 0.280 -0.500"}, w.lines); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}
