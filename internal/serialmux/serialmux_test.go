package serialmux

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// pipePort feeds lines written to in to the mux and captures commands.
type pipePort struct {
	*io.PipeReader
	in     *io.PipeWriter
	mu     sync.Mutex
	out    []byte
	closed bool
}

func newPipePort() *pipePort {
	r, w := io.Pipe()
	return &pipePort{PipeReader: r, in: w}
}

func (p *pipePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = append(p.out, b...)
	return len(b), nil
}

func (p *pipePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.in.Close()
	return p.PipeReader.Close()
}

func (p *pipePort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.out)
}

func TestMux_SendCommandAppendsNewline(t *testing.T) {
	port := NewFakePort()
	m := New(port, zerolog.Nop())

	require.NoError(t, m.SendCommand("V 0.280 0.000"))
	require.NoError(t, m.SendCommand("V 0.000 0.000\n"))
	if got, want := string(port.GetWrittenData()), "V 0.280 0.000\nV 0.000 0.000\n"; got != want {
		t.Errorf("written = %q, want %q", got, want)
	}
}

func TestMux_SendCommandError(t *testing.T) {
	port := NewFakePort()
	port.WriteError = errors.New("unplugged")
	m := New(port, zerolog.Nop())
	assert.Error(t, m.SendCommand("V 0 0"))
}

func TestMux_Initialize(t *testing.T) {
	port := NewFakePort()
	m := New(port, zerolog.Nop())
	require.NoError(t, m.Initialize())
	assert.Equal(t, "V 0.000 0.000\nREPORT ON\n", string(port.GetWrittenData()))
}

func TestMux_SubscribeUniqueIDs(t *testing.T) {
	m := New(NewFakePort(), zerolog.Nop())
	id1, _ := m.Subscribe()
	id2, _ := m.Subscribe()
	assert.NotEqual(t, id1, id2)
	assert.Len(t, m.subscribers, 2)

	m.Unsubscribe(id1)
	m.Unsubscribe(id1)
	assert.Len(t, m.subscribers, 1)
}

func TestMux_MonitorFansOutLines(t *testing.T) {
	port := newPipePort()
	m := New(port, zerolog.Nop())
	_, a := m.Subscribe()
	_, b := m.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Monitor(ctx) }()

	go port.in.Write([]byte("redline=1\nlap=2\n"))

	for _, ch := range []<-chan string{a, b} {
		for _, want := range []string{"redline=1", "lap=2"} {
			select {
			case got := <-ch:
				assert.Equal(t, want, got)
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestMux_MonitorEndsAtEOF(t *testing.T) {
	port := NewFakePort()
	port.AddReadData([]byte("OK\n"))
	m := New(port, zerolog.Nop())
	assert.NoError(t, m.Monitor(context.Background()))
}

func TestMux_CloseClosesSubscribers(t *testing.T) {
	port := NewFakePort()
	m := New(port, zerolog.Nop())
	_, ch := m.Subscribe()

	require.NoError(t, m.Close())
	_, ok := <-ch
	assert.False(t, ok, "subscriber channel still open")
	assert.True(t, port.Closed)
}

func TestClassifyLine(t *testing.T) {
	tests := map[string]string{
		"redline=1":      LineStatus,
		"  license=3  ":  LineStatus,
		"OK":             LineAck,
		"OK V":           LineAck,
		"# booted v2.1":  LineComment,
		"":               LineUnknown,
		"garbage":        LineUnknown,
	}
	for in, want := range tests {
		if got := ClassifyLine(in); got != want {
			t.Errorf("ClassifyLine(%q) = %q, want %q", in, got, want)
		}
	}
}

type applied struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (a *applied) ApplyLine(s string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lines = append(a.lines, s)
	return a.err
}

func (a *applied) got() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.lines...)
}

func TestHandleEvent_OnlyStatusLinesApplied(t *testing.T) {
	dst := &applied{}
	for _, l := range []string{"OK", "# hello", "greenline=1", "noise"} {
		HandleEvent(dst, l, zerolog.Nop())
	}
	assert.Equal(t, []string{"greenline=1"}, dst.got())
}

func TestDispatch(t *testing.T) {
	port := newPipePort()
	m := New(port, zerolog.Nop())
	dst := &applied{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatched := make(chan struct{})
	go func() {
		Dispatch(ctx, m, dst, zerolog.Nop())
		close(dispatched)
	}()
	// wait for the subscription before producing lines
	require.Eventually(t, func() bool {
		m.subscriberMu.Lock()
		defer m.subscriberMu.Unlock()
		return len(m.subscribers) == 1
	}, 2*time.Second, 5*time.Millisecond)

	go m.Monitor(ctx)
	go port.in.Write([]byte("redline=1\nOK\nlicense=1\n"))

	require.Eventually(t, func() bool { return len(dst.got()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"redline=1", "license=1"}, dst.got())

	cancel()
	select {
	case <-dispatched:
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch did not return after cancel")
	}
}

func TestDisabledMux(t *testing.T) {
	d := NewDisabledMux()
	id, ch := d.Subscribe()
	assert.NoError(t, d.SendCommand("V 1 0"))
	assert.NoError(t, d.Initialize())
	d.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)

	_, ch2 := d.Subscribe()
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	_, ok = <-ch2
	assert.False(t, ok)

	_, ch3 := d.Subscribe()
	_, ok = <-ch3
	assert.False(t, ok, "subscribe after close should return a closed channel")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Monitor(ctx), context.Canceled)
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: serial.OneStopBit, Parity: serial.NoParity}, mode)

	mode, err = PortOptions{BaudRate: 9600, Parity: "even", StopBits: 2}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, serial.EvenParity, mode.Parity)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)

	_, err = PortOptions{DataBits: 9}.SerialMode()
	assert.Error(t, err)
	_, err = PortOptions{Parity: "mark"}.SerialMode()
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	port := NewFakePort()
	opener := &MockOpener{Port: port}
	m, err := Open(opener.Open, "/dev/ttyACM0", PortOptions{BaudRate: 57600}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, m.SendCommand("V 0 0"))
	assert.Equal(t, []MockOpenCall{{Path: "/dev/ttyACM0", Opts: PortOptions{BaudRate: 57600}}}, opener.Calls)

	opener.Error = errors.New("busy")
	_, err = Open(opener.Open, "/dev/ttyACM0", PortOptions{}, zerolog.Nop())
	assert.Error(t, err)
}
