package serialmux

import (
	"bytes"
	"errors"
	"sync"
)

var errPortClosed = errors.New("serial port closed")

// FakePort is an in-memory Port. Reads drain the queued input and then
// report io.EOF, which ends Monitor; writes are captured for inspection.
type FakePort struct {
	mu  sync.Mutex
	in  bytes.Buffer
	out bytes.Buffer

	// WriteError fails the next Write.
	WriteError error
	// Closed is set by Close.
	Closed bool
}

// NewFakePort returns an empty FakePort.
func NewFakePort() *FakePort { return &FakePort{} }

func (p *FakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Closed {
		return 0, errPortClosed
	}
	return p.in.Read(b)
}

func (p *FakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Closed {
		return 0, errPortClosed
	}
	if err := p.WriteError; err != nil {
		p.WriteError = nil
		return 0, err
	}
	return p.out.Write(b)
}

func (p *FakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// AddReadData queues controller output.
func (p *FakePort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.in.Write(data)
}

// GetWrittenData returns everything written so far.
func (p *FakePort) GetWrittenData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.out.Bytes()...)
}

// MockOpener is an Opener returning a fixed port. It records every call.
type MockOpener struct {
	mu    sync.Mutex
	Port  Port
	Error error
	Calls []MockOpenCall
}

// MockOpenCall is one recorded Open.
type MockOpenCall struct {
	Path string
	Opts PortOptions
}

// Open implements Opener.
func (o *MockOpener) Open(path string, opts PortOptions) (Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Calls = append(o.Calls, MockOpenCall{Path: path, Opts: opts})
	if o.Error != nil {
		return nil, o.Error
	}
	return o.Port, nil
}
