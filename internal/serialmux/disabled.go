package serialmux

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// DisabledMux is a no-op Interface used when no motor controller is
// attached. Subscribers are tracked so their channels close on Unsubscribe
// or Close and readers unblock during shutdown.
type DisabledMux struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
}

// NewDisabledMux returns a DisabledMux with no subscribers.
func NewDisabledMux() *DisabledMux {
	return &DisabledMux{
		subscribers: make(map[string]chan string),
	}
}

// Subscribe returns a channel that never receives a line. It is closed by
// Unsubscribe or Close.
func (d *DisabledMux) Subscribe() (string, <-chan string) {
	id := uuid.NewString()
	ch := make(chan string)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

// Unsubscribe closes the subscriber's channel.
func (d *DisabledMux) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

// SendCommand discards command.
func (d *DisabledMux) SendCommand(string) error { return nil }

// Monitor blocks until ctx is done.
func (d *DisabledMux) Monitor(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Initialize is a no-op.
func (d *DisabledMux) Initialize() error { return nil }

// Close closes every subscriber channel. Later subscribers get a closed
// channel.
func (d *DisabledMux) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	return nil
}
