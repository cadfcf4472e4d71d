package frame

import "sync"

// Mailbox is a one-slot, latest-wins frame channel. Offer never blocks: a
// frame the consumer has not picked up yet is replaced by the newer one.
type Mailbox struct {
	mu     sync.Mutex
	ch     chan Frame
	closed bool
	seq    uint64
}

// NewMailbox returns an open mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan Frame, 1)}
}

// Frames returns the receive side of the mailbox.
func (m *Mailbox) Frames() <-chan Frame { return m.ch }

// Offer stores f, replacing any frame not yet received. It assigns Seq if
// the frame does not carry one. Offers after Close are dropped and reported
// as false.
func (m *Mailbox) Offer(f Frame) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.seq++
	if f.Seq == 0 {
		f.Seq = m.seq
	}
	select {
	case <-m.ch:
	default:
	}
	m.ch <- f
	return true
}

// Close closes the frame channel. Subsequent calls do nothing.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.ch)
}
