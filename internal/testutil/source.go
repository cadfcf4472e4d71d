package testutil

import (
	"sync"

	"github.com/banshee-data/autopilot/internal/frame"
)

// FakeSource is a frame.Source producing blank frames on demand. Limit caps
// how many frames each subscription delivers before its stream closes; zero
// means unlimited.
type FakeSource struct {
	Width, Height int
	Limit         int
	Err           error

	mu         sync.Mutex
	subscribes int
	closes     int
}

// Subscribe implements frame.Source.
func (s *FakeSource) Subscribe() (frame.Subscription, error) {
	s.mu.Lock()
	s.subscribes++
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	w, h := s.Width, s.Height
	if w == 0 {
		w = 4
	}
	if h == 0 {
		h = 4
	}
	sub := &fakeSubscription{src: s, ch: make(chan frame.Frame), done: make(chan struct{})}
	go func() {
		defer close(sub.ch)
		for n := 1; s.Limit == 0 || n <= s.Limit; n++ {
			f := BlankFrame(w, h)
			f.Seq = uint64(n)
			select {
			case sub.ch <- f:
			case <-sub.done:
				return
			}
		}
	}()
	return sub, nil
}

// Subscribes returns how many subscriptions were opened.
func (s *FakeSource) Subscribes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribes
}

// Closes returns how many times a subscription was closed.
func (s *FakeSource) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type fakeSubscription struct {
	src  *FakeSource
	ch   chan frame.Frame
	done chan struct{}
	once sync.Once
}

func (f *fakeSubscription) Frames() <-chan frame.Frame { return f.ch }

func (f *fakeSubscription) Close() error {
	f.src.mu.Lock()
	f.src.closes++
	f.src.mu.Unlock()
	f.once.Do(func() { close(f.done) })
	return nil
}
