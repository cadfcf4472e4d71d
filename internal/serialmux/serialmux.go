// Package serialmux multiplexes the motor controller's serial link: many
// readers can subscribe to the status lines it reports while commands are
// written to the single port under a lock.
package serialmux

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrWriteFailed = errors.New("failed to write to serial port")

// subscriberBuffer lines are queued per subscriber before lines are dropped.
const subscriberBuffer = 16

// Mux is a serial port multiplexer that allows multiple clients to subscribe
// to lines from a single port.
type Mux[T Port] struct {
	port         T
	log          zerolog.Logger
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// Interface is the behaviour shared by Mux and DisabledMux.
type Interface interface {
	// Subscribe creates a channel receiving every line read from the port.
	// The ID identifies the channel when unsubscribing.
	Subscribe() (string, <-chan string)
	// Unsubscribe removes and closes a subscriber channel.
	Unsubscribe(string)
	// SendCommand writes one newline-terminated command.
	SendCommand(string) error
	// Monitor reads lines from the port until ctx is done or the port
	// fails, fanning them out to subscribers.
	Monitor(context.Context) error
	// Initialize puts the controller into a known state.
	Initialize() error
	// Close closes all subscriber channels and the port.
	Close() error
}

// New creates a Mux over port.
func New[T Port](port T, log zerolog.Logger) *Mux[T] {
	return &Mux[T]{
		port:        port,
		log:         log,
		subscribers: make(map[string]chan string),
	}
}

func (s *Mux[T]) Subscribe() (string, <-chan string) {
	id := uuid.NewString()
	ch := make(chan string, subscriberBuffer)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the mux.
func (s *Mux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Initialize stops the motors and turns on status reporting.
func (s *Mux[T]) Initialize() error {
	for _, command := range InitCommands {
		if err := s.SendCommand(command); err != nil {
			return err
		}
	}
	return nil
}

// SendCommand sends a command to the serial port.
func (s *Mux[T]) SendCommand(command string) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads the port and fans lines out to subscribers. A subscriber
// whose buffer is full misses the line rather than stalling the others.
func (s *Mux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// the blocking Scan must not hold up ctx cancellation
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
					return nil
				}
			}
			s.closingMu.Lock()
			if s.closing {
				s.closingMu.Unlock()
				return nil
			}
			s.closingMu.Unlock()

			s.subscriberMu.Lock()
			for id, ch := range s.subscribers {
				select {
				case ch <- line:
				default:
					s.log.Warn().Str("subscriber", id).Str("line", line).Msg("subscriber full, line dropped")
				}
			}
			s.subscriberMu.Unlock()
		}
	}
}

func (s *Mux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	return s.port.Close()
}
