// Package telemetry formats the lap-timer messages the scoring server
// expects: "<team>,<password>,<lap>,<code>".
package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CodeWidth is the fixed width of the code field.
const CodeWidth = 4

// Lap values with a special meaning to the timer.
const (
	StartLap = 0
	StopLap  = -1
)

// ErrMalformed is returned by Parse.
var ErrMalformed = errors.New("malformed telemetry message")

// Credentials identify the team to the timer.
type Credentials struct {
	Team     string `toml:"team"`
	Password string `toml:"password"`
}

// Message is one timer message.
type Message struct {
	Credentials
	Lap  int
	Code string
}

// PadCode right-pads code with '0' or truncates it to CodeWidth.
func PadCode(code string) string {
	if len(code) >= CodeWidth {
		return code[:CodeWidth]
	}
	return code + strings.Repeat("0", CodeWidth-len(code))
}

// String renders the wire form.
func (m Message) String() string {
	return fmt.Sprintf("%s,%s,%d,%s", m.Team, m.Password, m.Lap, PadCode(m.Code))
}

// Start is the message that starts the timer.
func Start(c Credentials) Message { return Message{Credentials: c, Lap: StartLap} }

// Stop is the message that stops the timer.
func Stop(c Credentials) Message { return Message{Credentials: c, Lap: StopLap} }

// Parse reads the wire form.
func Parse(s string) (Message, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 4 {
		return Message{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	lap, err := strconv.Atoi(parts[2])
	if err != nil {
		return Message{}, fmt.Errorf("%w: lap %q", ErrMalformed, parts[2])
	}
	return Message{
		Credentials: Credentials{Team: parts[0], Password: parts[1]},
		Lap:         lap,
		Code:        parts[3],
	}, nil
}

// Publisher delivers messages to the timer.
type Publisher interface {
	Publish(Message) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(Message) error

// Publish calls f(m).
func (f PublisherFunc) Publish(m Message) error { return f(m) }
