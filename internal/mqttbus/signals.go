package mqttbus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/banshee-data/autopilot/internal/signals"
)

// BindSignals subscribes the course signal topics and writes them to board.
// Payloads are plain ("true", "1", "42") or a bridged message ({"data":42}).
// Malformed payloads are logged and ignored.
func BindSignals(c Client, board *signals.Board, log zerolog.Logger) error {
	bind := func(topic string, apply func(string) error) error {
		handler := func(_ mqtt.Client, m mqtt.Message) {
			raw, err := unwrap(m.Payload())
			if err == nil {
				err = apply(raw)
			}
			if err != nil {
				log.Warn().Err(err).Str("topic", m.Topic()).Msg("malformed signal ignored")
			}
		}
		if err := wait(c.Subscribe(topic, 1, handler), ackTimeout); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		return nil
	}

	if err := bind(TopicRedline, func(s string) error {
		v, err := strconv.ParseBool(s)
		if err == nil {
			board.SetRedline(v)
		}
		return err
	}); err != nil {
		return err
	}
	if err := bind(TopicGreenline, func(s string) error {
		v, err := strconv.ParseBool(s)
		if err == nil {
			board.SetGreenline(v)
		}
		return err
	}); err != nil {
		return err
	}
	return bind(TopicLicense, func(s string) error {
		n, err := strconv.Atoi(s)
		if err == nil {
			board.UpdateLicense(n)
		}
		return err
	})
}

// unwrap returns the scalar carried by payload as text.
func unwrap(payload []byte) (string, error) {
	p := bytes.TrimSpace(payload)
	if len(p) == 0 || p[0] != '{' {
		return string(p), nil
	}
	var msg struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(p, &msg); err != nil {
		return "", err
	}
	if msg.Data == nil {
		return "", fmt.Errorf("missing data field")
	}
	return strings.Trim(string(msg.Data), `"`), nil
}
