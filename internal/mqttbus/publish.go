package mqttbus

import (
	"encoding/json"

	"github.com/banshee-data/autopilot/internal/motion"
	"github.com/banshee-data/autopilot/internal/telemetry"
)

// CommandSink publishes velocity commands as {"linear":x,"angular":z}.
type CommandSink struct {
	Client Client
	Topic  string
}

type twistPayload struct {
	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`
}

// Send implements motion.Sink.
func (s *CommandSink) Send(t motion.Twist) error {
	b, err := json.Marshal(twistPayload{Linear: t.Linear, Angular: t.Angular})
	if err != nil {
		return err
	}
	return wait(s.Client.Publish(s.Topic, 0, false, b), publishTimeout)
}

// TelemetryPublisher sends lap telemetry to the scoring topic.
type TelemetryPublisher struct {
	Client Client
	Topic  string
}

// Publish implements telemetry.Publisher.
func (p *TelemetryPublisher) Publish(m telemetry.Message) error {
	return wait(p.Client.Publish(p.Topic, 1, false, m.String()), ackTimeout)
}

var (
	_ motion.Sink         = (*CommandSink)(nil)
	_ telemetry.Publisher = (*TelemetryPublisher)(nil)
)
