package mqttbus

import (
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/banshee-data/autopilot/internal/frame"
	"github.com/banshee-data/autopilot/internal/timeutil"
)

// FrameSource is a frame.Source fed by an image topic. Each subscription
// holds its own broker subscription, released on Close.
type FrameSource struct {
	Client Client
	Topic  string
	Clock  timeutil.Clock
	Log    zerolog.Logger
}

// Subscribe implements frame.Source.
func (s *FrameSource) Subscribe() (frame.Subscription, error) {
	clock := s.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	sub := &subscription{client: s.Client, topic: s.Topic, box: frame.NewMailbox()}
	handler := func(_ mqtt.Client, m mqtt.Message) {
		img, err := frame.Decode(m.Payload())
		if err != nil {
			s.Log.Warn().Err(err).Str("topic", m.Topic()).Int("bytes", len(m.Payload())).Msg("malformed frame skipped")
			return
		}
		sub.box.Offer(frame.Frame{Stamp: clock.Now(), Image: img})
	}
	if err := wait(s.Client.Subscribe(s.Topic, 0, handler), ackTimeout); err != nil {
		sub.box.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.Topic, err)
	}
	return sub, nil
}

type subscription struct {
	client Client
	topic  string
	box    *frame.Mailbox
	once   sync.Once
}

func (s *subscription) Frames() <-chan frame.Frame { return s.box.Frames() }

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		err = wait(s.client.Unsubscribe(s.topic), ackTimeout)
		s.box.Close()
	})
	return err
}
