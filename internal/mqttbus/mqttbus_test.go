package mqttbus

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/autopilot/internal/motion"
	"github.com/banshee-data/autopilot/internal/signals"
	"github.com/banshee-data/autopilot/internal/telemetry"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type published struct {
	topic   string
	qos     byte
	payload interface{}
}

type fakeClient struct {
	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
	published    []published
	subErr       error
	pubErr       error
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: map[string]mqtt.MessageHandler{}}
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subErr == nil {
		c.handlers[topic] = cb
	}
	return &fakeToken{err: c.subErr}
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.handlers, t)
		c.unsubscribed = append(c.unsubscribed, t)
	}
	return &fakeToken{}
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic, qos, payload})
	return &fakeToken{err: c.pubErr}
}

func (c *fakeClient) deliver(t *testing.T, topic string, payload []byte) {
	t.Helper()
	c.mu.Lock()
	h, ok := c.handlers[topic]
	c.mu.Unlock()
	require.True(t, ok, "no subscription on %s", topic)
	h(nil, fakeMessage{topic: topic, payload: payload})
}

func pngPayload(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestFrameSource_DeliversLatestFrame(t *testing.T) {
	c := newFakeClient()
	src := &FrameSource{Client: c, Topic: TopicImage, Log: zerolog.Nop()}

	sub, err := src.Subscribe()
	require.NoError(t, err)

	c.deliver(t, TopicImage, pngPayload(t, 4, 3))
	c.deliver(t, TopicImage, []byte("not an image"))
	c.deliver(t, TopicImage, pngPayload(t, 8, 6))

	f := <-sub.Frames()
	assert.Equal(t, 8, f.Width())
	assert.Equal(t, 6, f.Height())
	assert.Equal(t, uint64(2), f.Seq)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Equal(t, []string{TopicImage}, c.unsubscribed)
	if _, ok := <-sub.Frames(); ok {
		t.Error("Frames() still open after Close")
	}
}

func TestFrameSource_SubscribeError(t *testing.T) {
	c := newFakeClient()
	c.subErr = errors.New("not authorized")
	src := &FrameSource{Client: c, Topic: TopicAuxImage, Log: zerolog.Nop()}

	if _, err := src.Subscribe(); err == nil {
		t.Fatal("Subscribe() error = nil, want error")
	}
}

func TestCommandSink_PublishesJSON(t *testing.T) {
	c := newFakeClient()
	sink := &CommandSink{Client: c, Topic: TopicCmdVel}

	require.NoError(t, sink.Send(motion.Twist{Linear: 0.28, Angular: -0.5}))
	require.Len(t, c.published, 1)
	assert.Equal(t, TopicCmdVel, c.published[0].topic)
	assert.JSONEq(t, `{"linear":0.28,"angular":-0.5}`, string(c.published[0].payload.([]byte)))

	c.pubErr = errors.New("gone")
	assert.Error(t, sink.Send(motion.Zero))
}

func TestTelemetryPublisher(t *testing.T) {
	c := newFakeClient()
	pub := &TelemetryPublisher{Client: c, Topic: TopicTelemetry}

	require.NoError(t, pub.Publish(telemetry.Start(telemetry.Credentials{Team: "red", Password: "pw"})))
	require.Len(t, c.published, 1)
	assert.Equal(t, "red,pw,0,0000", c.published[0].payload)
	assert.Equal(t, byte(1), c.published[0].qos)
}

func TestBindSignals(t *testing.T) {
	c := newFakeClient()
	board := &signals.Board{}
	require.NoError(t, BindSignals(c, board, zerolog.Nop()))

	c.deliver(t, TopicRedline, []byte("true"))
	c.deliver(t, TopicGreenline, []byte(`{"data": true}`))
	c.deliver(t, TopicLicense, []byte("1"))
	c.deliver(t, TopicLicense, []byte(`{"data":1}`))

	snap := board.Snapshot()
	assert.True(t, snap.Redline)
	assert.True(t, snap.Greenline)
	assert.Equal(t, 1, snap.License)
	assert.Equal(t, 1, snap.LicenseDuration)

	c.deliver(t, TopicRedline, []byte("0"))
	c.deliver(t, TopicGreenline, []byte("maybe"))
	c.deliver(t, TopicLicense, []byte(`{"value":3}`))

	snap = board.Snapshot()
	assert.False(t, snap.Redline)
	assert.True(t, snap.Greenline, "malformed payload leaves the flag alone")
	assert.Equal(t, 1, snap.License)
}

func TestBindSignals_SubscribeError(t *testing.T) {
	c := newFakeClient()
	c.subErr = errors.New("denied")
	assert.Error(t, BindSignals(c, &signals.Board{}, zerolog.Nop()))
}

func TestUnwrap(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{" 42\n", "42", false},
		{`{"data":"true"}`, "true", false},
		{`{"data":7}`, "7", false},
		{`{"other":7}`, "", true},
		{`{broken`, "", true},
	}
	for _, tt := range tests {
		got, err := unwrap([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("unwrap(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("unwrap(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
