// Package mqttbus connects the vehicle to the simulator's MQTT broker:
// camera frames in, velocity commands and lap telemetry out, and the course
// signals (redline, greenline, license id) onto the signal board.
package mqttbus

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Topics used on the course.
const (
	TopicImage     = "camera/image_raw"
	TopicAuxImage  = "camera/image_raw2"
	TopicCmdVel    = "cmd_vel"
	TopicRedline   = "redline"
	TopicGreenline = "greenline"
	TopicLicense   = "license_id"
	TopicTelemetry = "license_plate"
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt: timed out waiting for broker")

const (
	connectTimeout = 10 * time.Second
	ackTimeout     = 5 * time.Second
	publishTimeout = time.Second
)

// Client is the subset of mqtt.Client the adapters use.
type Client interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Options configures the broker connection.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// Connect dials the broker and waits for the session. The client reconnects
// on its own afterwards; lost connections are logged.
func Connect(o Options, log zerolog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetCleanSession(false)
	opts.SetResumeSubs(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info().Str("broker", o.Broker).Msg("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", o.Broker).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	if err := wait(client.Connect(), connectTimeout); err != nil {
		return nil, fmt.Errorf("connect %s: %w", o.Broker, err)
	}
	return client, nil
}

func wait(t mqtt.Token, timeout time.Duration) error {
	if !t.WaitTimeout(timeout) {
		return ErrTimeout
	}
	return t.Error()
}
