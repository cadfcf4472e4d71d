package autopilot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/banshee-data/autopilot/internal/telemetry"
)

// StartupTurn is how long the vehicle arcs left off the start line.
const StartupTurn = 3 * time.Second

// Turner performs the startup turn.
type Turner interface {
	TurnLeft(time.Duration)
}

// Startup starts the lap timer and drives off the start line onto the
// course.
func Startup(pub telemetry.Publisher, creds telemetry.Credentials, t Turner, log zerolog.Logger) error {
	msg := telemetry.Start(creds)
	if err := pub.Publish(msg); err != nil {
		return fmt.Errorf("publish start message: %w", err)
	}
	log.Info().Stringer("msg", msg).Msg("timer started")
	t.TurnLeft(StartupTurn)
	return nil
}

// CourseCompleteHook returns a maneuver mark hook that stops the lap timer
// when the named mark is reached.
func CourseCompleteHook(mark string, pub telemetry.Publisher, creds telemetry.Credentials, log zerolog.Logger) func(string) {
	return func(name string) {
		if name != mark {
			return
		}
		msg := telemetry.Stop(creds)
		if err := pub.Publish(msg); err != nil {
			log.Error().Err(err).Msg("publish stop message")
			return
		}
		log.Info().Stringer("msg", msg).Msg("timer stopped")
	}
}
