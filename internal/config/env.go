package config

import (
	"fmt"
	"os"
	"strconv"
)

// Flag names, shared with the command line so that an explicitly set flag
// wins over the environment.
const (
	FlagBroker     = "broker"
	FlagSink       = "sink"
	FlagSerialPort = "serial-port"
	FlagFramesDir  = "frames-dir"
	FlagRunlog     = "runlog"
	FlagScripts    = "scripts"
	FlagLogLevel   = "log-level"
	FlagTeam       = "team"
	FlagPassword   = "password"
	FlagMinLap     = "min-lap"
)

// configSetter writes a value unless its flag was set explicitly.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt parses and sets an int if not empty and flag not changed.
func (s *configSetter) setInt(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = n
	return nil
}

// ApplyEnv overlays AUTOPILOT_* environment variables. changed names the
// flags set on the command line, which take precedence.
func (c *Config) ApplyEnv(changed map[string]bool) error {
	s := newConfigSetter(changed)
	s.setString(FlagBroker, os.Getenv("AUTOPILOT_BROKER"), &c.Transport.Broker)
	s.setString(FlagSink, os.Getenv("AUTOPILOT_SINK"), &c.Transport.Sink)
	s.setString(FlagSerialPort, os.Getenv("AUTOPILOT_SERIAL_PORT"), &c.Serial.Port)
	s.setString(FlagFramesDir, os.Getenv("AUTOPILOT_FRAMES_DIR"), &c.Transport.FramesDir)
	s.setString(FlagRunlog, os.Getenv("AUTOPILOT_RUNLOG"), &c.Runlog.Path)
	s.setString(FlagScripts, os.Getenv("AUTOPILOT_SCRIPTS"), &c.Maneuver.Scripts)
	s.setString(FlagLogLevel, os.Getenv("AUTOPILOT_LOG_LEVEL"), &c.Log.Level)
	s.setString(FlagTeam, os.Getenv("AUTOPILOT_TEAM"), &c.Telemetry.Team)
	s.setString(FlagPassword, os.Getenv("AUTOPILOT_PASSWORD"), &c.Telemetry.Password)
	return s.setInt(FlagMinLap, os.Getenv("AUTOPILOT_MIN_LAP"), &c.Arbiter.MinLap)
}
