// Package config loads the vehicle configuration. Values are layered:
// built-in defaults, then the TOML file, then AUTOPILOT_* environment
// variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/samber/lo"

	"github.com/banshee-data/autopilot/internal/autopilot"
	"github.com/banshee-data/autopilot/internal/detect"
	"github.com/banshee-data/autopilot/internal/maneuver"
	"github.com/banshee-data/autopilot/internal/motion"
	"github.com/banshee-data/autopilot/internal/serialmux"
	"github.com/banshee-data/autopilot/internal/steering"
	"github.com/banshee-data/autopilot/internal/telemetry"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// maxFileSize bounds the config file.
const maxFileSize = 1 << 20

// Motion sinks.
const (
	SinkMQTT   = "mqtt"
	SinkSerial = "serial"
	SinkLog    = "log"
)

var sinks = []string{SinkMQTT, SinkSerial, SinkLog}

// Duration is a time.Duration written as a string ("1.5s") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the root configuration.
type Config struct {
	Steering   steering.Config       `toml:"steering"`
	Pedestrian detect.Config         `toml:"pedestrian"`
	Obstacle   detect.Config         `toml:"obstacle"`
	Maneuver   Maneuver              `toml:"maneuver"`
	Arbiter    Arbiter               `toml:"arbiter"`
	Telemetry  telemetry.Credentials `toml:"telemetry"`
	Transport  Transport             `toml:"transport"`
	Serial     Serial                `toml:"serial"`
	Runlog     Runlog                `toml:"runlog"`
	Log        Log                   `toml:"log"`
}

// Maneuver tunes the scripted primitives.
type Maneuver struct {
	LeftLinear       float64  `toml:"left_linear"`
	LeftAngular      float64  `toml:"left_angular"`
	RightLinear      float64  `toml:"right_linear"`
	RightAngular     float64  `toml:"right_angular"`
	TurnDuration     Duration `toml:"turn_duration"`
	StraightSpeed    float64  `toml:"straight_speed"`
	BackSpeed        float64  `toml:"back_speed"`
	AlignTimeout     Duration `toml:"align_timeout"`
	AlignTolerance   float64  `toml:"align_tolerance"`
	AlignRotateRate  float64  `toml:"align_rotate_rate"`
	AlignCreepSpeed  float64  `toml:"align_creep_speed"`
	AlignNearRow     float64  `toml:"align_near_row"`
	AlignLostLimit   int      `toml:"align_lost_limit"`
	AlignBackupSpeed float64  `toml:"align_backup_speed"`
	AlignBackup      Duration `toml:"align_backup"`
	Scripts          string   `toml:"scripts"`
}

// Arbiter gates the crosswalk and the inner loop.
type Arbiter struct {
	CrossingDuration   Duration `toml:"crossing_duration"`
	MinLap             int      `toml:"min_lap"`
	MinLicenseDuration int      `toml:"min_license_duration"`
}

// Transport selects where frames come from and where commands go.
type Transport struct {
	Broker       string `toml:"broker"`
	ClientID     string `toml:"client_id"`
	Sink         string `toml:"sink"`
	FramesDir    string `toml:"frames_dir"`
	AuxFramesDir string `toml:"aux_frames_dir"`
}

// Serial describes the motor controller link.
type Serial struct {
	Port     string `toml:"port"`
	BaudRate int    `toml:"baud_rate"`
	DataBits int    `toml:"data_bits"`
	StopBits int    `toml:"stop_bits"`
	Parity   string `toml:"parity"`
}

// Runlog locates the run database. An empty path disables it.
type Runlog struct {
	Path string `toml:"path"`
}

// Log sets the log level.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the configuration the vehicle was tuned with.
func Default() *Config {
	m := maneuver.DefaultConfig()
	a := autopilot.DefaultConfig()
	return &Config{
		Steering:   steering.DefaultConfig(),
		Pedestrian: detect.DefaultPedestrianConfig(),
		Obstacle:   detect.DefaultObstacleConfig(),
		Maneuver: Maneuver{
			LeftLinear:       m.Left.Linear,
			LeftAngular:      m.Left.Angular,
			RightLinear:      m.Right.Linear,
			RightAngular:     m.Right.Angular,
			TurnDuration:     Duration{m.TurnDuration},
			StraightSpeed:    m.StraightSpeed,
			BackSpeed:        m.BackSpeed,
			AlignTimeout:     Duration{m.Align.Timeout},
			AlignTolerance:   m.Align.Tolerance,
			AlignRotateRate:  m.Align.RotateRate,
			AlignCreepSpeed:  m.Align.CreepSpeed,
			AlignNearRow:     m.Align.NearRow,
			AlignLostLimit:   m.Align.LostLimit,
			AlignBackupSpeed: m.Align.BackupSpeed,
			AlignBackup:      Duration{m.Align.BackupDuration},
		},
		Arbiter: Arbiter{
			CrossingDuration:   Duration{a.CrossingDuration},
			MinLap:             a.MinLap,
			MinLicenseDuration: a.MinLicenseDuration,
		},
		Telemetry: telemetry.Credentials{Team: "autopilot", Password: "autopilot"},
		Transport: Transport{
			Broker:   "tcp://localhost:1883",
			ClientID: "autopilot",
			Sink:     SinkMQTT,
		},
		Serial: Serial{BaudRate: serialmux.DefaultBaudRate},
		Log:    Log{Level: "info"},
	}
}

// Load decodes the TOML file at path over the defaults. Keys the file omits
// keep their default values; unknown keys are an error.
func Load(path string) (*Config, error) {
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".toml" {
		return nil, fmt.Errorf("config file must have .toml extension, got %q", ext)
	}
	info, err := os.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	f, err := os.Open(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg := Default()
	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%s: %s", clean, strict.String())
		}
		return nil, fmt.Errorf("%s: %w", clean, err)
	}
	return cfg, nil
}

// Encode renders cfg as TOML.
func (c *Config) Encode() (string, error) {
	b, err := toml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Validate checks cross-field constraints. Every error wraps ErrInvalid.
func (c *Config) Validate() error {
	var errs []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Sprintf(format, args...))
		}
	}

	check(c.Steering.BaseSpeed > 0, "steering.base_speed must be positive, got %v", c.Steering.BaseSpeed)
	check(!math.IsNaN(c.Steering.Kp) && !math.IsInf(c.Steering.Kp, 0), "steering.kp must be finite")
	check(c.Steering.Target.Slope != 0, "steering.target.slope must be non-zero")

	for name, d := range map[string]detect.Config{"pedestrian": c.Pedestrian, "obstacle": c.Obstacle} {
		check(d.History >= 1, "%s.history must be at least 1, got %d", name, d.History)
		check(d.Threshold >= 0, "%s.threshold must be non-negative, got %v", name, d.Threshold)
		check(d.Ignore >= 0, "%s.ignore must be non-negative, got %d", name, d.Ignore)
	}

	m := c.Maneuver
	check(m.TurnDuration.Duration > 0, "maneuver.turn_duration must be positive")
	check(m.AlignTimeout.Duration > 0, "maneuver.align_timeout must be positive")
	check(m.AlignTolerance > 0, "maneuver.align_tolerance must be positive")
	check(m.AlignNearRow > 0 && m.AlignNearRow <= 1, "maneuver.align_near_row must be in (0, 1], got %v", m.AlignNearRow)
	check(m.AlignLostLimit >= 0, "maneuver.align_lost_limit must be non-negative")

	check(c.Arbiter.CrossingDuration.Duration >= 0, "arbiter.crossing_duration must be non-negative")

	check(lo.Contains(sinks, c.Transport.Sink), "transport.sink must be one of %v, got %q", sinks, c.Transport.Sink)
	if c.Transport.Sink == SinkSerial {
		check(c.Serial.Port != "", "serial.port is required for the serial sink")
	}
	if c.Transport.Sink == SinkMQTT || c.Transport.FramesDir == "" {
		check(c.Transport.Broker != "", "transport.broker is required without a frames directory")
	}
	if c.Serial.Port != "" {
		_, err := c.PortOptions().Normalize()
		check(err == nil, "serial: %v", err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// ManeuverConfig converts the maneuver section.
func (c *Config) ManeuverConfig() maneuver.Config {
	m := c.Maneuver
	return maneuver.Config{
		Left:          motion.Twist{Linear: m.LeftLinear, Angular: m.LeftAngular},
		Right:         motion.Twist{Linear: m.RightLinear, Angular: m.RightAngular},
		TurnDuration:  m.TurnDuration.Duration,
		StraightSpeed: m.StraightSpeed,
		BackSpeed:     m.BackSpeed,
		Align: maneuver.AlignConfig{
			Timeout:        m.AlignTimeout.Duration,
			Tolerance:      m.AlignTolerance,
			RotateRate:     m.AlignRotateRate,
			CreepSpeed:     m.AlignCreepSpeed,
			NearRow:        m.AlignNearRow,
			LostLimit:      m.AlignLostLimit,
			BackupSpeed:    m.AlignBackupSpeed,
			BackupDuration: m.AlignBackup.Duration,
		},
	}
}

// ArbiterConfig converts the arbiter section.
func (c *Config) ArbiterConfig() autopilot.Config {
	return autopilot.Config{
		CrossingDuration:   c.Arbiter.CrossingDuration.Duration,
		MinLap:             c.Arbiter.MinLap,
		MinLicenseDuration: c.Arbiter.MinLicenseDuration,
	}
}

// PortOptions converts the serial section.
func (c *Config) PortOptions() serialmux.PortOptions {
	return serialmux.PortOptions{
		BaudRate: c.Serial.BaudRate,
		DataBits: c.Serial.DataBits,
		StopBits: c.Serial.StopBits,
		Parity:   c.Serial.Parity,
	}
}
