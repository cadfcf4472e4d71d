// Command autopilot drives the course vehicle: it follows the lane, stops
// for the crosswalk, and runs the inner-loop maneuvers until the course is
// complete.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/banshee-data/autopilot/internal/config"
	"github.com/banshee-data/autopilot/internal/monitoring"
	"github.com/banshee-data/autopilot/internal/version"
)

var exampleUsage = strings.TrimSpace(`
  autopilot --broker tcp://sim.local:1883
  autopilot --config autopilot.toml --sink serial --serial-port /dev/ttyUSB0
  autopilot --dev --frames-dir ./frames
  autopilot scripts --scripts maneuvers.yaml
`)

// options holds the raw flag values. They only override the config when the
// flag was set explicitly.
type options struct {
	configPath string
	dev        bool
	framesDir  string
	broker     string
	sink       string
	serialPort string
	runlog     string
	scripts    string
	logLevel   string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log := monitoring.Logger()
		log.Error().Err(err).Msg("autopilot")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o options
	root := &cobra.Command{
		Use:           "autopilot",
		Short:         "Drive the course vehicle from camera frames",
		Example:       exampleUsage,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &o)
			if err != nil {
				return err
			}
			return drive(cmd.Context(), cfg, o.dev)
		},
	}

	bindFlags(root, &o)

	root.AddCommand(newScriptsCmd(&o), newMigrateCmd(&o), newRunsCmd(&o))
	return root
}

func bindFlags(cmd *cobra.Command, o *options) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "path to config file (TOML)")
	pf.StringVar(&o.runlog, config.FlagRunlog, "", "run log database path (empty disables)")
	pf.StringVar(&o.scripts, config.FlagScripts, "", "YAML file overriding the built-in maneuver scripts")
	pf.StringVar(&o.logLevel, config.FlagLogLevel, "info", "log level: trace, debug, info, warn, error or off")

	f := cmd.Flags()
	f.BoolVar(&o.dev, "dev", false, "replay frames from --frames-dir and log commands unless --sink is set")
	f.StringVar(&o.framesDir, config.FlagFramesDir, "", "directory of image files to replay as camera frames")
	f.StringVar(&o.broker, config.FlagBroker, "", "MQTT broker URL")
	f.StringVar(&o.sink, config.FlagSink, "", "motion command sink: mqtt, serial or log")
	f.StringVar(&o.serialPort, config.FlagSerialPort, "", "motor controller serial port")
}

// loadConfig layers defaults, the config file, AUTOPILOT_* variables and
// explicitly set flags, then validates the result.
func loadConfig(cmd *cobra.Command, o *options) (*config.Config, error) {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(changed); err != nil {
		return nil, err
	}

	overrides := []struct {
		flag string
		val  string
		dst  *string
	}{
		{config.FlagFramesDir, o.framesDir, &cfg.Transport.FramesDir},
		{config.FlagBroker, o.broker, &cfg.Transport.Broker},
		{config.FlagSink, o.sink, &cfg.Transport.Sink},
		{config.FlagSerialPort, o.serialPort, &cfg.Serial.Port},
		{config.FlagRunlog, o.runlog, &cfg.Runlog.Path},
		{config.FlagScripts, o.scripts, &cfg.Maneuver.Scripts},
		{config.FlagLogLevel, o.logLevel, &cfg.Log.Level},
	}
	for _, ov := range overrides {
		if changed[ov.flag] {
			*ov.dst = ov.val
		}
	}

	if o.dev {
		if cfg.Transport.FramesDir == "" {
			return nil, fmt.Errorf("--dev requires --frames-dir")
		}
		if !changed[config.FlagSink] && os.Getenv("AUTOPILOT_SINK") == "" {
			cfg.Transport.Sink = config.SinkLog
		}
	}

	level, err := monitoring.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	monitoring.SetLogger(monitoring.Logger().Level(level))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
