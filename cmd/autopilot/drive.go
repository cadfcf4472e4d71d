package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/banshee-data/autopilot/internal/autopilot"
	"github.com/banshee-data/autopilot/internal/config"
	"github.com/banshee-data/autopilot/internal/detect"
	"github.com/banshee-data/autopilot/internal/frame"
	"github.com/banshee-data/autopilot/internal/maneuver"
	"github.com/banshee-data/autopilot/internal/monitoring"
	"github.com/banshee-data/autopilot/internal/motion"
	"github.com/banshee-data/autopilot/internal/mqttbus"
	"github.com/banshee-data/autopilot/internal/runlog"
	"github.com/banshee-data/autopilot/internal/serialmux"
	"github.com/banshee-data/autopilot/internal/signals"
	"github.com/banshee-data/autopilot/internal/steering"
	"github.com/banshee-data/autopilot/internal/telemetry"
	"github.com/banshee-data/autopilot/internal/timeutil"
	"github.com/banshee-data/autopilot/internal/version"
	"github.com/banshee-data/autopilot/internal/vision"
)

// Run outcomes stored in the run log.
const (
	outcomeCompleted   = "completed"
	outcomeInterrupted = "interrupted"
	outcomeFailed      = "failed"
)

// drive wires the transports to the arbiter and runs it until ctx is
// cancelled, the frame stream ends or a maneuver fails.
func drive(parent context.Context, cfg *config.Config, dev bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := monitoring.Component("main")
	log.Info().Str("version", version.String()).Bool("dev", dev).Str("sink", cfg.Transport.Sink).Msg("starting")

	var clock timeutil.Clock = timeutil.RealClock{}
	board := &signals.Board{}
	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var client mqtt.Client
	if cfg.Transport.FramesDir == "" || cfg.Transport.Sink == config.SinkMQTT {
		c, err := mqttbus.Connect(mqttbus.Options{
			Broker:   cfg.Transport.Broker,
			ClientID: cfg.Transport.ClientID,
		}, monitoring.Component("mqtt"))
		if err != nil {
			return err
		}
		defer c.Disconnect(250)
		client = c
	}

	serialLog := monitoring.Component("serial")
	mux, err := openMotorController(cfg, serialmux.OpenSerial, serialLog)
	if err != nil {
		return err
	}
	defer mux.Close()
	defer cancel()
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := mux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serialLog.Error().Err(err).Msg("serial monitor stopped")
		}
	}()
	go func() {
		defer wg.Done()
		serialmux.Dispatch(ctx, mux, board, serialLog)
	}()

	sink, err := commandSink(cfg, client, mux)
	if err != nil {
		return err
	}
	driver := motion.NewDriver(sink, clock, monitoring.Component("motion"))

	primary, aux := frameSources(cfg, client, clock)
	publisher := telemetryPublisher(client)

	scripts := maneuver.Builtin()
	if cfg.Maneuver.Scripts != "" {
		if scripts, err = maneuver.LoadScripts(cfg.Maneuver.Scripts); err != nil {
			return err
		}
	}

	courseComplete := autopilot.CourseCompleteHook(maneuver.CourseComplete, publisher, cfg.Telemetry, monitoring.Component("telemetry"))
	var opts []autopilot.Option
	var run *runlog.Run
	if cfg.Runlog.Path != "" {
		db, err := runlog.Open(cfg.Runlog.Path, monitoring.Component("runlog"))
		if err != nil {
			return err
		}
		defer db.Close()
		encoded, err := cfg.Encode()
		if err != nil {
			return err
		}
		if run, err = db.Start(clock, version.Version, encoded); err != nil {
			return err
		}
		opts = append(opts, autopilot.WithObserver(run))
		hook := courseComplete
		courseComplete = func(name string) {
			run.Mark(name)
			hook(name)
		}
	}

	seq := maneuver.New(cfg.ManeuverConfig(), driver, aux, vision.DefaultLineFit(),
		maneuver.WithScripts(scripts),
		maneuver.WithMarkHook(courseComplete),
		maneuver.WithLogger(monitoring.Component("maneuver")),
	)
	var maneuvers autopilot.Maneuvers = seq
	if run != nil {
		maneuvers = run.Maneuvers(seq)
	}

	steer := steering.New(cfg.Steering, vision.DefaultLaneCentroid(), driver, monitoring.Component("steering"))
	arb := autopilot.New(cfg.ArbiterConfig(), autopilot.Components{
		Board:      board,
		Steering:   steer,
		Pedestrian: detect.NewPedestrian(nil, cfg.Pedestrian),
		Obstacle:   detect.NewObstacle(nil, cfg.Obstacle),
		Maneuvers:  maneuvers,
	}, append(opts,
		autopilot.WithClock(clock),
		autopilot.WithLogger(monitoring.Component("arbiter")),
	)...)

	if err := autopilot.Startup(publisher, cfg.Telemetry, steer, monitoring.Component("telemetry")); err != nil {
		return err
	}

	sub, err := primary.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribe frames: %w", err)
	}
	defer sub.Close()
	if client != nil {
		if err := mqttbus.BindSignals(client, board, monitoring.Component("signals")); err != nil {
			return err
		}
	}

	err = arb.Run(ctx, sub.Frames())
	outcome := outcomeCompleted
	switch {
	case errors.Is(err, context.Canceled):
		outcome, err = outcomeInterrupted, nil
	case err != nil:
		outcome = outcomeFailed
	}
	if run != nil {
		if ferr := run.Finish(outcome); ferr != nil {
			log.Error().Err(ferr).Msg("finish run")
		}
	}
	log.Info().Str("outcome", outcome).Uint64("ticks", arb.Ticks()).Msg("stopped")
	return err
}

// openMotorController opens and initializes the configured serial port. With
// no port configured it returns a DisabledMux.
func openMotorController(cfg *config.Config, open serialmux.Opener, log zerolog.Logger) (serialmux.Interface, error) {
	if cfg.Serial.Port == "" {
		return serialmux.NewDisabledMux(), nil
	}
	m, err := serialmux.Open(open, cfg.Serial.Port, cfg.PortOptions(), log)
	if err != nil {
		return nil, err
	}
	if err := m.Initialize(); err != nil {
		m.Close()
		return nil, fmt.Errorf("initialize motor controller: %w", err)
	}
	return m, nil
}

func commandSink(cfg *config.Config, client mqtt.Client, mux serialmux.Interface) (motion.Sink, error) {
	switch cfg.Transport.Sink {
	case config.SinkMQTT:
		return &mqttbus.CommandSink{Client: client, Topic: mqttbus.TopicCmdVel}, nil
	case config.SinkSerial:
		return motion.NewSerialSink(mux), nil
	case config.SinkLog:
		log := monitoring.Component("cmd_vel")
		return motion.SinkFunc(func(t motion.Twist) error {
			log.Debug().Stringer("cmd", t).Msg("command")
			return nil
		}), nil
	}
	return nil, fmt.Errorf("%w: unknown sink %q", config.ErrInvalid, cfg.Transport.Sink)
}

func frameSources(cfg *config.Config, client mqtt.Client, clock timeutil.Clock) (primary, aux frame.Source) {
	if dir := cfg.Transport.FramesDir; dir != "" {
		auxDir := cfg.Transport.AuxFramesDir
		if auxDir == "" {
			auxDir = dir
		}
		return &frame.DirSource{Dir: dir, Clock: clock, Log: monitoring.Component("frames")},
			&frame.DirSource{Dir: auxDir, Clock: clock, Log: monitoring.Component("frames")}
	}
	log := monitoring.Component("frames")
	return &mqttbus.FrameSource{Client: client, Topic: mqttbus.TopicImage, Clock: clock, Log: log},
		&mqttbus.FrameSource{Client: client, Topic: mqttbus.TopicAuxImage, Clock: clock, Log: log}
}

// telemetryPublisher publishes to the scoring topic, or only logs without a
// broker.
func telemetryPublisher(client mqtt.Client) telemetry.Publisher {
	if client != nil {
		return &mqttbus.TelemetryPublisher{Client: client, Topic: mqttbus.TopicTelemetry}
	}
	log := monitoring.Component("telemetry")
	return telemetry.PublisherFunc(func(m telemetry.Message) error {
		log.Info().Stringer("msg", m).Msg("telemetry (no broker)")
		return nil
	})
}
