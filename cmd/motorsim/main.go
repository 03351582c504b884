// Command motorsim serves simulated motion controllers over TCP, serial
// lines and shared command buffers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/motorsim/motorsim/internal/config"
	"github.com/motorsim/motorsim/internal/influx"
	"github.com/motorsim/motorsim/internal/logging"
	"github.com/motorsim/motorsim/internal/monitor"
	intOtel "github.com/motorsim/motorsim/internal/otel"
	"github.com/motorsim/motorsim/internal/registry"
	"github.com/motorsim/motorsim/internal/scheduler"
	"github.com/motorsim/motorsim/internal/status"
	"github.com/motorsim/motorsim/internal/storage"
	"github.com/motorsim/motorsim/pkg/core"

	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

const AppName = "motorsim"

// shutdownTimeout bounds flushing telemetry and stopping the status server.
const shutdownTimeout = 5 * time.Second

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (built %s)\n", AppName, Version, BuildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configDir); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// run starts everything described by the config in configDir and blocks
// until ctx is done.
func run(ctx context.Context, configDir string) error {
	startTime := time.Now()

	logManager := logging.NewSlogManager()
	logManager.Setup(nil, "info", nil)
	logger := logManager.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults", "error", err)
	} else {
		logger.Info("Loaded config", "dir", configDir)
	}
	level := config.GetString("logLevel")

	// logs
	var logOut io.Writer
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	} else {
		logPath := logging.LogFilePath(logsDir, AppName, startTime)
		logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			logger.Error("Failed to create log file", "error", err, "path", logPath)
		} else {
			defer logFile.Close()
			logOut = logFile
			logger.Info("Begin logging in logs directory", "path", logPath)
		}
	}

	otelCfg := config.GetOTelConfig()
	provider, err := intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    logOut,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(sctx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	if config.GetBool("graylog.enabled") {
		addr := config.GetString("graylog.address")
		h, w, err := logging.NewGelfHandler(addr, AppName, level)
		if err != nil {
			logger.Warn("Graylog disabled", "error", err)
		} else {
			logManager.AddHandler(h, w)
		}
	}

	var sessionID atomic.Uint64
	logManager.SetContextProvider(func() []slog.Attr {
		if id := sessionID.Load(); id != 0 {
			return []slog.Attr{slog.Uint64("session", id)}
		}
		return nil
	})

	var logProvider *sdklog.LoggerProvider
	if provider.Enabled() {
		logProvider = provider.LoggerProvider()
	}
	logManager.Setup(logOut, level, logProvider)
	defer logManager.Close()
	logger = logManager.Logger()
	zlog := logging.NewZerolog(logOut, level, AppName)

	logger.Info("Starting up", "version", Version, "buildDate", BuildDate)

	// simulators
	sims, err := config.Simulators()
	if err != nil {
		return err
	}
	if len(sims) == 0 {
		return errors.New("no simulators configured")
	}

	backend, err := createStorageBackend(config.GetStorageConfig(), logger)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer closeStorage(backend, logger)

	reg := registry.New()
	clocks := map[string]time.Duration{
		"servo": config.GetDuration("servoPeriod"),
		"ramp":  config.GetDuration("rampPeriod"),
	}

	var schedulers []*scheduler.Scheduler
	defer func() {
		for _, s := range schedulers {
			s.Stop()
		}
	}()
	var opened []*simulator
	defer func() {
		for _, sim := range opened {
			sim.stop(logger)
		}
	}()

	// Controllers tick from construction; transports are bound here but
	// only served once the journal session exists.
	var infos []core.SimulatorInfo
	pollPeriod := config.GetDuration("pollPeriod")
	for _, sc := range sims {
		sim, err := buildSimulator(sc, backend, logger)
		if err != nil {
			return err
		}
		if err := reg.Add(sim.controller); err != nil {
			return err
		}

		sched, err := scheduler.New(sc.Name, clocks[sim.clock], scheduler.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("simulator %q %s clock: %w", sc.Name, sim.clock, err)
		}
		sched.Add(sim.ticker)
		sched.Start(ctx)
		schedulers = append(schedulers, sched)

		if err := sim.open(pollPeriod, logger); err != nil {
			return err
		}
		opened = append(opened, sim)
		infos = append(infos, sim.infos...)
	}

	hostname, _ := os.Hostname()
	session := &core.Session{
		StartTime:  startTime,
		Version:    Version,
		Hostname:   hostname,
		Simulators: infos,
	}
	if err := backend.StartSession(session); err != nil {
		return fmt.Errorf("starting journal session: %w", err)
	}
	sessionID.Store(uint64(session.ID))

	for _, sim := range opened {
		if err := sim.serve(ctx, logger); err != nil {
			return err
		}
		for _, info := range sim.infos {
			logger.Info("Simulator ready", "simulator", info.Name, "vendor", info.Vendor,
				"transport", info.Transport, "endpoint", info.Endpoint, "axes", info.AxisCount)
		}
	}

	// telemetry
	sinks := []monitor.AxisWriter{backend}
	if config.GetBool("influx.enabled") {
		backup := filepath.Join(logsDir, fmt.Sprintf("%s.%s.influx.lp.gz", AppName, startTime.Format("20060102_150405")))
		im := influx.NewManager(zlog, backup)
		if err := im.Connect(ctx); err != nil {
			logger.Error("InfluxDB disabled", "error", err)
		} else {
			sinks = append(sinks, monitor.AxisWriterFunc(im.WriteAxisState))
			defer im.Close()
		}
	}

	mon, err := monitor.NewService(monitor.Dependencies{
		Registry:   reg,
		Sinks:      sinks,
		Interval:   config.GetDuration("monitor.interval"),
		Logger:     logger,
		StatusPath: config.GetString("monitor.statusFile"),
	})
	if err != nil {
		return err
	}
	mon.Start(ctx)
	defer mon.Stop()

	if config.GetBool("status.enabled") {
		srv := status.New(status.Dependencies{
			Registry:   reg,
			Simulators: infos,
			Metrics:    provider.MetricsHandler(),
			Logger:     zlog,
			Version:    Version,
		})
		if err := srv.Start(config.GetString("status.address")); err != nil {
			logger.Error("Failed to start status server", "error", err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Stop(sctx); err != nil {
					logger.Warn("Status server shutdown failed", "error", err)
				}
			}()
		}
	}

	logger.Info("Simulators running", "count", reg.Len(), "session", session.ID)
	<-ctx.Done()
	logger.Info("Shutting down")
	return nil
}

// closeStorage ends the journal session, closes the backend and uploads the
// exported transcript when a collector is configured.
func closeStorage(backend storage.Backend, logger *slog.Logger) {
	if err := backend.EndSession(); err != nil {
		logger.Warn("Failed to end journal session", "error", err)
	}
	if err := backend.Close(); err != nil {
		logger.Error("Failed to close storage backend", "error", err)
	}
	uploadTranscript(backend, logger)
}
