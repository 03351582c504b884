package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/motorsim/motorsim/internal/axis"
	"github.com/motorsim/motorsim/internal/config"
	"github.com/motorsim/motorsim/internal/protocol/kohzu"
	"github.com/motorsim/motorsim/internal/protocol/newfocus"
	"github.com/motorsim/motorsim/internal/protocol/pmac"
	"github.com/motorsim/motorsim/internal/registry"
	"github.com/motorsim/motorsim/internal/scheduler"
	"github.com/motorsim/motorsim/internal/transport"
	"github.com/motorsim/motorsim/internal/transport/sharedbuf"
	"github.com/motorsim/motorsim/pkg/core"
)

// Line framing per grammar.
var (
	kohzuFraming    = transport.Framing{Terminator: '\n'}
	newfocusFraming = transport.Framing{Terminator: '\r', Suffix: newfocus.Prompt, ReplyOnEmpty: true}
)

// service is an opened transport. Serve begins handling commands.
type service interface {
	Serve(ctx context.Context) error
	Stop() error
}

type tcpService struct{ srv *transport.Server }

func (t tcpService) Serve(context.Context) error { return t.srv.Serve() }
func (t tcpService) Stop() error                 { return t.srv.Stop() }

type serialService struct{ port *transport.SerialPort }

func (s serialService) Serve(context.Context) error { return s.port.Start() }
func (s serialService) Stop() error                 { return s.port.Stop() }

// pollerService adapts a shared-buffer poller and its buffer to service.
type pollerService struct {
	poller *sharedbuf.Poller
	buf    sharedbuf.Buffer
}

func (p pollerService) Serve(ctx context.Context) error {
	p.poller.Start(ctx)
	return nil
}

func (p pollerService) Stop() error {
	p.poller.Stop()
	return p.buf.Close()
}

// simulator is one configured controller with its clock and transports.
type simulator struct {
	cfg        config.SimulatorConfig
	controller *registry.Controller
	ticker     scheduler.Ticker
	clock      string
	framing    transport.Framing
	infos      []core.SimulatorInfo
	services   []service
}

// buildSimulator constructs the vendor front end for sc and wraps it in a
// registry controller journaling to rec.
func buildSimulator(sc config.SimulatorConfig, rec registry.Recorder, logger *slog.Logger) (*simulator, error) {
	logger = logger.With("simulator", sc.Name)
	sim := &simulator{cfg: sc}

	var fe registry.Frontend
	switch sc.Vendor {
	case kohzu.Vendor:
		axes, err := axisConfigs(sc.Axes)
		if err != nil {
			return nil, fmt.Errorf("simulator %q: %w", sc.Name, err)
		}
		k, err := kohzu.New(kohzu.Config{Model: sc.Model, Axes: axes, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("simulator %q: %w", sc.Name, err)
		}
		fe, sim.ticker, sim.clock, sim.framing = k, k, "servo", kohzuFraming

	case newfocus.Vendor:
		drivers, err := driverConfigs(sc.Axes)
		if err != nil {
			return nil, fmt.Errorf("simulator %q: %w", sc.Name, err)
		}
		n, err := newfocus.New(newfocus.Config{Drivers: drivers, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("simulator %q: %w", sc.Name, err)
		}
		fe, sim.ticker, sim.clock, sim.framing = n, n, "servo", newfocusFraming

	case pmac.Vendor:
		p := pmac.New(pmac.Config{Logger: logger})
		fe, sim.ticker, sim.clock = p, p, "ramp"

	default:
		return nil, fmt.Errorf("simulator %q: unknown vendor %q", sc.Name, sc.Vendor)
	}

	opts := []registry.Option{registry.WithLogger(logger)}
	if rec != nil {
		opts = append(opts, registry.WithRecorder(rec))
	}
	c, err := registry.NewController(sc.Name, fe, opts...)
	if err != nil {
		return nil, err
	}
	sim.controller = c
	return sim, nil
}

// axisConfigs turns per-axis overrides into closed-loop axis configs.
func axisConfigs(in []config.AxisConfig) ([]axis.Config, error) {
	out := make([]axis.Config, 0, len(in))
	for _, ac := range in {
		if ac.ID == 0 {
			return nil, fmt.Errorf("axis %q has no id", ac.Name)
		}
		c := axis.Config{
			ID:           ac.ID,
			Name:         ac.Name,
			Kind:         axis.ClosedLoop,
			ServoOn:      true,
			Velocity:     ac.Velocity,
			Acceleration: ac.Acceleration,
			LowerLimit:   axis.DefaultLowerLimit,
			UpperLimit:   axis.DefaultUpperLimit,
		}
		if ac.ServoOn != nil {
			c.ServoOn = *ac.ServoOn
		}
		if ac.LowerLimit != nil {
			c.LowerLimit = *ac.LowerLimit
		}
		if ac.UpperLimit != nil {
			c.UpperLimit = *ac.UpperLimit
		}
		if c.LowerLimit > c.UpperLimit {
			return nil, fmt.Errorf("axis %d: lower limit %g above upper limit %g", ac.ID, c.LowerLimit, c.UpperLimit)
		}
		out = append(out, c)
	}
	return out, nil
}

// driverConfigs turns axis entries into New Focus driver modules.
func driverConfigs(in []config.AxisConfig) ([]newfocus.DriverConfig, error) {
	out := make([]newfocus.DriverConfig, 0, len(in))
	for _, ac := range in {
		kind := axis.ClosedLoop
		if ac.Kind != "" {
			k, err := axis.ParseKind(ac.Kind)
			if err != nil {
				return nil, fmt.Errorf("driver %q: %w", ac.Name, err)
			}
			kind = k
		}
		dc := newfocus.DriverConfig{Name: ac.Name, Kind: kind}
		if ac.LowerLimit != nil {
			dc.LowerLimit = *ac.LowerLimit
		}
		if ac.UpperLimit != nil {
			dc.UpperLimit = *ac.UpperLimit
		}
		out = append(out, dc)
	}
	return out, nil
}

// start opens and serves every transport configured for the simulator.
func (s *simulator) start(ctx context.Context, pollPeriod time.Duration, logger *slog.Logger) error {
	if err := s.open(pollPeriod, logger); err != nil {
		return err
	}
	return s.serve(ctx, logger)
}

// open binds every transport configured for the simulator and records its
// endpoint. Nothing is handled until serve. Transports already opened are
// closed again if a later one fails.
func (s *simulator) open(pollPeriod time.Duration, logger *slog.Logger) error {
	logger = logger.With("simulator", s.cfg.Name)
	c := s.controller
	base := core.SimulatorInfo{
		Name:      s.cfg.Name,
		Vendor:    s.cfg.Vendor,
		Model:     s.cfg.Model,
		AxisCount: len(c.Axes()),
	}

	fail := func(err error) error {
		s.stop(logger)
		return fmt.Errorf("simulator %q: %w", s.cfg.Name, err)
	}

	if s.cfg.Vendor == pmac.Vendor {
		var buf sharedbuf.Buffer = sharedbuf.NewMemory()
		endpoint := "memory"
		if s.cfg.Buffer.Path != "" {
			m, err := sharedbuf.OpenMapped(s.cfg.Buffer.Path)
			if err != nil {
				return fail(err)
			}
			buf, endpoint = m, s.cfg.Buffer.Path
		}
		p := sharedbuf.NewPoller(buf, c, pollPeriod, logger)
		s.services = append(s.services, pollerService{poller: p, buf: buf})
		s.addInfo(base, "sharedbuf", endpoint)
		if s.cfg.Listen != "" || s.cfg.Serial.Device != "" {
			logger.Warn("PMAC simulators are only served over the shared buffer; ignoring listen and serial settings")
		}
		return nil
	}

	if s.cfg.Listen != "" {
		srv := transport.NewServer(s.cfg.Listen, c, s.framing, logger)
		if err := srv.Listen(); err != nil {
			return fail(err)
		}
		s.services = append(s.services, tcpService{srv})
		s.addInfo(base, "tcp", srv.Addr().String())
	}
	if s.cfg.Serial.Device != "" {
		port := transport.NewSerialPort(s.cfg.Serial.Device, s.cfg.Serial.Baud, c, s.framing, logger)
		s.services = append(s.services, serialService{port})
		s.addInfo(base, "serial", s.cfg.Serial.Device)
	}
	if len(s.services) == 0 {
		return fail(fmt.Errorf("no listen address or serial device configured"))
	}
	return nil
}

// serve starts handling commands on every opened transport.
func (s *simulator) serve(ctx context.Context, logger *slog.Logger) error {
	for _, svc := range s.services {
		if err := svc.Serve(ctx); err != nil {
			s.stop(logger)
			return fmt.Errorf("simulator %q: %w", s.cfg.Name, err)
		}
	}
	return nil
}

func (s *simulator) addInfo(base core.SimulatorInfo, kind, endpoint string) {
	base.Transport = kind
	base.Endpoint = endpoint
	s.infos = append(s.infos, base)
}

// stop closes every started transport in reverse order.
func (s *simulator) stop(logger *slog.Logger) {
	for i := len(s.services) - 1; i >= 0; i-- {
		if err := s.services[i].Stop(); err != nil {
			logger.Warn("Error stopping transport", "simulator", s.cfg.Name, "error", err)
		}
	}
	s.services = nil
}
