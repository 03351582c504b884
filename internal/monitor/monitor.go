// Package monitor periodically samples every simulated axis into the journal
// and the telemetry sink.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/motorsim/motorsim/internal/registry"
	"github.com/motorsim/motorsim/pkg/core"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AxisWriter accepts axis samples. storage.Backend and influx.Manager both
// satisfy it.
type AxisWriter interface {
	RecordAxisState(s *core.AxisState) error
}

// AxisWriterFunc adapts a function to AxisWriter.
type AxisWriterFunc func(s *core.AxisState) error

func (f AxisWriterFunc) RecordAxisState(s *core.AxisState) error { return f(s) }

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Registry *registry.Registry
	Sinks    []AxisWriter
	Interval time.Duration
	Logger   *slog.Logger
	// StatusPath, when set, is rewritten with the latest sample on every pass.
	StatusPath string
}

// Service manages axis sampling
type Service struct {
	deps Dependencies

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
	last      []core.AxisState

	samples metric.Int64Counter
}

// NewService creates a new monitor service
func NewService(deps Dependencies) (*Service, error) {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	samples, err := otel.Meter("github.com/motorsim/motorsim/internal/monitor").Int64Counter(
		"monitor.samples",
		metric.WithDescription("Axis samples taken"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sample counter: %w", err)
	}

	return &Service{deps: deps, samples: samples}, nil
}

// IsRunning returns whether the sampling loop is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Latest returns the axes of the most recent pass.
func (s *Service) Latest() []core.AxisState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.AxisState(nil), s.last...)
}

// Sample reads every axis of every controller once and hands the samples to
// each sink. Sink errors are logged; sampling continues.
func (s *Service) Sample(now time.Time) []core.AxisState {
	var states []core.AxisState
	for _, c := range s.deps.Registry.Controllers() {
		states = append(states, c.Axes()...)
	}

	for i := range states {
		states[i].Time = now
		for _, sink := range s.deps.Sinks {
			if err := sink.RecordAxisState(&states[i]); err != nil {
				s.deps.Logger.Error("Error recording axis sample",
					"controller", states[i].Controller, "axis", states[i].Axis, "error", err)
			}
		}
	}
	s.samples.Add(context.Background(), int64(len(states)))

	s.mu.Lock()
	s.last = states
	s.mu.Unlock()

	if s.deps.StatusPath != "" {
		if err := s.writeStatus(states); err != nil {
			s.deps.Logger.Error("Error writing status file", "path", s.deps.StatusPath, "error", err)
		}
	}
	return states
}

func (s *Service) writeStatus(states []core.AxisState) error {
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.deps.StatusPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.deps.StatusPath)
}

// Start starts the sampling goroutine. It exits when ctx is done or Stop is
// called.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			if s.done == done {
				s.isRunning = false
			}
			s.mu.Unlock()
		}()

		s.deps.Logger.Debug("Starting axis monitor", "interval", s.deps.Interval)
		t := time.NewTicker(s.deps.Interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case now := <-t.C:
				s.Sample(now)
			}
		}
	}()
}

// Stop stops the sampling goroutine and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	done := s.done
	if s.isRunning {
		close(s.stopChan)
		s.isRunning = false
	}
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}
