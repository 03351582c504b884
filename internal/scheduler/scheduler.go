// Package scheduler drives the motion tick of the simulated controllers. It
// runs on its own clock, independent of command traffic.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Ticker is anything advanced by the motion clock.
type Ticker interface {
	Tick(period time.Duration)
}

// TickerFunc adapts a function to Ticker.
type TickerFunc func(period time.Duration)

func (f TickerFunc) Tick(period time.Duration) { f(period) }

var ErrInvalidPeriod = errors.New("scheduler period must be positive")

// Scheduler ticks every registered Ticker once per period, in registration
// order. Nothing runs until Start; Step drives it by hand.
type Scheduler struct {
	name   string
	period time.Duration
	logger *slog.Logger

	mu        sync.RWMutex
	tickers   []Ticker
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}

	ticks metric.Int64Counter
	attrs metric.MeasurementOption
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// New creates a stopped scheduler.
func New(name string, period time.Duration, opts ...Option) (*Scheduler, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeriod, period)
	}

	s := &Scheduler{
		name:   name,
		period: period,
		logger: slog.Default(),
		attrs:  metric.WithAttributes(attribute.String("scheduler", name)),
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	s.ticks, err = meter().Int64Counter(
		"scheduler.ticks",
		metric.WithDescription("Motion ticks executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	return s, nil
}

// Period returns the tick interval.
func (s *Scheduler) Period() time.Duration { return s.period }

// Add registers t. Tickers added while running join from the next tick.
func (s *Scheduler) Add(t Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickers = append(s.tickers, t)
}

// Step runs one tick synchronously.
func (s *Scheduler) Step() {
	s.mu.RLock()
	tickers := append([]Ticker(nil), s.tickers...)
	s.mu.RUnlock()

	for _, t := range tickers {
		t.Tick(s.period)
	}
	s.ticks.Add(context.Background(), 1, s.attrs)
}

// Running reports whether the tick loop is active.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Start launches the tick loop. It stops when ctx is done or Stop is called.
// Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
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

		s.logger.Debug("motion scheduler started", "scheduler", s.name, "period", s.period)
		t := time.NewTicker(s.period)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-t.C:
				s.Step()
			}
		}
	}()
}

// Stop ends the tick loop and waits for the in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		done := s.done
		s.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()

	<-done
	s.logger.Debug("motion scheduler stopped", "scheduler", s.name)
}
