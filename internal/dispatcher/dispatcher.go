package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event is one parsed controller command.
type Event struct {
	Keyword   string
	Params    []string
	Raw       string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns the reply text.
type HandlerFunc func(Event) (string, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	arity  []int
	logged bool
}

// Arity restricts the handler to the given parameter counts.
func Arity(counts ...int) Option {
	return func(c *config) {
		c.arity = append(c.arity, counts...)
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers by keyword.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger
	metrics  instruments
}

// New creates a new Dispatcher with the given logger.
func New(logger Logger) (*Dispatcher, error) {
	in, err := newInstruments()
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
		metrics:  in,
	}, nil
}

// Register adds a handler for the given keyword with optional configuration.
func (d *Dispatcher) Register(keyword string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if len(cfg.arity) > 0 {
		handler = withArity(keyword, cfg.arity, handler)
	}

	if cfg.logged {
		handler = d.withLogging(keyword, handler)
	}

	d.handlers[keyword] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (string, error) {
	ctx := context.Background()
	kw := attribute.String("keyword", e.Keyword)

	h, ok := d.handlers[e.Keyword]
	if !ok {
		d.metrics.rejected.Add(ctx, 1, metric.WithAttributes(kw, attribute.String("reason", reason(ErrUnsupportedKeyword))))
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKeyword, e.Keyword)
	}

	start := time.Now()
	reply, err := h(e)
	d.metrics.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000, metric.WithAttributes(kw))
	if err != nil {
		d.metrics.rejected.Add(ctx, 1, metric.WithAttributes(kw, attribute.String("reason", reason(err))))
		return "", err
	}

	d.metrics.processed.Add(ctx, 1, metric.WithAttributes(kw))
	return reply, nil
}

// HasHandler returns true if a handler is registered for the keyword.
func (d *Dispatcher) HasHandler(keyword string) bool {
	_, ok := d.handlers[keyword]
	return ok
}

// Keywords returns the registered keywords in sorted order.
func (d *Dispatcher) Keywords() []string {
	out := make([]string, 0, len(d.handlers))
	for k := range d.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func withArity(keyword string, counts []int, h HandlerFunc) HandlerFunc {
	return func(e Event) (string, error) {
		if !slices.Contains(counts, len(e.Params)) {
			return "", fmt.Errorf("%w: %s takes %v parameters, got %d", ErrArity, keyword, counts, len(e.Params))
		}
		return h(e)
	}
}

func (d *Dispatcher) withLogging(keyword string, h HandlerFunc) HandlerFunc {
	return func(e Event) (string, error) {
		start := time.Now()
		d.logger.Debug("handling command", "keyword", keyword, "params", len(e.Params))

		reply, err := h(e)

		if err != nil {
			d.logger.Error("command rejected", "keyword", keyword, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("command complete", "keyword", keyword, "duration", time.Since(start))
		}

		return reply, err
	}
}

func reason(err error) string {
	for _, known := range []error{
		ErrMalformedFrame,
		ErrUnknownAxis,
		ErrNonNumericParameter,
		ErrUnsupportedKeyword,
		ErrArity,
		ErrUnknownVariable,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "other"
}
