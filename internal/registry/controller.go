package registry

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/motorsim/motorsim/internal/dispatcher"
	"github.com/motorsim/motorsim/internal/logging"
	"github.com/motorsim/motorsim/pkg/core"
)

// Frontend is a vendor command grammar bound to its axes.
type Frontend interface {
	Vendor() string
	Parse(raw string) (dispatcher.Event, error)
	Register(d *dispatcher.Dispatcher)
	Axes() []core.AxisState
}

// Recorder receives every command exchange.
type Recorder interface {
	RecordCommand(r *core.CommandRecord) error
}

// Controller is the dispatch surface of one simulated controller. Bad input
// of any kind is logged and answered with an empty reply.
type Controller struct {
	name       string
	frontend   Frontend
	dispatcher *dispatcher.Dispatcher
	logger     *slog.Logger
	recorder   Recorder
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithRecorder journals every exchange to r.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// NewController wires fe's handlers into a fresh dispatcher.
func NewController(name string, fe Frontend, opts ...Option) (*Controller, error) {
	c := &Controller{
		name:     name,
		frontend: fe,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("controller", name, "vendor", fe.Vendor())

	d, err := dispatcher.New(logging.NewDispatcherLogger(c.logger))
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher for %s: %w", name, err)
	}
	fe.Register(d)
	c.dispatcher = d

	return c, nil
}

// Name returns the controller name.
func (c *Controller) Name() string { return c.name }

// Vendor returns the grammar family.
func (c *Controller) Vendor() string { return c.frontend.Vendor() }

// Frontend returns the vendor front end.
func (c *Controller) Frontend() Frontend { return c.frontend }

// Keywords lists the registered command keywords.
func (c *Controller) Keywords() []string { return c.dispatcher.Keywords() }

// Axes samples all axes in ascending order.
func (c *Controller) Axes() []core.AxisState {
	states := c.frontend.Axes()
	for i := range states {
		states[i].Controller = c.name
	}
	return states
}

// Handle parses and dispatches one raw command. On error the reply is empty.
func (c *Controller) Handle(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}

	start := time.Now()
	e, err := c.frontend.Parse(raw)
	reply := ""
	if err == nil {
		e.Raw = raw
		e.Timestamp = start
		reply, err = c.dispatcher.Dispatch(e)
	}

	rec := &core.CommandRecord{
		Time:       start,
		Controller: c.name,
		Vendor:     c.frontend.Vendor(),
		Raw:        raw,
		Keyword:    e.Keyword,
		Params:     e.Params,
		Outcome:    core.OutcomeOK,
		Duration:   time.Since(start),
	}

	if err != nil {
		reply = ""
		rec.Outcome = core.OutcomeRejected
		rec.Error = err.Error()
		c.logger.Warn("command rejected", "raw", raw, "keyword", e.Keyword, "error", err)
	} else {
		rec.Reply = reply
		c.logger.Debug("command handled", "keyword", e.Keyword, "reply", reply)
	}

	if c.recorder != nil {
		if rerr := c.recorder.RecordCommand(rec); rerr != nil {
			c.logger.Error("failed to journal command", "error", rerr)
		}
	}

	return reply, err
}

// Receive is Handle without the error.
func (c *Controller) Receive(raw string) string {
	reply, _ := c.Handle(raw)
	return reply
}
