// Package newfocus simulates a New Focus 8750/8752 picomotor controller and
// its chain of driver modules. Commands are whitespace separated tokens and
// every reply ends with a prompt.
package newfocus

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/motorsim/motorsim/internal/axis"
	"github.com/motorsim/motorsim/internal/dispatcher"
	"github.com/motorsim/motorsim/internal/registry"
	"github.com/motorsim/motorsim/pkg/core"
)

const (
	Vendor  = "newfocus"
	Version = "Version 1.5.0"

	// Prompt follows every reply, including empty ones.
	Prompt = "\r\n>"
)

// Config lists the driver modules on the chain.
type Config struct {
	Drivers []DriverConfig
	Logger  *slog.Logger
}

// Controller is the master controller module.
type Controller struct {
	drivers map[string]*driver
	ordered []*driver
	logger  *slog.Logger

	mu         sync.Mutex
	joystickOn bool
}

// New builds the chain. Driver names are case-insensitive and unique.
func New(cfg Config) (*Controller, error) {
	c := &Controller{
		drivers:    make(map[string]*driver, len(cfg.Drivers)),
		logger:     cfg.Logger,
		joystickOn: true,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	nextID := 1
	for _, dc := range cfg.Drivers {
		dc.Name = strings.ToUpper(dc.Name)
		if dc.Name == "" {
			return nil, fmt.Errorf("driver module without a name")
		}
		if _, dup := c.drivers[dc.Name]; dup {
			return nil, fmt.Errorf("duplicate driver module %q", dc.Name)
		}
		d := newDriver(dc, nextID)
		nextID += len(d.channels)
		c.drivers[dc.Name] = d
		c.ordered = append(c.ordered, d)
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].name < c.ordered[j].name })

	return c, nil
}

func (c *Controller) Vendor() string { return Vendor }

// JoystickOn reports the joystick enable state.
func (c *Controller) JoystickOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joystickOn
}

// Motor returns the axis behind a driver channel.
func (c *Controller) Motor(driverName, channel string) (*axis.Axis, bool) {
	d, ok := c.lookup(driverName)
	if !ok {
		return nil, false
	}
	return d.channel(channel)
}

// Tick advances every channel of every driver module.
func (c *Controller) Tick(period time.Duration) {
	for _, d := range c.ordered {
		d.tick(period)
	}
}

// Axes samples every channel in driver name order.
func (c *Controller) Axes() []core.AxisState {
	now := time.Now()
	var out []core.AxisState
	for _, d := range c.ordered {
		for _, ch := range d.channels {
			out = append(out, registry.AxisState("", d.motors[ch].Snapshot(), now))
		}
	}
	return out
}

// Parse tokenizes on whitespace and '='.
func (c *Controller) Parse(raw string) (dispatcher.Event, error) {
	tokens := strings.FieldsFunc(strings.ToUpper(raw), func(r rune) bool {
		return unicode.IsSpace(r) || r == '='
	})
	if len(tokens) == 0 {
		return dispatcher.Event{}, fmt.Errorf("%w: %q", dispatcher.ErrMalformedFrame, raw)
	}
	return dispatcher.Event{Keyword: tokens[0], Params: tokens[1:]}, nil
}

// lookup finds a driver by name; the leading 'A' is optional.
func (c *Controller) lookup(name string) (*driver, bool) {
	name = strings.ToUpper(name)
	if d, ok := c.drivers[name]; ok {
		return d, true
	}
	d, ok := c.drivers["A"+name]
	return d, ok
}

func (c *Controller) driver(name string) (*driver, error) {
	d, ok := c.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: driver %q", dispatcher.ErrUnknownAxis, name)
	}
	return d, nil
}

// each applies fn to every driver in name order and concatenates replies.
func (c *Controller) each(fn func(*driver) (string, error)) (string, error) {
	var b strings.Builder
	for _, d := range c.ordered {
		r, err := fn(d)
		if err != nil {
			return "", err
		}
		b.WriteString(r)
	}
	return b.String(), nil
}

// addressed runs fn on the named driver, or on every driver when the
// command has no parameters.
func (c *Controller) addressed(e dispatcher.Event, fn func(*driver) (string, error)) (string, error) {
	if len(e.Params) == 0 {
		return c.each(fn)
	}
	d, err := c.driver(e.Params[0])
	if err != nil {
		return "", err
	}
	return fn(d)
}
