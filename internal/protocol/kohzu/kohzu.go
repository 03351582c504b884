// Package kohzu simulates the Kohzu ARIES/LYNX family: STX framed commands
// with '/' separated parameters and tab separated replies.
package kohzu

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/motorsim/motorsim/internal/axis"
	"github.com/motorsim/motorsim/internal/dispatcher"
	"github.com/motorsim/motorsim/internal/protocol"
	"github.com/motorsim/motorsim/internal/registry"
	"github.com/motorsim/motorsim/pkg/core"
)

const (
	Vendor = "kohzu"

	stx = 0x02

	// sysServoOff is the RSY system number reporting the servo-off flag.
	sysServoOff = 21
)

// AxisCount returns the number of axes fitted to a controller model.
func AxisCount(model string) int {
	switch model {
	case "200", "210":
		return 2
	case "800":
		return 8
	default:
		return 4
	}
}

// Config describes one controller. Axes overrides the defaults of the axis
// with the same id; axes not listed keep the factory settings.
type Config struct {
	Model  string
	Axes   []axis.Config
	Logger *slog.Logger
}

// Controller is a simulated Kohzu controller.
type Controller struct {
	model  string
	axes   *registry.AxisSet
	logger *slog.Logger
}

// New builds the controller and its axes.
func New(cfg Config) (*Controller, error) {
	n := AxisCount(cfg.Model)

	overrides := make(map[int]axis.Config, len(cfg.Axes))
	for _, ac := range cfg.Axes {
		if ac.ID < 1 || ac.ID > n {
			return nil, fmt.Errorf("model %s has no axis %d", cfg.Model, ac.ID)
		}
		overrides[ac.ID] = ac
	}

	axes := make([]*axis.Axis, 0, n)
	for id := 1; id <= n; id++ {
		ac, ok := overrides[id]
		if !ok {
			ac = axis.Config{ID: id, ServoOn: true}
		}
		ac.Kind = axis.ClosedLoop
		ac.DeferredStart = false
		axes = append(axes, axis.New(ac))
	}

	set, err := registry.NewAxisSet(axes...)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{model: cfg.Model, axes: set, logger: logger}, nil
}

func (c *Controller) Vendor() string { return Vendor }

// Model returns the model identifier.
func (c *Controller) Model() string { return c.model }

// AxisSet exposes the axes for direct inspection.
func (c *Controller) AxisSet() *registry.AxisSet { return c.axes }

// Tick advances every axis by one servo period.
func (c *Controller) Tick(period time.Duration) { c.axes.Tick(period) }

// Axes samples every axis in ascending id order.
func (c *Controller) Axes() []core.AxisState {
	return c.axes.States("", time.Now())
}

// Parse splits a frame of the form STX KEYWORD [PARAM[/PARAM]...] CR. The
// whole frame is matched case-insensitively.
func (c *Controller) Parse(raw string) (dispatcher.Event, error) {
	cmd := strings.ToUpper(raw)
	if len(cmd) < 5 || cmd[0] != stx || cmd[len(cmd)-1] != '\r' {
		return dispatcher.Event{}, fmt.Errorf("%w: %q", dispatcher.ErrMalformedFrame, raw)
	}

	var params []string
	if body := cmd[4 : len(cmd)-1]; body != "" {
		params = strings.Split(body, "/")
	}
	return dispatcher.Event{Keyword: cmd[1:4], Params: params}, nil
}

// Register installs the command table.
func (c *Controller) Register(d *dispatcher.Dispatcher) {
	d.Register("IDN", c.handleIdentification, dispatcher.Arity(0))
	d.Register("STR", c.handleStatusRead, dispatcher.Arity(2))
	d.Register("RDP", c.handlePositionRead, dispatcher.Arity(2))
	d.Register("RSY", c.handleSystemRead, dispatcher.Arity(2))
	d.Register("ASI", c.handleInitialSettings, dispatcher.Arity(14))
	d.Register("APS", c.handleAbsoluteDrive, dispatcher.Arity(8), dispatcher.Logged())
	d.Register("ORG", c.handleOriginDrive, dispatcher.Arity(6), dispatcher.Logged())
	d.Register("STP", c.handleStop, dispatcher.Arity(2), dispatcher.Logged())
}

func (c *Controller) axis(param string) (int, *axis.Axis, error) {
	n, err := protocol.Int(param)
	if err != nil {
		return 0, nil, err
	}
	a, ok := c.axes.Get(n)
	if !ok {
		return 0, nil, fmt.Errorf("%w: %d", dispatcher.ErrUnknownAxis, n)
	}
	return n, a, nil
}

func reply(keyword string, axisNum int, fields ...string) string {
	var b strings.Builder
	b.WriteString("C\t")
	b.WriteString(keyword)
	b.WriteString(strconv.Itoa(axisNum))
	for _, f := range fields {
		b.WriteByte('\t')
		b.WriteString(f)
	}
	b.WriteString("\r\n")
	return b.String()
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
