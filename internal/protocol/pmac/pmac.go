// Package pmac simulates a Delta Tau PMAC driven through its dual-port RAM
// ASCII interface. Motors follow a trapezoidal velocity profile set by their
// I-variables.
package pmac

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/motorsim/motorsim/internal/axis"
	"github.com/motorsim/motorsim/internal/dispatcher"
	"github.com/motorsim/motorsim/pkg/core"
)

const (
	Vendor  = "pmac"
	Type    = "SIMULATION"
	Version = "V1.0"

	MotorCount = 32
	MaxIVar    = 3300
	MaxMVar    = 3300

	// DefaultRate is the profile update frequency in Hz.
	DefaultRate = 100
)

// Per-motor I-variable suffixes, as in I<motor><suffix>.
const (
	ivarActivate     = 0
	ivarAcceleration = 19 // counts/msec²
	ivarVelocity     = 22 // counts/msec
)

// Per-motor M-variable suffixes.
const (
	mvarDemandPosition = 61
	mvarReadback       = 62
)

// Config holds the power-on motor settings, written to every motor's
// Ixx22 and Ixx19.
type Config struct {
	Velocity     string
	Acceleration string
	Logger       *slog.Logger
}

// Power-on Ixx22 and Ixx19.
const (
	DefaultVelocity     = "32"
	DefaultAcceleration = "0.015625"
)

// Controller is a simulated PMAC with MotorCount motors.
type Controller struct {
	motors []*axis.RampAxis
	logger *slog.Logger

	mu   sync.Mutex
	ivar map[int]string
}

// New powers up the controller.
func New(cfg Config) *Controller {
	if cfg.Velocity == "" {
		cfg.Velocity = DefaultVelocity
	}
	if cfg.Acceleration == "" {
		cfg.Acceleration = DefaultAcceleration
	}
	c := &Controller{
		motors: make([]*axis.RampAxis, MotorCount),
		logger: cfg.Logger,
		ivar:   make(map[int]string, MaxIVar),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	for i := 1; i <= MaxIVar; i++ {
		c.ivar[i] = "0"
	}
	for m := 1; m <= MotorCount; m++ {
		c.motors[m-1] = axis.NewRampAxis(m)
		c.ivar[motorVar(m, ivarActivate)] = "1"
		c.ivar[motorVar(m, ivarVelocity)] = cfg.Velocity
		c.ivar[motorVar(m, ivarAcceleration)] = cfg.Acceleration
	}
	return c
}

// motorVar numbers a per-motor variable: motor 3 suffix 22 is 322.
func motorVar(motor, suffix int) int {
	return motor*100 + suffix
}

func (c *Controller) Vendor() string { return Vendor }

// Motor returns motor n, numbered from 1.
func (c *Controller) Motor(n int) (*axis.RampAxis, error) {
	if n < 1 || n > MotorCount {
		return nil, fmt.Errorf("%w: motor %d", dispatcher.ErrUnknownAxis, n)
	}
	return c.motors[n-1], nil
}

// IVar reads an I-variable.
func (c *Controller) IVar(n int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.ivar[n]
	if !ok {
		return "", fmt.Errorf("%w: I%d", dispatcher.ErrUnknownVariable, n)
	}
	return v, nil
}

// SetIVar writes an I-variable. Values are stored as sent.
func (c *Controller) SetIVar(n int, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.ivar[n]; !ok {
		return fmt.Errorf("%w: I%d", dispatcher.ErrUnknownVariable, n)
	}
	c.ivar[n] = value
	return nil
}

func (c *Controller) ivarFloat(n int) float64 {
	v, err := c.IVar(n)
	if err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

// Tick runs one profile update for every motor. The update rate is derived
// from period.
func (c *Controller) Tick(period time.Duration) {
	if period <= 0 {
		return
	}
	rate := 1 / period.Seconds()
	for _, m := range c.motors {
		vel := 1000 * c.ivarFloat(motorVar(m.ID(), ivarVelocity))
		acc := 1000000 * c.ivarFloat(motorVar(m.ID(), ivarAcceleration))
		m.Step(vel, acc, rate)
	}
}

// Axes samples every motor. Positions are reported in counts.
func (c *Controller) Axes() []core.AxisState {
	now := time.Now()
	out := make([]core.AxisState, 0, len(c.motors))
	for _, m := range c.motors {
		s := m.Snapshot()
		out = append(out, core.AxisState{
			Time:       now,
			Axis:       strconv.Itoa(s.ID),
			Kind:       "ramp",
			Position:   s.Readback / axis.SubCounts,
			Command:    s.DemandPosition / axis.SubCounts,
			Velocity:   s.CurrentVelocity,
			Moving:     !s.InPosition(),
			Phase:      s.Phase.String(),
			InPosition: s.InPosition(),
		})
	}
	return out
}

// Parse classifies the command by the ordered rule set.
func (c *Controller) Parse(raw string) (dispatcher.Event, error) {
	kw, matched := match(raw)
	return dispatcher.Event{Keyword: kw, Params: []string{matched}}, nil
}
