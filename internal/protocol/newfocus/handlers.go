package newfocus

import (
	"fmt"
	"strings"

	"github.com/motorsim/motorsim/internal/axis"
	"github.com/motorsim/motorsim/internal/dispatcher"
	"github.com/motorsim/motorsim/internal/protocol"
)

// goFlag starts motion straight after a move or jog.
const goFlag = "G"

// Register installs the command table.
func (c *Controller) Register(d *dispatcher.Dispatcher) {
	d.Register("VER", c.handleVersion)
	d.Register("STA", c.handleStatus, dispatcher.Arity(0, 1))
	d.Register("DIAG", c.handleDiagnostics, dispatcher.Arity(1))
	d.Register("POS", c.handlePosition, dispatcher.Arity(0, 1, 2))
	d.Register("STO", c.handleStop, dispatcher.Arity(0, 1), dispatcher.Logged())
	d.Register("HAL", c.handleStop, dispatcher.Arity(0, 1), dispatcher.Logged())
	d.Register("MON", c.handleDriverEnable(true), dispatcher.Arity(0, 1))
	d.Register("MOF", c.handleDriverEnable(false), dispatcher.Arity(0, 1))
	d.Register("JON", c.handleJoystick(true), dispatcher.Arity(0))
	d.Register("JOF", c.handleJoystick(false), dispatcher.Arity(0))
	d.Register("MPV", c.handleMinimumProfileVelocity, dispatcher.Arity(0, 1, 2, 3))
	d.Register("DRT", c.handleDriverType, dispatcher.Arity(0))
	d.Register("REL", c.handleMove((*axis.Axis).MoveRelative), dispatcher.Arity(2, 3), dispatcher.Logged())
	d.Register("ABS", c.handleMove((*axis.Axis).MoveAbsolute), dispatcher.Arity(2, 3), dispatcher.Logged())
	d.Register("CHL", c.handleChannel, dispatcher.Arity(0, 1, 2))
	d.Register("VEL", c.handleVelocity, dispatcher.Arity(0, 1, 2, 3))
	d.Register("ACC", c.handleAcceleration, dispatcher.Arity(0, 1, 2, 3))
	d.Register("GO", c.handleGo, dispatcher.Arity(0, 1), dispatcher.Logged())
	d.Register("FOR", c.handleJog((*axis.Axis).JogForward), dispatcher.Arity(1, 2, 3), dispatcher.Logged())
	d.Register("REV", c.handleJog((*axis.Axis).JogBackward), dispatcher.Arity(1, 2, 3), dispatcher.Logged())
	d.Register("SER", c.handleServo(true), dispatcher.Arity(1))
	d.Register("NOS", c.handleServo(false), dispatcher.Arity(1))
	d.Register("RLI", c.handleLimitSearch, dispatcher.Arity(1), dispatcher.Logged())
}

func (c *Controller) handleVersion(e dispatcher.Event) (string, error) {
	return Version + "\r\n", nil
}

func (c *Controller) handleStatus(e dispatcher.Event) (string, error) {
	return c.addressed(e, func(d *driver) (string, error) {
		return fmt.Sprintf("%s=0x%02x\r\n", d.name, d.status()), nil
	})
}

func (c *Controller) handleDiagnostics(e dispatcher.Event) (string, error) {
	d, err := c.driver(e.Params[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s=0x%02x\r\n", d.name, d.diagnostic()), nil
}

func queryPosition(d *driver) (string, error) {
	return fmt.Sprintf("%s=%d\r\n", d.name, int64(d.motor().Snapshot().CurrentPosition)), nil
}

func (c *Controller) handlePosition(e dispatcher.Event) (string, error) {
	if len(e.Params) < 2 {
		return c.addressed(e, queryPosition)
	}

	d, err := c.driver(e.Params[0])
	if err != nil {
		return "", err
	}
	pos, err := protocol.Int(e.Params[1])
	if err != nil {
		return "", err
	}
	d.motor().SetPosition(float64(pos))
	return "", nil
}

func (c *Controller) handleStop(e dispatcher.Event) (string, error) {
	return c.addressed(e, func(d *driver) (string, error) {
		d.motor().Stop()
		return "", nil
	})
}

func (c *Controller) handleDriverEnable(on bool) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (string, error) {
		return c.addressed(e, func(d *driver) (string, error) {
			d.setEnabled(on)
			return "", nil
		})
	}
}

func (c *Controller) handleJoystick(on bool) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (string, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.joystickOn = on
		return "", nil
	}
}

func (c *Controller) handleDriverType(e dispatcher.Event) (string, error) {
	return c.each(func(d *driver) (string, error) {
		return fmt.Sprintf("%s=%d\r\n", d.name, d.driverType()), nil
	})
}

func (c *Controller) handleChannel(e dispatcher.Event) (string, error) {
	if len(e.Params) < 2 {
		return c.addressed(e, func(d *driver) (string, error) {
			if d.kind != axis.OpenLoop {
				return "", nil
			}
			return fmt.Sprintf("%s=%s\r\n", d.name, d.currentChannel()), nil
		})
	}

	d, err := c.driver(e.Params[0])
	if err != nil {
		return "", err
	}
	if d.kind != axis.OpenLoop {
		return "", nil
	}
	if _, ok := d.selectChannel(e.Params[1]); !ok {
		return "", fmt.Errorf("%w: %s channel %q", dispatcher.ErrUnknownAxis, d.name, e.Params[1])
	}
	return "", nil
}

// handleMove applies a relative or absolute move to the addressed channel.
func (c *Controller) handleMove(move func(*axis.Axis, float64)) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (string, error) {
		d, err := c.driver(e.Params[0])
		if err != nil {
			return "", err
		}
		pos, err := protocol.Int(e.Params[1])
		if err != nil {
			return "", err
		}
		m := d.motor()
		move(m, float64(pos))
		if len(e.Params) == 3 && e.Params[2] == goFlag {
			m.Go()
		}
		return "", nil
	}
}

func (c *Controller) handleJog(jog func(*axis.Axis)) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (string, error) {
		d, err := c.driver(e.Params[0])
		if err != nil {
			return "", err
		}
		m := d.motor()
		if len(e.Params) >= 2 {
			vel, err := protocol.Int(e.Params[1])
			if err != nil {
				return "", err
			}
			m.SetVelocity(float64(vel))
		}
		jog(m)
		if len(e.Params) == 3 && e.Params[2] == goFlag {
			m.Go()
		}
		return "", nil
	}
}

func (c *Controller) handleGo(e dispatcher.Event) (string, error) {
	return c.addressed(e, func(d *driver) (string, error) {
		d.motor().Go()
		return "", nil
	})
}

func (c *Controller) handleServo(on bool) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (string, error) {
		d, err := c.driver(e.Params[0])
		if err != nil {
			return "", err
		}
		if d.kind != axis.ClosedLoop {
			return "", nil
		}
		if on {
			d.motor().EnableClosedLoop()
		} else {
			d.motor().DisableClosedLoop()
		}
		return "", nil
	}
}

func (c *Controller) handleLimitSearch(e dispatcher.Event) (string, error) {
	d, err := c.driver(e.Params[0])
	if err != nil {
		return "", err
	}
	d.motor().SearchForNegativeLimit()
	return "", nil
}

// channelSetting is a per-channel integer read back as "<driver> M<ch>=<v>".
type channelSetting struct {
	get func(axis.State) float64
	set func(*axis.Axis, float64)

	// closedLoop reports whether closed-loop modules support the setting.
	closedLoop bool
}

var (
	minimumProfileVelocity = channelSetting{
		get: func(s axis.State) float64 { return s.MinimumProfileVelocity },
		set: (*axis.Axis).SetMinimumProfileVelocity,
	}
	velocity = channelSetting{
		get:        func(s axis.State) float64 { return s.Velocity },
		set:        (*axis.Axis).SetVelocity,
		closedLoop: true,
	}
	acceleration = channelSetting{
		get:        func(s axis.State) float64 { return s.Acceleration },
		set:        (*axis.Axis).SetAcceleration,
		closedLoop: true,
	}
)

func (c *Controller) handleMinimumProfileVelocity(e dispatcher.Event) (string, error) {
	return c.channelCommand(e, minimumProfileVelocity)
}

func (c *Controller) handleVelocity(e dispatcher.Event) (string, error) {
	return c.channelCommand(e, velocity)
}

func (c *Controller) handleAcceleration(e dispatcher.Event) (string, error) {
	return c.channelCommand(e, acceleration)
}

// channelCommand serves the four forms of a channel setting: broadcast query,
// driver query, channel query and channel set.
func (c *Controller) channelCommand(e dispatcher.Event, cs channelSetting) (string, error) {
	switch len(e.Params) {
	case 0, 1:
		return c.addressed(e, func(d *driver) (string, error) {
			return cs.query(d, "")
		})
	case 2:
		d, err := c.driver(e.Params[0])
		if err != nil {
			return "", err
		}
		return cs.query(d, e.Params[1])
	default:
		d, err := c.driver(e.Params[0])
		if err != nil {
			return "", err
		}
		return cs.apply(d, e.Params[1], e.Params[2])
	}
}

func (cs channelSetting) line(d *driver, ch string, m *axis.Axis) string {
	return fmt.Sprintf("%s M%s=%d\r\n", d.name, ch, int64(cs.get(m.Snapshot())))
}

// query reads one channel, or all of them when ch is empty. Closed-loop
// modules always answer for channel 0.
func (cs channelSetting) query(d *driver, ch string) (string, error) {
	if d.kind == axis.ClosedLoop {
		if !cs.closedLoop {
			return "", nil
		}
		return cs.line(d, closedLoopChannel, d.motor()), nil
	}

	if ch == "" {
		var b strings.Builder
		for _, name := range d.channels {
			m, _ := d.channel(name)
			b.WriteString(cs.line(d, name, m))
		}
		return b.String(), nil
	}

	m, ok := d.channel(ch)
	if !ok {
		return "", fmt.Errorf("%w: %s channel %q", dispatcher.ErrUnknownAxis, d.name, ch)
	}
	return cs.line(d, ch, m), nil
}

// apply sets the value on a channel. On open-loop modules the channel also
// becomes the addressed one.
func (cs channelSetting) apply(d *driver, ch, value string) (string, error) {
	if d.kind == axis.ClosedLoop && !cs.closedLoop {
		return "", nil
	}
	v, err := protocol.Unsigned(value)
	if err != nil {
		return "", err
	}

	if d.kind == axis.ClosedLoop {
		cs.set(d.motor(), float64(v))
		return "", nil
	}

	m, ok := d.selectChannel(ch)
	if !ok {
		return "", fmt.Errorf("%w: %s channel %q", dispatcher.ErrUnknownAxis, d.name, ch)
	}
	cs.set(m, float64(v))
	return "", nil
}
