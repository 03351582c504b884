package kohzu

import (
	"strconv"

	"github.com/motorsim/motorsim/internal/dispatcher"
	"github.com/motorsim/motorsim/internal/protocol"
)

func (c *Controller) handleIdentification(e dispatcher.Event) (string, error) {
	return reply("IDN", 0, c.model, "1000"), nil
}

// STR takes the mode first and the axis second.
func (c *Controller) handleStatusRead(e dispatcher.Event) (string, error) {
	mode, err := protocol.Int(e.Params[0])
	if err != nil {
		return "", err
	}
	n, a, err := c.axis(e.Params[1])
	if err != nil {
		return "", err
	}

	s := a.Snapshot()
	return reply("STR", n,
		strconv.Itoa(mode),
		flag(s.Moving),
		"0",
		flag(s.Homed),
		flag(s.OnUpperLimit),
		flag(s.OnLowerLimit),
		"0",
		"0",
	), nil
}

func (c *Controller) handlePositionRead(e dispatcher.Event) (string, error) {
	n, a, err := c.axis(e.Params[0])
	if err != nil {
		return "", err
	}
	if _, err := protocol.Int(e.Params[1]); err != nil {
		return "", err
	}
	return reply("RDP", n, protocol.FormatPosition(a.Snapshot().CurrentPosition)), nil
}

func (c *Controller) handleSystemRead(e dispatcher.Event) (string, error) {
	n, a, err := c.axis(e.Params[0])
	if err != nil {
		return "", err
	}
	sys, err := protocol.Int(e.Params[1])
	if err != nil {
		return "", err
	}

	value := "0"
	if sys == sysServoOff {
		value = flag(!a.Snapshot().ServoOn)
	} else {
		c.logger.Warn("unsupported system number", "axis", n, "sys", sys)
	}
	return reply("RSY", n, strconv.Itoa(sys), value), nil
}

// ASI carries fourteen settings; only the drive speed is applied. Hosts send
// 1 as a homing speed placeholder, which is ignored.
func (c *Controller) handleInitialSettings(e dispatcher.Event) (string, error) {
	n, a, err := c.axis(e.Params[0])
	if err != nil {
		return "", err
	}
	velocity, err := protocol.Int(e.Params[2])
	if err != nil {
		return "", err
	}
	if velocity > 1 {
		a.SetVelocity(float64(velocity))
	}
	return reply("ASI", n), nil
}

// APS: axis, speed table, ramp, ..., position, ...
func (c *Controller) handleAbsoluteDrive(e dispatcher.Event) (string, error) {
	n, a, err := c.axis(e.Params[0])
	if err != nil {
		return "", err
	}
	pos, err := protocol.Int(e.Params[4])
	if err != nil {
		return "", err
	}
	a.MoveAbsolute(float64(pos))
	return reply("APS", n), nil
}

func (c *Controller) handleOriginDrive(e dispatcher.Event) (string, error) {
	n, a, err := c.axis(e.Params[0])
	if err != nil {
		return "", err
	}
	a.SearchForNegativeLimit()
	return reply("ORG", n), nil
}

func (c *Controller) handleStop(e dispatcher.Event) (string, error) {
	n, a, err := c.axis(e.Params[0])
	if err != nil {
		return "", err
	}
	a.Stop()
	return reply("STP", n), nil
}
