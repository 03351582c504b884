package pmac

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/motorsim/motorsim/internal/axis"
	"github.com/motorsim/motorsim/internal/dispatcher"
	"github.com/motorsim/motorsim/internal/protocol"
)

// Register installs one handler per rule. Each receives the matched text as
// its only parameter.
func (c *Controller) Register(d *dispatcher.Dispatcher) {
	one := dispatcher.Arity(1)
	d.Register(KeywordMove, c.handleMove, one, dispatcher.Logged())
	d.Register(KeywordType, c.handleType, one)
	d.Register(KeywordVersion, c.handleVersion, one)
	d.Register(KeywordSetM, c.handleSetM, one, dispatcher.Logged())
	d.Register(KeywordGetM, c.handleGetM, one)
	d.Register(KeywordSetI, c.handleSetI, one)
	d.Register(KeywordGetI, c.handleGetI, one)
	d.Register(KeywordStatus, c.handleStatus, one)
	d.Register(KeywordStop, c.handleStop, one, dispatcher.Logged())
	d.Register(KeywordUnmatched, c.handleUnmatched, one)
}

// handleMove walks "#n [Ivar=v ...] J=pos" left to right: axis select,
// I-variable writes, then the move in counts.
func (c *Controller) handleMove(e dispatcher.Event) (string, error) {
	var motor *axis.RampAxis
	for _, tok := range strings.Fields(e.Params[0]) {
		switch tok[0] {
		case '#':
			n, err := protocol.Int(tok[1:])
			if err != nil {
				return "", err
			}
			if motor, err = c.Motor(n); err != nil {
				return "", err
			}
		case 'I':
			name, value, _ := strings.Cut(tok, "=")
			n, err := protocol.Int(name[1:])
			if err != nil {
				return "", err
			}
			if err := c.SetIVar(n, value); err != nil {
				return "", err
			}
		case 'J':
			if motor == nil {
				return "", fmt.Errorf("%w: move without motor select", dispatcher.ErrUnknownAxis)
			}
			pos, err := strconv.ParseFloat(tok[2:], 64)
			if err != nil {
				return "", fmt.Errorf("%w: %q", dispatcher.ErrNonNumericParameter, tok)
			}
			motor.SetDemandPosition(pos * axis.SubCounts)
		}
	}
	return "", nil
}

func (c *Controller) handleType(e dispatcher.Event) (string, error) {
	return Type, nil
}

func (c *Controller) handleVersion(e dispatcher.Event) (string, error) {
	return Version, nil
}

// assignment splits "X123 = 45" into 123 and "45".
func assignment(s string) (int, string, error) {
	name, value, _ := strings.Cut(s, "=")
	n, err := protocol.Int(strings.TrimSpace(name)[1:])
	if err != nil {
		return 0, "", err
	}
	return n, strings.TrimSpace(value), nil
}

// mvar resolves M<motor><suffix> to the motor and the two digit suffix.
func (c *Controller) mvar(n int) (*axis.RampAxis, int, error) {
	if n < 100 || n > MaxMVar {
		return nil, 0, fmt.Errorf("%w: M%d", dispatcher.ErrUnknownVariable, n)
	}
	m, err := c.Motor(n / 100)
	if err != nil {
		return nil, 0, err
	}
	return m, n % 100, nil
}

func (c *Controller) handleSetM(e dispatcher.Event) (string, error) {
	n, value, err := assignment(e.Params[0])
	if err != nil {
		return "", err
	}
	m, suffix, err := c.mvar(n)
	if err != nil {
		return "", err
	}
	if suffix != mvarDemandPosition {
		return "", fmt.Errorf("%w: M%d is read-only", dispatcher.ErrUnknownVariable, n)
	}
	pos, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %q", dispatcher.ErrNonNumericParameter, value)
	}
	m.SetDemandPosition(pos)
	return "", nil
}

// Both the demand and readback M-variables read back the readback.
func (c *Controller) handleGetM(e dispatcher.Event) (string, error) {
	n, err := protocol.Int(e.Params[0][1:])
	if err != nil {
		return "", err
	}
	m, suffix, err := c.mvar(n)
	if err != nil {
		return "", err
	}
	if suffix != mvarDemandPosition && suffix != mvarReadback {
		return "", fmt.Errorf("%w: M%d", dispatcher.ErrUnknownVariable, n)
	}
	return formatReadback(m.Readback()), nil
}

func (c *Controller) handleSetI(e dispatcher.Event) (string, error) {
	n, value, err := assignment(e.Params[0])
	if err != nil {
		return "", err
	}
	return "", c.SetIVar(n, value)
}

func (c *Controller) handleGetI(e dispatcher.Event) (string, error) {
	n, err := protocol.Int(e.Params[0][1:])
	if err != nil {
		return "", err
	}
	return c.IVar(n)
}

// motorRef reads the motor number from "#n?" or "#nJ/".
func (c *Controller) motorRef(s string) (*axis.RampAxis, error) {
	digits := strings.TrimRight(s[1:], "?J/")
	n, err := protocol.Int(digits)
	if err != nil {
		return nil, err
	}
	return c.Motor(n)
}

func (c *Controller) handleStatus(e dispatcher.Event) (string, error) {
	m, err := c.motorRef(e.Params[0])
	if err != nil {
		return "", err
	}
	return m.Status(), nil
}

func (c *Controller) handleStop(e dispatcher.Event) (string, error) {
	m, err := c.motorRef(e.Params[0])
	if err != nil {
		return "", err
	}
	m.Stop()
	return "", nil
}

func (c *Controller) handleUnmatched(e dispatcher.Event) (string, error) {
	return "", fmt.Errorf("%w: %q", dispatcher.ErrUnsupportedKeyword, e.Params[0])
}

// formatReadback renders a position the way the controller prints floats:
// twelve significant digits, and whole numbers keep a ".0".
func formatReadback(v float64) string {
	s := strconv.FormatFloat(v, 'g', 12, 64)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}
