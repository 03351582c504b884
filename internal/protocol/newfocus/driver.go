package newfocus

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/motorsim/motorsim/internal/axis"
)

// Open-loop driver modules fan out to three picomotor channels; closed-loop
// modules drive a single encoded motor on channel 0.
var openLoopChannels = []string{"0", "1", "2"}

const closedLoopChannel = "0"

// Device status bits.
const (
	statusClosedNotMoving = 0x01
	statusClosedReady     = 0x08
	statusLowerLimit      = 0x20
	statusUpperLimit      = 0x40
	statusHoming          = 0x80

	statusOpenMoving = 0x01
	statusOpenReady  = 0x04

	diagServoOn = 0x04
)

// DriverConfig describes one driver module on the chain.
type DriverConfig struct {
	Name       string
	Kind       axis.Kind
	LowerLimit float64
	UpperLimit float64
}

// driver is one module in the daisy chain. Commands address its current
// channel.
type driver struct {
	name string
	kind axis.Kind

	mu       sync.Mutex
	motors   map[string]*axis.Axis
	channels []string
	current  string
	enabled  bool
}

func newDriver(cfg DriverConfig, firstID int) *driver {
	d := &driver{
		name:   cfg.Name,
		kind:   cfg.Kind,
		motors: make(map[string]*axis.Axis),
	}

	channels := []string{closedLoopChannel}
	if cfg.Kind == axis.OpenLoop {
		channels = openLoopChannels
	}
	for i, ch := range channels {
		d.motors[ch] = axis.New(axis.Config{
			ID:            firstID + i,
			Name:          fmt.Sprintf("%s.M%s", cfg.Name, ch),
			Kind:          cfg.Kind,
			LowerLimit:    cfg.LowerLimit,
			UpperLimit:    cfg.UpperLimit,
			DeferredStart: true,
		})
	}
	d.channels = append([]string(nil), channels...)
	sort.Strings(d.channels)
	d.current = d.channels[0]
	return d
}

func (d *driver) motor() *axis.Axis {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.motors[d.current]
}

func (d *driver) channel(ch string) (*axis.Axis, bool) {
	m, ok := d.motors[ch]
	return m, ok
}

// selectChannel makes ch the addressed channel.
func (d *driver) selectChannel(ch string) (*axis.Axis, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.motors[ch]
	if ok {
		d.current = ch
	}
	return m, ok
}

func (d *driver) currentChannel() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *driver) setEnabled(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = on
}

// Enabled reports whether the motor driver is switched on.
func (d *driver) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

func (d *driver) tick(period time.Duration) {
	for _, ch := range d.channels {
		d.motors[ch].Tick(period)
	}
}

func (d *driver) status() int {
	s := d.motor().Snapshot()
	if d.kind == axis.OpenLoop {
		stat := statusOpenReady
		if s.Moving {
			stat |= statusOpenMoving
		}
		return stat
	}

	stat := statusClosedReady
	if !s.Moving {
		stat |= statusClosedNotMoving
	}
	if s.OnLowerLimit {
		stat |= statusLowerLimit
	}
	if s.OnUpperLimit {
		stat |= statusUpperLimit
	}
	if s.Homing {
		stat |= statusHoming
	}
	return stat
}

func (d *driver) diagnostic() int {
	if d.kind == axis.OpenLoop {
		return 0
	}
	if d.motor().Snapshot().ServoOn {
		return diagServoOn
	}
	return 0
}

// driverType is 1 for open-loop and 2 for closed-loop modules.
func (d *driver) driverType() int {
	if d.kind == axis.OpenLoop {
		return 1
	}
	return 2
}
