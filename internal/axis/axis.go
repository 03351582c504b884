// Package axis models a single simulated motion axis: its intent (command
// position, jog flags, search requests) and the periodic physics tick that
// moves it toward that intent.
package axis

import (
	"fmt"
	"sync"
	"time"
)

// Kind selects the addressing mode of an axis.
type Kind int

const (
	// ClosedLoop axes have limit switches, a homing sequence and a servo
	// flag that switches position deltas to coarse open-loop steps when off.
	ClosedLoop Kind = iota
	// OpenLoop axes have no limits; absolute moves are applied as relative
	// and position set/search requests are ignored.
	OpenLoop
)

func (k Kind) String() string {
	switch k {
	case ClosedLoop:
		return "closed"
	case OpenLoop:
		return "open"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a configuration string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "closed", "closedloop", "closed-loop":
		return ClosedLoop, nil
	case "open", "openloop", "open-loop":
		return OpenLoop, nil
	default:
		return 0, fmt.Errorf("unknown axis kind: %q", s)
	}
}

const (
	DefaultVelocity               = 1000
	DefaultAcceleration           = 100
	DefaultLowerLimit             = 0
	DefaultUpperLimit             = 1000
	DefaultMinimumProfileVelocity = 8
)

// Config holds the construction parameters of an axis.
type Config struct {
	ID                     int
	Name                   string
	Kind                   Kind
	LowerLimit             float64
	UpperLimit             float64
	ServoOn                bool
	Velocity               float64
	Acceleration           float64
	MinimumProfileVelocity float64

	// DeferredStart makes moves and jogs record intent only; motion begins
	// on Go.
	DeferredStart bool
}

// State is a point-in-time copy of an axis.
type State struct {
	ID                     int
	Name                   string
	Kind                   Kind
	CurrentPosition        float64
	CommandPosition        float64
	Velocity               float64
	Acceleration           float64
	MinimumProfileVelocity float64
	Moving                 bool
	JogForward             bool
	JogBackward            bool
	LowerLimit             float64
	UpperLimit             float64
	OnLowerLimit           bool
	OnUpperLimit           bool
	Homed                  bool
	Homing                 bool
	ServoOn                bool
	SearchQueue            []SearchStep
	ActiveSearch           SearchStep
}

// Jogging reports whether either jog direction is latched.
func (s *State) Jogging() bool {
	return s.JogForward || s.JogBackward
}

// Axis is safe for concurrent use by command dispatch and the scheduler.
type Axis struct {
	mu            sync.Mutex
	ops           *operations
	deferredStart bool
	s             State
}

// New creates an axis from cfg. Zero velocity or acceleration take the
// hardware defaults; equal zero limits take the default travel range.
func New(cfg Config) *Axis {
	if cfg.Velocity == 0 {
		cfg.Velocity = DefaultVelocity
	}
	if cfg.Acceleration == 0 {
		cfg.Acceleration = DefaultAcceleration
	}
	if cfg.LowerLimit == 0 && cfg.UpperLimit == 0 {
		cfg.LowerLimit = DefaultLowerLimit
		cfg.UpperLimit = DefaultUpperLimit
	}
	if cfg.MinimumProfileVelocity == 0 {
		cfg.MinimumProfileVelocity = DefaultMinimumProfileVelocity
	}
	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("%d", cfg.ID)
	}

	a := &Axis{
		ops:           opsFor(cfg.Kind),
		deferredStart: cfg.DeferredStart,
		s: State{
			ID:                     cfg.ID,
			Name:                   cfg.Name,
			Kind:                   cfg.Kind,
			Velocity:               cfg.Velocity,
			Acceleration:           cfg.Acceleration,
			MinimumProfileVelocity: cfg.MinimumProfileVelocity,
			LowerLimit:             cfg.LowerLimit,
			UpperLimit:             cfg.UpperLimit,
			ServoOn:                cfg.ServoOn,
		},
	}
	if a.ops.limits {
		clampToLimits(&a.s)
	}
	return a
}

// ID returns the axis number.
func (a *Axis) ID() int { return a.s.ID }

// Name returns the axis label.
func (a *Axis) Name() string { return a.s.Name }

// Kind returns the addressing mode.
func (a *Axis) Kind() Kind { return a.s.Kind }

// Snapshot returns a copy of the current state.
func (a *Axis) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.s
	s.SearchQueue = append([]SearchStep(nil), a.s.SearchQueue...)
	return s
}

// MoveAbsolute sets a new target position.
func (a *Axis) MoveAbsolute(pos float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ops.moveAbsolute(&a.s, pos)
	a.startMove()
}

// MoveRelative offsets the target position by delta.
func (a *Axis) MoveRelative(delta float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ops.moveRelative(&a.s, delta)
	a.startMove()
}

func (a *Axis) startMove() {
	a.s.JogForward = false
	a.s.JogBackward = false
	if !a.deferredStart {
		a.s.Moving = true
	}
}

// JogForward latches continuous motion in the positive direction.
func (a *Axis) JogForward() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.s.JogForward = true
	a.s.JogBackward = false
	if !a.deferredStart {
		a.s.Moving = true
	}
}

// JogBackward latches continuous motion in the negative direction.
func (a *Axis) JogBackward() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.s.JogForward = false
	a.s.JogBackward = true
	if !a.deferredStart {
		a.s.Moving = true
	}
}

// Go starts motion toward the recorded intent.
func (a *Axis) Go() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.s.Moving = true
}

// Stop halts motion and abandons any search in progress. Jog flags are left
// as they are so that stopping an idle axis changes nothing.
func (a *Axis) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.s.Moving = false
	a.s.SearchQueue = nil
	a.s.ActiveSearch = ""
	a.s.Homing = false
}

// SearchForNegativeLimit starts the homing sequence.
func (a *Axis) SearchForNegativeLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ops.searchForNegativeLimit(&a.s)
}

// SetVelocity sets the travel speed in counts per second.
func (a *Axis) SetVelocity(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.s.Velocity = v
}

// SetAcceleration sets the acceleration. The simple model stores it for
// read-back only.
func (a *Axis) SetAcceleration(acc float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.s.Acceleration = acc
}

// SetMinimumProfileVelocity sets the open-loop minimum profile velocity.
func (a *Axis) SetMinimumProfileVelocity(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.s.MinimumProfileVelocity = v
}

// EnableClosedLoop turns the servo on.
func (a *Axis) EnableClosedLoop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.s.ServoOn = true
}

// DisableClosedLoop turns the servo off.
func (a *Axis) DisableClosedLoop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.s.ServoOn = false
}

// SetPosition redefines the current position.
func (a *Axis) SetPosition(pos float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ops.setPosition(&a.s, pos)
	if a.ops.limits {
		clampToLimits(&a.s)
	}
}

// SetLimits replaces the soft travel range.
func (a *Axis) SetLimits(lower, upper float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.s.LowerLimit = lower
	a.s.UpperLimit = upper
	if a.ops.limits {
		clampToLimits(&a.s)
	}
}

// Tick advances the axis by one servo period.
func (a *Axis) Tick(period time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := &a.s
	if !s.Moving {
		if a.ops.limits {
			clampToLimits(s)
		}
		return
	}

	forward := s.JogForward || (s.CommandPosition >= s.CurrentPosition && !s.JogBackward)
	delta := s.Velocity * period.Seconds()
	if !forward {
		delta = -delta
	}
	s.CurrentPosition += delta

	if !s.Jogging() {
		if (forward && s.CurrentPosition >= s.CommandPosition) ||
			(!forward && s.CurrentPosition <= s.CommandPosition) {
			s.CurrentPosition = s.CommandPosition
			s.Moving = false
		}
	}

	if a.ops.limits {
		checkLimits(s)
		advanceSearch(s)
	}
}

func checkLimits(s *State) {
	s.OnLowerLimit = false
	s.OnUpperLimit = false
	switch {
	case s.CurrentPosition >= s.UpperLimit:
		s.CurrentPosition = s.UpperLimit
		s.OnUpperLimit = true
		s.Moving = false
	case s.CurrentPosition <= s.LowerLimit:
		s.CurrentPosition = s.LowerLimit
		s.OnLowerLimit = true
		s.Moving = false
	}
}

// clampToLimits pulls a position lying outside the travel range back onto
// the nearest limit and raises its flag. Positions inside the range are
// left alone along with their flags.
func clampToLimits(s *State) {
	switch {
	case s.CurrentPosition > s.UpperLimit:
		s.CurrentPosition = s.UpperLimit
		s.OnUpperLimit = true
		s.OnLowerLimit = false
		s.Moving = false
	case s.CurrentPosition < s.LowerLimit:
		s.CurrentPosition = s.LowerLimit
		s.OnLowerLimit = true
		s.OnUpperLimit = false
		s.Moving = false
	}
}
