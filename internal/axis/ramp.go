package axis

import (
	"fmt"
	"math"
	"sync"
)

// Phase is the trapezoidal profile phase of a RampAxis.
type Phase int

const (
	PhaseStopped Phase = iota
	PhaseAccel
	PhaseConstVel
	PhaseDecel
)

func (p Phase) String() string {
	switch p {
	case PhaseStopped:
		return "STOP"
	case PhaseAccel:
		return "ACCEL"
	case PhaseConstVel:
		return "CONSTVEL"
	case PhaseDecel:
		return "DECEL"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// SubCounts is the number of readback units per motor count.
const SubCounts = 32

// StatusInPosition is bit 0 of the third status word.
const StatusInPosition = 0x1

// RampState is a point-in-time copy of a RampAxis.
type RampState struct {
	ID              int
	DemandPosition  float64
	Readback        float64
	CurrentVelocity float64
	Phase           Phase
	Status          [3]uint16
}

// InPosition reports the in-position status bit.
func (s RampState) InPosition() bool {
	return s.Status[2]&StatusInPosition != 0
}

// RampAxis is a motor driven by a trapezoidal velocity profile. Positions
// are in 1/SubCounts units; velocity is counts/s and acceleration counts/s².
type RampAxis struct {
	mu     sync.Mutex
	id     int
	demand float64
	rbk    float64
	vel    float64
	phase  Phase
	status [3]uint16
}

// NewRampAxis returns a stopped, in-position motor at zero.
func NewRampAxis(id int) *RampAxis {
	r := &RampAxis{id: id}
	r.status[2] |= StatusInPosition
	return r
}

// ID returns the motor number.
func (r *RampAxis) ID() int { return r.id }

// SetDemandPosition starts a move to pos.
func (r *RampAxis) SetDemandPosition(pos float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.demand = pos
	r.status[2] &^= StatusInPosition
	r.phase = PhaseAccel
}

// Readback returns the current position.
func (r *RampAxis) Readback() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rbk
}

// Stop makes the current position the demand and halts.
func (r *RampAxis) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.demand = r.rbk
	r.vel = 0
	r.phase = PhaseStopped
}

// Status formats the three status words as twelve hex digits.
func (r *RampAxis) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("%.4x%.4x%.4x", r.status[0], r.status[1], r.status[2])
}

// Snapshot returns a copy of the current state.
func (r *RampAxis) Snapshot() RampState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RampState{
		ID:              r.id,
		DemandPosition:  r.demand,
		Readback:        r.rbk,
		CurrentVelocity: r.vel,
		Phase:           r.phase,
		Status:          r.status,
	}
}

// Step advances the profile by one update at rate Hz using the demanded
// velocity and acceleration.
func (r *RampAxis) Step(demandVel, demandAcc, rate float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status[2]&StatusInPosition != 0 || rate <= 0 {
		return
	}

	switch r.phase {
	case PhaseStopped:
		r.settle()
		return
	case PhaseAccel:
		r.vel += demandAcc / rate
		if r.vel >= demandVel {
			r.vel = demandVel
			r.phase = PhaseConstVel
		}
	case PhaseDecel:
		r.vel -= demandAcc / rate
		// The readback stays where the profile left it, short of the
		// demand if the deceleration ran out first.
		if r.vel <= 0 {
			r.settle()
			return
		}
	}

	step := r.vel * SubCounts / rate
	remaining := r.demand - r.rbk
	switch {
	case remaining > 0:
		r.rbk += math.Min(step, remaining)
	case remaining < 0:
		r.rbk -= math.Min(step, -remaining)
	}
	if r.rbk == r.demand {
		r.settle()
		return
	}

	accDist, decDist := 1.0, 1.0
	if demandAcc != 0 && demandVel != 0 {
		accDist = demandVel * demandVel / (2 * demandAcc)
		decDist = r.vel * r.vel / (2 * demandAcc)
	}

	if r.phase != PhaseDecel {
		left := math.Abs(r.rbk - r.demand)
		if left <= accDist*SubCounts && left <= decDist*SubCounts {
			r.phase = PhaseDecel
		}
	}
}

func (r *RampAxis) settle() {
	r.vel = 0
	r.phase = PhaseStopped
	r.status[2] |= StatusInPosition
}
