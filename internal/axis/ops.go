package axis

// operations is the per-kind behaviour table. Kind-specific differences live
// here instead of in separate axis types.
type operations struct {
	moveAbsolute           func(s *State, pos float64)
	moveRelative           func(s *State, delta float64)
	setPosition            func(s *State, pos float64)
	searchForNegativeLimit func(s *State)
	limits                 bool
}

var opTable = [...]operations{
	ClosedLoop: {
		moveAbsolute: func(s *State, pos float64) {
			if s.ServoOn {
				s.CommandPosition = pos
				return
			}
			s.CommandPosition += openLoopStep(pos)
		},
		moveRelative: func(s *State, delta float64) {
			if s.ServoOn {
				s.CommandPosition += delta
				return
			}
			s.CommandPosition += openLoopStep(delta)
		},
		setPosition: func(s *State, pos float64) {
			s.CurrentPosition = pos
		},
		searchForNegativeLimit: func(s *State) {
			s.Homing = true
			s.Homed = false
			s.SearchQueue = []SearchStep{StepLowLimitOff, StepLowLimitOn, StepLowLimitOff}
			s.ActiveSearch = ""
			s.Moving = false
			s.JogForward = false
			s.JogBackward = false
			handleSearchSequence(s)
		},
		limits: true,
	},
	OpenLoop: {
		moveAbsolute: func(s *State, pos float64) {
			s.CommandPosition += pos
		},
		moveRelative: func(s *State, delta float64) {
			s.CommandPosition += delta
		},
		setPosition:            func(*State, float64) {},
		searchForNegativeLimit: func(*State) {},
	},
}

func opsFor(k Kind) *operations {
	if int(k) < 0 || int(k) >= len(opTable) {
		return &opTable[ClosedLoop]
	}
	return &opTable[k]
}

// Servo-off deltas are clamped to one byte of travel and scaled to the
// coarse step resolution. The scaling floors like the controller's integer
// division, so negative deltas round away from zero.
const (
	openLoopClamp = 255
	openLoopNum   = 85
	openLoopDen   = 1000
)

func openLoopStep(delta float64) float64 {
	d := int64(delta)
	if d > openLoopClamp {
		d = openLoopClamp
	} else if d < -openLoopClamp {
		d = -openLoopClamp
	}
	n := d * openLoopNum
	q := n / openLoopDen
	if n%openLoopDen != 0 && n < 0 {
		q--
	}
	return float64(q)
}
