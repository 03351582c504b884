package axis

// SearchStep is one leg of a limit search.
type SearchStep string

const (
	// StepLowLimitOff jogs forward until the lower limit switch clears.
	StepLowLimitOff SearchStep = "lowLimitOff"
	// StepLowLimitOn jogs backward until the lower limit switch trips.
	StepLowLimitOn SearchStep = "lowLimitOn"
)

// advanceSearch completes the active step once its limit condition holds.
// Called after each positional update.
func advanceSearch(s *State) {
	done := false
	switch s.ActiveSearch {
	case StepLowLimitOff:
		done = !s.OnLowerLimit
	case StepLowLimitOn:
		done = s.OnLowerLimit
	}
	if !done {
		return
	}

	s.JogForward = false
	s.JogBackward = false
	s.Moving = false
	s.ActiveSearch = ""
	handleSearchSequence(s)
}

// handleSearchSequence pops the next step off the queue once the axis has
// settled. Unknown steps are skipped. An exhausted queue finishes homing.
func handleSearchSequence(s *State) {
	if s.Moving {
		return
	}

	for len(s.SearchQueue) > 0 && s.ActiveSearch == "" {
		step := s.SearchQueue[0]
		s.SearchQueue = s.SearchQueue[1:]

		switch step {
		case StepLowLimitOff:
			s.ActiveSearch = step
			s.JogForward = true
			s.JogBackward = false
			s.Moving = true
		case StepLowLimitOn:
			s.ActiveSearch = step
			s.JogForward = false
			s.JogBackward = true
			s.Moving = true
		}
	}

	if s.ActiveSearch == "" && s.Homing {
		s.Homed = true
		s.Homing = false
	}
}
