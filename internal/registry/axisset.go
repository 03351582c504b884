package registry

import (
	"fmt"
	"sort"
	"time"

	"github.com/motorsim/motorsim/internal/axis"
	"github.com/motorsim/motorsim/pkg/core"
)

// AxisSet is a fixed collection of axes kept in ascending id order. Every
// broadcast reply and every tick walks the axes in that order.
type AxisSet struct {
	axes []*axis.Axis
	byID map[int]*axis.Axis
}

// NewAxisSet sorts axes by id. Duplicate ids are rejected.
func NewAxisSet(axes ...*axis.Axis) (*AxisSet, error) {
	s := &AxisSet{
		axes: make([]*axis.Axis, 0, len(axes)),
		byID: make(map[int]*axis.Axis, len(axes)),
	}
	for _, a := range axes {
		if _, dup := s.byID[a.ID()]; dup {
			return nil, fmt.Errorf("duplicate axis id %d", a.ID())
		}
		s.byID[a.ID()] = a
		s.axes = append(s.axes, a)
	}
	sort.Slice(s.axes, func(i, j int) bool { return s.axes[i].ID() < s.axes[j].ID() })
	return s, nil
}

// Get returns the axis with the given id.
func (s *AxisSet) Get(id int) (*axis.Axis, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// All returns the axes in ascending id order.
func (s *AxisSet) All() []*axis.Axis {
	return append([]*axis.Axis(nil), s.axes...)
}

// Len returns the number of axes.
func (s *AxisSet) Len() int {
	return len(s.axes)
}

// Tick advances every axis by one period.
func (s *AxisSet) Tick(period time.Duration) {
	for _, a := range s.axes {
		a.Tick(period)
	}
}

// States samples every axis for the named controller.
func (s *AxisSet) States(controller string, now time.Time) []core.AxisState {
	out := make([]core.AxisState, 0, len(s.axes))
	for _, a := range s.axes {
		out = append(out, AxisState(controller, a.Snapshot(), now))
	}
	return out
}

// AxisState converts an axis snapshot to its wire form.
func AxisState(controller string, s axis.State, now time.Time) core.AxisState {
	return core.AxisState{
		Time:         now,
		Controller:   controller,
		Axis:         s.Name,
		Kind:         s.Kind.String(),
		Position:     s.CurrentPosition,
		Command:      s.CommandPosition,
		Velocity:     s.Velocity,
		Moving:       s.Moving,
		OnLowerLimit: s.OnLowerLimit,
		OnUpperLimit: s.OnUpperLimit,
		Homed:        s.Homed,
		Homing:       s.Homing,
		ServoOn:      s.ServoOn,
		InPosition:   !s.Moving,
	}
}
