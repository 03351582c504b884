// pkg/core/axis.go
package core

import "time"

// AxisState is a sampled view of one simulated axis. Ramp-driven motors fill
// Phase and InPosition; limit-switch axes fill the limit and homing flags.
type AxisState struct {
	Time         time.Time `json:"time"`
	Controller   string    `json:"controller"`
	Axis         string    `json:"axis"`
	Kind         string    `json:"kind"`
	Position     float64   `json:"position"`
	Command      float64   `json:"command"`
	Velocity     float64   `json:"velocity"`
	Moving       bool      `json:"moving"`
	OnLowerLimit bool      `json:"onLowerLimit"`
	OnUpperLimit bool      `json:"onUpperLimit"`
	Homed        bool      `json:"homed"`
	Homing       bool      `json:"homing"`
	ServoOn      bool      `json:"servoOn"`
	Phase        string    `json:"phase,omitempty"`
	InPosition   bool      `json:"inPosition"`
}
