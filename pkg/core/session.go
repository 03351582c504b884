// pkg/core/session.go
package core

import "time"

// SimulatorInfo describes one configured controller simulator.
type SimulatorInfo struct {
	Name      string `json:"name"`
	Vendor    string `json:"vendor"`
	Model     string `json:"model,omitempty"`
	Transport string `json:"transport"`
	Endpoint  string `json:"endpoint"`
	AxisCount int    `json:"axisCount"`
}

// Session represents one run of the simulator process
type Session struct {
	ID         uint            `json:"id"`
	StartTime  time.Time       `json:"startTime"`
	Version    string          `json:"version"`
	Hostname   string          `json:"hostname,omitempty"`
	Simulators []SimulatorInfo `json:"simulators"`
}
