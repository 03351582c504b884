// pkg/core/command.go
package core

import "time"

// Command outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
)

// CommandRecord is one request/reply exchange with a simulated controller
type CommandRecord struct {
	ID         uint          `json:"id"`
	Time       time.Time     `json:"time"`
	Controller string        `json:"controller"`
	Vendor     string        `json:"vendor"`
	Raw        string        `json:"raw"`
	Keyword    string        `json:"keyword"`
	Params     []string      `json:"params"`
	Reply      string        `json:"reply"`
	Outcome    string        `json:"outcome"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"durationNs"`
}
