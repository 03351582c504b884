package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Simulator{},
	&Command{},
	&AxisSample{},
}

////////////////////////
// SESSION MODELS
////////////////////////

// Session is one run of the simulator process
type Session struct {
	ID         uint        `json:"id" gorm:"primarykey"`
	CreatedAt  time.Time   `json:"createdAt"`
	StartTime  time.Time   `json:"startTime" gorm:"type:timestamptz;NOT NULL;index:idx_session_start_time"`
	EndTime    *time.Time  `json:"endTime" gorm:"type:timestamptz"`
	Version    string      `json:"version" gorm:"size:32"`
	Hostname   string      `json:"hostname" gorm:"size:128"`
	Simulators []Simulator `json:"simulators" gorm:"foreignkey:SessionID"`
}

func (*Session) TableName() string {
	return "sessions"
}

// Simulator is a controller configured for a session
type Simulator struct {
	ID        uint   `json:"id" gorm:"primarykey"`
	SessionID uint   `json:"sessionId" gorm:"index:idx_simulator_session_id"`
	Name      string `json:"name" gorm:"size:64"`
	Vendor    string `json:"vendor" gorm:"size:16"`
	Model     string `json:"model" gorm:"size:16"`
	Transport string `json:"transport" gorm:"size:16"`
	Endpoint  string `json:"endpoint" gorm:"size:255"`
	AxisCount int    `json:"axisCount"`
}

func (*Simulator) TableName() string {
	return "simulators"
}

////////////////////////
// JOURNAL
////////////////////////

// Command is one journaled request/reply exchange
type Command struct {
	ID         uint           `json:"id" gorm:"primarykey"`
	SessionID  uint           `json:"sessionId" gorm:"index:idx_command_session_id"`
	Time       time.Time      `json:"time" gorm:"type:timestamptz;NOT NULL;index:idx_command_time"`
	Controller string         `json:"controller" gorm:"size:64;index:idx_command_controller"`
	Vendor     string         `json:"vendor" gorm:"size:16"`
	Raw        string         `json:"raw" gorm:"size:255"`
	Keyword    string         `json:"keyword" gorm:"size:16;index:idx_command_keyword"`
	Params     datatypes.JSON `json:"params" gorm:"type:jsonb;default:'[]'"`
	Reply      string         `json:"reply"`
	Outcome    string         `json:"outcome" gorm:"size:16"`
	Error      string         `json:"error" gorm:"default:NULL"`
	DurationNs int64          `json:"durationNs"`
}

func (*Command) TableName() string {
	return "commands"
}

// AxisSample is a periodic sample of one axis
type AxisSample struct {
	ID           uint      `json:"id" gorm:"primarykey"`
	SessionID    uint      `json:"sessionId" gorm:"index:idx_axissample_session_id"`
	Time         time.Time `json:"time" gorm:"type:timestamptz;NOT NULL;index:idx_axissample_time"`
	Controller   string    `json:"controller" gorm:"size:64"`
	Axis         string    `json:"axis" gorm:"size:32"`
	Kind         string    `json:"kind" gorm:"size:16"`
	Position     float64   `json:"position"`
	Command      float64   `json:"command"`
	Velocity     float64   `json:"velocity"`
	Moving       bool      `json:"moving"`
	OnLowerLimit bool      `json:"onLowerLimit"`
	OnUpperLimit bool      `json:"onUpperLimit"`
	Homed        bool      `json:"homed"`
	Homing       bool      `json:"homing"`
	ServoOn      bool      `json:"servoOn"`
	Phase        string    `json:"phase" gorm:"size:16"`
	InPosition   bool      `json:"inPosition"`
}

func (*AxisSample) TableName() string {
	return "axis_samples"
}

////////////////////////
// RETRIEVAL
////////////////////////

// CommandsForSession returns a session's journal in time order.
func CommandsForSession(db *gorm.DB, sessionID uint) ([]Command, error) {
	var out []Command
	err := db.Where("session_id = ?", sessionID).Order("time ASC, id ASC").Find(&out).Error
	return out, err
}

// LatestSession returns the most recently started session.
func LatestSession(db *gorm.DB) (Session, error) {
	var s Session
	err := db.Preload("Simulators").Order("start_time DESC").First(&s).Error
	return s, err
}

// SamplesForSession returns a session's axis samples in time order.
func SamplesForSession(db *gorm.DB, sessionID uint) ([]AxisSample, error) {
	var out []AxisSample
	err := db.Where("session_id = ?", sessionID).Order("time ASC, id ASC").Find(&out).Error
	return out, err
}

// SessionByID loads one session with its simulators.
func SessionByID(db *gorm.DB, id uint) (Session, error) {
	var s Session
	err := db.Preload("Simulators").First(&s, id).Error
	return s, err
}

// Sessions lists all sessions, newest first.
func Sessions(db *gorm.DB) ([]Session, error) {
	var out []Session
	err := db.Preload("Simulators").Order("start_time DESC").Find(&out).Error
	return out, err
}
