// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"time"

	"github.com/motorsim/motorsim/internal/model"
	"github.com/motorsim/motorsim/pkg/core"
	"gorm.io/datatypes"
)

// paramsToJSON converts a []string to datatypes.JSON for DB storage.
func paramsToJSON(params []string) datatypes.JSON {
	if len(params) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(params)
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.Session.
func CoreToSession(s core.Session) model.Session {
	sims := make([]model.Simulator, 0, len(s.Simulators))
	for _, info := range s.Simulators {
		sims = append(sims, model.Simulator{
			SessionID: s.ID,
			Name:      info.Name,
			Vendor:    info.Vendor,
			Model:     info.Model,
			Transport: info.Transport,
			Endpoint:  info.Endpoint,
			AxisCount: info.AxisCount,
		})
	}
	return model.Session{
		ID:         s.ID,
		StartTime:  s.StartTime,
		Version:    s.Version,
		Hostname:   s.Hostname,
		Simulators: sims,
	}
}

// SessionToCore converts a GORM model.Session to a core.Session.
func SessionToCore(s model.Session) core.Session {
	sims := make([]core.SimulatorInfo, 0, len(s.Simulators))
	for _, m := range s.Simulators {
		sims = append(sims, core.SimulatorInfo{
			Name:      m.Name,
			Vendor:    m.Vendor,
			Model:     m.Model,
			Transport: m.Transport,
			Endpoint:  m.Endpoint,
			AxisCount: m.AxisCount,
		})
	}
	return core.Session{
		ID:         s.ID,
		StartTime:  s.StartTime,
		Version:    s.Version,
		Hostname:   s.Hostname,
		Simulators: sims,
	}
}

// CoreToCommand converts a core.CommandRecord to a GORM model.Command.
func CoreToCommand(r core.CommandRecord) model.Command {
	return model.Command{
		ID:         r.ID,
		Time:       r.Time,
		Controller: r.Controller,
		Vendor:     r.Vendor,
		Raw:        r.Raw,
		Keyword:    r.Keyword,
		Params:     paramsToJSON(r.Params),
		Reply:      r.Reply,
		Outcome:    r.Outcome,
		Error:      r.Error,
		DurationNs: r.Duration.Nanoseconds(),
	}
}

// CommandToCore converts a GORM model.Command to a core.CommandRecord.
func CommandToCore(c model.Command) core.CommandRecord {
	var params []string
	if len(c.Params) > 0 {
		_ = json.Unmarshal(c.Params, &params)
	}
	return core.CommandRecord{
		ID:         c.ID,
		Time:       c.Time,
		Controller: c.Controller,
		Vendor:     c.Vendor,
		Raw:        c.Raw,
		Keyword:    c.Keyword,
		Params:     params,
		Reply:      c.Reply,
		Outcome:    c.Outcome,
		Error:      c.Error,
		Duration:   time.Duration(c.DurationNs),
	}
}

// CoreToAxisSample converts a core.AxisState to a GORM model.AxisSample.
func CoreToAxisSample(s core.AxisState) model.AxisSample {
	return model.AxisSample{
		Time:         s.Time,
		Controller:   s.Controller,
		Axis:         s.Axis,
		Kind:         s.Kind,
		Position:     s.Position,
		Command:      s.Command,
		Velocity:     s.Velocity,
		Moving:       s.Moving,
		OnLowerLimit: s.OnLowerLimit,
		OnUpperLimit: s.OnUpperLimit,
		Homed:        s.Homed,
		Homing:       s.Homing,
		ServoOn:      s.ServoOn,
		Phase:        s.Phase,
		InPosition:   s.InPosition,
	}
}

// AxisSampleToCore converts a GORM model.AxisSample to a core.AxisState.
func AxisSampleToCore(m model.AxisSample) core.AxisState {
	return core.AxisState{
		Time:         m.Time,
		Controller:   m.Controller,
		Axis:         m.Axis,
		Kind:         m.Kind,
		Position:     m.Position,
		Command:      m.Command,
		Velocity:     m.Velocity,
		Moving:       m.Moving,
		OnLowerLimit: m.OnLowerLimit,
		OnUpperLimit: m.OnUpperLimit,
		Homed:        m.Homed,
		Homing:       m.Homing,
		ServoOn:      m.ServoOn,
		Phase:        m.Phase,
		InPosition:   m.InPosition,
	}
}
