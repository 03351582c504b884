// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/motorsim/motorsim/pkg/core"
)

// TranscriptExport is the root JSON structure
type TranscriptExport struct {
	Version    string               `json:"version"`
	Hostname   string               `json:"hostname,omitempty"`
	StartTime  time.Time            `json:"startTime"`
	EndTime    time.Time            `json:"endTime"`
	Simulators []core.SimulatorInfo `json:"simulators"`
	Commands   []CommandJSON        `json:"commands"`
	Axes       []AxisJSON           `json:"axes"`
}

// CommandJSON is one exchange, timed from the session start
type CommandJSON struct {
	OffsetMs   int64    `json:"offsetMs"`
	Controller string   `json:"controller"`
	Raw        string   `json:"raw"`
	Keyword    string   `json:"keyword"`
	Params     []string `json:"params,omitempty"`
	Reply      string   `json:"reply,omitempty"`
	Outcome    string   `json:"outcome"`
	Error      string   `json:"error,omitempty"`
}

// AxisJSON is one axis track. Each sample is
// [offsetMs, position, command, velocity, moving, onLowerLimit, onUpperLimit, homed].
type AxisJSON struct {
	Controller string  `json:"controller"`
	Axis       string  `json:"axis"`
	Kind       string  `json:"kind"`
	Samples    [][]any `json:"samples"`
}

// exportJSON writes the journal to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	timestamp := b.session.StartTime.Format("20060102_150405")
	name := "session"
	if h := strings.TrimSpace(b.session.Hostname); h != "" {
		name = strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(h)
	}

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", name, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", name, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := b.writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := b.writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() TranscriptExport {
	start := b.session.StartTime
	export := TranscriptExport{
		Version:    b.session.Version,
		Hostname:   b.session.Hostname,
		StartTime:  start,
		EndTime:    b.endTime,
		Simulators: b.session.Simulators,
		Commands:   make([]CommandJSON, 0, len(b.commands)),
		Axes:       make([]AxisJSON, 0, len(b.axes)),
	}

	for _, c := range b.commands {
		export.Commands = append(export.Commands, CommandJSON{
			OffsetMs:   c.Time.Sub(start).Milliseconds(),
			Controller: c.Controller,
			Raw:        c.Raw,
			Keyword:    c.Keyword,
			Params:     c.Params,
			Reply:      c.Reply,
			Outcome:    c.Outcome,
			Error:      c.Error,
		})
	}

	for _, rec := range b.axes {
		track := AxisJSON{
			Controller: rec.Controller,
			Axis:       rec.Axis,
			Kind:       rec.Kind,
			Samples:    make([][]any, 0, len(rec.States)),
		}
		for _, s := range rec.States {
			track.Samples = append(track.Samples, []any{
				s.Time.Sub(start).Milliseconds(),
				s.Position,
				s.Command,
				s.Velocity,
				boolToInt(s.Moving),
				boolToInt(s.OnLowerLimit),
				boolToInt(s.OnUpperLimit),
				boolToInt(s.Homed),
			})
		}
		export.Axes = append(export.Axes, track)
	}
	sort.Slice(export.Axes, func(i, j int) bool {
		if export.Axes[i].Controller != export.Axes[j].Controller {
			return export.Axes[i].Controller < export.Axes[j].Controller
		}
		return export.Axes[i].Axis < export.Axes[j].Axis
	})

	return export
}

func (b *Backend) writeJSON(path string, data TranscriptExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func (b *Backend) writeGzipJSON(path string, data TranscriptExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
