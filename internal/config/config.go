package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "motorsim.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the in-memory SQLite backend
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// StorageConfig selects and configures the journal backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// OTelConfig holds OpenTelemetry log export settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// SerialConfig names a serial device to serve a simulator on
type SerialConfig struct {
	Device string `json:"device" mapstructure:"device"`
	Baud   int    `json:"baud" mapstructure:"baud"`
}

// BufferConfig names the file mapped as a shared command buffer. An empty
// path keeps the buffer in process memory.
type BufferConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// AxisConfig overrides the defaults of one axis or driver module
type AxisConfig struct {
	ID           int      `json:"id" mapstructure:"id"`
	Name         string   `json:"name" mapstructure:"name"`
	Kind         string   `json:"kind" mapstructure:"kind"`
	LowerLimit   *float64 `json:"lowerLimit" mapstructure:"lowerLimit"`
	UpperLimit   *float64 `json:"upperLimit" mapstructure:"upperLimit"`
	ServoOn      *bool    `json:"servoOn" mapstructure:"servoOn"`
	Velocity     float64  `json:"velocity" mapstructure:"velocity"`
	Acceleration float64  `json:"acceleration" mapstructure:"acceleration"`
}

// SimulatorConfig describes one simulated controller and where it is served
type SimulatorConfig struct {
	Name   string       `json:"name" mapstructure:"name"`
	Vendor string       `json:"vendor" mapstructure:"vendor"`
	Model  string       `json:"model" mapstructure:"model"`
	Listen string       `json:"listen" mapstructure:"listen"`
	Serial SerialConfig `json:"serial" mapstructure:"serial"`
	Buffer BufferConfig `json:"buffer" mapstructure:"buffer"`
	Axes   []AxisConfig `json:"axes" mapstructure:"axes"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetEnvPrefix("MOTORSIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./simlogs")

	viper.SetDefault("servoPeriod", "100ms")
	viper.SetDefault("rampPeriod", "10ms")
	viper.SetDefault("pollPeriod", "1ms")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./transcripts")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "1m")
	viper.SetDefault("storage.sqlite.dumpPath", "./simlogs/motorsim.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "motorsim")

	viper.SetDefault("websocket.url", "ws://localhost:5000/api")
	viper.SetDefault("websocket.secret", "")

	viper.SetDefault("api.serverUrl", "")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "motorsim")
	viper.SetDefault("influx.bucket", "motorsim-axes")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("status.enabled", true)
	viper.SetDefault("status.address", "127.0.0.1:8088")

	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.statusFile", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "motorsim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
	}
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// Simulators decodes the simulators list. Every entry needs a name and a
// known vendor, and names must be unique.
func Simulators() ([]SimulatorConfig, error) {
	var sims []SimulatorConfig
	if err := viper.UnmarshalKey("simulators", &sims); err != nil {
		return nil, fmt.Errorf("error decoding simulators: %w", err)
	}

	seen := make(map[string]bool, len(sims))
	for i := range sims {
		s := &sims[i]
		s.Vendor = strings.ToLower(strings.TrimSpace(s.Vendor))
		if s.Name == "" {
			return nil, fmt.Errorf("simulator %d has no name", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate simulator name %q", s.Name)
		}
		seen[s.Name] = true
		switch s.Vendor {
		case "kohzu", "newfocus", "pmac":
		default:
			return nil, fmt.Errorf("simulator %q: unknown vendor %q", s.Name, s.Vendor)
		}
	}
	return sims, nil
}
