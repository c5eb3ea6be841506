package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main drawerq configuration
type Config struct {
	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Drawer queue behavior
	Queue QueueConfig `json:"queue" mapstructure:"queue"`

	// Gateway configuration
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Terminal demo renderer
	Demo DemoConfig `json:"demo" mapstructure:"demo"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// QueueConfig holds drawer queue options
type QueueConfig struct {
	// Strict panics on any invariant violation.
	Strict bool `json:"strict" mapstructure:"strict"`
	// RefCountedLock requires one unlock per lock.
	RefCountedLock bool `json:"ref_counted_lock" mapstructure:"ref_counted_lock"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Port         int    `json:"port" mapstructure:"port"`
	Host         string `json:"host" mapstructure:"host"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
	TickInterval int    `json:"tick_interval" mapstructure:"tick_interval"` // milliseconds, 0 disables
	AuditLog     string `json:"audit_log" mapstructure:"audit_log"`
}

// DemoConfig holds terminal renderer settings
type DemoConfig struct {
	ExitTransitionMs int      `json:"exit_transition_ms" mapstructure:"exit_transition_ms"`
	Routes           []string `json:"routes" mapstructure:"routes"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
		Queue: QueueConfig{
			Strict:         false,
			RefCountedLock: false,
		},
		Gateway: GatewayConfig{
			Port:         8787,
			Host:         "127.0.0.1",
			SharedSecret: "",
			TickInterval: 30000,
		},
		Demo: DemoConfig{
			ExitTransitionMs: 300,
			Routes:           []string{"main", "screen1", "empty"},
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "drawerq",
			SampleRatio: 1,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Port 0 binds a free port.
	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("invalid gateway port: %d", c.Gateway.Port)
	}
	if c.Gateway.Host == "" {
		return fmt.Errorf("gateway host is required")
	}
	if c.Gateway.TickInterval < 0 {
		return fmt.Errorf("gateway tick_interval cannot be negative")
	}
	if c.Demo.ExitTransitionMs < 0 {
		return fmt.Errorf("demo exit_transition_ms cannot be negative")
	}
	if len(c.Demo.Routes) == 0 {
		return fmt.Errorf("demo needs at least one route")
	}
	if c.Tracing.Enabled && c.Tracing.ServiceName == "" {
		return fmt.Errorf("tracing service_name is required when tracing is enabled")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample_ratio must be between 0 and 1")
	}

	if err := NewValidator().ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}

	return nil
}
