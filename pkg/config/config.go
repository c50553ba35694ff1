package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
	Sim    SimConfig    `yaml:"sim"`
	NATS   NATSConfig   `yaml:"nats"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Trace    bool        `yaml:"trace"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address        string `yaml:"address"`
	MaxConnections int    `yaml:"max_connections"` // 0 = unlimited
}

// SimConfig holds settings for the simulator connection.
type SimConfig struct {
	Provider          string        `yaml:"provider"` // "prosim", "mock"
	Host              string        `yaml:"host"`
	Synchronous       bool          `yaml:"synchronous"`
	SDKPath           string        `yaml:"sdk_path"`
	ReconnectInterval Duration      `yaml:"reconnect_interval"`
	Watch             []WatchConfig `yaml:"watch"`
	Mock              MockSimConfig `yaml:"mock"`
}

// WatchConfig names a dataref activated every time the simulator comes online.
type WatchConfig struct {
	Name     string   `yaml:"name"`
	Interval Duration `yaml:"interval"` // 0 = write only
}

// MockSimConfig holds settings for the mock simulator.
type MockSimConfig struct {
	Catalog      string   `yaml:"catalog"` // empty = built-in catalog
	ConnectDelay Duration `yaml:"connect_delay"`
}

// NATSConfig holds settings for publishing changes to NATS.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
		Server: ServerConfig{
			Address:        "localhost:1737",
			MaxConnections: 64,
		},
		Sim: SimConfig{
			Provider:          "prosim",
			Host:              "localhost",
			Synchronous:       false,
			ReconnectInterval: Duration(5 * time.Second),
			Watch: []WatchConfig{
				{Name: "aircraft.engines.1.thrust", Interval: Duration(100 * time.Millisecond)},
				{Name: "system.switches.S_MIP_ISFD_APP"},
			},
			Mock: MockSimConfig{
				ConnectDelay: Duration(500 * time.Millisecond),
			},
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "prosim",
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// A .env file next to the config is loaded first; PROSIM_* variables fill
// settings the file leaves empty.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	// Missing .env is fine; existing environment always wins.
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if cfg.Sim.Host == "" {
		cfg.Sim.Host = os.Getenv("PROSIM_HOST")
	}
	if cfg.Sim.SDKPath == "" {
		cfg.Sim.SDKPath = os.Getenv("PROSIM_SDK_PATH")
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = os.Getenv("PROSIM_NATS_URL")
	}
}

// Validate reports settings the daemon cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Sim.Provider) {
	case "prosim", "mock":
	default:
		return fmt.Errorf("invalid sim provider '%s': must be 'prosim' or 'mock'", c.Sim.Provider)
	}
	if c.Sim.Host == "" {
		return fmt.Errorf("sim.host is required")
	}
	for i, w := range c.Sim.Watch {
		if w.Name == "" {
			return fmt.Errorf("sim.watch[%d]: name is required", i)
		}
		if w.Interval < 0 {
			return fmt.Errorf("sim.watch[%d]: interval must not be negative", i)
		}
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats is enabled")
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# ProSim Bridge Configuration
# --------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
# Environment (used when the setting is empty, also read from .env):
#   PROSIM_HOST, PROSIM_SDK_PATH, PROSIM_NATS_URL

`)
	data = append(header, data...)

	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: prosim, mock\n${1}provider:"))

	reWatch := regexp.MustCompile(`(?m)^(\s+)watch:`)
	data = reWatch.ReplaceAll(data, []byte("${1}# Activated on every connect; interval 0 = write only\n${1}watch:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
