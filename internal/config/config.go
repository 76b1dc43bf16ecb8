// Package config handles simulator configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// searchPathsFunc is overridden in tests to avoid depending on the
// developer's real home/container config files.
var searchPathsFunc = DefaultSearchPaths

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/trafficsim/config.yaml, container and
// system locations.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "trafficsim", "config.yaml"))
	}

	paths = append(paths, "/config/config.yaml") // container convention
	paths = append(paths, "/etc/trafficsim/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches searchPathsFunc() and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range searchPathsFunc() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPathsFunc())
}

// RoutingAlgorithm selects the pathfinding algorithm used by the router.
type RoutingAlgorithm string

const (
	AStar    RoutingAlgorithm = "A_STAR"
	Dijkstra RoutingAlgorithm = "DIJKSTRA"
)

// TrafficLightAlgorithm selects the intersection phase-selection policy.
type TrafficLightAlgorithm string

const (
	MaxPressure TrafficLightAlgorithm = "MAX_PRESSURE"
	QLearning   TrafficLightAlgorithm = "Q_LEARNING"
)

// Config holds all simulator configuration.
type Config struct {
	TimeStep     float64            `yaml:"time_step"`
	Duration     float64            `yaml:"duration"`
	NumVehicles  int                `yaml:"num_vehicles"`
	RandomSeed   int64              `yaml:"random_seed"`
	Environment  EnvironmentConfig  `yaml:"environment"`
	Algorithms   AlgorithmsConfig   `yaml:"algorithms"`
	Scenarios    map[string]ScenarioConfig `yaml:"scenarios"`
	Vehicle      VehicleConfig      `yaml:"vehicle"`
	DataDir      string             `yaml:"data_dir"`
	LogLevel     string             `yaml:"log_level"`
	Observability ObservabilityConfig `yaml:"observability"`
	Persistence  PersistenceConfig  `yaml:"persistence"`
	Microsim     MicrosimConfig     `yaml:"microsim"`
}

// EnvironmentConfig describes the simulated world's extent.
type EnvironmentConfig struct {
	Width    float64 `yaml:"width"`
	Height   float64 `yaml:"height"`
	CellSize float64 `yaml:"cell_size"`
}

// AlgorithmsConfig selects the pluggable algorithms.
type AlgorithmsConfig struct {
	Routing      RoutingAlgorithmConfig      `yaml:"routing"`
	TrafficLight TrafficLightAlgorithmConfig `yaml:"traffic_light"`
}

// RoutingAlgorithmConfig configures the routing engine.
type RoutingAlgorithmConfig struct {
	Algorithm RoutingAlgorithm `yaml:"algorithm"`
	CacheSize int              `yaml:"cache_size"`
}

// TrafficLightAlgorithmConfig configures intersection phase selection.
type TrafficLightAlgorithmConfig struct {
	Algorithm TrafficLightAlgorithm `yaml:"algorithm"`
}

// ScenarioConfig configures one named scenario instance.
type ScenarioConfig struct {
	StartTime float64           `yaml:"start_time"`
	Duration  float64           `yaml:"duration"`
	Zones     map[string]string `yaml:"zones"`
}

// VehicleConfig configures default vehicle behavior.
type VehicleConfig struct {
	MaxSpeed float64 `yaml:"max_speed"`
}

// ObservabilityConfig configures the optional HTTP/WebSocket server.
type ObservabilityConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// PersistenceConfig configures the optional SQLite persistence hook.
type PersistenceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MicrosimConfig configures the optional MQTT external-microsim sync hook.
type MicrosimConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BrokerURL  string `yaml:"broker_url"`
	TopicRoot  string `yaml:"topic_root"`
	ClientID   string `yaml:"client_id"`
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates
// the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.TimeStep == 0 {
		c.TimeStep = 1.0
	}
	if c.Duration == 0 {
		c.Duration = 3600
	}
	if c.NumVehicles == 0 {
		c.NumVehicles = 50
	}
	if c.Environment.Width == 0 {
		c.Environment.Width = 3000
	}
	if c.Environment.Height == 0 {
		c.Environment.Height = 3000
	}
	if c.Environment.CellSize == 0 {
		c.Environment.CellSize = 300
	}
	if c.Algorithms.Routing.Algorithm == "" {
		c.Algorithms.Routing.Algorithm = AStar
	}
	if c.Algorithms.Routing.CacheSize == 0 {
		c.Algorithms.Routing.CacheSize = 200
	}
	if c.Algorithms.TrafficLight.Algorithm == "" {
		c.Algorithms.TrafficLight.Algorithm = MaxPressure
	}
	if c.Vehicle.MaxSpeed == 0 {
		c.Vehicle.MaxSpeed = 13.89
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.Persistence.Path == "" {
		c.Persistence.Path = filepath.Join(c.DataDir, "trafficsim.db")
	}
	if c.Observability.Port == 0 {
		c.Observability.Port = 8090
	}
	if c.Microsim.TopicRoot == "" {
		c.Microsim.TopicRoot = "trafficsim"
	}
	if c.Microsim.ClientID == "" {
		c.Microsim.ClientID = "trafficsim-core"
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.TimeStep <= 0 {
		return fmt.Errorf("time_step must be positive, got %v", c.TimeStep)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", c.Duration)
	}
	if c.NumVehicles < 0 {
		return fmt.Errorf("num_vehicles must be non-negative, got %d", c.NumVehicles)
	}
	switch c.Algorithms.Routing.Algorithm {
	case AStar, Dijkstra:
	default:
		return fmt.Errorf("unknown routing algorithm %q", c.Algorithms.Routing.Algorithm)
	}
	switch c.Algorithms.TrafficLight.Algorithm {
	case MaxPressure, QLearning:
	default:
		return fmt.Errorf("unknown traffic light algorithm %q", c.Algorithms.TrafficLight.Algorithm)
	}
	if c.Observability.Enabled && (c.Observability.Port < 1 || c.Observability.Port > 65535) {
		return fmt.Errorf("observability.port %d out of range (1-65535)", c.Observability.Port)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// Ticks returns the total number of simulation ticks implied by
// Duration and TimeStep.
func (c *Config) Ticks() int {
	return int(c.Duration/c.TimeStep) + 1
}

// TickDuration returns TimeStep as a time.Duration, useful for
// pacing a real-time replay of the simulation.
func (c *Config) TickDuration() time.Duration {
	return time.Duration(c.TimeStep * float64(time.Second))
}

// Default returns a default configuration suitable for local
// development. All defaults are already applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
