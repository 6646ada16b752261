// Package config loads and validates the session server configuration.
// Values come from an optional TOML file overlaid by environment variables,
// so the server runs with sane defaults when no file is given.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// SessionConfig holds session-related configuration
type SessionConfig struct {
	TTL string `toml:"ttl" env:"SESSION_TTL"` // Session lifetime measured from creation
}

// GetTTL returns the session TTL as time.Duration
func (s *SessionConfig) GetTTL() (time.Duration, error) {
	return ParseDuration(s.TTL)
}

// GetTTLOrDefault returns the session TTL as time.Duration
// or panics if the value is invalid
func (s *SessionConfig) GetTTLOrDefault() time.Duration {
	duration, err := s.GetTTL()
	if err != nil {
		panic(fmt.Sprintf("invalid session ttl: %v", err))
	}
	return duration
}

// DiagConfig holds the diagnostic HTTP endpoint configuration
type DiagConfig struct {
	Enabled    bool   `toml:"enabled" env:"DIAG_ENABLED"` // Whether to serve diagnostics
	Port       string `toml:"port" env:"DIAG_PORT"`       // Port for the diagnostic server
	HandleCORS bool   `toml:"handle_cors"`                // Whether to handle CORS
}

// StreamConfig holds the TCP stream listener configuration
type StreamConfig struct {
	Enabled bool `toml:"enabled" env:"STREAM_ENABLED"` // Whether to serve the stream listener
	Port    int  `toml:"port" env:"STREAM_PORT"`       // Port for the stream listener
}

// ConfigParam holds all configuration parameters for the session server
type ConfigParam struct {
	// Configuration version
	FormatVersion string `toml:"format_version"` // Version of this configuration file format

	// Server configuration
	Host           string `toml:"host" env:"UDP_HOST"`                  // Address the datagram socket binds to
	Port           int    `toml:"port" env:"UDP_PORT"`                  // Port the datagram socket binds to
	MaxConnections int    `toml:"max_connections" env:"MAX_CONNECTIONS"` // Maximum concurrently active handlers
	LogLevel       string `toml:"log_level" env:"LOG_LEVEL"`            // Log level for the global logger

	// Session configuration
	Session SessionConfig `toml:"session"`

	// Diagnostic endpoint configuration
	Diag DiagConfig `toml:"diag"`

	// Stream listener configuration
	Stream StreamConfig `toml:"stream"`
}

var cfg *ConfigParam

// Config returns the current configuration
func Config() *ConfigParam {
	return cfg
}

// Addr returns the host:port the datagram socket binds to
func (c *ConfigParam) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// StreamAddr returns the host:port the stream listener binds to
func (c *ConfigParam) StreamAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Stream.Port))
}

// DiagAddr returns the host:port the diagnostic server binds to
func (c *ConfigParam) DiagAddr() string {
	return net.JoinHostPort(c.Host, c.Diag.Port)
}

// DefaultConfig returns a configuration carrying the documented defaults.
// The defaults match the environment-only deployment: loopback host, port
// 5000, 100 concurrent handlers, one hour session lifetime.
func DefaultConfig() *ConfigParam {
	return &ConfigParam{
		FormatVersion:  ConfigFormatVersion,
		Host:           "127.0.0.1",
		Port:           5000,
		MaxConnections: 100,
		LogLevel:       "info",
		Session: SessionConfig{
			TTL: "3600s",
		},
		Diag: DiagConfig{
			Enabled: false,
			Port:    "8640",
		},
		Stream: StreamConfig{
			Enabled: false,
			Port:    5001,
		},
	}
}

// ParseDuration parses a duration string in the format "<number><unit>" where unit can be:
// - d: days
// - h: hours
// - m: minutes
// - s: seconds
func ParseDuration(input string) (time.Duration, error) {
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid input format")
	}

	// Extract the unit and the value from the input string
	unit := input[len(input)-1:]
	valueStr := input[:len(input)-1]
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}

	// Convert the value to a duration based on the unit
	var duration time.Duration
	switch unit {
	case "d":
		duration = time.Duration(value) * 24 * time.Hour
	case "h":
		duration = time.Duration(value) * time.Hour
	case "m":
		duration = time.Duration(value) * time.Minute
	case "s":
		duration = time.Duration(value) * time.Second
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}

	return duration, nil
}

// ValidateConfig checks if all required configuration values are present and valid
func ValidateConfig(cfg *ConfigParam) error {
	if err := validateConfigFormatVersion(cfg); err != nil {
		return err
	}
	if err := validateServerConfig(cfg); err != nil {
		return err
	}
	if err := validateSessionConfig(cfg); err != nil {
		return err
	}
	if err := validateDiagConfig(cfg); err != nil {
		return err
	}
	if err := validateStreamConfig(cfg); err != nil {
		return err
	}
	return nil
}

func validateConfigFormatVersion(cfg *ConfigParam) error {
	if cfg.FormatVersion == "" {
		cfg.FormatVersion = ConfigFormatVersion
		return nil
	}
	if !isFormatSupported(cfg.FormatVersion) {
		return fmt.Errorf("unsupported config file format version: %s", cfg.FormatVersion)
	}
	return nil
}

func validateServerConfig(cfg *ConfigParam) error {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive")
	}
	return nil
}

func validateSessionConfig(cfg *ConfigParam) error {
	if cfg.Session.TTL == "" {
		cfg.Session.TTL = "3600s"
	}
	ttl, err := ParseDuration(cfg.Session.TTL)
	if err != nil {
		return fmt.Errorf("invalid session.ttl: %v", err)
	}
	if ttl <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	return nil
}

func validateDiagConfig(cfg *ConfigParam) error {
	if cfg.Diag.Port == "" {
		cfg.Diag.Port = "8640"
	}
	if _, err := strconv.Atoi(cfg.Diag.Port); err != nil {
		return fmt.Errorf("invalid diag.port: %v", err)
	}
	return nil
}

func validateStreamConfig(cfg *ConfigParam) error {
	if !cfg.Stream.Enabled {
		return nil
	}
	if cfg.Stream.Port <= 0 || cfg.Stream.Port > 65535 {
		return fmt.Errorf("stream.port must be between 1 and 65535")
	}
	if cfg.Stream.Port == cfg.Port {
		return fmt.Errorf("stream.port must differ from the datagram port")
	}
	return nil
}

// LoadConfig loads configuration from a file and the environment. An empty
// filename skips the file stage and configures from defaults and environment
// variables alone. A .env file in the working directory is honored if present.
func LoadConfig(filename string) error {
	_ = godotenv.Load() // no error if .env doesn't exist

	cfg = DefaultConfig()

	if filename != "" {
		content, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("error reading config file: %v", err)
		}
		if _, err := toml.Decode(string(content), cfg); err != nil {
			return fmt.Errorf("error parsing config file: %v", err)
		}
	}

	// Environment variables override file values
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("error parsing environment: %v", err)
	}

	// Validate the configuration
	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	return nil
}

// ConfigFormatVersion is the current version of the configuration file format
const ConfigFormatVersion = "0.1.0"

// formatConstraint defines the accepted config file format range.
var formatConstraint *semver.Constraints

func init() {
	var err error
	formatConstraint, err = semver.NewConstraint("=" + ConfigFormatVersion)
	if err != nil {
		panic(err)
	}
}

// isFormatSupported reports whether the given format version is compatible
// with the version this build understands. Returns false for invalid
// version strings.
func isFormatSupported(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return formatConstraint.Check(v)
}

var isTest = false

// IsTest reports whether the package runs under test configuration.
func IsTest() bool {
	return isTest
}

func TestInit() {
	isTest = true
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}

	// Check if we're already in the project root by looking for go.mod
	projectRoot := wd
	for {
		if _, err := os.Stat(filepath.Join(projectRoot, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(projectRoot)
		if parent == projectRoot {
			panic("could not find project root (go.mod)")
		}
		projectRoot = parent
	}
	if err := LoadConfig(filepath.Join(projectRoot, "sessiond.conf")); err != nil {
		panic(fmt.Errorf("error loading config: %v", err))
	}
}
