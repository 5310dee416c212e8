package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultGRPCPort          = 50051
	DefaultHTTPPort          = 8080
	DefaultSnapshotTTL       = 30 * time.Minute
	DefaultBroadcastInterval = 5 * time.Second
	DefaultAPIKeyHeader      = "x-api-key"
)

// Environment variables that override the file, for container deployments.
const (
	EnvGRPCPort = "TALLY_GRPC_PORT"
	EnvHTTPPort = "TALLY_HTTP_PORT"
	EnvAuthMode = "TALLY_AUTH_MODE"
)

// Config is the `server:` section of config.yaml. The `agent:` section of
// the same file is ignored here.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// GRPCPort serves RollupService (default 50051).
	GRPCPort int `yaml:"grpc_port"`

	// HTTPPort serves the REST API, /metrics and the websocket stream
	// (default 8080).
	HTTPPort int `yaml:"http_port"`

	Auth AuthConfig `yaml:"auth"`

	Snapshot SnapshotConfig `yaml:"snapshot"`

	// BroadcastInterval is how often websocket clients get a fresh snapshot.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	Alerts AlertsConfig `yaml:"alerts"`
}

// AuthConfig controls client authentication for gRPC and REST.
type AuthConfig struct {
	// Mode is one of: apikey | mtls | none. mtls expects TLS to be
	// terminated in front of the server.
	Mode string `yaml:"mode"`

	// KeyEnv names the environment variable holding the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header carries the key, as gRPC metadata and as an HTTP header.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns Header lower-cased (gRPC metadata keys always
// are), or DefaultAPIKeyHeader.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header == "" {
		return DefaultAPIKeyHeader
	}
	return strings.ToLower(a.Header)
}

// SnapshotConfig controls in-memory rollup retention.
type SnapshotConfig struct {
	// TTL is how long a source stays visible after its last rollup.
	TTL time.Duration `yaml:"ttl"`
}

// Load reads the config file at path, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}
	if err := applyEnv(&cfg.Server, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	if err := validate(&cfg.Server); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{Server: ServerConfig{
		GRPCPort:          DefaultGRPCPort,
		HTTPPort:          DefaultHTTPPort,
		BroadcastInterval: DefaultBroadcastInterval,
		Snapshot:          SnapshotConfig{TTL: DefaultSnapshotTTL},
	}}
}

// applyEnv overlays the TALLY_* variables found by lookup onto s.
func applyEnv(s *ServerConfig, lookup func(string) (string, bool)) error {
	ports := []struct {
		env string
		dst *int
	}{
		{EnvGRPCPort, &s.GRPCPort},
		{EnvHTTPPort, &s.HTTPPort},
	}
	for _, p := range ports {
		v, ok := lookup(p.env)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q: not a port number", p.env, v)
		}
		*p.dst = n
	}
	if v, ok := lookup(EnvAuthMode); ok && v != "" {
		s.Auth.Mode = v
	}
	return nil
}

func validate(s *ServerConfig) error {
	for _, p := range []struct {
		name string
		port int
	}{{"grpc_port", s.GRPCPort}, {"http_port", s.HTTPPort}} {
		if p.port <= 0 || p.port > 65535 {
			return fmt.Errorf("server.%s %d is out of range [1, 65535]", p.name, p.port)
		}
	}
	if s.GRPCPort == s.HTTPPort {
		return fmt.Errorf("server.grpc_port and server.http_port must differ")
	}

	switch s.Auth.Mode {
	case "apikey":
		if s.Auth.KeyEnv == "" {
			return fmt.Errorf("server.auth.key_env is required for mode apikey")
		}
	case "mtls", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|mtls|none", s.Auth.Mode)
	}

	if s.Snapshot.TTL < 0 {
		return fmt.Errorf("server.snapshot.ttl must not be negative")
	}
	if s.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	return validateAlerts(s.Alerts)
}
