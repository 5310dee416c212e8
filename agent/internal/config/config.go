package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultPollInterval   = 5 * time.Minute
	DefaultBufferSize     = 16
	DefaultEndpoint       = "https://api.todoist.com/api/v1/"
	DefaultPageLimit      = 200
	DefaultCompletedBatch = 200
	DefaultFetchTimeout   = 10 * time.Second
	DefaultDueSoonDays    = 7
	DefaultStaleDays      = 14
	DefaultWeekStart      = "monday"
)

// Config is the top-level agent configuration file.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// SourceID names the account whose rollups this agent ships. The server
	// keys its store by this value.
	SourceID string `yaml:"source_id"`

	// ServerEndpoint is the gRPC address of tally-server (host:port).
	ServerEndpoint string `yaml:"server_endpoint"`

	// PollInterval controls how often the snapshot is re-fetched and the
	// rollup recomputed.
	PollInterval time.Duration `yaml:"poll_interval"`

	// BufferSize is the maximum number of rollups held in memory when
	// the server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// Source describes where task snapshots come from.
	Source Source `yaml:"source"`

	// Rollup tunes the aggregation windows.
	Rollup RollupConfig `yaml:"rollup"`

	// ServerAuth configures how the agent authenticates to tally-server.
	ServerAuth AuthConfig `yaml:"server_auth"`
}

// Source describes the task-service snapshot source.
type Source struct {
	// Type is one of: todoist | file.
	Type string `yaml:"type"`

	// Endpoint is the base URL of the task-service REST API.
	Endpoint string `yaml:"endpoint"`

	// Path is the dataset file read by the "file" source.
	Path string `yaml:"path"`

	// TokenEnv is the name of the environment variable holding the API token.
	TokenEnv string `yaml:"token_env"`

	// PageLimit is the page size for cursor-paged list endpoints.
	PageLimit int `yaml:"page_limit"`

	// CompletedBatch is how many completed tasks the first page fetches.
	CompletedBatch int `yaml:"completed_batch"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout"`
}

// Token returns the API token resolved from the environment.
func (s Source) Token() string {
	if s.TokenEnv == "" {
		return ""
	}
	return os.Getenv(s.TokenEnv)
}

// RollupConfig holds the date windows used by the aggregator.
type RollupConfig struct {
	DueSoonDays int    `yaml:"due_soon_days"`
	StaleDays   int    `yaml:"stale_days"`
	WeekStart   string `yaml:"week_start"`
}

// Weekday returns WeekStart as a time.Weekday. Call only on a validated config.
func (r RollupConfig) Weekday() time.Weekday {
	d, _ := parseWeekday(r.WeekStart)
	return d
}

// AuthConfig specifies how the agent authenticates to the server.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the gRPC metadata key the API key is sent in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return strings.ToLower(a.Header)
	}
	return "x-api-key"
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			PollInterval: DefaultPollInterval,
			BufferSize:   DefaultBufferSize,
			Source: Source{
				Type:           "todoist",
				Endpoint:       DefaultEndpoint,
				TokenEnv:       "TODOIST_TOKEN",
				PageLimit:      DefaultPageLimit,
				CompletedBatch: DefaultCompletedBatch,
				Timeout:        DefaultFetchTimeout,
			},
			Rollup: RollupConfig{
				DueSoonDays: DefaultDueSoonDays,
				StaleDays:   DefaultStaleDays,
				WeekStart:   DefaultWeekStart,
			},
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.SourceID == "" {
		return fmt.Errorf("agent.source_id is required")
	}
	if a.ServerEndpoint == "" {
		return fmt.Errorf("agent.server_endpoint is required")
	}
	if a.PollInterval <= 0 {
		return fmt.Errorf("agent.poll_interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}

	switch a.Source.Type {
	case "todoist":
		if a.Source.Endpoint == "" {
			return fmt.Errorf("agent.source.endpoint is required for type todoist")
		}
	case "file":
		if a.Source.Path == "" {
			return fmt.Errorf("agent.source.path is required for type file")
		}
	default:
		return fmt.Errorf("agent.source.type %q unknown: want todoist|file", a.Source.Type)
	}
	if a.Source.PageLimit <= 0 {
		return fmt.Errorf("agent.source.page_limit must be positive")
	}
	if a.Source.CompletedBatch <= 0 {
		return fmt.Errorf("agent.source.completed_batch must be positive")
	}
	if a.Source.Timeout <= 0 {
		return fmt.Errorf("agent.source.timeout must be positive")
	}

	if a.Rollup.DueSoonDays < 0 {
		return fmt.Errorf("agent.rollup.due_soon_days must not be negative")
	}
	if a.Rollup.StaleDays < 0 {
		return fmt.Errorf("agent.rollup.stale_days must not be negative")
	}
	if _, ok := parseWeekday(a.Rollup.WeekStart); !ok {
		return fmt.Errorf("agent.rollup.week_start %q is not a weekday", a.Rollup.WeekStart)
	}

	switch a.ServerAuth.Mode {
	case "mtls":
		if a.ServerAuth.CertFile == "" || a.ServerAuth.KeyFile == "" {
			return fmt.Errorf("agent.server_auth: cert_file and key_file are required for mtls")
		}
	case "apikey", "none", "":
	default:
		return fmt.Errorf("agent.server_auth.mode %q unknown: want mtls|apikey|none", a.ServerAuth.Mode)
	}
	return nil
}

func parseWeekday(s string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(s, d.String()) {
			return d, true
		}
	}
	return 0, false
}
