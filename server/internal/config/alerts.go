package config

import (
	"fmt"
	"os"
	"slices"
	"time"
)

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one per-project alert condition.
type AlertRule struct {
	// Name identifies the rule in alerts and notifications. Must be unique.
	Name string `yaml:"name"`

	// Condition is evaluated against every project of an incoming rollup:
	// "health_score < 45", "overdue_count > 3", "days_since_activity > 21",
	// "health_status == critical", "stale == true".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires after an alert fires (default 15m).
	Cooldown time.Duration `yaml:"cooldown"`

	// Sources limits the rule to these source ids. Empty means every source.
	Sources []string `yaml:"sources"`
}

// AppliesTo reports whether the rule should be evaluated for sourceID.
func (r AlertRule) AppliesTo(sourceID string) bool {
	return len(r.Sources) == 0 || slices.Contains(r.Sources, sourceID)
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv names the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`

	// MinSeverity drops alerts below this severity. Empty delivers all.
	MinSeverity string `yaml:"min_severity"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Accepts reports whether an alert of the given severity should be sent to
// this webhook.
func (w WebhookConfig) Accepts(severity string) bool {
	return SeverityRank(severity) >= SeverityRank(w.MinSeverity)
}

// SeverityRank orders severities: info < warning < critical. Empty and
// unknown severities rank lowest.
func SeverityRank(s string) int {
	switch s {
	case "critical":
		return 3
	case "warning":
		return 2
	case "info":
		return 1
	}
	return 0
}

func validSeverity(s string) bool {
	return s == "" || SeverityRank(s) > 0
}

func validateAlerts(a AlertsConfig) error {
	names := make(map[string]bool, len(a.Rules))
	for i, r := range a.Rules {
		if r.Name == "" || r.Condition == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name and condition are required", i)
		}
		if names[r.Name] {
			return fmt.Errorf("server.alerts.rules[%d]: duplicate rule name %q", i, r.Name)
		}
		names[r.Name] = true
		if !validSeverity(r.Severity) {
			return fmt.Errorf("server.alerts.rules[%d]: severity %q unknown: want critical|warning|info", i, r.Severity)
		}
		if r.Cooldown < 0 {
			return fmt.Errorf("server.alerts.rules[%d]: cooldown must not be negative", i)
		}
	}
	for i, w := range a.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d]: type %q unknown: want slack|teams|http", i, w.Type)
		}
		if !validSeverity(w.MinSeverity) {
			return fmt.Errorf("server.alerts.webhooks[%d]: min_severity %q unknown", i, w.MinSeverity)
		}
	}
	return nil
}
