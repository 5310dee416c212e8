package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/pkg/types"
	"github.com/tallyhq/tally/server/internal/config"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID          string     `json:"id"`
	RuleName    string     `json:"ruleName"`
	SourceID    string     `json:"sourceId"`
	ProjectID   string     `json:"projectId"`
	ProjectName string     `json:"projectName"`
	Severity    string     `json:"severity"`
	Message     string     `json:"message"`
	Value       float64    `json:"value"`
	FiredAt     time.Time  `json:"firedAt"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
	State       string     `json:"state"` // "firing" | "resolved"
}

type rule struct {
	config.AlertRule
	cond condition
}

// Engine evaluates alert rules against every project of incoming rollups
// and delivers webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []rule
	webhooks []config.WebhookConfig
	client   *http.Client
	now      func() time.Time

	mu       sync.Mutex
	active   map[string]*Alert    // key: "rule:source:project"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts
}

// New creates an Engine from the server alert configuration. It fails if a
// rule condition does not parse. An Engine with no rules is valid; Evaluate
// becomes a no-op.
func New(cfg config.AlertsConfig) (*Engine, error) {
	rules := make([]rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		c, err := parseCondition(r.Condition)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		if r.Severity == "" {
			r.Severity = "warning"
		}
		if r.Cooldown <= 0 {
			r.Cooldown = defaultCooldown
		}
		rules = append(rules, rule{AlertRule: r, cond: c})
	}
	return &Engine{
		rules:    rules,
		webhooks: cfg.Webhooks,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
	}, nil
}

func alertKey(ruleName, sourceID, projectID string) string {
	return ruleName + ":" + sourceID + ":" + projectID
}

// Evaluate tests all configured rules against every project in r.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false, or whose project
// is no longer in the rollup, are resolved.
func (e *Engine) Evaluate(r *types.Rollup) {
	if len(e.rules) == 0 {
		return
	}

	now := e.now()
	var notify []Alert

	e.mu.Lock()
	seen := make(map[string]bool, len(e.rules)*len(r.Projects))
	for _, rl := range e.rules {
		if !rl.AppliesTo(r.SourceID) {
			continue
		}
		for _, p := range r.Projects {
			key := alertKey(rl.Name, r.SourceID, p.ID)
			seen[key] = true

			fires, value := rl.cond.eval(p, now)
			if fires {
				if now.Sub(e.lastFire[key]) <= rl.Cooldown {
					continue
				}
				a := &Alert{
					ID:          uuid.NewString(),
					RuleName:    rl.Name,
					SourceID:    r.SourceID,
					ProjectID:   p.ID,
					ProjectName: p.Name,
					Severity:    rl.Severity,
					Value:       value,
					Message: fmt.Sprintf("[%s] %s fired on %s/%s: %s (value %.2f)",
						rl.Severity, rl.Name, r.SourceID, p.Name, rl.Condition, value),
					FiredAt: now,
					State:   StateFiring,
				}
				e.active[key] = a
				e.lastFire[key] = now
				notify = append(notify, *a)
				continue
			}

			if _, ok := e.active[key]; ok {
				notify = append(notify, e.resolveLocked(key, now))
			}
		}
	}
	for key, a := range e.active {
		if a.SourceID == r.SourceID && !seen[key] {
			notify = append(notify, e.resolveLocked(key, now))
		}
	}
	e.mu.Unlock()

	for i := range notify {
		a := notify[i]
		if a.State == StateFiring {
			slog.Warn("alert fired",
				"rule", a.RuleName,
				"source", a.SourceID,
				"project", a.ProjectID,
				"value", a.Value,
				"severity", a.Severity,
			)
		} else {
			slog.Info("alert resolved",
				"rule", a.RuleName,
				"source", a.SourceID,
				"project", a.ProjectID,
			)
		}
		go e.deliver(&a)
	}
}

// resolveLocked moves the active alert at key into history and returns a
// copy. e.mu must be held.
func (e *Engine) resolveLocked(key string, now time.Time) Alert {
	a := e.active[key]
	resolved := now
	a.State = StateResolved
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	return *a
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FiredAt.Equal(out[j].FiredAt) {
			return out[i].FiredAt.After(out[j].FiredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FiringCount returns the number of alerts currently firing.
func (e *Engine) FiringCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}
