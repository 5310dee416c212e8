package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const deliveryTimeout = 10 * time.Second

// deliver posts a to every configured webhook. Failures are logged only.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" || !wh.Accepts(a.Severity) {
			continue
		}

		var body []byte
		switch wh.Type {
		case "slack":
			body = slackPayload(a)
		case "teams":
			body = teamsPayload(a)
		case "http":
			body = httpPayload(a)
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err := e.post(url, body); err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"rule", a.RuleName,
				"project", a.ProjectID,
				"err", err,
			)
			continue
		}
		slog.Debug("alerts: webhook delivered",
			"type", wh.Type,
			"rule", a.RuleName,
			"state", a.State,
		)
	}
}

// headline is the one-line summary shared by the chat payloads, e.g.
// "[CRITICAL] low-score: Launch (work)" or "[RESOLVED] low-score: Launch (work)".
func headline(a *Alert) string {
	label := severityLabel(a.Severity)
	if a.State == StateResolved {
		label = "[RESOLVED]"
	}
	return fmt.Sprintf("%s %s: %s (%s)", label, a.RuleName, projectLabel(a), a.SourceID)
}

func projectLabel(a *Alert) string {
	if a.ProjectName != "" {
		return a.ProjectName
	}
	return a.ProjectID
}

func slackPayload(a *Alert) []byte {
	lines := []string{"*" + headline(a) + "*"}
	if a.State == StateFiring {
		lines = append(lines, a.Message)
	} else if a.ResolvedAt != nil {
		lines = append(lines, "Condition cleared at "+a.ResolvedAt.UTC().Format(time.RFC3339))
	}
	body, _ := json.Marshal(map[string]string{"text": strings.Join(lines, "\n")})
	return body
}

func teamsPayload(a *Alert) []byte {
	color := severityColor(a.Severity)
	if a.State == StateResolved {
		color = resolvedColor
	}
	body, _ := json.Marshal(map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": color,
		"summary":    a.RuleName,
		"title":      "Tally alert: " + headline(a),
		"text":       a.Message,
		"sections": []map[string]interface{}{{
			"facts": []map[string]string{
				{"name": "Source", "value": a.SourceID},
				{"name": "Project", "value": projectLabel(a)},
				{"name": "Value", "value": fmt.Sprintf("%.2f", a.Value)},
				{"name": "State", "value": a.State},
			},
		}},
	})
	return body
}

// httpPayload is the generic JSON body: the alert plus an event name of
// "alert.firing" or "alert.resolved".
func httpPayload(a *Alert) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"event": "alert." + a.State,
		"alert": a,
	})
	return body
}

func (e *Engine) post(url string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

const resolvedColor = "2E7D32"

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func severityColor(s string) string {
	switch s {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
