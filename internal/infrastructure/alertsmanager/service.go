package alertsmanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/arkade-os/feekeeper/internal/core/ports"
)

const (
	serviceName = "feekeeper"

	maxRetries = 5
)

type Alert struct {
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    time.Time         `json:"startsAt"`
}

type service struct {
	baseUrl    string
	httpClient *http.Client
}

func NewService(alertManagerURL string) ports.Alerts {
	return &service{
		baseUrl: alertManagerURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *service) Publish(ctx context.Context, topic ports.Topic, message any) error {
	labels := map[string]string{
		"alertname": string(topic),
		"service":   serviceName,
		"severity":  "info",
	}

	desc := ""
	annotations := map[string]string{}
	switch topic {
	case ports.FeePoliciesUpdated:
		annotations["firing_title"] = "⚖️ Fee Policies Updated"
		m, ok := message.(ports.FeePoliciesUpdatedAlert)
		if !ok {
			return fmt.Errorf("invalid message type: %T", message)
		}
		desc = formatFeePoliciesUpdatedAlert(m)
		labels["sweep_id"] = m.SweepId
	case ports.SweepFailures:
		annotations["firing_title"] = "⚠️ Sweep Failures"
		m, ok := message.(ports.SweepFailuresAlert)
		if !ok {
			return fmt.Errorf("invalid message type: %T", message)
		}
		desc = formatSweepFailuresAlert(m)
		labels["sweep_id"] = m.SweepId
		labels["severity"] = "warning"
	default:
		annotations["firing_title"] = fmt.Sprintf("🔔 %s", topic)
		desc = formatGenericAlert(map[string]any{"event": message})
	}

	annotations["description"] = desc
	alert := Alert{
		Labels:      labels,
		Annotations: annotations,
		StartsAt:    time.Now(),
	}

	if err := s.sendAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to send alert to AlertManager: %w", err)
	}

	return nil
}

func (s *service) sendAlert(ctx context.Context, alerts Alert) error {
	payload, err := json.Marshal([]Alert{alerts})
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}

	baseDelay := 100 * time.Millisecond

	for attempt := range maxRetries {
		req, err := http.NewRequestWithContext(ctx, "POST", s.baseUrl, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			// Network error - retry with backoff
			if attempt < maxRetries-1 {
				// exponential: 100ms, 200ms, 400ms, 800ms, 1600ms
				delay := baseDelay * time.Duration(1<<uint(attempt))

				select {
				case <-time.After(delay):
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return fmt.Errorf("failed to send alert after %d attempts: %w", maxRetries, err)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_ = resp.Body.Close()
			return nil
		}

		_ = resp.Body.Close()

		// Retry on 5xx (server errors), but not on 4xx (client errors)
		if resp.StatusCode >= 500 {
			if attempt < maxRetries-1 {
				delay := baseDelay * time.Duration(1<<uint(attempt))

				select {
				case <-time.After(delay):
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}

		// 4xx error or final 5xx error
		return fmt.Errorf(
			"failed to send alert to AlertManager with status %d after %d attempts",
			resp.StatusCode, attempt+1,
		)
	}

	return fmt.Errorf("failed to send alert after %d attempts", maxRetries)
}

func formatFeePoliciesUpdatedAlert(data ports.FeePoliciesUpdatedAlert) string {
	lines := make([]string, 0)
	lines = append(lines, fmt.Sprintf("*Sweep:* `%s`", data.SweepId))
	if data.DryRun {
		lines = append(lines, "_dry run, no update was sent to the node_")
	}

	lines = append(lines, fmt.Sprintf("\n*Updated channels (%d):*", len(data.Updates)))
	for _, u := range data.Updates {
		lines = append(lines, fmt.Sprintf(
			"• `%d` %.2f%% local (%s): %d msat + %d ppm → %d msat + %d ppm",
			u.ChanId, u.LiquidityRatio, u.Tier,
			u.Old.BaseFeeMsat, u.Old.FeeRatePpm, u.New.BaseFeeMsat, u.New.FeeRatePpm,
		))
	}
	return strings.Join(lines, "\n")
}

func formatSweepFailuresAlert(data ports.SweepFailuresAlert) string {
	lines := make([]string, 0)
	lines = append(lines, fmt.Sprintf("*Sweep:* `%s`", data.SweepId))
	if data.ListFailed {
		lines = append(lines, "• Failed to list channels, no channel was reconciled")
	} else {
		lines = append(lines, fmt.Sprintf(
			"• Failed channels: %d/%d", data.Failed, data.Channels,
		))
	}

	if len(data.Errors) > 0 {
		lines = append(lines, "\n*Errors:*")
		for _, e := range data.Errors {
			lines = append(lines, fmt.Sprintf("• %s", e))
		}
	}
	return strings.Join(lines, "\n")
}

func formatGenericAlert(data map[string]any) string {
	lines := make([]string, 0)
	for key, value := range data {
		lines = append(lines, fmt.Sprintf("• %s: %v", key, value))
	}
	return strings.Join(lines, "\n")
}
