package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pulsewatch/internal/models"
)

const webhookTimeout = 10 * time.Second

// WebhookNotifier posts a JSON payload to a configured URL.
type WebhookNotifier struct {
	httpClient *http.Client
	defaultURL string
}

func NewWebhookNotifier(defaultURL string) *WebhookNotifier {
	return &WebhookNotifier{
		httpClient: &http.Client{Timeout: webhookTimeout},
		defaultURL: defaultURL,
	}
}

func (w *WebhookNotifier) Name() string { return models.ChannelWebhook }

type webhookAlert struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Severity    models.Severity `json:"severity"`
	MetricType  string          `json:"metric_type"`
	ProjectID   uint            `json:"project_id"`
	ProjectName string          `json:"project_name"`
}

type webhookCondition struct {
	Type            models.ConditionType `json:"type"`
	Threshold       float64              `json:"threshold"`
	CurrentValue    float64              `json:"current_value"`
	DurationSeconds int                  `json:"duration_seconds"`
}

type webhookMetadata struct {
	Source  string `json:"source"`
	Version string `json:"version"`
}

type webhookPayload struct {
	Event     string           `json:"event"`
	Timestamp string           `json:"timestamp"`
	Alert     webhookAlert     `json:"alert"`
	Condition webhookCondition `json:"condition"`
	Metadata  webhookMetadata  `json:"metadata"`
}

func (w *WebhookNotifier) Send(ctx context.Context, n Context) error {
	url := w.defaultURL
	var headers map[string]string
	if cfg := n.Alert.NotificationConfig; cfg != nil && cfg.Webhook != nil {
		if cfg.Webhook.URL != "" {
			url = cfg.Webhook.URL
		}
		headers = cfg.Webhook.Headers
	}
	if url == "" {
		return ErrNotConfigured
	}

	payload := webhookPayload{
		Event:     "alert.triggered",
		Timestamp: n.Timestamp.UTC().Format(time.RFC3339),
		Alert: webhookAlert{
			ID:          n.Alert.ID,
			Name:        n.Alert.Name,
			Description: n.Alert.Description,
			Severity:    n.Alert.Severity,
			MetricType:  n.Alert.MetricType,
			ProjectID:   n.Alert.ProjectID,
			ProjectName: n.ProjectName,
		},
		Condition: webhookCondition{
			Type:            n.Alert.Condition,
			Threshold:       n.Threshold,
			CurrentValue:    n.Value,
			DurationSeconds: n.Alert.DurationSeconds,
		},
		Metadata: webhookMetadata{
			Source:  "pulsewatch",
			Version: "1.0.0",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
