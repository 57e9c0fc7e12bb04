package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pulsewatch/internal/models"
)

func webhookContext(t *testing.T) Context {
	t.Helper()
	rule, err := models.NewAlert(3, "High CPU", "cpu_percent", models.ConditionGreaterThan, 80, models.SeverityHigh)
	if err != nil {
		t.Fatalf("failed to build rule: %v", err)
	}
	rule.ID = 7
	rule.Description = "CPU above safe limit"
	rule.DurationSeconds = 60
	return Context{
		EpisodeID:   "ep-1",
		Alert:       *rule,
		ProjectName: "web-app",
		Value:       92.5,
		Threshold:   80,
		Timestamp:   time.Date(2024, 3, 1, 12, 1, 5, 0, time.UTC),
	}
}

func TestWebhookPayloadShape(t *testing.T) {
	var got webhookPayload
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), webhookContext(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("expected application/json, got %q", contentType)
	}
	if got.Event != "alert.triggered" {
		t.Errorf("expected event alert.triggered, got %q", got.Event)
	}
	if got.Timestamp != "2024-03-01T12:01:05Z" {
		t.Errorf("expected RFC3339 UTC timestamp, got %q", got.Timestamp)
	}
	if got.Alert.ID != 7 || got.Alert.ProjectID != 3 || got.Alert.ProjectName != "web-app" {
		t.Errorf("alert block mismatch: %+v", got.Alert)
	}
	if got.Condition.Type != models.ConditionGreaterThan ||
		got.Condition.Threshold != 80 ||
		got.Condition.CurrentValue != 92.5 ||
		got.Condition.DurationSeconds != 60 {
		t.Errorf("condition block mismatch: %+v", got.Condition)
	}
	if got.Metadata.Source != "pulsewatch" || got.Metadata.Version != "1.0.0" {
		t.Errorf("metadata block mismatch: %+v", got.Metadata)
	}
}

func TestWebhookCustomURLAndHeaders(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	nc := webhookContext(t)
	nc.Alert.NotificationConfig = &models.ChannelConfig{
		Webhook: &models.WebhookConfig{
			URL:     srv.URL,
			Headers: map[string]string{"Authorization": "Bearer token"},
		},
	}

	// Per-rule URL wins over the default.
	n := NewWebhookNotifier("http://unreachable.invalid")
	if err := n.Send(context.Background(), nc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth != "Bearer token" {
		t.Errorf("custom header not forwarded, got %q", auth)
	}
}

func TestWebhookNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), webhookContext(t)); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestWebhookWithoutURLIsNotConfigured(t *testing.T) {
	n := NewWebhookNotifier("")
	err := n.Send(context.Background(), webhookContext(t))
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
