package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pulsewatch/internal/models"
)

// ErrNotConfigured is returned by a transport when neither the rule's
// per-channel config nor the process-wide defaults resolve to a usable
// destination. The dispatcher treats it as a skip, not a failure.
var ErrNotConfigured = errors.New("notification channel not configured")

// Context is the immutable bundle handed to every channel adapter for one
// firing episode. It is passed by value and never mutated after
// construction.
type Context struct {
	EpisodeID   string
	Alert       models.Alert
	ProjectName string
	Value       float64
	Threshold   float64
	Timestamp   time.Time
}

// Message composes the human-readable alert line used in notifications
// and lifecycle events.
func (c Context) Message() string {
	subject := c.ProjectName
	if subject == "" {
		subject = fmt.Sprintf("project %d", c.Alert.ProjectID)
	}
	return fmt.Sprintf("Alert: %s - %s is %.2f (threshold: %.2f) for %s",
		c.Alert.Name, c.Alert.MetricType, c.Value, c.Threshold, subject)
}

// Notifier is a single notification transport.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n Context) error
}
