package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsewatch/internal/models"
	"gopkg.in/gomail.v2"
)

// EmailNotifier sends alerts over SMTP.
type EmailNotifier struct {
	dialer    *gomail.Dialer
	from      string
	defaultTo []string
}

func NewEmailNotifier(host string, port int, from, password string, defaultTo []string) *EmailNotifier {
	return &EmailNotifier{
		dialer:    gomail.NewDialer(host, port, from, password),
		from:      from,
		defaultTo: defaultTo,
	}
}

func (e *EmailNotifier) Name() string { return models.ChannelEmail }

func (e *EmailNotifier) Send(ctx context.Context, n Context) error {
	recipients := e.defaultTo
	if cfg := n.Alert.NotificationConfig; cfg != nil && cfg.Email != nil && len(cfg.Email.Recipients) > 0 {
		recipients = cfg.Email.Recipients
	}
	if e.from == "" || len(recipients) == 0 {
		return ErrNotConfigured
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", fmt.Sprintf("[%s] %s", n.Alert.Severity, n.Alert.Name))

	body := fmt.Sprintf(`%s

Project:       %s
Severity:      %s
Metric:        %s
Current Value: %.2f
Threshold:     %.2f
Time:          %s
`, n.Message(), n.ProjectName, n.Alert.Severity, n.Alert.MetricType,
		n.Value, n.Threshold, n.Timestamp.Format(time.RFC3339))

	m.SetBody("text/plain", body)

	// gomail has no context support; bound the send so a slow SMTP server
	// cannot stall a dispatch past its deadline.
	errCh := make(chan error, 1)
	go func() { errCh <- e.dialer.DialAndSend(m) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
