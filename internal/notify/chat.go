package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsewatch/internal/models"
	"github.com/slack-go/slack"
)

// ChatNotifier posts alerts to a Slack channel.
type ChatNotifier struct {
	client         *slack.Client
	defaultChannel string
}

func NewChatNotifier(token, defaultChannel string) *ChatNotifier {
	var client *slack.Client
	if token != "" {
		client = slack.New(token)
	}
	return &ChatNotifier{
		client:         client,
		defaultChannel: defaultChannel,
	}
}

func (c *ChatNotifier) Name() string { return models.ChannelChat }

func (c *ChatNotifier) Send(ctx context.Context, n Context) error {
	channel := c.defaultChannel
	if cfg := n.Alert.NotificationConfig; cfg != nil && cfg.Chat != nil && cfg.Chat.Channel != "" {
		channel = cfg.Chat.Channel
	}
	if c.client == nil || channel == "" {
		return ErrNotConfigured
	}

	attachment := slack.Attachment{
		Color: severityColor(n.Alert.Severity),
		Title: fmt.Sprintf("PulseWatch Alert: %s", n.Alert.Name),
		Text:  n.Message(),
		Fields: []slack.AttachmentField{
			{Title: "Project", Value: n.ProjectName, Short: true},
			{Title: "Severity", Value: string(n.Alert.Severity), Short: true},
			{Title: "Metric", Value: n.Alert.MetricType, Short: true},
			{Title: "Current Value", Value: fmt.Sprintf("%.2f", n.Value), Short: true},
			{Title: "Threshold", Value: fmt.Sprintf("%.2f", n.Threshold), Short: true},
			{Title: "Time", Value: n.Timestamp.Format(time.RFC3339), Short: true},
		},
		Footer: "PulseWatch",
	}

	_, _, err := c.client.PostMessageContext(
		ctx,
		channel,
		slack.MsgOptionAttachments(attachment),
	)
	if err != nil {
		return fmt.Errorf("post chat message: %w", err)
	}
	return nil
}

func severityColor(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return "#FF0000"
	case models.SeverityHigh:
		return "#FFA500"
	case models.SeverityMedium:
		return "#FFCC00"
	case models.SeverityLow:
		return "#36A64F"
	case models.SeverityInfo:
		return "#0000FF"
	default:
		return "#808080"
	}
}
