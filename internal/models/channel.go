package models

// Built-in notification channel identifiers.
const (
	ChannelEmail   = "email"
	ChannelChat    = "chat"
	ChannelWebhook = "webhook"
)

// EmailConfig overrides the process-wide email settings for one rule.
type EmailConfig struct {
	Recipients []string `json:"recipients"`
}

// WebhookConfig overrides the process-wide webhook settings for one rule.
type WebhookConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ChatConfig overrides the process-wide chat settings for one rule.
type ChatConfig struct {
	Channel string `json:"channel"`
}

// ChannelConfig is the per-rule notification configuration. Each known
// channel kind gets a typed slot; anything else lands in Custom so a
// misconfigured blob is visible at the boundary instead of silently
// shaping dispatch.
type ChannelConfig struct {
	Email   *EmailConfig      `json:"email,omitempty"`
	Webhook *WebhookConfig    `json:"webhook,omitempty"`
	Chat    *ChatConfig       `json:"chat,omitempty"`
	Custom  map[string]string `json:"custom,omitempty"`
}
