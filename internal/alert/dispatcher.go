package alert

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pulsewatch/internal/logger"
	"github.com/pulsewatch/internal/metrics"
	"github.com/pulsewatch/internal/notify"
	"github.com/rs/zerolog"
)

// DefaultSendTimeout bounds each transport call so a slow channel cannot
// stall a tick indefinitely.
const DefaultSendTimeout = 10 * time.Second

// ChannelResult is the per-channel outcome of one dispatch.
type ChannelResult struct {
	Channel string
	Skipped bool
	Err     error
}

// Dispatcher fans a notification context out to every channel configured
// on the rule, concurrently, isolating per-channel failures.
type Dispatcher struct {
	notifiers map[string]notify.Notifier
	timeout   time.Duration
	log       zerolog.Logger
}

func NewDispatcher(timeout time.Duration, notifiers ...notify.Notifier) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	byName := make(map[string]notify.Notifier, len(notifiers))
	for _, n := range notifiers {
		byName[n.Name()] = n
	}
	return &Dispatcher{
		notifiers: byName,
		timeout:   timeout,
		log:       logger.WithComponent("dispatcher"),
	}
}

// Dispatch attempts every channel on the rule and reports what each one
// did. It never returns an error: a failed channel is logged and counted,
// and does not prevent sibling channels from being attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, nctx notify.Context) []ChannelResult {
	channels := nctx.Alert.NotificationChannels
	results := make([]ChannelResult, len(channels))

	var wg sync.WaitGroup
	for i, name := range channels {
		notifier, ok := d.notifiers[name]
		if !ok {
			results[i] = ChannelResult{Channel: name, Skipped: true}
			d.log.Warn().
				Uint("rule_id", nctx.Alert.ID).
				Str("channel", name).
				Msg("unknown notification channel, skipping")
			metrics.DispatchTotal.WithLabelValues(name, "skipped").Inc()
			continue
		}

		wg.Add(1)
		go func(i int, name string, notifier notify.Notifier) {
			defer wg.Done()
			results[i] = d.send(ctx, name, notifier, nctx)
		}(i, name, notifier)
	}
	wg.Wait()

	return results
}

func (d *Dispatcher) send(ctx context.Context, name string, notifier notify.Notifier, nctx notify.Context) ChannelResult {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := notifier.Send(sendCtx, nctx)
	switch {
	case err == nil:
		d.log.Info().
			Uint("rule_id", nctx.Alert.ID).
			Str("channel", name).
			Str("episode_id", nctx.EpisodeID).
			Msg("notification sent")
		metrics.DispatchTotal.WithLabelValues(name, "sent").Inc()
		return ChannelResult{Channel: name}
	case errors.Is(err, notify.ErrNotConfigured):
		d.log.Warn().
			Uint("rule_id", nctx.Alert.ID).
			Str("channel", name).
			Msg("notification channel unconfigured, skipping")
		metrics.DispatchTotal.WithLabelValues(name, "skipped").Inc()
		return ChannelResult{Channel: name, Skipped: true}
	default:
		d.log.Error().
			Err(err).
			Uint("rule_id", nctx.Alert.ID).
			Str("channel", name).
			Str("episode_id", nctx.EpisodeID).
			Msg("notification failed")
		metrics.DispatchTotal.WithLabelValues(name, "failed").Inc()
		return ChannelResult{Channel: name, Err: err}
	}
}
