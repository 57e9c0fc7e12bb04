package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pulsewatch/internal/events"
	"github.com/pulsewatch/internal/logger"
	"github.com/pulsewatch/internal/metrics"
	"github.com/pulsewatch/internal/models"
	"github.com/pulsewatch/internal/notify"
	"github.com/rs/zerolog"
)

// RuleWriter persists rule status transitions.
type RuleWriter interface {
	Save(rule *models.Alert) error
}

// ProjectNamer resolves a project's display name for notification
// contexts.
type ProjectNamer interface {
	Name(projectID uint) (string, error)
}

// LifecyclePublisher applies a state-machine decision: it persists the
// status transition, fans out notifications, and publishes lifecycle
// events, in that order. The status write always happens before any
// dispatch, and events are published after dispatch is attempted, so an
// observer never sees a triggered event for a rule whose write failed.
type LifecyclePublisher struct {
	rules       RuleWriter
	projects    ProjectNamer
	dispatcher  *Dispatcher
	broadcaster *events.Broadcaster
	log         zerolog.Logger
}

func NewLifecyclePublisher(rules RuleWriter, projects ProjectNamer, dispatcher *Dispatcher, broadcaster *events.Broadcaster) *LifecyclePublisher {
	return &LifecyclePublisher{
		rules:       rules,
		projects:    projects,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		log:         logger.WithComponent("lifecycle"),
	}
}

// HandleTrigger processes a confirmed trigger decision.
func (p *LifecyclePublisher) HandleTrigger(ctx context.Context, rule *models.Alert, value float64, now time.Time) error {
	rule.MarkTriggered(now)
	if err := p.rules.Save(rule); err != nil {
		return fmt.Errorf("persist trigger for rule %d: %w", rule.ID, err)
	}

	nctx := p.composeContext(rule, value, now)
	p.dispatcher.Dispatch(ctx, nctx)

	p.publish(events.Event{
		Type:      events.TypeTriggered,
		ProjectID: rule.ProjectID,
		Payload: events.TriggeredPayload{
			AlertID:   rule.ID,
			ProjectID: rule.ProjectID,
			Name:      rule.Name,
			Severity:  rule.Severity,
			Message:   nctx.Message(),
			Timestamp: now,
		},
	})

	p.log.Info().
		Uint("rule_id", rule.ID).
		Uint("project_id", rule.ProjectID).
		Float64("value", value).
		Str("episode_id", nctx.EpisodeID).
		Msg("alert triggered")
	return nil
}

// HandleResolve processes a resolve decision. Transports are not invoked
// on recovery; only the lifecycle event goes out.
func (p *LifecyclePublisher) HandleResolve(ctx context.Context, rule *models.Alert, value float64, now time.Time) error {
	rule.MarkResolved(now)
	if err := p.rules.Save(rule); err != nil {
		return fmt.Errorf("persist resolve for rule %d: %w", rule.ID, err)
	}

	p.publish(events.Event{
		Type:      events.TypeResolved,
		ProjectID: rule.ProjectID,
		Payload: events.ResolvedPayload{
			AlertID:   rule.ID,
			ProjectID: rule.ProjectID,
			Name:      rule.Name,
			Message:   fmt.Sprintf("Alert resolved: %s - %s is back to %.2f", rule.Name, rule.MetricType, value),
			Timestamp: now,
		},
	})

	p.log.Info().
		Uint("rule_id", rule.ID).
		Uint("project_id", rule.ProjectID).
		Float64("value", value).
		Msg("alert resolved")
	return nil
}

// Acknowledge processes an operator acknowledgement. It is externally
// driven, never produced by evaluation.
func (p *LifecyclePublisher) Acknowledge(ctx context.Context, rule *models.Alert, actor string, now time.Time) error {
	rule.MarkAcknowledged(now, actor)
	if err := p.rules.Save(rule); err != nil {
		return fmt.Errorf("persist acknowledge for rule %d: %w", rule.ID, err)
	}

	p.publish(events.Event{
		Type:      events.TypeAcknowledged,
		ProjectID: rule.ProjectID,
		Payload:   *rule,
	})

	p.log.Info().
		Uint("rule_id", rule.ID).
		Str("actor", actor).
		Msg("alert acknowledged")
	return nil
}

func (p *LifecyclePublisher) composeContext(rule *models.Alert, value float64, now time.Time) notify.Context {
	projectName, err := p.projects.Name(rule.ProjectID)
	if err != nil {
		p.log.Warn().
			Err(err).
			Uint("project_id", rule.ProjectID).
			Msg("could not resolve project name")
	}
	return notify.Context{
		EpisodeID:   uuid.NewString(),
		Alert:       *rule,
		ProjectName: projectName,
		Value:       value,
		Threshold:   rule.Threshold,
		Timestamp:   now,
	}
}

func (p *LifecyclePublisher) publish(ev events.Event) {
	p.broadcaster.Publish(ev)
	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
}
