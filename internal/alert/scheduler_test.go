package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pulsewatch/internal/events"
	"github.com/pulsewatch/internal/models"
)

type fakeRuleSource struct {
	mu      sync.Mutex
	rules   []models.Alert
	listErr error
}

func (f *fakeRuleSource) ListActive() ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Alert(nil), f.rules...), nil
}

type fakeMetricSource struct {
	mu      sync.Mutex
	samples map[string]*models.MetricSample
	errKeys map[string]error
}

func newFakeMetricSource() *fakeMetricSource {
	return &fakeMetricSource{
		samples: make(map[string]*models.MetricSample),
		errKeys: make(map[string]error),
	}
}

func sampleKey(projectID uint, metricType string) string {
	return fmt.Sprintf("%d/%s", projectID, metricType)
}

func (f *fakeMetricSource) set(projectID uint, metricType string, value float64, ts time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples[sampleKey(projectID, metricType)] = &models.MetricSample{
		ProjectID:  projectID,
		MetricType: metricType,
		Value:      value,
		Timestamp:  ts,
	}
}

func (f *fakeMetricSource) Latest(projectID uint, metricType string) (*models.MetricSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := sampleKey(projectID, metricType)
	if err := f.errKeys[key]; err != nil {
		return nil, err
	}
	return f.samples[key], nil
}

type schedulerHarness struct {
	sched    *Scheduler
	rules    *fakeRuleSource
	samples  *fakeMetricSource
	writer   *recordingRuleWriter
	notifier *recordingNotifier
	events   <-chan events.Event
	now      time.Time
}

func newSchedulerHarness(t *testing.T, rules ...models.Alert) *schedulerHarness {
	t.Helper()

	source := &fakeRuleSource{rules: rules}
	samples := newFakeMetricSource()
	writer := &recordingRuleWriter{}
	notifier := &recordingNotifier{name: "hook"}
	broadcaster := events.NewBroadcaster()
	lifecycle := NewLifecyclePublisher(writer, staticProjects{"web-app"}, NewDispatcher(time.Second, notifier), broadcaster)
	sched := NewScheduler(source, samples, NewStateMachine(), lifecycle, SchedulerConfig{
		Interval:  30 * time.Second,
		Staleness: 10 * time.Minute,
	})

	h := &schedulerHarness{
		sched:    sched,
		rules:    source,
		samples:  samples,
		writer:   writer,
		notifier: notifier,
		now:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	sched.nowFn = func() time.Time { return h.now }

	ch, cancel := broadcaster.Subscribe(events.GlobalRoom)
	t.Cleanup(cancel)
	h.events = ch
	return h
}

func (h *schedulerHarness) tickAt(offset time.Duration) {
	h.now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Add(offset)
	h.sched.tick(context.Background())
}

func schedulerRule(t *testing.T, id uint) models.Alert {
	t.Helper()
	rule, err := models.NewAlert(3, "High CPU", "cpu_percent", models.ConditionGreaterThan, 80, models.SeverityHigh)
	if err != nil {
		t.Fatalf("failed to build rule: %v", err)
	}
	rule.ID = id
	rule.DurationSeconds = 60
	rule.NotificationChannels = []string{"hook"}
	return *rule
}

func TestSchedulerSustainedBreachLifecycle(t *testing.T) {
	h := newSchedulerHarness(t, schedulerRule(t, 1))

	base := h.now

	// Breach held across three ticks spanning the 60s window.
	h.samples.set(3, "cpu_percent", 82, base)
	h.tickAt(0)
	h.tickAt(30 * time.Second)
	h.samples.set(3, "cpu_percent", 82, base.Add(60*time.Second))
	h.tickAt(65 * time.Second)

	if got := h.notifier.callCount(); got != 1 {
		t.Fatalf("expected exactly one notification for the sustained breach, got %d", got)
	}
	saved := h.writer.lastSaved()
	if saved == nil || saved.Status != models.AlertStatusActive {
		t.Fatalf("expected rule persisted as active, got %+v", saved)
	}
	evs := drainEvents(h.events)
	if len(evs) != 1 || evs[0].Type != events.TypeTriggered {
		t.Fatalf("expected one triggered event, got %v", evs)
	}

	// Recovery resolves without any transport fan-out.
	h.samples.set(3, "cpu_percent", 70, base.Add(90*time.Second))
	h.tickAt(95 * time.Second)

	if got := h.notifier.callCount(); got != 1 {
		t.Errorf("resolution must not re-notify, call count %d", got)
	}
	if h.writer.lastSaved().Status != models.AlertStatusResolved {
		t.Errorf("expected rule persisted as resolved, got %s", h.writer.lastSaved().Status)
	}
	evs = drainEvents(h.events)
	if len(evs) != 1 || evs[0].Type != events.TypeResolved {
		t.Fatalf("expected one resolved event, got %v", evs)
	}
}

func TestSchedulerSkipsStaleSample(t *testing.T) {
	h := newSchedulerHarness(t, schedulerRule(t, 1))

	// Breaching value, but recorded 15 minutes ago.
	h.samples.set(3, "cpu_percent", 95, h.now.Add(-15*time.Minute))
	h.tickAt(0)
	h.tickAt(30 * time.Second)
	h.tickAt(65 * time.Second)

	if got := h.notifier.callCount(); got != 0 {
		t.Errorf("stale data must never trigger, got %d notifications", got)
	}
	if h.writer.lastSaved() != nil {
		t.Error("stale data must not cause a status write")
	}
	if evs := drainEvents(h.events); len(evs) != 0 {
		t.Errorf("stale data must not publish events, got %v", evs)
	}
}

func TestSchedulerSkipsMissingSample(t *testing.T) {
	h := newSchedulerHarness(t, schedulerRule(t, 1))

	h.tickAt(0)
	h.tickAt(65 * time.Second)

	if got := h.notifier.callCount(); got != 0 {
		t.Errorf("rule without samples must never trigger, got %d notifications", got)
	}
}

func TestSchedulerRuleFailureDoesNotAbortTick(t *testing.T) {
	broken := schedulerRule(t, 1)
	broken.MetricType = "disk_percent"
	healthy := schedulerRule(t, 2)
	h := newSchedulerHarness(t, broken, healthy)

	base := h.now
	h.samples.errKeys[sampleKey(3, "disk_percent")] = errors.New("store offline")
	h.samples.set(3, "cpu_percent", 82, base)

	h.tickAt(0)
	h.samples.set(3, "cpu_percent", 82, base.Add(65*time.Second))
	h.tickAt(65 * time.Second)

	if got := h.notifier.callCount(); got != 1 {
		t.Errorf("healthy rule must still fire when a sibling's fetch fails, got %d notifications", got)
	}
}

func TestSchedulerStopIdempotent(t *testing.T) {
	h := newSchedulerHarness(t)

	h.sched.Start()
	h.sched.Stop()
	h.sched.Stop()
}
