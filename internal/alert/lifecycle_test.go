package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pulsewatch/internal/events"
	"github.com/pulsewatch/internal/models"
	"github.com/pulsewatch/internal/notify"
)

// callRecorder captures the order of persistence and transport calls.
type callRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callRecorder) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *callRecorder) sequence() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type recordingRuleWriter struct {
	rec     *callRecorder
	saveErr error

	mu    sync.Mutex
	saved []models.Alert
}

func (w *recordingRuleWriter) Save(rule *models.Alert) error {
	if w.rec != nil {
		w.rec.record("save")
	}
	if w.saveErr != nil {
		return w.saveErr
	}
	w.mu.Lock()
	w.saved = append(w.saved, *rule)
	w.mu.Unlock()
	return nil
}

func (w *recordingRuleWriter) lastSaved() *models.Alert {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.saved) == 0 {
		return nil
	}
	last := w.saved[len(w.saved)-1]
	return &last
}

type recordingNotifier struct {
	rec  *callRecorder
	name string

	mu    sync.Mutex
	calls int
}

func (n *recordingNotifier) Name() string { return n.name }

func (n *recordingNotifier) Send(ctx context.Context, nc notify.Context) error {
	if n.rec != nil {
		n.rec.record("send")
	}
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

type staticProjects struct{ name string }

func (p staticProjects) Name(projectID uint) (string, error) { return p.name, nil }

func drainEvents(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func lifecycleRule(t *testing.T) *models.Alert {
	t.Helper()
	rule, err := models.NewAlert(3, "High CPU", "cpu_percent", models.ConditionGreaterThan, 80, models.SeverityHigh)
	if err != nil {
		t.Fatalf("failed to build rule: %v", err)
	}
	rule.ID = 9
	rule.NotificationChannels = []string{"hook"}
	return rule
}

func TestHandleTriggerPersistsBeforeDispatch(t *testing.T) {
	rec := &callRecorder{}
	writer := &recordingRuleWriter{rec: rec}
	notifier := &recordingNotifier{rec: rec, name: "hook"}
	broadcaster := events.NewBroadcaster()
	p := NewLifecyclePublisher(writer, staticProjects{"web-app"}, NewDispatcher(time.Second, notifier), broadcaster)

	ch, cancel := broadcaster.Subscribe(events.GlobalRoom)
	defer cancel()

	rule := lifecycleRule(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := p.HandleTrigger(context.Background(), rule, 92, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seq := rec.sequence()
	if len(seq) < 2 || seq[0] != "save" || seq[1] != "send" {
		t.Errorf("status must persist before dispatch, got sequence %v", seq)
	}

	saved := writer.lastSaved()
	if saved.Status != models.AlertStatusActive {
		t.Errorf("expected persisted status active, got %s", saved.Status)
	}
	if saved.TriggeredAt == nil {
		t.Error("triggered_at must be stamped before persisting")
	}

	evs := drainEvents(ch)
	if len(evs) != 1 {
		t.Fatalf("expected exactly one lifecycle event, got %d", len(evs))
	}
	if evs[0].Type != events.TypeTriggered {
		t.Errorf("expected %s, got %s", events.TypeTriggered, evs[0].Type)
	}
	payload, ok := evs[0].Payload.(events.TriggeredPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", evs[0].Payload)
	}
	if payload.AlertID != rule.ID || payload.ProjectID != rule.ProjectID {
		t.Errorf("payload identity mismatch: %+v", payload)
	}
	if payload.Message == "" {
		t.Error("triggered payload must carry a composed message")
	}
}

func TestHandleTriggerFailedWriteSuppressesEvent(t *testing.T) {
	writer := &recordingRuleWriter{saveErr: errors.New("db down")}
	notifier := &recordingNotifier{name: "hook"}
	broadcaster := events.NewBroadcaster()
	p := NewLifecyclePublisher(writer, staticProjects{"web-app"}, NewDispatcher(time.Second, notifier), broadcaster)

	ch, cancel := broadcaster.Subscribe(events.GlobalRoom)
	defer cancel()

	rule := lifecycleRule(t)
	if err := p.HandleTrigger(context.Background(), rule, 92, time.Now()); err == nil {
		t.Fatal("expected error when status write fails")
	}

	if notifier.callCount() != 0 {
		t.Error("no dispatch may happen when the status write failed")
	}
	if evs := drainEvents(ch); len(evs) != 0 {
		t.Errorf("observers must never see a triggered event for a failed write, got %d events", len(evs))
	}
}

func TestHandleResolveSkipsTransports(t *testing.T) {
	writer := &recordingRuleWriter{}
	notifier := &recordingNotifier{name: "hook"}
	broadcaster := events.NewBroadcaster()
	p := NewLifecyclePublisher(writer, staticProjects{"web-app"}, NewDispatcher(time.Second, notifier), broadcaster)

	ch, cancel := broadcaster.Subscribe(events.GlobalRoom)
	defer cancel()

	rule := lifecycleRule(t)
	if err := p.HandleResolve(context.Background(), rule, 70, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if notifier.callCount() != 0 {
		t.Error("resolution must not re-dispatch notifications")
	}
	if writer.lastSaved().Status != models.AlertStatusResolved {
		t.Errorf("expected persisted status resolved, got %s", writer.lastSaved().Status)
	}
	evs := drainEvents(ch)
	if len(evs) != 1 || evs[0].Type != events.TypeResolved {
		t.Fatalf("expected one resolved event, got %v", evs)
	}
}

func TestAcknowledgePublishesSnapshot(t *testing.T) {
	writer := &recordingRuleWriter{}
	broadcaster := events.NewBroadcaster()
	p := NewLifecyclePublisher(writer, staticProjects{"web-app"}, NewDispatcher(time.Second), broadcaster)

	ch, cancel := broadcaster.Subscribe(events.GlobalRoom)
	defer cancel()

	rule := lifecycleRule(t)
	now := time.Now()
	if err := p.Acknowledge(context.Background(), rule, "ops", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved := writer.lastSaved()
	if saved.Status != models.AlertStatusAcknowledged || saved.AcknowledgedBy != "ops" {
		t.Errorf("acknowledgement not persisted: %+v", saved)
	}

	evs := drainEvents(ch)
	if len(evs) != 1 || evs[0].Type != events.TypeAcknowledged {
		t.Fatalf("expected one acknowledged event, got %v", evs)
	}
	snapshot, ok := evs[0].Payload.(models.Alert)
	if !ok {
		t.Fatalf("acknowledged payload must be the full rule snapshot, got %T", evs[0].Payload)
	}
	if snapshot.AcknowledgedBy != "ops" {
		t.Errorf("snapshot missing acknowledging actor: %+v", snapshot)
	}
}
