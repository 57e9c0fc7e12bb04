package alert

import (
	"testing"
	"time"

	"github.com/pulsewatch/internal/models"
)

func testRule(t *testing.T) *models.Alert {
	t.Helper()
	rule, err := models.NewAlert(1, "High CPU", "cpu_percent", models.ConditionGreaterThan, 80, models.SeverityHigh)
	if err != nil {
		t.Fatalf("failed to build rule: %v", err)
	}
	rule.ID = 1
	rule.DurationSeconds = 60
	return rule
}

func TestSustainedBreachFiresOnce(t *testing.T) {
	m := NewStateMachine()
	rule := testRule(t)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if d := m.Observe(rule, 82, t0); d != DecisionNone {
		t.Fatalf("t=0s: expected none, got %v", d)
	}
	if d := m.Observe(rule, 82, t0.Add(30*time.Second)); d != DecisionNone {
		t.Fatalf("t=30s: expected none (still pending), got %v", d)
	}
	if d := m.Observe(rule, 82, t0.Add(65*time.Second)); d != DecisionTrigger {
		t.Fatalf("t=65s: expected trigger, got %v", d)
	}
	// Already firing: no repeat per tick.
	if d := m.Observe(rule, 82, t0.Add(125*time.Second)); d != DecisionNone {
		t.Fatalf("t=125s: expected none while firing, got %v", d)
	}
}

func TestTransientSpikeNeverFires(t *testing.T) {
	m := NewStateMachine()
	rule := testRule(t)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// True for 3 ticks but under 60 seconds total.
	for i, offset := range []time.Duration{0, 20 * time.Second, 40 * time.Second} {
		if d := m.Observe(rule, 85, t0.Add(offset)); d != DecisionNone {
			t.Fatalf("tick %d: expected none, got %v", i, d)
		}
	}
	// Recovers before confirmation: pending discarded silently.
	if d := m.Observe(rule, 70, t0.Add(50*time.Second)); d != DecisionNone {
		t.Fatalf("recovery from pending must not emit resolve, got %v", d)
	}
	// A fresh breach starts a fresh window.
	if d := m.Observe(rule, 85, t0.Add(60*time.Second)); d != DecisionNone {
		t.Fatalf("new pending window should not fire immediately, got %v", d)
	}
}

func TestPendingAnchorDoesNotReset(t *testing.T) {
	m := NewStateMachine()
	rule := testRule(t)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	m.Observe(rule, 85, t0)
	m.Observe(rule, 85, t0.Add(30*time.Second))
	// 70s after first detection; if the anchor reset at each tick this
	// would still be pending.
	if d := m.Observe(rule, 85, t0.Add(70*time.Second)); d != DecisionTrigger {
		t.Fatalf("expected trigger 70s after first detection, got %v", d)
	}
}

func TestResolveAfterFiring(t *testing.T) {
	m := NewStateMachine()
	rule := testRule(t)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	m.Observe(rule, 82, t0)
	if d := m.Observe(rule, 82, t0.Add(65*time.Second)); d != DecisionTrigger {
		t.Fatalf("expected trigger, got %v", d)
	}
	if d := m.Observe(rule, 70, t0.Add(125*time.Second)); d != DecisionResolve {
		t.Fatalf("expected resolve after recovery, got %v", d)
	}
	// Fully clear now.
	if d := m.Observe(rule, 70, t0.Add(185*time.Second)); d != DecisionNone {
		t.Fatalf("expected none when clear, got %v", d)
	}
}

func TestDisabledMidPendingProducesNoDecision(t *testing.T) {
	m := NewStateMachine()
	rule := testRule(t)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	m.Observe(rule, 85, t0)
	rule.Disable()

	if d := m.Observe(rule, 85, t0.Add(65*time.Second)); d != DecisionNone {
		t.Fatalf("disabled rule must produce no decision, got %v", d)
	}

	// Re-enabling starts over: state was discarded.
	rule.Enable()
	if d := m.Observe(rule, 85, t0.Add(70*time.Second)); d != DecisionNone {
		t.Fatalf("re-enabled rule must restart its window, got %v", d)
	}
}

func TestCooldownMutesCompletedWindow(t *testing.T) {
	m := NewStateMachine()
	rule := testRule(t)
	rule.CooldownMinutes = 5
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// A recent trigger puts the rule in cooldown.
	triggered := t0.Add(-time.Minute)
	rule.TriggeredAt = &triggered

	m.Observe(rule, 85, t0)
	if d := m.Observe(rule, 85, t0.Add(65*time.Second)); d != DecisionNone {
		t.Fatalf("completed window inside cooldown must stay silent, got %v", d)
	}
	// Muted, not re-armed: still no trigger afterwards until recovery.
	if d := m.Observe(rule, 85, t0.Add(10*time.Minute)); d != DecisionNone {
		t.Fatalf("muted episode must not fire later, got %v", d)
	}
	if d := m.Observe(rule, 70, t0.Add(11*time.Minute)); d != DecisionResolve {
		t.Fatalf("muted episode still resolves on recovery, got %v", d)
	}
}

func TestForgetDropsState(t *testing.T) {
	m := NewStateMachine()
	rule := testRule(t)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	m.Observe(rule, 85, t0)
	m.Forget(rule.ID)

	// Window restarted: 65s after the original detection is only the
	// first tick of a fresh window.
	if d := m.Observe(rule, 85, t0.Add(65*time.Second)); d != DecisionNone {
		t.Fatalf("forgotten rule must restart its window, got %v", d)
	}
}
