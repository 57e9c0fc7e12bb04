package alert

import (
	"sync"
	"time"

	"github.com/pulsewatch/internal/models"
)

// Decision is the outcome of feeding one sample into the state machine.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionTrigger
	DecisionResolve
)

func (d Decision) String() string {
	switch d {
	case DecisionTrigger:
		return "trigger"
	case DecisionResolve:
		return "resolve"
	default:
		return "none"
	}
}

type phase int

const (
	phaseClear phase = iota
	phasePending
	phaseFiring
)

type ruleState struct {
	phase phase
	since time.Time // anchor of the pending window, fixed at first detection
}

// StateMachine holds the per-rule debounce state. The map is process
// memory only; a rule mid-confirmation at shutdown restarts its window.
type StateMachine struct {
	mu     sync.Mutex
	states map[uint]*ruleState
}

func NewStateMachine() *StateMachine {
	return &StateMachine{
		states: make(map[uint]*ruleState),
	}
}

// Observe feeds the latest metric value for a rule and returns the
// resulting decision. A transient spike shorter than the confirm window
// never fires; a sustained breach fires exactly once per episode.
func (m *StateMachine) Observe(rule *models.Alert, value float64, now time.Time) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !rule.Enabled {
		// Disabled mid-flight: discard any pending or firing state silently.
		delete(m.states, rule.ID)
		return DecisionNone
	}

	st, ok := m.states[rule.ID]
	if !ok {
		st = &ruleState{}
		m.states[rule.ID] = st
	}

	if !rule.Evaluate(value) {
		prev := st.phase
		st.phase = phaseClear
		st.since = time.Time{}
		if prev == phaseFiring {
			return DecisionResolve
		}
		// A discarded pending window resolves nothing; it never fired.
		return DecisionNone
	}

	switch st.phase {
	case phaseClear:
		st.phase = phasePending
		st.since = now
	case phasePending:
		if now.Sub(st.since) >= rule.ConfirmDuration() {
			st.phase = phaseFiring
			if rule.ShouldTrigger(rule.MetricType, value, now) {
				return DecisionTrigger
			}
			// Cooldown suppressed: the rule is muted, not re-armed.
		}
	case phaseFiring:
		// Already notified for this episode.
	}
	return DecisionNone
}

// Forget drops the state for a rule, e.g. after deletion.
func (m *StateMachine) Forget(ruleID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, ruleID)
}

// Reset clears all state.
func (m *StateMachine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[uint]*ruleState)
}
