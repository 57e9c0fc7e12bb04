package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/pulsewatch/internal/models"
)

type Type string

const (
	TypeTriggered    Type = "alert:triggered"
	TypeResolved     Type = "alert:resolved"
	TypeAcknowledged Type = "alert:acknowledged"
)

// GlobalRoom receives every lifecycle event in addition to the
// project-scoped room.
const GlobalRoom = "global"

// ProjectRoom names the room scoped to one project.
func ProjectRoom(projectID uint) string {
	return fmt.Sprintf("project:%d", projectID)
}

// Event is one lifecycle notice pushed to subscribers.
type Event struct {
	Type      Type  `json:"type"`
	ProjectID uint  `json:"project_id"`
	Payload   any   `json:"payload"`
}

// TriggeredPayload is the body of an alert:triggered event.
type TriggeredPayload struct {
	AlertID   uint            `json:"alertId"`
	ProjectID uint            `json:"projectId"`
	Name      string          `json:"name"`
	Severity  models.Severity `json:"severity"`
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
}

// ResolvedPayload is the body of an alert:resolved event.
type ResolvedPayload struct {
	AlertID   uint      `json:"alertId"`
	ProjectID uint      `json:"projectId"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// An alert:acknowledged event carries the full rule snapshot as payload.

const subscriberBuffer = 16

// Broadcaster is an in-process publish/subscribe fabric with room-scoped
// delivery. Slow subscribers drop events rather than stall publishers.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe registers a listener on a room. The returned cancel func is
// idempotent and closes the channel.
func (b *Broadcaster) Subscribe(room string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[room] == nil {
		b.subs[room] = make(map[chan Event]struct{})
	}
	b.subs[room][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[room], ch)
			if len(b.subs[room]) == 0 {
				delete(b.subs, room)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an event to the project-scoped room and to the global
// room.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.deliver(ProjectRoom(ev.ProjectID), ev)
	b.deliver(GlobalRoom, ev)
}

func (b *Broadcaster) deliver(room string, ev Event) {
	for ch := range b.subs[room] {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full; drop rather than block a publisher.
		}
	}
}
