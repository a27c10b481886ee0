// Package events is an in-process pub/sub bus used to fan background
// state changes (agent status, audit events, approvals) out to the
// dashboard's SSE clients.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// EventType classifies bus events.
type EventType string

const (
	AgentStatus       EventType = "agent_status"
	CommandCardRun    EventType = "command_card_run"
	TopologyApproval  EventType = "topology_approval"
	AgentInteraction  EventType = "agent_interaction"
	TaskUpdated       EventType = "task_updated"
	ApprovalDecided   EventType = "approval_decided"
	LockChanged       EventType = "lock_changed"
	AuditAppended     EventType = "audit_appended"
)

// Event is one published message. ID is assigned by the bus.
type Event struct {
	ID        int64       `json:"id"`
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// JSON returns the event as a JSON byte slice, for SSE data lines.
func (e Event) JSON() []byte {
	data, _ := json.Marshal(e)
	return data
}

const defaultBufferSize = 128

type subscriber struct {
	ch chan Event
}

// Bus is a bounded-queue, drop-oldest in-process pub/sub bus.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	bufferSize  int
	nextID      int64
}

// NewBus returns a Bus whose subscriber channels have the given
// buffer capacity (default 128 if bufferSize < 1).
func NewBus(bufferSize int) *Bus {
	if bufferSize < 1 {
		bufferSize = defaultBufferSize
	}
	return &Bus{
		subscribers: make(map[string]*subscriber),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a new subscriber under id (replacing any prior
// one with the same id) and returns its receive channel.
func (b *Bus) Subscribe(id string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if prior, ok := b.subscribers[id]; ok {
		close(prior.ch)
	}
	sub := &subscriber{ch: make(chan Event, b.bufferSize)}
	b.subscribers[id] = sub
	return sub.ch
}

// Unsubscribe removes and closes the subscriber channel for id. Safe
// to call more than once for the same id.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribeLocked(id)
}

func (b *Bus) unsubscribeLocked(id string) {
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}

// Publish assigns the next monotonic event id and broadcasts to every
// current subscriber. A subscriber whose queue is full has its oldest
// entry dropped and the send retried once; if it is still full, the
// subscriber is considered dead and evicted.
func (b *Bus) Publish(eventType EventType, payload interface{}) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	evt := Event{ID: b.nextID, Type: eventType, Payload: payload, Timestamp: time.Now().UTC()}

	var dead []string
	for id, sub := range b.subscribers {
		if !trySend(sub.ch, evt) {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		b.unsubscribeLocked(id)
	}
	return evt
}

// trySend attempts to deliver evt to ch. If the queue is full it drops
// the oldest queued event and retries once; if still full after that,
// the subscriber is reported dead.
func trySend(ch chan Event, evt Event) bool {
	select {
	case ch <- evt:
		return true
	default:
	}

	select {
	case <-ch:
	default:
	}

	select {
	case ch <- evt:
		return true
	default:
		return false
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
