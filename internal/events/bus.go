// Package events provides the in-process pub/sub bus over which the pipeline
// publishes verdicts and the red-team framework publishes assessments.
// Envelopes follow the CNCF CloudEvents 1.0 specification so downstream
// consumers (incentive ledger, webhook dispatcher, websocket stream) share
// one wire shape.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by this service.
const (
	TypeVerdictAccepted     = "verdict.accepted"
	TypeVerdictRejected     = "verdict.rejected"
	TypeAssessmentCompleted = "assessment.completed"
)

// Emitter is the interface for publishing CloudEvents.
type Emitter interface {
	Emit(eventType, subject string, data interface{})
}

// CloudEvent is the CloudEvents 1.0 envelope.
type CloudEvent struct {
	SpecVersion string      `json:"specversion"`
	Type        string      `json:"type"`
	Source      string      `json:"source"`
	ID          string      `json:"id"`
	Time        time.Time   `json:"time"`
	Subject     string      `json:"subject,omitempty"`
	Data        interface{} `json:"data"`
}

// NewCloudEvent creates a CloudEvents 1.0 compliant envelope.
func NewCloudEvent(eventType, source, subject string, data interface{}) *CloudEvent {
	return &CloudEvent{
		SpecVersion: "1.0",
		Type:        eventType,
		Source:      source,
		ID:          uuid.NewString(),
		Time:        time.Now(),
		Subject:     subject,
		Data:        data,
	}
}

// JSON serializes the event.
func (ce *CloudEvent) JSON() ([]byte, error) {
	return json.Marshal(ce)
}

// SSEFormat returns the event in Server-Sent Events framing.
func (ce *CloudEvent) SSEFormat() ([]byte, error) {
	data, err := json.Marshal(ce)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\nid: %s\n\n", ce.Type, data, ce.ID)), nil
}

// Bus is an in-process pub/sub event bus. Subscribers receive CloudEvents in
// real time; a full subscriber channel drops rather than blocks the pipeline.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *CloudEvent // eventType -> channels
	allSubs     []chan *CloudEvent
	source      string
	bufferSize  int
}

// NewBus creates an event bus publishing from the given source URI.
func NewBus(source string) *Bus {
	return &Bus{
		subscribers: make(map[string][]chan *CloudEvent),
		source:      source,
		bufferSize:  100,
	}
}

// Subscribe creates a channel that receives events of the given types.
// Pass no types to receive all events.
func (b *Bus) Subscribe(eventTypes ...string) chan *CloudEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *CloudEvent, b.bufferSize)
	if len(eventTypes) == 0 {
		b.allSubs = append(b.allSubs, ch)
	} else {
		for _, et := range eventTypes {
			b.subscribers[et] = append(b.subscribers[et], ch)
		}
	}
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (b *Bus) Unsubscribe(ch chan *CloudEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for et, subs := range b.subscribers {
		b.subscribers[et] = without(subs, ch)
	}
	b.allSubs = without(b.allSubs, ch)
	close(ch)
}

// Publish delivers an event to all matching subscribers.
func (b *Bus) Publish(event *CloudEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[event.Type] {
		select {
		case ch <- event:
		default: // channel full, drop
		}
	}
	for _, ch := range b.allSubs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Emit creates and publishes an event.
func (b *Bus) Emit(eventType, subject string, data interface{}) {
	b.Publish(NewCloudEvent(eventType, b.source, subject, data))
}

// SubscriberCount returns the number of active subscriber channels.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := len(b.allSubs)
	for _, subs := range b.subscribers {
		count += len(subs)
	}
	return count
}

func without(subs []chan *CloudEvent, drop chan *CloudEvent) []chan *CloudEvent {
	filtered := subs[:0:0]
	for _, s := range subs {
		if s != drop {
			filtered = append(filtered, s)
		}
	}
	return filtered
}
