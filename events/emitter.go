// Package events provides a small synchronous pub/sub broker nodes use
// to notify internal observers (logging, future RPC subscriptions)
// about protocol-level occurrences without coupling the emitting
// package to a concrete subscriber.
package events

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// EventType labels what happened.
type EventType string

const (
	EventBlockCommitted       EventType = "block_committed"
	EventEpochRotated         EventType = "epoch_rotated"
	EventLeaderTimedOut       EventType = "leader_timed_out"
	EventChallengeIssued      EventType = "challenge_issued"
	EventChallengeAdjudicated EventType = "challenge_adjudicated"
	EventReliabilitySignal    EventType = "reliability_signal_applied"
)

// Event carries a typed payload emitted after a protocol-level change.
type Event struct {
	Type EventType      `json:"type"`
	Data map[string]any `json:"data"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously. Each
// handler is guarded by panic recovery so a misbehaving subscriber
// cannot crash the node or halt block production.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("component", "events").WithField("event", ev.Type).Errorf("handler panicked: %v", r)
				}
			}()
			h(ev)
		}()
	}
}
