// Package bus implements the small publish/subscribe registry that connects
// configuration and data changes to their downstream consumers (action
// enablement, the stale-features indicator, table refreshes).
package bus

import "sync"

// Topic names one kind of change notification.
type Topic string

const (
	// OntologySet / OntologyUnset announce the stimulus ontology becoming
	// available / unavailable. Set carries the new value; Unset carries nil.
	OntologySet   Topic = "ontology-set"
	OntologyUnset Topic = "ontology-unset"

	// CriteriaSet / CriteriaUnset announce the QC criteria becoming
	// available / unavailable.
	CriteriaSet   Topic = "criteria-set"
	CriteriaUnset Topic = "criteria-unset"

	// DatasetCommitted is published only after a full reconciliation has
	// completed successfully. A failed load never publishes it, which is
	// what keeps downstream stale/enabled indicators at their prior value.
	DatasetCommitted Topic = "dataset-committed"

	// ManualStateChanged carries the updated record and state of a sweep
	// whose manual QC verdict was just changed.
	ManualStateChanged Topic = "manual-state-changed"
)

// Handler receives the payload published on a topic.
type Handler func(payload interface{})

// Bus delivers published payloads synchronously to every current subscriber
// of the topic, in subscription order. There is no buffering or replay: a
// subscriber registered after a publish never sees it.
type Bus struct {
	mu   sync.Mutex
	subs map[Topic][]Handler
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[Topic][]Handler)}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic Topic, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], h)
	b.mu.Unlock()
}

// Publish invokes every handler currently subscribed to the topic with the
// payload. Handlers run on the caller's goroutine; Publish returns once the
// last handler has.
func (b *Bus) Publish(topic Topic, payload interface{}) {
	b.mu.Lock()
	handlers := append([]Handler(nil), b.subs[topic]...)
	b.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}
