package events

import (
	"context"
	"log"
	"sync"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// EventOffersIngested is emitted after a batch upsert completes
	EventOffersIngested EventType = "offers.ingested"
	// EventOffersReaped is emitted when stale rows are removed for a card group
	EventOffersReaped EventType = "offers.reaped"
	// EventOfferHighlighted is emitted when a user toggles an offer's highlight
	EventOfferHighlighted EventType = "offer.highlighted"
	// EventOffersPurged is emitted on a bulk delete
	EventOffersPurged EventType = "offers.purged"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// OffersIngestedData contains data for batch ingestion events. Sources
// holds the per-source row counts, since a batch may mix sources.
type OffersIngestedData struct {
	UserID  string
	Sources map[string]int
	Count   int
}

// OffersReapedData contains data for stale-reap events.
type OffersReapedData struct {
	UserID  string
	CardNum string
	Deleted int
}

// OfferHighlightedData contains data for highlight toggle events.
type OfferHighlightedData struct {
	UserID      string
	OfferID     string
	Highlighted bool
}

// OffersPurgedData contains data for bulk delete events.
type OffersPurgedData struct {
	UserID  string
	Source  string // "" when the whole account was purged
	Deleted int
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers. Handlers run
// asynchronously so the request path never blocks on them.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if !m.enabled {
		return
	}

	m.mu.RLock()
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	for _, handler := range handlers {
		go func(h Handler) {
			if err := h(ctx, event); err != nil {
				log.Printf("event handler error for %s: %v", eventType, err)
			}
		}(handler)
	}
}

// PublishOffersIngested publishes a batch ingestion event.
func (m *Manager) PublishOffersIngested(ctx context.Context, userID string, sources map[string]int, count int) {
	m.Publish(ctx, EventOffersIngested, OffersIngestedData{
		UserID:  userID,
		Sources: sources,
		Count:   count,
	})
}

// PublishOffersReaped publishes a stale-reap event.
func (m *Manager) PublishOffersReaped(ctx context.Context, userID, cardNum string, deleted int) {
	m.Publish(ctx, EventOffersReaped, OffersReapedData{
		UserID:  userID,
		CardNum: cardNum,
		Deleted: deleted,
	})
}

// PublishOfferHighlighted publishes a highlight toggle event.
func (m *Manager) PublishOfferHighlighted(ctx context.Context, userID, offerID string, highlighted bool) {
	m.Publish(ctx, EventOfferHighlighted, OfferHighlightedData{
		UserID:      userID,
		OfferID:     offerID,
		Highlighted: highlighted,
	})
}

// PublishOffersPurged publishes a bulk delete event.
func (m *Manager) PublishOffersPurged(ctx context.Context, userID, source string, deleted int) {
	m.Publish(ctx, EventOffersPurged, OffersPurgedData{
		UserID:  userID,
		Source:  source,
		Deleted: deleted,
	})
}

// Shutdown shuts down the event manager.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
}
