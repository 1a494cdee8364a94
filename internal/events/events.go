package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"offer-tracker/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	EventOfferCreated      EventType = "offer.created"
	EventOfferUpdated      EventType = "offer.updated"
	EventOfferDeleted      EventType = "offer.deleted"
	EventFollowupDue       EventType = "followup.due"
	EventFollowupCompleted EventType = "followup.completed"
	EventSettingsUpdated   EventType = "settings.updated"
	EventDataCleared       EventType = "data.cleared"
	EventGoalReminder      EventType = "goal.reminder"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      any
}

// OfferData carries the offer affected by an offer or follow-up event.
type OfferData struct {
	Offer models.Offer
}

// SettingsData carries the settings after an update.
type SettingsData struct {
	Settings models.UserSettings
}

// GoalData carries today's offer count when the daily goal reminder fires.
type GoalData struct {
	Today int
	Goal  int
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
		logger:   slog.Default(),
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return
	}
	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers. Handlers run asynchronously
// and must not rely on ctx outliving the publishing call.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data any) {
	if m == nil {
		return
	}

	m.mu.RLock()
	enabled := m.enabled
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if !enabled || len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	hctx := context.WithoutCancel(ctx)
	for _, handler := range handlers {
		m.wg.Add(1)
		go func(h Handler) {
			defer m.wg.Done()
			if err := h(hctx, event); err != nil {
				m.logger.Warn("event handler failed", "event", string(eventType), "error", err)
			}
		}(handler)
	}
}

// PublishOffer publishes an offer-scoped event.
func (m *Manager) PublishOffer(ctx context.Context, eventType EventType, offer models.Offer) {
	m.Publish(ctx, eventType, OfferData{Offer: offer})
}

// PublishSettingsUpdated publishes a settings updated event.
func (m *Manager) PublishSettingsUpdated(ctx context.Context, settings models.UserSettings) {
	m.Publish(ctx, EventSettingsUpdated, SettingsData{Settings: settings})
}

// Wait blocks until every handler started so far has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown disables publishing and waits for running handlers.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
	m.mu.Unlock()

	m.wg.Wait()
}
