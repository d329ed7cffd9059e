package events

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"bookbite/internal/models"

	"github.com/rs/zerolog"
)

const (
	EventReservationCreated   = "reservation_created"
	EventReservationConfirmed = "reservation_confirmed"
	EventReservationCancelled = "reservation_cancelled"
	EventReservationCompleted = "reservation_completed"
)

// ForStatus maps a lifecycle status onto the event announcing it.
func ForStatus(status models.ReservationStatus) (string, bool) {
	switch status {
	case models.StatusPending:
		return EventReservationCreated, true
	case models.StatusConfirmed:
		return EventReservationConfirmed, true
	case models.StatusCancelled:
		return EventReservationCancelled, true
	case models.StatusCompleted:
		return EventReservationCompleted, true
	}
	return "", false
}

// ReservationEventPayload is the reservation snapshot sent to consumers.
type ReservationEventPayload struct {
	ReservationID int64                    `json:"reservation_id"`
	RestaurantID  int64                    `json:"restaurant_id"`
	TableID       int64                    `json:"table_id"`
	Date          string                   `json:"date"`
	StartTime     string                   `json:"start_time"`
	EndTime       string                   `json:"end_time"`
	GuestCount    int                      `json:"guest_count"`
	Status        models.ReservationStatus `json:"status"`
	PreviousState models.ReservationStatus `json:"previous_status,omitempty"`
	FeeCents      int64                    `json:"fee_cents"`
	ContactEmail  string                   `json:"contact_email,omitempty"`
	ContactPhone  string                   `json:"contact_phone,omitempty"`
	Token         string                   `json:"confirmation_token,omitempty"`
}

func NewReservationPayload(r models.Reservation, previous models.ReservationStatus) ReservationEventPayload {
	return ReservationEventPayload{
		ReservationID: r.ID,
		RestaurantID:  r.RestaurantID,
		TableID:       r.TableID,
		Date:          r.Date,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		GuestCount:    r.GuestCount,
		Status:        r.Status,
		PreviousState: previous,
		FeeCents:      r.FeeCents,
		ContactEmail:  r.ContactEmail,
		ContactPhone:  r.ContactPhone,
		Token:         r.ConfirmationToken,
	}
}

type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events. Handlers run synchronously
// on the publishing goroutine.
type EventBus struct {
	subscribers map[string][]EventHandler
	wildcard    []EventHandler
	mu          sync.RWMutex
	lastID      atomic.Int64
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type; "*" receives every event.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if eventType == "*" {
		b.wildcard = append(b.wildcard, handler)
		return
	}
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies every subscriber and returns their errors joined.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.wildcard...)
	b.mu.RUnlock()

	if event.ID == 0 {
		event.ID = b.lastID.Add(1)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}

// LogHandler writes every event it receives to logger at info level.
func LogHandler(logger *zerolog.Logger) EventHandler {
	return func(event *Event) error {
		logger.Info().
			Int64("event_id", event.ID).
			Str("event", event.Type).
			RawJSON("payload", event.Payload).
			Msg("reservation event")
		return nil
	}
}
