package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bookbite/internal/engine"
	"bookbite/internal/events"

	"github.com/rs/zerolog"
)

// Notification is one message for a diner about their reservation.
type Notification struct {
	Event         string    `json:"event"`
	ReservationID int64     `json:"reservation_id"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	Attempts      int       `json:"attempts"`
	CreatedAt     time.Time `json:"created_at"`
}

// Notifier delivers a notification over some channel.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// LogNotifier prints notifications instead of sending them. It is the
// delivery channel when no mail relay is configured.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Send(_ context.Context, n Notification) error {
	l.logger.Info().
		Int64("reservation_id", n.ReservationID).
		Str("event", n.Event).
		Str("to", n.recipient()).
		Str("subject", n.Subject).
		Str("body", n.Body).
		Msg("notification")
	return nil
}

func (n Notification) recipient() string {
	if n.Email != "" {
		return n.Email
	}
	return n.Phone
}

// Compose renders the diner message for a reservation event. It returns false
// when the event has no message or the reservation carries no contact.
func Compose(eventType string, p events.ReservationEventPayload) (Notification, bool) {
	if p.ContactEmail == "" && p.ContactPhone == "" {
		return Notification{}, false
	}

	when := fmt.Sprintf("%s from %s to %s", p.Date, short(p.StartTime), short(p.EndTime))
	n := Notification{
		Event:         eventType,
		ReservationID: p.ReservationID,
		Email:         p.ContactEmail,
		Phone:         p.ContactPhone,
	}

	var body strings.Builder
	switch eventType {
	case events.EventReservationCreated:
		n.Subject = "Please confirm your reservation"
		fmt.Fprintf(&body, "We are holding table %d for %d guests on %s.", p.TableID, p.GuestCount, when)
		if p.FeeCents > 0 {
			fmt.Fprintf(&body, " Booking fee: %s.", engine.Money(p.FeeCents))
		}
		if p.Token != "" {
			fmt.Fprintf(&body, " Confirmation code: %s.", p.Token)
		}
	case events.EventReservationConfirmed:
		n.Subject = "Your reservation is confirmed"
		fmt.Fprintf(&body, "See you on %s at table %d.", when, p.TableID)
	case events.EventReservationCancelled:
		n.Subject = "Your reservation was cancelled"
		fmt.Fprintf(&body, "The reservation for %s has been cancelled.", when)
	case events.EventReservationCompleted:
		n.Subject = "Thank you for dining with us"
		fmt.Fprintf(&body, "We hope you enjoyed your visit on %s.", p.Date)
	default:
		return Notification{}, false
	}
	n.Body = body.String()
	return n, true
}

// short trims HH:MM:SS to HH:MM.
func short(t string) string {
	if len(t) == 8 && strings.HasSuffix(t, ":00") {
		return t[:5]
	}
	return t
}
