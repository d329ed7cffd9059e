package engine

import (
	"fmt"
	"time"

	"bookbite/internal/models"
)

// transitions is the reservation state machine. Staying in the same state is
// always allowed and is not listed.
var transitions = map[models.ReservationStatus][]models.ReservationStatus{
	models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed: {models.StatusCancelled, models.StatusCompleted},
	models.StatusCancelled: {},
	models.StatusCompleted: {},
}

// Statuses lists every reservation status in lifecycle order.
func Statuses() []models.ReservationStatus {
	return []models.ReservationStatus{
		models.StatusPending,
		models.StatusConfirmed,
		models.StatusCancelled,
		models.StatusCompleted,
	}
}

func IsValidStatus(s models.ReservationStatus) bool {
	_, ok := transitions[s]
	return ok
}

// ParseStatus converts the wire value into a status.
func ParseStatus(s string) (models.ReservationStatus, error) {
	status := models.ReservationStatus(s)
	if !IsValidStatus(status) {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return status, nil
}

// IsTerminal reports whether no other state is reachable from s.
func IsTerminal(s models.ReservationStatus) bool {
	allowed, ok := transitions[s]
	return !ok || len(allowed) == 0
}

// RequiresConfirmation reports whether moving into to should be confirmed by a
// person before it is committed. Both targets are final for the diner.
func RequiresConfirmation(to models.ReservationStatus) bool {
	return to == models.StatusCancelled || to == models.StatusCompleted
}

// EndsAt returns the moment record ends, reading its date and end time in loc.
func EndsAt(record models.Reservation, loc *time.Location) (time.Time, error) {
	day, err := ParseDate(record.Date)
	if err != nil {
		return time.Time{}, err
	}
	end, err := ParseTime(record.EndTime)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 0, int(end), 0, 0, loc), nil
}

// CanTransition reports whether a reservation in state from may move to to.
func CanTransition(from, to models.ReservationStatus, record models.Reservation, now time.Time) bool {
	return checkTransition(from, to, record, now) == nil
}

// Transition returns a copy of record moved to status to. The input is never
// modified; illegal requests return an error wrapping ErrIllegalTransition.
func Transition(record models.Reservation, to models.ReservationStatus, now time.Time) (models.Reservation, error) {
	if err := checkTransition(record.Status, to, record, now); err != nil {
		return record, err
	}
	if record.Status == to {
		return record, nil
	}

	next := record
	next.Status = to
	next.UpdatedAt = now
	return next, nil
}

func checkTransition(from, to models.ReservationStatus, record models.Reservation, now time.Time) error {
	if !IsValidStatus(from) || !IsValidStatus(to) {
		return &LifecycleError{From: from, To: to, Reason: "unknown status"}
	}
	if from == to {
		return nil
	}
	if IsTerminal(from) {
		return &LifecycleError{From: from, To: to, Reason: fmt.Sprintf("reservation is already %s", from)}
	}
	if !allowed(from, to) {
		return &LifecycleError{From: from, To: to, Reason: "transition not allowed"}
	}

	if to == models.StatusCompleted {
		end, err := EndsAt(record, now.Location())
		if err != nil {
			return &LifecycleError{From: from, To: to, Reason: fmt.Sprintf("cannot read end time: %v", err)}
		}
		if end.After(now) {
			return &LifecycleError{From: from, To: to, Reason: "reservation has not ended yet"}
		}
	}
	return nil
}

func allowed(from, to models.ReservationStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
