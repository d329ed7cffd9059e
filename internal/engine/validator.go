package engine

import (
	"regexp"
	"strings"
	"time"

	"bookbite/internal/models"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidatedBooking is an accepted request, ready to be persisted.
type ValidatedBooking struct {
	Request           models.BookingRequest `json:"request"`
	Table             models.Table          `json:"table"`
	Date              string                `json:"date"`
	Interval          Interval              `json:"interval"`
	Fee               Money                 `json:"fee"`
	Hours             Hours                 `json:"hours"`
	FallbackHoursUsed bool                  `json:"fallbackHoursUsed"`
}

// ValidateBooking checks req with the default policy.
func ValidateBooking(req models.BookingRequest, table models.Table, hours Hours, existing []models.Reservation, now time.Time) (*ValidatedBooking, error) {
	return std.ValidateBooking(req, table, hours, existing, now)
}

// ValidateBooking runs every booking rule and returns either the accepted
// booking or ValidationErrors listing all violations.
func (e *Engine) ValidateBooking(req models.BookingRequest, table models.Table, hours Hours, existing []models.Reservation, now time.Time) (*ValidatedBooking, error) {
	return e.validate(req, table, hours, existing, now, 0)
}

// ValidateChange validates new details for an existing reservation, which does
// not conflict with itself.
func (e *Engine) ValidateChange(reservationID int64, req models.BookingRequest, table models.Table, hours Hours, existing []models.Reservation, now time.Time) (*ValidatedBooking, error) {
	return e.validate(req, table, hours, existing, now, reservationID)
}

func (e *Engine) validate(req models.BookingRequest, table models.Table, hours Hours, existing []models.Reservation, now time.Time, excludeID int64) (*ValidatedBooking, error) {
	var v ValidationErrors
	effective, fallback := e.effectiveHours(hours)

	switch {
	case req.TableID == 0:
		v.add(CodeMissingField, "table_id", "table is required")
	case req.TableID != table.ID:
		// the request and the selected table disagree
		v.add(CodeMissingField, "table_id", "request names table %d but the booking is for table %d", req.TableID, table.ID)
	}

	day, dateOK := checkDate(&v, req.Date, now)
	start, startOK := checkTime(&v, "start_time", req.StartTime)
	end, endOK := checkTime(&v, "end_time", req.EndTime)
	interval := Interval{Start: start, End: end}
	if startOK && endOK {
		e.checkInterval(&v, interval, effective)
	}

	checkGuests(&v, req.GuestCount, table)
	checkContact(&v, req.ContactPhone, req.ContactEmail)

	if dateOK && startOK && endOK && interval.Valid() {
		q := AvailabilityQuery{
			TableID:              table.ID,
			Date:                 req.Date,
			Candidate:            interval,
			NowIfToday:           NowIfToday(req.Date, now),
			GraceMinutes:         e.policy.SameDayGraceMinutes,
			ExcludeReservationID: excludeID,
		}
		if !CheckAvailability(q, existing) {
			v.add(CodeSlotUnavailable, "start_time", "%s-%s on %s is not available", start, end, day.Format(DateLayout))
		}
	}

	e.observer.Validated(v)
	if len(v) > 0 {
		e.logger.Debug().
			Int64("table_id", table.ID).
			Str("date", req.Date).
			Interface("violations", v.Codes()).
			Msg("booking rejected")
		return nil, v
	}

	fee, err := e.Fee(table.SeatCount)
	if err != nil {
		return nil, err
	}

	return &ValidatedBooking{
		Request:           req,
		Table:             table,
		Date:              day.Format(DateLayout),
		Interval:          interval,
		Fee:               fee,
		Hours:             effective,
		FallbackHoursUsed: fallback,
	}, nil
}

// checkDate compares calendar dates only; a booking for later today is fine here
// and the same-day cutoff is left to the availability check.
func checkDate(v *ValidationErrors, raw string, now time.Time) (time.Time, bool) {
	if strings.TrimSpace(raw) == "" {
		v.add(CodeMissingField, "date", "date is required")
		return time.Time{}, false
	}
	day, err := ParseDate(raw)
	if err != nil {
		v.add(CodeInvalidDateRange, "date", "date %q must be yyyy-mm-dd", raw)
		return time.Time{}, false
	}
	if day.Before(Today(now)) {
		v.add(CodeInvalidDateRange, "date", "date %s is in the past", raw)
		return day, false
	}
	return day, true
}

func checkTime(v *ValidationErrors, field, raw string) (TimeOfDay, bool) {
	if strings.TrimSpace(raw) == "" {
		v.add(CodeMissingField, field, "%s is required", strings.ReplaceAll(field, "_", " "))
		return 0, false
	}
	t, err := ParseTime(raw)
	if err != nil {
		v.add(CodeInvalidDateRange, field, "%q is not a valid HH:MM time", raw)
		return 0, false
	}
	return t, true
}

func (e *Engine) checkInterval(v *ValidationErrors, iv Interval, hours Hours) {
	if !iv.Valid() {
		v.add(CodeInvalidDateRange, "end_time", "end time %s must be after start time %s", iv.End, iv.Start)
	} else if d := iv.Minutes(); d < e.policy.MinDurationMinutes || d > e.policy.MaxDurationMinutes {
		v.add(CodeDurationOutOfBounds, "end_time", "stay of %d minutes must be between %d and %d minutes",
			d, e.policy.MinDurationMinutes, e.policy.MaxDurationMinutes)
	}
	if iv.Start < hours.Opening {
		v.add(CodeInvalidDateRange, "start_time", "start time %s is before opening time %s", iv.Start, hours.Opening)
	}
	if iv.End > hours.Closing {
		v.add(CodeInvalidDateRange, "end_time", "end time %s is after closing time %s", iv.End, hours.Closing)
	}
}

func checkGuests(v *ValidationErrors, guests int, table models.Table) {
	switch {
	case guests <= 0:
		v.add(CodeMissingField, "guest_count", "guest count must be a positive number")
	case table.SeatCount <= 0:
		v.add(CodeCapacityExceeded, "guest_count", "table %d has no seats", table.ID)
	case guests > table.SeatCount:
		v.add(CodeCapacityExceeded, "guest_count", "%d guests exceed the %d seats of table %d", guests, table.SeatCount, table.ID)
	}
}

func checkContact(v *ValidationErrors, phone, email string) {
	if strings.TrimSpace(phone) == "" {
		v.add(CodeMissingField, "contact_phone", "phone number is required")
	}
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		v.add(CodeMissingField, "contact_email", "email address is required")
	case !emailPattern.MatchString(email):
		v.add(CodeInvalidContactInfo, "contact_email", "%q is not a valid email address", email)
	}
}
