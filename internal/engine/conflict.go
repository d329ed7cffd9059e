package engine

import (
	"sort"
	"time"

	"bookbite/internal/models"
)

// Interval is a half-open [Start, End) stretch of a day.
type Interval struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

func (i Interval) Valid() bool {
	return i.Start < i.End
}

func (i Interval) Minutes() int {
	return int(i.End - i.Start)
}

// Overlaps is the only conflict predicate. Touching intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && i.End > o.Start
}

// ReservationInterval parses a record's start and end times.
func ReservationInterval(r models.Reservation) (Interval, bool) {
	start, err := ParseTime(r.StartTime)
	if err != nil {
		return Interval{}, false
	}
	end, err := ParseTime(r.EndTime)
	if err != nil {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// AvailabilityQuery describes one candidate reservation.
type AvailabilityQuery struct {
	// TableID restricts existing records to one table; 0 means the caller
	// already passed a single table's records.
	TableID   int64
	Date      string
	Candidate Interval
	// NowIfToday is the current minute when Date is today; nil disables the
	// same-day cutoff.
	NowIfToday   *TimeOfDay
	GraceMinutes int
	// ExcludeReservationID lets a reservation being moved ignore itself.
	ExcludeReservationID int64
}

// IsSlotAvailable reports whether candidate is free on date given the existing
// records, using the default same-day grace period.
func IsSlotAvailable(candidate Interval, date string, existing []models.Reservation, nowIfToday *TimeOfDay) bool {
	return CheckAvailability(AvailabilityQuery{
		Date:         date,
		Candidate:    candidate,
		NowIfToday:   nowIfToday,
		GraceMinutes: DefaultSameDayGraceMinutes,
	}, existing)
}

// CheckAvailability never fails: anything that is not a bookable slot is
// reported as unavailable.
func CheckAvailability(q AvailabilityQuery, existing []models.Reservation) bool {
	if !q.Candidate.Valid() {
		return false
	}
	if q.NowIfToday != nil && q.Candidate.Start < AddMinutes(*q.NowIfToday, q.GraceMinutes) {
		return false
	}

	day, err := ParseDate(q.Date)
	if err != nil {
		return false
	}

	for _, r := range existing {
		if !occupies(r, q, day) {
			continue
		}
		iv, ok := ReservationInterval(r)
		if !ok {
			// a confirmed record we cannot read blocks the whole day
			return false
		}
		if q.Candidate.Overlaps(iv) {
			return false
		}
	}
	return true
}

func occupies(r models.Reservation, q AvailabilityQuery, day time.Time) bool {
	if r.Status != models.StatusConfirmed {
		return false
	}
	if q.TableID != 0 && r.TableID != q.TableID {
		return false
	}
	if q.ExcludeReservationID != 0 && r.ID == q.ExcludeReservationID {
		return false
	}
	d, err := ParseDate(r.Date)
	if err != nil {
		return false
	}
	return d.Equal(day)
}

// SlotStatus is a generated start time annotated for display.
type SlotStatus struct {
	Start     TimeOfDay `json:"start"`
	End       TimeOfDay `json:"end"`
	Available bool      `json:"available"`
	// FitsMinimumStay is false when a minimum stay starting here would run past closing.
	FitsMinimumStay bool `json:"fitsMinimumStay"`
}

// availableTables keeps the bookable tables that seat at least guests and are
// free for the query, smallest first.
func availableTables(tables []models.Table, existing []models.Reservation, q AvailabilityQuery, guests int) []models.Table {
	var out []models.Table
	for _, t := range tables {
		if !t.IsAvailable || t.SeatCount < guests {
			continue
		}
		tq := q
		tq.TableID = t.ID
		if CheckAvailability(tq, existing) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SeatCount == out[j].SeatCount {
			return out[i].ID < out[j].ID
		}
		return out[i].SeatCount < out[j].SeatCount
	})
	return out
}
