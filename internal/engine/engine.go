// Package engine holds the table-availability and booking-validation rules
// shared by every bookbite client. It performs no I/O: callers load restaurant,
// table and reservation records and pass them in, together with the current time.
package engine

import (
	"errors"
	"fmt"
	"time"

	"bookbite/internal/models"

	"github.com/rs/zerolog"
)

const (
	DefaultSlotStepMinutes     = 30
	DefaultMinDurationMinutes  = 60
	DefaultMaxDurationMinutes  = 180
	DefaultSameDayGraceMinutes = 30
)

// Policy holds the business constants of the engine.
type Policy struct {
	SlotStepMinutes     int
	MinDurationMinutes  int
	MaxDurationMinutes  int
	SameDayGraceMinutes int
	DefaultHours        Hours
	Fees                FeeSchedule
}

func DefaultPolicy() Policy {
	return Policy{
		SlotStepMinutes:     DefaultSlotStepMinutes,
		MinDurationMinutes:  DefaultMinDurationMinutes,
		MaxDurationMinutes:  DefaultMaxDurationMinutes,
		SameDayGraceMinutes: DefaultSameDayGraceMinutes,
		DefaultHours:        DefaultHours,
		Fees:                DefaultFeeSchedule(),
	}
}

func (p Policy) Validate() error {
	if p.SlotStepMinutes <= 0 {
		return errors.New("slot step must be positive")
	}
	if p.MinDurationMinutes <= 0 || p.MaxDurationMinutes < p.MinDurationMinutes {
		return fmt.Errorf("invalid stay bounds %d..%d minutes", p.MinDurationMinutes, p.MaxDurationMinutes)
	}
	if p.SameDayGraceMinutes < 0 {
		return errors.New("same-day grace must not be negative")
	}
	if !p.DefaultHours.Valid() {
		return fmt.Errorf("invalid default hours %s-%s", p.DefaultHours.Opening, p.DefaultHours.Closing)
	}
	return p.Fees.Validate()
}

// Observer receives engine outcomes, e.g. for metrics.
type Observer interface {
	HoursFallback()
	Validated(violations ValidationErrors)
	Transitioned(from, to models.ReservationStatus, err error)
}

type nopObserver struct{}

func (nopObserver) HoursFallback() {}

func (nopObserver) Validated(ValidationErrors) {}

func (nopObserver) Transitioned(_, _ models.ReservationStatus, _ error) {}

// Engine binds a Policy to a logger and an Observer. It keeps no state between
// calls and is safe for concurrent use.
type Engine struct {
	policy   Policy
	logger   zerolog.Logger
	observer Observer
}

type Option func(*Engine)

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

func New(policy Policy, logger *zerolog.Logger, opts ...Option) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("engine policy: %w", err)
	}

	e := &Engine{
		policy:   policy,
		logger:   zerolog.Nop(),
		observer: nopObserver{},
	}
	if logger != nil {
		e.logger = logger.With().Str("component", "engine").Logger()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

var std = &Engine{policy: DefaultPolicy(), logger: zerolog.Nop(), observer: nopObserver{}}

// Default returns an engine with DefaultPolicy and no logging.
func Default() *Engine {
	return std
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// Slots generates candidate start times for hours. Malformed hours are replaced
// by the policy's default window, which is logged and flagged on the plan.
func (e *Engine) Slots(hours Hours) SlotPlan {
	plan := generateSlots(hours, e.policy.SlotStepMinutes, e.policy.DefaultHours)
	if plan.FallbackUsed {
		e.fallbackUsed(hours)
	}
	return plan
}

func (e *Engine) fallbackUsed(hours Hours) {
	e.logger.Warn().
		Str("opening", hours.Opening.String()).
		Str("closing", hours.Closing.String()).
		Str("fallback_opening", e.policy.DefaultHours.Opening.String()).
		Str("fallback_closing", e.policy.DefaultHours.Closing.String()).
		Msg("operating hours malformed, using default window")
	e.observer.HoursFallback()
}

// effectiveHours returns hours, or the default window when hours are malformed.
func (e *Engine) effectiveHours(hours Hours) (Hours, bool) {
	if hours.Valid() {
		return hours, false
	}
	e.fallbackUsed(hours)
	return e.policy.DefaultHours, true
}

// EndTimes lists the end times a diner may pick for a reservation at start.
func (e *Engine) EndTimes(hours Hours, start TimeOfDay) []TimeOfDay {
	effective, _ := e.effectiveHours(hours)
	return EndTimeOptions(effective, start, e.policy.MinDurationMinutes, e.policy.MaxDurationMinutes, e.policy.SlotStepMinutes)
}

// IsSlotAvailable checks candidate against one table's records using the
// policy's same-day grace period.
func (e *Engine) IsSlotAvailable(candidate Interval, tableID int64, date string, existing []models.Reservation, nowIfToday *TimeOfDay) bool {
	return CheckAvailability(AvailabilityQuery{
		TableID:      tableID,
		Date:         date,
		Candidate:    candidate,
		NowIfToday:   nowIfToday,
		GraceMinutes: e.policy.SameDayGraceMinutes,
	}, existing)
}

// SlotAvailability annotates every generated start time with whether a
// minimum-length stay starting there is free.
func (e *Engine) SlotAvailability(hours Hours, tableID int64, date string, existing []models.Reservation, now time.Time) ([]SlotStatus, SlotPlan) {
	plan := e.Slots(hours)
	nowIfToday := NowIfToday(date, now)

	out := make([]SlotStatus, 0, len(plan.Slots))
	for _, start := range plan.Slots {
		end := AddMinutes(start, e.policy.MinDurationMinutes)
		out = append(out, SlotStatus{
			Start:           start,
			End:             end,
			Available:       e.IsSlotAvailable(Interval{Start: start, End: end}, tableID, date, existing, nowIfToday),
			FitsMinimumStay: end <= plan.Hours.Closing,
		})
	}
	return out, plan
}

// Bookable reports whether candidate lies within hours and its length is an
// allowed stay. Malformed hours are replaced by the default window.
func (e *Engine) Bookable(hours Hours, candidate Interval) bool {
	effective, _ := e.effectiveHours(hours)
	if !candidate.Valid() || candidate.Start < effective.Opening || candidate.End > effective.Closing {
		return false
	}
	d := candidate.Minutes()
	return d >= e.policy.MinDurationMinutes && d <= e.policy.MaxDurationMinutes
}

// AvailableTables returns the tables of one restaurant that fit guests and are
// free for candidate on date. existing may mix records of all those tables.
// A candidate that is not bookable within hours matches no table.
func (e *Engine) AvailableTables(tables []models.Table, existing []models.Reservation, hours Hours, date string, candidate Interval, guests int, now time.Time) []models.Table {
	if !e.Bookable(hours, candidate) {
		return nil
	}
	return availableTables(tables, existing, AvailabilityQuery{
		Date:         date,
		Candidate:    candidate,
		NowIfToday:   NowIfToday(date, now),
		GraceMinutes: e.policy.SameDayGraceMinutes,
	}, guests)
}

func (e *Engine) Fee(seatCount int) (Money, error) {
	return e.policy.Fees.Fee(seatCount)
}

// Quote prices a table and applies an optional promo code.
func (e *Engine) Quote(seatCount int, promo *models.PromoCode, now time.Time) (Quote, error) {
	fee, err := e.Fee(seatCount)
	if err != nil {
		return Quote{}, err
	}
	return ApplyPromo(fee, promo, now)
}

// Transition applies a lifecycle move and reports it to the observer.
func (e *Engine) Transition(record models.Reservation, to models.ReservationStatus, now time.Time) (models.Reservation, error) {
	next, err := Transition(record, to, now)
	e.observer.Transitioned(record.Status, to, err)
	if err != nil {
		e.logger.Info().Err(err).Int64("reservation_id", record.ID).Msg("transition refused")
	}
	return next, err
}
