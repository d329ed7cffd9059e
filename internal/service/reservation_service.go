package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"bookbite/internal/database"
	"bookbite/internal/domain"
	"bookbite/internal/engine"
	"bookbite/internal/events"
	"bookbite/internal/export"
	"bookbite/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrInvalidRange is returned for an export window that is inverted or too long.
var ErrInvalidRange = errors.New("invalid date range")

type ReservationService struct {
	store    domain.Store
	cache    domain.SnapshotCache
	eventBus domain.EventPublisher
	engine   *engine.Engine
	loc      *time.Location
	now      func() time.Time
	logger   *zerolog.Logger
}

var _ domain.ReservationService = (*ReservationService)(nil)

// NewReservationService wires the engine to persistence. cache and eventBus may
// be nil; loc is the restaurants' local timezone (nil means UTC).
func NewReservationService(
	store domain.Store,
	cache domain.SnapshotCache,
	eventBus domain.EventPublisher,
	eng *engine.Engine,
	loc *time.Location,
	logger *zerolog.Logger,
) *ReservationService {
	if eng == nil {
		eng = engine.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ReservationService{
		store:    store,
		cache:    cache,
		eventBus: eventBus,
		engine:   eng,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
	}
}

// tableContext loads a table together with its restaurant's operating hours.
func (s *ReservationService) tableContext(ctx context.Context, tableID int64) (*models.Table, *models.Restaurant, engine.Hours, error) {
	table, err := s.store.GetTable(ctx, tableID)
	if err != nil {
		return nil, nil, engine.Hours{}, err
	}
	restaurant, err := s.store.GetRestaurant(ctx, table.RestaurantID)
	if err != nil {
		return nil, nil, engine.Hours{}, err
	}
	return table, restaurant, engine.ResolveHours(restaurant.OpeningTime, restaurant.ClosingTime), nil
}

// snapshot returns the reservations of one table on one date, served from the
// cache when possible. Cache failures degrade to a store read.
func (s *ReservationService) snapshot(ctx context.Context, tableID int64, date string) ([]models.Reservation, error) {
	if s.cache != nil {
		list, ok, err := s.cache.GetSnapshot(ctx, tableID, date)
		if err != nil {
			s.logger.Warn().Err(err).Int64("table_id", tableID).Str("date", date).Msg("snapshot cache read failed")
		} else if ok {
			return list, nil
		}
	}

	list, err := s.store.ListReservationsForTable(ctx, tableID, date)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetSnapshot(ctx, tableID, date, list); err != nil {
			s.logger.Warn().Err(err).Int64("table_id", tableID).Str("date", date).Msg("snapshot cache write failed")
		}
	}
	return list, nil
}

func (s *ReservationService) invalidate(ctx context.Context, tableID int64, date string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tableID, date); err != nil {
		s.logger.Error().Err(err).Int64("table_id", tableID).Str("date", date).Msg("snapshot invalidation failed")
	}
}

func (s *ReservationService) Slots(ctx context.Context, tableID int64, date string, now time.Time) (*domain.SlotsView, error) {
	if _, err := engine.ParseDate(date); err != nil {
		return nil, err
	}
	table, restaurant, hours, err := s.tableContext(ctx, tableID)
	if err != nil {
		return nil, err
	}
	existing, err := s.snapshot(ctx, tableID, date)
	if err != nil {
		return nil, err
	}

	statuses, plan := s.engine.SlotAvailability(hours, tableID, date, existing, now.In(s.loc))
	if !table.IsAvailable {
		for i := range statuses {
			statuses[i].Available = false
		}
	}

	return &domain.SlotsView{
		TableID:      tableID,
		RestaurantID: restaurant.ID,
		Date:         date,
		Hours:        plan.Hours,
		FallbackUsed: plan.FallbackUsed,
		Slots:        statuses,
	}, nil
}

func (s *ReservationService) EndTimes(ctx context.Context, tableID int64, date, start string, now time.Time) (*domain.EndTimesView, error) {
	if _, err := engine.ParseDate(date); err != nil {
		return nil, err
	}
	from, err := engine.ParseTime(start)
	if err != nil {
		return nil, err
	}
	table, _, hours, err := s.tableContext(ctx, tableID)
	if err != nil {
		return nil, err
	}
	existing, err := s.snapshot(ctx, tableID, date)
	if err != nil {
		return nil, err
	}

	nowIfToday := engine.NowIfToday(date, now.In(s.loc))
	ends := s.engine.EndTimes(hours, from)
	options := make([]domain.EndTimeOption, 0, len(ends))
	for _, end := range ends {
		iv := engine.Interval{Start: from, End: end}
		options = append(options, domain.EndTimeOption{
			End:       end,
			Minutes:   iv.Minutes(),
			Available: table.IsAvailable && s.engine.IsSlotAvailable(iv, tableID, date, existing, nowIfToday),
		})
	}

	return &domain.EndTimesView{TableID: tableID, Date: date, Start: from, EndTimes: options}, nil
}

// IsAvailable reports whether the table can take a new booking for start-end
// on date. Ranges outside opening hours or the stay bounds are not available.
func (s *ReservationService) IsAvailable(ctx context.Context, tableID int64, date, start, end string, now time.Time) (bool, error) {
	if _, err := engine.ParseDate(date); err != nil {
		return false, err
	}
	from, err := engine.ParseTime(start)
	if err != nil {
		return false, err
	}
	to, err := engine.ParseTime(end)
	if err != nil {
		return false, err
	}
	iv := engine.Interval{Start: from, End: to}
	table, _, hours, err := s.tableContext(ctx, tableID)
	if err != nil {
		return false, err
	}
	if !table.IsAvailable || !s.engine.Bookable(hours, iv) {
		return false, nil
	}
	existing, err := s.snapshot(ctx, tableID, date)
	if err != nil {
		return false, err
	}
	return s.engine.IsSlotAvailable(iv, tableID, date, existing, engine.NowIfToday(date, now.In(s.loc))), nil
}

// lookupPromo resolves a diner-entered code. Unknown codes are reported as
// ErrPromoInvalid.
func (s *ReservationService) lookupPromo(ctx context.Context, code string) (*models.PromoCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	promo, err := s.store.GetPromoCode(ctx, code)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown code %s", engine.ErrPromoInvalid, strings.ToUpper(code))
	}
	return promo, err
}

func (s *ReservationService) Quote(ctx context.Context, tableID int64, promoCode string, now time.Time) (*domain.QuoteView, error) {
	table, err := s.store.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	promo, err := s.lookupPromo(ctx, promoCode)
	if err != nil {
		return nil, err
	}
	quote, err := s.engine.Quote(table.SeatCount, promo, now.In(s.loc))
	if err != nil {
		return nil, err
	}
	return &domain.QuoteView{TableID: table.ID, SeatCount: table.SeatCount, Quote: quote}, nil
}

func (s *ReservationService) AvailableTables(ctx context.Context, restaurantID int64, date, start, end string, guests int, now time.Time) (*domain.AvailableTablesView, error) {
	if _, err := engine.ParseDate(date); err != nil {
		return nil, err
	}
	from, err := engine.ParseTime(start)
	if err != nil {
		return nil, err
	}
	to, err := engine.ParseTime(end)
	if err != nil {
		return nil, err
	}
	if guests <= 0 {
		return nil, fmt.Errorf("%w: %d guests", engine.ErrInvalidCapacity, guests)
	}
	restaurant, err := s.store.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	hours := engine.ResolveHours(restaurant.OpeningTime, restaurant.ClosingTime)

	tables, err := s.store.ListTables(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.ListReservationsForRestaurant(ctx, restaurantID, date)
	if err != nil {
		return nil, err
	}

	free := s.engine.AvailableTables(tables, existing, hours, date, engine.Interval{Start: from, End: to}, guests, now.In(s.loc))
	if free == nil {
		free = []models.Table{}
	}
	return &domain.AvailableTablesView{
		RestaurantID: restaurantID,
		Date:         date,
		Start:        engine.FormatTime(from),
		End:          engine.FormatTime(to),
		Guests:       guests,
		Tables:       free,
	}, nil
}

// Validate runs every booking rule against the current reservations of the
// requested table and prices the result.
func (s *ReservationService) Validate(ctx context.Context, req models.BookingRequest, now time.Time) (*domain.BookingView, error) {
	now = now.In(s.loc)
	if req.TableID == 0 {
		return nil, engine.ValidationErrors{{
			Code:    engine.CodeMissingField,
			Field:   "table_id",
			Message: "table is required",
		}}
	}
	table, _, hours, err := s.tableContext(ctx, req.TableID)
	if err != nil {
		return nil, err
	}

	existing, err := s.snapshot(ctx, table.ID, req.Date)
	if err != nil {
		return nil, err
	}
	booking, err := s.engine.ValidateBooking(req, *table, hours, existing, now)
	if !table.IsAvailable {
		closed := engine.Violation{
			Code:    engine.CodeSlotUnavailable,
			Field:   "table_id",
			Message: fmt.Sprintf("table %d is not taking reservations", table.ID),
		}
		var violations engine.ValidationErrors
		if err != nil && !errors.As(err, &violations) {
			return nil, err
		}
		return nil, append(violations, closed)
	}
	if err != nil {
		return nil, err
	}

	promo, err := s.lookupPromo(ctx, req.PromoCode)
	if err != nil {
		return nil, err
	}
	quote, err := engine.ApplyPromo(booking.Fee, promo, now)
	if err != nil {
		return nil, err
	}
	return &domain.BookingView{ValidatedBooking: booking, Quote: quote}, nil
}

// Create validates req and stores it as a pending reservation.
func (s *ReservationService) Create(ctx context.Context, req models.BookingRequest, now time.Time) (*models.Reservation, error) {
	view, err := s.Validate(ctx, req, now)
	if err != nil {
		return nil, err
	}

	r := &models.Reservation{
		TableID:           view.Table.ID,
		RestaurantID:      view.Table.RestaurantID,
		Date:              view.Date,
		StartTime:         engine.FormatTime(view.Interval.Start),
		EndTime:           engine.FormatTime(view.Interval.End),
		Status:            models.StatusPending,
		GuestCount:        req.GuestCount,
		ContactPhone:      strings.TrimSpace(req.ContactPhone),
		ContactEmail:      strings.TrimSpace(req.ContactEmail),
		SpecialRequests:   req.SpecialRequests,
		ConfirmationToken: uuid.NewString(),
		FeeCents:          int64(view.Quote.Total),
		PromoCode:         view.Quote.PromoCode,
	}
	if err := s.store.CreateReservationWithLock(ctx, r); err != nil {
		return nil, err
	}
	s.invalidate(ctx, r.TableID, r.Date)

	s.logger.Info().
		Int64("reservation_id", r.ID).
		Int64("table_id", r.TableID).
		Str("date", r.Date).
		Str("start", r.StartTime).
		Str("end", r.EndTime).
		Msg("reservation created")
	s.publishEvent(events.EventReservationCreated, *r, "")
	return r, nil
}

// Transition moves a stored reservation through its lifecycle. Confirming
// re-checks the slot against other confirmed reservations.
func (s *ReservationService) Transition(ctx context.Context, id int64, to models.ReservationStatus, now time.Time) (*models.Reservation, error) {
	current, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := s.engine.Transition(*current, to, now.In(s.loc))
	if err != nil {
		return nil, err
	}
	if next.Status == current.Status {
		return current, nil
	}

	if err := s.store.UpdateReservationStatusWithVersion(ctx, current.ID, current.Version, to); err != nil {
		return nil, err
	}
	s.invalidate(ctx, current.TableID, current.Date)

	updated, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if eventType, ok := events.ForStatus(to); ok {
		s.publishEvent(eventType, *updated, current.Status)
	}
	return updated, nil
}

// ConfirmByToken confirms the pending reservation the diner's confirmation
// code belongs to.
func (s *ReservationService) ConfirmByToken(ctx context.Context, token string, now time.Time) (*models.Reservation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, engine.ValidationErrors{{Code: engine.CodeMissingField, Field: "token", Message: "confirmation token is required"}}
	}
	r, err := s.store.GetReservationByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.Transition(ctx, r.ID, models.StatusConfirmed, now)
}

// Export writes reservations dated from..to as an xlsx workbook. Empty bounds
// default to a window around today.
func (s *ReservationService) Export(ctx context.Context, from, to string, w io.Writer) error {
	today := engine.Today(s.now().In(s.loc))
	start := today.AddDate(0, 0, -models.DefaultExportRangeDaysBefore)
	end := today.AddDate(0, 0, models.DefaultExportRangeDaysAfter)

	var err error
	if from != "" {
		if start, err = engine.ParseDate(from); err != nil {
			return err
		}
	}
	if to != "" {
		if end, err = engine.ParseDate(to); err != nil {
			return err
		}
	}
	if end.Before(start) {
		return fmt.Errorf("%w: %s is after %s", ErrInvalidRange, start.Format(engine.DateLayout), end.Format(engine.DateLayout))
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > models.MaxExportRangeDays {
		return fmt.Errorf("%w: %d days exceeds %d", ErrInvalidRange, days, models.MaxExportRangeDays)
	}

	list, err := s.store.GetReservationsByDateRange(ctx, start.Format(engine.DateLayout), end.Format(engine.DateLayout))
	if err != nil {
		return err
	}
	s.logger.Info().
		Str("from", start.Format(engine.DateLayout)).
		Str("to", end.Format(engine.DateLayout)).
		Int("reservations", len(list)).
		Msg("exporting reservations")
	return export.Write(w, start, end, list)
}

func (s *ReservationService) publishEvent(eventType string, r models.Reservation, previous models.ReservationStatus) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, events.NewReservationPayload(r, previous)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("reservation_id", r.ID).Msg("publish event error")
	}
}
