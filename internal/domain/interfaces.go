package domain

import (
	"context"
	"io"
	"time"

	"bookbite/internal/models"
)

// Store is the persistence the reservation service reads and writes.
type Store interface {
	GetRestaurant(ctx context.Context, id int64) (*models.Restaurant, error)
	GetTable(ctx context.Context, id int64) (*models.Table, error)
	ListTables(ctx context.Context, restaurantID int64) ([]models.Table, error)
	GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	GetReservationByToken(ctx context.Context, token string) (*models.Reservation, error)
	ListReservationsForTable(ctx context.Context, tableID int64, date string) ([]models.Reservation, error)
	ListReservationsForRestaurant(ctx context.Context, restaurantID int64, date string) ([]models.Reservation, error)
	GetReservationsByDateRange(ctx context.Context, from, to string) ([]models.Reservation, error)
	CreateReservationWithLock(ctx context.Context, r *models.Reservation) error
	UpdateReservationStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.ReservationStatus) error
}

// SnapshotCache holds the reservation list of one table on one date. A miss
// returns ok == false and no error.
type SnapshotCache interface {
	GetSnapshot(ctx context.Context, tableID int64, date string) (list []models.Reservation, ok bool, err error)
	SetSnapshot(ctx context.Context, tableID int64, date string, list []models.Reservation) error
	Invalidate(ctx context.Context, tableID int64, date string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// ReservationService is what the HTTP API and other callers use.
type ReservationService interface {
	Slots(ctx context.Context, tableID int64, date string, now time.Time) (*SlotsView, error)
	EndTimes(ctx context.Context, tableID int64, date, start string, now time.Time) (*EndTimesView, error)
	IsAvailable(ctx context.Context, tableID int64, date, start, end string, now time.Time) (bool, error)
	Quote(ctx context.Context, tableID int64, promoCode string, now time.Time) (*QuoteView, error)
	AvailableTables(ctx context.Context, restaurantID int64, date, start, end string, guests int, now time.Time) (*AvailableTablesView, error)
	Validate(ctx context.Context, req models.BookingRequest, now time.Time) (*BookingView, error)
	Create(ctx context.Context, req models.BookingRequest, now time.Time) (*models.Reservation, error)
	Transition(ctx context.Context, id int64, to models.ReservationStatus, now time.Time) (*models.Reservation, error)
	ConfirmByToken(ctx context.Context, token string, now time.Time) (*models.Reservation, error)
	Export(ctx context.Context, from, to string, w io.Writer) error
}
