package domain

import (
	"bookbite/internal/engine"
	"bookbite/internal/models"
)

type SlotsView struct {
	TableID      int64               `json:"tableId"`
	RestaurantID int64               `json:"restaurantId"`
	Date         string              `json:"date"`
	Hours        engine.Hours        `json:"hours"`
	FallbackUsed bool                `json:"fallbackUsed"`
	Slots        []engine.SlotStatus `json:"slots"`
}

type EndTimeOption struct {
	End       engine.TimeOfDay `json:"end"`
	Minutes   int              `json:"minutes"`
	Available bool             `json:"available"`
}

type EndTimesView struct {
	TableID  int64            `json:"tableId"`
	Date     string           `json:"date"`
	Start    engine.TimeOfDay `json:"start"`
	EndTimes []EndTimeOption  `json:"endTimes"`
}

type QuoteView struct {
	TableID   int64 `json:"tableId"`
	SeatCount int   `json:"seatCount"`
	engine.Quote
}

type AvailableTablesView struct {
	RestaurantID int64          `json:"restaurantId"`
	Date         string         `json:"date"`
	Start        string         `json:"start"`
	End          string         `json:"end"`
	Guests       int            `json:"guests"`
	Tables       []models.Table `json:"tables"`
}

// BookingView is an accepted booking request with its price.
type BookingView struct {
	*engine.ValidatedBooking
	Quote engine.Quote `json:"quote"`
}
