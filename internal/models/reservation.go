package models

import "time"

// ReservationStatus is the lifecycle stage of a reservation.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCompleted ReservationStatus = "completed"
)

func (s ReservationStatus) String() string {
	return string(s)
}

// Reservation mirrors the reservation record of the reservation API.
// Date is yyyy-mm-dd, StartTime/EndTime are HH:MM or HH:MM:SS.
type Reservation struct {
	ID                int64             `json:"id" yaml:"id"`
	TableID           int64             `json:"tableId" yaml:"table_id"`
	RestaurantID      int64             `json:"restaurantId,omitempty" yaml:"restaurant_id"`
	Date              string            `json:"date" yaml:"date"`
	StartTime         string            `json:"startTime" yaml:"start_time"`
	EndTime           string            `json:"endTime" yaml:"end_time"`
	Status            ReservationStatus `json:"status" yaml:"status"`
	GuestCount        int               `json:"guestCount" yaml:"guest_count"`
	ContactPhone      string            `json:"contactPhone,omitempty" yaml:"contact_phone"`
	ContactEmail      string            `json:"contactEmail,omitempty" yaml:"contact_email"`
	SpecialRequests   string            `json:"specialRequests,omitempty" yaml:"special_requests"`
	ConfirmationToken string            `json:"confirmationToken,omitempty" yaml:"confirmation_token"`
	FeeCents          int64             `json:"feeCents" yaml:"fee_cents"`
	PromoCode         string            `json:"promoCode,omitempty" yaml:"promo_code"`
	CreatedAt         time.Time         `json:"createdAt" yaml:"created_at"`
	UpdatedAt         time.Time         `json:"updatedAt" yaml:"updated_at"`
	Version           int64             `json:"version" yaml:"version"`
}

// BookingRequest is what a diner submits before anything is persisted.
type BookingRequest struct {
	TableID         int64  `json:"tableId"`
	Date            string `json:"date"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	GuestCount      int    `json:"guestCount"`
	ContactPhone    string `json:"contactPhone"`
	ContactEmail    string `json:"contactEmail"`
	SpecialRequests string `json:"specialRequests,omitempty"`
	PromoCode       string `json:"promoCode,omitempty"`
}
