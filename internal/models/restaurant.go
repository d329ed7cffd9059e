package models

import "time"

type Restaurant struct {
	ID          int64     `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	OpeningTime string    `yaml:"opening_time" json:"openingTime"`
	ClosingTime string    `yaml:"closing_time" json:"closingTime"`
	CreatedAt   time.Time `yaml:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `yaml:"updated_at" json:"updatedAt"`
}

type Table struct {
	ID           int64 `yaml:"id" json:"id"`
	RestaurantID int64 `yaml:"restaurant_id" json:"restaurantId"`
	SeatCount    int   `yaml:"seat_count" json:"seatCount"`
	IsAvailable  bool  `yaml:"is_available" json:"isAvailable"`
}

// PromoCode is a percentage discount applied to the reservation fee.
// MaxUses == 0 means unlimited.
type PromoCode struct {
	ID                 int64  `yaml:"id" json:"id"`
	Code               string `yaml:"code" json:"code"`
	DiscountPercentage int    `yaml:"discount_percentage" json:"discountPercentage"`
	StartDate          string `yaml:"start_date" json:"startDate"`
	EndDate            string `yaml:"end_date" json:"endDate"`
	IsActive           bool   `yaml:"is_active" json:"isActive"`
	MaxUses            int    `yaml:"max_uses" json:"maxUses"`
	CurrentUses        int    `yaml:"current_uses" json:"currentUses"`
}
