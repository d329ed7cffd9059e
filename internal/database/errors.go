package database

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	// ErrSlotTaken means a confirmed reservation already overlaps the requested time.
	ErrSlotTaken = errors.New("time slot already taken")
	// ErrVersionConflict means the row changed since it was read.
	ErrVersionConflict = errors.New("concurrent modification")
	ErrPromoExhausted  = errors.New("promo code has no uses left")
)
