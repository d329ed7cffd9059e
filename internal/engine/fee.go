package engine

import (
	"errors"
	"fmt"
	"strconv"
)

// Money is an amount in cents.
type Money int64

func (m Money) String() string {
	sign := ""
	if m < 0 {
		sign = "-"
		m = -m
	}
	return fmt.Sprintf("%s%d.%02d", sign, int64(m)/100, int64(m)%100)
}

// MarshalJSON emits a two-decimal JSON number, e.g. 4.00.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parse money %s: %w", data, err)
	}
	if f < 0 {
		*m = Money(f*100 - 0.5)
	} else {
		*m = Money(f*100 + 0.5)
	}
	return nil
}

// FeeTier applies to tables with up to MaxSeats seats. MaxSeats == 0 marks the
// open-ended last tier.
type FeeTier struct {
	MaxSeats int   `yaml:"max_seats" json:"maxSeats"`
	Fee      Money `yaml:"fee_cents" json:"fee"`
}

// FeeSchedule is an ordered tier table; the first matching tier wins.
type FeeSchedule []FeeTier

func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		{MaxSeats: 2, Fee: 400},
		{MaxSeats: 4, Fee: 600},
		{MaxSeats: 6, Fee: 900},
		{MaxSeats: 0, Fee: 1200},
	}
}

var defaultFees = DefaultFeeSchedule()

// Validate checks the schedule is total over positive seat counts and that
// fees never decrease as tables grow.
func (s FeeSchedule) Validate() error {
	if len(s) == 0 {
		return errors.New("fee schedule is empty")
	}
	prevSeats := 0
	var prevFee Money
	for i, tier := range s {
		last := i == len(s)-1
		if tier.Fee < 0 {
			return fmt.Errorf("fee tier %d: negative fee %s", i, tier.Fee)
		}
		if tier.Fee < prevFee {
			return fmt.Errorf("fee tier %d: fee %s lower than previous tier %s", i, tier.Fee, prevFee)
		}
		switch {
		case last && tier.MaxSeats != 0:
			return fmt.Errorf("fee tier %d: last tier must be open-ended (max_seats: 0)", i)
		case !last && tier.MaxSeats <= prevSeats:
			return fmt.Errorf("fee tier %d: max_seats %d must exceed %d", i, tier.MaxSeats, prevSeats)
		}
		prevSeats = tier.MaxSeats
		prevFee = tier.Fee
	}
	return nil
}

// Fee returns the tier fee for a table with seatCount seats.
func (s FeeSchedule) Fee(seatCount int) (Money, error) {
	if seatCount <= 0 {
		return 0, fmt.Errorf("%w: seat count %d", ErrInvalidCapacity, seatCount)
	}
	for _, tier := range s {
		if tier.MaxSeats == 0 || seatCount <= tier.MaxSeats {
			return tier.Fee, nil
		}
	}
	return 0, fmt.Errorf("fee schedule has no tier for %d seats", seatCount)
}

// CalculateFee applies the default tier table: 1-2 seats 4.00, 3-4 6.00,
// 5-6 9.00, 7+ 12.00.
func CalculateFee(seatCount int) (Money, error) {
	return defaultFees.Fee(seatCount)
}
