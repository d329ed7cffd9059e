package engine

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"bookbite/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateFee(t *testing.T) {
	tests := []struct {
		seats int
		want  string
	}{
		{1, "4.00"},
		{2, "4.00"},
		{3, "6.00"},
		{4, "6.00"},
		{5, "9.00"},
		{6, "9.00"},
		{7, "12.00"},
		{40, "12.00"},
	}
	for _, tt := range tests {
		fee, err := CalculateFee(tt.seats)
		require.NoError(t, err)
		assert.Equal(t, tt.want, fee.String(), "seats=%d", tt.seats)
	}

	t.Run("Monotonic", func(t *testing.T) {
		prev := Money(0)
		for seats := 1; seats <= 50; seats++ {
			fee, err := CalculateFee(seats)
			require.NoError(t, err)
			require.GreaterOrEqual(t, fee, prev)
			prev = fee
		}
	})

	t.Run("NonPositive", func(t *testing.T) {
		for _, seats := range []int{0, -2} {
			_, err := CalculateFee(seats)
			assert.True(t, errors.Is(err, ErrInvalidCapacity))
		}
	})
}

func TestFeeScheduleValidate(t *testing.T) {
	assert.NoError(t, DefaultFeeSchedule().Validate())

	tests := map[string]FeeSchedule{
		"Empty":           {},
		"NegativeFee":     {{MaxSeats: 0, Fee: -1}},
		"DecreasingFee":   {{MaxSeats: 2, Fee: 500}, {MaxSeats: 0, Fee: 400}},
		"ClosedLastTier":  {{MaxSeats: 2, Fee: 400}, {MaxSeats: 8, Fee: 900}},
		"UnorderedSeats":  {{MaxSeats: 4, Fee: 400}, {MaxSeats: 2, Fee: 500}, {MaxSeats: 0, Fee: 600}},
		"OpenTierInFront": {{MaxSeats: 0, Fee: 400}, {MaxSeats: 0, Fee: 500}},
	}
	for name, schedule := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, schedule.Validate())
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		Fee Money `json:"fee"`
	}{Fee: 905})
	require.NoError(t, err)
	assert.JSONEq(t, `{"fee": 9.05}`, string(raw))

	var m Money
	require.NoError(t, json.Unmarshal([]byte("12.3"), &m))
	assert.Equal(t, Money(1230), m)
	assert.Equal(t, "-1.50", Money(-150).String())
}

func TestApplyPromo(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	promo := &models.PromoCode{
		Code:               "SUMMER15",
		DiscountPercentage: 15,
		StartDate:          "2024-06-01",
		EndDate:            "2024-08-31",
		IsActive:           true,
		MaxUses:            10,
		CurrentUses:        3,
	}

	t.Run("NoPromo", func(t *testing.T) {
		q, err := ApplyPromo(900, nil, now)
		require.NoError(t, err)
		assert.Equal(t, Money(900), q.Total)
		assert.Zero(t, q.Discount)
	})

	t.Run("Discount", func(t *testing.T) {
		q, err := ApplyPromo(900, promo, now)
		require.NoError(t, err)
		assert.Equal(t, Money(135), q.Discount)
		assert.Equal(t, Money(765), q.Total)
		assert.Equal(t, "SUMMER15", q.PromoCode)
	})

	t.Run("RoundsHalfUp", func(t *testing.T) {
		p := *promo
		p.DiscountPercentage = 25
		q, err := ApplyPromo(1250, &p, now)
		require.NoError(t, err)
		assert.Equal(t, Money(313), q.Discount)
	})

	rejected := map[string]func(p *models.PromoCode){
		"Inactive":     func(p *models.PromoCode) { p.IsActive = false },
		"NotStarted":   func(p *models.PromoCode) { p.StartDate = "2024-06-02" },
		"Expired":      func(p *models.PromoCode) { p.EndDate = "2024-05-31" },
		"UsedUp":       func(p *models.PromoCode) { p.CurrentUses = 10 },
		"BadPercent":   func(p *models.PromoCode) { p.DiscountPercentage = 120 },
		"BadStartDate": func(p *models.PromoCode) { p.StartDate = "soon" },
	}
	for name, mutate := range rejected {
		t.Run(name, func(t *testing.T) {
			p := *promo
			mutate(&p)
			q, err := ApplyPromo(900, &p, now)
			assert.True(t, errors.Is(err, ErrPromoInvalid))
			assert.Equal(t, Money(900), q.Total)
		})
	}

	t.Run("UnlimitedUses", func(t *testing.T) {
		p := *promo
		p.MaxUses = 0
		p.CurrentUses = 500
		_, err := ApplyPromo(900, &p, now)
		assert.NoError(t, err)
	})

	t.Run("EngineQuote", func(t *testing.T) {
		q, err := Default().Quote(7, promo, now)
		require.NoError(t, err)
		assert.Equal(t, "12.00", q.Fee.String())
		assert.Equal(t, "10.20", q.Total.String())
	})
}
