package engine

import (
	"fmt"
	"strings"
	"time"

	"bookbite/internal/models"
)

// Quote is a fee with an optional promo discount applied.
type Quote struct {
	Fee                Money  `json:"fee"`
	Discount           Money  `json:"discount"`
	Total              Money  `json:"total"`
	PromoCode          string `json:"promoCode,omitempty"`
	DiscountPercentage int    `json:"discountPercentage,omitempty"`
}

// ApplyPromo discounts fee by the promo percentage, rounding the discount half
// up to the cent. A nil promo returns the undiscounted fee.
func ApplyPromo(fee Money, promo *models.PromoCode, now time.Time) (Quote, error) {
	q := Quote{Fee: fee, Total: fee}
	if promo == nil {
		return q, nil
	}
	if err := checkPromo(promo, Today(now)); err != nil {
		return q, err
	}

	q.PromoCode = promo.Code
	q.DiscountPercentage = promo.DiscountPercentage
	q.Discount = (fee*Money(promo.DiscountPercentage) + 50) / 100
	q.Total = fee - q.Discount
	return q, nil
}

func checkPromo(promo *models.PromoCode, today time.Time) error {
	code := strings.ToUpper(promo.Code)
	if !promo.IsActive {
		return fmt.Errorf("%w: %s is inactive", ErrPromoInvalid, code)
	}
	if promo.DiscountPercentage < 0 || promo.DiscountPercentage > 100 {
		return fmt.Errorf("%w: %s has discount %d%%", ErrPromoInvalid, code, promo.DiscountPercentage)
	}
	if promo.StartDate != "" {
		start, err := ParseDate(promo.StartDate)
		if err != nil {
			return fmt.Errorf("%w: %s start date: %v", ErrPromoInvalid, code, err)
		}
		if today.Before(start) {
			return fmt.Errorf("%w: %s is valid from %s", ErrPromoInvalid, code, promo.StartDate)
		}
	}
	if promo.EndDate != "" {
		end, err := ParseDate(promo.EndDate)
		if err != nil {
			return fmt.Errorf("%w: %s end date: %v", ErrPromoInvalid, code, err)
		}
		if today.After(end) {
			return fmt.Errorf("%w: %s expired on %s", ErrPromoInvalid, code, promo.EndDate)
		}
	}
	if promo.MaxUses > 0 && promo.CurrentUses >= promo.MaxUses {
		return fmt.Errorf("%w: %s has no uses left", ErrPromoInvalid, code)
	}
	return nil
}
