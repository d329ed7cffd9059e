package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"bookbite/internal/models"
)

// UpsertPromoCode stores p keyed by its code. Usage counters of an existing code
// are kept.
func (db *DB) UpsertPromoCode(ctx context.Context, p *models.PromoCode) error {
	if p == nil {
		return fmt.Errorf("promo code is nil")
	}
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
	_, err := db.ExecContext(ctx, `INSERT INTO promo_codes (code, discount_percentage, start_date, end_date, is_active, max_uses, current_uses)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(code) DO UPDATE SET
            discount_percentage = excluded.discount_percentage,
            start_date = excluded.start_date,
            end_date = excluded.end_date,
            is_active = excluded.is_active,
            max_uses = excluded.max_uses`,
		p.Code, p.DiscountPercentage, p.StartDate, p.EndDate, p.IsActive, p.MaxUses, p.CurrentUses)
	if err != nil {
		return fmt.Errorf("failed to upsert promo code: %w", err)
	}

	stored, err := db.GetPromoCode(ctx, p.Code)
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

// GetPromoCode looks a code up case-insensitively.
func (db *DB) GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	row := db.QueryRowContext(ctx, `SELECT id, code, discount_percentage, start_date, end_date, is_active, max_uses, current_uses
        FROM promo_codes WHERE code = ?`, strings.TrimSpace(code))

	var p models.PromoCode
	err := row.Scan(&p.ID, &p.Code, &p.DiscountPercentage, &p.StartDate, &p.EndDate, &p.IsActive, &p.MaxUses, &p.CurrentUses)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("promo code %q: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}
	return &p, nil
}

// usePromoCode counts one redemption unless the code is used up.
func usePromoCode(ctx context.Context, q execer, code string) error {
	res, err := q.ExecContext(ctx, `UPDATE promo_codes SET current_uses = current_uses + 1
        WHERE code = ? AND (max_uses = 0 OR current_uses < max_uses)`, code)
	if err != nil {
		return fmt.Errorf("failed to redeem promo code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to redeem promo code: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("promo code %q: %w", code, ErrPromoExhausted)
	}
	return nil
}
