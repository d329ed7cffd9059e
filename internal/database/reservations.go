package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookbite/internal/engine"
	"bookbite/internal/models"
)

const reservationColumns = `id, table_id, restaurant_id, date, start_time, end_time, status, guest_count,
        contact_phone, contact_email, special_requests, confirmation_token, fee_cents, promo_code,
        created_at, updated_at, version`

// CreateReservation inserts r without any availability check.
func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	return insertReservation(ctx, db, r, time.Now())
}

// CreateReservationWithLock re-checks the slot against confirmed reservations
// and redeems r.PromoCode inside one transaction, then inserts r.
func (db *DB) CreateReservationWithLock(ctx context.Context, r *models.Reservation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := checkSlotFree(ctx, tx, r); err != nil {
		return err
	}
	if r.PromoCode != "" {
		if err := usePromoCode(ctx, tx, r.PromoCode); err != nil {
			return err
		}
	}
	if err := insertReservation(ctx, tx, r, time.Now()); err != nil {
		return err
	}
	return tx.Commit()
}

func insertReservation(ctx context.Context, q execer, r *models.Reservation, now time.Time) error {
	if r == nil {
		return fmt.Errorf("reservation is nil")
	}
	if r.Status == "" {
		r.Status = models.StatusPending
	}
	res, err := q.ExecContext(ctx, `INSERT INTO reservations (
            table_id, restaurant_id, date, start_time, end_time, status, guest_count,
            contact_phone, contact_email, special_requests, confirmation_token, fee_cents, promo_code,
            created_at, updated_at, version
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		r.TableID, r.RestaurantID, r.Date, r.StartTime, r.EndTime, r.Status, r.GuestCount,
		r.ContactPhone, r.ContactEmail, r.SpecialRequests, r.ConfirmationToken, r.FeeCents, r.PromoCode,
		now, now)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1
	return nil
}

// checkSlotFree fails with ErrSlotTaken when a confirmed reservation of the
// same table and date overlaps r. r itself is ignored when it already has an ID.
func checkSlotFree(ctx context.Context, q execer, r *models.Reservation) error {
	existing, err := listReservations(ctx, q, `WHERE table_id = ? AND date = ? AND status = ?`,
		r.TableID, r.Date, models.StatusConfirmed)
	if err != nil {
		return fmt.Errorf("failed to check availability in tx: %w", err)
	}

	candidate, ok := engine.ReservationInterval(*r)
	if !ok {
		return fmt.Errorf("reservation times %s-%s: %w", r.StartTime, r.EndTime, engine.ErrMalformedTime)
	}
	free := engine.CheckAvailability(engine.AvailabilityQuery{
		TableID:              r.TableID,
		Date:                 r.Date,
		Candidate:            candidate,
		ExcludeReservationID: r.ID,
	}, existing)
	if !free {
		return ErrSlotTaken
	}
	return nil
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return getReservation(ctx, db, id)
}

func getReservation(ctx context.Context, q execer, id int64) (*models.Reservation, error) {
	row := q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

// GetReservationByToken finds a reservation by its confirmation token.
func (db *DB) GetReservationByToken(ctx context.Context, token string) (*models.Reservation, error) {
	row := db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE confirmation_token = ? AND confirmation_token <> ''`, token)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation token: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

// UpdateReservationStatusWithVersion moves a reservation to status when it is
// still at fromVersion. Confirming re-checks the slot in the same transaction.
func (db *DB) UpdateReservationStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.ReservationStatus) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if status == models.StatusConfirmed {
		current, err := getReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkSlotFree(ctx, tx, current); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `UPDATE reservations SET status = ?, updated_at = ?, version = version + 1
        WHERE id = ? AND version = ?`, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	if err := versionApplied(res); err != nil {
		return err
	}
	return tx.Commit()
}

// versionApplied maps an UPDATE guarded by version onto ErrVersionConflict
// when no row matched.
func versionApplied(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// ListReservationsForTable returns every reservation of a table on date.
func (db *DB) ListReservationsForTable(ctx context.Context, tableID int64, date string) ([]models.Reservation, error) {
	return listReservations(ctx, db, `WHERE table_id = ? AND date = ? ORDER BY start_time, id`, tableID, date)
}

// ListReservationsForRestaurant returns every reservation of a restaurant's tables on date.
func (db *DB) ListReservationsForRestaurant(ctx context.Context, restaurantID int64, date string) ([]models.Reservation, error) {
	return listReservations(ctx, db, `WHERE restaurant_id = ? AND date = ? ORDER BY table_id, start_time, id`, restaurantID, date)
}

// GetReservationsByDateRange returns reservations with from <= date <= to, both yyyy-mm-dd.
func (db *DB) GetReservationsByDateRange(ctx context.Context, from, to string) ([]models.Reservation, error) {
	return listReservations(ctx, db, `WHERE date BETWEEN ? AND ? ORDER BY date, start_time, table_id, id`, from, to)
}

func listReservations(ctx context.Context, q execer, where string, args ...any) ([]models.Reservation, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+reservationColumns+` FROM reservations `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var res []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		res = append(res, *r)
	}
	return res, rows.Err()
}

func scanReservation(s rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	err := s.Scan(
		&r.ID,
		&r.TableID,
		&r.RestaurantID,
		&r.Date,
		&r.StartTime,
		&r.EndTime,
		&r.Status,
		&r.GuestCount,
		&r.ContactPhone,
		&r.ContactEmail,
		&r.SpecialRequests,
		&r.ConfirmationToken,
		&r.FeeCents,
		&r.PromoCode,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.Version,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
