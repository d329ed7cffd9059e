package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookbite/internal/models"
)

// UpsertRestaurant inserts r, or updates it when r.ID already exists. A zero ID
// lets the database assign one.
func (db *DB) UpsertRestaurant(ctx context.Context, r *models.Restaurant) error {
	if r == nil {
		return fmt.Errorf("restaurant is nil")
	}
	now := time.Now()
	var id any
	if r.ID != 0 {
		id = r.ID
	}
	res, err := db.ExecContext(ctx, `INSERT INTO restaurants (id, name, opening_time, closing_time, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            opening_time = excluded.opening_time,
            closing_time = excluded.closing_time,
            updated_at = excluded.updated_at`,
		id, r.Name, r.OpeningTime, r.ClosingTime, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert restaurant: %w", err)
	}
	if r.ID == 0 {
		if r.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	return nil
}

func (db *DB) GetRestaurant(ctx context.Context, id int64) (*models.Restaurant, error) {
	row := db.QueryRowContext(ctx, `SELECT id, name, opening_time, closing_time, created_at, updated_at
        FROM restaurants WHERE id = ?`, id)
	r, err := scanRestaurant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("restaurant %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get restaurant: %w", err)
	}
	return r, nil
}

func (db *DB) ListRestaurants(ctx context.Context) ([]models.Restaurant, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, opening_time, closing_time, created_at, updated_at
        FROM restaurants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	defer rows.Close()

	var res []models.Restaurant
	for rows.Next() {
		r, err := scanRestaurant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan restaurant: %w", err)
		}
		res = append(res, *r)
	}
	return res, rows.Err()
}

// UpsertTable inserts or updates a table of a restaurant.
func (db *DB) UpsertTable(ctx context.Context, t *models.Table) error {
	if t == nil {
		return fmt.Errorf("table is nil")
	}
	var id any
	if t.ID != 0 {
		id = t.ID
	}
	res, err := db.ExecContext(ctx, `INSERT INTO restaurant_tables (id, restaurant_id, seat_count, is_available)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            restaurant_id = excluded.restaurant_id,
            seat_count = excluded.seat_count,
            is_available = excluded.is_available`,
		id, t.RestaurantID, t.SeatCount, t.IsAvailable)
	if err != nil {
		return fmt.Errorf("failed to upsert table: %w", err)
	}
	if t.ID == 0 {
		if t.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}
	return nil
}

func (db *DB) GetTable(ctx context.Context, id int64) (*models.Table, error) {
	row := db.QueryRowContext(ctx, `SELECT id, restaurant_id, seat_count, is_available FROM restaurant_tables WHERE id = ?`, id)
	t, err := scanTable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("table %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	return t, nil
}

// ListTables returns every table of a restaurant, bookable or not.
func (db *DB) ListTables(ctx context.Context, restaurantID int64) ([]models.Table, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, restaurant_id, seat_count, is_available
        FROM restaurant_tables WHERE restaurant_id = ? ORDER BY id`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var res []models.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		res = append(res, *t)
	}
	return res, rows.Err()
}

func scanRestaurant(r rowScanner) (*models.Restaurant, error) {
	var res models.Restaurant
	if err := r.Scan(&res.ID, &res.Name, &res.OpeningTime, &res.ClosingTime, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	return &res, nil
}

func scanTable(r rowScanner) (*models.Table, error) {
	var t models.Table
	if err := r.Scan(&t.ID, &t.RestaurantID, &t.SeatCount, &t.IsAvailable); err != nil {
		return nil, err
	}
	return &t, nil
}
