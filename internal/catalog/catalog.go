// Package catalog loads restaurants, their tables and promo codes from a YAML
// file and seeds them into the reservation store.
package catalog

import (
	"context"
	"fmt"
	"os"

	"bookbite/internal/engine"
	"bookbite/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

type RestaurantEntry struct {
	models.Restaurant `yaml:",inline"`
	Tables            []models.Table `yaml:"tables"`
}

type Catalog struct {
	Restaurants []RestaurantEntry  `yaml:"restaurants"`
	PromoCodes  []models.PromoCode `yaml:"promo_codes"`
}

// Seeder is the part of the store the catalog writes to.
type Seeder interface {
	UpsertRestaurant(ctx context.Context, r *models.Restaurant) error
	UpsertTable(ctx context.Context, t *models.Table) error
	UpsertPromoCode(ctx context.Context, p *models.PromoCode) error
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i := range c.Restaurants {
		for j := range c.Restaurants[i].Tables {
			if c.Restaurants[i].Tables[j].RestaurantID == 0 {
				c.Restaurants[i].Tables[j].RestaurantID = c.Restaurants[i].ID
			}
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects structural problems. Malformed opening hours are allowed:
// slot generation falls back to the default window for them.
func (c *Catalog) Validate() error {
	restaurantIDs := make(map[int64]bool)
	tableIDs := make(map[int64]bool)
	for _, r := range c.Restaurants {
		if r.ID == 0 {
			return fmt.Errorf("restaurant '%s' has invalid ID 0", r.Name)
		}
		if restaurantIDs[r.ID] {
			return fmt.Errorf("duplicate restaurant ID found: %d", r.ID)
		}
		restaurantIDs[r.ID] = true

		for _, t := range r.Tables {
			if t.ID == 0 {
				return fmt.Errorf("restaurant %d: table has invalid ID 0", r.ID)
			}
			if tableIDs[t.ID] {
				return fmt.Errorf("duplicate table ID found: %d", t.ID)
			}
			tableIDs[t.ID] = true
			if t.RestaurantID != r.ID {
				return fmt.Errorf("table %d is listed under restaurant %d but belongs to %d", t.ID, r.ID, t.RestaurantID)
			}
			if t.SeatCount <= 0 {
				return fmt.Errorf("table %d: %w: seat count %d", t.ID, engine.ErrInvalidCapacity, t.SeatCount)
			}
		}
	}

	codes := make(map[string]bool)
	for _, p := range c.PromoCodes {
		if p.Code == "" {
			return fmt.Errorf("promo code with empty code")
		}
		if codes[p.Code] {
			return fmt.Errorf("duplicate promo code: %s", p.Code)
		}
		codes[p.Code] = true
		if p.DiscountPercentage < 0 || p.DiscountPercentage > 100 {
			return fmt.Errorf("promo code %s: discount %d%% out of range", p.Code, p.DiscountPercentage)
		}
	}
	return nil
}

// Seed upserts the whole catalog into store.
func (c *Catalog) Seed(ctx context.Context, store Seeder, logger *zerolog.Logger) error {
	tables := 0
	for i := range c.Restaurants {
		entry := &c.Restaurants[i]
		if !engine.ResolveHours(entry.OpeningTime, entry.ClosingTime).Valid() {
			logger.Warn().
				Int64("restaurant_id", entry.ID).
				Str("opening", entry.OpeningTime).
				Str("closing", entry.ClosingTime).
				Msg("restaurant hours malformed, default window will be used")
		}
		if err := store.UpsertRestaurant(ctx, &entry.Restaurant); err != nil {
			return fmt.Errorf("seed restaurant %d: %w", entry.ID, err)
		}
		for j := range entry.Tables {
			if err := store.UpsertTable(ctx, &entry.Tables[j]); err != nil {
				return fmt.Errorf("seed table %d: %w", entry.Tables[j].ID, err)
			}
			tables++
		}
	}
	for i := range c.PromoCodes {
		if err := store.UpsertPromoCode(ctx, &c.PromoCodes[i]); err != nil {
			return fmt.Errorf("seed promo code %s: %w", c.PromoCodes[i].Code, err)
		}
	}

	logger.Info().
		Int("restaurants", len(c.Restaurants)).
		Int("tables", tables).
		Int("promo_codes", len(c.PromoCodes)).
		Msg("catalog seeded")
	return nil
}
