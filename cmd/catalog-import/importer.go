package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/forgo/sipmate/api/internal/model"
)

// legacyWinesQuery reads the hosted catalog. Nullable text columns are
// flattened so rows scan into plain strings.
const legacyWinesQuery = `
	SELECT
		id::text AS id,
		name,
		COALESCE(winery, '') AS winery,
		COALESCE(region, '') AS region,
		lower(type) AS type,
		COALESCE(price, 0)::float8 AS price,
		COALESCE(rating, 0)::float8 AS rating,
		COALESCE(alcohol_percentage, 0)::float8 AS alcohol_percentage,
		COALESCE(food_pairing, '') AS food_pairing,
		COALESCE(description, '') AS description,
		COALESCE(wine_image_name, '') AS wine_image_name,
		url
	FROM wines
	ORDER BY id`

// legacyWine is one row of the legacy wines table
type legacyWine struct {
	ID                string  `db:"id"`
	Name              string  `db:"name"`
	Winery            string  `db:"winery"`
	Region            string  `db:"region"`
	Type              string  `db:"type"`
	Price             float64 `db:"price"`
	Rating            float64 `db:"rating"`
	AlcoholPercentage float64 `db:"alcohol_percentage"`
	FoodPairing       string  `db:"food_pairing"`
	Description       string  `db:"description"`
	ImageName         string  `db:"wine_image_name"`
	URL               *string `db:"url"`
}

// querier is the part of pgxpool.Pool and pgx.Conn the reader needs
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// wineWriter persists catalog wines
type wineWriter interface {
	UpsertBatch(ctx context.Context, wines []model.Wine) error
}

// importStats summarises an import run
type importStats struct {
	Read    int
	Skipped int
	Written int
	Batches int
	DryRun  bool
}

// readLegacyWines loads every legacy row and converts the valid ones.
// Rows with an unknown wine type or no name are skipped.
func readLegacyWines(ctx context.Context, q querier) ([]model.Wine, int, error) {
	rows, err := q.Query(ctx, legacyWinesQuery)
	if err != nil {
		return nil, 0, fmt.Errorf("querying legacy wines: %w", err)
	}
	legacy, err := pgx.CollectRows(rows, pgx.RowToStructByName[legacyWine])
	if err != nil {
		return nil, 0, fmt.Errorf("scanning legacy wines: %w", err)
	}

	wines := make([]model.Wine, 0, len(legacy))
	skipped := 0
	for _, lw := range legacy {
		w, ok := lw.toWine()
		if !ok {
			skipped++
			slog.Warn("skipping legacy wine",
				slog.String("id", lw.ID),
				slog.String("type", lw.Type),
			)
			continue
		}
		wines = append(wines, w)
	}
	return wines, skipped, nil
}

func (lw legacyWine) toWine() (model.Wine, bool) {
	wineType := model.WineType(strings.TrimSpace(lw.Type))
	name := strings.TrimSpace(lw.Name)
	if !wineType.IsValid() || name == "" || lw.ID == "" {
		return model.Wine{}, false
	}

	var url *string
	if lw.URL != nil && strings.TrimSpace(*lw.URL) != "" {
		u := strings.TrimSpace(*lw.URL)
		url = &u
	}

	return model.Wine{
		ID:                lw.ID,
		Name:              name,
		Winery:            strings.TrimSpace(lw.Winery),
		Region:            strings.TrimSpace(lw.Region),
		Type:              wineType,
		Price:             lw.Price,
		Rating:            lw.Rating,
		AlcoholPercentage: lw.AlcoholPercentage,
		FoodPairing:       lw.FoodPairing,
		Description:       lw.Description,
		ImageName:         strings.TrimSpace(lw.ImageName),
		URL:               url,
	}, true
}

// writeWines upserts wines in batches of batchSize. With dryRun nothing is
// written.
func writeWines(ctx context.Context, w wineWriter, wines []model.Wine, batchSize int, dryRun bool) (importStats, error) {
	stats := importStats{DryRun: dryRun}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	for start := 0; start < len(wines); start += batchSize {
		end := min(start+batchSize, len(wines))
		if !dryRun {
			if err := w.UpsertBatch(ctx, wines[start:end]); err != nil {
				return stats, fmt.Errorf("writing wines %d-%d: %w", start, end-1, err)
			}
			stats.Written += end - start
		}
		stats.Batches++
	}
	return stats, nil
}
