package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/forgo/sipmate/api/internal/database"
	"github.com/forgo/sipmate/api/internal/model"
)

// WineRepository handles catalog data access. Wine ids in and out of this
// repository are bare record keys ("w1").
type WineRepository struct {
	db database.Database
}

// NewWineRepository creates a new wine repository
func NewWineRepository(db database.Database) *WineRepository {
	return &WineRepository{db: db}
}

// sortClauses maps a sort key to its ORDER BY clause; name breaks ties
var sortClauses = map[model.SortKey]string{
	model.SortByName:      "name ASC",
	model.SortByPriceAsc:  "price ASC, name ASC",
	model.SortByPriceDesc: "price DESC, name ASC",
	model.SortByRating:    "rating DESC, name ASC",
}

// ListAll returns every wine ordered by name
func (r *WineRepository) ListAll(ctx context.Context) ([]model.Wine, error) {
	return r.list(ctx, `SELECT * FROM wine ORDER BY name ASC`, nil)
}

// Search returns wines whose name, winery, region or description contains
// term, ignoring case, ordered by name
func (r *WineRepository) Search(ctx context.Context, term string) ([]model.Wine, error) {
	query := `
		SELECT * FROM wine
		WHERE string::lowercase(name) CONTAINS $term
			OR string::lowercase(winery) CONTAINS $term
			OR string::lowercase(region) CONTAINS $term
			OR string::lowercase(description) CONTAINS $term
		ORDER BY name ASC
	`
	return r.list(ctx, query, map[string]interface{}{"term": term})
}

// Filter returns wines matching every supplied criterion, ordered by name
func (r *WineRepository) Filter(ctx context.Context, filter model.WineFilter) ([]model.Wine, error) {
	query := `
		SELECT * FROM wine
		WHERE ($type IS NONE OR $type IS NULL OR type = $type)
			AND ($min_rating IS NONE OR $min_rating IS NULL OR rating >= $min_rating)
		ORDER BY name ASC
	`
	vars := map[string]interface{}{
		"type":       ptrToNone(filter.Type),
		"min_rating": ptrToNone(filter.MinRating),
	}
	return r.list(ctx, query, vars)
}

// Sort returns every wine in the requested order
func (r *WineRepository) Sort(ctx context.Context, key model.SortKey) ([]model.Wine, error) {
	clause, ok := sortClauses[key]
	if !ok {
		return nil, fmt.Errorf("unknown sort key %q", key)
	}
	return r.list(ctx, `SELECT * FROM wine ORDER BY `+clause, nil)
}

// GetByID retrieves a wine by key
func (r *WineRepository) GetByID(ctx context.Context, id string) (*model.Wine, error) {
	query := `SELECT * FROM type::thing('wine', $key)`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"key": model.RecordKey(id)})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	data, err := recordMap(result)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return parseWine(data)
}

// Exists reports whether a wine with the key exists
func (r *WineRepository) Exists(ctx context.Context, id string) (bool, error) {
	wine, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return wine != nil, nil
}

// UpsertBatch writes wines keyed on their id in one transaction. Used by the
// catalog importer and fixtures.
func (r *WineRepository) UpsertBatch(ctx context.Context, wines []model.Wine) error {
	batch := database.NewAtomicBatch()
	for _, w := range wines {
		batch.Add(`
			UPSERT type::thing('wine', $key) CONTENT {
				name: $name,
				winery: $winery,
				region: $region,
				type: $type,
				price: $price,
				rating: $rating,
				alcohol_percentage: $alcohol_percentage,
				food_pairing: $food_pairing,
				description: $description,
				wine_image_name: $wine_image_name,
				url: IF $url IS NOT NULL THEN $url ELSE NONE END
			}
		`, map[string]interface{}{
			"key":                model.RecordKey(w.ID),
			"name":               w.Name,
			"winery":             w.Winery,
			"region":             w.Region,
			"type":               string(w.Type),
			"price":              w.Price,
			"rating":             w.Rating,
			"alcohol_percentage": w.AlcoholPercentage,
			"food_pairing":       w.FoodPairing,
			"description":        w.Description,
			"wine_image_name":    w.ImageName,
			"url":                ptrToNone(w.URL),
		})
	}
	return batch.Execute(ctx, r.db)
}

func (r *WineRepository) list(ctx context.Context, query string, vars map[string]interface{}) ([]model.Wine, error) {
	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	records := recordMaps(results, 0)
	wines := make([]model.Wine, 0, len(records))
	for _, data := range records {
		w, err := parseWine(data)
		if err != nil {
			return nil, err
		}
		wines = append(wines, *w)
	}
	return wines, nil
}

func parseWine(data map[string]interface{}) (*model.Wine, error) {
	var wine model.Wine
	if err := decodeRecord(data, &wine); err != nil {
		return nil, err
	}
	wine.ID = model.RecordKey(wine.ID)
	return &wine, nil
}
