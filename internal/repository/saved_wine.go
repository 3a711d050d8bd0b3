package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/forgo/sipmate/api/internal/database"
	"github.com/forgo/sipmate/api/internal/model"
)

// SavedWineRepository handles a user's saved wine library
type SavedWineRepository struct {
	db database.Database
}

// NewSavedWineRepository creates a new saved wine repository
func NewSavedWineRepository(db database.Database) *SavedWineRepository {
	return &SavedWineRepository{db: db}
}

// Upsert inserts or updates the (user, wine) row. The record id is the pair
// itself, so a second save for the same wine updates in place. date_saved is
// filled by its field default on insert and is never assigned here, which
// keeps the original save date across edits. Absent details become NONE.
func (r *SavedWineRepository) Upsert(ctx context.Context, userID, wineID string, details model.SaveDetails) error {
	query := `
		UPSERT type::thing('saved_wine', [type::thing('profile', $user_key), type::thing('wine', $wine_key)]) SET
			user = type::thing('profile', $user_key),
			wine = type::thing('wine', $wine_key),
			date_tried = IF $date_tried IS NOT NULL THEN <datetime>$date_tried ELSE NONE END,
			user_rating = IF $rating IS NOT NULL THEN $rating ELSE NONE END,
			user_notes = IF $notes IS NOT NULL THEN $notes ELSE NONE END,
			location = IF $location IS NOT NULL THEN $location ELSE NONE END,
			updated_on = time::now()
	`
	vars := map[string]interface{}{
		"user_key":   model.RecordKey(userID),
		"wine_key":   model.RecordKey(wineID),
		"date_tried": timeToNone(details.DateTried),
		"rating":     ptrToNone(details.Rating),
		"notes":      ptrToNone(details.Notes),
		"location":   ptrToNone(details.Location),
	}
	return r.db.Execute(ctx, query, vars)
}

// Delete removes the (user, wine) row. Deleting a row that does not exist is
// not an error.
func (r *SavedWineRepository) Delete(ctx context.Context, userID, wineID string) error {
	query := `
		DELETE saved_wine
		WHERE user = type::thing('profile', $user_key)
			AND wine = type::thing('wine', $wine_key)
	`
	vars := map[string]interface{}{
		"user_key": model.RecordKey(userID),
		"wine_key": model.RecordKey(wineID),
	}
	return r.db.Execute(ctx, query, vars)
}

// ListByUser returns the user's saved wines newest first, each joined with its wine
func (r *SavedWineRepository) ListByUser(ctx context.Context, userID string) ([]model.SavedWine, error) {
	query := `
		SELECT * FROM saved_wine
		WHERE user = type::thing('profile', $user_key)
		ORDER BY date_saved DESC
		FETCH wine
	`
	results, err := r.db.Query(ctx, query, map[string]interface{}{"user_key": model.RecordKey(userID)})
	if err != nil {
		return nil, err
	}

	records := recordMaps(results, 0)
	list := make([]model.SavedWine, 0, len(records))
	for _, data := range records {
		sw, err := parseSavedWine(data)
		if err != nil {
			return nil, err
		}
		list = append(list, *sw)
	}
	return list, nil
}

// Exists reports whether the user has saved the wine
func (r *SavedWineRepository) Exists(ctx context.Context, userID, wineID string) (bool, error) {
	query := `
		SELECT count() AS count FROM saved_wine
		WHERE user = type::thing('profile', $user_key)
			AND wine = type::thing('wine', $wine_key)
		GROUP ALL
	`
	vars := map[string]interface{}{
		"user_key": model.RecordKey(userID),
		"wine_key": model.RecordKey(wineID),
	}
	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return false, err
	}
	records := recordMaps(results, 0)
	if len(records) == 0 {
		return false, nil
	}
	return extractCountValue(records[0]["count"]) > 0, nil
}

type savedWineRow struct {
	User       string          `json:"user"`
	Wine       json.RawMessage `json:"wine"`
	DateSaved  time.Time       `json:"date_saved"`
	DateTried  *time.Time      `json:"date_tried"`
	UserRating *int            `json:"user_rating"`
	UserNotes  *string         `json:"user_notes"`
	Location   *string         `json:"location"`
}

func parseSavedWine(data map[string]interface{}) (*model.SavedWine, error) {
	var row savedWineRow
	if err := decodeRecord(data, &row); err != nil {
		return nil, err
	}

	sw := &model.SavedWine{
		UserID:     row.User,
		DateSaved:  row.DateSaved,
		DateTried:  row.DateTried,
		UserRating: row.UserRating,
		UserNotes:  row.UserNotes,
		Location:   row.Location,
	}

	// FETCH replaces the link with the record; without it the link is a string
	if raw := bytes.TrimSpace(row.Wine); len(raw) > 0 && raw[0] == '{' {
		var wine model.Wine
		if err := json.Unmarshal(raw, &wine); err != nil {
			return nil, err
		}
		wine.ID = model.RecordKey(wine.ID)
		sw.Wine = &wine
		sw.WineID = wine.ID
	} else if len(raw) > 0 {
		var link string
		if err := json.Unmarshal(raw, &link); err != nil {
			return nil, err
		}
		sw.WineID = model.RecordKey(link)
	}

	return sw, nil
}
