package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Saved wine constraints
const (
	MinUserRating     = 1
	MaxUserRating     = 5
	MaxNotesLength    = 500
	MaxLocationLength = 200
)

// SavedWine associates a user with a wine they keep in their library.
// At most one exists per (UserID, WineID).
type SavedWine struct {
	UserID     string     `json:"user_id"`
	WineID     string     `json:"wine_id"`
	DateSaved  time.Time  `json:"date_saved"`
	DateTried  *time.Time `json:"date_tried,omitempty"`
	UserRating *int       `json:"user_rating,omitempty"`
	UserNotes  *string    `json:"user_notes,omitempty"`
	Location   *string    `json:"location,omitempty"`
	Wine       *Wine      `json:"wine,omitempty"`
}

// SaveDetails are the optional fields written on save. Absent fields are
// stored as null, overwriting whatever was there.
type SaveDetails struct {
	Rating    *int       `json:"rating,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	DateTried *time.Time `json:"date_tried,omitempty"`
	Location  *string    `json:"location,omitempty"`
}

// Normalize trims free-text fields and drops ones that end up empty
func (d *SaveDetails) Normalize() {
	d.Notes = trimmedOrNil(d.Notes)
	d.Location = trimmedOrNil(d.Location)
}

// Validate validates the details
func (d *SaveDetails) Validate() []FieldError {
	var errors []FieldError

	if d.Rating != nil && (*d.Rating < MinUserRating || *d.Rating > MaxUserRating) {
		errors = append(errors, FieldError{Field: "rating", Message: fmt.Sprintf("rating must be between %d and %d", MinUserRating, MaxUserRating)})
	}
	if d.Notes != nil && utf8.RuneCountInString(*d.Notes) > MaxNotesLength {
		errors = append(errors, FieldError{Field: "notes", Message: fmt.Sprintf("notes must be %d characters or less", MaxNotesLength)})
	}
	if d.Location != nil && utf8.RuneCountInString(*d.Location) > MaxLocationLength {
		errors = append(errors, FieldError{Field: "location", Message: fmt.Sprintf("location must be %d characters or less", MaxLocationLength)})
	}

	return errors
}

// SavedWineStats summarises a user's library
type SavedWineStats struct {
	Total int `json:"total"`
	Red   int `json:"red"`
	White int `json:"white"`
	Rated int `json:"rated"`
}

// ComputeSavedWineStats counts saved wines by type and rated entries
func ComputeSavedWineStats(list []SavedWine) SavedWineStats {
	stats := SavedWineStats{Total: len(list)}
	for _, sw := range list {
		if sw.Wine != nil {
			switch sw.Wine.Type {
			case WineTypeRed:
				stats.Red++
			case WineTypeWhite:
				stats.White++
			}
		}
		if sw.UserRating != nil {
			stats.Rated++
		}
	}
	return stats
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
