package model

import (
	"cmp"
	"slices"
	"strings"
)

// WineType is the colour category of a wine
type WineType string

const (
	WineTypeRed   WineType = "red"
	WineTypeWhite WineType = "white"
)

// IsValid reports whether t is a known wine type
func (t WineType) IsValid() bool {
	return t == WineTypeRed || t == WineTypeWhite
}

// Wine is a catalog entry. ID is the bare record key ("w1"), which is also the
// public identifier used in URLs.
type Wine struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Winery            string   `json:"winery"`
	Region            string   `json:"region"`
	Type              WineType `json:"type"`
	Price             float64  `json:"price"`
	Rating            float64  `json:"rating"`
	AlcoholPercentage float64  `json:"alcohol_percentage"`
	FoodPairing       string   `json:"food_pairing"`
	Description       string   `json:"description"`
	ImageName         string   `json:"wine_image_name"`
	URL               *string  `json:"url,omitempty"`
}

// SortKey selects a catalog ordering
type SortKey string

const (
	SortByName      SortKey = "name"
	SortByPriceAsc  SortKey = "price_asc"
	SortByPriceDesc SortKey = "price_desc"
	SortByRating    SortKey = "rating" // highest first
)

// IsValid reports whether k is a known sort key
func (k SortKey) IsValid() bool {
	switch k {
	case SortByName, SortByPriceAsc, SortByPriceDesc, SortByRating:
		return true
	}
	return false
}

// Catalog constraints
const (
	MinWineRating = 0
	MaxWineRating = 5
)

// WineFilter narrows the catalog. Nil fields do not constrain.
type WineFilter struct {
	Type      *WineType `json:"type,omitempty"`
	MinRating *float64  `json:"min_rating,omitempty"`
}

// Matches reports whether w satisfies every supplied criterion
func (f WineFilter) Matches(w Wine) bool {
	if f.Type != nil && w.Type != *f.Type {
		return false
	}
	if f.MinRating != nil && w.Rating < *f.MinRating {
		return false
	}
	return true
}

// IsEmpty reports whether the filter has no criteria
func (f WineFilter) IsEmpty() bool {
	return f.Type == nil && f.MinRating == nil
}

// WineQuery is the combined search, filter and sort a collection screen asks for
type WineQuery struct {
	Search string     `json:"search,omitempty"`
	Filter WineFilter `json:"filter"`
	Sort   SortKey    `json:"sort,omitempty"`
}

// Validate validates the query
func (q *WineQuery) Validate() []FieldError {
	var errors []FieldError

	if q.Filter.Type != nil && !q.Filter.Type.IsValid() {
		errors = append(errors, FieldError{Field: "type", Message: "type must be 'red' or 'white'"})
	}
	if q.Filter.MinRating != nil && (*q.Filter.MinRating < MinWineRating || *q.Filter.MinRating > MaxWineRating) {
		errors = append(errors, FieldError{Field: "min_rating", Message: "min_rating must be between 0 and 5"})
	}
	if q.Sort != "" && !q.Sort.IsValid() {
		errors = append(errors, FieldError{Field: "sort", Message: "sort must be name, price_asc, price_desc, or rating"})
	}

	return errors
}

// MatchesSearch reports whether term occurs case-insensitively in the wine's
// name, winery, region or description. A blank term matches everything.
func MatchesSearch(w Wine, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, field := range []string{w.Name, w.Winery, w.Region, w.Description} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// SortWines returns a copy of wines ordered by key. Ties fall back to name and
// then id so the result is deterministic. An empty key keeps the input order.
func SortWines(wines []Wine, key SortKey) []Wine {
	out := slices.Clone(wines)
	if key == "" {
		return out
	}

	byName := func(a, b Wine) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}

	slices.SortStableFunc(out, func(a, b Wine) int {
		var c int
		switch key {
		case SortByPriceAsc:
			c = cmp.Compare(a.Price, b.Price)
		case SortByPriceDesc:
			c = cmp.Compare(b.Price, a.Price)
		case SortByRating:
			c = cmp.Compare(b.Rating, a.Rating)
		}
		if c != 0 {
			return c
		}
		return byName(a, b)
	})
	return out
}

// ApplyWineQuery composes search, filter and sort over an in-memory list.
// It never mutates its input.
func ApplyWineQuery(wines []Wine, q WineQuery) []Wine {
	out := make([]Wine, 0, len(wines))
	for _, w := range wines {
		if MatchesSearch(w, q.Search) && q.Filter.Matches(w) {
			out = append(out, w)
		}
	}
	return SortWines(out, q.Sort)
}
