package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/forgo/sipmate/api/internal/model"
)

// CatalogAPI is the read-only wine catalog
type CatalogAPI interface {
	Browse(ctx context.Context, q model.WineQuery) ([]model.Wine, error)
	Get(ctx context.Context, id string) (*model.Wine, error)
}

// ImageURLs builds public image URLs for wines
type ImageURLs interface {
	ForWine(w model.Wine) string
}

// WineHandler handles wine catalog endpoints
type WineHandler struct {
	catalog CatalogAPI
	images  ImageURLs
}

// NewWineHandler creates a new wine handler
func NewWineHandler(catalog CatalogAPI, images ImageURLs) *WineHandler {
	return &WineHandler{catalog: catalog, images: images}
}

// WineResponse is a catalog wine with its resolved image URL
type WineResponse struct {
	model.Wine
	ImageURL string `json:"image_url"`
}

// RegisterRoutes registers wine routes
func (h *WineHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/wines", h.List)
	mux.HandleFunc("GET /v1/wines/{wineId}", h.Get)
}

// List handles GET /v1/wines
// Query params: q, type (red|white), min_rating (0-5), sort (name|price_asc|price_desc|rating)
func (h *WineHandler) List(w http.ResponseWriter, r *http.Request) {
	query, fieldErrs := parseWineQuery(r)
	if len(fieldErrs) > 0 {
		WriteError(w, model.NewValidationError(fieldErrs))
		return
	}

	wines, err := h.catalog.Browse(r.Context(), query)
	if err != nil {
		WriteServiceError(w, r, err, "browse wines")
		return
	}

	resp := make([]WineResponse, len(wines))
	for i, wine := range wines {
		resp[i] = h.toWineResponse(wine)
	}

	WriteCollection(w, resp, len(resp), map[string]string{
		"self": r.URL.RequestURI(),
	})
}

// Get handles GET /v1/wines/{wineId}
func (h *WineHandler) Get(w http.ResponseWriter, r *http.Request) {
	wineID := r.PathValue("wineId")
	if wineID == "" {
		WriteError(w, model.NewBadRequestError("wine ID required"))
		return
	}

	wine, err := h.catalog.Get(r.Context(), wineID)
	if err != nil {
		WriteServiceError(w, r, err, "get wine")
		return
	}

	WriteData(w, http.StatusOK, h.toWineResponse(*wine), map[string]string{
		"self": "/v1/wines/" + wine.ID,
		"save": "/v1/saved-wines/" + wine.ID,
	})
}

func (h *WineHandler) toWineResponse(wine model.Wine) WineResponse {
	resp := WineResponse{Wine: wine}
	if h.images != nil {
		resp.ImageURL = h.images.ForWine(wine)
	}
	return resp
}

// parseWineQuery reads the browse parameters. Range checks on the parsed
// values are left to the catalog.
func parseWineQuery(r *http.Request) (model.WineQuery, []model.FieldError) {
	params := r.URL.Query()
	q := model.WineQuery{
		Search: strings.TrimSpace(params.Get("q")),
		Sort:   model.SortKey(params.Get("sort")),
	}

	var errs []model.FieldError
	if v := params.Get("type"); v != "" {
		t := model.WineType(strings.ToLower(v))
		q.Filter.Type = &t
	}
	if v := params.Get("min_rating"); v != "" {
		rating, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, model.FieldError{Field: "min_rating", Message: "min_rating must be a number"})
		} else {
			q.Filter.MinRating = &rating
		}
	}
	return q, errs
}
