package handler

import (
	"context"
	"net/http"

	"github.com/forgo/sipmate/api/internal/middleware"
	"github.com/forgo/sipmate/api/internal/model"
	"github.com/forgo/sipmate/api/internal/service"
)

// SavedWinesAPI is the per-user saved wine library
type SavedWinesAPI interface {
	Snapshot(ctx context.Context, userID string) (service.SavedWineSnapshot, error)
	Save(ctx context.Context, userID, wineID string, details model.SaveDetails) error
	Unsave(ctx context.Context, userID, wineID string) error
	IsSaved(ctx context.Context, userID, wineID string) (bool, error)
}

// SavedWineHandler handles saved wine endpoints
type SavedWineHandler struct {
	savedWines SavedWinesAPI
}

// NewSavedWineHandler creates a new saved wine handler
func NewSavedWineHandler(savedWines SavedWinesAPI) *SavedWineHandler {
	return &SavedWineHandler{savedWines: savedWines}
}

// SavedStatusResponse reports whether one wine is saved
type SavedStatusResponse struct {
	WineID string `json:"wine_id"`
	Saved  bool   `json:"saved"`
}

// RegisterRoutes registers saved wine routes behind protect
func (h *SavedWineHandler) RegisterRoutes(mux *http.ServeMux, protect middleware.Middleware) {
	mux.Handle("GET /v1/saved-wines", protect(http.HandlerFunc(h.List)))
	mux.Handle("GET /v1/saved-wines/{wineId}", protect(http.HandlerFunc(h.Status)))
	mux.Handle("PUT /v1/saved-wines/{wineId}", protect(http.HandlerFunc(h.Save)))
	mux.Handle("DELETE /v1/saved-wines/{wineId}", protect(http.HandlerFunc(h.Unsave)))
}

// List handles GET /v1/saved-wines
func (h *SavedWineHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if !requireUser(w, userID) {
		return
	}

	snap, err := h.savedWines.Snapshot(r.Context(), userID)
	if err != nil {
		WriteServiceError(w, r, err, "list saved wines")
		return
	}

	WriteData(w, http.StatusOK, snap, map[string]string{
		"self":  "/v1/saved-wines",
		"wines": "/v1/wines",
	})
}

// Status handles GET /v1/saved-wines/{wineId}
func (h *SavedWineHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if !requireUser(w, userID) {
		return
	}
	wineID := r.PathValue("wineId")

	saved, err := h.savedWines.IsSaved(r.Context(), userID, wineID)
	if err != nil {
		WriteServiceError(w, r, err, "check saved wine")
		return
	}

	WriteData(w, http.StatusOK, SavedStatusResponse{WineID: wineID, Saved: saved}, nil)
}

// Save handles PUT /v1/saved-wines/{wineId}. The body is optional; saving
// again replaces the details and keeps the original save date.
func (h *SavedWineHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if !requireUser(w, userID) {
		return
	}
	wineID := r.PathValue("wineId")

	var details model.SaveDetails
	if err := DecodeOptionalJSON(r, &details); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	if err := h.savedWines.Save(r.Context(), userID, wineID, details); err != nil {
		WriteServiceError(w, r, err, "save wine")
		return
	}

	snap, err := h.savedWines.Snapshot(r.Context(), userID)
	if err != nil {
		WriteServiceError(w, r, err, "list saved wines")
		return
	}
	key := model.RecordKey(wineID)
	for _, sw := range snap.Wines {
		if sw.WineID == key {
			WriteData(w, http.StatusOK, sw, map[string]string{
				"self": "/v1/saved-wines/" + key,
				"wine": "/v1/wines/" + key,
			})
			return
		}
	}
	WriteData(w, http.StatusOK, SavedStatusResponse{WineID: key, Saved: true}, nil)
}

// Unsave handles DELETE /v1/saved-wines/{wineId}. Removing a wine that is
// not saved succeeds.
func (h *SavedWineHandler) Unsave(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if !requireUser(w, userID) {
		return
	}

	if err := h.savedWines.Unsave(r.Context(), userID, r.PathValue("wineId")); err != nil {
		WriteServiceError(w, r, err, "unsave wine")
		return
	}

	WriteNoContent(w)
}
