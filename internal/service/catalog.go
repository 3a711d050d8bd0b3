package service

import (
	"context"
	"errors"
	"strings"

	"github.com/forgo/sipmate/api/internal/model"
)

// WineRepository defines the interface for catalog storage
type WineRepository interface {
	ListAll(ctx context.Context) ([]model.Wine, error)
	Search(ctx context.Context, term string) ([]model.Wine, error)
	Filter(ctx context.Context, filter model.WineFilter) ([]model.Wine, error)
	Sort(ctx context.Context, key model.SortKey) ([]model.Wine, error)
	GetByID(ctx context.Context, id string) (*model.Wine, error)
}

// CatalogService reads the wine catalog. It keeps no cache: every call goes
// to the store.
type CatalogService struct {
	wineRepo WineRepository
}

// CatalogServiceConfig holds configuration for the catalog service
type CatalogServiceConfig struct {
	WineRepo WineRepository
}

// NewCatalogService creates a new catalog service
func NewCatalogService(cfg CatalogServiceConfig) *CatalogService {
	return &CatalogService{wineRepo: cfg.WineRepo}
}

// ListAll returns every wine ordered by name
func (s *CatalogService) ListAll(ctx context.Context) ([]model.Wine, error) {
	wines, err := s.wineRepo.ListAll(ctx)
	if err != nil {
		return nil, gatewayError(err)
	}
	return wines, nil
}

// Search matches q case-insensitively against name, winery, region and
// description. A blank q lists everything.
func (s *CatalogService) Search(ctx context.Context, q string) ([]model.Wine, error) {
	term := strings.ToLower(strings.TrimSpace(q))
	if term == "" {
		return s.ListAll(ctx)
	}
	wines, err := s.wineRepo.Search(ctx, term)
	if err != nil {
		return nil, gatewayError(err)
	}
	return wines, nil
}

// Filter returns wines matching every supplied criterion
func (s *CatalogService) Filter(ctx context.Context, filter model.WineFilter) ([]model.Wine, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	wines, err := s.wineRepo.Filter(ctx, filter)
	if err != nil {
		return nil, gatewayError(err)
	}
	return wines, nil
}

// Sort returns every wine in the order key selects
func (s *CatalogService) Sort(ctx context.Context, key model.SortKey) ([]model.Wine, error) {
	if !key.IsValid() {
		return nil, ErrInvalidSortKey
	}
	wines, err := s.wineRepo.Sort(ctx, key)
	if err != nil {
		return nil, gatewayError(err)
	}
	return wines, nil
}

// Get returns one wine
func (s *CatalogService) Get(ctx context.Context, id string) (*model.Wine, error) {
	wine, err := s.wineRepo.GetByID(ctx, id)
	if err != nil {
		return nil, gatewayError(err)
	}
	if wine == nil {
		return nil, ErrWineNotFound
	}
	return wine, nil
}

// Exists reports whether the wine is in the catalog
func (s *CatalogService) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrWineNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Browse searches the store, then filters and sorts the result locally
func (s *CatalogService) Browse(ctx context.Context, q model.WineQuery) ([]model.Wine, error) {
	if err := validateFilter(q.Filter); err != nil {
		return nil, err
	}
	if q.Sort != "" && !q.Sort.IsValid() {
		return nil, ErrInvalidSortKey
	}

	wines, err := s.Search(ctx, q.Search)
	if err != nil {
		return nil, err
	}
	return model.ApplyWineQuery(wines, model.WineQuery{Filter: q.Filter, Sort: q.Sort}), nil
}

func validateFilter(f model.WineFilter) error {
	if f.Type != nil && !f.Type.IsValid() {
		return ErrInvalidWineType
	}
	if f.MinRating != nil && (*f.MinRating < model.MinWineRating || *f.MinRating > model.MaxWineRating) {
		return ErrInvalidMinRating
	}
	return nil
}
