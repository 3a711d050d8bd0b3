package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/forgo/sipmate/api/internal/model"
)

// StoreState is the lifecycle state of a SavedWineStore
type StoreState string

const (
	StoreEmpty    StoreState = "empty"
	StoreLoading  StoreState = "loading"
	StoreReady    StoreState = "ready"
	StoreMutating StoreState = "mutating"
)

// SavedWineRepository defines the interface for saved wine storage
type SavedWineRepository interface {
	Upsert(ctx context.Context, userID, wineID string, details model.SaveDetails) error
	Delete(ctx context.Context, userID, wineID string) error
	ListByUser(ctx context.Context, userID string) ([]model.SavedWine, error)
}

// WineLookup resolves a catalog wine by id
type WineLookup interface {
	Get(ctx context.Context, id string) (*model.Wine, error)
}

// SavedWineSnapshot is a point-in-time copy of a store
type SavedWineSnapshot struct {
	State StoreState           `json:"state"`
	Wines []model.SavedWine    `json:"wines"`
	Stats model.SavedWineStats `json:"stats"`
}

// SavedWineStore holds one user's saved wines in memory and keeps them in
// step with the repository. Mutations are applied locally first and rolled
// back per wine if the write fails.
type SavedWineStore struct {
	userID   string
	repo     SavedWineRepository
	wines    WineLookup
	onChange func(SavedWineSnapshot)
	now      func() time.Time

	mu         sync.RWMutex
	items      []model.SavedWine
	loaded     bool
	loading    int
	pending    int
	generation uint64
	seq        uint64 // last issued sequence number
	appliedSeq uint64 // sequence of the write that produced items
}

func newSavedWineStore(userID string, repo SavedWineRepository, wines WineLookup, onChange func(SavedWineSnapshot)) *SavedWineStore {
	return &SavedWineStore{
		userID:   userID,
		repo:     repo,
		wines:    wines,
		onChange: onChange,
		now:      time.Now,
	}
}

// UserID returns the profile id the store belongs to
func (s *SavedWineStore) UserID() string {
	return s.userID
}

// State returns the current lifecycle state
func (s *SavedWineStore) State() StoreState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *SavedWineStore) stateLocked() StoreState {
	switch {
	case s.pending > 0:
		return StoreMutating
	case s.loading > 0:
		return StoreLoading
	case s.loaded:
		return StoreReady
	default:
		return StoreEmpty
	}
}

// List returns a copy of the saved wines, newest first
func (s *SavedWineStore) List() []model.SavedWine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// IsSaved reports whether the wine is in memory
func (s *SavedWineStore) IsSaved(wineID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(wineID) >= 0
}

// Stats summarises the saved wines
func (s *SavedWineStore) Stats() model.SavedWineStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.ComputeSavedWineStats(s.items)
}

// Snapshot returns state, list and stats taken together
func (s *SavedWineStore) Snapshot() SavedWineSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *SavedWineStore) snapshotLocked() SavedWineSnapshot {
	return SavedWineSnapshot{
		State: s.stateLocked(),
		Wines: slices.Clone(s.items),
		Stats: model.ComputeSavedWineStats(s.items),
	}
}

// Load replaces the in-memory list with the repository's. A result that
// arrives after a newer load, a local write or a Reset is discarded.
func (s *SavedWineStore) Load(ctx context.Context) error {
	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()
	return s.load(ctx, gen)
}

// load fetches on behalf of generation gen. It does nothing once the store
// has been reset past gen.
func (s *SavedWineStore) load(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	seq := s.nextSeqLocked()
	s.loading++
	s.mu.Unlock()
	s.broadcast()

	list, err := s.repo.ListByUser(ctx, s.userID)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	s.loading--
	if err == nil && seq > s.appliedSeq {
		s.items = list
		s.loaded = true
		s.appliedSeq = seq
	}
	s.mu.Unlock()
	s.broadcast()

	if err != nil {
		return gatewayError(err)
	}
	return nil
}

// Save adds the wine to the library or updates its details. The original
// save date survives updates.
func (s *SavedWineStore) Save(ctx context.Context, wineID string, details model.SaveDetails) error {
	details.Normalize()
	if err := saveDetailsError(details); err != nil {
		return err
	}

	wine, err := s.wines.Get(ctx, wineID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	gen := s.generation
	prev, prevIdx := s.takeLocked(wine.ID)
	entry := model.SavedWine{
		UserID:     s.userID,
		WineID:     wine.ID,
		DateSaved:  s.now().UTC(),
		DateTried:  details.DateTried,
		UserRating: details.Rating,
		UserNotes:  details.Notes,
		Location:   details.Location,
		Wine:       wine,
	}
	if prev != nil {
		entry.DateSaved = prev.DateSaved
	}
	s.items = slices.Insert(s.items, 0, entry)
	s.beginMutationLocked()
	s.mu.Unlock()
	s.broadcast()

	if err := s.repo.Upsert(ctx, s.userID, wine.ID, details); err != nil {
		s.rollback(gen, wine.ID, prev, prevIdx)
		return gatewayError(err)
	}

	s.finishMutation(ctx, gen)
	return nil
}

// Unsave removes the wine from the library. Removing a wine that is not
// saved succeeds.
func (s *SavedWineStore) Unsave(ctx context.Context, wineID string) error {
	wineID = model.RecordKey(wineID)

	s.mu.Lock()
	gen := s.generation
	prev, prevIdx := s.takeLocked(wineID)
	s.beginMutationLocked()
	s.mu.Unlock()
	s.broadcast()

	if err := s.repo.Delete(ctx, s.userID, wineID); err != nil {
		s.rollback(gen, wineID, prev, prevIdx)
		return gatewayError(err)
	}

	s.finishMutation(ctx, gen)
	return nil
}

// Reset empties the store. Results of operations still in flight are
// dropped.
func (s *SavedWineStore) Reset() {
	s.mu.Lock()
	s.generation++
	s.items = nil
	s.loaded = false
	s.loading = 0
	s.pending = 0
	s.appliedSeq = s.seq
	s.mu.Unlock()
	s.broadcast()
}

func (s *SavedWineStore) beginMutationLocked() {
	s.pending++
	s.appliedSeq = s.nextSeqLocked()
}

// rollback restores the entry a failed mutation replaced, leaving other wines
// alone
func (s *SavedWineStore) rollback(gen uint64, wineID string, prev *model.SavedWine, prevIdx int) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.takeLocked(wineID)
	if prev != nil {
		idx := min(prevIdx, len(s.items))
		s.items = slices.Insert(s.items, idx, *prev)
	}
	s.pending--
	s.appliedSeq = s.nextSeqLocked()
	s.mu.Unlock()
	s.broadcast()
}

// finishMutation refreshes from the repository and leaves Mutating. A failed
// refresh keeps the optimistic state.
func (s *SavedWineStore) finishMutation(ctx context.Context, gen uint64) {
	if err := s.load(ctx, gen); err != nil {
		slog.Warn("saved wines refresh failed",
			slog.String("user_id", s.userID),
			slog.String("error", err.Error()),
		)
	}

	s.mu.Lock()
	if gen == s.generation {
		s.pending--
	}
	s.mu.Unlock()
	s.broadcast()
}

// takeLocked removes the wine and returns a copy of it with its old index
func (s *SavedWineStore) takeLocked(wineID string) (*model.SavedWine, int) {
	idx := s.indexLocked(wineID)
	if idx < 0 {
		return nil, -1
	}
	prev := s.items[idx]
	s.items = slices.Delete(s.items, idx, idx+1)
	return &prev, idx
}

func (s *SavedWineStore) indexLocked(wineID string) int {
	key := model.RecordKey(wineID)
	return slices.IndexFunc(s.items, func(sw model.SavedWine) bool {
		return sw.WineID == key
	})
}

func (s *SavedWineStore) nextSeqLocked() uint64 {
	s.seq++
	return s.seq
}

func (s *SavedWineStore) broadcast() {
	if s.onChange == nil {
		return
	}
	s.onChange(s.Snapshot())
}

func saveDetailsError(details model.SaveDetails) error {
	for _, fe := range details.Validate() {
		switch fe.Field {
		case "rating":
			return ErrInvalidRating
		case "notes":
			return ErrNotesTooLong
		case "location":
			return ErrLocationTooLong
		}
	}
	return nil
}

// AuthStateSource publishes auth state changes
type AuthStateSource interface {
	OnAuthStateChange(fn AuthListener) func()
}

// SavedWineService keeps one SavedWineStore per signed-in user and
// broadcasts their changes on the event hub
type SavedWineService struct {
	repo     SavedWineRepository
	wines    WineLookup
	eventHub *EventHub

	mu     sync.Mutex
	stores map[string]*SavedWineStore

	unsubscribe func()
}

// SavedWineServiceConfig holds configuration for the saved wine service
type SavedWineServiceConfig struct {
	SavedWineRepo SavedWineRepository
	Wines         WineLookup
	EventHub      *EventHub       // optional
	Auth          AuthStateSource // optional
}

// NewSavedWineService creates a new saved wine service
func NewSavedWineService(cfg SavedWineServiceConfig) *SavedWineService {
	s := &SavedWineService{
		repo:     cfg.SavedWineRepo,
		wines:    cfg.Wines,
		eventHub: cfg.EventHub,
		stores:   make(map[string]*SavedWineStore),
	}
	if cfg.Auth != nil {
		s.unsubscribe = cfg.Auth.OnAuthStateChange(s.HandleAuthState)
	}
	return s
}

// Close detaches the service from auth state changes
func (s *SavedWineService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// HandleAuthState loads the store of a signed-in user and resets and drops
// it when there is no user
func (s *SavedWineService) HandleAuthState(ctx context.Context, state AuthState) {
	userID := model.ProfileID(state.AccountID)
	if state.User == nil {
		s.mu.Lock()
		store := s.stores[userID]
		delete(s.stores, userID)
		s.mu.Unlock()
		if store != nil {
			store.Reset()
		}
		return
	}

	store := s.storeFor(userID)
	if err := store.Load(ctx); err != nil {
		slog.Warn("failed to load saved wines",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// Store returns the user's store, loading it on first use
func (s *SavedWineService) Store(ctx context.Context, userID string) (*SavedWineStore, error) {
	if userID == "" {
		return nil, ErrNotSignedIn
	}
	store := s.storeFor(model.ProfileID(userID))
	if store.State() == StoreEmpty {
		if err := store.Load(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Snapshot returns the user's saved wines with state and stats
func (s *SavedWineService) Snapshot(ctx context.Context, userID string) (SavedWineSnapshot, error) {
	store, err := s.Store(ctx, userID)
	if err != nil {
		return SavedWineSnapshot{}, err
	}
	return store.Snapshot(), nil
}

// Save saves the wine for the user
func (s *SavedWineService) Save(ctx context.Context, userID, wineID string, details model.SaveDetails) error {
	store, err := s.Store(ctx, userID)
	if err != nil {
		return err
	}
	return store.Save(ctx, wineID, details)
}

// Unsave removes the wine from the user's library
func (s *SavedWineService) Unsave(ctx context.Context, userID, wineID string) error {
	store, err := s.Store(ctx, userID)
	if err != nil {
		return err
	}
	return store.Unsave(ctx, wineID)
}

// IsSaved reports whether the user has saved the wine
func (s *SavedWineService) IsSaved(ctx context.Context, userID, wineID string) (bool, error) {
	store, err := s.Store(ctx, userID)
	if err != nil {
		return false, err
	}
	return store.IsSaved(wineID), nil
}

func (s *SavedWineService) storeFor(userID string) *SavedWineStore {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, ok := s.stores[userID]
	if !ok {
		store = newSavedWineStore(userID, s.repo, s.wines, s.publisher(userID))
		s.stores[userID] = store
	}
	return store
}

func (s *SavedWineService) publisher(userID string) func(SavedWineSnapshot) {
	if s.eventHub == nil {
		return nil
	}
	return func(snap SavedWineSnapshot) {
		s.eventHub.SendToUser(userID, Event{Type: EventSavedWinesChanged, Data: snap})
	}
}
