package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/forgo/sipmate/api/internal/database"
	"github.com/forgo/sipmate/api/internal/model"
	"github.com/forgo/sipmate/api/pkg/jwt"
)

// ============================================================================
// Mock Repositories
// ============================================================================

type mockAccountRepo struct {
	mu        sync.Mutex
	accounts  map[string]*model.Account
	nextID    int
	createErr error
	getErr    error
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{accounts: make(map[string]*model.Account)}
}

func (m *mockAccountRepo) Create(ctx context.Context, account *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, a := range m.accounts {
		if a.Email == account.Email {
			return fmt.Errorf("%w: email already registered", database.ErrDuplicate)
		}
	}
	m.nextID++
	account.ID = fmt.Sprintf("account:acct%04d", m.nextID)
	account.CreatedOn = time.Now()
	account.UpdatedOn = account.CreatedOn
	stored := *account
	m.accounts[account.ID] = &stored
	return nil
}

func (m *mockAccountRepo) GetByID(ctx context.Context, id string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if a, ok := m.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (m *mockAccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, a := range m.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockAccountRepo) UpdatePassword(ctx context.Context, accountID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[accountID]; ok {
		a.Hash = &hash
	}
	return nil
}

func (m *mockAccountRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, id)
	return nil
}

func (m *mockAccountRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

type mockTokenRepo struct {
	mu           sync.Mutex
	tokens       map[string]*RefreshToken // hash -> token
	createErr    error
	revokeAllErr error
}

func newMockTokenRepo() *mockTokenRepo {
	return &mockTokenRepo{tokens: make(map[string]*RefreshToken)}
}

func (m *mockTokenRepo) CreateRefreshToken(ctx context.Context, token *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	token.ID = "refresh_token:" + token.TokenHash[:12]
	stored := *token
	m.tokens[token.TokenHash] = &stored
	return nil
}

func (m *mockTokenRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[hash]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (m *mockTokenRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[hash]; ok {
		t.Revoked = true
	}
	return nil
}

func (m *mockTokenRepo) RevokeAllAccountTokens(ctx context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revokeAllErr != nil {
		return m.revokeAllErr
	}
	for _, t := range m.tokens {
		if t.AccountID == accountID {
			t.Revoked = true
		}
	}
	return nil
}

func (m *mockTokenRepo) activeFor(accountID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tokens {
		if t.AccountID == accountID && !t.Revoked {
			n++
		}
	}
	return n
}

type mockProfileRepo struct {
	mu             sync.Mutex
	users          map[string]*model.User
	createFunc     func(user *model.User) error
	getErr         error
	updateEmailErr error
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{users: make(map[string]*model.User)}
}

func (m *mockProfileRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFunc != nil {
		if err := m.createFunc(user); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := model.ProfileID(user.ID)
	if _, ok := m.users[id]; ok {
		return fmt.Errorf("%w: profile already exists", database.ErrRecordExists)
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Username, user.Username) {
			return fmt.Errorf("%w: username already taken", database.ErrDuplicate)
		}
	}
	user.ID = id
	user.CreatedOn = time.Now()
	user.UpdatedOn = user.CreatedOn
	stored := *user
	m.users[id] = &stored
	return nil
}

func (m *mockProfileRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *mockProfileRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockProfileRepo) UpdateEmail(ctx context.Context, id, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateEmailErr != nil {
		return m.updateEmailErr
	}
	if u, ok := m.users[id]; ok {
		u.Email = email
	}
	return nil
}

// put stores a profile directly, bypassing uniqueness checks
func (m *mockProfileRepo) put(user model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = &user
}

func (m *mockProfileRepo) get(id string) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

type mockWineRepo struct {
	mu    sync.Mutex
	wines []model.Wine
	err   error
	calls int
}

// hit counts a call and returns the configured error
func (m *mockWineRepo) hit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}

func (m *mockWineRepo) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockWineRepo) ListAll(ctx context.Context) ([]model.Wine, error) {
	if err := m.hit(); err != nil {
		return nil, err
	}
	return model.SortWines(m.wines, model.SortByName), nil
}

func (m *mockWineRepo) Search(ctx context.Context, term string) ([]model.Wine, error) {
	if err := m.hit(); err != nil {
		return nil, err
	}
	return model.ApplyWineQuery(m.wines, model.WineQuery{Search: term, Sort: model.SortByName}), nil
}

func (m *mockWineRepo) Filter(ctx context.Context, filter model.WineFilter) ([]model.Wine, error) {
	if err := m.hit(); err != nil {
		return nil, err
	}
	return model.ApplyWineQuery(m.wines, model.WineQuery{Filter: filter, Sort: model.SortByName}), nil
}

func (m *mockWineRepo) Sort(ctx context.Context, key model.SortKey) ([]model.Wine, error) {
	if err := m.hit(); err != nil {
		return nil, err
	}
	return model.SortWines(m.wines, key), nil
}

func (m *mockWineRepo) GetByID(ctx context.Context, id string) (*model.Wine, error) {
	if err := m.hit(); err != nil {
		return nil, err
	}
	for _, w := range m.wines {
		if w.ID == model.RecordKey(id) {
			cp := w
			return &cp, nil
		}
	}
	return nil, nil
}

type mockSavedWineRepo struct {
	mu        sync.Mutex
	rows      map[string]model.SavedWine // wineID -> row, single user per repo
	wines     map[string]model.Wine
	now       func() time.Time
	upsertErr error
	deleteErr error
	listErr   error
	// block, when set, is waited on by Upsert and Delete before they act
	block chan struct{}
}

func newMockSavedWineRepo(wines []model.Wine) *mockSavedWineRepo {
	m := &mockSavedWineRepo{
		rows:  make(map[string]model.SavedWine),
		wines: make(map[string]model.Wine),
		now:   time.Now,
	}
	for _, w := range wines {
		m.wines[w.ID] = w
	}
	return m
}

func (m *mockSavedWineRepo) Upsert(ctx context.Context, userID, wineID string, details model.SaveDetails) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	row, ok := m.rows[wineID]
	if !ok {
		row = model.SavedWine{UserID: userID, WineID: wineID, DateSaved: m.now().UTC()}
	}
	row.DateTried = details.DateTried
	row.UserRating = details.Rating
	row.UserNotes = details.Notes
	row.Location = details.Location
	m.rows[wineID] = row
	return nil
}

func (m *mockSavedWineRepo) Delete(ctx context.Context, userID, wineID string) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.rows, wineID)
	return nil
}

func (m *mockSavedWineRepo) ListByUser(ctx context.Context, userID string) ([]model.SavedWine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	list := make([]model.SavedWine, 0, len(m.rows))
	for _, row := range m.rows {
		if w, ok := m.wines[row.WineID]; ok {
			row.Wine = &w
		}
		list = append(list, row)
	}
	slices.SortFunc(list, func(a, b model.SavedWine) int {
		return b.DateSaved.Compare(a.DateSaved)
	})
	return list, nil
}

func (m *mockSavedWineRepo) setErrs(upsert, del, list error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertErr, m.deleteErr, m.listErr = upsert, del, list
}

func (m *mockSavedWineRepo) row(wineID string) (model.SavedWine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[wineID]
	return r, ok
}

// ============================================================================
// Helper Functions
// ============================================================================

func createTestJWTService(t *testing.T) *jwt.Service {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	return jwt.NewTestService(privateKey, "test-issuer", time.Hour)
}

func ptr[T any](v T) *T {
	return &v
}

// testCatalog is the wine list shared by catalog and saved wine tests
func testCatalog() []model.Wine {
	return []model.Wine{
		{ID: "w1", Name: "Cabernet Reserve", Winery: "Stone Hill", Region: "Napa Valley", Type: model.WineTypeRed, Price: 45, Rating: 4.6, Description: "Dark fruit and cedar"},
		{ID: "w2", Name: "Coastal Chardonnay", Winery: "Seabreeze", Region: "Sonoma", Type: model.WineTypeWhite, Price: 22, Rating: 4.1, Description: "Buttery with citrus"},
		{ID: "w3", Name: "Alpine Riesling", Winery: "Hochberg", Region: "Mosel", Type: model.WineTypeWhite, Price: 18, Rating: 4.4, Description: "Crisp, off-dry"},
		{ID: "w4", Name: "Old Vine Zinfandel", Winery: "Stone Hill", Region: "Lodi", Type: model.WineTypeRed, Price: 30, Rating: 3.9, Description: "Jammy and peppery"},
	}
}
