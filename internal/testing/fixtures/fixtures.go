// Package fixtures provides test data factories for e2e testing.
//
// Each factory method creates entities with sensible defaults while allowing
// customization via option functions. Factories write through the
// repositories and return fully populated models.
//
// Usage:
//
//	f := fixtures.New(tdb.DB)
//	user := f.CreateUser(t)
//	wine := f.CreateWine(t)
//	post := f.CreatePost(t, user)
package fixtures

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/sipmate/api/internal/database"
	"github.com/forgo/sipmate/api/internal/model"
	"github.com/forgo/sipmate/api/internal/repository"
)

// Defaults shared with the services under test
const (
	DefaultPassword  = "testpass123"
	DefaultAppDomain = "sipmate.local"
)

// Factory creates test entities in the database
type Factory struct {
	db        database.Database
	accounts  *repository.AccountRepository
	profiles  *repository.ProfileRepository
	wines     *repository.WineRepository
	saved     *repository.SavedWineRepository
	community *repository.CommunityRepository
}

// New creates a new fixture factory
func New(db database.Database) *Factory {
	return &Factory{
		db:        db,
		accounts:  repository.NewAccountRepository(db),
		profiles:  repository.NewProfileRepository(db),
		wines:     repository.NewWineRepository(db),
		saved:     repository.NewSavedWineRepository(db),
		community: repository.NewCommunityRepository(db),
	}
}

// randomID generates a random hex ID
func randomID() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

// ============================================================================
// User Fixtures
// ============================================================================

// UserOpts customizes user creation
type UserOpts struct {
	Username string
	Email    string // Default: <username>@sipmate.local
	Password string
}

// WithUsername sets the username
func WithUsername(username string) func(*UserOpts) {
	return func(o *UserOpts) { o.Username = username }
}

// WithEmail sets the sign-in email instead of the synthetic one
func WithEmail(email string) func(*UserOpts) {
	return func(o *UserOpts) { o.Email = email }
}

// WithPassword sets the password
func WithPassword(password string) func(*UserOpts) {
	return func(o *UserOpts) { o.Password = password }
}

// CreateUser creates an account and its paired profile
func (f *Factory) CreateUser(t *testing.T, opts ...func(*UserOpts)) *model.User {
	t.Helper()

	o := &UserOpts{
		Username: fmt.Sprintf("taster_%s", randomID()),
		Password: DefaultPassword,
	}
	for _, fn := range opts {
		fn(o)
	}
	if o.Email == "" {
		o.Email = o.Username + "@" + DefaultAppDomain
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(o.Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("fixtures: failed to hash password: %v", err)
	}
	hashStr := string(hash)

	account := &model.Account{Email: o.Email, Hash: &hashStr}
	if err := f.accounts.Create(ctx(t), account); err != nil {
		t.Fatalf("fixtures: failed to create account: %v", err)
	}

	user := &model.User{
		ID:       account.ID,
		Username: o.Username,
		Email:    o.Email,
	}
	if err := f.profiles.Create(ctx(t), user); err != nil {
		t.Fatalf("fixtures: failed to create profile: %v", err)
	}
	return user
}

// CreateAccountOnly creates an account with no profile, as left behind when
// profile creation fails after sign-up
func (f *Factory) CreateAccountOnly(t *testing.T, email string) *model.Account {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("fixtures: failed to hash password: %v", err)
	}
	hashStr := string(hash)

	account := &model.Account{Email: email, Hash: &hashStr}
	if err := f.accounts.Create(ctx(t), account); err != nil {
		t.Fatalf("fixtures: failed to create account: %v", err)
	}
	return account
}

// ============================================================================
// Catalog Fixtures
// ============================================================================

// WineOpts customizes wine creation
type WineOpts struct {
	ID        string
	Name      string
	Winery    string
	Region    string
	Type      model.WineType
	Price     float64
	Rating    float64
	ImageName string
}

// CreateWine upserts one catalog wine
func (f *Factory) CreateWine(t *testing.T, opts ...func(*WineOpts)) *model.Wine {
	t.Helper()

	o := &WineOpts{
		ID:     "w" + randomID(),
		Name:   "Test Cabernet",
		Winery: "Fixture Cellars",
		Region: "Napa Valley",
		Type:   model.WineTypeRed,
		Price:  25,
		Rating: 4.0,
	}
	for _, fn := range opts {
		fn(o)
	}

	wine := model.Wine{
		ID:        o.ID,
		Name:      o.Name,
		Winery:    o.Winery,
		Region:    o.Region,
		Type:      o.Type,
		Price:     o.Price,
		Rating:    o.Rating,
		ImageName: o.ImageName,
	}
	if err := f.wines.UpsertBatch(ctx(t), []model.Wine{wine}); err != nil {
		t.Fatalf("fixtures: failed to create wine: %v", err)
	}
	return &wine
}

// SeedCatalog writes a small fixed catalog: w1..w4
func (f *Factory) SeedCatalog(t *testing.T) []model.Wine {
	t.Helper()

	wines := []model.Wine{
		{ID: "w1", Name: "Cabernet Reserve", Winery: "Stag Hill", Region: "Napa Valley", Type: model.WineTypeRed, Price: 45, Rating: 4.6, FoodPairing: "Steak", ImageName: "cab.png"},
		{ID: "w2", Name: "Sancerre", Winery: "Domaine Vacheron", Region: "Loire", Type: model.WineTypeWhite, Price: 28.5, Rating: 4.2, FoodPairing: "Goat cheese"},
		{ID: "w3", Name: "Pinot Noir", Winery: "Willamette Ridge", Region: "Oregon", Type: model.WineTypeRed, Price: 32, Rating: 4.4},
		{ID: "w4", Name: "Chardonnay", Winery: "Stag Hill", Region: "Sonoma", Type: model.WineTypeWhite, Price: 19, Rating: 3.8},
	}
	if err := f.wines.UpsertBatch(ctx(t), wines); err != nil {
		t.Fatalf("fixtures: failed to seed catalog: %v", err)
	}
	return wines
}

// ============================================================================
// Saved Wine Fixtures
// ============================================================================

// SaveWine saves a wine for a user with optional details
func (f *Factory) SaveWine(t *testing.T, user *model.User, wineID string, details model.SaveDetails) {
	t.Helper()

	if err := f.saved.Upsert(ctx(t), model.ProfileID(user.ID), wineID, details); err != nil {
		t.Fatalf("fixtures: failed to save wine: %v", err)
	}
}

// ============================================================================
// Community Fixtures
// ============================================================================

// PostOpts customizes post creation
type PostOpts struct {
	Content string
	WineID  *string
}

// WithWine attaches a wine to a post
func WithWine(wineID string) func(*PostOpts) {
	return func(o *PostOpts) { o.WineID = &wineID }
}

// WithContent sets the post body
func WithContent(content string) func(*PostOpts) {
	return func(o *PostOpts) { o.Content = content }
}

// CreatePost creates a post authored by user
func (f *Factory) CreatePost(t *testing.T, user *model.User, opts ...func(*PostOpts)) *model.Post {
	t.Helper()

	o := &PostOpts{Content: fmt.Sprintf("Tasting note %s", randomID())}
	for _, fn := range opts {
		fn(o)
	}

	post := &model.Post{
		UserID:   model.ProfileID(user.ID),
		Username: user.Username,
		Content:  o.Content,
		WineID:   o.WineID,
	}
	if err := f.community.CreatePost(ctx(t), post); err != nil {
		t.Fatalf("fixtures: failed to create post: %v", err)
	}
	return post
}

// CreateComment adds a comment by user on post
func (f *Factory) CreateComment(t *testing.T, user *model.User, post *model.Post, content string) *model.Comment {
	t.Helper()

	comment := &model.Comment{
		PostID:   post.ID,
		UserID:   model.ProfileID(user.ID),
		Username: user.Username,
		Content:  content,
	}
	if err := f.community.CreateComment(ctx(t), comment); err != nil {
		t.Fatalf("fixtures: failed to create comment: %v", err)
	}
	return comment
}

// Like records that user likes post
func (f *Factory) Like(t *testing.T, user *model.User, post *model.Post) {
	t.Helper()

	if err := f.community.Like(ctx(t), model.ProfileID(user.ID), post.ID); err != nil {
		t.Fatalf("fixtures: failed to like post: %v", err)
	}
}
