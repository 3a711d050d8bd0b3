package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/forgo/sipmate/api/internal/middleware"
	"github.com/forgo/sipmate/api/internal/model"
	"github.com/forgo/sipmate/api/internal/service"
)

// ============================================================================
// Mock AuthAPI
// ============================================================================

type mockAuthService struct {
	registerFunc       func(ctx context.Context, req service.RegisterRequest) (*service.RegisterResult, error)
	loginFunc          func(ctx context.Context, req service.LoginRequest) (*service.LoginResult, error)
	logoutFunc         func(ctx context.Context, userID string) error
	currentUserFunc    func(ctx context.Context, userID string) (*model.User, error)
	changePasswordFunc func(ctx context.Context, userID, currentPassword, newPassword string) error
}

func (m *mockAuthService) Register(ctx context.Context, req service.RegisterRequest) (*service.RegisterResult, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, req)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, req service.LoginRequest) (*service.LoginResult, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, req)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, userID string) error {
	if m.logoutFunc != nil {
		return m.logoutFunc(ctx, userID)
	}
	return nil
}

func (m *mockAuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if m.currentUserFunc != nil {
		return m.currentUserFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockAuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if m.changePasswordFunc != nil {
		return m.changePasswordFunc(ctx, userID, currentPassword, newPassword)
	}
	return nil
}

type mockRefresher struct {
	refreshFunc func(ctx context.Context, refreshToken string) (*service.Session, error)
}

func (m *mockRefresher) Refresh(ctx context.Context, refreshToken string) (*service.Session, error) {
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx, refreshToken)
	}
	return nil, nil
}

// ============================================================================
// Mock CatalogAPI
// ============================================================================

type mockCatalog struct {
	browseFunc func(ctx context.Context, q model.WineQuery) ([]model.Wine, error)
	getFunc    func(ctx context.Context, id string) (*model.Wine, error)
}

func (m *mockCatalog) Browse(ctx context.Context, q model.WineQuery) ([]model.Wine, error) {
	if m.browseFunc != nil {
		return m.browseFunc(ctx, q)
	}
	return nil, nil
}

func (m *mockCatalog) Get(ctx context.Context, id string) (*model.Wine, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, service.ErrWineNotFound
}

// ============================================================================
// Mock SavedWinesAPI
// ============================================================================

type mockSavedWines struct {
	snapshotFunc func(ctx context.Context, userID string) (service.SavedWineSnapshot, error)
	saveFunc     func(ctx context.Context, userID, wineID string, details model.SaveDetails) error
	unsaveFunc   func(ctx context.Context, userID, wineID string) error
	isSavedFunc  func(ctx context.Context, userID, wineID string) (bool, error)
}

func (m *mockSavedWines) Snapshot(ctx context.Context, userID string) (service.SavedWineSnapshot, error) {
	if m.snapshotFunc != nil {
		return m.snapshotFunc(ctx, userID)
	}
	return service.SavedWineSnapshot{State: service.StoreReady, Wines: []model.SavedWine{}}, nil
}

func (m *mockSavedWines) Save(ctx context.Context, userID, wineID string, details model.SaveDetails) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, userID, wineID, details)
	}
	return nil
}

func (m *mockSavedWines) Unsave(ctx context.Context, userID, wineID string) error {
	if m.unsaveFunc != nil {
		return m.unsaveFunc(ctx, userID, wineID)
	}
	return nil
}

func (m *mockSavedWines) IsSaved(ctx context.Context, userID, wineID string) (bool, error) {
	if m.isSavedFunc != nil {
		return m.isSavedFunc(ctx, userID, wineID)
	}
	return false, nil
}

// ============================================================================
// Mock CommunityAPI
// ============================================================================

type mockCommunity struct {
	listPostsFunc  func(ctx context.Context, viewerID string) ([]model.PostView, error)
	getPostFunc    func(ctx context.Context, postID, viewerID string) (*model.PostView, error)
	createPostFunc func(ctx context.Context, userID string, req model.CreatePostRequest) (*model.PostView, error)
	addCommentFunc func(ctx context.Context, userID, postID, content string) (*model.Comment, error)
	likeFunc       func(ctx context.Context, userID, postID string) (*model.LikeState, error)
	unlikeFunc     func(ctx context.Context, userID, postID string) (*model.LikeState, error)
}

func (m *mockCommunity) ListPosts(ctx context.Context, viewerID string) ([]model.PostView, error) {
	if m.listPostsFunc != nil {
		return m.listPostsFunc(ctx, viewerID)
	}
	return nil, nil
}

func (m *mockCommunity) GetPost(ctx context.Context, postID, viewerID string) (*model.PostView, error) {
	if m.getPostFunc != nil {
		return m.getPostFunc(ctx, postID, viewerID)
	}
	return nil, service.ErrPostNotFound
}

func (m *mockCommunity) CreatePost(ctx context.Context, userID string, req model.CreatePostRequest) (*model.PostView, error) {
	if m.createPostFunc != nil {
		return m.createPostFunc(ctx, userID, req)
	}
	return nil, nil
}

func (m *mockCommunity) AddComment(ctx context.Context, userID, postID, content string) (*model.Comment, error) {
	if m.addCommentFunc != nil {
		return m.addCommentFunc(ctx, userID, postID, content)
	}
	return nil, nil
}

func (m *mockCommunity) Like(ctx context.Context, userID, postID string) (*model.LikeState, error) {
	if m.likeFunc != nil {
		return m.likeFunc(ctx, userID, postID)
	}
	return &model.LikeState{PostID: postID, Liked: true, LikesCount: 1}, nil
}

func (m *mockCommunity) Unlike(ctx context.Context, userID, postID string) (*model.LikeState, error) {
	if m.unlikeFunc != nil {
		return m.unlikeFunc(ctx, userID, postID)
	}
	return &model.LikeState{PostID: postID}, nil
}

// ============================================================================
// Test Helpers
// ============================================================================

const testUserID = "profile:alice"

func newTestUser() *model.User {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &model.User{
		ID:        testUserID,
		Username:  "wine_lover",
		Email:     "wine_lover@sipmate.local",
		CreatedOn: now,
		UpdatedOn: now,
	}
}

func newTestSession() *service.Session {
	return &service.Session{
		Account: &model.Account{ID: "account:alice", Email: "wine_lover@sipmate.local"},
		Tokens: &service.TokenPair{
			AccessToken:  "test-access-token",
			RefreshToken: "test-refresh-token",
			TokenType:    "Bearer",
			ExpiresIn:    900,
		},
	}
}

func newTestWine(id string, wineType model.WineType) model.Wine {
	return model.Wine{
		ID:        id,
		Name:      "Wine " + id,
		Winery:    "Test Winery",
		Region:    "Napa Valley",
		Type:      wineType,
		Price:     24.5,
		Rating:    4.2,
		ImageName: id + ".jpg",
	}
}

// passThrough stands in for auth and rate limit middleware
func passThrough(next http.Handler) http.Handler { return next }

// requireAuth rejects requests without a user in the context
func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if middleware.GetUserID(r.Context()) == "" {
			WriteError(w, model.NewUnauthorizedError("missing authorization header"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func makeJSONRequest(method, path string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withUserContext(req *http.Request, userID string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
	return req.WithContext(ctx)
}

func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func parseErrorResponse(t *testing.T, body []byte) *model.ProblemDetails {
	t.Helper()
	var problem model.ProblemDetails
	if err := json.Unmarshal(body, &problem); err != nil {
		t.Fatalf("failed to parse error response: %v", err)
	}
	return &problem
}

// decodeData decodes the data member of a DataResponse into out
func decodeData(t *testing.T, body []byte, out interface{}) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

func strPtr(s string) *string {
	return &s
}

func intPtr(i int) *int {
	return &i
}
