package handler

import (
	"context"
	"net/http"

	"github.com/forgo/sipmate/api/internal/middleware"
	"github.com/forgo/sipmate/api/internal/model"
)

// CommunityAPI is the community feed
type CommunityAPI interface {
	ListPosts(ctx context.Context, viewerID string) ([]model.PostView, error)
	GetPost(ctx context.Context, postID, viewerID string) (*model.PostView, error)
	CreatePost(ctx context.Context, userID string, req model.CreatePostRequest) (*model.PostView, error)
	AddComment(ctx context.Context, userID, postID, content string) (*model.Comment, error)
	Like(ctx context.Context, userID, postID string) (*model.LikeState, error)
	Unlike(ctx context.Context, userID, postID string) (*model.LikeState, error)
}

// CommunityHandler handles community feed endpoints
type CommunityHandler struct {
	community CommunityAPI
}

// NewCommunityHandler creates a new community handler
func NewCommunityHandler(community CommunityAPI) *CommunityHandler {
	return &CommunityHandler{community: community}
}

// RegisterRoutes registers community routes. Reads use optional so that
// is_liked reflects a signed-in viewer.
func (h *CommunityHandler) RegisterRoutes(mux *http.ServeMux, protect, optional middleware.Middleware) {
	mux.Handle("GET /v1/community/posts", optional(http.HandlerFunc(h.ListPosts)))
	mux.Handle("POST /v1/community/posts", protect(http.HandlerFunc(h.CreatePost)))
	mux.Handle("GET /v1/community/posts/{postId}", optional(http.HandlerFunc(h.GetPost)))
	mux.Handle("POST /v1/community/posts/{postId}/comments", protect(http.HandlerFunc(h.AddComment)))
	mux.Handle("PUT /v1/community/posts/{postId}/like", protect(http.HandlerFunc(h.Like)))
	mux.Handle("DELETE /v1/community/posts/{postId}/like", protect(http.HandlerFunc(h.Unlike)))
}

// ListPosts handles GET /v1/community/posts
func (h *CommunityHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.community.ListPosts(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		WriteServiceError(w, r, err, "list posts")
		return
	}
	if posts == nil {
		posts = []model.PostView{}
	}

	WriteCollection(w, posts, len(posts), map[string]string{
		"self": "/v1/community/posts",
	})
}

// GetPost handles GET /v1/community/posts/{postId}
func (h *CommunityHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("postId")

	post, err := h.community.GetPost(r.Context(), postID, middleware.GetUserID(r.Context()))
	if err != nil {
		WriteServiceError(w, r, err, "get post")
		return
	}

	WriteData(w, http.StatusOK, post, postLinks(post.ID))
}

// CreatePost handles POST /v1/community/posts
func (h *CommunityHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if !requireUser(w, userID) {
		return
	}

	var req model.CreatePostRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	post, err := h.community.CreatePost(r.Context(), userID, req)
	if err != nil {
		WriteServiceError(w, r, err, "create post")
		return
	}

	WriteData(w, http.StatusCreated, post, postLinks(post.ID))
}

// AddComment handles POST /v1/community/posts/{postId}/comments
func (h *CommunityHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if !requireUser(w, userID) {
		return
	}
	postID := r.PathValue("postId")

	var req model.CreateCommentRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	comment, err := h.community.AddComment(r.Context(), userID, postID, req.Content)
	if err != nil {
		WriteServiceError(w, r, err, "add comment")
		return
	}

	WriteData(w, http.StatusCreated, comment, map[string]string{
		"post": "/v1/community/posts/" + postID,
	})
}

// Like handles PUT /v1/community/posts/{postId}/like
func (h *CommunityHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.setLike(w, r, true)
}

// Unlike handles DELETE /v1/community/posts/{postId}/like
func (h *CommunityHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.setLike(w, r, false)
}

func (h *CommunityHandler) setLike(w http.ResponseWriter, r *http.Request, liked bool) {
	userID := middleware.GetUserID(r.Context())
	if !requireUser(w, userID) {
		return
	}
	postID := r.PathValue("postId")

	var (
		state *model.LikeState
		err   error
	)
	if liked {
		state, err = h.community.Like(r.Context(), userID, postID)
	} else {
		state, err = h.community.Unlike(r.Context(), userID, postID)
	}
	if err != nil {
		WriteServiceError(w, r, err, "update like")
		return
	}

	WriteData(w, http.StatusOK, state, map[string]string{
		"post": "/v1/community/posts/" + postID,
	})
}

func postLinks(postID string) map[string]string {
	self := "/v1/community/posts/" + postID
	return map[string]string{
		"self":     self,
		"comments": self + "/comments",
		"like":     self + "/like",
	}
}
