package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/forgo/sipmate/api/internal/model"
)

const defaultPostLimit = 50

// CommunityRepository defines the interface for post, comment and like storage
type CommunityRepository interface {
	ListPosts(ctx context.Context, viewerID string, limit int) ([]model.PostView, error)
	GetPost(ctx context.Context, postID, viewerID string) (*model.PostView, error)
	PostExists(ctx context.Context, postID string) (bool, error)
	CreatePost(ctx context.Context, post *model.Post) error
	CreateComment(ctx context.Context, comment *model.Comment) error
	Like(ctx context.Context, userID, postID string) error
	Unlike(ctx context.Context, userID, postID string) error
	LikeState(ctx context.Context, userID, postID string) (*model.LikeState, error)
}

// CommunityService handles the community feed
type CommunityService struct {
	repo        CommunityRepository
	profileRepo ProfileRepository
	wines       WineLookup
	postLimit   int
}

// CommunityServiceConfig holds configuration for the community service
type CommunityServiceConfig struct {
	CommunityRepo CommunityRepository
	ProfileRepo   ProfileRepository
	Wines         WineLookup
	PostLimit     int // Default: 50
}

// NewCommunityService creates a new community service
func NewCommunityService(cfg CommunityServiceConfig) *CommunityService {
	if cfg.PostLimit <= 0 {
		cfg.PostLimit = defaultPostLimit
	}
	return &CommunityService{
		repo:        cfg.CommunityRepo,
		profileRepo: cfg.ProfileRepo,
		wines:       cfg.Wines,
		postLimit:   cfg.PostLimit,
	}
}

// ListPosts returns the feed newest first. viewerID may be empty.
func (s *CommunityService) ListPosts(ctx context.Context, viewerID string) ([]model.PostView, error) {
	posts, err := s.repo.ListPosts(ctx, viewerID, s.postLimit)
	if err != nil {
		return nil, gatewayError(err)
	}
	return posts, nil
}

// GetPost returns one post as seen by viewerID
func (s *CommunityService) GetPost(ctx context.Context, postID, viewerID string) (*model.PostView, error) {
	post, err := s.repo.GetPost(ctx, postID, viewerID)
	if err != nil {
		return nil, gatewayError(err)
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

// CreatePost publishes a post, optionally about a wine
func (s *CommunityService) CreatePost(ctx context.Context, userID string, req model.CreatePostRequest) (*model.PostView, error) {
	req.Normalize()
	if err := contentError(req.Content, model.MaxPostContentLength); err != nil {
		return nil, err
	}

	author, err := s.author(ctx, userID)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		UserID:   author.ID,
		Username: author.Username,
		Content:  req.Content,
	}

	view := &model.PostView{Comments: []model.Comment{}}
	if req.WineID != nil {
		wine, err := s.wines.Get(ctx, *req.WineID)
		if err != nil {
			return nil, err
		}
		post.WineID = &wine.ID
		view.WineName = &wine.Name
		view.Winery = &wine.Winery
	}

	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, gatewayError(err)
	}
	view.Post = *post
	return view, nil
}

// AddComment comments on an existing post
func (s *CommunityService) AddComment(ctx context.Context, userID, postID, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if err := contentError(content, model.MaxCommentContentLength); err != nil {
		return nil, err
	}

	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}

	author, err := s.author(ctx, userID)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{
		PostID:   postID,
		UserID:   author.ID,
		Username: author.Username,
		Content:  content,
	}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, gatewayError(err)
	}
	return comment, nil
}

// Like marks the post liked by the user. Liking twice counts once.
func (s *CommunityService) Like(ctx context.Context, userID, postID string) (*model.LikeState, error) {
	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	if err := s.repo.Like(ctx, model.ProfileID(userID), postID); err != nil {
		return nil, gatewayError(err)
	}
	return s.likeState(ctx, userID, postID)
}

// Unlike removes the user's like. Unliking a post that is not liked succeeds.
func (s *CommunityService) Unlike(ctx context.Context, userID, postID string) (*model.LikeState, error) {
	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	if err := s.repo.Unlike(ctx, model.ProfileID(userID), postID); err != nil {
		return nil, gatewayError(err)
	}
	return s.likeState(ctx, userID, postID)
}

// ToggleLike flips whether the user likes the post
func (s *CommunityService) ToggleLike(ctx context.Context, userID, postID string) (*model.LikeState, error) {
	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	current, err := s.likeState(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if current.Liked {
		return s.Unlike(ctx, userID, postID)
	}
	return s.Like(ctx, userID, postID)
}

func (s *CommunityService) likeState(ctx context.Context, userID, postID string) (*model.LikeState, error) {
	state, err := s.repo.LikeState(ctx, model.ProfileID(userID), postID)
	if err != nil {
		return nil, gatewayError(err)
	}
	state.PostID = postID
	return state, nil
}

func (s *CommunityService) requirePost(ctx context.Context, postID string) error {
	exists, err := s.repo.PostExists(ctx, postID)
	if err != nil {
		return gatewayError(err)
	}
	if !exists {
		return ErrPostNotFound
	}
	return nil
}

func (s *CommunityService) author(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrNotSignedIn
	}
	user, err := s.profileRepo.GetByID(ctx, model.ProfileID(userID))
	if err != nil {
		return nil, gatewayError(err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func contentError(content string, limit int) error {
	if content == "" {
		return ErrContentRequired
	}
	if utf8.RuneCountInString(content) > limit {
		return ErrContentTooLong
	}
	return nil
}
