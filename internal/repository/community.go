package repository

import (
	"context"
	"errors"
	"time"

	"github.com/forgo/sipmate/api/internal/database"
	"github.com/forgo/sipmate/api/internal/model"
)

// CommunityRepository handles posts, comments and likes. Like counts are
// always computed from post_like rows at read time.
type CommunityRepository struct {
	db database.Database
}

// NewCommunityRepository creates a new community repository
func NewCommunityRepository(db database.Database) *CommunityRepository {
	return &CommunityRepository{db: db}
}

// postViewProjection selects a post together with its wine name, comments
// (oldest first), like count and whether $viewer_key liked it
const postViewProjection = `
	SELECT
		*,
		wine.name AS wine_name,
		wine.winery AS winery,
		count((SELECT id FROM post_like WHERE post = $parent.id)) AS likes_count,
		IF $viewer_key THEN
			count((SELECT id FROM post_like WHERE post = $parent.id AND user = type::thing('profile', $viewer_key))) > 0
		ELSE false END AS is_liked,
		(SELECT * FROM comment WHERE post = $parent.id ORDER BY created_on ASC) AS comments
`

// ListPosts returns the newest posts first as seen by viewerID (may be empty)
func (r *CommunityRepository) ListPosts(ctx context.Context, viewerID string, limit int) ([]model.PostView, error) {
	query := postViewProjection + `
		FROM post
		ORDER BY created_on DESC
		LIMIT $limit
	`
	vars := map[string]interface{}{
		"viewer_key": viewerKey(viewerID),
		"limit":      limit,
	}

	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	records := recordMaps(results, 0)
	posts := make([]model.PostView, 0, len(records))
	for _, data := range records {
		pv, err := parsePostView(data)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *pv)
	}
	return posts, nil
}

// GetPost returns a single post as seen by viewerID
func (r *CommunityRepository) GetPost(ctx context.Context, postID, viewerID string) (*model.PostView, error) {
	query := postViewProjection + ` FROM type::thing('post', $post_key)`
	vars := map[string]interface{}{
		"post_key":   model.RecordKey(postID),
		"viewer_key": viewerKey(viewerID),
	}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	data, err := recordMap(result)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return parsePostView(data)
}

// PostExists reports whether the post exists
func (r *CommunityRepository) PostExists(ctx context.Context, postID string) (bool, error) {
	query := `SELECT id FROM type::thing('post', $post_key)`
	_, err := r.db.QueryOne(ctx, query, map[string]interface{}{"post_key": model.RecordKey(postID)})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreatePost creates a new post
func (r *CommunityRepository) CreatePost(ctx context.Context, post *model.Post) error {
	query := `
		CREATE post CONTENT {
			user: type::thing('profile', $user_key),
			username: $username,
			content: $content,
			wine: IF $wine_key IS NOT NULL THEN type::thing('wine', $wine_key) ELSE NONE END,
			created_on: time::now()
		}
	`
	var wineKey interface{}
	if post.WineID != nil {
		wineKey = model.RecordKey(*post.WineID)
	}
	vars := map[string]interface{}{
		"user_key": model.RecordKey(post.UserID),
		"username": post.Username,
		"content":  post.Content,
		"wine_key": wineKey,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}
	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}

	post.ID = created.ID
	post.CreatedOn = created.CreatedOn
	return nil
}

// CreateComment adds a comment to a post
func (r *CommunityRepository) CreateComment(ctx context.Context, comment *model.Comment) error {
	query := `
		CREATE comment CONTENT {
			post: type::thing('post', $post_key),
			user: type::thing('profile', $user_key),
			username: $username,
			content: $content,
			created_on: time::now()
		}
	`
	vars := map[string]interface{}{
		"post_key": model.RecordKey(comment.PostID),
		"user_key": model.RecordKey(comment.UserID),
		"username": comment.Username,
		"content":  comment.Content,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}
	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}

	comment.ID = created.ID
	comment.CreatedOn = created.CreatedOn
	return nil
}

// Like records that the user likes the post. Liking twice leaves one row.
func (r *CommunityRepository) Like(ctx context.Context, userID, postID string) error {
	query := `
		UPSERT type::thing('post_like', [type::thing('profile', $user_key), type::thing('post', $post_key)]) SET
			user = type::thing('profile', $user_key),
			post = type::thing('post', $post_key)
	`
	return r.db.Execute(ctx, query, likeVars(userID, postID))
}

// Unlike removes the user's like. Removing a missing like is not an error.
func (r *CommunityRepository) Unlike(ctx context.Context, userID, postID string) error {
	query := `
		DELETE post_like
		WHERE user = type::thing('profile', $user_key)
			AND post = type::thing('post', $post_key)
	`
	return r.db.Execute(ctx, query, likeVars(userID, postID))
}

// LikeState reads whether the user likes the post and the current like count
func (r *CommunityRepository) LikeState(ctx context.Context, userID, postID string) (*model.LikeState, error) {
	query := `
		RETURN {
			liked: count((SELECT id FROM post_like
				WHERE post = type::thing('post', $post_key)
					AND user = type::thing('profile', $user_key))) > 0,
			likes_count: count((SELECT id FROM post_like WHERE post = type::thing('post', $post_key)))
		}
	`
	result, err := r.db.QueryOne(ctx, query, likeVars(userID, postID))
	if err != nil {
		return nil, err
	}
	data, err := recordMap(result)
	if err != nil {
		return nil, err
	}

	liked, _ := data["liked"].(bool)
	return &model.LikeState{
		PostID:     postID,
		Liked:      liked,
		LikesCount: extractCountValue(data["likes_count"]),
	}, nil
}

func likeVars(userID, postID string) map[string]interface{} {
	return map[string]interface{}{
		"user_key": model.RecordKey(userID),
		"post_key": model.RecordKey(postID),
	}
}

func viewerKey(viewerID string) string {
	if viewerID == "" {
		return ""
	}
	return model.RecordKey(viewerID)
}

type commentRow struct {
	ID        string    `json:"id"`
	Post      string    `json:"post"`
	User      string    `json:"user"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedOn time.Time `json:"created_on"`
}

type postRow struct {
	ID         string       `json:"id"`
	User       string       `json:"user"`
	Username   string       `json:"username"`
	Content    string       `json:"content"`
	Wine       *string      `json:"wine"`
	CreatedOn  time.Time    `json:"created_on"`
	WineName   *string      `json:"wine_name"`
	Winery     *string      `json:"winery"`
	LikesCount int          `json:"likes_count"`
	IsLiked    bool         `json:"is_liked"`
	Comments   []commentRow `json:"comments"`
}

func parsePostView(data map[string]interface{}) (*model.PostView, error) {
	var row postRow
	if err := decodeRecord(data, &row); err != nil {
		return nil, err
	}

	pv := &model.PostView{
		Post: model.Post{
			ID:        row.ID,
			UserID:    row.User,
			Username:  row.Username,
			Content:   row.Content,
			CreatedOn: row.CreatedOn,
		},
		WineName:   row.WineName,
		Winery:     row.Winery,
		LikesCount: row.LikesCount,
		IsLiked:    row.IsLiked,
		Comments:   make([]model.Comment, 0, len(row.Comments)),
	}
	if row.Wine != nil {
		key := model.RecordKey(*row.Wine)
		pv.WineID = &key
	}
	for _, c := range row.Comments {
		pv.Comments = append(pv.Comments, model.Comment{
			ID:        c.ID,
			PostID:    c.Post,
			UserID:    c.User,
			Username:  c.Username,
			Content:   c.Content,
			CreatedOn: c.CreatedOn,
		})
	}
	return pv, nil
}
