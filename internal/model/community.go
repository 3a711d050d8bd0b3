package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Community constraints
const (
	MaxPostContentLength    = 1000
	MaxCommentContentLength = 500
)

// Post is a community feed entry. Username is copied from the author's
// profile when the post is written.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	WineID    *string   `json:"wine_id,omitempty"`
	CreatedOn time.Time `json:"created_on"`
}

// Comment is a reply on a post
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedOn time.Time `json:"created_on"`
}

// PostView is a post as seen by one viewer: comments oldest first, the like
// count computed from post_like rows, and whether the viewer liked it.
type PostView struct {
	Post
	WineName   *string   `json:"wine_name,omitempty"`
	Winery     *string   `json:"winery,omitempty"`
	LikesCount int       `json:"likes_count"`
	IsLiked    bool      `json:"is_liked"`
	Comments   []Comment `json:"comments"`
}

// LikeState is the result of a like or unlike
type LikeState struct {
	PostID     string `json:"post_id"`
	Liked      bool   `json:"liked"`
	LikesCount int    `json:"likes_count"`
}

// CreatePostRequest represents the request body for creating a post
type CreatePostRequest struct {
	Content string  `json:"content"`
	WineID  *string `json:"wine_id,omitempty"`
}

// Normalize trims the content and drops a blank wine id
func (r *CreatePostRequest) Normalize() {
	r.Content = strings.TrimSpace(r.Content)
	if r.WineID != nil && strings.TrimSpace(*r.WineID) == "" {
		r.WineID = nil
	}
}

// Validate validates the request
func (r *CreatePostRequest) Validate() []FieldError {
	var errors []FieldError
	if r.Content == "" {
		errors = append(errors, FieldError{Field: "content", Message: "content is required"})
	} else if utf8.RuneCountInString(r.Content) > MaxPostContentLength {
		errors = append(errors, FieldError{Field: "content", Message: "content must be 1000 characters or less"})
	}
	return errors
}

// CreateCommentRequest represents the request body for commenting on a post
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// Validate validates the request
func (r *CreateCommentRequest) Validate() []FieldError {
	r.Content = strings.TrimSpace(r.Content)
	var errors []FieldError
	if r.Content == "" {
		errors = append(errors, FieldError{Field: "content", Message: "content is required"})
	} else if utf8.RuneCountInString(r.Content) > MaxCommentContentLength {
		errors = append(errors, FieldError{Field: "content", Message: "content must be 500 characters or less"})
	}
	return errors
}
