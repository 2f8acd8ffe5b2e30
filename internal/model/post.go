package model

import (
	"errors"
	"time"
)

// Post is a stored post. CommentIDs holds top-level comments in insertion order.
type Post struct {
	ID         string    `db:"id" json:"id"`
	OwnerID    string    `db:"owner_id" json:"owner_id"`
	Content    string    `db:"content" json:"content"`
	Public     bool      `db:"public" json:"public"`
	Likes      []string  `db:"-" json:"likes"`
	CommentIDs []string  `db:"-" json:"comments"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// VisibleTo reports whether the viewer may see the post.
func (p *Post) VisibleTo(viewerID string) bool {
	return p.Public || p.OwnerID == viewerID
}

// PostView is the fully reconstructed thread returned to clients and pushed
// over live channels.
type PostView struct {
	ID       string        `json:"id"`
	Content  string        `json:"content"`
	Public   bool          `json:"public"`
	Owner    UserSummary   `json:"owner"`
	Likes    []string      `json:"likes"`
	Comments []CommentView `json:"comments"`
	Created  time.Time     `json:"created"`
}

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest struct {
	Content string `json:"content"`
	Public  *bool  `json:"public"`
}

// UpdatePostRequest is the request body for editing a post.
type UpdatePostRequest struct {
	Content string `json:"content"`
	Public  *bool  `json:"public"`
}

// PostPage is a page of a user's posts, newest first.
type PostPage struct {
	Posts   []PostView `json:"posts"`
	Page    int        `json:"page"`
	Limit   int        `json:"limit"`
	Total   int        `json:"total"`
	HasMore bool       `json:"has_more"`
}

// FeedResponse is the paginated news feed response.
type FeedResponse struct {
	Posts      []PostView `json:"posts"`
	NextCursor *string    `json:"next_cursor,omitempty"`
	HasMore    bool       `json:"has_more"`
}

// Post constraints
const (
	MaxPostLength = 2200
)

// Post errors
var (
	ErrPostNotFound        = errors.New("post not found")
	ErrNotPostOwner        = errors.New("not the owner of this post")
	ErrPostContentRequired = errors.New("post content is required")
	ErrPostTooLong         = errors.New("post content too long")
)

// ErrInvalidCursor is returned for a malformed feed cursor.
var ErrInvalidCursor = errors.New("invalid cursor")
