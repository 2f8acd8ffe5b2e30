package model

import (
	"errors"
	"time"
)

// Comment represents both top-level comments and replies.
// A non-nil ParentCommentID marks a reply; only top-level comments carry ReplyIDs.
type Comment struct {
	ID              string    `db:"id" json:"id"`
	PostID          string    `db:"post_id" json:"post_id"`
	ParentCommentID *string   `db:"parent_comment_id" json:"parent_comment_id,omitempty"`
	OwnerID         string    `db:"owner_id" json:"owner_id"`
	Content         string    `db:"content" json:"content"`
	Likes           []string  `db:"-" json:"likes"`
	ReplyIDs        []string  `db:"-" json:"replies"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// IsReply reports whether the comment hangs off another comment.
func (c *Comment) IsReply() bool {
	return c.ParentCommentID != nil
}

// CommentView is a top-level comment with its replies.
type CommentView struct {
	ID      string      `json:"id"`
	Content string      `json:"content"`
	Owner   UserSummary `json:"owner"`
	Likes   []string    `json:"likes"`
	Replies []ReplyView `json:"replies"`
	Created time.Time   `json:"created"`
}

// ReplyView has no replies field: threads are two levels deep.
type ReplyView struct {
	ID      string      `json:"id"`
	Content string      `json:"content"`
	Owner   UserSummary `json:"owner"`
	Likes   []string    `json:"likes"`
	Created time.Time   `json:"created"`
}

// CommentRequest is the request body for creating or editing a comment or reply.
type CommentRequest struct {
	Content string `json:"content"`
}

// Comment constraints
const (
	MaxCommentLength = 2200 // Same as Instagram caption limit
)

// Comment errors
var (
	ErrCommentNotFound = errors.New("comment not found")
	ErrNotCommentOwner = errors.New("not the owner of this comment")
	ErrContentRequired = errors.New("comment content is required")
	ErrContentTooLong  = errors.New("comment content too long")
	ErrNestedReply     = errors.New("cannot nest replies")
	ErrNotAReply       = errors.New("target is a top-level comment, not a reply")
	ErrIsAReply        = errors.New("target is a reply, not a top-level comment")
)
