package repository

import (
	"context"

	"socialnet/internal/cache"
	"socialnet/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	// GetByID returns the user with Followers and Following filled.
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// GetSummaries resolves owner summaries in one round trip. Unknown ids are
	// absent from the result rather than an error.
	GetSummaries(ctx context.Context, ids []string) (map[string]model.UserSummary, error)
	List(ctx context.Context) ([]model.UserSummary, error)
	UpdateProfile(ctx context.Context, id, name string, bio *string) (*model.User, error)
	// Delete removes the account and its follow edges. Posts and comments it
	// authored stay and render with an unknown owner.
	Delete(ctx context.Context, id string) error
	// WhoToFollow lists every user that is neither userID nor already followed by it.
	WhoToFollow(ctx context.Context, userID string) ([]model.UserSummary, error)
}

type FollowRepository interface {
	// Follow and Unfollow are idempotent; changed is false when the edge was
	// already in the requested state.
	Follow(ctx context.Context, followerID, followeeID string) (changed bool, err error)
	Unfollow(ctx context.Context, followerID, followeeID string) (changed bool, err error)
	GetFollowerIDs(ctx context.Context, userID string) ([]string, error)
	GetFolloweeIDs(ctx context.Context, userID string) ([]string, error)
	GetFollowers(ctx context.Context, userID string) ([]model.UserSummary, error)
	GetFollowing(ctx context.Context, userID string) ([]model.UserSummary, error)
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	// GetByIDs returns the posts that still exist, in the order of ids.
	GetByIDs(ctx context.Context, ids []string) ([]model.Post, error)
	Update(ctx context.Context, id, content string, public bool) (*model.Post, error)
	// ToggleLike adds userID to the likes set, or removes it if present, as one
	// atomic write.
	ToggleLike(ctx context.Context, id, userID string) (*model.Post, error)
	// Delete removes the post and every comment and reply that belongs to it.
	Delete(ctx context.Context, id string) error
	// ListByOwner returns ownerID's posts newest first. Private posts are
	// included only when viewerID is the owner.
	ListByOwner(ctx context.Context, ownerID, viewerID string, offset, limit int) ([]model.Post, int, error)
	GetRecentPostsByUser(ctx context.Context, userID string, limit int) ([]cache.PostScore, error)
	GetFeedPostIDs(ctx context.Context, ownerIDs []string, limit int) ([]cache.PostScore, error)
}

type CommentRepository interface {
	// CreateComment inserts a top-level comment and appends it to its post.
	CreateComment(ctx context.Context, comment *model.Comment) error
	// CreateReply inserts a reply and appends it to its parent comment.
	CreateReply(ctx context.Context, reply *model.Comment) error
	GetByID(ctx context.Context, id string) (*model.Comment, error)
	// ListByPost returns every comment and reply of the post in one query.
	ListByPost(ctx context.Context, postID string) ([]model.Comment, error)
	ListByPosts(ctx context.Context, postIDs []string) ([]model.Comment, error)
	UpdateContent(ctx context.Context, id, content string) (*model.Comment, error)
	ToggleLike(ctx context.Context, id, userID string) (*model.Comment, error)
	// DeleteComment removes a top-level comment, its replies, and its entry in
	// the post's comment list.
	DeleteComment(ctx context.Context, comment *model.Comment) error
	// DeleteReply removes a reply and its entry in the parent's reply list.
	DeleteReply(ctx context.Context, reply *model.Comment) error
}

// Repairer finishes multi-document writes that returned a
// model.PartialWriteError. Every method is safe to run more than once.
type Repairer interface {
	RepairPostCascade(ctx context.Context, postID string) error
	RepairCommentCascade(ctx context.Context, commentID string) error
	RepairAttach(ctx context.Context, commentID string) error
	RepairFollowEdge(ctx context.Context, followerID, followeeID string) error
	// RepairUserEdges drops every follow edge that still names a deleted user.
	RepairUserEdges(ctx context.Context, userID string) error
}

// Store bundles one backend's repositories.
type Store struct {
	Users    UserRepository
	Follows  FollowRepository
	Posts    PostRepository
	Comments CommentRepository
	Repairer Repairer
}
