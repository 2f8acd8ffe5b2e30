package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"socialnet/internal/cache"
	"socialnet/internal/queue"
	"socialnet/internal/repository"
)

type FollowerProvider interface {
	GetFollowerIDs(ctx context.Context, userID string) ([]string, error)
}

// RecentPostsProvider returns a user's newest posts as (id, score) pairs for
// feed backfill.
type RecentPostsProvider interface {
	GetRecentPostsByUser(ctx context.Context, userID string, limit int) ([]cache.PostScore, error)
}

const (
	backfillLimit = 20
	removeLimit   = 100
)

// Handler applies stream events: feed fan-out and store repairs.
type Handler struct {
	feedCache        cache.FeedCache
	followerProvider FollowerProvider
	postsProvider    RecentPostsProvider
	repairer         repository.Repairer
	log              zerolog.Logger
}

func NewHandler(
	feedCache cache.FeedCache,
	followerProvider FollowerProvider,
	postsProvider RecentPostsProvider,
	repairer repository.Repairer,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		feedCache:        feedCache,
		followerProvider: followerProvider,
		postsProvider:    postsProvider,
		repairer:         repairer,
		log:              log,
	}
}

// HandleEvent routes an event by type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.Event) error {
	start := time.Now()
	var err error

	switch event.Type {
	case queue.EventPostCreated:
		err = h.handlePostCreated(ctx, event)
	case queue.EventPostDeleted:
		err = h.handlePostDeleted(ctx, event)
	case queue.EventUserFollowed:
		err = h.handleUserFollowed(ctx, event)
	case queue.EventUserUnfollowed:
		err = h.handleUserUnfollowed(ctx, event)
	case queue.EventRepairPostCascade:
		err = h.repairer.RepairPostCascade(ctx, event.PostID)
	case queue.EventRepairCommentCascade:
		err = h.repairer.RepairCommentCascade(ctx, event.CommentID)
	case queue.EventRepairAttach:
		err = h.repairer.RepairAttach(ctx, event.CommentID)
	case queue.EventRepairFollow:
		err = h.repairer.RepairFollowEdge(ctx, event.FollowerID, event.FolloweeID)
	case queue.EventRepairUserEdges:
		err = h.repairer.RepairUserEdges(ctx, event.UserID)
	default:
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		h.log.Error().Err(err).Str("type", event.Type).Dur("duration", time.Since(start)).Msg("handle event failed")
		return err
	}

	h.log.Debug().Str("type", event.Type).Dur("duration", time.Since(start)).Msg("event handled")
	return nil
}

// handlePostCreated adds the post to the author's feed and every follower's.
// A failed cache write for one follower does not stop the rest.
func (h *Handler) handlePostCreated(ctx context.Context, event queue.Event) error {
	followers, err := h.followerProvider.GetFollowerIDs(ctx, event.AuthorID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	failed := 0
	for _, id := range append(followers, event.AuthorID) {
		if err := h.feedCache.AddPost(ctx, id, event.PostID, event.Timestamp); err != nil {
			h.log.Warn().Err(err).Str("user_id", id).Str("post_id", event.PostID).Msg("feed add failed")
			failed++
		}
	}

	h.log.Debug().Str("post_id", event.PostID).Int("fanout", len(followers)+1).Int("failed", failed).Msg("post fanned out")
	return nil
}

func (h *Handler) handlePostDeleted(ctx context.Context, event queue.Event) error {
	followers, err := h.followerProvider.GetFollowerIDs(ctx, event.AuthorID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	for _, id := range append(followers, event.AuthorID) {
		if err := h.feedCache.RemovePost(ctx, id, event.PostID); err != nil {
			h.log.Warn().Err(err).Str("user_id", id).Str("post_id", event.PostID).Msg("feed remove failed")
		}
	}
	return nil
}

func (h *Handler) handleUserFollowed(ctx context.Context, event queue.Event) error {
	posts, err := h.postsProvider.GetRecentPostsByUser(ctx, event.FolloweeID, backfillLimit)
	if err != nil {
		return fmt.Errorf("get recent posts: %w", err)
	}

	for _, p := range posts {
		if err := h.feedCache.AddPost(ctx, event.FollowerID, p.PostID, p.Timestamp); err != nil {
			h.log.Warn().Err(err).Str("post_id", p.PostID).Msg("feed backfill failed")
		}
	}
	return nil
}

func (h *Handler) handleUserUnfollowed(ctx context.Context, event queue.Event) error {
	posts, err := h.postsProvider.GetRecentPostsByUser(ctx, event.FolloweeID, removeLimit)
	if err != nil {
		return fmt.Errorf("get posts to remove: %w", err)
	}

	for _, p := range posts {
		if err := h.feedCache.RemovePost(ctx, event.FollowerID, p.PostID); err != nil {
			h.log.Warn().Err(err).Str("post_id", p.PostID).Msg("feed remove failed")
		}
	}
	return nil
}
