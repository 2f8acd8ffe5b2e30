package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"socialnet/internal/cache"
	"socialnet/internal/model"
	"socialnet/internal/repository"
)

const (
	FeedDefaultLimit = 10
	FeedMaxLimit     = 50

	// CacheWarmLimit is max posts to fetch when warming cache
	CacheWarmLimit = cache.FeedCacheCap
)

type FeedService struct {
	feedCache  cache.FeedCache
	postRepo   repository.PostRepository
	followRepo repository.FollowRepository
	threads    Reconstructor
	log        zerolog.Logger
}

func NewFeedService(
	feedCache cache.FeedCache,
	postRepo repository.PostRepository,
	followRepo repository.FollowRepository,
	threads Reconstructor,
	log zerolog.Logger,
) *FeedService {
	return &FeedService{
		feedCache:  feedCache,
		postRepo:   postRepo,
		followRepo: followRepo,
		threads:    threads,
		log:        log,
	}
}

// GetFeed returns the viewer's news feed newest first: posts by the users
// they follow and by themselves, excluding other users' private posts.
//
// Flow:
// 1. Warm the cache from the store on a miss
// 2. Read a page of post ids from the cache, older than the cursor
// 3. Load and filter the posts, then render them as threads
// 4. Build the next cursor from the last cached entry of the page
func (s *FeedService) GetFeed(ctx context.Context, userID string, cursor *string, limit int) (*model.FeedResponse, error) {
	start := time.Now()

	if limit <= 0 {
		limit = FeedDefaultLimit
	}
	if limit > FeedMaxLimit {
		limit = FeedMaxLimit
	}

	var after *cache.FeedCursor
	if cursor != nil && *cursor != "" {
		score, postID, err := parseFeedCursor(*cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidCursor, err)
		}
		after = &cache.FeedCursor{Score: score, PostID: postID}
	}

	exists, err := s.feedCache.Exists(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("feed cache check failed")
	}
	if !exists {
		if err := s.warmCache(ctx, userID); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("feed cache warm failed")
		}
	}

	postIDs, scores, err := s.feedCache.GetFeed(ctx, userID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("get feed from cache: %w", err)
	}
	if len(postIDs) == 0 {
		return &model.FeedResponse{Posts: []model.PostView{}}, nil
	}

	posts, err := s.postRepo.GetByIDs(ctx, postIDs)
	if err != nil {
		return nil, fmt.Errorf("get posts by ids: %w", err)
	}

	visible := posts[:0]
	for _, p := range posts {
		if p.VisibleTo(userID) {
			visible = append(visible, p)
		}
	}

	views, err := s.threads.ReconstructMany(ctx, visible)
	if err != nil {
		return nil, err
	}

	// a full page from the cache may have more behind it even if filtering
	// shortened it
	var nextCursor *string
	hasMore := len(postIDs) == limit
	if hasMore {
		last := len(postIDs) - 1
		c := formatFeedCursor(scores[last], postIDs[last])
		nextCursor = &c
	}

	s.log.Debug().
		Str("user_id", userID).
		Int("posts", len(views)).
		Bool("has_more", hasMore).
		Dur("duration", time.Since(start)).
		Msg("feed served")

	return &model.FeedResponse{
		Posts:      views,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// warmCache fills the user's feed cache with recent posts of everyone they
// follow plus their own.
func (s *FeedService) warmCache(ctx context.Context, userID string) error {
	followeeIDs, err := s.followRepo.GetFolloweeIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("get followee ids: %w", err)
	}
	followeeIDs = append(followeeIDs, userID)

	posts, err := s.postRepo.GetFeedPostIDs(ctx, followeeIDs, CacheWarmLimit)
	if err != nil {
		return fmt.Errorf("get feed post ids: %w", err)
	}
	if len(posts) == 0 {
		return nil
	}

	if err := s.feedCache.WarmCache(ctx, userID, posts); err != nil {
		return fmt.Errorf("warm cache: %w", err)
	}

	s.log.Debug().Str("user_id", userID).Int("posts", len(posts)).Msg("feed cache warmed")
	return nil
}

// parseFeedCursor parses a "postID:score" cursor.
func parseFeedCursor(cursor string) (float64, string, error) {
	i := strings.LastIndex(cursor, ":")
	if i <= 0 || i == len(cursor)-1 {
		return 0, "", fmt.Errorf("invalid cursor format, expected id:score")
	}

	score, err := strconv.ParseFloat(cursor[i+1:], 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid score in cursor: %w", err)
	}
	return score, cursor[:i], nil
}

func formatFeedCursor(score float64, id string) string {
	return fmt.Sprintf("%s:%.0f", id, score)
}
