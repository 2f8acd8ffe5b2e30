package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// FeedCachePrefix is the key prefix for user feed caches
	FeedCachePrefix = "feed:user:"

	// FeedCacheCap is the maximum number of posts to cache per user
	FeedCacheCap = 500

	// FeedCacheTTL is the TTL for feed cache (7 days)
	FeedCacheTTL = 7 * 24 * time.Hour
)

// PostScore is a post id with its creation time in unix milliseconds.
type PostScore struct {
	PostID    string
	Timestamp int64
}

// FeedCursor is the last entry of a served page. Feeds order by score, then
// post id, both descending, which is how Redis orders equal scores.
type FeedCursor struct {
	Score  float64
	PostID string
}

// Follows reports whether an entry belongs on a page after the cursor.
func (c FeedCursor) Follows(score float64, postID string) bool {
	return score < c.Score || (score == c.Score && postID < c.PostID)
}

// FeedCache keeps, per user, the ids of posts that belong in their news feed.
type FeedCache interface {
	// AddPost adds a post to a user's feed cache.
	// Uses pipeline: ZADD + ZREMRANGEBYRANK (maintain cap) + EXPIRE (refresh TTL)
	AddPost(ctx context.Context, userID, postID string, timestamp int64) error

	RemovePost(ctx context.Context, userID, postID string) error

	// GetFeed returns post ids newest first. With a cursor, only entries that
	// follow it are returned, so posts sharing the cursor's millisecond are
	// neither repeated nor skipped.
	GetFeed(ctx context.Context, userID string, cursor *FeedCursor, limit int) (postIDs []string, scores []float64, err error)

	// WarmCache bulk-inserts posts into a user's feed cache.
	WarmCache(ctx context.Context, userID string, posts []PostScore) error

	// Exists reports whether the user has a feed cache entry. A missing key
	// means a new user or an expired TTL; the caller warms it from the store.
	Exists(ctx context.Context, userID string) (bool, error)
}

// RedisFeedCache implements FeedCache using Redis Sorted Sets.
type RedisFeedCache struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewFeedCache creates a new FeedCache backed by Redis.
func NewFeedCache(client *redis.Client, log zerolog.Logger) FeedCache {
	return &RedisFeedCache{client: client, log: log.With().Str("component", "feed_cache").Logger()}
}

func feedKey(userID string) string {
	return FeedCachePrefix + userID
}

func (c *RedisFeedCache) AddPost(ctx context.Context, userID, postID string, timestamp int64) error {
	key := feedKey(userID)

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(timestamp), Member: postID})
	// Keep the newest FeedCacheCap members; rank 0 is the oldest.
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-FeedCacheCap-1))
	pipe.Expire(ctx, key, FeedCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Error().Err(err).Str("user", userID).Str("post", postID).Msg("add post failed")
		return fmt.Errorf("add post to feed: %w", err)
	}

	c.log.Debug().Str("user", userID).Str("post", postID).Int64("score", timestamp).Msg("add post")
	return nil
}

func (c *RedisFeedCache) RemovePost(ctx context.Context, userID, postID string) error {
	removed, err := c.client.ZRem(ctx, feedKey(userID), postID).Result()
	if err != nil {
		c.log.Error().Err(err).Str("user", userID).Str("post", postID).Msg("remove post failed")
		return fmt.Errorf("remove post from feed: %w", err)
	}

	c.log.Debug().Str("user", userID).Str("post", postID).Int64("removed", removed).Msg("remove post")
	return nil
}

func (c *RedisFeedCache) GetFeed(ctx context.Context, userID string, cursor *FeedCursor, limit int) ([]string, []float64, error) {
	key := feedKey(userID)

	results, err := c.page(ctx, key, cursor, limit)
	if err != nil {
		c.log.Error().Err(err).Str("user", userID).Msg("get feed failed")
		return nil, nil, fmt.Errorf("get feed: %w", err)
	}

	// Refresh TTL on access
	c.client.Expire(ctx, key, FeedCacheTTL)

	postIDs := make([]string, 0, len(results))
	scores := make([]float64, 0, len(results))
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected feed member %T", z.Member)
		}
		if cursor != nil && !cursor.Follows(z.Score, member) {
			continue
		}
		if len(postIDs) == limit {
			break
		}
		postIDs = append(postIDs, member)
		scores = append(scores, z.Score)
	}

	return postIDs, scores, nil
}

// page reads up to limit entries after cursor. The boundary score is read
// inclusively and widened by the number of members sharing it; GetFeed drops
// the ones at or before the cursor.
func (c *RedisFeedCache) page(ctx context.Context, key string, cursor *FeedCursor, limit int) ([]redis.Z, error) {
	if cursor == nil {
		return c.client.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	}

	boundary := strconv.FormatFloat(cursor.Score, 'f', -1, 64)
	ties, err := c.client.ZCount(ctx, key, boundary, boundary).Result()
	if err != nil {
		return nil, err
	}

	return c.client.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   boundary,
		Count: int64(limit) + ties,
	}).Result()
}

func (c *RedisFeedCache) WarmCache(ctx context.Context, userID string, posts []PostScore) error {
	if len(posts) == 0 {
		return nil
	}

	key := feedKey(userID)
	startTime := time.Now()

	members := make([]redis.Z, len(posts))
	for i, p := range posts {
		members[i] = redis.Z{Score: float64(p.Timestamp), Member: p.PostID}
	}

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-FeedCacheCap-1))
	pipe.Expire(ctx, key, FeedCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Error().Err(err).Str("user", userID).Int("posts", len(posts)).Msg("warm cache failed")
		return fmt.Errorf("warm cache: %w", err)
	}

	c.log.Info().Str("user", userID).Int("posts", len(posts)).Dur("duration", time.Since(startTime)).Msg("warm cache")
	return nil
}

func (c *RedisFeedCache) Exists(ctx context.Context, userID string) (bool, error) {
	exists, err := c.client.Exists(ctx, feedKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("check cache exists: %w", err)
	}
	return exists > 0, nil
}
