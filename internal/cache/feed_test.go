package cache_test

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialnet/internal/cache"
)

func setupTestRedis(t *testing.T) *redis.Client {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	// DB 1 keeps test keys away from dev data
	opts.DB = 1

	client := redis.NewClient(opts)
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	client.FlushDB(ctx)

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestFeedCache_OrderAndCursor(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	fc := cache.NewFeedCache(client, zerolog.Nop())

	require.NoError(t, fc.WarmCache(ctx, "u1", []cache.PostScore{
		{PostID: "p1", Timestamp: 1000},
		{PostID: "p2", Timestamp: 2000},
	}))
	require.NoError(t, fc.AddPost(ctx, "u1", "p3", 3000))

	ids, scores, err := fc.GetFeed(ctx, "u1", nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p2"}, ids)

	cursor := cache.FeedCursor{Score: scores[len(scores)-1], PostID: ids[len(ids)-1]}
	ids, _, err = fc.GetFeed(ctx, "u1", &cursor, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)

	require.NoError(t, fc.RemovePost(ctx, "u1", "p3"))
	ids, _, err = fc.GetFeed(ctx, "u1", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, ids)
}

func TestFeedCache_CursorKeepsSameMillisecondPosts(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	fc := cache.NewFeedCache(client, zerolog.Nop())

	require.NoError(t, fc.WarmCache(ctx, "u1", []cache.PostScore{
		{PostID: "a", Timestamp: 1000},
		{PostID: "b", Timestamp: 2000},
		{PostID: "c", Timestamp: 2000},
		{PostID: "d", Timestamp: 2000},
		{PostID: "e", Timestamp: 3000},
	}))

	var seen []string
	var cursor *cache.FeedCursor
	for i := 0; i < 10; i++ {
		ids, scores, err := fc.GetFeed(ctx, "u1", cursor, 2)
		require.NoError(t, err)
		seen = append(seen, ids...)
		if len(ids) < 2 {
			break
		}
		cursor = &cache.FeedCursor{Score: scores[len(scores)-1], PostID: ids[len(ids)-1]}
	}

	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, seen)
}

func TestFeedCursor_Follows(t *testing.T) {
	c := cache.FeedCursor{Score: 2000, PostID: "m"}

	assert.True(t, c.Follows(1999, "z"))
	assert.True(t, c.Follows(2000, "a"))
	assert.False(t, c.Follows(2000, "m"))
	assert.False(t, c.Follows(2000, "n"))
	assert.False(t, c.Follows(2001, "a"))
}

func TestFeedCache_Exists(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	fc := cache.NewFeedCache(client, zerolog.Nop())

	found, err := fc.Exists(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, fc.AddPost(ctx, "somebody", "p1", 1))
	found, err = fc.Exists(ctx, "somebody")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestFeedCache_Cap(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	fc := cache.NewFeedCache(client, zerolog.Nop())

	posts := make([]cache.PostScore, cache.FeedCacheCap+10)
	for i := range posts {
		posts[i] = cache.PostScore{PostID: "p-" + strconv.Itoa(i), Timestamp: int64(i)}
	}
	require.NoError(t, fc.WarmCache(ctx, "u1", posts))

	size, err := client.ZCard(ctx, cache.FeedCachePrefix+"u1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(cache.FeedCacheCap), size)
}
