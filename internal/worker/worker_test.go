package worker_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialnet/internal/cache"
	"socialnet/internal/model"
	"socialnet/internal/queue"
	"socialnet/internal/worker"
)

// =============================================================================
// Fakes
// =============================================================================

type memFeedCache struct {
	mu    sync.Mutex
	feeds map[string]map[string]int64
}

func newMemFeedCache() *memFeedCache {
	return &memFeedCache{feeds: map[string]map[string]int64{}}
}

func (m *memFeedCache) AddPost(_ context.Context, userID, postID string, ts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.feeds[userID] == nil {
		m.feeds[userID] = map[string]int64{}
	}
	m.feeds[userID][postID] = ts
	return nil
}

func (m *memFeedCache) RemovePost(_ context.Context, userID, postID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.feeds[userID], postID)
	return nil
}

func (m *memFeedCache) GetFeed(_ context.Context, userID string, _ *cache.FeedCursor, _ int) ([]string, []float64, error) {
	return m.ids(userID), nil, nil
}

func (m *memFeedCache) WarmCache(ctx context.Context, userID string, posts []cache.PostScore) error {
	for _, p := range posts {
		_ = m.AddPost(ctx, userID, p.PostID, p.Timestamp)
	}
	return nil
}

func (m *memFeedCache) Exists(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.feeds[userID]
	return ok, nil
}

func (m *memFeedCache) ids(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id := range m.feeds[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type graph map[string][]string

func (g graph) GetFollowerIDs(_ context.Context, userID string) ([]string, error) {
	return append([]string(nil), g[userID]...), nil
}

type authored map[string][]cache.PostScore

func (a authored) GetRecentPostsByUser(_ context.Context, userID string, limit int) ([]cache.PostScore, error) {
	posts := a[userID]
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

type repairCall struct{ op, a, b string }

type recordingRepairer struct {
	mu    sync.Mutex
	calls []repairCall
	err   error
}

func (r *recordingRepairer) record(op, a, b string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, repairCall{op, a, b})
	return r.err
}

func (r *recordingRepairer) RepairPostCascade(_ context.Context, postID string) error {
	return r.record(model.RepairPostCascade, postID, "")
}

func (r *recordingRepairer) RepairCommentCascade(_ context.Context, commentID string) error {
	return r.record(model.RepairCommentCascade, commentID, "")
}

func (r *recordingRepairer) RepairAttach(_ context.Context, commentID string) error {
	return r.record(model.RepairAttach, commentID, "")
}

func (r *recordingRepairer) RepairFollowEdge(_ context.Context, followerID, followeeID string) error {
	return r.record(model.RepairFollowEdge, followerID, followeeID)
}

func (r *recordingRepairer) RepairUserEdges(_ context.Context, userID string) error {
	return r.record(model.RepairUserEdges, userID, "")
}

func newHandler(feed *memFeedCache, g graph, posts authored, rep *recordingRepairer) *worker.Handler {
	return worker.NewHandler(feed, g, posts, rep, zerolog.Nop())
}

// =============================================================================
// Handler
// =============================================================================

func TestHandler_PostCreatedFansOutToFollowersAndAuthor(t *testing.T) {
	feed := newMemFeedCache()
	h := newHandler(feed, graph{"alice": {"bob", "carol"}}, nil, &recordingRepairer{})

	ev := queue.NewPostCreatedEvent("p1", "alice", time.UnixMilli(1000))
	require.NoError(t, h.HandleEvent(context.Background(), ev))

	for _, u := range []string{"alice", "bob", "carol"} {
		assert.Equal(t, []string{"p1"}, feed.ids(u), u)
	}
	assert.Equal(t, int64(1000), feed.feeds["bob"]["p1"])
	assert.Empty(t, feed.ids("dave"))
}

func TestHandler_PostDeletedRemovesEverywhere(t *testing.T) {
	ctx := context.Background()
	feed := newMemFeedCache()
	for _, u := range []string{"alice", "bob"} {
		require.NoError(t, feed.AddPost(ctx, u, "p1", 1))
		require.NoError(t, feed.AddPost(ctx, u, "p2", 2))
	}
	h := newHandler(feed, graph{"alice": {"bob"}}, nil, &recordingRepairer{})

	require.NoError(t, h.HandleEvent(ctx, queue.NewPostDeletedEvent("p1", "alice")))

	assert.Equal(t, []string{"p2"}, feed.ids("alice"))
	assert.Equal(t, []string{"p2"}, feed.ids("bob"))
}

func TestHandler_FollowBackfillsAndUnfollowRemoves(t *testing.T) {
	ctx := context.Background()
	feed := newMemFeedCache()
	require.NoError(t, feed.AddPost(ctx, "bob", "other", 5))
	posts := authored{"alice": {{PostID: "a1", Timestamp: 1}, {PostID: "a2", Timestamp: 2}}}
	h := newHandler(feed, nil, posts, &recordingRepairer{})

	require.NoError(t, h.HandleEvent(ctx, queue.NewUserFollowedEvent("bob", "alice")))
	assert.Equal(t, []string{"a1", "a2", "other"}, feed.ids("bob"))

	require.NoError(t, h.HandleEvent(ctx, queue.NewUserUnfollowedEvent("bob", "alice")))
	assert.Equal(t, []string{"other"}, feed.ids("bob"))
}

func TestHandler_RoutesRepairs(t *testing.T) {
	ctx := context.Background()
	rep := &recordingRepairer{}
	h := newHandler(newMemFeedCache(), nil, nil, rep)

	for _, pw := range []*model.PartialWriteError{
		{Op: model.RepairPostCascade, SubjectID: "p1"},
		{Op: model.RepairCommentCascade, SubjectID: "c1", TargetID: "p1"},
		{Op: model.RepairAttach, SubjectID: "c2", TargetID: "p1"},
		{Op: model.RepairFollowEdge, SubjectID: "a", TargetID: "b"},
		{Op: model.RepairUserEdges, SubjectID: "gone"},
	} {
		ev, err := queue.NewRepairEvent(pw)
		require.NoError(t, err)
		require.NoError(t, h.HandleEvent(ctx, ev))
	}

	assert.Equal(t, []repairCall{
		{model.RepairPostCascade, "p1", ""},
		{model.RepairCommentCascade, "c1", ""},
		{model.RepairAttach, "c2", ""},
		{model.RepairFollowEdge, "a", "b"},
		{model.RepairUserEdges, "gone", ""},
	}, rep.calls)
}

func TestHandler_RepairErrorPropagates(t *testing.T) {
	rep := &recordingRepairer{err: errors.New("store down")}
	h := newHandler(newMemFeedCache(), nil, nil, rep)

	err := h.HandleEvent(context.Background(), queue.Event{Type: queue.EventRepairAttach, CommentID: "c1"})
	assert.Error(t, err)
}

func TestHandler_UnknownEventType(t *testing.T) {
	h := newHandler(newMemFeedCache(), nil, nil, &recordingRepairer{})
	assert.Error(t, h.HandleEvent(context.Background(), queue.Event{Type: "bogus"}))
}

func TestNewRepairEvent_UnknownOp(t *testing.T) {
	_, err := queue.NewRepairEvent(&model.PartialWriteError{Op: "nope"})
	assert.Error(t, err)
}

// =============================================================================
// Manager
// =============================================================================

type chanConsumer struct {
	mu      sync.Mutex
	pending []queue.Message
	queue   chan queue.Message
	acked   []string
}

func (c *chanConsumer) EnsureGroup(context.Context, string, string) error { return nil }

func (c *chanConsumer) Read(ctx context.Context, _, _, _ string, _ int64, block time.Duration) ([]queue.Message, error) {
	select {
	case msg := <-c.queue:
		return []queue.Message{msg}, nil
	case <-time.After(block):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *chanConsumer) ReadPending(context.Context, string, string, string, int64) ([]queue.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out, nil
}

func (c *chanConsumer) Ack(_ context.Context, _, _ string, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acked = append(c.acked, ids...)
	return nil
}

func (c *chanConsumer) Pending(context.Context, string, string) (int64, error) { return 0, nil }

func (c *chanConsumer) ackedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.acked)
}

func TestManager_ReplaysPendingThenConsumesAndAcks(t *testing.T) {
	feed := newMemFeedCache()
	h := newHandler(feed, graph{}, nil, &recordingRepairer{})

	consumer := &chanConsumer{
		pending: []queue.Message{{ID: "1-0", Event: queue.NewPostCreatedEvent("old", "alice", time.UnixMilli(1))}},
		queue:   make(chan queue.Message, 2),
	}
	consumer.queue <- queue.Message{ID: "2-0", Event: queue.NewPostCreatedEvent("new", "alice", time.UnixMilli(2))}
	consumer.queue <- queue.Message{ID: "3-0", Event: queue.Event{Type: "bogus"}}

	m := worker.NewManager(consumer, h, worker.ManagerConfig{WorkerCount: 1, BlockTimeout: 20 * time.Millisecond, Instance: "test"}, zerolog.Nop())
	require.NoError(t, m.Start(context.Background()))

	require.Eventually(t, func() bool { return consumer.ackedCount() == 3 }, 2*time.Second, 10*time.Millisecond)
	m.Stop()

	assert.Equal(t, []string{"new", "old"}, feed.ids("alice"))
}
