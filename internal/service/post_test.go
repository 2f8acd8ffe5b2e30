package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialnet/internal/model"
	"socialnet/internal/queue"
	"socialnet/internal/repository"
	"socialnet/internal/thread"
)

func boolPtr(b bool) *bool { return &b }

func TestPostService_CreateDefaultsToPublicAndPublishes(t *testing.T) {
	f := newFixture()
	f.user("A", "Alice")

	view, err := f.posts.Create(context.Background(), "A", model.CreatePostRequest{Content: "  hello  "})
	require.NoError(t, err)

	assert.Equal(t, "hello", view.Content)
	assert.True(t, view.Public)
	assert.Equal(t, model.UserSummary{ID: "A", Name: "Alice"}, view.Owner)
	assert.NotNil(t, view.Likes)
	assert.NotNil(t, view.Comments)

	require.Len(t, f.publisher.events, 1)
	ev := f.publisher.events[0]
	assert.Equal(t, queue.EventPostCreated, ev.Type)
	assert.Equal(t, view.ID, ev.PostID)
	assert.Equal(t, view.Created.UnixMilli(), ev.Timestamp)
	assert.Empty(t, f.notifier.calls)
}

func TestPostService_CreateValidatesContent(t *testing.T) {
	f := newFixture()
	f.user("A", "Alice")

	_, err := f.posts.Create(context.Background(), "A", model.CreatePostRequest{Content: ""})
	assert.ErrorIs(t, err, model.ErrPostContentRequired)
	assert.Empty(t, f.mem.posts)
}

func TestPostService_ToggleLikeTwiceRestores(t *testing.T) {
	f := newFixture()
	f.user("A", "Alice")
	f.user("B", "Bob")
	ctx := context.Background()

	post, err := f.posts.Create(ctx, "A", model.CreatePostRequest{Content: "like me"})
	require.NoError(t, err)

	view, err := f.posts.ToggleLike(ctx, "B", post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, view.Likes)

	n := f.notifier.last()
	assert.Equal(t, "A", n.ownerID)
	assert.Equal(t, model.EventLikePost, n.eventName)
	assert.Equal(t, model.ActionUpdated, n.action)

	view, err = f.posts.ToggleLike(ctx, "B", post.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Likes)
}

func TestPostService_NonOwnerCannotEdit(t *testing.T) {
	f := newFixture()
	f.user("A", "Alice")
	f.user("B", "Bob")
	ctx := context.Background()

	post, err := f.posts.Create(ctx, "A", model.CreatePostRequest{Content: "original"})
	require.NoError(t, err)

	_, err = f.posts.Update(ctx, "B", post.ID, model.UpdatePostRequest{Content: "defaced", Public: boolPtr(false)})
	require.ErrorIs(t, err, model.ErrNotPostOwner)

	stored, err := f.store.Posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", stored.Content)
	assert.True(t, stored.Public)
	assert.Empty(t, f.notifier.calls)
}

func TestPostService_UpdateKeepsVisibilityWhenOmitted(t *testing.T) {
	f := newFixture()
	f.user("A", "Alice")
	ctx := context.Background()

	post, err := f.posts.Create(ctx, "A", model.CreatePostRequest{Content: "v1", Public: boolPtr(false)})
	require.NoError(t, err)

	view, err := f.posts.Update(ctx, "A", post.ID, model.UpdatePostRequest{Content: "v2"})
	require.NoError(t, err)
	assert.Equal(t, "v2", view.Content)
	assert.False(t, view.Public)
	assert.Equal(t, model.EventEditPost, f.notifier.last().eventName)
}

func TestPostService_DeleteCascadesWithoutLiveEvent(t *testing.T) {
	f := newFixture()
	postID, x := f.thread(t)
	ctx := context.Background()

	_, err := f.comments.CreateReply(ctx, "C", x, model.CommentRequest{Content: "reply"})
	require.NoError(t, err)
	calls := len(f.notifier.calls)

	require.ErrorIs(t, f.posts.Delete(ctx, "B", postID), model.ErrNotPostOwner)
	assert.Len(t, f.mem.comments, 2)

	require.NoError(t, f.posts.Delete(ctx, "A", postID))

	_, err = f.store.Posts.GetByID(ctx, postID)
	assert.ErrorIs(t, err, model.ErrPostNotFound)
	assert.Empty(t, f.mem.comments)
	assert.Len(t, f.notifier.calls, calls)
	assert.Contains(t, f.publisher.types(), queue.EventPostDeleted)

	_, err = f.posts.Get(ctx, "A", postID)
	assert.True(t, model.IsNotFound(err))
}

func TestPostService_PrivatePostHiddenFromOthers(t *testing.T) {
	f := newFixture()
	f.user("A", "Alice")
	f.user("B", "Bob")
	ctx := context.Background()

	post, err := f.posts.Create(ctx, "A", model.CreatePostRequest{Content: "secret", Public: boolPtr(false)})
	require.NoError(t, err)

	_, err = f.posts.Get(ctx, "B", post.ID)
	assert.ErrorIs(t, err, model.ErrPostNotFound)

	view, err := f.posts.Get(ctx, "A", post.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", view.Content)
}

func TestPostService_ListByUserPagesAndFilters(t *testing.T) {
	f := newFixture()
	f.user("A", "Alice")
	f.user("B", "Bob")
	ctx := context.Background()

	for _, p := range []model.CreatePostRequest{
		{Content: "one"},
		{Content: "two", Public: boolPtr(false)},
		{Content: "three"},
	} {
		_, err := f.posts.Create(ctx, "A", p)
		require.NoError(t, err)
	}

	page, err := f.posts.ListByUser(ctx, "A", "B", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "three", page.Posts[0].Content)

	page, err = f.posts.ListByUser(ctx, "A", "B", 2, 1)
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	assert.Equal(t, "one", page.Posts[0].Content)

	page, err = f.posts.ListByUser(ctx, "A", "A", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, PostsDefaultLimit, page.Limit)
	assert.Equal(t, 3, page.Total)
}

// halfPosts deletes the post but reports the comment cleanup as failed.
type halfPosts struct {
	repository.PostRepository
}

func (h halfPosts) Delete(ctx context.Context, id string) error {
	if err := h.PostRepository.Delete(ctx, id); err != nil {
		return err
	}
	return &model.PartialWriteError{Op: model.RepairPostCascade, SubjectID: id, Err: errors.New("timeout")}
}

func TestPostService_PartialDeleteSucceedsAndQueuesRepair(t *testing.T) {
	f := newFixture()
	f.user("A", "Alice")
	ctx := context.Background()

	post, err := f.posts.Create(ctx, "A", model.CreatePostRequest{Content: "bye"})
	require.NoError(t, err)

	threads := thread.NewReconstructor(f.store.Posts, f.store.Comments, f.store.Users, zerolog.Nop())
	svc := NewPostService(halfPosts{f.store.Posts}, threads, f.notifier, f.publisher, zerolog.Nop())

	require.NoError(t, svc.Delete(ctx, "A", post.ID))
	assert.Equal(t, []string{
		queue.EventPostCreated,
		queue.EventRepairPostCascade,
		queue.EventPostDeleted,
	}, f.publisher.types())
	assert.Equal(t, post.ID, f.publisher.events[1].PostID)
}
