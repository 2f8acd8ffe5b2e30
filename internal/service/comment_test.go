package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialnet/internal/model"
)

// thread sets up post P by A with top-level comment X by B. It returns the
// ids of P and X.
func (f *fixture) thread(t *testing.T) (string, string) {
	t.Helper()
	ctx := context.Background()
	f.user("A", "Alice")
	f.user("B", "Bob")
	f.user("C", "Carol")

	post, err := f.posts.Create(ctx, "A", model.CreatePostRequest{Content: "hello"})
	require.NoError(t, err)

	view, err := f.comments.CreateComment(ctx, "B", post.ID, model.CommentRequest{Content: "first"})
	require.NoError(t, err)
	require.Len(t, view.Comments, 1)

	return post.ID, view.Comments[0].ID
}

func TestCommentService_CreateCommentNotifiesPostOwner(t *testing.T) {
	f := newFixture()
	postID, commentID := f.thread(t)

	n := f.notifier.last()
	assert.Equal(t, "A", n.ownerID)
	assert.Equal(t, model.EventCreateComment, n.eventName)
	assert.Equal(t, model.ActionCreated, n.action)
	assert.Equal(t, postID, n.view.ID)
	require.Len(t, n.view.Comments, 1)
	assert.Equal(t, commentID, n.view.Comments[0].ID)
	assert.Equal(t, model.UserSummary{ID: "B", Name: "Bob"}, n.view.Comments[0].Owner)
}

func TestCommentService_CreateReplyNotifiesParentOwner(t *testing.T) {
	f := newFixture()
	_, x := f.thread(t)

	view, err := f.comments.CreateReply(context.Background(), "C", x, model.CommentRequest{Content: "reply"})
	require.NoError(t, err)

	require.Len(t, view.Comments, 1)
	require.Len(t, view.Comments[0].Replies, 1)
	assert.Equal(t, "reply", view.Comments[0].Replies[0].Content)
	assert.Equal(t, "C", view.Comments[0].Replies[0].Owner.ID)

	n := f.notifier.last()
	assert.Equal(t, "B", n.ownerID)
	assert.Equal(t, model.EventCreateReply, n.eventName)
	assert.Equal(t, model.ActionCreated, n.action)
}

func TestCommentService_ReplyToReplyIsRejected(t *testing.T) {
	f := newFixture()
	_, x := f.thread(t)
	ctx := context.Background()

	view, err := f.comments.CreateReply(ctx, "C", x, model.CommentRequest{Content: "reply"})
	require.NoError(t, err)
	y := view.Comments[0].Replies[0].ID
	before := len(f.mem.comments)
	calls := len(f.notifier.calls)

	_, err = f.comments.CreateReply(ctx, "A", y, model.CommentRequest{Content: "nested"})
	require.ErrorIs(t, err, model.ErrNestedReply)
	assert.True(t, model.IsBadRequest(err))

	assert.Len(t, f.mem.comments, before)
	assert.Len(t, f.notifier.calls, calls)
}

func TestCommentService_CreateCommentOnMissingPost(t *testing.T) {
	f := newFixture()
	f.user("A", "Alice")

	_, err := f.comments.CreateComment(context.Background(), "A", "missing", model.CommentRequest{Content: "hi"})
	require.ErrorIs(t, err, model.ErrPostNotFound)
	assert.Empty(t, f.notifier.calls)
}

func TestCommentService_ContentValidation(t *testing.T) {
	f := newFixture()
	postID, _ := f.thread(t)

	_, err := f.comments.CreateComment(context.Background(), "B", postID, model.CommentRequest{Content: "   "})
	require.ErrorIs(t, err, model.ErrContentRequired)
}

func TestCommentService_DeleteReplyKeepsSiblingsAndDeleteCommentCascades(t *testing.T) {
	f := newFixture()
	_, x := f.thread(t)
	ctx := context.Background()

	view, err := f.comments.CreateReply(ctx, "C", x, model.CommentRequest{Content: "y"})
	require.NoError(t, err)
	y := view.Comments[0].Replies[0].ID
	view, err = f.comments.CreateReply(ctx, "A", x, model.CommentRequest{Content: "z"})
	require.NoError(t, err)
	z := view.Comments[0].Replies[1].ID

	view, err = f.comments.DeleteReply(ctx, "C", y)
	require.NoError(t, err)
	require.Len(t, view.Comments[0].Replies, 1)
	assert.Equal(t, z, view.Comments[0].Replies[0].ID)
	assert.Equal(t, model.EventDeleteReply, f.notifier.last().eventName)
	assert.Equal(t, model.ActionDeleted, f.notifier.last().action)

	view, err = f.comments.DeleteComment(ctx, "B", x)
	require.NoError(t, err)
	assert.Empty(t, view.Comments)
	assert.Empty(t, f.mem.comments)

	_, err = f.store.Comments.GetByID(ctx, z)
	assert.ErrorIs(t, err, model.ErrCommentNotFound)
}

func TestCommentService_DeleteChecksKind(t *testing.T) {
	f := newFixture()
	_, x := f.thread(t)
	ctx := context.Background()

	view, err := f.comments.CreateReply(ctx, "B", x, model.CommentRequest{Content: "own reply"})
	require.NoError(t, err)
	y := view.Comments[0].Replies[0].ID

	_, err = f.comments.DeleteComment(ctx, "B", y)
	assert.ErrorIs(t, err, model.ErrIsAReply)

	_, err = f.comments.DeleteReply(ctx, "B", x)
	assert.ErrorIs(t, err, model.ErrNotAReply)

	assert.Len(t, f.mem.comments, 2)
}

func TestCommentService_NonOwnerCannotEditOrDelete(t *testing.T) {
	f := newFixture()
	_, x := f.thread(t)
	ctx := context.Background()
	calls := len(f.notifier.calls)

	_, err := f.comments.EditComment(ctx, "C", x, model.CommentRequest{Content: "hijack"})
	require.ErrorIs(t, err, model.ErrNotCommentOwner)
	assert.True(t, model.IsForbidden(err))

	_, err = f.comments.DeleteComment(ctx, "A", x)
	require.ErrorIs(t, err, model.ErrNotCommentOwner)

	c, err := f.store.Comments.GetByID(ctx, x)
	require.NoError(t, err)
	assert.Equal(t, "first", c.Content)
	assert.Len(t, f.notifier.calls, calls)
}

func TestCommentService_EditComment(t *testing.T) {
	f := newFixture()
	_, x := f.thread(t)

	view, err := f.comments.EditComment(context.Background(), "B", x, model.CommentRequest{Content: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", view.Comments[0].Content)

	n := f.notifier.last()
	assert.Equal(t, "B", n.ownerID)
	assert.Equal(t, model.EventEditComment, n.eventName)
	assert.Equal(t, model.ActionUpdated, n.action)
}

func TestCommentService_ToggleLikeTwiceRestores(t *testing.T) {
	f := newFixture()
	_, x := f.thread(t)
	ctx := context.Background()

	view, err := f.comments.ToggleLike(ctx, "C", x)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, view.Comments[0].Likes)
	assert.Equal(t, "B", f.notifier.last().ownerID)
	assert.Equal(t, model.EventLikeComment, f.notifier.last().eventName)

	view, err = f.comments.ToggleLike(ctx, "C", x)
	require.NoError(t, err)
	assert.Empty(t, view.Comments[0].Likes)
	assert.NotNil(t, view.Comments[0].Likes)
}
