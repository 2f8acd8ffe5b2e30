// Package repotest holds behaviour checks shared by every repository backend.
package repotest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialnet/internal/model"
	"socialnet/internal/repository"
)

// Run exercises store against an empty database.
func Run(t *testing.T, store *repository.Store) {
	t.Run("UserEmailUnique", func(t *testing.T) { userEmailUnique(t, store) })
	t.Run("FollowRoundTrip", func(t *testing.T) { followRoundTrip(t, store) })
	t.Run("PostLikeToggle", func(t *testing.T) { postLikeToggle(t, store) })
	t.Run("CommentThread", func(t *testing.T) { commentThread(t, store) })
	t.Run("PostDeleteCascade", func(t *testing.T) { postDeleteCascade(t, store) })
	t.Run("ListByOwnerVisibility", func(t *testing.T) { listByOwnerVisibility(t, store) })
	t.Run("UserDeleteKeepsContent", func(t *testing.T) { userDeleteKeepsContent(t, store) })
}

func NewUser(t *testing.T, store *repository.Store, name string) *model.User {
	t.Helper()
	u := &model.User{
		ID:             uuid.NewString(),
		Name:           name,
		Email:          name + "-" + uuid.NewString()[:8] + "@example.com",
		PasswordHashed: "x",
	}
	require.NoError(t, store.Users.Create(context.Background(), u))
	return u
}

func NewPost(t *testing.T, store *repository.Store, ownerID string, public bool) *model.Post {
	t.Helper()
	p := &model.Post{ID: uuid.NewString(), OwnerID: ownerID, Content: "hello", Public: public}
	require.NoError(t, store.Posts.Create(context.Background(), p))
	return p
}

func userEmailUnique(t *testing.T, store *repository.Store) {
	ctx := context.Background()
	u := NewUser(t, store, "dup")

	err := store.Users.Create(ctx, &model.User{ID: uuid.NewString(), Name: "dup2", Email: u.Email, PasswordHashed: "x"})
	assert.ErrorIs(t, err, model.ErrEmailExists)

	exists, err := store.Users.ExistsByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.True(t, exists)
}

func followRoundTrip(t *testing.T, store *repository.Store) {
	ctx := context.Background()
	a := NewUser(t, store, "alice")
	b := NewUser(t, store, "bob")

	changed, err := store.Follows.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.Follows.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, changed, "second follow is a no-op")

	got, err := store.Users.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, got.Following)

	got, err = store.Users.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, got.Followers)

	suggestions, err := store.Users.WhoToFollow(ctx, a.ID)
	require.NoError(t, err)
	for _, s := range suggestions {
		assert.NotEqual(t, a.ID, s.ID)
		assert.NotEqual(t, b.ID, s.ID)
	}

	changed, err = store.Follows.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	ids, err := store.Follows.GetFollowerIDs(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func postLikeToggle(t *testing.T, store *repository.Store) {
	ctx := context.Background()
	u := NewUser(t, store, "liker")
	p := NewPost(t, store, u.ID, true)

	liked, err := store.Posts.ToggleLike(ctx, p.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{u.ID}, liked.Likes)

	unliked, err := store.Posts.ToggleLike(ctx, p.ID, u.ID)
	require.NoError(t, err)
	assert.Empty(t, unliked.Likes)
	assert.NotNil(t, unliked.Likes)

	_, err = store.Posts.ToggleLike(ctx, uuid.NewString(), u.ID)
	assert.ErrorIs(t, err, model.ErrPostNotFound)
}

func commentThread(t *testing.T, store *repository.Store) {
	ctx := context.Background()
	u := NewUser(t, store, "commenter")
	p := NewPost(t, store, u.ID, true)

	c := &model.Comment{ID: uuid.NewString(), PostID: p.ID, OwnerID: u.ID, Content: "top"}
	require.NoError(t, store.Comments.CreateComment(ctx, c))

	parent := c.ID
	r := &model.Comment{ID: uuid.NewString(), PostID: p.ID, ParentCommentID: &parent, OwnerID: u.ID, Content: "reply"}
	require.NoError(t, store.Comments.CreateReply(ctx, r))

	replyParent := r.ID
	nested := &model.Comment{ID: uuid.NewString(), PostID: p.ID, ParentCommentID: &replyParent, OwnerID: u.ID, Content: "nested"}
	assert.ErrorIs(t, store.Comments.CreateReply(ctx, nested), model.ErrCommentNotFound)

	post, err := store.Posts.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, post.CommentIDs)

	parentRow, err := store.Comments.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{r.ID}, parentRow.ReplyIDs)

	all, err := store.Comments.ListByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, store.Comments.DeleteComment(ctx, parentRow))
	_, err = store.Comments.GetByID(ctx, r.ID)
	assert.ErrorIs(t, err, model.ErrCommentNotFound, "replies go with their comment")

	post, err = store.Posts.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, post.CommentIDs)
}

func postDeleteCascade(t *testing.T, store *repository.Store) {
	ctx := context.Background()
	u := NewUser(t, store, "deleter")
	p := NewPost(t, store, u.ID, true)

	c := &model.Comment{ID: uuid.NewString(), PostID: p.ID, OwnerID: u.ID, Content: "top"}
	require.NoError(t, store.Comments.CreateComment(ctx, c))

	require.NoError(t, store.Posts.Delete(ctx, p.ID))

	_, err := store.Posts.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, model.ErrPostNotFound)
	_, err = store.Comments.GetByID(ctx, c.ID)
	assert.ErrorIs(t, err, model.ErrCommentNotFound)

	assert.ErrorIs(t, store.Posts.Delete(ctx, p.ID), model.ErrPostNotFound)
	require.NoError(t, store.Repairer.RepairPostCascade(ctx, p.ID))
}

func listByOwnerVisibility(t *testing.T, store *repository.Store) {
	ctx := context.Background()
	owner := NewUser(t, store, "owner")
	viewer := NewUser(t, store, "viewer")
	NewPost(t, store, owner.ID, true)
	NewPost(t, store, owner.ID, false)

	own, total, err := store.Posts.ListByOwner(ctx, owner.ID, owner.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, own, 2)

	other, total, err := store.Posts.ListByOwner(ctx, owner.ID, viewer.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, other, 1)
	assert.True(t, other[0].Public)
}

func userDeleteKeepsContent(t *testing.T, store *repository.Store) {
	ctx := context.Background()
	gone := NewUser(t, store, "gone")
	friend := NewUser(t, store, "friend")
	p := NewPost(t, store, gone.ID, true)

	_, err := store.Follows.Follow(ctx, friend.ID, gone.ID)
	require.NoError(t, err)
	_, err = store.Follows.Follow(ctx, gone.ID, friend.ID)
	require.NoError(t, err)

	require.NoError(t, store.Users.Delete(ctx, gone.ID))
	assert.ErrorIs(t, store.Users.Delete(ctx, gone.ID), model.ErrUserNotFound)

	_, err = store.Users.GetByID(ctx, gone.ID)
	assert.ErrorIs(t, err, model.ErrUserNotFound)

	followers, err := store.Follows.GetFollowerIDs(ctx, friend.ID)
	require.NoError(t, err)
	assert.Empty(t, followers)
	following, err := store.Follows.GetFolloweeIDs(ctx, friend.ID)
	require.NoError(t, err)
	assert.Empty(t, following)

	post, err := store.Posts.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, gone.ID, post.OwnerID)

	require.NoError(t, store.Repairer.RepairUserEdges(ctx, gone.ID))
}
