package thread

import (
	"context"

	"github.com/rs/zerolog"

	"socialnet/internal/model"
)

// PostGetter loads the post a thread hangs off.
type PostGetter interface {
	GetByID(ctx context.Context, id string) (*model.Post, error)
}

// CommentLister returns the flat comment and reply rows of one or more posts.
type CommentLister interface {
	ListByPost(ctx context.Context, postID string) ([]model.Comment, error)
	ListByPosts(ctx context.Context, postIDs []string) ([]model.Comment, error)
}

// OwnerResolver maps user ids to summaries; ids it cannot find are left out.
type OwnerResolver interface {
	GetSummaries(ctx context.Context, ids []string) (map[string]model.UserSummary, error)
}

// Reconstructor loads a post with all of its comment rows and owners in three
// queries and builds its view.
type Reconstructor struct {
	posts    PostGetter
	comments CommentLister
	owners   OwnerResolver
	log      zerolog.Logger
}

// NewReconstructor returns a Reconstructor reading from the given stores.
func NewReconstructor(posts PostGetter, comments CommentLister, owners OwnerResolver, log zerolog.Logger) *Reconstructor {
	return &Reconstructor{posts: posts, comments: comments, owners: owners, log: log}
}

// Reconstruct builds the two-level view of one post. A missing post is
// model.ErrPostNotFound.
func (r *Reconstructor) Reconstruct(ctx context.Context, postID string) (model.PostView, error) {
	post, err := r.posts.GetByID(ctx, postID)
	if err != nil {
		return model.PostView{}, err
	}

	comments, err := r.comments.ListByPost(ctx, postID)
	if err != nil {
		return model.PostView{}, err
	}

	owners := r.resolveOwners(ctx, OwnerIDs(*post, comments))
	return Build(*post, comments, owners), nil
}

// ReconstructMany builds views for posts, keeping their order. Comments and
// owners for the whole batch are fetched once.
func (r *Reconstructor) ReconstructMany(ctx context.Context, posts []model.Post) ([]model.PostView, error) {
	if len(posts) == 0 {
		return []model.PostView{}, nil
	}

	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	comments, err := r.comments.ListByPosts(ctx, ids)
	if err != nil {
		return nil, err
	}

	byPost := make(map[string][]model.Comment, len(posts))
	for _, c := range comments {
		byPost[c.PostID] = append(byPost[c.PostID], c)
	}

	seen := make(map[string]struct{})
	var ownerIDs []string
	for _, p := range posts {
		for _, id := range OwnerIDs(p, byPost[p.ID]) {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ownerIDs = append(ownerIDs, id)
			}
		}
	}
	owners := r.resolveOwners(ctx, ownerIDs)

	views := make([]model.PostView, len(posts))
	for i, p := range posts {
		views[i] = Build(p, byPost[p.ID], owners)
	}
	return views, nil
}

// resolveOwners never fails: on lookup error every owner renders as unknown.
func (r *Reconstructor) resolveOwners(ctx context.Context, ids []string) map[string]model.UserSummary {
	owners, err := r.owners.GetSummaries(ctx, ids)
	if err != nil {
		r.log.Warn().Err(err).Int("owners", len(ids)).Msg("owner lookup failed, rendering unknown owners")
		return map[string]model.UserSummary{}
	}
	if len(owners) < len(ids) {
		r.log.Debug().Int("requested", len(ids)).Int("resolved", len(owners)).Msg("unresolved owners in thread")
	}
	return owners
}
