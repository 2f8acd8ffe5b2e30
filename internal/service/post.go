package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"socialnet/internal/model"
	"socialnet/internal/queue"
	"socialnet/internal/repository"
)

const (
	PostsDefaultLimit = 10
	PostsMaxLimit     = 50
)

type PostService struct {
	postRepo repository.PostRepository
	threads  Reconstructor
	notifier Notifier
	events   eventSink
	log      zerolog.Logger
}

func NewPostService(
	postRepo repository.PostRepository,
	threads Reconstructor,
	notifier Notifier,
	publisher queue.Publisher,
	log zerolog.Logger,
) *PostService {
	return &PostService{
		postRepo: postRepo,
		threads:  threads,
		notifier: notifier,
		events:   eventSink{publisher: publisher, log: log},
		log:      log,
	}
}

// Create stores a post and publishes it for feed fan-out. Posts are public
// unless the request says otherwise.
func (s *PostService) Create(ctx context.Context, userID string, req model.CreatePostRequest) (model.PostView, error) {
	content, err := validatePostContent(req.Content)
	if err != nil {
		return model.PostView{}, err
	}

	public := true
	if req.Public != nil {
		public = *req.Public
	}

	post := &model.Post{ID: uuid.NewString(), OwnerID: userID, Content: content, Public: public}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return model.PostView{}, fmt.Errorf("create post: %w", err)
	}

	s.events.publish(ctx, queue.NewPostCreatedEvent(post.ID, userID, post.CreatedAt))

	views, err := s.threads.ReconstructMany(ctx, []model.Post{*post})
	if err != nil {
		return model.PostView{}, err
	}
	return views[0], nil
}

// Get renders a single post. Another user's private post reads as missing.
func (s *PostService) Get(ctx context.Context, viewerID, postID string) (model.PostView, error) {
	view, err := s.threads.Reconstruct(ctx, postID)
	if err != nil {
		return model.PostView{}, err
	}
	if !view.Public && view.Owner.ID != viewerID {
		return model.PostView{}, model.ErrPostNotFound
	}
	return view, nil
}

// Update replaces content and visibility. Only the owner may edit.
func (s *PostService) Update(ctx context.Context, userID, postID string, req model.UpdatePostRequest) (model.PostView, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return model.PostView{}, err
	}
	if post.OwnerID != userID {
		return model.PostView{}, model.ErrNotPostOwner
	}

	content, err := validatePostContent(req.Content)
	if err != nil {
		return model.PostView{}, err
	}
	public := post.Public
	if req.Public != nil {
		public = *req.Public
	}

	if _, err := s.postRepo.Update(ctx, postID, content, public); err != nil {
		return model.PostView{}, err
	}

	return s.renderAndNotify(ctx, postID, post.OwnerID, model.EventEditPost, model.ActionUpdated)
}

// ToggleLike adds or removes the caller's like. The post owner's followers
// are notified.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID string) (model.PostView, error) {
	post, err := s.postRepo.ToggleLike(ctx, postID, userID)
	if err != nil {
		return model.PostView{}, err
	}

	return s.renderAndNotify(ctx, postID, post.OwnerID, model.EventLikePost, model.ActionUpdated)
}

// Delete removes the post with every comment and reply on it. Feeds are
// cleaned up asynchronously; no live event is sent.
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.OwnerID != userID {
		return model.ErrNotPostOwner
	}

	if err := s.events.settle(ctx, s.postRepo.Delete(ctx, postID)); err != nil {
		return err
	}

	s.events.publish(ctx, queue.NewPostDeletedEvent(postID, userID))
	return nil
}

// ListByUser pages through ownerID's posts newest first. Private posts are
// listed only for their owner.
func (s *PostService) ListByUser(ctx context.Context, ownerID, viewerID string, page, limit int) (*model.PostPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = PostsDefaultLimit
	}
	if limit > PostsMaxLimit {
		limit = PostsMaxLimit
	}

	posts, total, err := s.postRepo.ListByOwner(ctx, ownerID, viewerID, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	views, err := s.threads.ReconstructMany(ctx, posts)
	if err != nil {
		return nil, err
	}

	return &model.PostPage{
		Posts:   views,
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasMore: page*limit < total,
	}, nil
}

// renderAndNotify rebuilds the post after a committed write and fans it out.
func (s *PostService) renderAndNotify(ctx context.Context, postID, ownerID, eventName, action string) (model.PostView, error) {
	view, err := s.threads.Reconstruct(ctx, postID)
	if err != nil {
		return model.PostView{}, err
	}
	s.notifier.Notify(ctx, ownerID, eventName, action, view)
	return view, nil
}

func validatePostContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", model.ErrPostContentRequired
	}
	if utf8.RuneCountInString(content) > model.MaxPostLength {
		return "", model.ErrPostTooLong
	}
	return content, nil
}
