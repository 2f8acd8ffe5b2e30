package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"socialnet/internal/model"
	"socialnet/internal/queue"
	"socialnet/internal/repository"
)

// CommentService handles comments and replies. Every mutation answers with
// the rebuilt post so clients can replace their copy wholesale.
type CommentService struct {
	commentRepo repository.CommentRepository
	threads     Reconstructor
	notifier    Notifier
	events      eventSink
	log         zerolog.Logger
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	threads Reconstructor,
	notifier Notifier,
	publisher queue.Publisher,
	log zerolog.Logger,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		threads:     threads,
		notifier:    notifier,
		events:      eventSink{publisher: publisher, log: log},
		log:         log,
	}
}

// CreateComment adds a top-level comment. The post owner's followers are
// notified.
func (s *CommentService) CreateComment(ctx context.Context, userID, postID string, req model.CommentRequest) (model.PostView, error) {
	content, err := validateCommentContent(req.Content)
	if err != nil {
		return model.PostView{}, err
	}

	c := &model.Comment{ID: uuid.NewString(), PostID: postID, OwnerID: userID, Content: content}
	if err := s.events.settle(ctx, s.commentRepo.CreateComment(ctx, c)); err != nil {
		return model.PostView{}, err
	}

	view, err := s.threads.Reconstruct(ctx, postID)
	if err != nil {
		return model.PostView{}, err
	}
	s.notifier.Notify(ctx, view.Owner.ID, model.EventCreateComment, model.ActionCreated, view)
	return view, nil
}

// CreateReply answers a top-level comment. Replies cannot be replied to.
// The parent comment owner's followers are notified.
func (s *CommentService) CreateReply(ctx context.Context, userID, commentID string, req model.CommentRequest) (model.PostView, error) {
	parent, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return model.PostView{}, err
	}
	if parent.IsReply() {
		return model.PostView{}, model.ErrNestedReply
	}

	content, err := validateCommentContent(req.Content)
	if err != nil {
		return model.PostView{}, err
	}

	parentID := parent.ID
	reply := &model.Comment{
		ID:              uuid.NewString(),
		PostID:          parent.PostID,
		ParentCommentID: &parentID,
		OwnerID:         userID,
		Content:         content,
	}
	if err := s.events.settle(ctx, s.commentRepo.CreateReply(ctx, reply)); err != nil {
		return model.PostView{}, err
	}

	return s.renderAndNotify(ctx, parent.PostID, parent.OwnerID, model.EventCreateReply, model.ActionCreated)
}

// EditComment replaces the content of a comment or reply owned by userID.
func (s *CommentService) EditComment(ctx context.Context, userID, commentID string, req model.CommentRequest) (model.PostView, error) {
	c, err := s.owned(ctx, userID, commentID)
	if err != nil {
		return model.PostView{}, err
	}

	content, err := validateCommentContent(req.Content)
	if err != nil {
		return model.PostView{}, err
	}

	if _, err := s.commentRepo.UpdateContent(ctx, commentID, content); err != nil {
		return model.PostView{}, err
	}

	return s.renderAndNotify(ctx, c.PostID, c.OwnerID, model.EventEditComment, model.ActionUpdated)
}

// DeleteComment removes a top-level comment and all of its replies.
func (s *CommentService) DeleteComment(ctx context.Context, userID, commentID string) (model.PostView, error) {
	c, err := s.owned(ctx, userID, commentID)
	if err != nil {
		return model.PostView{}, err
	}
	if c.IsReply() {
		return model.PostView{}, model.ErrIsAReply
	}

	if err := s.events.settle(ctx, s.commentRepo.DeleteComment(ctx, c)); err != nil {
		return model.PostView{}, err
	}

	return s.renderAndNotify(ctx, c.PostID, c.OwnerID, model.EventDeleteComment, model.ActionDeleted)
}

// DeleteReply removes a reply and detaches it from its parent.
func (s *CommentService) DeleteReply(ctx context.Context, userID, replyID string) (model.PostView, error) {
	r, err := s.owned(ctx, userID, replyID)
	if err != nil {
		return model.PostView{}, err
	}
	if !r.IsReply() {
		return model.PostView{}, model.ErrNotAReply
	}

	if err := s.events.settle(ctx, s.commentRepo.DeleteReply(ctx, r)); err != nil {
		return model.PostView{}, err
	}

	return s.renderAndNotify(ctx, r.PostID, r.OwnerID, model.EventDeleteReply, model.ActionDeleted)
}

// ToggleLike likes or unlikes a comment or reply.
func (s *CommentService) ToggleLike(ctx context.Context, userID, commentID string) (model.PostView, error) {
	c, err := s.commentRepo.ToggleLike(ctx, commentID, userID)
	if err != nil {
		return model.PostView{}, err
	}

	return s.renderAndNotify(ctx, c.PostID, c.OwnerID, model.EventLikeComment, model.ActionUpdated)
}

func (s *CommentService) owned(ctx context.Context, userID, commentID string) (*model.Comment, error) {
	c, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != userID {
		return nil, model.ErrNotCommentOwner
	}
	return c, nil
}

func (s *CommentService) renderAndNotify(ctx context.Context, postID, ownerID, eventName, action string) (model.PostView, error) {
	view, err := s.threads.Reconstruct(ctx, postID)
	if err != nil {
		return model.PostView{}, err
	}
	s.notifier.Notify(ctx, ownerID, eventName, action, view)
	return view, nil
}

func validateCommentContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", model.ErrContentRequired
	}
	if utf8.RuneCountInString(content) > model.MaxCommentLength {
		return "", model.ErrContentTooLong
	}
	return content, nil
}
