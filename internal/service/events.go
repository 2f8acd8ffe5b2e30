package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"socialnet/internal/model"
	"socialnet/internal/queue"
)

// Notifier fans a post view out to an owner's followers. Delivery is best
// effort and never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, ownerID, eventName, action string, view model.PostView)
}

// Reconstructor renders stored posts as threaded views.
type Reconstructor interface {
	Reconstruct(ctx context.Context, postID string) (model.PostView, error)
	ReconstructMany(ctx context.Context, posts []model.Post) ([]model.PostView, error)
}

// eventSink publishes stream events after a committed write. A nil publisher
// disables publishing.
type eventSink struct {
	publisher queue.Publisher
	log       zerolog.Logger
}

func (e eventSink) publish(ctx context.Context, event queue.Event) {
	if e.publisher == nil {
		return
	}
	if _, err := e.publisher.Publish(ctx, queue.StreamEvents, event); err != nil {
		e.log.Warn().Err(err).Str("type", event.Type).Msg("failed to publish event")
	}
}

// settle turns a partial write into success once its repair is queued. The
// primary write is committed, so the request succeeds; the repair converges
// the secondary documents. Any other error is returned unchanged.
func (e eventSink) settle(ctx context.Context, err error) error {
	var pw *model.PartialWriteError
	if !errors.As(err, &pw) {
		return err
	}

	e.log.Warn().Err(pw.Err).
		Str("op", pw.Op).
		Str("subject_id", pw.SubjectID).
		Str("target_id", pw.TargetID).
		Msg("partial write, queueing repair")

	event, rerr := queue.NewRepairEvent(pw)
	if rerr != nil {
		e.log.Error().Err(rerr).Msg("cannot build repair event")
		return nil
	}
	e.publish(ctx, event)
	return nil
}
