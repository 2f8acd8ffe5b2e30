// Package notify fans live events out to the followers of the user whose
// content changed.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"socialnet/internal/model"
)

// Broadcaster delivers an event to every live connection of one recipient.
// Recipients with no connection are skipped without error.
type Broadcaster interface {
	Publish(ctx context.Context, recipientID string, event model.LiveEvent) error
}

// FollowerLister returns the ids following a user.
type FollowerLister interface {
	GetFollowerIDs(ctx context.Context, userID string) ([]string, error)
}

// Notifier pushes post views to an owner and their followers.
type Notifier struct {
	followers   FollowerLister
	broadcaster Broadcaster
	log         zerolog.Logger
}

// NewNotifier returns a Notifier delivering through broadcaster.
func NewNotifier(followers FollowerLister, broadcaster Broadcaster, log zerolog.Logger) *Notifier {
	return &Notifier{followers: followers, broadcaster: broadcaster, log: log}
}

// Notify sends {eventName, action, view} to ownerID's followers and to
// ownerID. Delivery is best effort: failures are logged and never returned,
// so a committed mutation is never reported as failed.
func (n *Notifier) Notify(ctx context.Context, ownerID, eventName, action string, view model.PostView) {
	followers, err := n.followers.GetFollowerIDs(ctx, ownerID)
	if err != nil {
		n.log.Warn().Err(err).Str("owner_id", ownerID).Str("event", eventName).
			Msg("follower lookup failed, notifying owner only")
		followers = nil
	}

	event := model.LiveEvent{EventName: eventName, Action: action, Data: view}
	recipients := Recipients(ownerID, followers)
	for _, id := range recipients {
		if err := n.broadcaster.Publish(ctx, id, event); err != nil {
			n.log.Warn().Err(err).Str("recipient_id", id).Str("event", eventName).Msg("live delivery failed")
		}
	}

	n.log.Debug().
		Str("owner_id", ownerID).
		Str("event", eventName).
		Str("action", action).
		Int("recipients", len(recipients)).
		Msg("event fanned out")
}

// Recipients is followers plus the owner, each once, owner last.
func Recipients(ownerID string, followers []string) []string {
	seen := make(map[string]struct{}, len(followers)+1)
	out := make([]string, 0, len(followers)+1)
	for _, id := range followers {
		if id == ownerID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return append(out, ownerID)
}
