package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"socialnet/internal/model"
)

// Event types carried on the event stream.
const (
	EventPostCreated    = "post_created"
	EventPostDeleted    = "post_deleted"
	EventUserFollowed   = "user_followed"
	EventUserUnfollowed = "user_unfollowed"

	// Repair events finish a multi-document write that stopped half way.
	EventRepairPostCascade    = "repair_post_cascade"
	EventRepairCommentCascade = "repair_comment_cascade"
	EventRepairAttach         = "repair_attach"
	EventRepairFollow         = "repair_follow"
	EventRepairUserEdges      = "repair_user_edges"
)

const StreamEvents = "stream:events"

const ConsumerGroupEvents = "event_workers"

// Event is one message on the event stream. Only the fields relevant to Type
// are set.
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // unix ms; for post_created, the post's creation time

	PostID   string `json:"post_id,omitempty"`
	AuthorID string `json:"author_id,omitempty"`

	FollowerID string `json:"follower_id,omitempty"`
	FolloweeID string `json:"followee_id,omitempty"`

	CommentID string `json:"comment_id,omitempty"`

	UserID string `json:"user_id,omitempty"`
}

// NewPostCreatedEvent fans postID out to the author's followers' feeds.
func NewPostCreatedEvent(postID, authorID string, createdAt time.Time) Event {
	return Event{Type: EventPostCreated, Timestamp: createdAt.UnixMilli(), PostID: postID, AuthorID: authorID}
}

// NewPostDeletedEvent removes postID from the author's followers' feeds.
func NewPostDeletedEvent(postID, authorID string) Event {
	return Event{Type: EventPostDeleted, Timestamp: time.Now().UnixMilli(), PostID: postID, AuthorID: authorID}
}

// NewUserFollowedEvent backfills the followee's recent posts into the follower's feed.
func NewUserFollowedEvent(followerID, followeeID string) Event {
	return Event{Type: EventUserFollowed, Timestamp: time.Now().UnixMilli(), FollowerID: followerID, FolloweeID: followeeID}
}

// NewUserUnfollowedEvent drops the followee's posts from the follower's feed.
func NewUserUnfollowedEvent(followerID, followeeID string) Event {
	return Event{Type: EventUserUnfollowed, Timestamp: time.Now().UnixMilli(), FollowerID: followerID, FolloweeID: followeeID}
}

// NewRepairEvent maps a partial write to the repair that completes it.
func NewRepairEvent(pw *model.PartialWriteError) (Event, error) {
	e := Event{Timestamp: time.Now().UnixMilli()}
	switch pw.Op {
	case model.RepairPostCascade:
		e.Type, e.PostID = EventRepairPostCascade, pw.SubjectID
	case model.RepairCommentCascade:
		e.Type, e.CommentID = EventRepairCommentCascade, pw.SubjectID
	case model.RepairAttach:
		e.Type, e.CommentID = EventRepairAttach, pw.SubjectID
	case model.RepairFollowEdge:
		e.Type, e.FollowerID, e.FolloweeID = EventRepairFollow, pw.SubjectID, pw.TargetID
	case model.RepairUserEdges:
		e.Type, e.UserID = EventRepairUserEdges, pw.SubjectID
	default:
		return Event{}, fmt.Errorf("unknown repair op %q", pw.Op)
	}
	return e, nil
}

// ToMap converts the event to XADD field-value pairs.
func (e Event) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

func ParseEvent(values map[string]interface{}) (Event, error) {
	data, ok := values["data"].(string)
	if !ok {
		return Event{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
