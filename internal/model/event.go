package model

import "fmt"

// Live event names pushed to followers after a mutation.
const (
	EventCreateComment = "create-comment"
	EventCreateReply   = "create-reply"
	EventEditComment   = "edit-comment"
	EventEditPost      = "edit-post"
	EventDeleteComment = "delete-comment"
	EventDeleteReply   = "delete-reply"
	EventLikeComment   = "like-comment"
	EventLikePost      = "like-post"
)

// Live event actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// LiveEvent is the payload delivered on a recipient's channel.
type LiveEvent struct {
	EventName string   `json:"eventName"`
	Action    string   `json:"action"`
	Data      PostView `json:"data"`
}

// Repair operations for multi-document writes that stopped half way.
const (
	RepairPostCascade    = "post_cascade"
	RepairCommentCascade = "comment_cascade"
	RepairAttach         = "attach"
	RepairFollowEdge     = "follow_edge"
	RepairUserEdges      = "user_edges"
)

// PartialWriteError reports that the primary write of a multi-document
// mutation committed but a follow-up write did not. The store is left in the
// weak state until a repair for Op runs.
type PartialWriteError struct {
	Op        string
	SubjectID string
	TargetID  string
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write (%s %s): %v", e.Op, e.SubjectID, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}
