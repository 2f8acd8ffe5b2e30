package model

import (
	"errors"
)

// FollowListResponse lists one side of a user's follow graph.
type FollowListResponse struct {
	Users []UserSummary `json:"users"`
}

var (
	ErrCannotFollowSelf = errors.New("cannot follow yourself")
)
