package service

import (
	"context"

	"github.com/rs/zerolog"

	"socialnet/internal/model"
	"socialnet/internal/queue"
	"socialnet/internal/repository"
)

// FollowService maintains the symmetric follower/following graph.
type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	events     eventSink
	log        zerolog.Logger
}

func NewFollowService(
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	publisher queue.Publisher,
	log zerolog.Logger,
) *FollowService {
	return &FollowService{
		followRepo: followRepo,
		userRepo:   userRepo,
		events:     eventSink{publisher: publisher, log: log},
		log:        log,
	}
}

// Follow is idempotent. The feed backfill event is only published when the
// edge is new.
func (s *FollowService) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return model.ErrCannotFollowSelf
	}

	if _, err := s.userRepo.GetByID(ctx, followeeID); err != nil {
		return err
	}

	changed, err := s.followRepo.Follow(ctx, followerID, followeeID)
	if err = s.events.settle(ctx, err); err != nil {
		return err
	}

	if changed {
		s.events.publish(ctx, queue.NewUserFollowedEvent(followerID, followeeID))
		s.log.Debug().Str("follower_id", followerID).Str("followee_id", followeeID).Msg("followed")
	}
	return nil
}

// Unfollow is idempotent and mirrors Follow.
func (s *FollowService) Unfollow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return model.ErrCannotFollowSelf
	}

	if _, err := s.userRepo.GetByID(ctx, followeeID); err != nil {
		return err
	}

	changed, err := s.followRepo.Unfollow(ctx, followerID, followeeID)
	if err = s.events.settle(ctx, err); err != nil {
		return err
	}

	if changed {
		s.events.publish(ctx, queue.NewUserUnfollowedEvent(followerID, followeeID))
		s.log.Debug().Str("follower_id", followerID).Str("followee_id", followeeID).Msg("unfollowed")
	}
	return nil
}

// WhoToFollow lists every user that userID neither is nor already follows.
func (s *FollowService) WhoToFollow(ctx context.Context, userID string) (*model.FollowListResponse, error) {
	users, err := s.userRepo.WhoToFollow(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.FollowListResponse{Users: users}, nil
}

func (s *FollowService) GetFollowers(ctx context.Context, userID string) (*model.FollowListResponse, error) {
	users, err := s.followRepo.GetFollowers(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.FollowListResponse{Users: users}, nil
}

func (s *FollowService) GetFollowing(ctx context.Context, userID string) (*model.FollowListResponse, error) {
	users, err := s.followRepo.GetFollowing(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.FollowListResponse{Users: users}, nil
}
