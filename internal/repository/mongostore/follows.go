package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"socialnet/internal/model"
)

// followRepository keeps the mirror pair followers/following on the user
// documents. The follower side is written first; a failure on the followee
// side is reported as a partial write.
type followRepository struct {
	c collections
}

func (r *followRepository) Follow(ctx context.Context, followerID, followeeID string) (bool, error) {
	return r.setEdge(ctx, "$addToSet", followerID, followeeID)
}

func (r *followRepository) Unfollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	return r.setEdge(ctx, "$pull", followerID, followeeID)
}

func (r *followRepository) setEdge(ctx context.Context, op, followerID, followeeID string) (bool, error) {
	first, err := r.c.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: followerID}},
		bson.D{{Key: op, Value: bson.D{{Key: "following", Value: followeeID}}}})
	if err != nil {
		return false, fmt.Errorf("update follower: %w", err)
	}
	if first.MatchedCount == 0 {
		return false, model.ErrUserNotFound
	}

	second, err := r.c.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: followeeID}},
		bson.D{{Key: op, Value: bson.D{{Key: "followers", Value: followerID}}}})
	if err != nil {
		return first.ModifiedCount > 0, partial(model.RepairFollowEdge, followerID, followeeID, err)
	}

	return first.ModifiedCount > 0 || second.ModifiedCount > 0, nil
}

func (r *followRepository) GetFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	doc, err := r.edges(ctx, userID)
	if err != nil {
		return nil, err
	}
	return nonNil(doc.Followers), nil
}

func (r *followRepository) GetFolloweeIDs(ctx context.Context, userID string) ([]string, error) {
	doc, err := r.edges(ctx, userID)
	if err != nil {
		return nil, err
	}
	return nonNil(doc.Following), nil
}

func (r *followRepository) GetFollowers(ctx context.Context, userID string) ([]model.UserSummary, error) {
	ids, err := r.GetFollowerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.summariesInOrder(ctx, ids)
}

func (r *followRepository) GetFollowing(ctx context.Context, userID string) ([]model.UserSummary, error) {
	ids, err := r.GetFolloweeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.summariesInOrder(ctx, ids)
}

func (r *followRepository) edges(ctx context.Context, userID string) (*userDoc, error) {
	opts := options.FindOne().SetProjection(bson.D{{Key: "followers", Value: 1}, {Key: "following", Value: 1}})

	var doc userDoc
	err := r.c.users.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user edges: %w", err)
	}
	return &doc, nil
}

// summariesInOrder resolves ids keeping the stored edge order; ids of users
// that no longer exist are dropped.
func (r *followRepository) summariesInOrder(ctx context.Context, ids []string) ([]model.UserSummary, error) {
	users := (&userRepository{c: r.c})
	byID, err := users.GetSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.UserSummary, 0, len(ids))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}
