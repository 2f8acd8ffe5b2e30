package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// repairer finishes what a partial write left behind. Each method reads the
// current state and converges it, so replays are harmless.
type repairer struct {
	c collections
}

func (r *repairer) RepairPostCascade(ctx context.Context, postID string) error {
	exists, err := r.exists(ctx, r.c.posts, postID)
	if err != nil || exists {
		return err
	}

	if _, err := r.c.comments.DeleteMany(ctx, bson.D{{Key: "post_id", Value: postID}}); err != nil {
		return fmt.Errorf("delete orphan comments: %w", err)
	}
	return nil
}

func (r *repairer) RepairCommentCascade(ctx context.Context, commentID string) error {
	exists, err := r.exists(ctx, r.c.comments, commentID)
	if err != nil || exists {
		return err
	}

	if _, err := r.c.comments.DeleteMany(ctx, bson.D{{Key: "parent_comment_id", Value: commentID}}); err != nil {
		return fmt.Errorf("delete orphan replies: %w", err)
	}
	if _, err := r.c.posts.UpdateMany(ctx,
		bson.D{{Key: "comments", Value: commentID}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "comments", Value: commentID}}}}); err != nil {
		return fmt.Errorf("detach from post: %w", err)
	}
	if _, err := r.c.comments.UpdateMany(ctx,
		bson.D{{Key: "replies", Value: commentID}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "replies", Value: commentID}}}}); err != nil {
		return fmt.Errorf("detach from parent: %w", err)
	}
	return nil
}

// RepairAttach adds the comment to its parent's list. A comment whose parent
// is gone is deleted instead.
func (r *repairer) RepairAttach(ctx context.Context, commentID string) error {
	var doc commentDoc
	err := r.c.comments.FindOne(ctx, bson.D{{Key: "_id", Value: commentID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find comment: %w", err)
	}

	coll, parentID, field := r.c.posts, doc.PostID, "comments"
	if doc.ParentCommentID != nil {
		coll, parentID, field = r.c.comments, *doc.ParentCommentID, "replies"
	}

	res, err := coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: parentID}},
		bson.D{{Key: "$addToSet", Value: bson.D{{Key: field, Value: commentID}}}})
	if err != nil {
		return fmt.Errorf("attach comment: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.c.comments.DeleteOne(ctx, bson.D{{Key: "_id", Value: commentID}}); err != nil {
			return fmt.Errorf("delete orphan comment: %w", err)
		}
	}
	return nil
}

// RepairFollowEdge makes the followee's followers list agree with the
// follower's following list.
func (r *repairer) RepairFollowEdge(ctx context.Context, followerID, followeeID string) error {
	opts := options.FindOne().SetProjection(bson.D{{Key: "following", Value: 1}})

	var doc userDoc
	err := r.c.users.FindOne(ctx, bson.D{{Key: "_id", Value: followerID}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return r.pullFollower(ctx, followerID, followeeID)
	}
	if err != nil {
		return fmt.Errorf("find follower: %w", err)
	}

	for _, id := range doc.Following {
		if id == followeeID {
			_, err := r.c.users.UpdateOne(ctx,
				bson.D{{Key: "_id", Value: followeeID}},
				bson.D{{Key: "$addToSet", Value: bson.D{{Key: "followers", Value: followerID}}}})
			if err != nil {
				return fmt.Errorf("add follower: %w", err)
			}
			return nil
		}
	}
	return r.pullFollower(ctx, followerID, followeeID)
}

// RepairUserEdges pulls a deleted user out of every followers and following
// list.
func (r *repairer) RepairUserEdges(ctx context.Context, userID string) error {
	exists, err := r.exists(ctx, r.c.users, userID)
	if err != nil || exists {
		return err
	}
	return pullUserEdges(ctx, r.c.users, userID)
}

func (r *repairer) pullFollower(ctx context.Context, followerID, followeeID string) error {
	_, err := r.c.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: followeeID}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "followers", Value: followerID}}}})
	if err != nil {
		return fmt.Errorf("remove follower: %w", err)
	}
	return nil
}

func (r *repairer) exists(ctx context.Context, coll *mongo.Collection, id string) (bool, error) {
	n, err := coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check %s: %w", coll.Name(), err)
	}
	return n > 0, nil
}
