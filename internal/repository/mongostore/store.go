// Package mongostore is the document-database backend. Each collection write
// is atomic on its own document; multi-document mutations return a
// model.PartialWriteError when a follow-up write fails so the caller can queue
// a repair.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"socialnet/internal/model"
	"socialnet/internal/repository"
)

const (
	usersCollection    = "users"
	postsCollection    = "posts"
	commentsCollection = "comments"
)

type collections struct {
	users    *mongo.Collection
	posts    *mongo.Collection
	comments *mongo.Collection
}

func newCollections(db *mongo.Database) collections {
	return collections{
		users:    db.Collection(usersCollection),
		posts:    db.Collection(postsCollection),
		comments: db.Collection(commentsCollection),
	}
}

// New wires the mongo-backed repositories.
func New(db *mongo.Database, log zerolog.Logger) *repository.Store {
	c := newCollections(db)
	return &repository.Store{
		Users:    &userRepository{c: c},
		Follows:  &followRepository{c: c},
		Posts:    &postRepository{c: c},
		Comments: &commentRepository{c: c, log: log},
		Repairer: &repairer{c: c},
	}
}

// EnsureIndexes creates the indexes the queries rely on. Safe to call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	c := newCollections(db)

	if _, err := c.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create users index: %w", err)
	}

	if _, err := c.posts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("create posts index: %w", err)
	}

	if _, err := c.comments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "parent_comment_id", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create comments indexes: %w", err)
	}
	return nil
}

// now is truncated to the precision BSON dates keep.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// toggleMember builds an update pipeline that removes value from field when
// present and appends it otherwise, evaluated atomically on the server.
func toggleMember(field, value string) mongo.Pipeline {
	ref := "$" + field
	lit := bson.D{{Key: "$literal", Value: value}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: field, Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$in", Value: bson.A{lit, ref}}},
			bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: ref},
				{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", lit}}}},
			}}},
			bson.D{{Key: "$concatArrays", Value: bson.A{ref, bson.A{lit}}}},
		}}}}}}},
	}
}

func returnAfter() *options.FindOneAndUpdateOptionsBuilder {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

func partial(op, subject, target string, err error) error {
	return &model.PartialWriteError{Op: op, SubjectID: subject, TargetID: target, Err: err}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
