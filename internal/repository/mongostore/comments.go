package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"socialnet/internal/model"
)

type commentDoc struct {
	ID              string    `bson:"_id"`
	PostID          string    `bson:"post_id"`
	ParentCommentID *string   `bson:"parent_comment_id"`
	Owner           string    `bson:"owner"`
	Content         string    `bson:"content"`
	Likes           []string  `bson:"likes"`
	Replies         []string  `bson:"replies"`
	CreatedAt       time.Time `bson:"created_at"`
}

func (d commentDoc) toModel() model.Comment {
	return model.Comment{
		ID:              d.ID,
		PostID:          d.PostID,
		ParentCommentID: d.ParentCommentID,
		OwnerID:         d.Owner,
		Content:         d.Content,
		Likes:           nonNil(d.Likes),
		ReplyIDs:        nonNil(d.Replies),
		CreatedAt:       d.CreatedAt,
	}
}

type commentRepository struct {
	c   collections
	log zerolog.Logger
}

// CreateComment inserts the comment, then pushes its id onto the post. The
// comment stays readable through its post_id even if the push fails.
func (r *commentRepository) CreateComment(ctx context.Context, c *model.Comment) error {
	if err := r.insert(ctx, c); err != nil {
		return err
	}

	res, err := r.c.posts.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: c.PostID}},
		bson.D{{Key: "$push", Value: bson.D{{Key: "comments", Value: c.ID}}}})
	if err != nil {
		return partial(model.RepairAttach, c.ID, c.PostID, err)
	}
	if res.MatchedCount == 0 {
		r.discard(ctx, c.ID, c.PostID)
		return model.ErrPostNotFound
	}
	return nil
}

func (r *commentRepository) CreateReply(ctx context.Context, c *model.Comment) error {
	if c.ParentCommentID == nil {
		return fmt.Errorf("reply without parent")
	}
	if err := r.insert(ctx, c); err != nil {
		return err
	}

	res, err := r.c.comments.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: *c.ParentCommentID}, {Key: "parent_comment_id", Value: nil}},
		bson.D{{Key: "$push", Value: bson.D{{Key: "replies", Value: c.ID}}}})
	if err != nil {
		return partial(model.RepairAttach, c.ID, *c.ParentCommentID, err)
	}
	if res.MatchedCount == 0 {
		r.discard(ctx, c.ID, *c.ParentCommentID)
		return model.ErrCommentNotFound
	}
	return nil
}

func (r *commentRepository) insert(ctx context.Context, c *model.Comment) error {
	c.CreatedAt = now()
	c.Likes = []string{}
	c.ReplyIDs = []string{}

	doc := commentDoc{
		ID:              c.ID,
		PostID:          c.PostID,
		ParentCommentID: c.ParentCommentID,
		Owner:           c.OwnerID,
		Content:         c.Content,
		Likes:           c.Likes,
		Replies:         c.ReplyIDs,
		CreatedAt:       c.CreatedAt,
	}
	if _, err := r.c.comments.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// discard removes a comment whose parent vanished between insert and attach.
// A failure leaves an orphan the reconstructor never reaches; a repair_attach
// run on its id deletes it.
func (r *commentRepository) discard(ctx context.Context, id, parentID string) {
	if _, err := r.c.comments.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}); err != nil {
		r.log.Warn().Err(err).
			Str("comment_id", id).
			Str("parent_id", parentID).
			Msg("orphan comment left behind")
	}
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	var doc commentDoc
	err := r.c.comments.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find comment: %w", err)
	}

	c := doc.toModel()
	return &c, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID string) ([]model.Comment, error) {
	return r.list(ctx, bson.D{{Key: "post_id", Value: postID}})
}

func (r *commentRepository) ListByPosts(ctx context.Context, postIDs []string) ([]model.Comment, error) {
	if len(postIDs) == 0 {
		return []model.Comment{}, nil
	}
	return r.list(ctx, bson.D{{Key: "post_id", Value: bson.D{{Key: "$in", Value: postIDs}}}})
}

func (r *commentRepository) list(ctx context.Context, filter bson.D) ([]model.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.c.comments.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find comments: %w", err)
	}

	var docs []commentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}

	comments := make([]model.Comment, len(docs))
	for i, d := range docs {
		comments[i] = d.toModel()
	}
	return comments, nil
}

func (r *commentRepository) UpdateContent(ctx context.Context, id, content string) (*model.Comment, error) {
	return r.findOneAndUpdate(ctx, id, bson.D{{Key: "$set", Value: bson.D{{Key: "content", Value: content}}}})
}

func (r *commentRepository) ToggleLike(ctx context.Context, id, userID string) (*model.Comment, error) {
	return r.findOneAndUpdate(ctx, id, toggleMember("likes", userID))
}

func (r *commentRepository) findOneAndUpdate(ctx context.Context, id string, update interface{}) (*model.Comment, error) {
	var doc commentDoc
	err := r.c.comments.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, update, returnAfter()).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}

	c := doc.toModel()
	return &c, nil
}

// DeleteComment removes the comment, then its replies, then its entry on the
// post. Steps after the first report a partial write.
func (r *commentRepository) DeleteComment(ctx context.Context, c *model.Comment) error {
	res, err := r.c.comments.DeleteOne(ctx, bson.D{{Key: "_id", Value: c.ID}})
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if res.DeletedCount == 0 {
		return model.ErrCommentNotFound
	}

	if _, err := r.c.comments.DeleteMany(ctx, bson.D{{Key: "parent_comment_id", Value: c.ID}}); err != nil {
		return partial(model.RepairCommentCascade, c.ID, c.PostID, err)
	}

	_, err = r.c.posts.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: c.PostID}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "comments", Value: c.ID}}}})
	if err != nil {
		return partial(model.RepairCommentCascade, c.ID, c.PostID, err)
	}
	return nil
}

func (r *commentRepository) DeleteReply(ctx context.Context, c *model.Comment) error {
	if c.ParentCommentID == nil {
		return model.ErrNotAReply
	}

	res, err := r.c.comments.DeleteOne(ctx, bson.D{{Key: "_id", Value: c.ID}})
	if err != nil {
		return fmt.Errorf("delete reply: %w", err)
	}
	if res.DeletedCount == 0 {
		return model.ErrCommentNotFound
	}

	_, err = r.c.comments.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: *c.ParentCommentID}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "replies", Value: c.ID}}}})
	if err != nil {
		return partial(model.RepairCommentCascade, c.ID, *c.ParentCommentID, err)
	}
	return nil
}
