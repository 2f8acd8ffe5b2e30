package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"socialnet/internal/cache"
	"socialnet/internal/model"
)

type postDoc struct {
	ID        string    `bson:"_id"`
	Owner     string    `bson:"owner"`
	Content   string    `bson:"content"`
	Public    bool      `bson:"public"`
	Likes     []string  `bson:"likes"`
	Comments  []string  `bson:"comments"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d postDoc) toModel() model.Post {
	return model.Post{
		ID:         d.ID,
		OwnerID:    d.Owner,
		Content:    d.Content,
		Public:     d.Public,
		Likes:      nonNil(d.Likes),
		CommentIDs: nonNil(d.Comments),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

type postRepository struct {
	c collections
}

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	ts := now()
	doc := postDoc{
		ID:        post.ID,
		Owner:     post.OwnerID,
		Content:   post.Content,
		Public:    post.Public,
		Likes:     []string{},
		Comments:  []string{},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if _, err := r.c.posts.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	post.Likes = []string{}
	post.CommentIDs = []string{}
	post.CreatedAt = ts
	post.UpdatedAt = ts
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var doc postDoc
	err := r.c.posts.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find post: %w", err)
	}

	post := doc.toModel()
	return &post, nil
}

func (r *postRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Post, error) {
	if len(ids) == 0 {
		return []model.Post{}, nil
	}

	docs, err := r.find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}, options.Find())
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Post, len(docs))
	for _, d := range docs {
		byID[d.ID] = d.toModel()
	}
	ordered := make([]model.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

func (r *postRepository) Update(ctx context.Context, id, content string, public bool) (*model.Post, error) {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "content", Value: content},
		{Key: "public", Value: public},
		{Key: "updated_at", Value: now()},
	}}}
	return r.findOneAndUpdate(ctx, id, update)
}

func (r *postRepository) ToggleLike(ctx context.Context, id, userID string) (*model.Post, error) {
	return r.findOneAndUpdate(ctx, id, toggleMember("likes", userID))
}

func (r *postRepository) findOneAndUpdate(ctx context.Context, id string, update interface{}) (*model.Post, error) {
	var doc postDoc
	err := r.c.posts.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, update, returnAfter()).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}

	post := doc.toModel()
	return &post, nil
}

// Delete removes the post first so it disappears from reads immediately, then
// its comments. A failure in the second step leaves orphan comments that the
// post cascade repair removes.
func (r *postRepository) Delete(ctx context.Context, id string) error {
	res, err := r.c.posts.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if res.DeletedCount == 0 {
		return model.ErrPostNotFound
	}

	if _, err := r.c.comments.DeleteMany(ctx, bson.D{{Key: "post_id", Value: id}}); err != nil {
		return partial(model.RepairPostCascade, id, "", err)
	}
	return nil
}

func (r *postRepository) ListByOwner(ctx context.Context, ownerID, viewerID string, offset, limit int) ([]model.Post, int, error) {
	filter := bson.D{{Key: "owner", Value: ownerID}}
	if ownerID != viewerID {
		filter = append(filter, bson.E{Key: "public", Value: true})
	}

	total, err := r.c.posts.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	opts := options.Find().SetSort(newestFirst).SetSkip(int64(offset)).SetLimit(int64(limit))
	docs, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}

	posts := make([]model.Post, len(docs))
	for i, d := range docs {
		posts[i] = d.toModel()
	}
	return posts, int(total), nil
}

func (r *postRepository) GetRecentPostsByUser(ctx context.Context, userID string, limit int) ([]cache.PostScore, error) {
	return r.scores(ctx, bson.D{{Key: "owner", Value: userID}}, limit)
}

func (r *postRepository) GetFeedPostIDs(ctx context.Context, ownerIDs []string, limit int) ([]cache.PostScore, error) {
	if len(ownerIDs) == 0 {
		return []cache.PostScore{}, nil
	}
	return r.scores(ctx, bson.D{{Key: "owner", Value: bson.D{{Key: "$in", Value: ownerIDs}}}}, limit)
}

func (r *postRepository) scores(ctx context.Context, filter bson.D, limit int) ([]cache.PostScore, error) {
	opts := options.Find().
		SetSort(newestFirst).
		SetLimit(int64(limit)).
		SetProjection(bson.D{{Key: "created_at", Value: 1}})

	docs, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	out := make([]cache.PostScore, len(docs))
	for i, d := range docs {
		out[i] = cache.PostScore{PostID: d.ID, Timestamp: d.CreatedAt.UnixMilli()}
	}
	return out, nil
}

func (r *postRepository) find(ctx context.Context, filter bson.D, opts *options.FindOptionsBuilder) ([]postDoc, error) {
	cur, err := r.c.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}

	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return docs, nil
}
