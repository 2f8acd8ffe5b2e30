package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"socialnet/internal/model"
)

type userDoc struct {
	ID             string    `bson:"_id"`
	Name           string    `bson:"name"`
	Email          string    `bson:"email"`
	PasswordHashed string    `bson:"password_hashed"`
	Bio            *string   `bson:"bio,omitempty"`
	Followers      []string  `bson:"followers"`
	Following      []string  `bson:"following"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func (d userDoc) toModel() *model.User {
	return &model.User{
		ID:             d.ID,
		Name:           d.Name,
		Email:          d.Email,
		PasswordHashed: d.PasswordHashed,
		Bio:            d.Bio,
		Followers:      nonNil(d.Followers),
		Following:      nonNil(d.Following),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type summaryDoc struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
}

var summaryProjection = bson.D{{Key: "name", Value: 1}}

type userRepository struct {
	c collections
}

func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	ts := now()
	doc := userDoc{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		PasswordHashed: u.PasswordHashed,
		Bio:            u.Bio,
		Followers:      []string{},
		Following:      []string{},
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	if _, err := r.c.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}

	u.Followers = []string{}
	u.Following = []string{}
	u.CreatedAt = ts
	u.UpdatedAt = ts
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (r *userRepository) findOne(ctx context.Context, filter bson.D) (*model.User, error) {
	var doc userDoc
	err := r.c.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toModel(), nil
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	n, err := r.c.users.CountDocuments(ctx, bson.D{{Key: "email", Value: email}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count users by email: %w", err)
	}
	return n > 0, nil
}

func (r *userRepository) GetSummaries(ctx context.Context, ids []string) (map[string]model.UserSummary, error) {
	result := make(map[string]model.UserSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	docs, err := r.findSummaries(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return nil, err
	}
	for _, s := range docs {
		result[s.ID] = s
	}
	return result, nil
}

func (r *userRepository) List(ctx context.Context) ([]model.UserSummary, error) {
	return r.findSummaries(ctx, bson.D{})
}

func (r *userRepository) UpdateProfile(ctx context.Context, id, name string, bio *string) (*model.User, error) {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "name", Value: name},
		{Key: "bio", Value: bio},
		{Key: "updated_at", Value: now()},
	}}}

	var doc userDoc
	err := r.c.users.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, update, returnAfter()).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return doc.toModel(), nil
}

// Delete removes the user document, then pulls the id out of the other
// users' edge lists. A failure after the first write is a partial write.
func (r *userRepository) Delete(ctx context.Context, id string) error {
	res, err := r.c.users.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return model.ErrUserNotFound
	}

	if err := pullUserEdges(ctx, r.c.users, id); err != nil {
		return partial(model.RepairUserEdges, id, "", err)
	}
	return nil
}

func pullUserEdges(ctx context.Context, users *mongo.Collection, id string) error {
	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "followers", Value: id}},
		bson.D{{Key: "following", Value: id}},
	}}}
	update := bson.D{{Key: "$pull", Value: bson.D{
		{Key: "followers", Value: id},
		{Key: "following", Value: id},
	}}}
	if _, err := users.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("pull user edges: %w", err)
	}
	return nil
}

func (r *userRepository) WhoToFollow(ctx context.Context, userID string) ([]model.UserSummary, error) {
	u, err := r.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	exclude := append([]string{userID}, u.Following...)
	return r.findSummaries(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$nin", Value: exclude}}}})
}

func (r *userRepository) findSummaries(ctx context.Context, filter bson.D) ([]model.UserSummary, error) {
	opts := options.Find().
		SetProjection(summaryProjection).
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := r.c.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}

	var docs []summaryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	users := make([]model.UserSummary, len(docs))
	for i, d := range docs {
		users[i] = model.UserSummary{ID: d.ID, Name: d.Name}
	}
	return users, nil
}
