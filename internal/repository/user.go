package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"socialnet/internal/model"
)

// userRepository implements UserRepository using sqlx
type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, name, email, password_hashed, bio, created_at, updated_at`

// Create inserts a new user into the database
func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hashed, bio)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, u.ID, u.Name, u.Email, u.PasswordHashed, u.Bio).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return model.ErrEmailExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	u.Followers = []string{}
	u.Following = []string{}
	return nil
}

// GetByID retrieves a user by their ID together with both sides of the follow graph.
func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	if err := r.fillGraph(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail retrieves a user by email. The follow graph is not loaded.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

// ExistsByEmail checks if an email is already registered
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return exists, nil
}

func (r *userRepository) GetSummaries(ctx context.Context, ids []string) (map[string]model.UserSummary, error) {
	result := make(map[string]model.UserSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []model.UserSummary
	err := r.db.SelectContext(ctx, &users, `SELECT id, name FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get user summaries: %w", err)
	}

	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func (r *userRepository) List(ctx context.Context) ([]model.UserSummary, error) {
	users := []model.UserSummary{}
	err := r.db.SelectContext(ctx, &users, `SELECT id, name FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id, name string, bio *string) (*model.User, error) {
	query := `
		UPDATE users SET name = $1, bio = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING ` + userColumns
	var u model.User
	err := r.db.GetContext(ctx, &u, query, name, bio, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if err := r.fillGraph(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Delete removes the user. Follow rows go with it through their foreign
// keys; posts and comments keep the dangling owner id.
func (r *userRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) WhoToFollow(ctx context.Context, userID string) ([]model.UserSummary, error) {
	query := `
		SELECT u.id, u.name
		FROM users u
		WHERE u.id <> $1
		  AND NOT EXISTS (
		      SELECT 1 FROM follows f
		      WHERE f.follower_id = $1 AND f.followee_id = u.id
		  )
		ORDER BY u.created_at, u.id
	`
	users := []model.UserSummary{}
	if err := r.db.SelectContext(ctx, &users, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get who to follow: %w", err)
	}
	return users, nil
}

func (r *userRepository) fillGraph(ctx context.Context, u *model.User) error {
	u.Followers = []string{}
	u.Following = []string{}

	err := r.db.SelectContext(ctx, &u.Followers,
		`SELECT follower_id FROM follows WHERE followee_id = $1 ORDER BY created_at`, u.ID)
	if err != nil {
		return fmt.Errorf("failed to get follower ids: %w", err)
	}

	err = r.db.SelectContext(ctx, &u.Following,
		`SELECT followee_id FROM follows WHERE follower_id = $1 ORDER BY created_at`, u.ID)
	if err != nil {
		return fmt.Errorf("failed to get followee ids: %w", err)
	}
	return nil
}
