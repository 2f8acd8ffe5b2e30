package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"socialnet/internal/model"
)

type followRepository struct {
	db *sqlx.DB
}

func NewFollowRepository(db *sqlx.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Follow(ctx context.Context, followerID, followeeID string) (bool, error) {
	query := `
		INSERT INTO follows (follower_id, followee_id)
		VALUES ($1, $2)
		ON CONFLICT (follower_id, followee_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query, followerID, followeeID)
	if err != nil {
		return false, fmt.Errorf("failed to create follow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func (r *followRepository) Unfollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`, followerID, followeeID)
	if err != nil {
		return false, fmt.Errorf("failed to delete follow: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *followRepository) GetFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids, `SELECT follower_id FROM follows WHERE followee_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get follower ids: %w", err)
	}
	return ids, nil
}

func (r *followRepository) GetFolloweeIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids, `SELECT followee_id FROM follows WHERE follower_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get followee ids: %w", err)
	}
	return ids, nil
}

// GetFollowers lists the users following userID, oldest edge first.
func (r *followRepository) GetFollowers(ctx context.Context, userID string) ([]model.UserSummary, error) {
	query := `
		SELECT u.id, u.name
		FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.followee_id = $1
		ORDER BY f.created_at
	`
	users := []model.UserSummary{}
	if err := r.db.SelectContext(ctx, &users, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get followers: %w", err)
	}
	return users, nil
}

// GetFollowing lists the users userID follows, oldest edge first.
func (r *followRepository) GetFollowing(ctx context.Context, userID string) ([]model.UserSummary, error) {
	query := `
		SELECT u.id, u.name
		FROM follows f
		JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id = $1
		ORDER BY f.created_at
	`
	users := []model.UserSummary{}
	if err := r.db.SelectContext(ctx, &users, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get following: %w", err)
	}
	return users, nil
}
