package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"socialnet/internal/cache"
	"socialnet/internal/model"
)

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, owner_id, content, public, likes, comment_ids, created_at, updated_at`

// postRow scans the array columns that model.Post keeps as plain slices.
type postRow struct {
	ID         string         `db:"id"`
	OwnerID    string         `db:"owner_id"`
	Content    string         `db:"content"`
	Public     bool           `db:"public"`
	Likes      pq.StringArray `db:"likes"`
	CommentIDs pq.StringArray `db:"comment_ids"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (row postRow) toModel() model.Post {
	return model.Post{
		ID:         row.ID,
		OwnerID:    row.OwnerID,
		Content:    row.Content,
		Public:     row.Public,
		Likes:      nonNil(row.Likes),
		CommentIDs: nonNil(row.CommentIDs),
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	query := `
		INSERT INTO posts (id, owner_id, content, public)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, post.ID, post.OwnerID, post.Content, post.Public).
		Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	post.Likes = []string{}
	post.CommentIDs = []string{}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var row postRow
	err := r.db.GetContext(ctx, &row, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	post := row.toModel()
	return &post, nil
}

// GetByIDs retrieves multiple posts, preserving the order of ids.
// Used for hydrating the feed from cache.
func (r *postRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Post, error) {
	if len(ids) == 0 {
		return []model.Post{}, nil
	}

	var rows []postRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+postColumns+` FROM posts WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get posts by ids: %w", err)
	}

	byID := make(map[string]model.Post, len(rows))
	for _, row := range rows {
		byID[row.ID] = row.toModel()
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
	query := `
		UPDATE posts SET content = $1, public = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING ` + postColumns
	var row postRow
	err := r.db.GetContext(ctx, &row, query, content, public, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}

	post := row.toModel()
	return &post, nil
}

// ToggleLike flips membership of userID in likes with a single UPDATE, so two
// concurrent toggles by the same user serialise on the row lock.
func (r *postRepository) ToggleLike(ctx context.Context, id, userID string) (*model.Post, error) {
	query := `
		UPDATE posts SET likes = CASE
			WHEN $2::text = ANY(likes) THEN array_remove(likes, $2::text)
			ELSE array_append(likes, $2::text)
		END
		WHERE id = $1
		RETURNING ` + postColumns
	var row postRow
	err := r.db.GetContext(ctx, &row, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggle post like: %w", err)
	}

	post := row.toModel()
	return &post, nil
}

// Delete removes the post and its whole thread in one transaction.
func (r *postRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE post_id = $1`, id); err != nil {
			return fmt.Errorf("delete post comments: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete post: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			return model.ErrPostNotFound
		}
		return nil
	})
}

func (r *postRepository) ListByOwner(ctx context.Context, ownerID, viewerID string, offset, limit int) ([]model.Post, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM posts
		WHERE owner_id = $1 AND (public OR owner_id = $2)
	`, ownerID, viewerID)
	if err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	var rows []postRow
	err = r.db.SelectContext(ctx, &rows, `
		SELECT `+postColumns+`
		FROM posts
		WHERE owner_id = $1 AND (public OR owner_id = $2)
		ORDER BY created_at DESC, id DESC
		OFFSET $3 LIMIT $4
	`, ownerID, viewerID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}

	posts := make([]model.Post, len(rows))
	for i, row := range rows {
		posts[i] = row.toModel()
	}
	return posts, total, nil
}

// GetRecentPostsByUser returns recent posts by a user (for follow backfill).
func (r *postRepository) GetRecentPostsByUser(ctx context.Context, userID string, limit int) ([]cache.PostScore, error) {
	query := `
		SELECT id, (EXTRACT(EPOCH FROM created_at) * 1000)::bigint AS timestamp
		FROM posts
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.selectScores(ctx, query, userID, limit)
}

// GetFeedPostIDs returns post ids from all given owners for cache warming.
func (r *postRepository) GetFeedPostIDs(ctx context.Context, ownerIDs []string, limit int) ([]cache.PostScore, error) {
	if len(ownerIDs) == 0 {
		return []cache.PostScore{}, nil
	}

	query := `
		SELECT id, (EXTRACT(EPOCH FROM created_at) * 1000)::bigint AS timestamp
		FROM posts
		WHERE owner_id = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.selectScores(ctx, query, pq.Array(ownerIDs), limit)
}

func (r *postRepository) selectScores(ctx context.Context, query string, args ...interface{}) ([]cache.PostScore, error) {
	type row struct {
		ID        string `db:"id"`
		Timestamp int64  `db:"timestamp"`
	}
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get post scores: %w", err)
	}

	posts := make([]cache.PostScore, len(rows))
	for i, r := range rows {
		posts[i] = cache.PostScore{PostID: r.ID, Timestamp: r.Timestamp}
	}
	return posts, nil
}
