package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"socialnet/internal/model"
)

type commentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) CommentRepository {
	return &commentRepository{db: db}
}

const commentColumns = `id, post_id, parent_comment_id, owner_id, content, likes, reply_ids, created_at`

type commentRow struct {
	ID              string         `db:"id"`
	PostID          string         `db:"post_id"`
	ParentCommentID *string        `db:"parent_comment_id"`
	OwnerID         string         `db:"owner_id"`
	Content         string         `db:"content"`
	Likes           pq.StringArray `db:"likes"`
	ReplyIDs        pq.StringArray `db:"reply_ids"`
	CreatedAt       time.Time      `db:"created_at"`
}

func (row commentRow) toModel() model.Comment {
	return model.Comment{
		ID:              row.ID,
		PostID:          row.PostID,
		ParentCommentID: row.ParentCommentID,
		OwnerID:         row.OwnerID,
		Content:         row.Content,
		Likes:           nonNil(row.Likes),
		ReplyIDs:        nonNil(row.ReplyIDs),
		CreatedAt:       row.CreatedAt,
	}
}

// CreateComment attaches the comment to its post and inserts it in one transaction.
func (r *commentRepository) CreateComment(ctx context.Context, c *model.Comment) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE posts SET comment_ids = array_append(comment_ids, $1) WHERE id = $2`, c.ID, c.PostID)
		if err != nil {
			return fmt.Errorf("attach comment: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return model.ErrPostNotFound
		}
		return r.insert(ctx, tx, c)
	})
}

// CreateReply attaches the reply to a top-level parent and inserts it in one transaction.
func (r *commentRepository) CreateReply(ctx context.Context, c *model.Comment) error {
	if c.ParentCommentID == nil {
		return fmt.Errorf("reply without parent")
	}
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE comments SET reply_ids = array_append(reply_ids, $1)
			WHERE id = $2 AND parent_comment_id IS NULL
		`, c.ID, *c.ParentCommentID)
		if err != nil {
			return fmt.Errorf("attach reply: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return model.ErrCommentNotFound
		}
		return r.insert(ctx, tx, c)
	})
}

func (r *commentRepository) insert(ctx context.Context, tx *sqlx.Tx, c *model.Comment) error {
	query := `
		INSERT INTO comments (id, post_id, parent_comment_id, owner_id, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	if err := tx.QueryRowxContext(ctx, query, c.ID, c.PostID, c.ParentCommentID, c.OwnerID, c.Content).Scan(&c.CreatedAt); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	c.Likes = []string{}
	c.ReplyIDs = []string{}
	return nil
}

// GetByID retrieves a single comment or reply.
func (r *commentRepository) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	var row commentRow
	err := r.db.GetContext(ctx, &row, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}

	c := row.toModel()
	return &c, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID string) ([]model.Comment, error) {
	return r.list(ctx, `SELECT `+commentColumns+` FROM comments WHERE post_id = $1 ORDER BY created_at, id`, postID)
}

func (r *commentRepository) ListByPosts(ctx context.Context, postIDs []string) ([]model.Comment, error) {
	if len(postIDs) == 0 {
		return []model.Comment{}, nil
	}
	return r.list(ctx, `SELECT `+commentColumns+` FROM comments WHERE post_id = ANY($1) ORDER BY created_at, id`, pq.Array(postIDs))
}

func (r *commentRepository) list(ctx context.Context, query string, args ...interface{}) ([]model.Comment, error) {
	var rows []commentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	comments := make([]model.Comment, len(rows))
	for i, row := range rows {
		comments[i] = row.toModel()
	}
	return comments, nil
}

func (r *commentRepository) UpdateContent(ctx context.Context, id, content string) (*model.Comment, error) {
	var row commentRow
	err := r.db.GetContext(ctx, &row,
		`UPDATE comments SET content = $1 WHERE id = $2 RETURNING `+commentColumns, content, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}

	c := row.toModel()
	return &c, nil
}

func (r *commentRepository) ToggleLike(ctx context.Context, id, userID string) (*model.Comment, error) {
	query := `
		UPDATE comments SET likes = CASE
			WHEN $2::text = ANY(likes) THEN array_remove(likes, $2::text)
			ELSE array_append(likes, $2::text)
		END
		WHERE id = $1
		RETURNING ` + commentColumns
	var row commentRow
	err := r.db.GetContext(ctx, &row, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggle comment like: %w", err)
	}

	c := row.toModel()
	return &c, nil
}

func (r *commentRepository) DeleteComment(ctx context.Context, c *model.Comment) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE parent_comment_id = $1`, c.ID); err != nil {
			return fmt.Errorf("delete replies: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, c.ID)
		if err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return model.ErrCommentNotFound
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE posts SET comment_ids = array_remove(comment_ids, $1) WHERE id = $2`, c.ID, c.PostID)
		if err != nil {
			return fmt.Errorf("detach comment: %w", err)
		}
		return nil
	})
}

func (r *commentRepository) DeleteReply(ctx context.Context, c *model.Comment) error {
	if c.ParentCommentID == nil {
		return model.ErrNotAReply
	}
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, c.ID)
		if err != nil {
			return fmt.Errorf("delete reply: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return model.ErrCommentNotFound
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE comments SET reply_ids = array_remove(reply_ids, $1) WHERE id = $2`, c.ID, *c.ParentCommentID)
		if err != nil {
			return fmt.Errorf("detach reply: %w", err)
		}
		return nil
	})
}
