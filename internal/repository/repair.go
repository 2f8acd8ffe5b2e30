package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// repairer converges forward lists and back-pointers. Postgres writes every
// cascade in a transaction, so these only matter for rows written before that
// or by hand; they are cheap no-ops otherwise.
type repairer struct {
	db *sqlx.DB
}

func NewRepairer(db *sqlx.DB) Repairer {
	return &repairer{db: db}
}

func (r *repairer) RepairPostCascade(ctx context.Context, postID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM comments
		WHERE post_id = $1 AND NOT EXISTS (SELECT 1 FROM posts WHERE id = $1)
	`, postID)
	if err != nil {
		return fmt.Errorf("repair post cascade: %w", err)
	}
	return nil
}

func (r *repairer) RepairCommentCascade(ctx context.Context, commentID string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1)`, commentID); err != nil {
			return fmt.Errorf("check comment: %w", err)
		}
		if exists {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE parent_comment_id = $1`, commentID); err != nil {
			return fmt.Errorf("delete orphan replies: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE posts SET comment_ids = array_remove(comment_ids, $1) WHERE $1 = ANY(comment_ids)
		`, commentID); err != nil {
			return fmt.Errorf("detach from post: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE comments SET reply_ids = array_remove(reply_ids, $1) WHERE $1 = ANY(reply_ids)
		`, commentID); err != nil {
			return fmt.Errorf("detach from parent: %w", err)
		}
		return nil
	})
}

func (r *repairer) RepairAttach(ctx context.Context, commentID string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var row commentRow
		err := tx.GetContext(ctx, &row, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, commentID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get comment: %w", err)
		}

		if row.ParentCommentID == nil {
			_, err = tx.ExecContext(ctx, `
				UPDATE posts SET comment_ids = array_append(comment_ids, $1)
				WHERE id = $2 AND NOT ($1 = ANY(comment_ids))
			`, row.ID, row.PostID)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE comments SET reply_ids = array_append(reply_ids, $1)
				WHERE id = $2 AND NOT ($1 = ANY(reply_ids))
			`, row.ID, *row.ParentCommentID)
		}
		if err != nil {
			return fmt.Errorf("repair attach: %w", err)
		}
		return nil
	})
}

// RepairFollowEdge has nothing to do: both directions come from one follows row.
func (r *repairer) RepairFollowEdge(ctx context.Context, followerID, followeeID string) error {
	return nil
}

func (r *repairer) RepairUserEdges(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM follows
		WHERE (follower_id = $1 OR followee_id = $1)
		  AND NOT EXISTS (SELECT 1 FROM users WHERE id = $1)
	`, userID)
	if err != nil {
		return fmt.Errorf("repair user edges: %w", err)
	}
	return nil
}
