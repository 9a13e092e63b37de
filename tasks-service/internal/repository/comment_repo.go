package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskboard/tasks-service/internal/model"
)

type CommentRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewCommentRepository(db *pgxpool.Pool, logger *zap.Logger) *CommentRepository {
	return &CommentRepository{db: db, logger: logger}
}

// InsertTx inserts a comment inside the caller's transaction.
func (r *CommentRepository) InsertTx(ctx context.Context, tx pgx.Tx, comment *model.Comment) error {
	query := `
		INSERT INTO comments (id, task_id, author_id, author_name, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := tx.QueryRow(ctx, query,
		comment.ID,
		comment.TaskID,
		comment.AuthorID,
		comment.AuthorName,
		comment.Content,
	).Scan(&comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// ListByTask returns a comment page for a task, newest first.
func (r *CommentRepository) ListByTask(ctx context.Context, taskID string, page, size int) (*model.PaginatedComments, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 10
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE task_id = $1`, taskID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, task_id, author_id, author_name, content, created_at
		FROM comments
		WHERE task_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, taskID, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []*model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.AuthorName, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &model.PaginatedComments{
		Comments:   comments,
		Total:      total,
		Page:       page,
		Size:       size,
		TotalPages: TotalPages(total, size),
	}, nil
}
