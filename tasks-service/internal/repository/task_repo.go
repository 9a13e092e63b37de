package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskboard/tasks-service/internal/model"
)

// ErrNotFound signals a missing row, or one the caller does not own.
var ErrNotFound = errors.New("not found")

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

func (r *TaskRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// InsertTx inserts a task and its assignee rows inside the caller's
// transaction.
func (r *TaskRepository) InsertTx(ctx context.Context, tx pgx.Tx, task *model.Task) error {
	query := `
		INSERT INTO tasks (id, title, description, deadline, priority, status, created_by, creator_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := tx.QueryRow(ctx, query,
		task.ID,
		task.Title,
		nullable(task.Description),
		task.Deadline,
		task.Priority,
		task.Status,
		task.CreatedBy,
		nullable(task.CreatorName),
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return r.insertAssigneesTx(ctx, tx, task.ID, task.AssigneeIDs, task.CreatedBy)
}

// UpdateTx persists task fields inside the caller's transaction.
func (r *TaskRepository) UpdateTx(ctx context.Context, tx pgx.Tx, task *model.Task) error {
	query := `
		UPDATE tasks
		SET title = $1, description = $2, deadline = $3, priority = $4, status = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`
	err := tx.QueryRow(ctx, query,
		task.Title,
		nullable(task.Description),
		task.Deadline,
		task.Priority,
		task.Status,
		task.ID,
	).Scan(&task.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

// ReplaceAssigneesTx swaps the full assignee set of a task.
func (r *TaskRepository) ReplaceAssigneesTx(ctx context.Context, tx pgx.Tx, taskID string, userIDs []string, assignedBy string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM task_assignees WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("failed to clear assignees: %w", err)
	}
	return r.insertAssigneesTx(ctx, tx, taskID, userIDs, assignedBy)
}

func (r *TaskRepository) insertAssigneesTx(ctx context.Context, tx pgx.Tx, taskID string, userIDs []string, assignedBy string) error {
	for _, userID := range userIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO task_assignees (task_id, user_id, assigned_by)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, taskID, userID, assignedBy)
		if err != nil {
			return fmt.Errorf("failed to insert assignee: %w", err)
		}
	}
	return nil
}

// GetByID loads a task with its assignee set.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*model.Task, error) {
	query := `
		SELECT id, title, COALESCE(description, ''), deadline, priority, status,
		       created_by, COALESCE(creator_name, ''), created_at, updated_at
		FROM tasks
		WHERE id = $1
	`
	var t model.Task
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Deadline,
		&t.Priority,
		&t.Status,
		&t.CreatedBy,
		&t.CreatorName,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	assignees, err := r.assigneeIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	t.AssigneeIDs = assignees

	return &t, nil
}

func (r *TaskRepository) assigneeIDs(ctx context.Context, taskID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM task_assignees WHERE task_id = $1 ORDER BY assigned_at`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignees: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan assignee: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List returns a filtered, paginated task page ordered by creation time
// descending.
func (r *TaskRepository) List(ctx context.Context, filters model.TaskFilters) (*model.PaginatedTasks, error) {
	where := []string{"1=1"}
	args := []any{}

	if filters.Priority != "" {
		args = append(args, filters.Priority)
		where = append(where, fmt.Sprintf("t.priority = $%d", len(args)))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where = append(where, fmt.Sprintf("t.status = $%d", len(args)))
	}
	if filters.AssigneeID != "" {
		args = append(args, filters.AssigneeID)
		where = append(where, fmt.Sprintf("EXISTS (SELECT 1 FROM task_assignees a WHERE a.task_id = t.id AND a.user_id = $%d)", len(args)))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where = append(where, fmt.Sprintf("(t.title ILIKE $%d OR t.description ILIKE $%d)", len(args), len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM tasks t WHERE %s`, whereClause)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	page := filters.Page
	if page <= 0 {
		page = 1
	}
	size := filters.Size
	if size <= 0 {
		size = 10
	}

	args = append(args, size, (page-1)*size)
	listQuery := fmt.Sprintf(`
		SELECT t.id, t.title, COALESCE(t.description, ''), t.deadline, t.priority, t.status,
		       t.created_by, COALESCE(t.creator_name, ''), t.created_at, t.updated_at
		FROM tasks t
		WHERE %s
		ORDER BY t.created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*model.Task{}
	for rows.Next() {
		var t model.Task
		err := rows.Scan(
			&t.ID, &t.Title, &t.Description, &t.Deadline, &t.Priority, &t.Status,
			&t.CreatedBy, &t.CreatorName, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, t := range tasks {
		assignees, err := r.assigneeIDs(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		t.AssigneeIDs = assignees
	}

	return &model.PaginatedTasks{
		Tasks:      tasks,
		Total:      total,
		Page:       page,
		Size:       size,
		TotalPages: TotalPages(total, size),
	}, nil
}

// Delete removes a task and, via cascade, its assignees and comments.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TotalPages computes the page count for a total row count and page size.
func TotalPages(total, size int) int {
	if size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
