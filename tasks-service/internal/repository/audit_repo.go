package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskboard/tasks-service/internal/model"
)

// AuditRepository writes and reads the task_audit history table. Writes
// always happen inside the caller's transaction so an entry never outlives
// a rolled-back mutation.
type AuditRepository struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) InsertTx(ctx context.Context, tx pgx.Tx, entry *model.TaskAudit) error {
	query := `
		INSERT INTO task_audit (id, task_id, action, changes, performed_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	var changes any
	if len(entry.Changes) > 0 {
		changes = entry.Changes
	}
	err := tx.QueryRow(ctx, query,
		entry.ID,
		entry.TaskID,
		entry.Action,
		changes,
		entry.PerformedBy,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListForTask returns a task's history, newest first.
func (r *AuditRepository) ListForTask(ctx context.Context, taskID string) ([]*model.TaskAudit, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, task_id, action, COALESCE(changes, 'null'::jsonb), performed_by, created_at
		FROM task_audit
		WHERE task_id = $1
		ORDER BY created_at DESC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*model.TaskAudit{}
	for rows.Next() {
		var e model.TaskAudit
		var changes []byte
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Action, &changes, &e.PerformedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if string(changes) != "null" {
			e.Changes = changes
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
