package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	contracts "taskboard/contracts/mq"
	"taskboard/pkg/logger"
	"taskboard/pkg/outbox"
	"taskboard/pkg/trace"
	"taskboard/tasks-service/internal/model"
	"taskboard/tasks-service/internal/repository"
)

const producerName = "tasks-service"

type CreateTaskInput struct {
	Title       string
	Description string
	Deadline    *time.Time
	Priority    model.Priority
	Status      model.Status
	AssigneeIDs []string
	CreatedBy   string
	CreatorName string
}

type UpdateTaskInput struct {
	Title       *string
	Description *string
	Deadline    *time.Time
	Priority    *model.Priority
	Status      *model.Status
	AssigneeIDs []string
	UpdatedBy   string
	UpdaterName string
}

// TaskService owns the task write path. Every mutation commits its domain
// event to the outbox in the same transaction; the relay publishes after
// commit, so nothing is announced that can still roll back.
type TaskService struct {
	db         *pgxpool.Pool
	tasks      *repository.TaskRepository
	audit      *repository.AuditRepository
	outboxRepo *outbox.Repository
	logger     *zap.Logger
}

func NewTaskService(db *pgxpool.Pool, tasks *repository.TaskRepository, log *zap.Logger) *TaskService {
	return &TaskService{
		db:         db,
		tasks:      tasks,
		audit:      repository.NewAuditRepository(db),
		outboxRepo: outbox.NewRepository(db),
		logger:     log,
	}
}

func (s *TaskService) Create(ctx context.Context, input CreateTaskInput) (*model.Task, error) {
	if input.CreatedBy == "" {
		return nil, fmt.Errorf("createdBy is required")
	}

	ctx, correlationID := trace.Ensure(ctx)
	log := logger.WithCorrelation(ctx, s.logger)

	status := input.Status
	if status == "" {
		status = model.StatusTodo
	}

	task := &model.Task{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Deadline:    input.Deadline,
		Priority:    input.Priority,
		Status:      status,
		CreatedBy:   input.CreatedBy,
		CreatorName: input.CreatorName,
		AssigneeIDs: dedupe(input.AssigneeIDs),
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.tasks.InsertTx(ctx, tx, task); err != nil {
		return nil, err
	}

	if err := s.audit.InsertTx(ctx, tx, &model.TaskAudit{
		ID:          uuid.NewString(),
		TaskID:      task.ID,
		Action:      model.AuditCreated,
		PerformedBy: task.CreatedBy,
	}); err != nil {
		return nil, err
	}

	event := contracts.TaskCreatedPayload{
		Envelope:        s.envelope(correlationID),
		ID:              task.ID,
		Title:           task.Title,
		Description:     task.Description,
		Deadline:        formatDeadline(task.Deadline),
		Priority:        string(task.Priority),
		Status:          string(task.Status),
		AssignedUserIDs: task.AssigneeIDs,
		CreatedBy:       task.CreatedBy,
		CreatorName:     task.CreatorName,
	}
	if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "task", task.ID, contracts.RoutingKeyTaskCreated, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info("Task created",
		zap.String("task_id", task.ID),
		zap.String("created_by", task.CreatedBy),
		zap.Int("assignees", len(task.AssigneeIDs)),
	)

	return task, nil
}

func (s *TaskService) Update(ctx context.Context, id string, input UpdateTaskInput) (*model.Task, error) {
	if input.UpdatedBy == "" {
		return nil, fmt.Errorf("updatedBy is required")
	}

	ctx, correlationID := trace.Ensure(ctx)
	log := logger.WithCorrelation(ctx, s.logger)

	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previousStatus := task.Status
	changes := applyChanges(task, input)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.tasks.UpdateTx(ctx, tx, task); err != nil {
		return nil, err
	}

	if input.AssigneeIDs != nil {
		if err := s.tasks.ReplaceAssigneesTx(ctx, tx, task.ID, task.AssigneeIDs, input.UpdatedBy); err != nil {
			return nil, err
		}
	}

	for _, entry := range auditEntries(task.ID, changes, input.UpdatedBy, string(previousStatus)) {
		if err := s.audit.InsertTx(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	event := contracts.TaskUpdatedPayload{
		Envelope:        s.envelope(correlationID),
		ID:              task.ID,
		Title:           task.Title,
		AssignedUserIDs: task.AssigneeIDs,
		Changes:         changes,
		UpdatedBy:       input.UpdatedBy,
		UpdaterName:     input.UpdaterName,
		PreviousStatus:  string(previousStatus),
		NewStatus:       string(task.Status),
	}
	if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "task", task.ID, contracts.RoutingKeyTaskUpdated, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info("Task updated",
		zap.String("task_id", task.ID),
		zap.String("updated_by", input.UpdatedBy),
		zap.String("previous_status", string(previousStatus)),
		zap.String("new_status", string(task.Status)),
	)

	return task, nil
}

func (s *TaskService) Get(ctx context.Context, id string) (*model.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

func (s *TaskService) List(ctx context.Context, filters model.TaskFilters) (*model.PaginatedTasks, error) {
	return s.tasks.List(ctx, filters)
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	return s.tasks.Delete(ctx, id)
}

// History returns the audit entries of a task, newest first.
func (s *TaskService) History(ctx context.Context, id string) ([]*model.TaskAudit, error) {
	if _, err := s.tasks.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.audit.ListForTask(ctx, id)
}

func (s *TaskService) envelope(correlationID string) contracts.Envelope {
	return contracts.Envelope{
		EventID:       uuid.NewString(),
		CorrelationID: correlationID,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
		Producer:      producerName,
		SchemaVersion: contracts.SchemaVersion,
	}
}

// applyChanges mutates task in place from the update input and records which
// fields actually changed for the event payload.
func applyChanges(task *model.Task, input UpdateTaskInput) contracts.TaskChanges {
	var changes contracts.TaskChanges

	if input.Title != nil {
		task.Title = strings.TrimSpace(*input.Title)
		changes.Title = &task.Title
	}
	if input.Description != nil {
		task.Description = strings.TrimSpace(*input.Description)
		changes.Description = &task.Description
	}
	if input.Deadline != nil {
		task.Deadline = input.Deadline
		deadline := formatDeadline(input.Deadline)
		changes.Deadline = &deadline
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
		priority := string(*input.Priority)
		changes.Priority = &priority
	}
	if input.Status != nil {
		task.Status = *input.Status
		status := string(*input.Status)
		changes.Status = &status
	}
	if input.AssigneeIDs != nil {
		task.AssigneeIDs = dedupe(input.AssigneeIDs)
		changes.AssignedUserIDs = task.AssigneeIDs
	}

	return changes
}

// auditEntries builds the history rows for one update. Every update gets an
// UPDATED entry carrying the changed fields; a status transition additionally
// gets its own STATUS_CHANGED entry with the old and new value.
func auditEntries(taskID string, changes contracts.TaskChanges, performedBy, previousStatus string) []*model.TaskAudit {
	changesJSON, _ := json.Marshal(changes)
	entries := []*model.TaskAudit{{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		Action:      model.AuditUpdated,
		Changes:     changesJSON,
		PerformedBy: performedBy,
	}}

	if changes.Status != nil && *changes.Status != previousStatus {
		statusJSON, _ := json.Marshal(map[string]string{
			"previousStatus": previousStatus,
			"newStatus":      *changes.Status,
		})
		entries = append(entries, &model.TaskAudit{
			ID:          uuid.NewString(),
			TaskID:      taskID,
			Action:      model.AuditStatusChanged,
			Changes:     statusJSON,
			PerformedBy: performedBy,
		})
	}

	return entries
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func formatDeadline(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
