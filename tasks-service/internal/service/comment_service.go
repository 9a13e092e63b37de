package service

import (
	"context"
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

type CreateCommentInput struct {
	Content    string
	AuthorID   string
	AuthorName string
}

type CommentService struct {
	db         *pgxpool.Pool
	tasks      *repository.TaskRepository
	comments   *repository.CommentRepository
	outboxRepo *outbox.Repository
	logger     *zap.Logger
}

func NewCommentService(db *pgxpool.Pool, tasks *repository.TaskRepository, comments *repository.CommentRepository, log *zap.Logger) *CommentService {
	return &CommentService{
		db:         db,
		tasks:      tasks,
		comments:   comments,
		outboxRepo: outbox.NewRepository(db),
		logger:     log,
	}
}

func (s *CommentService) Create(ctx context.Context, taskID string, input CreateCommentInput) (*model.Comment, error) {
	if input.AuthorID == "" {
		return nil, fmt.Errorf("authorId is required")
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}

	ctx, correlationID := trace.Ensure(ctx)
	log := logger.WithCorrelation(ctx, s.logger)

	// The event carries the task title and assignee set so consumers do not
	// have to call back into this service to fan out.
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{
		ID:         uuid.NewString(),
		TaskID:     task.ID,
		Content:    content,
		AuthorID:   input.AuthorID,
		AuthorName: input.AuthorName,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.comments.InsertTx(ctx, tx, comment); err != nil {
		return nil, err
	}

	event := contracts.CommentCreatedPayload{
		Envelope: contracts.Envelope{
			EventID:       uuid.NewString(),
			CorrelationID: correlationID,
			OccurredAt:    comment.CreatedAt.UTC().Format(time.RFC3339),
			Producer:      producerName,
			SchemaVersion: contracts.SchemaVersion,
		},
		ID:              comment.ID,
		TaskID:          task.ID,
		TaskTitle:       task.Title,
		Content:         comment.Content,
		AuthorID:        comment.AuthorID,
		AuthorName:      comment.AuthorName,
		TaskAssigneeIDs: task.AssigneeIDs,
	}
	if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "comment", comment.ID, contracts.RoutingKeyCommentCreated, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info("Comment created",
		zap.String("comment_id", comment.ID),
		zap.String("task_id", task.ID),
		zap.String("author_id", comment.AuthorID),
	)

	return comment, nil
}

func (s *CommentService) ListByTask(ctx context.Context, taskID string, page, size int) (*model.PaginatedComments, error) {
	if _, err := s.tasks.GetByID(ctx, taskID); err != nil {
		return nil, err
	}
	return s.comments.ListByTask(ctx, taskID, page, size)
}
