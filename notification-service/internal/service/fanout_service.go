package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	contracts "taskboard/contracts/mq"
	"taskboard/notification-service/internal/model"
	"taskboard/pkg/logger"
)

// Push event names delivered over the WebSocket gateway.
const (
	PushTaskCreated = "task:created"
	PushTaskUpdated = "task:updated"
	PushCommentNew  = "comment:new"
)

const fallbackActorName = "Alguém"

const commentExcerptLimit = 50

// Store persists the notification rows of one fan-out atomically.
type Store interface {
	InsertBatch(ctx context.Context, notifications []*model.Notification) error
}

// Emitter delivers a push event to every live connection of a user.
// Delivery is best effort; the notification row is the durable record.
type Emitter interface {
	EmitToUser(userID string, event string, payload interface{})
}

type FanoutService struct {
	repo    Store
	emitter Emitter
	logger  *zap.Logger
}

func NewFanoutService(repo Store, emitter Emitter, log *zap.Logger) *FanoutService {
	return &FanoutService{repo: repo, emitter: emitter, logger: log}
}

func (s *FanoutService) HandleTaskCreated(ctx context.Context, event contracts.TaskCreatedPayload) error {
	log := logger.WithCorrelation(ctx, s.logger)

	recipients := recipientsExcluding(event.AssignedUserIDs, event.CreatedBy)
	if len(recipients) == 0 {
		log.Info("Task created with no recipients to notify", zap.String("task_id", event.ID))
		return nil
	}

	actor := actorName(event.CreatorName)
	message := fmt.Sprintf("%s atribuiu você à tarefa %s", actor, event.Title)

	notifications := make([]*model.Notification, 0, len(recipients))
	for _, userID := range recipients {
		notifications = append(notifications, &model.Notification{
			ID:      uuid.NewString(),
			UserID:  userID,
			Type:    model.TypeTaskAssigned,
			Message: message,
			Metadata: model.Metadata{
				TaskAssigned: &model.TaskAssignedMetadata{
					TaskID:    event.ID,
					TaskTitle: event.Title,
					ActorID:   event.CreatedBy,
					ActorName: event.CreatorName,
				},
			},
			CorrelationID: event.CorrelationID,
		})
	}

	if err := s.repo.InsertBatch(ctx, notifications); err != nil {
		return err
	}

	log.Info("Task created fan-out stored",
		zap.String("task_id", event.ID),
		zap.Int("recipients", len(recipients)),
	)

	s.emit(notifications, PushTaskCreated, map[string]interface{}{
		"id":              event.ID,
		"title":           event.Title,
		"priority":        event.Priority,
		"status":          event.Status,
		"deadline":        event.Deadline,
		"assignedUserIds": event.AssignedUserIDs,
	})
	return nil
}

func (s *FanoutService) HandleTaskUpdated(ctx context.Context, event contracts.TaskUpdatedPayload) error {
	log := logger.WithCorrelation(ctx, s.logger)

	recipients := recipientsExcluding(event.AssignedUserIDs, event.UpdatedBy)
	if len(recipients) == 0 {
		log.Info("Task updated with no recipients to notify", zap.String("task_id", event.ID))
		return nil
	}

	actor := actorName(event.UpdaterName)
	change := DescribeChange(event.Changes)
	message := fmt.Sprintf("%s atualizou \"%s\": %s", actor, event.Title, change)

	notifications := make([]*model.Notification, 0, len(recipients))
	for _, userID := range recipients {
		notifications = append(notifications, &model.Notification{
			ID:      uuid.NewString(),
			UserID:  userID,
			Type:    model.TypeTaskUpdated,
			Message: message,
			Metadata: model.Metadata{
				TaskUpdated: &model.TaskUpdatedMetadata{
					TaskID:            event.ID,
					TaskTitle:         event.Title,
					ActorID:           event.UpdatedBy,
					ActorName:         event.UpdaterName,
					ChangeDescription: change,
					PreviousStatus:    event.PreviousStatus,
					NewStatus:         event.NewStatus,
				},
			},
			CorrelationID: event.CorrelationID,
		})
	}

	if err := s.repo.InsertBatch(ctx, notifications); err != nil {
		return err
	}

	log.Info("Task updated fan-out stored",
		zap.String("task_id", event.ID),
		zap.String("change", change),
		zap.Int("recipients", len(recipients)),
	)

	s.emit(notifications, PushTaskUpdated, map[string]interface{}{
		"id":              event.ID,
		"title":           event.Title,
		"changes":         event.Changes,
		"previousStatus":  event.PreviousStatus,
		"newStatus":       event.NewStatus,
		"assignedUserIds": event.AssignedUserIDs,
	})
	return nil
}

func (s *FanoutService) HandleCommentCreated(ctx context.Context, event contracts.CommentCreatedPayload) error {
	log := logger.WithCorrelation(ctx, s.logger)

	// The comment author never hears about their own comment, even when
	// they are an assignee of the task.
	recipients := recipientsExcluding(event.TaskAssigneeIDs, event.AuthorID)
	if len(recipients) == 0 {
		log.Info("Comment created with no recipients to notify", zap.String("comment_id", event.ID))
		return nil
	}

	actor := actorName(event.AuthorName)
	excerpt := Truncate(event.Content, commentExcerptLimit)
	message := fmt.Sprintf("%s comentou em \"%s\": %s", actor, event.TaskTitle, excerpt)

	notifications := make([]*model.Notification, 0, len(recipients))
	for _, userID := range recipients {
		notifications = append(notifications, &model.Notification{
			ID:      uuid.NewString(),
			UserID:  userID,
			Type:    model.TypeCommentAdded,
			Message: message,
			Metadata: model.Metadata{
				CommentAdded: &model.CommentAddedMetadata{
					TaskID:     event.TaskID,
					TaskTitle:  event.TaskTitle,
					CommentID:  event.ID,
					AuthorID:   event.AuthorID,
					AuthorName: event.AuthorName,
					Excerpt:    excerpt,
				},
			},
			CorrelationID: event.CorrelationID,
		})
	}

	if err := s.repo.InsertBatch(ctx, notifications); err != nil {
		return err
	}

	log.Info("Comment created fan-out stored",
		zap.String("comment_id", event.ID),
		zap.String("task_id", event.TaskID),
		zap.Int("recipients", len(recipients)),
	)

	s.emit(notifications, PushCommentNew, map[string]interface{}{
		"id":         event.ID,
		"taskId":     event.TaskID,
		"content":    event.Content,
		"authorId":   event.AuthorID,
		"authorName": event.AuthorName,
	})
	return nil
}

// emit pushes one event per stored notification. Emit failures are invisible
// here: the rows are already committed and the consumer must not retry them.
func (s *FanoutService) emit(notifications []*model.Notification, event string, projection map[string]interface{}) {
	if s.emitter == nil {
		return
	}
	for _, n := range notifications {
		s.emitter.EmitToUser(n.UserID, event, map[string]interface{}{
			"notification": n,
			"data":         projection,
		})
	}
}

// DescribeChange renders a human description for a task update. When several
// fields changed at once the most significant one wins.
func DescribeChange(changes contracts.TaskChanges) string {
	switch {
	case changes.Status != nil:
		return fmt.Sprintf("Status alterado para %s", *changes.Status)
	case changes.Priority != nil:
		return fmt.Sprintf("Prioridade alterada para %s", *changes.Priority)
	case changes.AssignedUserIDs != nil:
		return "Responsáveis atualizados"
	case changes.Title != nil:
		return "Título atualizado"
	case changes.Description != nil:
		return "Descrição atualizada"
	case changes.Deadline != nil:
		return "Prazo atualizado"
	default:
		return "Tarefa atualizada"
	}
}

// Truncate shortens s to limit runes, appending an ellipsis when cut.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func recipientsExcluding(userIDs []string, actorID string) []string {
	seen := make(map[string]struct{}, len(userIDs))
	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id == "" || id == actorID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func actorName(name string) string {
	if name == "" {
		return fallbackActorName
	}
	return name
}
