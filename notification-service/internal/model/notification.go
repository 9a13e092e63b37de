package model

import "time"

type NotificationType string

const (
	TypeTaskAssigned NotificationType = "TASK_ASSIGNED"
	TypeTaskUpdated  NotificationType = "TASK_UPDATED"
	TypeCommentAdded NotificationType = "COMMENT_ADDED"
)

// Metadata is a tagged variant: exactly one of the pointers is set,
// matching the notification type.
type Metadata struct {
	TaskAssigned *TaskAssignedMetadata `json:"taskAssigned,omitempty"`
	TaskUpdated  *TaskUpdatedMetadata  `json:"taskUpdated,omitempty"`
	CommentAdded *CommentAddedMetadata `json:"commentAdded,omitempty"`
}

type TaskAssignedMetadata struct {
	TaskID    string `json:"taskId"`
	TaskTitle string `json:"taskTitle"`
	ActorID   string `json:"actorId"`
	ActorName string `json:"actorName,omitempty"`
}

type TaskUpdatedMetadata struct {
	TaskID            string `json:"taskId"`
	TaskTitle         string `json:"taskTitle"`
	ActorID           string `json:"actorId"`
	ActorName         string `json:"actorName,omitempty"`
	ChangeDescription string `json:"changeDescription"`
	PreviousStatus    string `json:"previousStatus,omitempty"`
	NewStatus         string `json:"newStatus,omitempty"`
}

type CommentAddedMetadata struct {
	TaskID     string `json:"taskId"`
	TaskTitle  string `json:"taskTitle"`
	CommentID  string `json:"commentId"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName,omitempty"`
	Excerpt    string `json:"excerpt"`
}

type Notification struct {
	ID            string           `json:"id"`
	UserID        string           `json:"userId"`
	Type          NotificationType `json:"type"`
	Message       string           `json:"message"`
	Metadata      Metadata         `json:"metadata"`
	Read          bool             `json:"read"`
	CorrelationID string           `json:"correlationId,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

type PaginatedNotifications struct {
	Notifications []*Notification `json:"notifications"`
	Total         int             `json:"total"`
	Page          int             `json:"page"`
	Size          int             `json:"size"`
	TotalPages    int             `json:"totalPages"`
	UnreadCount   int             `json:"unreadCount"`
}
