package mq

// TaskChanges lists the fields touched by a task update. Only the changed
// fields are set; the consumer renders the change description from them.
type TaskChanges struct {
	Title           *string  `json:"title,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Deadline        *string  `json:"deadline,omitempty"`
	Priority        *string  `json:"priority,omitempty"`
	Status          *string  `json:"status,omitempty"`
	AssignedUserIDs []string `json:"assignedUserIds,omitempty"`
}

type TaskCreatedPayload struct {
	Envelope
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	Deadline        string   `json:"deadline,omitempty"`
	Priority        string   `json:"priority"`
	Status          string   `json:"status"`
	AssignedUserIDs []string `json:"assignedUserIds"`
	CreatedBy       string   `json:"createdBy"`
	CreatorName     string   `json:"creatorName,omitempty"`
}

type TaskUpdatedPayload struct {
	Envelope
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	AssignedUserIDs []string    `json:"assignedUserIds"`
	Changes         TaskChanges `json:"changes"`
	UpdatedBy       string      `json:"updatedBy"`
	UpdaterName     string      `json:"updaterName,omitempty"`
	PreviousStatus  string      `json:"previousStatus,omitempty"`
	NewStatus       string      `json:"newStatus,omitempty"`
}

type CommentCreatedPayload struct {
	Envelope
	ID              string   `json:"id"`
	TaskID          string   `json:"taskId"`
	TaskTitle       string   `json:"taskTitle"`
	Content         string   `json:"content"`
	AuthorID        string   `json:"authorId"`
	AuthorName      string   `json:"authorName,omitempty"`
	TaskAssigneeIDs []string `json:"taskAssigneeIds"`
}
