package model

import (
	"encoding/json"
	"time"
)

// AuditAction labels an entry in a task's history.
type AuditAction string

const (
	AuditCreated       AuditAction = "CREATED"
	AuditUpdated       AuditAction = "UPDATED"
	AuditStatusChanged AuditAction = "STATUS_CHANGED"
	AuditAssigned      AuditAction = "ASSIGNED"
)

// TaskAudit is one immutable history entry for a task. Entries are written
// in the same transaction as the mutation they describe.
type TaskAudit struct {
	ID          string          `json:"id"`
	TaskID      string          `json:"taskId"`
	Action      AuditAction     `json:"action"`
	Changes     json.RawMessage `json:"changes,omitempty"`
	PerformedBy string          `json:"performedBy"`
	CreatedAt   time.Time       `json:"createdAt"`
}
