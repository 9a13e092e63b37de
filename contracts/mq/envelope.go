package mq

// Envelope carries the tracing and versioning fields attached to every
// domain event. Field names are a wire contract between tasks-service and
// notification-service: adding optional fields is safe, removing or renaming
// required fields is not.
type Envelope struct {
	// EventID is unique per event and is the consumer's idempotency key.
	// CorrelationID groups every event of one request chain, so several
	// distinct events may share it.
	EventID       string `json:"eventId"`
	CorrelationID string `json:"correlationId"`
	OccurredAt    string `json:"occurredAt"` // RFC3339
	Producer      string `json:"producer"`
	SchemaVersion string `json:"schemaVersion"`
}

const SchemaVersion = "1.0"

// Routing keys on the tasks exchange.
const (
	RoutingKeyTaskCreated    = "task.created"
	RoutingKeyTaskUpdated    = "task.updated"
	RoutingKeyCommentCreated = "comment.created"
)
