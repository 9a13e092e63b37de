package outbox

import (
	"context"
	"fmt"
	"time"
)

// ReplayStore is the repository slice the replay service needs.
type ReplayStore interface {
	Store
	GetFailedEvents(ctx context.Context, limit int) ([]*Event, error)
	ReplayEvent(ctx context.Context, eventID int64) error
}

// ReplayService re-publishes parked outbox events on operator request.
type ReplayService struct {
	store     ReplayStore
	publisher Publisher
}

func NewReplayService(store ReplayStore, publisher Publisher) *ReplayService {
	return &ReplayService{store: store, publisher: publisher}
}

// ReplayFailedEvents resets parked events to pending and publishes them
// immediately. Returns the number successfully republished.
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.store.GetFailedEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get failed events: %w", err)
	}

	successCount := 0
	for _, event := range events {
		if err := s.store.ReplayEvent(ctx, event.ID); err != nil {
			continue
		}
		if err := s.publisher.PublishWithContext(ctx, event.RoutingKey, event.Payload); err != nil {
			_ = s.store.MarkAsFailed(ctx, event.ID, 1, time.Second)
			continue
		}
		if err := s.store.MarkAsSent(ctx, event.ID); err != nil {
			continue
		}
		successCount++
	}

	return successCount, nil
}
