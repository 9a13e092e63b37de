package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	pending []*Event
	sent    []int64
	failed  []int64
	getErr  error
}

func (f *fakeStore) GetPendingEvents(_ context.Context, limit int) ([]*Event, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeStore) MarkAsSent(_ context.Context, eventID int64) error {
	f.sent = append(f.sent, eventID)
	return nil
}

func (f *fakeStore) MarkAsFailed(_ context.Context, eventID int64, _ int, _ time.Duration) error {
	f.failed = append(f.failed, eventID)
	return nil
}

type fakePublisher struct {
	published []string
	failKeys  map[string]bool
}

func (f *fakePublisher) PublishWithContext(_ context.Context, routingKey string, _ any) error {
	if f.failKeys[routingKey] {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, routingKey)
	return nil
}

func TestProcessPendingPublishesAndMarksSent(t *testing.T) {
	store := &fakeStore{
		pending: []*Event{
			{ID: 1, RoutingKey: "task.created", Payload: []byte(`{}`)},
			{ID: 2, RoutingKey: "task.updated", Payload: []byte(`{}`)},
		},
	}
	publisher := &fakePublisher{}
	d := NewDispatcher(store, publisher, zap.NewNop())

	d.ProcessPending(context.Background())

	assert.Equal(t, []string{"task.created", "task.updated"}, publisher.published)
	assert.Equal(t, []int64{1, 2}, store.sent)
	assert.Empty(t, store.failed)
}

func TestProcessPendingMarksFailedOnPublishError(t *testing.T) {
	store := &fakeStore{
		pending: []*Event{
			{ID: 1, RoutingKey: "task.created", Payload: []byte(`{}`)},
			{ID: 2, RoutingKey: "comment.created", Payload: []byte(`{}`)},
		},
	}
	publisher := &fakePublisher{failKeys: map[string]bool{"task.created": true}}
	d := NewDispatcher(store, publisher, zap.NewNop())

	d.ProcessPending(context.Background())

	// the failing event is parked for retry, the rest of the batch proceeds
	assert.Equal(t, []int64{1}, store.failed)
	assert.Equal(t, []int64{2}, store.sent)
	assert.Equal(t, []string{"comment.created"}, publisher.published)
}

func TestProcessPendingRespectsBatchSize(t *testing.T) {
	store := &fakeStore{}
	for i := int64(1); i <= 10; i++ {
		store.pending = append(store.pending, &Event{ID: i, RoutingKey: "task.created", Payload: []byte(`{}`)})
	}
	publisher := &fakePublisher{}
	d := NewDispatcher(store, publisher, zap.NewNop()).WithBatchSize(4)

	d.ProcessPending(context.Background())

	require.Len(t, store.sent, 4)
}

func TestProcessPendingStoreError(t *testing.T) {
	store := &fakeStore{getErr: errors.New("db down")}
	publisher := &fakePublisher{}
	d := NewDispatcher(store, publisher, zap.NewNop())

	d.ProcessPending(context.Background())

	assert.Empty(t, publisher.published)
	assert.Empty(t, store.sent)
}
