package outbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReplayStore struct {
	fakeStore
	failedEvents []*Event
	replayed     []int64
}

func (f *fakeReplayStore) GetFailedEvents(_ context.Context, limit int) ([]*Event, error) {
	if len(f.failedEvents) > limit {
		return f.failedEvents[:limit], nil
	}
	return f.failedEvents, nil
}

func (f *fakeReplayStore) ReplayEvent(_ context.Context, eventID int64) error {
	f.replayed = append(f.replayed, eventID)
	return nil
}

func TestReplayFailedEvents(t *testing.T) {
	store := &fakeReplayStore{
		failedEvents: []*Event{
			{ID: 7, RoutingKey: "task.created", Payload: []byte(`{}`)},
			{ID: 8, RoutingKey: "comment.created", Payload: []byte(`{}`)},
		},
	}
	publisher := &fakePublisher{}
	svc := NewReplayService(store, publisher)

	count, err := svc.ReplayFailedEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []int64{7, 8}, store.replayed)
	assert.Equal(t, []int64{7, 8}, store.sent)
}

func TestReplayFailedEventsPublishErrorParksAgain(t *testing.T) {
	store := &fakeReplayStore{
		failedEvents: []*Event{
			{ID: 7, RoutingKey: "task.created", Payload: []byte(`{}`)},
		},
	}
	publisher := &fakePublisher{failKeys: map[string]bool{"task.created": true}}
	svc := NewReplayService(store, publisher)

	count, err := svc.ReplayFailedEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, []int64{7}, store.failed)
	assert.Empty(t, store.sent)
}
