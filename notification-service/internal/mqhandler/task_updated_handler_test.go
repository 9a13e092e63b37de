package mqhandler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	contracts "taskboard/contracts/mq"
	"taskboard/notification-service/internal/model"
	"taskboard/notification-service/internal/service"
)

type memDeduper struct {
	claims map[string]bool
}

func newMemDeduper() *memDeduper {
	return &memDeduper{claims: make(map[string]bool)}
}

func (d *memDeduper) Claim(_ context.Context, handler, key string) bool {
	k := handler + ":" + key
	if d.claims[k] {
		return false
	}
	d.claims[k] = true
	return true
}

func (d *memDeduper) Release(_ context.Context, handler, key string) {
	delete(d.claims, handler+":"+key)
}

type memStore struct {
	inserted []*model.Notification
}

func (s *memStore) InsertBatch(_ context.Context, notifications []*model.Notification) error {
	s.inserted = append(s.inserted, notifications...)
	return nil
}

func updatedPayload(t *testing.T, eventID, correlationID, newStatus string) json.RawMessage {
	t.Helper()
	status := newStatus
	data, err := json.Marshal(contracts.TaskUpdatedPayload{
		Envelope: contracts.Envelope{
			EventID:       eventID,
			CorrelationID: correlationID,
			Producer:      "tasks-service",
			SchemaVersion: contracts.SchemaVersion,
		},
		ID:              "task-1",
		Title:           "Ship release",
		AssignedUserIDs: []string{"alice", "bob"},
		Changes:         contracts.TaskChanges{Status: &status},
		UpdatedBy:       "alice",
		UpdaterName:     "Alice",
		NewStatus:       newStatus,
	})
	require.NoError(t, err)
	return data
}

func TestTaskUpdatedDistinctEventsSharingCorrelationID(t *testing.T) {
	store := &memStore{}
	fanout := service.NewFanoutService(store, nil, zap.NewNop())
	h := NewTaskUpdatedHandler(fanout, newMemDeduper(), zap.NewNop())

	// one traced client flow, two separate updates
	require.NoError(t, h.Handle(context.Background(), updatedPayload(t, "evt-1", "corr-1", "IN_PROGRESS")))
	require.NoError(t, h.Handle(context.Background(), updatedPayload(t, "evt-2", "corr-1", "DONE")))

	assert.Len(t, store.inserted, 2)
}

func TestTaskUpdatedDuplicateDeliverySkipped(t *testing.T) {
	store := &memStore{}
	fanout := service.NewFanoutService(store, nil, zap.NewNop())
	h := NewTaskUpdatedHandler(fanout, newMemDeduper(), zap.NewNop())

	payload := updatedPayload(t, "evt-1", "corr-1", "DONE")
	require.NoError(t, h.Handle(context.Background(), payload))
	require.NoError(t, h.Handle(context.Background(), payload))

	assert.Len(t, store.inserted, 1)
}

func TestTaskUpdatedMalformedPayloadIsPermanent(t *testing.T) {
	store := &memStore{}
	fanout := service.NewFanoutService(store, nil, zap.NewNop())
	h := NewTaskUpdatedHandler(fanout, newMemDeduper(), zap.NewNop())

	err := h.Handle(context.Background(), json.RawMessage(`{not json`))
	require.Error(t, err)
	assert.Empty(t, store.inserted)
}
