package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	contracts "taskboard/contracts/mq"
	"taskboard/notification-service/internal/model"
)

type fakeStore struct {
	inserted []*model.Notification
	err      error
}

func (f *fakeStore) InsertBatch(_ context.Context, notifications []*model.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, notifications...)
	return nil
}

type emittedEvent struct {
	userID string
	event  string
}

type fakeEmitter struct {
	events []emittedEvent
}

func (f *fakeEmitter) EmitToUser(userID string, event string, _ interface{}) {
	f.events = append(f.events, emittedEvent{userID: userID, event: event})
}

func newTestFanout() (*FanoutService, *fakeStore, *fakeEmitter) {
	store := &fakeStore{}
	emitter := &fakeEmitter{}
	return NewFanoutService(store, emitter, zap.NewNop()), store, emitter
}

func TestHandleTaskCreatedExcludesActor(t *testing.T) {
	svc, store, emitter := newTestFanout()

	err := svc.HandleTaskCreated(context.Background(), contracts.TaskCreatedPayload{
		ID:              "task-1",
		Title:           "Deploy staging",
		AssignedUserIDs: []string{"alice", "bob", "carol"},
		CreatedBy:       "bob",
		CreatorName:     "Bob",
	})
	require.NoError(t, err)

	require.Len(t, store.inserted, 2)
	recipients := []string{store.inserted[0].UserID, store.inserted[1].UserID}
	assert.ElementsMatch(t, []string{"alice", "carol"}, recipients)

	for _, n := range store.inserted {
		assert.Equal(t, model.TypeTaskAssigned, n.Type)
		assert.Equal(t, "Bob atribuiu você à tarefa Deploy staging", n.Message)
		require.NotNil(t, n.Metadata.TaskAssigned)
		assert.Equal(t, "task-1", n.Metadata.TaskAssigned.TaskID)
	}

	require.Len(t, emitter.events, 2)
	for _, e := range emitter.events {
		assert.Equal(t, PushTaskCreated, e.event)
	}
}

func TestHandleTaskCreatedNoRecipients(t *testing.T) {
	svc, store, emitter := newTestFanout()

	err := svc.HandleTaskCreated(context.Background(), contracts.TaskCreatedPayload{
		ID:              "task-1",
		Title:           "Solo task",
		AssignedUserIDs: []string{"alice"},
		CreatedBy:       "alice",
	})
	require.NoError(t, err)
	assert.Empty(t, store.inserted)
	assert.Empty(t, emitter.events)
}

func TestHandleTaskCreatedDuplicateAssignees(t *testing.T) {
	svc, store, _ := newTestFanout()

	err := svc.HandleTaskCreated(context.Background(), contracts.TaskCreatedPayload{
		ID:              "task-1",
		Title:           "Review PR",
		AssignedUserIDs: []string{"alice", "alice", "bob"},
		CreatedBy:       "carol",
	})
	require.NoError(t, err)
	require.Len(t, store.inserted, 2)
}

func TestHandleTaskCreatedFallbackActorName(t *testing.T) {
	svc, store, _ := newTestFanout()

	err := svc.HandleTaskCreated(context.Background(), contracts.TaskCreatedPayload{
		ID:              "task-1",
		Title:           "Triage",
		AssignedUserIDs: []string{"alice"},
		CreatedBy:       "ghost",
	})
	require.NoError(t, err)
	require.Len(t, store.inserted, 1)
	assert.Equal(t, "Alguém atribuiu você à tarefa Triage", store.inserted[0].Message)
}

func TestHandleTaskUpdatedMessage(t *testing.T) {
	svc, store, emitter := newTestFanout()

	status := "DONE"
	err := svc.HandleTaskUpdated(context.Background(), contracts.TaskUpdatedPayload{
		ID:              "task-2",
		Title:           "Ship release",
		AssignedUserIDs: []string{"alice", "bob"},
		Changes:         contracts.TaskChanges{Status: &status},
		UpdatedBy:       "alice",
		UpdaterName:     "Alice",
		PreviousStatus:  "IN_PROGRESS",
		NewStatus:       "DONE",
	})
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	n := store.inserted[0]
	assert.Equal(t, "bob", n.UserID)
	assert.Equal(t, model.TypeTaskUpdated, n.Type)
	assert.Equal(t, `Alice atualizou "Ship release": Status alterado para DONE`, n.Message)
	require.NotNil(t, n.Metadata.TaskUpdated)
	assert.Equal(t, "IN_PROGRESS", n.Metadata.TaskUpdated.PreviousStatus)

	require.Len(t, emitter.events, 1)
	assert.Equal(t, PushTaskUpdated, emitter.events[0].event)
}

func TestHandleCommentCreatedExcludesAuthorEvenWhenAssignee(t *testing.T) {
	svc, store, emitter := newTestFanout()

	err := svc.HandleCommentCreated(context.Background(), contracts.CommentCreatedPayload{
		ID:              "comment-1",
		TaskID:          "task-3",
		TaskTitle:       "Fix login",
		Content:         "Looks good to me",
		AuthorID:        "alice",
		AuthorName:      "Alice",
		TaskAssigneeIDs: []string{"alice", "bob"},
	})
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	n := store.inserted[0]
	assert.Equal(t, "bob", n.UserID)
	assert.Equal(t, model.TypeCommentAdded, n.Type)
	assert.Equal(t, `Alice comentou em "Fix login": Looks good to me`, n.Message)

	require.Len(t, emitter.events, 1)
	assert.Equal(t, PushCommentNew, emitter.events[0].event)
}

func TestHandleCommentCreatedTruncatesExcerpt(t *testing.T) {
	svc, store, _ := newTestFanout()

	long := strings.Repeat("a", 80)
	err := svc.HandleCommentCreated(context.Background(), contracts.CommentCreatedPayload{
		ID:              "comment-2",
		TaskID:          "task-3",
		TaskTitle:       "Fix login",
		Content:         long,
		AuthorID:        "alice",
		TaskAssigneeIDs: []string{"bob"},
	})
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	want := strings.Repeat("a", 50) + "..."
	require.NotNil(t, store.inserted[0].Metadata.CommentAdded)
	assert.Equal(t, want, store.inserted[0].Metadata.CommentAdded.Excerpt)
	assert.True(t, strings.HasSuffix(store.inserted[0].Message, want))
}

func TestHandleTaskCreatedStoreFailureSkipsEmit(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	emitter := &fakeEmitter{}
	svc := NewFanoutService(store, emitter, zap.NewNop())

	err := svc.HandleTaskCreated(context.Background(), contracts.TaskCreatedPayload{
		ID:              "task-1",
		Title:           "Deploy",
		AssignedUserIDs: []string{"alice"},
		CreatedBy:       "bob",
	})
	require.Error(t, err)
	assert.Empty(t, emitter.events)
}

func TestDescribeChangePrecedence(t *testing.T) {
	s := func(v string) *string { return &v }

	tests := []struct {
		name    string
		changes contracts.TaskChanges
		want    string
	}{
		{
			name: "status wins over everything",
			changes: contracts.TaskChanges{
				Status:          s("DONE"),
				Priority:        s("HIGH"),
				Title:           s("New title"),
				AssignedUserIDs: []string{"alice"},
			},
			want: "Status alterado para DONE",
		},
		{
			name:    "priority",
			changes: contracts.TaskChanges{Priority: s("URGENT"), Title: s("x")},
			want:    "Prioridade alterada para URGENT",
		},
		{
			name:    "assignees",
			changes: contracts.TaskChanges{AssignedUserIDs: []string{"alice"}, Title: s("x")},
			want:    "Responsáveis atualizados",
		},
		{
			name:    "title",
			changes: contracts.TaskChanges{Title: s("x"), Description: s("y")},
			want:    "Título atualizado",
		},
		{
			name:    "description",
			changes: contracts.TaskChanges{Description: s("y"), Deadline: s("2026-01-01T00:00:00Z")},
			want:    "Descrição atualizada",
		},
		{
			name:    "deadline",
			changes: contracts.TaskChanges{Deadline: s("2026-01-01T00:00:00Z")},
			want:    "Prazo atualizado",
		},
		{
			name:    "nothing tracked",
			changes: contracts.TaskChanges{},
			want:    "Tarefa atualizada",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeChange(tt.changes))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 50))
	assert.Equal(t, strings.Repeat("x", 50), Truncate(strings.Repeat("x", 50), 50))
	assert.Equal(t, strings.Repeat("x", 50)+"...", Truncate(strings.Repeat("x", 51), 50))

	// rune-safe on multibyte input
	assert.Equal(t, "áéí...", Truncate("áéíóú", 3))
}
