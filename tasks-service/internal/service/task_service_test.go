package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contracts "taskboard/contracts/mq"
	"taskboard/tasks-service/internal/model"
)

func TestApplyChangesTracksOnlyTouchedFields(t *testing.T) {
	task := &model.Task{
		ID:       "task-1",
		Title:    "Old title",
		Priority: model.PriorityMedium,
		Status:   model.StatusTodo,
	}

	status := model.StatusInProgress
	input := UpdateTaskInput{Status: &status}

	changes := applyChanges(task, input)

	require.NotNil(t, changes.Status)
	assert.Equal(t, "IN_PROGRESS", *changes.Status)
	assert.Nil(t, changes.Title)
	assert.Nil(t, changes.Priority)
	assert.Nil(t, changes.Description)
	assert.Nil(t, changes.Deadline)
	assert.Nil(t, changes.AssignedUserIDs)

	assert.Equal(t, model.StatusInProgress, task.Status)
	assert.Equal(t, "Old title", task.Title)
}

func TestApplyChangesTrimsText(t *testing.T) {
	task := &model.Task{ID: "task-1", Title: "Old"}

	title := "  New title  "
	changes := applyChanges(task, UpdateTaskInput{Title: &title})

	assert.Equal(t, "New title", task.Title)
	require.NotNil(t, changes.Title)
	assert.Equal(t, "New title", *changes.Title)
}

func TestApplyChangesAssignees(t *testing.T) {
	task := &model.Task{ID: "task-1", AssigneeIDs: []string{"alice"}}

	changes := applyChanges(task, UpdateTaskInput{
		AssigneeIDs: []string{"bob", "bob", "carol"},
	})

	assert.Equal(t, []string{"bob", "carol"}, task.AssigneeIDs)
	assert.Equal(t, []string{"bob", "carol"}, changes.AssignedUserIDs)
}

func TestApplyChangesDeadline(t *testing.T) {
	task := &model.Task{ID: "task-1"}

	deadline := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	changes := applyChanges(task, UpdateTaskInput{Deadline: &deadline})

	require.NotNil(t, changes.Deadline)
	assert.Equal(t, "2026-10-01T12:00:00Z", *changes.Deadline)
}

func TestAuditEntriesForPlainUpdate(t *testing.T) {
	title := "New title"
	changes := contracts.TaskChanges{Title: &title}

	entries := auditEntries("task-1", changes, "alice", "TODO")

	require.Len(t, entries, 1)
	assert.Equal(t, model.AuditUpdated, entries[0].Action)
	assert.Equal(t, "task-1", entries[0].TaskID)
	assert.Equal(t, "alice", entries[0].PerformedBy)
	assert.JSONEq(t, `{"title":"New title"}`, string(entries[0].Changes))
}

func TestAuditEntriesForStatusTransition(t *testing.T) {
	status := "DONE"
	changes := contracts.TaskChanges{Status: &status}

	entries := auditEntries("task-1", changes, "alice", "IN_PROGRESS")

	require.Len(t, entries, 2)
	assert.Equal(t, model.AuditUpdated, entries[0].Action)
	assert.Equal(t, model.AuditStatusChanged, entries[1].Action)
	assert.JSONEq(t, `{"previousStatus":"IN_PROGRESS","newStatus":"DONE"}`, string(entries[1].Changes))
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestAuditEntriesSameStatusIsNotATransition(t *testing.T) {
	status := "TODO"
	changes := contracts.TaskChanges{Status: &status}

	entries := auditEntries("task-1", changes, "alice", "TODO")

	require.Len(t, entries, 1)
	assert.Equal(t, model.AuditUpdated, entries[0].Action)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, dedupe([]string{"a", "b", "a", "c", "b"}))
	assert.Empty(t, dedupe(nil))
}

func TestFormatDeadline(t *testing.T) {
	assert.Equal(t, "", formatDeadline(nil))

	loc := time.FixedZone("UTC+2", 2*3600)
	d := time.Date(2026, 1, 15, 14, 30, 0, 0, loc)
	assert.Equal(t, "2026-01-15T12:30:00Z", formatDeadline(&d))
}
