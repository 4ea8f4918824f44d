package server

import (
	"testing"

	"github.com/a2aruntime/a2a/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestTaskStore() *InMemoryTaskStore {
	return NewInMemoryTaskStore(zap.NewNop())
}

func TestTaskStoreCreateAndGet(t *testing.T) {
	store := newTestTaskStore()
	task := a2a.NewTask(nil)
	store.Store(task)

	got, err := store.Get(task.Id)
	require.NoError(t, err)
	assert.Equal(t, task.Id, got.Id)
	assert.Equal(t, a2a.TaskStatePending, got.Status.State)
}

func TestTaskStoreGetMissingReturnsNotFound(t *testing.T) {
	store := newTestTaskStore()
	_, err := store.Get(a2a.TaskId("nope"))
	require.Error(t, err)

	domainErr, ok := err.(*a2a.Error)
	require.True(t, ok)
	assert.Equal(t, a2a.KindNotFound, domainErr.Kind)
}

func TestTaskStoreValidTransitionAppendsHistory(t *testing.T) {
	store := newTestTaskStore()
	task := a2a.NewTask(nil)
	store.Store(task)

	updated, err := store.UpdateState(task.Id, a2a.TaskStateWorking, "")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateWorking, updated.Status.State)
	require.Len(t, updated.History, 1)
	assert.Equal(t, a2a.TaskStatePending, updated.History[0].State, "history.last() must equal the previous status")
}

func TestTaskStoreInvalidTransitionRejectedAndUnchanged(t *testing.T) {
	store := newTestTaskStore()
	task := a2a.NewTask(nil)
	store.Store(task)

	_, err := store.UpdateState(task.Id, a2a.TaskStateCompleted, "")
	require.Error(t, err, "pending -> completed is not in the transition table")

	domainErr, ok := err.(*a2a.Error)
	require.True(t, ok)
	assert.Equal(t, a2a.KindUnsupported, domainErr.Kind)

	unchanged, err := store.Get(task.Id)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStatePending, unchanged.Status.State, "rejected transition must not mutate the task")
}

func TestTaskStoreCancelTerminalRejected(t *testing.T) {
	store := newTestTaskStore()
	task := a2a.NewTask(nil)
	store.Store(task)

	_, err := store.UpdateState(task.Id, a2a.TaskStateWorking, "")
	require.NoError(t, err)
	_, err = store.UpdateState(task.Id, a2a.TaskStateCompleted, "")
	require.NoError(t, err)

	_, err = store.Cancel(task.Id, "too late")
	require.Error(t, err)
	domainErr, ok := err.(*a2a.Error)
	require.True(t, ok)
	assert.Equal(t, a2a.KindNotCancelable, domainErr.Kind)
}

func TestTaskStoreSelfLoopAlwaysAllowed(t *testing.T) {
	store := newTestTaskStore()
	task := a2a.NewTask(nil)
	store.Store(task)

	updated, err := store.UpdateState(task.Id, a2a.TaskStatePending, "")
	assert.NoError(t, err)
	require.Len(t, updated.History, 1, "a self-loop is an accepted mutation and must still push the prior status onto history")
	assert.Equal(t, a2a.TaskStatePending, updated.History[0].State)
}

func TestTaskStoreListByState(t *testing.T) {
	store := newTestTaskStore()
	t1 := a2a.NewTask(nil)
	t2 := a2a.NewTask(nil)
	store.Store(t1)
	store.Store(t2)
	_, err := store.UpdateState(t1.Id, a2a.TaskStateWorking, "")
	require.NoError(t, err)

	working := store.ListByState(a2a.TaskStateWorking)
	assert.Len(t, working, 1)
	assert.Equal(t, t1.Id, working[0].Id)
}

func TestTaskStoreDeleteAndCount(t *testing.T) {
	store := newTestTaskStore()
	task := a2a.NewTask(nil)
	store.Store(task)
	assert.Equal(t, 1, store.Count())

	assert.True(t, store.Delete(task.Id))
	assert.False(t, store.Delete(task.Id))
	assert.Equal(t, 0, store.Count())
}
