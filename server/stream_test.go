package server

import (
	"testing"
	"time"

	"github.com/a2aruntime/a2a/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func taskEvent(state a2a.TaskState) a2a.StreamingResult {
	return a2a.StreamingResult{
		Kind: a2a.StreamKindTaskStatusUpdate,
		TaskStatusUpdate: &a2a.TaskStatusUpdateEvent{
			TaskId: "t1",
			Status: a2a.TaskStatus{State: state},
		},
	}
}

func TestWriterBroadcastOrderPreserved(t *testing.T) {
	w := NewWriter("t1", zap.NewNop())
	ch, unsubscribe := w.Subscribe()
	defer unsubscribe()

	w.Publish(taskEvent(a2a.TaskStateWorking))
	w.Publish(taskEvent(a2a.TaskStateCompleted))

	first := <-ch
	second := <-ch
	assert.Equal(t, a2a.TaskStateWorking, first.TaskStatusUpdate.Status.State)
	assert.Equal(t, a2a.TaskStateCompleted, second.TaskStatusUpdate.Status.State)
}

func TestWriterOverflowDropsOldestWithoutBlocking(t *testing.T) {
	w := NewWriter("t1", zap.NewNop())
	w.subBuffer = 4
	slow, unsubscribe := w.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			w.Publish(taskEvent(a2a.TaskStateWorking))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	assert.LessOrEqual(t, len(slow), 4)
}

func TestWriterOtherSubscribersUnaffectedBySlowOne(t *testing.T) {
	w := NewWriter("t1", zap.NewNop())
	w.subBuffer = 2

	slow, unsubscribeSlow := w.Subscribe()
	_ = slow
	defer unsubscribeSlow()

	fast, unsubscribeFast := w.Subscribe()
	defer unsubscribeFast()

	go func() {
		for range fast {
		}
	}()

	for i := 0; i < 10; i++ {
		w.Publish(taskEvent(a2a.TaskStateWorking))
	}
}

func TestWriterEventsAfterUnknownIDReturnsFullBuffer(t *testing.T) {
	w := NewWriter("t1", zap.NewNop())
	w.Publish(taskEvent(a2a.TaskStateWorking))
	w.Publish(taskEvent(a2a.TaskStateCompleted))

	events := w.EventsAfter("evicted-or-unknown")
	assert.Len(t, events, 2)
}

func TestWriterEventsAfterKnownIDReturnsOnlyLater(t *testing.T) {
	w := NewWriter("t1", zap.NewNop())
	id1 := w.Publish(taskEvent(a2a.TaskStateWorking))
	w.Publish(taskEvent(a2a.TaskStateCompleted))

	events := w.EventsAfter(id1)
	require.Len(t, events, 1)
	assert.Equal(t, a2a.TaskStateCompleted, events[0].TaskStatusUpdate.Status.State)
}

func TestWriterTableGetOrCreateAndRemove(t *testing.T) {
	table := NewWriterTable(zap.NewNop())
	w1 := table.GetOrCreate("t1")
	w2 := table.GetOrCreate("t1")
	assert.Same(t, w1, w2)

	table.Remove("t1")
	_, ok := table.Get("t1")
	assert.False(t, ok)
}
