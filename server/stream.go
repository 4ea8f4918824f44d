package server

import (
	"sync"

	"github.com/a2aruntime/a2a/a2a"
	zap "go.uber.org/zap"
)

const (
	defaultSubscriberBuffer = 64
	defaultReplayLogSize    = 256
)

// subscriber is one consumer of a writer's broadcast: a bounded channel.
type subscriber struct {
	ch chan a2a.StreamingResult
}

// replayEntry pairs an event id with the event it identifies, for the
// bounded replay log backing Last-Event-ID resume.
type replayEntry struct {
	id    a2a.SseEventId
	event a2a.StreamingResult
}

// Writer is the per-task broadcast fan-out: every
// publish is sent to all current subscribers' buffered channels; a slow
// subscriber that falls behind has its oldest buffered events dropped
// rather than blocking the publisher. A bounded replay log of
// (SseEventId, StreamingResult) supports resubscription.
type Writer struct {
	mu          sync.Mutex
	subscribers map[int]*subscriber
	nextSubID   int
	nextEventID int64
	replay      []replayEntry
	replayCap   int
	subBuffer   int
	logger      *zap.Logger
	taskID      a2a.TaskId
}

// NewWriter builds a writer for the given task with default bounds.
func NewWriter(taskID a2a.TaskId, logger *zap.Logger) *Writer {
	return &Writer{
		subscribers: make(map[int]*subscriber),
		replayCap:   defaultReplayLogSize,
		subBuffer:   defaultSubscriberBuffer,
		logger:      logger,
		taskID:      taskID,
	}
}

// Subscribe registers a new subscriber and returns its receive channel and
// an unsubscribe func. The channel is closed when Unsubscribe is called.
func (w *Writer) Subscribe() (<-chan a2a.StreamingResult, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextSubID
	w.nextSubID++
	sub := &subscriber{ch: make(chan a2a.StreamingResult, w.subBuffer)}
	w.subscribers[id] = sub

	unsubscribe := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if existing, ok := w.subscribers[id]; ok {
			close(existing.ch)
			delete(w.subscribers, id)
		}
	}
	return sub.ch, unsubscribe
}

// Publish broadcasts an event to every subscriber and appends it to the
// replay log. Publishing never blocks: a subscriber whose buffer is full
// has its oldest queued event dropped to make room.
func (w *Writer) Publish(event a2a.StreamingResult) a2a.SseEventId {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextEventID++
	id := a2a.SseEventId(formatEventID(w.nextEventID))

	w.replay = append(w.replay, replayEntry{id: id, event: event})
	if len(w.replay) > w.replayCap {
		w.replay = w.replay[len(w.replay)-w.replayCap:]
	}

	for subID, sub := range w.subscribers {
		w.deliverNonBlocking(subID, sub, event)
	}

	return id
}

// deliverNonBlocking sends event to sub without ever blocking the
// publisher: if the channel is full, the oldest queued event is dropped
// and a diagnostic logged, then delivery is retried once.
func (w *Writer) deliverNonBlocking(subID int, sub *subscriber, event a2a.StreamingResult) {
	select {
	case sub.ch <- event:
		return
	default:
	}

	select {
	case <-sub.ch:
		if w.logger != nil {
			w.logger.Warn("stream subscriber buffer overflow, dropping oldest event",
				zap.String("task_id", string(w.taskID)), zap.Int("subscriber_id", subID))
		}
	default:
	}

	select {
	case sub.ch <- event:
	default:
		// Subscriber channel churned concurrently; drop this event for it.
	}
}

// EventsAfter returns events strictly after lastID in insertion order. If
// lastID is unknown (evicted or never seen), the full current buffer is
// returned, per the documented fallback (see DESIGN.md open-question
// resolution).
func (w *Writer) EventsAfter(lastID a2a.SseEventId) []a2a.StreamingResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	if lastID == "" {
		return w.snapshotLocked()
	}

	for i, entry := range w.replay {
		if entry.id == lastID {
			out := make([]a2a.StreamingResult, 0, len(w.replay)-i-1)
			for _, e := range w.replay[i+1:] {
				out = append(out, e.event)
			}
			return out
		}
	}

	return w.snapshotLocked()
}

func (w *Writer) snapshotLocked() []a2a.StreamingResult {
	out := make([]a2a.StreamingResult, 0, len(w.replay))
	for _, e := range w.replay {
		out = append(out, e.event)
	}
	return out
}

// SubscriberCount reports how many subscribers are currently attached.
func (w *Writer) SubscriberCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subscribers)
}

func formatEventID(n int64) string {
	const digits = "0123456789"
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = digits[n%10]
		n /= 10
	}
	return string(buf[i:])
}

// WriterTable is the per-task table of active writers, inserted on stream
// creation and removed once the task reaches a terminal state.
type WriterTable struct {
	mu      sync.RWMutex
	writers map[a2a.TaskId]*Writer
	logger  *zap.Logger
}

// NewWriterTable builds an empty writer table.
func NewWriterTable(logger *zap.Logger) *WriterTable {
	return &WriterTable{writers: make(map[a2a.TaskId]*Writer), logger: logger}
}

// GetOrCreate returns the existing writer for taskID, creating one if
// absent.
func (t *WriterTable) GetOrCreate(taskID a2a.TaskId) *Writer {
	t.mu.Lock()
	defer t.mu.Unlock()

	if w, ok := t.writers[taskID]; ok {
		return w
	}
	w := NewWriter(taskID, t.logger)
	t.writers[taskID] = w
	return w
}

// Get returns the writer for taskID if one is active.
func (t *WriterTable) Get(taskID a2a.TaskId) (*Writer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, ok := t.writers[taskID]
	return w, ok
}

// Remove drops the writer for taskID, e.g. once the task reaches a
// terminal state.
func (t *WriterTable) Remove(taskID a2a.TaskId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.writers, taskID)
}
