package server

import (
	"sync"

	"github.com/a2aruntime/a2a/a2a"
	zap "go.uber.org/zap"
)

// TaskStore is the process-wide concurrent task repository: a map
// from TaskId to Task with write-lock discipline on mutation and
// read-lock discipline on queries, plus the state-transition validator.
type TaskStore interface {
	Store(task a2a.Task)
	Get(id a2a.TaskId) (a2a.Task, error)
	GetStatus(id a2a.TaskId) (a2a.TaskStatus, error)
	Update(task a2a.Task) error
	UpdateState(id a2a.TaskId, newState a2a.TaskState, reason string) (a2a.Task, error)
	AddArtifact(id a2a.TaskId, artifact a2a.Artifact) (a2a.Task, error)
	Cancel(id a2a.TaskId, reason string) (a2a.Task, error)
	ListAll() []a2a.Task
	ListByState(state a2a.TaskState) []a2a.Task
	Delete(id a2a.TaskId) bool
	Count() int
	Clear()
}

// InMemoryTaskStore is the default TaskStore: a single RWMutex-guarded map.
// Writers briefly exclude readers; no lock is held across any suspension
// point (callers, e.g. webhook enqueue, run after the lock is released).
type InMemoryTaskStore struct {
	mu     sync.RWMutex
	tasks  map[a2a.TaskId]a2a.Task
	logger *zap.Logger
}

// NewInMemoryTaskStore builds an empty task store.
func NewInMemoryTaskStore(logger *zap.Logger) *InMemoryTaskStore {
	return &InMemoryTaskStore{
		tasks:  make(map[a2a.TaskId]a2a.Task),
		logger: logger,
	}
}

// Store inserts or fully replaces a task; ids are unique by construction.
func (s *InMemoryTaskStore) Store(task a2a.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.Id] = task
}

// Get retrieves a task by id.
func (s *InMemoryTaskStore) Get(id a2a.TaskId) (a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return a2a.Task{}, a2a.TaskNotFoundError(id)
	}
	return task.Clone(), nil
}

// GetStatus retrieves just the current status of a task.
func (s *InMemoryTaskStore) GetStatus(id a2a.TaskId) (a2a.TaskStatus, error) {
	task, err := s.Get(id)
	if err != nil {
		return a2a.TaskStatus{}, err
	}
	return task.Status, nil
}

// Update fully replaces a stored task; the caller is expected to have
// derived the replacement from a prior Get.
func (s *InMemoryTaskStore) Update(task a2a.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.Id]; !ok {
		return a2a.TaskNotFoundError(task.Id)
	}
	s.tasks[task.Id] = task
	return nil
}

// UpdateState validates and applies a state transition against the
// allowed-targets table, appending the prior status to history before
// writing the new one. On rejection the task is left unchanged.
func (s *InMemoryTaskStore) UpdateState(id a2a.TaskId, newState a2a.TaskState, reason string) (a2a.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return a2a.Task{}, a2a.TaskNotFoundError(id)
	}

	if !a2a.CanTransition(task.Status.State, newState) {
		return a2a.Task{}, a2a.UnsupportedOperationError(
			"illegal task state transition",
			map[string]interface{}{
				"taskId": string(id),
				"from":   string(task.Status.State),
				"to":     string(newState),
			})
	}

	prior := task.Status
	task.Status = a2a.NewTaskStatus(newState, reason)
	task.History = append(task.History, prior)

	s.tasks[id] = task
	if s.logger != nil {
		s.logger.Debug("task state updated",
			zap.String("task_id", string(id)),
			zap.String("from", string(prior.State)),
			zap.String("to", string(newState)))
	}
	return task.Clone(), nil
}

// AddArtifact appends an artifact to the task's artifact list.
func (s *InMemoryTaskStore) AddArtifact(id a2a.TaskId, artifact a2a.Artifact) (a2a.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return a2a.Task{}, a2a.TaskNotFoundError(id)
	}

	task.Artifacts = append(task.Artifacts, artifact)
	s.tasks[id] = task
	return task.Clone(), nil
}

// Cancel transitions a task to Cancelled, refusing if it is already
// terminal (returns TaskNotCancelable carrying the current state).
func (s *InMemoryTaskStore) Cancel(id a2a.TaskId, reason string) (a2a.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return a2a.Task{}, a2a.TaskNotFoundError(id)
	}

	if task.Status.State.IsTerminal() {
		return a2a.Task{}, a2a.TaskNotCancelableError(id, task.Status.State)
	}

	prior := task.Status
	task.Status = a2a.NewTaskStatus(a2a.TaskStateCancelled, reason)
	task.History = append(task.History, prior)
	s.tasks[id] = task

	if s.logger != nil {
		s.logger.Info("task cancelled", zap.String("task_id", string(id)))
	}
	return task.Clone(), nil
}

// ListAll returns a snapshot of every stored task.
func (s *InMemoryTaskStore) ListAll() []a2a.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]a2a.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	return out
}

// ListByState returns a snapshot of tasks currently in the given state.
func (s *InMemoryTaskStore) ListByState(state a2a.TaskState) []a2a.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []a2a.Task
	for _, t := range s.tasks {
		if t.Status.State == state {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Delete removes a task, reporting whether it existed.
func (s *InMemoryTaskStore) Delete(id a2a.TaskId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

// Count returns the number of stored tasks.
func (s *InMemoryTaskStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Clear removes every task. Test only.
func (s *InMemoryTaskStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[a2a.TaskId]a2a.Task)
}
