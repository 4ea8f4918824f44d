package a2a

import "time"

// TaskState is the lowercase wire-form lifecycle state of a Task.
type TaskState string

const (
	TaskStatePending   TaskState = "pending"
	TaskStateWorking   TaskState = "working"
	TaskStateBlocked   TaskState = "blocked"
	TaskStateReview    TaskState = "review"
	TaskStateCompleted TaskState = "completed"
	TaskStateCancelled TaskState = "cancelled"
	TaskStateFailed    TaskState = "failed"
	TaskStateSuspended TaskState = "suspended"
)

// IsTerminal reports whether state admits no further transitions.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCancelled, TaskStateFailed:
		return true
	default:
		return false
	}
}

// transitions is the allowed-targets table. A state not
// present here as a key (i.e. a terminal state) allows no transitions.
var transitions = map[TaskState]map[TaskState]bool{
	TaskStatePending: {
		TaskStateWorking:   true,
		TaskStateCancelled: true,
		TaskStateFailed:    true,
	},
	TaskStateWorking: {
		TaskStateBlocked:   true,
		TaskStateReview:    true,
		TaskStateCompleted: true,
		TaskStateFailed:    true,
		TaskStateCancelled: true,
		TaskStateSuspended: true,
	},
	TaskStateBlocked: {
		TaskStateWorking:   true,
		TaskStateFailed:    true,
		TaskStateCancelled: true,
	},
	TaskStateReview: {
		TaskStateWorking:   true,
		TaskStateCompleted: true,
		TaskStateFailed:    true,
		TaskStateCancelled: true,
	},
	TaskStateSuspended: {
		TaskStateWorking:   true,
		TaskStateCancelled: true,
		TaskStateFailed:    true,
	},
}

// CanTransition reports whether from -> to is allowed. A self-loop is
// always allowed, including from a terminal state.
func CanTransition(from, to TaskState) bool {
	if from == to {
		return true
	}
	targets, ok := transitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// TaskStatus is a timestamped snapshot of a task's lifecycle state.
type TaskStatus struct {
	State     TaskState              `json:"state"`
	Reason    string                 `json:"reason,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"` // RFC-3339
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewTaskStatus builds a TaskStatus stamped with the current time.
func NewTaskStatus(state TaskState, reason string) TaskStatus {
	return TaskStatus{
		State:     state,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// Artifact is a named output produced by a task.
type Artifact struct {
	Id       ArtifactId             `json:"id"`
	Type     string                 `json:"type"`
	Name     string                 `json:"name,omitempty"`
	URI      string                 `json:"uri,omitempty"`
	Data     interface{}            `json:"data,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Task is a long-running unit of work tracked by the task store.
type Task struct {
	Id        TaskId                 `json:"id"`
	ContextId *ContextId             `json:"contextId,omitempty"`
	Status    TaskStatus             `json:"status"`
	Artifacts []Artifact             `json:"artifacts,omitempty"`
	History   []TaskStatus           `json:"history,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewTask creates a task in the pending state with a fresh id.
func NewTask(contextId *ContextId) Task {
	return Task{
		Id:        NewTaskId(),
		ContextId: contextId,
		Status:    NewTaskStatus(TaskStatePending, ""),
	}
}

// Clone returns a deep-enough copy of t for safe concurrent handoff: the
// status, history and artifact slices are all copied so callers never
// observe a torn in-place mutation.
func (t Task) Clone() Task {
	out := t
	if t.History != nil {
		out.History = append([]TaskStatus(nil), t.History...)
	}
	if t.Artifacts != nil {
		out.Artifacts = append([]Artifact(nil), t.Artifacts...)
	}
	return out
}
