package a2a

import (
	"encoding/json"
	"fmt"
)

// StreamKind names the four SSE event types.
type StreamKind string

const (
	StreamKindMessage            StreamKind = "message"
	StreamKindTask                StreamKind = "task"
	StreamKindTaskStatusUpdate    StreamKind = "task-status-update"
	StreamKindTaskArtifactUpdate  StreamKind = "task-artifact-update"
)

// StreamingResult is the sum type flowing over message/stream and
// task/resubscribe: Message | Task | TaskStatusUpdateEvent |
// TaskArtifactUpdateEvent. Unlike Part, its wire encoding is not structural
// — each variant rides a distinct SSE "event:" line (see package sse), so
// the Go representation carries an explicit Kind rather than inferring
// variant from shape.
type StreamingResult struct {
	Kind                StreamKind
	Message             *Message
	Task                *Task
	TaskStatusUpdate    *TaskStatusUpdateEvent
	TaskArtifactUpdate  *TaskArtifactUpdateEvent
}

// TaskStatusUpdateEvent reports a task's status transition to stream
// subscribers.
type TaskStatusUpdateEvent struct {
	TaskId    TaskId                 `json:"taskId"`
	Status    TaskStatus             `json:"status"`
	Final     bool                   `json:"final,omitempty"`
	Progress  *float64               `json:"progress,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// TaskArtifactUpdateEvent reports a new or updated artifact on a task.
type TaskArtifactUpdateEvent struct {
	TaskId   TaskId   `json:"taskId"`
	Artifact Artifact `json:"artifact"`
}

// MarshalJSON encodes whichever variant is set as the SSE "data:" payload;
// the variant itself is carried out-of-band by the SSE event name.
func (r StreamingResult) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case StreamKindMessage:
		return json.Marshal(r.Message)
	case StreamKindTask:
		return json.Marshal(r.Task)
	case StreamKindTaskStatusUpdate:
		return json.Marshal(r.TaskStatusUpdate)
	case StreamKindTaskArtifactUpdate:
		return json.Marshal(r.TaskArtifactUpdate)
	default:
		return nil, fmt.Errorf("streaming result has no kind set")
	}
}

// DecodeStreamingResult parses a "data:" payload given the SSE event name
// that accompanied it.
func DecodeStreamingResult(eventName string, data []byte) (StreamingResult, error) {
	switch StreamKind(eventName) {
	case StreamKindMessage:
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			return StreamingResult{}, err
		}
		return StreamingResult{Kind: StreamKindMessage, Message: &m}, nil
	case StreamKindTask:
		var t Task
		if err := json.Unmarshal(data, &t); err != nil {
			return StreamingResult{}, err
		}
		return StreamingResult{Kind: StreamKindTask, Task: &t}, nil
	case StreamKindTaskStatusUpdate:
		var e TaskStatusUpdateEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return StreamingResult{}, err
		}
		return StreamingResult{Kind: StreamKindTaskStatusUpdate, TaskStatusUpdate: &e}, nil
	case StreamKindTaskArtifactUpdate:
		var e TaskArtifactUpdateEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return StreamingResult{}, err
		}
		return StreamingResult{Kind: StreamKindTaskArtifactUpdate, TaskArtifactUpdate: &e}, nil
	default:
		return StreamingResult{}, fmt.Errorf("unexpected SSE event type %q", eventName)
	}
}

// SendResponse is the untagged sum type returned by message/send: either a
// Task or a Message, disambiguated structurally since one is returned
// as bare JSON (no enclosing event name, unlike StreamingResult).
type SendResponse struct {
	Task    *Task
	Message *Message
}

// MarshalJSON emits whichever variant is set as a bare JSON object.
func (r SendResponse) MarshalJSON() ([]byte, error) {
	switch {
	case r.Task != nil:
		return json.Marshal(r.Task)
	case r.Message != nil:
		return json.Marshal(r.Message)
	default:
		return nil, fmt.Errorf("send response has neither task nor message set")
	}
}

// sendResponseProbe is used to sniff which variant a raw JSON object is:
// a Task always carries "status"; a Message always carries "role".
type sendResponseProbe struct {
	Status json.RawMessage `json:"status"`
	Role   json.RawMessage `json:"role"`
}

// UnmarshalJSON infers the variant from shape: presence of "status" means
// Task, presence of "role" means Message.
func (r *SendResponse) UnmarshalJSON(raw []byte) error {
	var probe sendResponseProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return err
	}

	switch {
	case probe.Status != nil:
		var t Task
		if err := json.Unmarshal(raw, &t); err != nil {
			return err
		}
		r.Task = &t
	case probe.Role != nil:
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		r.Message = &m
	default:
		return fmt.Errorf("send response JSON is neither a task nor a message")
	}
	return nil
}

// TaskResponse wraps a Task as a SendResponse.
func TaskResponse(t Task) SendResponse {
	return SendResponse{Task: &t}
}

// MessageResponse wraps a Message as a SendResponse.
func MessageResponse(m Message) SendResponse {
	return SendResponse{Message: &m}
}
