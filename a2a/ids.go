// Package a2a defines the wire-level data model shared by every A2A
// component: messages, parts, tasks, artifacts, agent cards and the
// streaming/push-notification payloads that ride on top of them.
package a2a

import (
	"fmt"
	"net/url"
	"strings"

	uuid "github.com/google/uuid"
)

// AgentId identifies an agent participating in an A2A flow. A non-URL id is
// just an opaque handle (e.g. "router", "billing-agent"); an id containing
// "://" must additionally parse as a URL, since it is expected to double as
// a dereferenceable endpoint.
type AgentId string

// NewAgentId validates and returns an AgentId, rejecting empty/blank
// strings and malformed URL-shaped ids.
func NewAgentId(raw string) (AgentId, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("agent id must not be empty")
	}

	if strings.Contains(trimmed, "://") {
		if _, err := url.Parse(trimmed); err != nil {
			return "", fmt.Errorf("agent id %q looks like a URL but does not parse: %w", raw, err)
		}
	}

	return AgentId(trimmed), nil
}

// String returns the id as a plain string.
func (a AgentId) String() string {
	return string(a)
}

// TaskId, MessageId, ContextId, ArtifactId and SseEventId are opaque
// identifiers, unique within their scope. They are typically UUIDs (tasks,
// messages) or monotonically increasing counters (SSE event ids).
type (
	TaskId     string
	MessageId  string
	ContextId  string
	ArtifactId string
	SseEventId string
)

// NewTaskId returns a fresh random task id.
func NewTaskId() TaskId {
	return TaskId(uuid.New().String())
}

// NewMessageId returns a fresh random message id.
func NewMessageId() MessageId {
	return MessageId(uuid.New().String())
}

// NewArtifactId returns a fresh random artifact id.
func NewArtifactId() ArtifactId {
	return ArtifactId(uuid.New().String())
}
