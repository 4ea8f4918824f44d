package server

import (
	"context"

	"github.com/a2aruntime/a2a/a2a"
	"github.com/a2aruntime/a2a/server/otel"
	zap "go.uber.org/zap"
)

// MessageSendRequest is the message/send method's input.
type MessageSendRequest struct {
	Message   a2a.Message `json:"message"`
	Immediate bool        `json:"immediate,omitempty"`
}

// TaskIdParams is the common {taskId} input shared by several methods.
type TaskIdParams struct {
	TaskId a2a.TaskId `json:"taskId"`
}

// TaskCancelParams is task/cancel's input.
type TaskCancelParams struct {
	TaskId a2a.TaskId `json:"taskId"`
	Reason string     `json:"reason,omitempty"`
}

// ResubscribeParams is task/resubscribe's input.
type ResubscribeParams struct {
	TaskId   a2a.TaskId             `json:"taskId"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PushNotificationSetParams is pushNotification/set's input.
type PushNotificationSetParams struct {
	TaskId a2a.TaskId                 `json:"taskId"`
	Config a2a.PushNotificationConfig `json:"config"`
}

// AgentCardGetRequest is agent/card's input; AgentId is accepted but
// ignored by default (a server only publishes its own card).
type AgentCardGetRequest struct {
	AgentId *a2a.AgentId `json:"agentId,omitempty"`
}

// Handler binds the core components to the A2A method set.
type Handler interface {
	AgentCard(ctx context.Context, req AgentCardGetRequest) (a2a.AgentCard, error)
	MessageSend(ctx context.Context, req MessageSendRequest) (a2a.SendResponse, error)
	TaskGet(ctx context.Context, req TaskIdParams) (a2a.Task, error)
	TaskStatus(ctx context.Context, req TaskIdParams) (a2a.TaskStatus, error)
	TaskCancel(ctx context.Context, req TaskCancelParams) (a2a.TaskStatus, error)
	MessageStream(ctx context.Context, message a2a.Message) (<-chan a2a.StreamingResult, error)
	TaskResubscribe(ctx context.Context, req ResubscribeParams, lastEventID string) (<-chan a2a.StreamingResult, error)
	PushNotificationSet(ctx context.Context, req PushNotificationSetParams) error
	PushNotificationGet(ctx context.Context, req TaskIdParams) (*a2a.PushNotificationConfig, error)
	PushNotificationList(ctx context.Context) []TaskPushConfig
	PushNotificationDelete(ctx context.Context, req TaskIdParams) bool
}

// AgentProcessor is the caller-supplied logic invoked for each inbound
// message. It is domain-agnostic: this package has no opinion on what
// produces a reply, only on delivering it through the task lifecycle.
type AgentProcessor func(ctx context.Context, message a2a.Message) (a2a.Message, error)

// DefaultHandler is the full handler implementation, wiring the task
// store, stream writers, push-notification store and webhook queue
// together, invoking an AgentProcessor for each message.
type DefaultHandler struct {
	profile      a2a.AgentProfile
	capabilities a2a.TransportCapabilities
	url          string

	tasks    TaskStore
	writers  *WriterTable
	push     *PushStore
	webhooks *WebhookQueue
	process  AgentProcessor
	blobs    *ArtifactBlobStore

	logger    *zap.Logger
	telemetry otel.OpenTelemetry
}

// WithArtifactBlobStore attaches an ArtifactBlobStore; file parts in a
// task's reply are offloaded to it before being recorded as artifacts.
func (h *DefaultHandler) WithArtifactBlobStore(s *ArtifactBlobStore) *DefaultHandler {
	h.blobs = s
	return h
}

// WithTelemetry attaches an OpenTelemetry recorder; task-transition metrics
// are no-ops until this is called.
func (h *DefaultHandler) WithTelemetry(t otel.OpenTelemetry) *DefaultHandler {
	h.telemetry = t
	return h
}

// NewDefaultHandler wires the core components into a full handler.
func NewDefaultHandler(
	profile a2a.AgentProfile,
	url string,
	capabilities a2a.TransportCapabilities,
	tasks TaskStore,
	writers *WriterTable,
	push *PushStore,
	webhooks *WebhookQueue,
	process AgentProcessor,
	logger *zap.Logger,
) *DefaultHandler {
	return &DefaultHandler{
		profile:      profile,
		capabilities: capabilities,
		url:          url,
		tasks:        tasks,
		writers:      writers,
		push:         push,
		webhooks:     webhooks,
		process:      process,
		logger:       logger,
	}
}

var _ Handler = (*DefaultHandler)(nil)

// AgentCard ignores req.AgentId and returns this agent's own card.
func (h *DefaultHandler) AgentCard(ctx context.Context, req AgentCardGetRequest) (a2a.AgentCard, error) {
	return a2a.BuildAgentCard(h.profile, h.url, h.capabilities), nil
}

// MessageSend honors Immediate: true returns a Message synchronously;
// false (default) creates a Task, transitions pending->working, and
// returns the Task.
func (h *DefaultHandler) MessageSend(ctx context.Context, req MessageSendRequest) (a2a.SendResponse, error) {
	if req.Immediate {
		reply, err := h.process(ctx, req.Message)
		if err != nil {
			return a2a.SendResponse{}, a2a.NewError(a2a.KindInternal, err.Error(), nil)
		}
		return a2a.MessageResponse(reply), nil
	}

	task := a2a.NewTask(req.Message.ContextId)
	h.tasks.Store(task)

	task, err := h.tasks.UpdateState(task.Id, a2a.TaskStateWorking, "")
	if err != nil {
		return a2a.SendResponse{}, err
	}
	h.recordTransition(ctx, a2a.TaskStatePending, task.Status.State)
	h.notifyTransition(ctx, task, a2a.TaskEventStatusChanged)

	go h.runTask(context.Background(), task.Id, req.Message)

	return a2a.TaskResponse(task), nil
}

// runTask drives a task to completion by invoking the AgentProcessor,
// publishing status updates to any active stream writer and firing
// webhook deliveries for matching push-notification configs.
func (h *DefaultHandler) runTask(ctx context.Context, taskID a2a.TaskId, message a2a.Message) {
	reply, err := h.process(ctx, message)

	finalState := a2a.TaskStateCompleted
	reason := ""
	if err != nil {
		finalState = a2a.TaskStateFailed
		reason = err.Error()
	}

	h.offloadFileParts(ctx, taskID, reply)

	task, updateErr := h.tasks.UpdateState(taskID, finalState, reason)
	if updateErr != nil {
		if h.logger != nil {
			h.logger.Error("failed to finalize task", zap.String("task_id", string(taskID)), zap.Error(updateErr))
		}
		return
	}
	h.recordTransition(ctx, a2a.TaskStateWorking, task.Status.State)

	if writer, ok := h.writers.Get(taskID); ok {
		writer.Publish(a2a.StreamingResult{
			Kind: a2a.StreamKindMessage,
			Message: &reply,
		})
		writer.Publish(a2a.StreamingResult{
			Kind: a2a.StreamKindTaskStatusUpdate,
			TaskStatusUpdate: &a2a.TaskStatusUpdateEvent{
				TaskId: taskID,
				Status: task.Status,
				Final:  true,
			},
		})
	}

	event := a2a.TaskEventCompleted
	if finalState == a2a.TaskStateFailed {
		event = a2a.TaskEventFailed
	}
	h.notifyTransition(ctx, task, event)
}

// recordTransition is a thin wrapper so call sites don't need a nil check.
func (h *DefaultHandler) recordTransition(ctx context.Context, from, to a2a.TaskState) {
	if h.telemetry != nil {
		h.telemetry.RecordTaskTransition(ctx, string(from), string(to))
	}
}

// offloadFileParts records each inline File part of a reply as a task
// artifact, offloading oversized payloads to blob storage first (C-supplement).
// It does nothing when no ArtifactBlobStore is attached: without one, reply
// File parts are not recorded as artifacts.
func (h *DefaultHandler) offloadFileParts(ctx context.Context, taskID a2a.TaskId, reply a2a.Message) {
	if h.blobs == nil {
		return
	}
	for _, part := range reply.Parts {
		if part.File == nil || part.File.Bytes == "" {
			continue
		}
		artifact := a2a.Artifact{
			Id:   a2a.NewArtifactId(),
			Type: "file",
			Name: part.File.Name,
			Data: part.File.Bytes,
		}
		offloaded, err := h.blobs.Offload(ctx, artifact)
		if err != nil {
			if h.logger != nil {
				h.logger.Warn("failed to offload artifact", zap.String("task_id", string(taskID)), zap.Error(err))
			}
			continue
		}
		if _, err := h.tasks.AddArtifact(taskID, offloaded); err != nil && h.logger != nil {
			h.logger.Warn("failed to attach artifact", zap.String("task_id", string(taskID)), zap.Error(err))
		}
	}
}

// notifyTransition enqueues a webhook delivery for every config whose
// events[] matches the given TaskEvent.
func (h *DefaultHandler) notifyTransition(ctx context.Context, task a2a.Task, event a2a.TaskEvent) {
	if h.webhooks == nil {
		return
	}
	config, ok := h.push.Get(task.Id)
	if !ok || !config.MatchesTransition(event) {
		return
	}

	payload := a2a.WebhookPayload{
		Event:     event,
		Task:      task,
		Timestamp: task.Status.Timestamp,
		AgentId:   h.profile.Id,
	}
	if err := h.webhooks.Enqueue(config, payload); err != nil && h.logger != nil {
		h.logger.Warn("failed to enqueue webhook delivery", zap.String("task_id", string(task.Id)), zap.Error(err))
	}
}

// TaskGet retrieves a task, TaskNotFound on miss.
func (h *DefaultHandler) TaskGet(ctx context.Context, req TaskIdParams) (a2a.Task, error) {
	return h.tasks.Get(req.TaskId)
}

// TaskStatus retrieves just a task's current status.
func (h *DefaultHandler) TaskStatus(ctx context.Context, req TaskIdParams) (a2a.TaskStatus, error) {
	return h.tasks.GetStatus(req.TaskId)
}

// TaskCancel cancels a task via the task store and, if a final status
// update must still reach a mid-stream subscriber, publishes it before the
// stream closes (see DESIGN.md for the resolved open question).
func (h *DefaultHandler) TaskCancel(ctx context.Context, req TaskCancelParams) (a2a.TaskStatus, error) {
	before, err := h.tasks.GetStatus(req.TaskId)
	if err != nil {
		return a2a.TaskStatus{}, err
	}

	task, err := h.tasks.Cancel(req.TaskId, req.Reason)
	if err != nil {
		return a2a.TaskStatus{}, err
	}
	h.recordTransition(ctx, before.State, task.Status.State)

	if writer, ok := h.writers.Get(req.TaskId); ok {
		writer.Publish(a2a.StreamingResult{
			Kind: a2a.StreamKindTaskStatusUpdate,
			TaskStatusUpdate: &a2a.TaskStatusUpdateEvent{
				TaskId: req.TaskId,
				Status: task.Status,
				Final:  true,
			},
		})
		h.writers.Remove(req.TaskId)
	}

	h.notifyTransition(ctx, task, a2a.TaskEventCancelled)
	return task.Status, nil
}

// MessageStream implements the message/stream contract: create a task,
// subscribe to its writer, publish an initial Task event, then run the
// task to completion, publishing at least one terminal TaskStatusUpdate.
func (h *DefaultHandler) MessageStream(ctx context.Context, message a2a.Message) (<-chan a2a.StreamingResult, error) {
	if !h.capabilities.Streaming {
		return nil, a2a.NewError(a2a.KindUnsupported, "streaming is not enabled on this handler", nil)
	}

	task := a2a.NewTask(message.ContextId)
	h.tasks.Store(task)
	task, err := h.tasks.UpdateState(task.Id, a2a.TaskStateWorking, "")
	if err != nil {
		return nil, err
	}

	writer := h.writers.GetOrCreate(task.Id)
	out, unsubscribe := writer.Subscribe()

	writer.Publish(a2a.StreamingResult{Kind: a2a.StreamKindTask, Task: &task})
	h.notifyTransition(ctx, task, a2a.TaskEventStatusChanged)

	go func() {
		h.runTask(context.Background(), task.Id, message)
		h.writers.Remove(task.Id)
		unsubscribe()
	}()

	return out, nil
}

// TaskResubscribe implements the resubscribe contract: attach to an
// active writer if one exists, draining the replay log from lastEventID
// first; otherwise publish a one-shot snapshot and close.
func (h *DefaultHandler) TaskResubscribe(ctx context.Context, req ResubscribeParams, lastEventID string) (<-chan a2a.StreamingResult, error) {
	if writer, ok := h.writers.Get(req.TaskId); ok {
		replayed := writer.EventsAfter(a2a.SseEventId(lastEventID))
		live, unsubscribe := writer.Subscribe()

		out := make(chan a2a.StreamingResult, len(replayed)+defaultSubscriberBuffer)
		for _, e := range replayed {
			out <- e
		}
		go func() {
			defer close(out)
			defer unsubscribe()
			for e := range live {
				out <- e
			}
		}()
		return out, nil
	}

	task, err := h.tasks.Get(req.TaskId)
	if err != nil {
		return nil, err
	}

	out := make(chan a2a.StreamingResult, 2)
	out <- a2a.StreamingResult{Kind: a2a.StreamKindTask, Task: &task}
	out <- a2a.StreamingResult{
		Kind: a2a.StreamKindTaskStatusUpdate,
		TaskStatusUpdate: &a2a.TaskStatusUpdateEvent{
			TaskId: task.Id,
			Status: task.Status,
			Final:  task.Status.State.IsTerminal(),
		},
	}
	close(out)
	return out, nil
}

// PushNotificationSet validates and upserts a webhook config.
func (h *DefaultHandler) PushNotificationSet(ctx context.Context, req PushNotificationSetParams) error {
	if !h.capabilities.PushNotifications {
		return a2a.PushNotificationsUnsupportedError()
	}
	return h.push.Set(req.TaskId, req.Config)
}

// PushNotificationGet returns the config for a task, if any.
func (h *DefaultHandler) PushNotificationGet(ctx context.Context, req TaskIdParams) (*a2a.PushNotificationConfig, error) {
	if !h.capabilities.PushNotifications {
		return nil, a2a.PushNotificationsUnsupportedError()
	}
	config, ok := h.push.Get(req.TaskId)
	if !ok {
		return nil, nil
	}
	return &config, nil
}

// PushNotificationList returns every stored {taskId, config} pair.
func (h *DefaultHandler) PushNotificationList(ctx context.Context) []TaskPushConfig {
	return h.push.List()
}

// PushNotificationDelete removes a task's webhook config.
func (h *DefaultHandler) PushNotificationDelete(ctx context.Context, req TaskIdParams) bool {
	return h.push.Delete(req.TaskId)
}

// BasicHandler implements only agent/card, message/send and health check.
// Unimplemented methods return the appropriate server error.
type BasicHandler struct {
	profile      a2a.AgentProfile
	capabilities a2a.TransportCapabilities
	url          string
	process      AgentProcessor
}

// NewBasicHandler builds a handler exposing only the minimal method set.
func NewBasicHandler(profile a2a.AgentProfile, url string, process AgentProcessor) *BasicHandler {
	return &BasicHandler{
		profile:      profile,
		capabilities: a2a.TransportCapabilities{ProtocolVersion: "json-rpc-2.0"},
		url:          url,
		process:      process,
	}
}

var _ Handler = (*BasicHandler)(nil)

func (h *BasicHandler) AgentCard(ctx context.Context, req AgentCardGetRequest) (a2a.AgentCard, error) {
	return a2a.BuildAgentCard(h.profile, h.url, h.capabilities), nil
}

func (h *BasicHandler) MessageSend(ctx context.Context, req MessageSendRequest) (a2a.SendResponse, error) {
	reply, err := h.process(ctx, req.Message)
	if err != nil {
		return a2a.SendResponse{}, a2a.NewError(a2a.KindInternal, err.Error(), nil)
	}
	return a2a.MessageResponse(reply), nil
}

func (h *BasicHandler) TaskGet(ctx context.Context, req TaskIdParams) (a2a.Task, error) {
	return a2a.Task{}, a2a.NewError(a2a.KindUnsupported, "this handler does not support task tracking", nil)
}

func (h *BasicHandler) TaskStatus(ctx context.Context, req TaskIdParams) (a2a.TaskStatus, error) {
	return a2a.TaskStatus{}, a2a.NewError(a2a.KindUnsupported, "this handler does not support task tracking", nil)
}

func (h *BasicHandler) TaskCancel(ctx context.Context, req TaskCancelParams) (a2a.TaskStatus, error) {
	return a2a.TaskStatus{}, a2a.NewError(a2a.KindUnsupported, "this handler does not support task tracking", nil)
}

func (h *BasicHandler) MessageStream(ctx context.Context, message a2a.Message) (<-chan a2a.StreamingResult, error) {
	return nil, a2a.NewError(a2a.KindUnsupported, "this handler does not support streaming", nil)
}

func (h *BasicHandler) TaskResubscribe(ctx context.Context, req ResubscribeParams, lastEventID string) (<-chan a2a.StreamingResult, error) {
	return nil, a2a.NewError(a2a.KindUnsupported, "this handler does not support streaming", nil)
}

func (h *BasicHandler) PushNotificationSet(ctx context.Context, req PushNotificationSetParams) error {
	return a2a.PushNotificationsUnsupportedError()
}

func (h *BasicHandler) PushNotificationGet(ctx context.Context, req TaskIdParams) (*a2a.PushNotificationConfig, error) {
	return nil, a2a.PushNotificationsUnsupportedError()
}

func (h *BasicHandler) PushNotificationList(ctx context.Context) []TaskPushConfig {
	return nil
}

func (h *BasicHandler) PushNotificationDelete(ctx context.Context, req TaskIdParams) bool {
	return false
}

// HealthCheck reports liveness; both handlers are always ready once built.
func (h *BasicHandler) HealthCheck(ctx context.Context) bool { return true }

// HealthCheck reports liveness for DefaultHandler.
func (h *DefaultHandler) HealthCheck(ctx context.Context) bool { return true }
