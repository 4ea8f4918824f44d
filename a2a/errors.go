package a2a

import "fmt"

// Kind is the cross-cutting error taxonomy: the handler and
// every component below it classify failures into one of these, and the
// RPC dispatcher (package rpc) maps each Kind to a JSON-RPC error code.
type Kind string

const (
	KindValidation                  Kind = "validation"
	KindProtocol                    Kind = "protocol"
	KindAuthentication              Kind = "authentication"
	KindNotFound                    Kind = "not_found"
	KindNotCancelable               Kind = "not_cancelable"
	KindUnsupported                 Kind = "unsupported"
	KindPushNotificationUnsupported Kind = "push_notification_unsupported"
	KindTransient                   Kind = "transient"
	KindInternal                    Kind = "internal"
)

// Error is the common error shape carried through the handler and RPC
// layers; Data holds structured context such as {"taskId": "..."}.
type Error struct {
	Kind    Kind
	Message string
	Data    map[string]interface{}
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds an Error of the given kind.
func NewError(kind Kind, message string, data map[string]interface{}) *Error {
	return &Error{Kind: kind, Message: message, Data: data}
}

// TaskNotFoundError reports a lookup miss in the task store.
func TaskNotFoundError(id TaskId) *Error {
	return NewError(KindNotFound, fmt.Sprintf("task not found: %s", id), map[string]interface{}{"taskId": string(id)})
}

// TaskNotCancelableError reports a cancel attempted on a terminal task.
func TaskNotCancelableError(id TaskId, state TaskState) *Error {
	return NewError(KindNotCancelable, fmt.Sprintf("task %s is not cancelable in state %s", id, state),
		map[string]interface{}{"taskId": string(id), "state": string(state)})
}

// UnsupportedOperationError reports a rejected state transition or
// disabled feature.
func UnsupportedOperationError(message string, data map[string]interface{}) *Error {
	return NewError(KindUnsupported, message, data)
}

// AgentNotFoundError reports a lookup miss in the agent manager / router.
func AgentNotFoundError(id AgentId) *Error {
	return NewError(KindNotFound, fmt.Sprintf("agent not found: %s", id), map[string]interface{}{"agentId": string(id)})
}

// PushNotificationsUnsupportedError reports that a handler does not
// implement the pushNotification/* method set.
func PushNotificationsUnsupportedError() *Error {
	return NewError(KindPushNotificationUnsupported, "push notifications are not supported by this handler", nil)
}

// ValidationError reports malformed input.
func ValidationError(message string) *Error {
	return NewError(KindValidation, message, nil)
}
