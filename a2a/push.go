package a2a

import (
	"encoding/json"
	"fmt"
)

// TaskEvent is the set of transitions a push-notification config may
// subscribe to.
type TaskEvent string

const (
	TaskEventStatusChanged TaskEvent = "statusChanged"
	TaskEventArtifactAdded TaskEvent = "artifactAdded"
	TaskEventCompleted     TaskEvent = "completed"
	TaskEventFailed        TaskEvent = "failed"
	TaskEventCancelled     TaskEvent = "cancelled"
)

// PushAuth is the untagged auth variant carried by a PushNotificationConfig:
// either Bearer{token} or CustomHeaders{map}.
type PushAuth struct {
	Bearer        *BearerAuth        `json:"-"`
	CustomHeaders *CustomHeadersAuth `json:"-"`
}

// BearerAuth authenticates webhook deliveries with a static bearer token.
type BearerAuth struct {
	Token string `json:"token"`
}

// CustomHeadersAuth authenticates webhook deliveries with arbitrary
// request headers, applied as-is.
type CustomHeadersAuth struct {
	Headers map[string]string `json:"headers"`
}

type pushAuthWire struct {
	Token   string            `json:"token,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// MarshalJSON flattens whichever auth variant is set.
func (a PushAuth) MarshalJSON() ([]byte, error) {
	var w pushAuthWire
	switch {
	case a.Bearer != nil:
		w.Token = a.Bearer.Token
	case a.CustomHeaders != nil:
		w.Headers = a.CustomHeaders.Headers
	}
	return json.Marshal(w)
}

// UnmarshalJSON infers the variant: "token" implies Bearer, "headers"
// implies CustomHeaders.
func (a *PushAuth) UnmarshalJSON(raw []byte) error {
	var w pushAuthWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return err
	}
	switch {
	case w.Token != "":
		a.Bearer = &BearerAuth{Token: w.Token}
	case w.Headers != nil:
		a.CustomHeaders = &CustomHeadersAuth{Headers: w.Headers}
	default:
		return fmt.Errorf("push auth has neither token nor headers")
	}
	return nil
}

// PushNotificationConfig is the per-task webhook subscription set via
// pushNotification/set.
type PushNotificationConfig struct {
	URL    string      `json:"url"`
	Events []TaskEvent `json:"events"`
	Auth   *PushAuth   `json:"auth,omitempty"`
}

// MatchesTransition reports whether this config's subscribed events
// include the given TaskEvent, per the "enqueue per matching
// config" side effect.
func (c PushNotificationConfig) MatchesTransition(event TaskEvent) bool {
	for _, e := range c.Events {
		if e == event {
			return true
		}
	}
	return false
}

// WebhookPayload is the JSON body POSTed to a subscriber.
type WebhookPayload struct {
	Event     TaskEvent `json:"event"`
	Task      Task      `json:"task"`
	Timestamp string    `json:"timestamp"`
	AgentId   AgentId   `json:"agentId"`
}
