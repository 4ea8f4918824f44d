package team

import (
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	uuid "github.com/google/uuid"
	zap "go.uber.org/zap"
)

// Lifecycle event types emitted on a Team's broadcast channel, scoped to
// agent-manager lifecycle rather than task state.
const (
	EventAgentRegistered = "dev.a2aruntime.team.agent_registered"
	EventAgentRemoved    = "dev.a2aruntime.team.agent_removed"
	EventHealthChecked   = "dev.a2aruntime.team.health_checked"
)

func newLifecycleEvent(eventType, teamID string, data any) (cloudevents.Event, error) {
	event := cloudevents.NewEvent()
	event.SetID(uuid.New().String())
	event.SetType(eventType)
	event.SetSource("team/" + teamID)
	event.SetTime(time.Now())

	if data != nil {
		if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
			return cloudevents.Event{}, err
		}
	}
	return event, nil
}

// emit is a non-blocking send: a full buffer drops the event rather than
// stalling the caller.
func (t *Team) emit(event cloudevents.Event) {
	select {
	case t.events <- event:
	default:
		t.logger.Warn("team: lifecycle event dropped, buffer full", zap.String("type", event.Type()))
	}
}
