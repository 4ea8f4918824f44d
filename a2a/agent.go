package a2a

import "context"

// Agent is the minimal capability set any participant in a router flow or
// team must expose, covering the "dynamic dispatch -> capability set"
// design note. Implementations may be local code or a thin wrapper over a
// remote client.
type Agent interface {
	Info(ctx context.Context) (AgentCard, error)
	Process(ctx context.Context, message Message) (Message, error)
	HealthCheck(ctx context.Context) bool
}

// Transport is the capability set a remote agent is reached through.
// Implementations may be method tables, interfaces, or closures; this is
// the only portable surface.
type Transport interface {
	SendMessage(ctx context.Context, message Message, immediate bool) (SendResponse, error)
	GetAgentCard(ctx context.Context) (AgentCard, error)
	GetTask(ctx context.Context, id TaskId) (Task, error)
	GetTaskStatus(ctx context.Context, id TaskId) (TaskStatus, error)
	CancelTask(ctx context.Context, id TaskId, reason string) (TaskStatus, error)
	IsAvailable(ctx context.Context) bool
}

// StreamingTransport extends Transport with the streaming operations; not
// every transport supports them.
type StreamingTransport interface {
	Transport
	SendStreamingMessage(ctx context.Context, message Message) (<-chan StreamingResult, error)
	ResubscribeTask(ctx context.Context, id TaskId, lastEventID string) (<-chan StreamingResult, error)
}
