// Package router implements the Client Agent Routing Extension: a
// hop-limited loop that lets agents in a Team hand a conversation off to one
// another before a reply finally reaches the user.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/a2aruntime/a2a/a2a"
	"go.uber.org/zap"
)

// ExtensionURI is the fixed constant identifying the Client Agent Routing
// Extension in message metadata and in AgentSkill advertisements.
const ExtensionURI = "https://ranch.woi.dev/extensions/client-routing/v1"

// Recipient sentinels usable in AgentToRouter.Recipient.
const (
	RecipientUser   = "user"
	RecipientSender = "sender"
)

// ErrMaxHopsExceeded is returned when a flow exceeds its configured hop budget.
var ErrMaxHopsExceeded = errors.New("router: max hops exceeded")

// AgentCardRef is the trimmed peer description the router hands to an agent
// on each hop, per the Router→Agent extension data.
type AgentCardRef struct {
	Id                    string   `json:"id"`
	Name                  string   `json:"name"`
	Description           string   `json:"description,omitempty"`
	Capabilities          []string `json:"capabilities,omitempty"`
	SupportsClientRouting bool     `json:"supportsClientRouting"`
}

// RouterToAgent is the extension payload the router injects into an
// outgoing message, under message.Metadata[ExtensionURI].
type RouterToAgent struct {
	Sender     string         `json:"sender"`
	AgentCards []AgentCardRef `json:"agentCards"`
}

// AgentToRouter is the extension payload an agent may return in its reply,
// under reply.Metadata[ExtensionURI].
type AgentToRouter struct {
	Recipient string   `json:"recipient,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Handoffs  []string `json:"handoffs,omitempty"`
}

// AgentSource resolves agent ids to the capability set a hop needs: card
// metadata plus the ability to process a message. Team implements this over
// its manager; tests can supply a bare map-backed implementation.
type AgentSource interface {
	Get(id string) (a2a.Agent, bool)
}

// Router drives the hop-limited flow. It is confined to one
// in-flight conversation: a fresh Router is expected per call to Run.
type Router struct {
	DefaultAgentID string
	MaxHops        int

	agents     AgentSource
	logger     *zap.Logger
	peerLister func() []AgentCardRef

	senderStack     []string
	hopCount        int
	pendingHandoffs []string
}

// New constructs a Router bound to an agent source.
func New(agents AgentSource, defaultAgentID string, maxHops int, logger *zap.Logger) *Router {
	if maxHops <= 0 {
		maxHops = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		DefaultAgentID: defaultAgentID,
		MaxHops:        maxHops,
		agents:         agents,
		logger:         logger,
	}
}

// Run drives the eight-step hop loop until a User recipient is
// produced, returning the final message delivered to the user.
func (r *Router) Run(ctx context.Context, initial a2a.Message, initialSender string) (a2a.Message, error) {
	message := initial
	sender := initialSender

	for {
		reply, recipient, invokedID, err := r.hop(ctx, message, sender)
		if err != nil {
			return a2a.Message{}, err
		}
		message = reply
		if recipient == RecipientUser {
			return message, nil
		}
		// The next hop's sender is the agent this hop actually invoked, not
		// the target that agent decided to hand off to.
		sender = invokedID
	}
}

// hop executes exactly one iteration of the per-hop algorithm, step by step
// below. It returns the reply, the next recipient, and the id of the agent
// this hop invoked (so Run can thread it forward as the next sender).
func (r *Router) hop(ctx context.Context, message a2a.Message, sender string) (a2a.Message, string, string, error) {
	// 1. hop budget
	if r.hopCount >= r.MaxHops {
		return a2a.Message{}, "", "", fmt.Errorf("%w: reached %d hops", ErrMaxHopsExceeded, r.MaxHops)
	}

	// 2. advance the hop counter and push the current sender
	r.hopCount++
	r.senderStack = append(r.senderStack, sender)

	// 3. resolve the recipient named by the incoming message
	recipientID := r.defaultOrDecision(message)
	if recipientID == RecipientUser {
		r.popSender()
		return message, RecipientUser, "", nil
	}

	// 4. look up the target and inject extension data if it can route
	target, ok := r.agents.Get(recipientID)
	if !ok {
		return a2a.Message{}, "", "", fmt.Errorf("router: unknown agent %q", recipientID)
	}

	info, err := target.Info(ctx)
	if err != nil {
		return a2a.Message{}, "", "", fmt.Errorf("router: agent info for %q: %w", recipientID, err)
	}

	targetSupportsRouting := supportsExtension(info)
	if targetSupportsRouting {
		message = r.injectExtensionData(message, sender, info)
	}
	r.pendingHandoffs = nil

	// 5. invoke the agent
	reply, err := target.Process(ctx, message)
	if err != nil {
		return a2a.Message{}, "", "", fmt.Errorf("router: agent %q process: %w", recipientID, err)
	}

	// 6. extract a routing decision, remembering any handoffs for the next hop
	decision, hasDecision := extractDecision(reply)
	if hasDecision && len(decision.Handoffs) > 0 {
		r.pendingHandoffs = decision.Handoffs
	}

	// 7. a target without the extension and no decision can only reply to the user
	if !targetSupportsRouting && !hasDecision {
		r.logger.Debug("router: basic agent, returning reply to user", zap.String("agent", recipientID))
		return reply, RecipientUser, "", nil
	}

	// 8. resolve the next recipient: "sender" means back to whoever invoked
	// the agent we just called, i.e. the top of the stack pushed in step 2.
	next := r.resolveDecision(decision, hasDecision, r.peekCurrentSender)
	r.logger.Debug("router: hop completed", zap.String("from", recipientID), zap.String("next", next), zap.Int("hop", r.hopCount))
	return reply, next, recipientID, nil
}

// defaultOrDecision inspects the AgentToRouter payload a message may carry
// to decide the target of this hop; absence falls back to defaultAgentId.
// "sender" here means the frame above the one just pushed in step 2: the
// agent that invoked whoever made this decision.
func (r *Router) defaultOrDecision(message a2a.Message) string {
	decision, ok := extractDecision(message)
	return r.resolveDecision(decision, ok, r.peekAboveFrame)
}

// resolveDecision turns an (optional) routing decision into a concrete
// recipient, deferring to peekSender to resolve the "sender" sentinel since
// step 3 and step 8 peek the stack at different depths.
func (r *Router) resolveDecision(decision AgentToRouter, hasDecision bool, peekSender func() string) string {
	if !hasDecision || decision.Recipient == "" {
		return r.DefaultAgentID
	}
	switch decision.Recipient {
	case RecipientUser:
		return RecipientUser
	case RecipientSender:
		return peekSender()
	default:
		return decision.Recipient
	}
}

// injectExtensionData stamps Router→Agent data into the message metadata,
// filtering agentCards by pendingHandoffs when present.
func (r *Router) injectExtensionData(message a2a.Message, sender string, _ a2a.AgentCard) a2a.Message {
	cards := r.agentCards()
	if len(r.pendingHandoffs) > 0 {
		cards = filterCards(cards, r.pendingHandoffs)
	}
	return message.WithExtensionValue(ExtensionURI, RouterToAgent{Sender: sender, AgentCards: cards})
}

// agentCards is a placeholder hook Team overrides via WithPeerLister; a bare
// Router with no peer lister advertises no peers.
func (r *Router) agentCards() []AgentCardRef {
	if r.peerLister == nil {
		return nil
	}
	return r.peerLister()
}

func (r *Router) popSender() string {
	if len(r.senderStack) == 0 {
		return ""
	}
	last := r.senderStack[len(r.senderStack)-1]
	r.senderStack = r.senderStack[:len(r.senderStack)-1]
	return last
}

// peekCurrentSender returns the sender of the hop in progress: the top of
// the stack, pushed by this hop's own step 2.
func (r *Router) peekCurrentSender() string {
	if len(r.senderStack) == 0 {
		return ""
	}
	return r.senderStack[len(r.senderStack)-1]
}

// peekAboveFrame returns the sender one frame above the hop in progress:
// whoever invoked the agent that made the decision being read.
func (r *Router) peekAboveFrame() string {
	if len(r.senderStack) < 2 {
		return ""
	}
	return r.senderStack[len(r.senderStack)-2]
}

// WithPeerLister attaches the function used to populate Router→Agent
// extension data's agentCards field. Returns the Router for chaining.
func (r *Router) WithPeerLister(lister func() []AgentCardRef) *Router {
	r.peerLister = lister
	return r
}

func supportsExtension(card a2a.AgentCard) bool {
	for _, skill := range card.Skills {
		if skill.SupportsClientRouting {
			return true
		}
	}
	return false
}

func extractDecision(message a2a.Message) (AgentToRouter, bool) {
	var decision AgentToRouter
	found, err := message.ExtensionValue(ExtensionURI, &decision)
	if err != nil || !found {
		return AgentToRouter{}, false
	}
	return decision, true
}

func filterCards(cards []AgentCardRef, ids []string) []AgentCardRef {
	allow := make(map[string]bool, len(ids))
	for _, id := range ids {
		allow[id] = true
	}
	filtered := make([]AgentCardRef, 0, len(cards))
	for _, c := range cards {
		if allow[c.Id] {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
