package team

import (
	"context"
	"sort"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"

	"github.com/a2aruntime/a2a/a2a"
	"github.com/a2aruntime/a2a/router"
)

// eventBufferSize bounds the lifecycle broadcast channel; per the no
// unbounded collections on hot paths" resource cap.
const eventBufferSize = 64

// Team is an Agent composed from a manager of member agents and a router.
// Processing a message drives the router's hop loop across the team's own
// members until a User recipient is produced.
type Team struct {
	id             string
	name           string
	description    string
	defaultAgentID string
	maxHops        int

	manager *Manager
	logger  *zap.Logger
	events  chan cloudevents.Event
}

var _ a2a.Agent = (*Team)(nil)

// NewTeam constructs a Team. defaultAgentID is the router's fallback target
// when a message carries no routing decision; maxHops bounds the hop loop,
// and a value <= 0 is treated as unset (the router then uses 10).
func NewTeam(id, name, defaultAgentID string, maxHops int, logger *zap.Logger) *Team {
	if logger == nil {
		logger = zap.NewNop()
	}
	manager := NewManager()
	manager.ownerTeamID = id
	return &Team{
		id:             id,
		name:           name,
		defaultAgentID: defaultAgentID,
		maxHops:        maxHops,
		manager:        manager,
		logger:         logger,
		events:         make(chan cloudevents.Event, eventBufferSize),
	}
}

// WithDescription sets the description surfaced on the team's AgentCard.
func (t *Team) WithDescription(description string) *Team {
	t.description = description
	return t
}

// Manager returns the team's member registry.
func (t *Team) Manager() *Manager {
	return t.manager
}

// Events returns the team's lifecycle event stream. Subscribers must drain
// it promptly; a full buffer drops events rather than blocking emit.
func (t *Team) Events() <-chan cloudevents.Event {
	return t.events
}

// Register adds a member agent to the team, emitting EventAgentRegistered.
func (t *Team) Register(id string, agent a2a.Agent) error {
	if err := t.manager.Register(id, agent); err != nil {
		return err
	}
	t.logger.Info("team: agent registered", zap.String("team", t.id), zap.String("agent", id))
	if event, err := newLifecycleEvent(EventAgentRegistered, t.id, map[string]any{"agentId": id}); err == nil {
		t.emit(event)
	}
	return nil
}

// Remove deletes a member agent, emitting EventAgentRemoved if it was present.
func (t *Team) Remove(id string) bool {
	removed := t.manager.Remove(id)
	if removed {
		t.logger.Info("team: agent removed", zap.String("team", t.id), zap.String("agent", id))
		if event, err := newLifecycleEvent(EventAgentRemoved, t.id, map[string]any{"agentId": id}); err == nil {
			t.emit(event)
		}
	}
	return removed
}

// Info aggregates member skills into a single AgentCard, stamping the
// {type, router_default_agent, member_count} metadata.
func (t *Team) Info(ctx context.Context) (a2a.AgentCard, error) {
	cards, err := t.manager.ListInfo(ctx)
	if err != nil {
		return a2a.AgentCard{}, err
	}

	skillByID := make(map[string]a2a.AgentSkill)
	for _, card := range cards {
		for _, skill := range card.Skills {
			skillByID[skill.Id] = skill
		}
	}
	ids := make([]string, 0, len(skillByID))
	for id := range skillByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	skills := make([]a2a.AgentSkill, 0, len(ids))
	for _, id := range ids {
		skills = append(skills, skillByID[id])
	}

	profile := a2a.AgentProfile{
		Id:          a2a.AgentId(t.id),
		Name:        t.name,
		Description: t.description,
		Skills:      skills,
	}
	card := a2a.BuildAgentCard(profile, "", a2a.TransportCapabilities{})
	card.Metadata = map[string]interface{}{
		"type":                 "team",
		"router_default_agent": t.defaultAgentID,
		"member_count":         t.manager.Count(),
	}
	return card, nil
}

// Process drives the router loop across the team's members, starting
// with the user as the initial sender, until a reply destined for the user
// is produced.
func (t *Team) Process(ctx context.Context, message a2a.Message) (a2a.Message, error) {
	r := router.New(t.manager, t.defaultAgentID, t.maxHops, t.logger)
	r.WithPeerLister(func() []router.AgentCardRef {
		return t.peerCards(ctx)
	})
	return r.Run(ctx, message, router.RecipientUser)
}

// HealthCheck reports true iff at least one member is healthy, emitting a
// summary EventHealthChecked.
func (t *Team) HealthCheck(ctx context.Context) bool {
	results := t.manager.HealthCheckAll(ctx)

	healthyCount := 0
	for _, healthy := range results {
		if healthy {
			healthyCount++
		}
	}
	if event, err := newLifecycleEvent(EventHealthChecked, t.id, map[string]any{
		"memberCount":  len(results),
		"healthyCount": healthyCount,
	}); err == nil {
		t.emit(event)
	}

	return healthyCount > 0
}

func (t *Team) peerCards(ctx context.Context) []router.AgentCardRef {
	cards, err := t.manager.ListInfo(ctx)
	if err != nil {
		t.logger.Warn("team: failed to list member info for routing", zap.Error(err))
		return nil
	}

	refs := make([]router.AgentCardRef, 0, len(cards))
	for _, card := range cards {
		tags := make([]string, 0, len(card.Skills))
		for _, skill := range card.Skills {
			tags = append(tags, skill.Id)
		}
		refs = append(refs, router.AgentCardRef{
			Id:                    card.Id.String(),
			Name:                  card.Name,
			Description:           card.Description,
			Capabilities:          tags,
			SupportsClientRouting: supportsRouting(card),
		})
	}
	return refs
}

func supportsRouting(card a2a.AgentCard) bool {
	for _, skill := range card.Skills {
		if skill.SupportsClientRouting {
			return true
		}
	}
	return false
}
