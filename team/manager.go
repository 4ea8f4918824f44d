// Package team implements the in-memory agent registry and the Team
// composite agent: a Team wraps a manager and a router.Router so a
// group of agents can be addressed as a single a2a.Agent.
package team

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/a2aruntime/a2a/a2a"
	"github.com/a2aruntime/a2a/router"
)

// ErrAgentNotFound is returned when an operation names an id the manager
// does not hold.
var ErrAgentNotFound = errors.New("team: agent not found")

// ErrAgentExists is returned by Register when the id is already taken.
var ErrAgentExists = errors.New("team: agent already registered")

// ErrCyclicTeam is returned when registering a Team would create a cycle of
// team membership.
var ErrCyclicTeam = errors.New("team: nested team would create a membership cycle")

// Manager is an in-memory registry of agents keyed by id. All operations are
// safe for concurrent use; list_info and find_by_capability snapshot the
// registry before calling each agent's Info so the lock is never held
// across an agent call.
type Manager struct {
	mu          sync.RWMutex
	agents      map[string]a2a.Agent
	ownerTeamID string // set by a Team that owns this manager, used for cycle detection
}

var _ router.AgentSource = (*Manager)(nil)

// NewManager returns an empty registry.
func NewManager() *Manager {
	return &Manager{agents: make(map[string]a2a.Agent)}
}

// Register adds an agent under id. Registering a *Team checks for a
// membership cycle first (track_team_nesting).
func (m *Manager) Register(id string, agent a2a.Agent) error {
	if id == "" {
		return fmt.Errorf("team: agent id must not be empty")
	}

	if sub, ok := agent.(*Team); ok && m.ownerTeamID != "" {
		if err := trackTeamNesting(m.ownerTeamID, sub); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.agents[id]; exists {
		return fmt.Errorf("%w: %q", ErrAgentExists, id)
	}
	m.agents[id] = agent
	return nil
}

// Get resolves an id to its agent. Satisfies router.AgentSource.
func (m *Manager) Get(id string) (a2a.Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agent, ok := m.agents[id]
	return agent, ok
}

// Remove deletes an agent, reporting whether it was present.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[id]; !ok {
		return false
	}
	delete(m.agents, id)
	return true
}

// ListIDs returns every registered id in lexical order.
func (m *Manager) ListIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.agents))
	for id := range m.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// snapshot copies the registry under lock so callers can make async calls
// against the returned agents without holding m.mu.
func (m *Manager) snapshot() map[string]a2a.Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cloned := make(map[string]a2a.Agent, len(m.agents))
	for id, agent := range m.agents {
		cloned[id] = agent
	}
	return cloned
}

// ListInfo fetches every member's AgentCard, in id order.
func (m *Manager) ListInfo(ctx context.Context) ([]a2a.AgentCard, error) {
	snap := m.snapshot()
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	cards := make([]a2a.AgentCard, 0, len(snap))
	for _, id := range ids {
		card, err := snap[id].Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("team: info for %q: %w", id, err)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// FindByCapability returns the cards of members advertising a skill whose id
// or tags match capability.
func (m *Manager) FindByCapability(ctx context.Context, capability string) ([]a2a.AgentCard, error) {
	snap := m.snapshot()
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	matches := make([]a2a.AgentCard, 0)
	for _, id := range ids {
		card, err := snap[id].Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("team: info for %q: %w", id, err)
		}
		if hasCapability(card, capability) {
			matches = append(matches, card)
		}
	}
	return matches, nil
}

func hasCapability(card a2a.AgentCard, capability string) bool {
	for _, skill := range card.Skills {
		if skill.Id == capability {
			return true
		}
		for _, tag := range skill.Tags {
			if tag == capability {
				return true
			}
		}
	}
	return false
}

// HealthCheckAll runs HealthCheck against every member concurrently,
// returning a per-id result map.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]bool {
	snap := m.snapshot()
	results := make(map[string]bool, len(snap))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for id, agent := range snap {
		wg.Add(1)
		go func(id string, agent a2a.Agent) {
			defer wg.Done()
			healthy := agent.HealthCheck(ctx)
			mu.Lock()
			results[id] = healthy
			mu.Unlock()
		}(id, agent)
	}
	wg.Wait()
	return results
}

// Count returns the number of registered agents.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.agents)
}

// Clear removes every registered agent.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents = make(map[string]a2a.Agent)
}

// trackTeamNesting walks candidate's membership graph looking for ownerID,
// failing if found (a direct or transitive cycle) or if candidate is the
// owner itself.
func trackTeamNesting(ownerID string, candidate *Team) error {
	visited := make(map[string]bool)

	var walk func(t *Team) error
	walk = func(t *Team) error {
		if t.id == ownerID {
			return fmt.Errorf("%w: %q already contains %q", ErrCyclicTeam, t.id, ownerID)
		}
		if visited[t.id] {
			return nil
		}
		visited[t.id] = true

		for _, id := range t.manager.ListIDs() {
			agent, ok := t.manager.Get(id)
			if !ok {
				continue
			}
			if sub, isTeam := agent.(*Team); isTeam {
				if err := walk(sub); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(candidate)
}
