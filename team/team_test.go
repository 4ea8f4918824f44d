package team_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/a2aruntime/a2a/a2a"
	"github.com/a2aruntime/a2a/team"
)

type fakeAgent struct {
	card      a2a.AgentCard
	process   func(ctx context.Context, message a2a.Message) (a2a.Message, error)
	healthy   bool
	infoCalls int
}

func (f *fakeAgent) Info(ctx context.Context) (a2a.AgentCard, error) {
	f.infoCalls++
	return f.card, nil
}

func (f *fakeAgent) Process(ctx context.Context, message a2a.Message) (a2a.Message, error) {
	if f.process == nil {
		return message, nil
	}
	return f.process(ctx, message)
}

func (f *fakeAgent) HealthCheck(ctx context.Context) bool {
	return f.healthy
}

func basicMember(id, skillID string, healthy bool) *fakeAgent {
	return &fakeAgent{
		card: a2a.AgentCard{
			Id:   a2a.AgentId(id),
			Name: id,
			Skills: []a2a.AgentSkill{
				{Id: skillID, Tags: []string{"demo"}},
			},
		},
		healthy: healthy,
		process: func(ctx context.Context, message a2a.Message) (a2a.Message, error) {
			return a2a.NewMessage(a2a.RoleAgent, []a2a.Part{a2a.CreateTextPart(id+" reply", nil)}), nil
		},
	}
}

func textMessage(text string) a2a.Message {
	return a2a.NewMessage(a2a.RoleUser, []a2a.Part{a2a.CreateTextPart(text, nil)})
}

func TestManager_RegisterGetRemove(t *testing.T) {
	m := team.NewManager()
	agent := basicMember("worker", "do-work", true)

	require.NoError(t, m.Register("worker", agent))

	got, ok := m.Get("worker")
	require.True(t, ok)
	assert.Same(t, agent, got)

	assert.True(t, m.Remove("worker"))
	assert.False(t, m.Remove("worker"))

	_, ok = m.Get("worker")
	assert.False(t, ok)
}

func TestManager_DuplicateRegisterFails(t *testing.T) {
	m := team.NewManager()
	require.NoError(t, m.Register("worker", basicMember("worker", "do-work", true)))

	err := m.Register("worker", basicMember("worker", "do-work", true))
	assert.ErrorIs(t, err, team.ErrAgentExists)
}

func TestManager_ListIDsAndCount(t *testing.T) {
	m := team.NewManager()
	require.NoError(t, m.Register("b", basicMember("b", "skill-b", true)))
	require.NoError(t, m.Register("a", basicMember("a", "skill-a", true)))

	assert.Equal(t, []string{"a", "b"}, m.ListIDs())
	assert.Equal(t, 2, m.Count())

	m.Clear()
	assert.Equal(t, 0, m.Count())
	assert.Empty(t, m.ListIDs())
}

func TestManager_ListInfo(t *testing.T) {
	m := team.NewManager()
	require.NoError(t, m.Register("a", basicMember("a", "skill-a", true)))
	require.NoError(t, m.Register("b", basicMember("b", "skill-b", true)))

	cards, err := m.ListInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, a2a.AgentId("a"), cards[0].Id)
	assert.Equal(t, a2a.AgentId("b"), cards[1].Id)
}

func TestManager_FindByCapability(t *testing.T) {
	m := team.NewManager()
	require.NoError(t, m.Register("a", basicMember("a", "billing", true)))
	require.NoError(t, m.Register("b", basicMember("b", "shipping", true)))

	matches, err := m.FindByCapability(context.Background(), "billing")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, a2a.AgentId("a"), matches[0].Id)

	byTag, err := m.FindByCapability(context.Background(), "demo")
	require.NoError(t, err)
	assert.Len(t, byTag, 2)

	none, err := m.FindByCapability(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestManager_HealthCheckAll(t *testing.T) {
	m := team.NewManager()
	require.NoError(t, m.Register("healthy", basicMember("healthy", "skill", true)))
	require.NoError(t, m.Register("sick", basicMember("sick", "skill", false)))

	results := m.HealthCheckAll(context.Background())
	assert.True(t, results["healthy"])
	assert.False(t, results["sick"])
}

func TestTeam_InfoAggregatesSkillsAndMetadata(t *testing.T) {
	tm := team.NewTeam("support-team", "Support Team", "triage", 5, zap.NewNop())
	require.NoError(t, tm.Register("triage", basicMember("triage", "triage", true)))
	require.NoError(t, tm.Register("billing", basicMember("billing", "billing", true)))

	card, err := tm.Info(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a2a.AgentId("support-team"), card.Id)
	require.Len(t, card.Skills, 2)
	assert.Equal(t, "team", card.Metadata["type"])
	assert.Equal(t, "triage", card.Metadata["router_default_agent"])
	assert.Equal(t, 2, card.Metadata["member_count"])
}

func TestTeam_ProcessRoutesToMemberAndBack(t *testing.T) {
	tm := team.NewTeam("support-team", "Support Team", "triage", 5, zap.NewNop())
	require.NoError(t, tm.Register("triage", basicMember("triage", "triage", true)))

	reply, err := tm.Process(context.Background(), textMessage("help me"))
	require.NoError(t, err)
	require.NotNil(t, reply.Parts[0].Text)
	assert.Equal(t, "triage reply", reply.Parts[0].Text.Text)
}

func TestTeam_HealthCheck_TrueIfAnyMemberHealthy(t *testing.T) {
	tm := team.NewTeam("support-team", "Support Team", "triage", 5, zap.NewNop())
	require.NoError(t, tm.Register("sick", basicMember("sick", "skill", false)))
	assert.False(t, tm.HealthCheck(context.Background()))

	require.NoError(t, tm.Register("healthy", basicMember("healthy", "skill", true)))
	assert.True(t, tm.HealthCheck(context.Background()))
}

func TestTeam_EventsEmittedOnRegisterAndRemove(t *testing.T) {
	tm := team.NewTeam("support-team", "Support Team", "triage", 5, zap.NewNop())
	require.NoError(t, tm.Register("triage", basicMember("triage", "triage", true)))

	event := <-tm.Events()
	assert.Equal(t, team.EventAgentRegistered, event.Type())

	tm.Remove("triage")
	event = <-tm.Events()
	assert.Equal(t, team.EventAgentRemoved, event.Type())
}

func TestTeam_CycleDetectionRejectsNestedSelfReference(t *testing.T) {
	outer := team.NewTeam("outer", "Outer", "default", 5, zap.NewNop())
	inner := team.NewTeam("inner", "Inner", "default", 5, zap.NewNop())

	require.NoError(t, outer.Register("inner", inner))

	err := inner.Register("outer", outer)
	assert.ErrorIs(t, err, team.ErrCyclicTeam)
}
