package a2a

// AgentCapability names an optional behavior an agent may advertise.
type AgentCapability string

const (
	CapabilityStreaming         AgentCapability = "streaming"
	CapabilityPushNotifications AgentCapability = "push-notifications"
	CapabilityStateHistory      AgentCapability = "state-transition-history"
)

// AgentSkill describes one capability offered by an agent, including
// whether it participates in the Client Agent Routing Extension.
type AgentSkill struct {
	Id                    string   `json:"id"`
	Name                  string   `json:"name"`
	Description           string   `json:"description,omitempty"`
	Tags                  []string `json:"tags,omitempty"`
	Examples              []string `json:"examples,omitempty"`
	SupportsClientRouting bool     `json:"supportsClientRouting,omitempty"`
}

// RateLimits describes request throttling advertised by an agent.
type RateLimits struct {
	RequestsPerMinute int `json:"requestsPerMinute,omitempty"`
	BurstSize         int `json:"burstSize,omitempty"`
}

// AuthenticationRequirement describes how a caller must authenticate.
type AuthenticationRequirement struct {
	Schemes []string `json:"schemes,omitempty"`
}

// AgentProfile is the server-side, agent-authored description of an agent,
// before the handler merges in transport capabilities to publish a card.
type AgentProfile struct {
	Id          AgentId      `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Version     string       `json:"version,omitempty"`
	Skills      []AgentSkill `json:"skills,omitempty"`
}

// TransportCapabilities is the transport-level capability set the handler
// merges into a published AgentCard; these are not agent-authored.
type TransportCapabilities struct {
	Streaming         bool        `json:"streaming"`
	PushNotifications bool        `json:"pushNotifications"`
	Authentication    *AuthenticationRequirement `json:"authentication,omitempty"`
	RateLimits        *RateLimits `json:"rateLimits,omitempty"`
	ProtocolVersion   string      `json:"protocolVersion"`
}

// AgentCard is the published, public metadata for an agent.
type AgentCard struct {
	Id             AgentId                    `json:"id"`
	Name           string                     `json:"name"`
	Description    string                     `json:"description,omitempty"`
	Version        string                     `json:"version,omitempty"`
	URL            string                     `json:"url"`
	Protocols      []string                   `json:"protocols,omitempty"`
	Capabilities   []AgentCapability          `json:"capabilities,omitempty"`
	Skills         []AgentSkill               `json:"skills,omitempty"`
	Authentication *AuthenticationRequirement `json:"authentication,omitempty"`
	RateLimits     *RateLimits                `json:"rateLimits,omitempty"`
	Metadata       map[string]interface{}     `json:"metadata,omitempty"`
}

// BuildAgentCard merges an agent-authored profile with the server's
// transport capabilities to produce the card published at agent/card.
func BuildAgentCard(profile AgentProfile, url string, caps TransportCapabilities) AgentCard {
	var capabilities []AgentCapability
	if caps.Streaming {
		capabilities = append(capabilities, CapabilityStreaming)
	}
	if caps.PushNotifications {
		capabilities = append(capabilities, CapabilityPushNotifications)
	}

	protocols := []string{"json-rpc-2.0"}
	if caps.ProtocolVersion != "" {
		protocols = []string{caps.ProtocolVersion}
	}

	return AgentCard{
		Id:             profile.Id,
		Name:           profile.Name,
		Description:    profile.Description,
		Version:        profile.Version,
		URL:            url,
		Protocols:      protocols,
		Capabilities:   capabilities,
		Skills:         profile.Skills,
		Authentication: caps.Authentication,
		RateLimits:     caps.RateLimits,
	}
}
