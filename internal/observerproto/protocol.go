// Package observerproto defines the loopback researcher feed protocol. It is
// versioned separately from the participant WS protocol because observers see
// the unfiltered event stream.
package observerproto

import (
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/engine"
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
)

const Version = "0.1"

// Client -> Server. First message on the observer WS connection; can be
// re-sent to change the crew filter.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// CrewID filters the feed to one crew; empty means all crews.
	CrewID string `json:"crew_id,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string     `json:"protocol_version"`
	SessionID       string     `json:"session_id"`
	Crews           []CrewInfo `json:"crews"`
}

type CrewInfo struct {
	CrewID      string `json:"crew_id"`
	Pressure    string `json:"pressure"`
	Complexity  string `json:"complexity"`
	CaptainType string `json:"captain_type"`
	Round       int    `json:"round"`
	Stage       string `json:"stage"`
	Minerals    int    `json:"minerals"`
}

// Server -> Client. One event from a crew's feed; exactly one payload field
// is set.
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CrewID          string `json:"crew_id"`

	Round  *protocol.RoundResultMsg `json:"round,omitempty"`
	Chat   *protocol.ChatMsg        `json:"chat,omitempty"`
	System *engine.SystemEvent      `json:"system,omitempty"`
}
