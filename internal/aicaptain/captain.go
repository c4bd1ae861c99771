// Package aicaptain implements the scripted captain used in llm-captain
// sessions. It never submits actions; it only posts briefing guidance to the
// navigator and driller, built from the same role-filtered view a human
// captain would see.
package aicaptain

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
)

const (
	// MaxMessageLen bounds a single guidance line.
	MaxMessageLen = 300
	// RateLimit is the minimum gap between coordination bursts.
	RateLimit = 5 * time.Second

	highValueThreshold = 100
)

type Captain struct {
	crewID string
	rng    *rand.Rand

	lastBurst time.Time
	now       func() time.Time
}

func New(crewID string, seed int64) *Captain {
	return &Captain{
		crewID: crewID,
		rng:    rand.New(rand.NewSource(seed)),
		now:    time.Now,
	}
}

// analysis is the captain's read of the visible board.
type analysis struct {
	unexplored []string
	highValue  []string
}

func analyze(state protocol.StateMsg) analysis {
	var a analysis
	for _, ast := range state.Asteroids {
		if ast.Mined {
			continue
		}
		if ast.MaxMinerals == nil {
			a.unexplored = append(a.unexplored, ast.Name)
			continue
		}
		if *ast.MaxMinerals > highValueThreshold {
			a.highValue = append(a.highValue, ast.Name)
		}
	}
	return a
}

// Coordinate produces the briefing messages for one burst, one per advised
// role. It returns nil outside the briefing stage or while rate limited.
func (c *Captain) Coordinate(state protocol.StateMsg) []protocol.ChatMsg {
	if state.Stage != protocol.StageBriefing {
		return nil
	}
	if !c.lastBurst.IsZero() && c.now().Sub(c.lastBurst) < RateLimit {
		return nil
	}
	c.lastBurst = c.now()

	a := analyze(state)
	msgs := []protocol.ChatMsg{
		c.chat(state, protocol.RoleNavigator, c.navigatorGuidance(state, a)),
		c.chat(state, protocol.RoleDriller, c.drillerGuidance(state, a)),
	}
	return msgs
}

// GuidanceFor builds a single guidance line without sending or rate
// limiting. The admin surface uses it for previews.
func (c *Captain) GuidanceFor(role string, state protocol.StateMsg) (string, error) {
	a := analyze(state)
	switch role {
	case protocol.RoleNavigator:
		return c.navigatorGuidance(state, a), nil
	case protocol.RoleDriller:
		return c.drillerGuidance(state, a), nil
	default:
		return "", fmt.Errorf("no guidance for role %q", role)
	}
}

func (c *Captain) chat(state protocol.StateMsg, toRole, text string) protocol.ChatMsg {
	return protocol.ChatMsg{
		Type:            protocol.TypeChat,
		ProtocolVersion: protocol.Version,
		Round:           state.Round,
		FromRole:        protocol.RoleCaptain,
		ToRole:          toRole,
		Text:            clip(text),
	}
}

func (c *Captain) navigatorGuidance(state protocol.StateMsg, a analysis) string {
	var parts []string
	if len(a.unexplored) > 0 {
		target := a.unexplored[c.rng.Intn(len(a.unexplored))]
		parts = append(parts, fmt.Sprintf("Priority: probe %s to gather intel.", target))
	}
	if state.Location == "Alpha" && len(a.highValue) > 0 {
		target := a.highValue[c.rng.Intn(len(a.highValue))]
		parts = append(parts, fmt.Sprintf("Consider traveling to %s for mining operations.", target))
	}
	if len(parts) < 2 {
		parts = append(parts, "Focus on efficient intel gathering and strategic positioning.")
	}
	return strings.Join(parts, " ")
}

func (c *Captain) drillerGuidance(state protocol.StateMsg, a analysis) string {
	var parts []string
	if len(a.highValue) > 0 {
		target := a.highValue[c.rng.Intn(len(a.highValue))]
		parts = append(parts, fmt.Sprintf("Focus on %s, it shows high mineral potential.", target))
	}
	if len(a.unexplored) > 0 {
		target := a.unexplored[c.rng.Intn(len(a.unexplored))]
		parts = append(parts, fmt.Sprintf("Deploy a robot to %s to assess mining costs.", target))
	}
	if len(parts) < 2 {
		parts = append(parts, "Balance exploration with exploitation based on available intel.")
	}
	return strings.Join(parts, " ")
}

// clip truncates to MaxMessageLen bytes without splitting a rune.
func clip(s string) string {
	if len(s) <= MaxMessageLen {
		return s
	}
	cut := MaxMessageLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
