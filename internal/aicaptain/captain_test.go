package aicaptain

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
)

func intPtr(v int) *int { return &v }

func briefingState() protocol.StateMsg {
	return protocol.StateMsg{
		Type:     protocol.TypeState,
		CrewID:   "crew_a",
		Role:     protocol.RoleCaptain,
		Round:    1,
		Stage:    protocol.StageBriefing,
		Location: "Alpha",
		Asteroids: []protocol.IntelRow{
			{Name: "Alpha", Here: true},
			{Name: "Beta", MaxMinerals: intPtr(110)},
			{Name: "Gamma"},
			{Name: "Omega", Mined: true, MaxMinerals: intPtr(160)},
		},
	}
}

func TestAnalyze(t *testing.T) {
	a := analyze(briefingState())
	if got, want := strings.Join(a.unexplored, ","), "Alpha,Gamma"; got != want {
		t.Fatalf("unexplored = %q, want %q", got, want)
	}
	// Omega is mined, so only Beta qualifies.
	if got, want := strings.Join(a.highValue, ","), "Beta"; got != want {
		t.Fatalf("highValue = %q, want %q", got, want)
	}
}

func TestCoordinateAddressesBothRoles(t *testing.T) {
	c := New("crew_a", 7)
	msgs := c.Coordinate(briefingState())
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].ToRole != protocol.RoleNavigator || msgs[1].ToRole != protocol.RoleDriller {
		t.Fatalf("addressing mismatch: %q, %q", msgs[0].ToRole, msgs[1].ToRole)
	}
	for _, m := range msgs {
		if m.FromRole != protocol.RoleCaptain {
			t.Fatalf("FromRole = %q, want captain", m.FromRole)
		}
		if m.Text == "" || len(m.Text) > MaxMessageLen {
			t.Fatalf("bad text: %q", m.Text)
		}
		if m.Round != 1 {
			t.Fatalf("Round = %d, want 1", m.Round)
		}
	}
	if !strings.Contains(msgs[0].Text, "probe") {
		t.Fatalf("navigator guidance misses probe priority: %q", msgs[0].Text)
	}
}

func TestCoordinateOnlyDuringBriefing(t *testing.T) {
	c := New("crew_a", 7)
	state := briefingState()
	state.Stage = protocol.StageAction
	if msgs := c.Coordinate(state); msgs != nil {
		t.Fatalf("expected no messages outside briefing, got %d", len(msgs))
	}
}

func TestCoordinateRateLimits(t *testing.T) {
	c := New("crew_a", 7)
	clock := time.Unix(100, 0)
	c.now = func() time.Time { return clock }

	if msgs := c.Coordinate(briefingState()); len(msgs) != 2 {
		t.Fatalf("first burst = %d messages, want 2", len(msgs))
	}
	clock = clock.Add(2 * time.Second)
	if msgs := c.Coordinate(briefingState()); msgs != nil {
		t.Fatalf("expected rate limit at +2s, got %d messages", len(msgs))
	}
	clock = clock.Add(4 * time.Second)
	if msgs := c.Coordinate(briefingState()); len(msgs) != 2 {
		t.Fatalf("expected burst at +6s, got %d messages", len(msgs))
	}
}

func TestClipKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"ascii", strings.Repeat("a", MaxMessageLen+10)},
		{"multibyte", strings.Repeat("ü", MaxMessageLen)},
		{"boundary", strings.Repeat("a", MaxMessageLen-4) + "日本語"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clip(tt.in)
			if len(got) > MaxMessageLen {
				t.Fatalf("len = %d, over the limit", len(got))
			}
			if !utf8.ValidString(got) {
				t.Fatalf("clip split a rune: %q", got)
			}
			if !strings.HasSuffix(got, "...") {
				t.Fatalf("missing ellipsis: %q", got)
			}
		})
	}
	if short := clip("fine"); short != "fine" {
		t.Fatalf("short message altered: %q", short)
	}
}

func TestGuidanceDeterministicPerSeed(t *testing.T) {
	a := New("crew_a", 42)
	b := New("crew_a", 42)
	for i := 0; i < 5; i++ {
		ga, err := a.GuidanceFor(protocol.RoleDriller, briefingState())
		if err != nil {
			t.Fatalf("GuidanceFor: %v", err)
		}
		gb, err := b.GuidanceFor(protocol.RoleDriller, briefingState())
		if err != nil {
			t.Fatalf("GuidanceFor: %v", err)
		}
		if ga != gb {
			t.Fatalf("diverged at %d: %q vs %q", i, ga, gb)
		}
	}
	if _, err := a.GuidanceFor(protocol.RoleCaptain, briefingState()); err == nil {
		t.Fatalf("expected error for captain role")
	}
}
