package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Justin2280/AI-Coordination-Wireframe/internal/multicrew"
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
)

const manifest = `
crews:
  - id: crew_a
    session:
      seed: 11
      briefing_low_pressure_ms: 60
      action_stage_ms: 2000
      result_stage_ms: 200
`

const longBriefingManifest = `
crews:
  - id: crew_a
    session:
      seed: 11
      briefing_low_pressure_ms: 5000
      action_stage_ms: 2000
      result_stage_ms: 200
`

func startServer(t *testing.T, manifest string) (*httptest.Server, *multicrew.Manager, context.CancelFunc) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "crews.yaml")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := multicrew.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	logger := log.New(os.Stdout, "[ws-test] ", log.LstdFlags)
	mgr, err := multicrew.NewManager(cfg, multicrew.Sinks{}, logger)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)

	srv := NewServer(mgr, logger)
	ts := httptest.NewServer(http.HandlerFunc(srv.Handler()))
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return ts, mgr, cancel
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
}

// readUntil pumps messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) []byte {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage waiting for %s: %v", msgType, err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			t.Fatalf("DecodeBase: %v", err)
		}
		if base.Type == msgType {
			return msg
		}
	}
	t.Fatalf("no %s message within deadline", msgType)
	return nil
}

func hello(role string) protocol.HelloMsg {
	return protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		CrewID:          "crew_a",
		Role:            role,
		ParticipantName: "tester",
	}
}

func TestHandshakeAndAction(t *testing.T) {
	ts, _, _ := startServer(t, manifest)

	conn := dial(t, ts)
	send(t, conn, hello(protocol.RoleNavigator))

	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(readUntil(t, conn, protocol.TypeWelcome), &welcome); err != nil {
		t.Fatalf("Unmarshal WELCOME: %v", err)
	}
	if welcome.Role != protocol.RoleNavigator || welcome.CrewID != "crew_a" {
		t.Fatalf("welcome mismatch: %+v", welcome)
	}
	if welcome.ParticipantID == "" || welcome.ResumeToken == "" {
		t.Fatalf("missing identity: %+v", welcome)
	}
	if welcome.Session.PUPerRound != 4 {
		t.Fatalf("PUPerRound = %d, want 4", welcome.Session.PUPerRound)
	}

	// Wait for the action stage, then travel.
	var state protocol.StateMsg
	for {
		if err := json.Unmarshal(readUntil(t, conn, protocol.TypeState), &state); err != nil {
			t.Fatalf("Unmarshal STATE: %v", err)
		}
		if state.Stage == protocol.StageAction {
			break
		}
	}
	send(t, conn, protocol.ActionMsg{
		Type:            protocol.TypeAction,
		ProtocolVersion: protocol.Version,
		Round:           state.Round,
		Kind:            protocol.ActionTravel,
		Destination:     "Beta",
	})

	var result protocol.ActionResultMsg
	if err := json.Unmarshal(readUntil(t, conn, protocol.TypeActionResult), &result); err != nil {
		t.Fatalf("Unmarshal ACTION_RESULT: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("action rejected: %+v", result)
	}

	var round protocol.RoundResultMsg
	if err := json.Unmarshal(readUntil(t, conn, protocol.TypeRoundResult), &round); err != nil {
		t.Fatalf("Unmarshal ROUND_RESULT: %v", err)
	}
	if round.Location != "Beta" {
		t.Fatalf("Location = %q, want Beta", round.Location)
	}
}

func TestHandshakeRejectsUnknownCrew(t *testing.T) {
	ts, _, _ := startServer(t, manifest)

	conn := dial(t, ts)
	h := hello(protocol.RoleDriller)
	h.CrewID = "nope"
	send(t, conn, h)

	var errMsg protocol.ErrorMsg
	if err := json.Unmarshal(readUntil(t, conn, protocol.TypeError), &errMsg); err != nil {
		t.Fatalf("Unmarshal ERROR: %v", err)
	}
	if errMsg.Code != protocol.ErrCrewNotFound {
		t.Fatalf("Code = %q, want %q", errMsg.Code, protocol.ErrCrewNotFound)
	}
}

func TestSeatOccupancyAndResume(t *testing.T) {
	ts, _, _ := startServer(t, manifest)

	first := dial(t, ts)
	send(t, first, hello(protocol.RoleDriller))
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(readUntil(t, first, protocol.TypeWelcome), &welcome); err != nil {
		t.Fatalf("Unmarshal WELCOME: %v", err)
	}

	// Second connection for the same seat is turned away.
	second := dial(t, ts)
	send(t, second, hello(protocol.RoleDriller))
	var errMsg protocol.ErrorMsg
	if err := json.Unmarshal(readUntil(t, second, protocol.TypeError), &errMsg); err != nil {
		t.Fatalf("Unmarshal ERROR: %v", err)
	}
	if errMsg.Code != protocol.ErrCrewFull {
		t.Fatalf("Code = %q, want %q", errMsg.Code, protocol.ErrCrewFull)
	}

	// Dropping the first connection frees the seat; the resume token
	// reclaims the same participant id.
	first.Close()

	var resumed protocol.WelcomeMsg
	deadline := time.Now().Add(5 * time.Second)
	for {
		third := dial(t, ts)
		h := hello(protocol.RoleDriller)
		h.ResumeToken = welcome.ResumeToken
		send(t, third, h)

		_ = third.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := third.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
		base, _ := protocol.DecodeBase(msg)
		if base.Type == protocol.TypeWelcome {
			if err := json.Unmarshal(msg, &resumed); err != nil {
				t.Fatalf("Unmarshal WELCOME: %v", err)
			}
			break
		}
		// Seat not released yet; retry until the deadline.
		third.Close()
		if time.Now().After(deadline) {
			t.Fatalf("seat never released after disconnect")
		}
		time.Sleep(20 * time.Millisecond)
	}
	if resumed.ParticipantID != welcome.ParticipantID {
		t.Fatalf("ParticipantID = %q, want %q", resumed.ParticipantID, welcome.ParticipantID)
	}
}

func TestChatSenderIsSeatAuthoritative(t *testing.T) {
	ts, mgr, _ := startServer(t, longBriefingManifest)

	events := make(chan multicrew.Event, 16)
	unsub, err := mgr.Subscribe("crew_a", events)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsub()

	conn := dial(t, ts)
	send(t, conn, hello(protocol.RoleNavigator))
	readUntil(t, conn, protocol.TypeWelcome)

	// Chat during the briefing, with a spoofed sender role.
	send(t, conn, protocol.ChatMsg{
		Type:            protocol.TypeChat,
		ProtocolVersion: protocol.Version,
		FromRole:        protocol.RoleCaptain,
		Text:            "probe Gamma",
	})

	select {
	case ev := <-events:
		if ev.Chat == nil {
			t.Fatalf("expected chat event, got %+v", ev)
		}
		if ev.Chat.FromRole != protocol.RoleNavigator {
			t.Fatalf("FromRole = %q, want %q", ev.Chat.FromRole, protocol.RoleNavigator)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no chat event")
	}
}
