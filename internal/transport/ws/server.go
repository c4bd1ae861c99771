package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Justin2280/AI-Coordination-Wireframe/internal/engine"
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/multicrew"
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	pingInterval     = 30 * time.Second
	// Participants may sit idle through a whole low-pressure briefing, so the
	// read deadline has to outlast it.
	readTimeout = 5 * time.Minute
)

// seatKey identifies one role slot on one crew.
type seatKey struct {
	crewID string
	role   string
}

type identity struct {
	participantID string
	name          string
}

// Server bridges websocket participants to the crew manager. Each connection
// claims exactly one (crew, role) seat; a resume token lets a dropped
// participant reclaim the same seat and participant id.
type Server struct {
	mgr *multicrew.Manager
	log *log.Logger

	upgrader websocket.Upgrader

	mu     sync.Mutex
	seats  map[seatKey]bool
	tokens map[string]seatKey
	idents map[seatKey]identity
}

func NewServer(mgr *multicrew.Manager, logger *log.Logger) *Server {
	return &Server{
		mgr: mgr,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		seats:  make(map[seatKey]bool),
		tokens: make(map[string]seatKey),
		idents: make(map[seatKey]identity),
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		key, welcome, ok := s.handshake(conn)
		if !ok {
			return
		}
		defer s.releaseSeat(key)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, 64)
		events := make(chan multicrew.Event, 64)
		unsub, err := s.mgr.Subscribe(key.crewID, events)
		if err != nil {
			s.writeError(conn, protocol.ErrCrewNotFound, "crew went away")
			return
		}
		defer unsub()

		if err := writeJSON(conn, welcome); err != nil {
			return
		}
		if state, err := s.mgr.View(ctx, key.crewID, engine.Role(key.role)); err == nil {
			if err := writeJSON(conn, state); err != nil {
				return
			}
		}

		go s.writer(ctx, cancel, conn, key, out, events)

		s.reader(ctx, cancel, conn, key, out)
	}
}

// writer owns the connection's write side: queued payloads, fanned-out crew
// events, keepalive pings and periodic role-filtered state refreshes.
func (s *Server) writer(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, key seatKey, out <-chan []byte, events <-chan multicrew.Event) {
	pings := time.NewTicker(pingInterval)
	defer pings.Stop()
	states := time.NewTicker(time.Second)
	defer states.Stop()

	var lastState protocol.StateMsg

	send := func(v any) bool {
		if err := writeJSON(conn, v); err != nil {
			cancel()
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-out:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				cancel()
				return
			}
		case ev := <-events:
			switch {
			case ev.Round != nil:
				if !send(*ev.Round) {
					return
				}
				// Follow every round result with a fresh view so clients
				// see the next stage without waiting for the ticker.
				if state, err := s.mgr.View(ctx, key.crewID, engine.Role(key.role)); err == nil {
					lastState = state
					if !send(state) {
						return
					}
				}
			case ev.Chat != nil:
				if chatVisibleTo(*ev.Chat, key.role) {
					if !send(*ev.Chat) {
						return
					}
				}
			}
		case <-states.C:
			state, err := s.mgr.View(ctx, key.crewID, engine.Role(key.role))
			if err != nil {
				continue
			}
			if stateChanged(lastState, state) {
				lastState = state
				if !send(state) {
					return
				}
			}
		case <-pings.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cancel()
				return
			}
		}
	}
}

func (s *Server) reader(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, key seatKey, out chan<- []byte) {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			cancel()
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			s.enqueueError(out, protocol.ErrProtoBadRequest, "malformed JSON")
			continue
		}
		if base.ProtocolVersion != "" && base.ProtocolVersion != protocol.Version {
			s.enqueueError(out, protocol.ErrProtoBadRequest, "bad protocol_version")
			continue
		}

		switch base.Type {
		case protocol.TypeAction:
			var act protocol.ActionMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				s.enqueueError(out, protocol.ErrProtoBadRequest, "malformed ACTION")
				continue
			}
			s.handleAction(ctx, key, act, out)
		case protocol.TypeChat:
			var chat protocol.ChatMsg
			if err := json.Unmarshal(msg, &chat); err != nil {
				s.enqueueError(out, protocol.ErrProtoBadRequest, "malformed CHAT")
				continue
			}
			// The sender's role is seat-authoritative; clients cannot speak
			// as someone else.
			chat.FromRole = key.role
			res, err := s.mgr.SendChat(ctx, key.crewID, chat)
			if err != nil {
				return
			}
			if !res.Accepted {
				s.enqueueError(out, res.Code, res.Message)
			}
		default:
			s.enqueueError(out, protocol.ErrProtoBadRequest, "unexpected message type "+base.Type)
		}
	}
}

func (s *Server) handleAction(ctx context.Context, key seatKey, act protocol.ActionMsg, out chan<- []byte) {
	result := protocol.ActionResultMsg{
		Type:  protocol.TypeActionResult,
		Round: act.Round,
	}

	view, err := s.mgr.View(ctx, key.crewID, engine.Role(key.role))
	if err != nil {
		return
	}
	if act.Round != view.Round {
		result.Code = protocol.ErrStageViolation
		result.Message = "action targets a different round"
		s.enqueue(out, result)
		return
	}

	res, err := s.mgr.SubmitAction(ctx, key.crewID, engine.Role(key.role), engine.Action{
		Kind:        act.Kind,
		Destination: act.Destination,
		Depth:       act.Depth,
	})
	if err != nil {
		return
	}
	result.Accepted = res.Accepted
	result.Code = res.Code
	result.Message = res.Message
	s.enqueue(out, result)
}

func (s *Server) handshake(conn *websocket.Conn) (seatKey, protocol.WelcomeMsg, bool) {
	var none protocol.WelcomeMsg

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return seatKey{}, none, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		s.writeError(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return seatKey{}, none, false
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		s.writeError(conn, protocol.ErrProtoBadRequest, "malformed HELLO")
		return seatKey{}, none, false
	}
	if hello.ProtocolVersion != protocol.Version {
		s.writeError(conn, protocol.ErrProtoBadRequest, "bad protocol_version")
		return seatKey{}, none, false
	}
	if !engine.ValidRole(engine.Role(hello.Role)) {
		s.writeError(conn, protocol.ErrProtoBadRequest, "unknown role "+hello.Role)
		return seatKey{}, none, false
	}

	crew, ok := s.mgr.Crew(hello.CrewID)
	if !ok {
		s.writeError(conn, protocol.ErrCrewNotFound, "unknown crew "+hello.CrewID)
		return seatKey{}, none, false
	}

	key := seatKey{crewID: hello.CrewID, role: hello.Role}
	name := strings.TrimSpace(hello.ParticipantName)
	if name == "" {
		name = hello.Role
	}

	token, id, ok := s.claimSeat(key, strings.TrimSpace(hello.ResumeToken), name)
	if !ok {
		s.writeError(conn, protocol.ErrCrewFull, "seat already taken")
		return seatKey{}, none, false
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ParticipantID:   id.participantID,
		ResumeToken:     token,
		CrewID:          key.crewID,
		Role:            key.role,
		Session:         sessionParams(crew.Config()),
	}
	return key, welcome, true
}

// claimSeat reserves the (crew, role) slot. A valid resume token for the
// same seat reclaims the prior participant id; otherwise a fresh identity is
// minted. Returns ok=false when the seat has a live connection.
func (s *Server) claimSeat(key seatKey, resumeToken, name string) (string, identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seats[key] {
		return "", identity{}, false
	}

	if resumeToken != "" {
		if prior, ok := s.tokens[resumeToken]; ok && prior == key {
			s.seats[key] = true
			return resumeToken, s.idents[key], true
		}
	}

	id := identity{participantID: uuid.NewString(), name: name}
	token := uuid.NewString()
	s.seats[key] = true
	s.idents[key] = id
	s.tokens[token] = key
	return token, id, true
}

func (s *Server) releaseSeat(key seatKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seats, key)
}

func sessionParams(cfg engine.Config) protocol.SessionParams {
	costs := make(map[string]int, len(cfg.TravelCosts))
	for k, v := range cfg.TravelCosts {
		costs[k] = v
	}
	return protocol.SessionParams{
		Pressure:        cfg.Pressure,
		Complexity:      cfg.Complexity,
		CaptainType:     cfg.CaptainType,
		ScoredRounds:    cfg.ScoredRounds,
		PUPerRound:      cfg.PUPerRound,
		BriefingSeconds: int(cfg.BriefingTime() / time.Second),
		ActionSeconds:   int(cfg.ActionTime() / time.Second),
		ResultSeconds:   int(cfg.ResultTime() / time.Second),
		TravelCosts:     costs,
		ProbeCost:       cfg.ProbeCost,
		RobotCost:       cfg.RobotCost,
		MineShallowCost: cfg.MineShallowCost,
		MineDeepCost:    cfg.MineDeepCost,
	}
}

// chatVisibleTo applies chat addressing: broadcast, addressed to this seat,
// or an echo of this seat's own line.
func chatVisibleTo(msg protocol.ChatMsg, role string) bool {
	if msg.ToRole == "" {
		return true
	}
	return msg.ToRole == role || msg.FromRole == role
}

func stateChanged(a, b protocol.StateMsg) bool {
	return a.Round != b.Round ||
		a.Stage != b.Stage ||
		a.DeadlineUnixMs != b.DeadlineUnixMs ||
		a.RemainingPU != b.RemainingPU ||
		a.Location != b.Location ||
		a.ActionPending != b.ActionPending ||
		a.Minerals != b.Minerals
}

func (s *Server) enqueue(out chan<- []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
		// Slow consumer; drop rather than stall the reader.
	}
}

func (s *Server) enqueueError(out chan<- []byte, code, message string) {
	s.enqueue(out, protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: message})
}

func (s *Server) writeError(conn *websocket.Conn, code, message string) {
	_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: message})
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
