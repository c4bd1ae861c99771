// Package observer serves the loopback-only researcher feed: an unfiltered
// live stream of round results, chat and system events across crews.
package observer

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Justin2280/AI-Coordination-Wireframe/internal/engine"
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/multicrew"
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/observerproto"
)

type Server struct {
	mgr *multicrew.Manager
	log *log.Logger

	upgrader websocket.Upgrader
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
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			SessionID:       s.mgr.SessionID(),
		}
		for _, id := range s.mgr.CrewIDs() {
			crew, ok := s.mgr.Crew(id)
			if !ok {
				continue
			}
			cfg := crew.Config()
			info := observerproto.CrewInfo{
				CrewID:      id,
				Pressure:    cfg.Pressure,
				Complexity:  cfg.Complexity,
				CaptainType: cfg.CaptainType,
			}
			if v, err := s.mgr.View(ctx, id, engine.RoleCaptain); err == nil {
				info.Round = v.Round
				info.Stage = v.Stage
				info.Minerals = v.Minerals
			}
			resp.Crews = append(resp.Crews, info)
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		events := make(chan multicrew.Event, 4096)
		cancels, err := s.subscribe(sub.CrewID, events)
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown crew"), time.Now().Add(time.Second))
			return
		}
		defer cancels()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case ev := <-events:
					b, err := json.Marshal(eventMsg(ev))
					if err != nil {
						continue
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: drain pings and ignore further messages. Changing the
		// crew filter means reconnecting.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// subscribe attaches the channel to one crew, or all crews when crewID is
// empty. The returned func detaches every subscription made.
func (s *Server) subscribe(crewID string, events chan<- multicrew.Event) (func(), error) {
	ids := []string{crewID}
	if crewID == "" {
		ids = s.mgr.CrewIDs()
	}
	var unsubs []func()
	for _, id := range ids {
		unsub, err := s.mgr.Subscribe(id, events)
		if err != nil {
			for _, u := range unsubs {
				u()
			}
			return nil, err
		}
		unsubs = append(unsubs, unsub)
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}, nil
}

func eventMsg(ev multicrew.Event) observerproto.EventMsg {
	return observerproto.EventMsg{
		Type:            "EVENT",
		ProtocolVersion: observerproto.Version,
		CrewID:          ev.CrewID,
		Round:           ev.Round,
		Chat:            ev.Chat,
		System:          ev.System,
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
