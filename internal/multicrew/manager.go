package multicrew

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/Justin2280/AI-Coordination-Wireframe/internal/engine"
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
)

// Sinks receive everything the crews emit. Any sink may be nil.
type RoundSink interface {
	RecordRound(msg protocol.RoundResultMsg) error
}

type ChatSink interface {
	RecordChat(crewID string, msg protocol.ChatMsg) error
}

type AuditSink interface {
	RecordSystemEvent(ev engine.SystemEvent) error
}

type Sinks struct {
	Rounds RoundSink
	Chat   ChatSink
	Audit  AuditSink
}

// Event is the fanout unit pushed to transport subscribers. Exactly one
// field is set.
type Event struct {
	CrewID string
	Round  *protocol.RoundResultMsg
	Chat   *protocol.ChatMsg
	System *engine.SystemEvent
}

// Runtime pairs a crew with its lifecycle handle.
type Runtime struct {
	Spec CrewSpec
	Crew *engine.Crew
}

// Manager owns the independent crew runtimes of one server process. Crews
// share nothing mutable; the manager only routes submissions to the owning
// crew and fans crew output out to sinks and subscribers.
type Manager struct {
	mu        sync.RWMutex
	runtimes  map[string]*Runtime
	subs      map[string]map[int]chan<- Event
	nextSubID int

	sessionID string
	sinks     Sinks
	logger    *log.Logger

	wg sync.WaitGroup
}

// NewManager builds every crew in the manifest. A malformed session
// configuration fails here, before any round starts.
func NewManager(cfg Config, sinks Sinks, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		runtimes:  map[string]*Runtime{},
		subs:      map[string]map[int]chan<- Event{},
		sessionID: uuid.NewString(),
		sinks:     sinks,
		logger:    logger,
	}
	for _, spec := range cfg.Crews {
		sess, err := spec.SessionConfig()
		if err != nil {
			return nil, err
		}
		crew, err := engine.New(spec.ID, sess, logger)
		if err != nil {
			return nil, fmt.Errorf("crew %s: %w", spec.ID, err)
		}
		m.runtimes[spec.ID] = &Runtime{Spec: spec, Crew: crew}
	}
	if len(m.runtimes) == 0 {
		return nil, fmt.Errorf("no crews configured")
	}
	return m, nil
}

// SessionID identifies this server run; it tags persisted records.
func (m *Manager) SessionID() string { return m.sessionID }

// Start launches every crew loop plus one pump per crew that drains its
// event/chat/audit feed into the sinks and subscribers. It returns
// immediately; crews stop when ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rt := range m.runtimes {
		rt := rt
		m.wg.Add(2)
		go func() {
			defer m.wg.Done()
			if err := rt.Crew.Run(ctx); err != nil && ctx.Err() == nil {
				m.logger.Printf("crew=%s run: %v", rt.Crew.ID(), err)
			}
		}()
		go func() {
			defer m.wg.Done()
			m.pump(ctx, rt.Crew)
		}()
	}
}

// Wait blocks until all crew loops and pumps have stopped.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) pump(ctx context.Context, crew *engine.Crew) {
	id := crew.ID()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-crew.Events():
			if m.sinks.Rounds != nil {
				if err := m.sinks.Rounds.RecordRound(msg); err != nil {
					m.logger.Printf("crew=%s record round %d: %v", id, msg.Round, err)
				}
			}
			m.publish(id, Event{CrewID: id, Round: &msg})
		case msg := <-crew.ChatFeed():
			if m.sinks.Chat != nil {
				if err := m.sinks.Chat.RecordChat(id, msg); err != nil {
					m.logger.Printf("crew=%s record chat: %v", id, err)
				}
			}
			m.publish(id, Event{CrewID: id, Chat: &msg})
		case ev := <-crew.SystemEvents():
			if m.sinks.Audit != nil {
				if err := m.sinks.Audit.RecordSystemEvent(ev); err != nil {
					m.logger.Printf("crew=%s record system event: %v", id, err)
				}
			}
			m.publish(id, Event{CrewID: id, System: &ev})
		}
	}
}

// Subscribe registers a channel for one crew's fanout. The returned func
// unsubscribes. Slow subscribers drop events rather than stall the pump.
func (m *Manager) Subscribe(crewID string, ch chan<- Event) (cancel func(), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runtimes[crewID]; !ok {
		return nil, fmt.Errorf("unknown crew %q", crewID)
	}
	id := m.nextSubID
	m.nextSubID++
	if m.subs[crewID] == nil {
		m.subs[crewID] = map[int]chan<- Event{}
	}
	m.subs[crewID][id] = ch
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[crewID], id)
	}, nil
}

func (m *Manager) publish(crewID string, ev Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subs[crewID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Crew returns the runtime for a crew id.
func (m *Manager) Crew(crewID string) (*engine.Crew, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rt, ok := m.runtimes[crewID]
	if !ok {
		return nil, false
	}
	return rt.Crew, true
}

// CrewIDs lists the managed crews.
func (m *Manager) CrewIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.runtimes))
	for id := range m.runtimes {
		out = append(out, id)
	}
	return out
}

// SubmitAction routes one action submission to the owning crew.
func (m *Manager) SubmitAction(ctx context.Context, crewID string, role engine.Role, act engine.Action) (engine.SubmitResult, error) {
	crew, ok := m.Crew(crewID)
	if !ok {
		return engine.SubmitResult{Code: protocol.ErrCrewNotFound, Message: crewID}, nil
	}
	return crew.SubmitAction(ctx, role, act)
}

// SendChat routes a chat message to the owning crew for stage gating.
func (m *Manager) SendChat(ctx context.Context, crewID string, msg protocol.ChatMsg) (engine.SubmitResult, error) {
	crew, ok := m.Crew(crewID)
	if !ok {
		return engine.SubmitResult{Code: protocol.ErrCrewNotFound, Message: crewID}, nil
	}
	return crew.SendChat(ctx, msg)
}

// View returns the role-filtered projection of one crew's current round.
func (m *Manager) View(ctx context.Context, crewID string, role engine.Role) (protocol.StateMsg, error) {
	crew, ok := m.Crew(crewID)
	if !ok {
		return protocol.StateMsg{}, fmt.Errorf("unknown crew %q", crewID)
	}
	return crew.View(ctx, role)
}

// Abort administratively cancels one crew's session.
func (m *Manager) Abort(ctx context.Context, crewID string) error {
	crew, ok := m.Crew(crewID)
	if !ok {
		return fmt.Errorf("unknown crew %q", crewID)
	}
	return crew.Abort(ctx)
}
