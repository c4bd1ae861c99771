package engine

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
)

// SubmitResult is the engine's answer to an inbound submission. Rejections
// carry a structured code for relay back to the submitter.
type SubmitResult struct {
	Accepted bool
	Code     string
	Message  string
}

func accepted() SubmitResult { return SubmitResult{Accepted: true} }

func rejected(r *Rejection) SubmitResult {
	return SubmitResult{Code: r.Code, Message: r.Message}
}

type submitReq struct {
	role Role
	act  Action
	resp chan SubmitResult
}

type chatReq struct {
	msg  protocol.ChatMsg
	resp chan SubmitResult
}

type viewReq struct {
	role Role
	resp chan protocol.StateMsg
}

// SystemEvent records join/leave/abort/timeout style occurrences for the
// audit trail.
type SystemEvent struct {
	CrewID string    `json:"crew_id"`
	Round  int       `json:"round"`
	Kind   string    `json:"kind"`
	Role   string    `json:"role,omitempty"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Crew is a single authoritative state machine for one three-role session.
// All mutations to the ledger, intel store and round state are serialized
// through the crew goroutine; submissions are queued, never applied in
// place. State fields must only be touched from the Run loop.
type Crew struct {
	id     string
	cfg    Config
	logger *log.Logger

	asteroids map[string]*Asteroid
	location  string
	intel     *IntelStore
	resolver  *Resolver

	round      *roundState
	minerals   int // cumulative, scored rounds only
	puSpent    map[Role]int
	probesUsed int

	submits chan submitReq
	chats   chan chatReq
	views   chan viewReq
	aborts  chan chan struct{}
	stop    chan struct{}

	events  chan protocol.RoundResultMsg
	chatOut chan protocol.ChatMsg
	sysOut  chan SystemEvent

	now func() time.Time
}

// New builds a crew from a validated configuration. A malformed
// configuration is a fatal setup error: no crew is created and no round can
// start.
func New(id string, cfg Config, logger *log.Logger) (*Crew, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("empty crew id")
	}
	if logger == nil {
		logger = log.Default()
	}

	c := &Crew{
		id:        id,
		cfg:       cfg,
		logger:    logger,
		asteroids: generateAsteroids(cfg, rand.New(rand.NewSource(cfg.Seed))),
		location:  "Alpha",
		intel:     NewIntelStore(cfg.Complexity),
		resolver:  NewResolver(cfg),
		puSpent:   map[Role]int{},
		submits:   make(chan submitReq, 16),
		chats:     make(chan chatReq, 64),
		views:     make(chan viewReq, 16),
		aborts:    make(chan chan struct{}, 1),
		stop:      make(chan struct{}),
		events:    make(chan protocol.RoundResultMsg, 8),
		chatOut:   make(chan protocol.ChatMsg, 64),
		sysOut:    make(chan SystemEvent, 64),
		now:       time.Now,
	}
	return c, nil
}

func (c *Crew) ID() string     { return c.id }
func (c *Crew) Config() Config { return c.cfg }

// Events carries one RoundResultMsg per resolved round.
func (c *Crew) Events() <-chan protocol.RoundResultMsg { return c.events }

// ChatFeed carries accepted briefing chat for relay and logging.
func (c *Crew) ChatFeed() <-chan protocol.ChatMsg { return c.chatOut }

// SystemEvents carries audit-trail occurrences (timeouts, aborts).
func (c *Crew) SystemEvents() <-chan SystemEvent { return c.sysOut }

// Run owns the round sequence: a training round 0 followed by the scored
// rounds. It returns when the context is cancelled or Stop is called; after
// the session completes it keeps serving views so late clients can render
// the final state.
func (c *Crew) Run(ctx context.Context) error {
	c.startRound(0)

	timer := time.NewTimer(time.Until(c.round.deadline))
	defer timer.Stop()

	rearm := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if c.round.stage == StageComplete || c.round.stage == StageCancelled {
			return
		}
		timer.Reset(time.Until(c.round.deadline))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			return nil
		case done := <-c.aborts:
			c.cancelSession()
			rearm()
			close(done)
		case req := <-c.submits:
			req.resp <- c.handleSubmit(req.role, req.act)
			if c.round.stage == StageAction && c.round.actionsReady() {
				c.advanceStage()
				rearm()
			}
		case req := <-c.chats:
			req.resp <- c.handleChat(req.msg)
		case req := <-c.views:
			req.resp <- c.buildView(req.role)
		case <-timer.C:
			if c.round.stage == StageComplete || c.round.stage == StageCancelled {
				continue
			}
			c.advanceStage()
			rearm()
		}
	}
}

// Stop terminates the Run loop.
func (c *Crew) Stop() { close(c.stop) }

// SubmitAction queues one proposed action and waits for the verdict.
func (c *Crew) SubmitAction(ctx context.Context, role Role, act Action) (SubmitResult, error) {
	req := submitReq{role: role, act: act, resp: make(chan SubmitResult, 1)}
	select {
	case c.submits <- req:
	case <-ctx.Done():
		return SubmitResult{}, ctx.Err()
	}
	select {
	case res := <-req.resp:
		return res, nil
	case <-ctx.Done():
		return SubmitResult{}, ctx.Err()
	}
}

// SendChat queues a chat message for stage gating. Accepted messages appear
// on ChatFeed for relay.
func (c *Crew) SendChat(ctx context.Context, msg protocol.ChatMsg) (SubmitResult, error) {
	req := chatReq{msg: msg, resp: make(chan SubmitResult, 1)}
	select {
	case c.chats <- req:
	case <-ctx.Done():
		return SubmitResult{}, ctx.Err()
	}
	select {
	case res := <-req.resp:
		return res, nil
	case <-ctx.Done():
		return SubmitResult{}, ctx.Err()
	}
}

// View returns the role-filtered projection of the current round.
func (c *Crew) View(ctx context.Context, role Role) (protocol.StateMsg, error) {
	req := viewReq{role: role, resp: make(chan protocol.StateMsg, 1)}
	select {
	case c.views <- req:
	case <-ctx.Done():
		return protocol.StateMsg{}, ctx.Err()
	}
	select {
	case v := <-req.resp:
		return v, nil
	case <-ctx.Done():
		return protocol.StateMsg{}, ctx.Err()
	}
}

// Abort cancels the session administratively. In-flight submissions drain
// through the queue and get rejected; the partial round is discarded. Abort
// is terminal for the session.
func (c *Crew) Abort(ctx context.Context) error {
	done := make(chan struct{}, 1)
	select {
	case c.aborts <- done:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Crew) startRound(number int) {
	c.round = newRoundState(number, c.cfg, c.now())
	c.logger.Printf("crew=%s round=%d stage=briefing deadline=%s", c.id, number, c.round.deadline.Format(time.RFC3339))
}

// advanceStage moves the round machine one step. Both deadline expiry and
// all-actions-received are normal causes.
func (c *Crew) advanceStage() {
	rs := c.round
	switch rs.stage {
	case StageBriefing:
		rs.stage = StageAction
		rs.deadline = c.now().Add(c.cfg.ActionTime())
	case StageAction:
		c.fillNoOps()
		rs.stage = StageResult
		rs.deadline = c.now().Add(c.cfg.ResultTime())
		c.emitResult(c.resolveRound())
	case StageResult:
		if rs.number >= c.cfg.ScoredRounds {
			rs.stage = StageComplete
			rs.deadline = time.Time{}
			c.logger.Printf("crew=%s session complete minerals=%d", c.id, c.minerals)
			return
		}
		c.startRound(rs.number + 1)
	}
}

// handleSubmit validates and, on success, stores the action as the role's
// pending action for the round. A resubmission during the Action stage
// replaces the earlier one (last-write-wins before the deadline).
func (c *Crew) handleSubmit(role Role, act Action) SubmitResult {
	cost, rej := c.validateAction(role, act, c.round)
	if rej != nil {
		c.logger.Printf("crew=%s round=%d role=%s %s rejected: %s", c.id, c.round.number, role, act.Kind, rej.Code)
		return rejected(rej)
	}
	c.round.pending[role] = &pendingAction{act: act, cost: cost}
	return accepted()
}

// handleChat gates communication by stage: chat flows during Briefing only.
// The captain's messages pass like anyone's; the engine does not
// differentiate human and LLM captains here.
func (c *Crew) handleChat(msg protocol.ChatMsg) SubmitResult {
	if c.round.stage != StageBriefing {
		return rejected(reject(protocol.ErrStageViolation, "chat only during briefing (now %s)", c.round.stage))
	}
	from := Role(msg.FromRole)
	if !ValidRole(from) {
		return rejected(reject(protocol.ErrRoleViolation, "unknown role %q", msg.FromRole))
	}
	if msg.ToRole != "" && !ValidRole(Role(msg.ToRole)) {
		return rejected(reject(protocol.ErrRoleViolation, "unknown recipient %q", msg.ToRole))
	}
	msg.Round = c.round.number
	select {
	case c.chatOut <- msg:
	default:
		c.logger.Printf("crew=%s chat feed full, dropping message", c.id)
	}
	return accepted()
}

// fillNoOps substitutes the implicit No-Op for any acting role that stayed
// silent past the Action-stage deadline. Inaction never blocks the round.
func (c *Crew) fillNoOps() {
	for _, role := range []Role{RoleNavigator, RoleDriller} {
		if c.round.pending[role] == nil {
			c.round.pending[role] = &pendingAction{act: Action{Kind: KindNoOp}, auto: true}
			c.emitSystem(SystemEvent{
				Kind: "timeout", Role: string(role),
				Detail: "no action by deadline, substituted no-op",
			})
		}
	}
}

func (c *Crew) cancelSession() {
	c.round.pending = map[Role]*pendingAction{}
	c.round.stage = StageCancelled
	c.round.deadline = time.Time{}
	c.emitSystem(SystemEvent{Kind: "cancel", Detail: "session aborted"})
	c.logger.Printf("crew=%s session cancelled in round %d", c.id, c.round.number)
}

func (c *Crew) emitResult(msg protocol.RoundResultMsg) {
	select {
	case c.events <- msg:
	default:
		c.logger.Printf("crew=%s event channel full, dropping round %d result", c.id, msg.Round)
	}
}

func (c *Crew) emitSystem(ev SystemEvent) {
	ev.CrewID = c.id
	ev.Round = c.round.number
	ev.At = c.now()
	select {
	case c.sysOut <- ev:
	default:
	}
}
