package engine

import (
	"time"

	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
)

// Stage is one phase of a round, plus the terminal session states.
type Stage string

const (
	StageWaiting   Stage = protocol.StageWaiting
	StageBriefing  Stage = protocol.StageBriefing
	StageAction    Stage = protocol.StageAction
	StageResult    Stage = protocol.StageResult
	StageComplete  Stage = protocol.StageComplete
	StageCancelled Stage = protocol.StageCancelled
)

// roundState holds everything scoped to a single round: the stage, its
// absolute deadline, the PU ledger and the accepted actions. It is archived
// by resolution and replaced when the next round starts.
type roundState struct {
	number   int
	stage    Stage
	deadline time.Time
	ledger   *Ledger
	pending  map[Role]*pendingAction

	// probesThisRound backs the per-round probe-cap interpretation.
	probesThisRound int
}

func newRoundState(number int, cfg Config, now time.Time) *roundState {
	return &roundState{
		number:   number,
		stage:    StageBriefing,
		deadline: now.Add(cfg.BriefingTime()),
		ledger:   NewLedger(cfg.PUPerRound),
		pending:  map[Role]*pendingAction{},
	}
}

func (rs *roundState) training() bool { return rs.number == 0 }

// actionsReady reports whether every acting role has an accepted action, the
// early-transition condition for the Action stage.
func (rs *roundState) actionsReady() bool {
	return rs.pending[RoleNavigator] != nil && rs.pending[RoleDriller] != nil
}

// committedPU is the PU already promised to accepted actions. The ledger is
// not debited until resolution, so views subtract this from the remaining
// budget.
func (rs *roundState) committedPU() int {
	total := 0
	for _, p := range rs.pending {
		if p != nil && !p.auto {
			total += p.cost
		}
	}
	return total
}
