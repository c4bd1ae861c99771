package engine

import (
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
)

// Role identifies one of the three fixed crew slots.
type Role string

const (
	RoleCaptain   Role = protocol.RoleCaptain
	RoleNavigator Role = protocol.RoleNavigator
	RoleDriller   Role = protocol.RoleDriller
)

// Roles lists the crew slots in causal resolution order: the Captain never
// acts, Navigator effects strictly precede Driller effects.
var Roles = []Role{RoleCaptain, RoleNavigator, RoleDriller}

func ValidRole(r Role) bool {
	switch r {
	case RoleCaptain, RoleNavigator, RoleDriller:
		return true
	}
	return false
}

// Action kinds and mining depths (wire vocabulary).
const (
	KindTravel      = protocol.ActionTravel
	KindSendProbe   = protocol.ActionSendProbe
	KindDeployRobot = protocol.ActionDeployRobot
	KindMine        = protocol.ActionMine
	KindNoOp        = protocol.ActionNoOp

	DepthShallow = protocol.DepthShallow
	DepthDeep    = protocol.DepthDeep
)

// Action is one proposed per-round action. Destination is set for TRAVEL,
// Depth for MINE; probe, robot and mine always target the crew's current
// location.
type Action struct {
	Kind        string
	Destination string
	Depth       string
}

// cost returns the PU price of the action under cfg. Travel cost is keyed by
// destination; unknown destinations are caught by the domain check, not here.
func (a Action) cost(cfg Config) int {
	switch a.Kind {
	case KindTravel:
		return cfg.TravelCosts[a.Destination]
	case KindSendProbe:
		return cfg.ProbeCost
	case KindDeployRobot:
		return cfg.RobotCost
	case KindMine:
		if a.Depth == DepthDeep {
			return cfg.MineDeepCost
		}
		return cfg.MineShallowCost
	}
	return 0
}

// pendingAction is an accepted action waiting for Result-stage resolution.
// Auto marks the implicit No-Op substituted at the Action-stage deadline.
type pendingAction struct {
	act  Action
	cost int
	auto bool
}
