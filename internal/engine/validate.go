package engine

import (
	"fmt"

	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
)

// Rejection is the structured reason a proposed action was refused. Code is
// one of the protocol error codes; rejected actions have zero side effects.
type Rejection struct {
	Code    string
	Message string
}

func reject(code, format string, args ...any) *Rejection {
	return &Rejection{Code: code, Message: fmt.Sprintf(format, args...)}
}

// validateAction checks a proposed action in the spec'd order: stage, role
// permission, resource budget, then domain. It returns the action's PU cost
// on acceptance. It never mutates state (validate-then-apply).
func (c *Crew) validateAction(role Role, act Action, rs *roundState) (int, *Rejection) {
	// 1. Stage. A resubmission after the Action stage ended is final for
	// the round, and reported as such.
	if rs.stage != StageAction {
		if rs.pending[role] != nil {
			return 0, reject(protocol.ErrDuplicateAction, "action already locked for round %d", rs.number)
		}
		return 0, reject(protocol.ErrStageViolation, "actions are only accepted during the action stage (now %s)", rs.stage)
	}

	// 2. Role permission.
	if !ValidRole(role) {
		return 0, reject(protocol.ErrRoleViolation, "unknown role %q", role)
	}
	switch role {
	case RoleCaptain:
		return 0, reject(protocol.ErrRoleViolation, "captain may only communicate, not act")
	case RoleNavigator:
		if act.Kind != KindTravel && act.Kind != KindSendProbe {
			return 0, reject(protocol.ErrRoleViolation, "navigator may not %s", act.Kind)
		}
		if act.Kind == KindSendProbe {
			if rej := c.checkProbeCap(rs); rej != nil {
				return 0, rej
			}
		}
	case RoleDriller:
		if act.Kind != KindDeployRobot && act.Kind != KindMine {
			return 0, reject(protocol.ErrRoleViolation, "driller may not %s", act.Kind)
		}
	}

	// 3. Resource budget. The ledger is debited at resolution; here the
	// single action must fit the round budget on its own.
	cost := act.cost(c.cfg)
	if cost > rs.ledger.Remaining() {
		return 0, reject(protocol.ErrInsufficientPU, "%s costs %d PU, %d remaining", act.Kind, cost, rs.ledger.Remaining())
	}

	// 4. Domain.
	switch act.Kind {
	case KindTravel:
		if _, ok := c.asteroids[act.Destination]; !ok {
			return 0, reject(protocol.ErrInvalidTarget, "unknown asteroid %q", act.Destination)
		}
		if act.Destination == c.location {
			return 0, reject(protocol.ErrInvalidTarget, "crew is already at %s", act.Destination)
		}
	case KindMine:
		if act.Depth != DepthShallow && act.Depth != DepthDeep {
			return 0, reject(protocol.ErrInvalidTarget, "depth must be %q or %q", DepthShallow, DepthDeep)
		}
		target := c.mineTarget(rs)
		if c.asteroids[target].Mined {
			return 0, reject(protocol.ErrInvalidTarget, "%s has already been mined", target)
		}
	}

	return cost, nil
}

// mineTarget is the asteroid a Mine would hit if the round resolved now: the
// Navigator's locked travel destination, or the current location when no
// travel is committed. The Navigator can still replace their action, so
// applyDriller re-checks Mined against the post-travel location.
func (c *Crew) mineTarget(rs *roundState) string {
	if nav := rs.pending[RoleNavigator]; nav != nil && !nav.auto && nav.act.Kind == KindTravel {
		return nav.act.Destination
	}
	return c.location
}

// checkProbeCap enforces the Navigator probe cap under the configured scope.
// The cap sits under the role-permission check, so a capped probe reads as a
// permission refusal, not a budget one.
func (c *Crew) checkProbeCap(rs *roundState) *Rejection {
	switch c.cfg.ProbeCapScope {
	case ProbeCapRound:
		if rs.probesThisRound >= c.cfg.ProbeCap {
			return reject(protocol.ErrRoleViolation, "probe cap reached for this round (%d)", c.cfg.ProbeCap)
		}
	default:
		if c.probesUsed >= c.cfg.ProbeCap {
			return reject(protocol.ErrRoleViolation, "probe cap reached for this session (%d)", c.cfg.ProbeCap)
		}
	}
	return nil
}
