package engine

import (
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
)

// buildView projects the current round for a single role: stage, deadline,
// remaining budget, crew location, and exactly the intel facts that role may
// see under the session's complexity condition. The transport renders this
// verbatim; visibility decisions never leave the engine.
func (c *Crew) buildView(role Role) protocol.StateMsg {
	rs := c.round

	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		CrewID:          c.id,
		Role:            string(role),
		Round:           rs.number,
		Training:        rs.training(),
		Stage:           string(rs.stage),
		RemainingPU:     remainingAfterCommit(rs),
		Location:        c.location,
		Minerals:        c.minerals,
		ActionPending:   rs.pending[role] != nil,
	}
	if !rs.deadline.IsZero() {
		msg.DeadlineUnixMs = rs.deadline.UnixMilli()
	}

	for _, name := range AsteroidNames {
		a := c.asteroids[name]
		row := protocol.IntelRow{
			Name:       name,
			TravelCost: a.TravelCost,
			Here:       name == c.location,
			Mined:      a.Mined,
		}
		if v, ok := c.intel.VisibleValue(role, name, FactMaxMinerals, rs.number); ok {
			row.MaxMinerals = intPtr(v)
		}
		if v, ok := c.intel.VisibleValue(role, name, FactShallowCost, rs.number); ok {
			row.ShallowCost = intPtr(v)
		}
		if v, ok := c.intel.VisibleValue(role, name, FactDeepCost, rs.number); ok {
			row.DeepCost = intPtr(v)
		}
		msg.Asteroids = append(msg.Asteroids, row)
	}
	return msg
}

func intPtr(v int) *int { return &v }

// remainingAfterCommit is the budget net of actions locked but not yet
// resolved. Both roles may lock actions that jointly exceed the budget (the
// shortfall surfaces at resolution), so the projection floors at zero.
func remainingAfterCommit(rs *roundState) int {
	left := rs.ledger.Remaining() - rs.committedPU()
	if left < 0 {
		return 0
	}
	return left
}
