package engine

import (
	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
)

// resolveRound settles the round in the fixed causal order: Navigator travel,
// Navigator probe, Driller robot, Driller mine. Navigator effects strictly
// precede Driller effects so that probe intel recorded this round feeds the
// mining probability lookup, subject to the visibility policy.
func (c *Crew) resolveRound() protocol.RoundResultMsg {
	rs := c.round
	var resolved []protocol.ResolvedAction
	var outcome *protocol.MiningOutcome

	nav := rs.pending[RoleNavigator]
	drill := rs.pending[RoleDriller]

	if nav != nil {
		resolved = append(resolved, c.applyNavigator(nav))
	}
	if drill != nil {
		ra, out := c.applyDriller(drill)
		resolved = append(resolved, ra)
		outcome = out
	}

	complete := rs.number >= c.cfg.ScoredRounds
	msg := protocol.RoundResultMsg{
		Type:            protocol.TypeRoundResult,
		ProtocolVersion: protocol.Version,
		CrewID:          c.id,
		Round:           rs.number,
		Training:        rs.training(),
		Location:        c.location,
		RemainingPU:     rs.ledger.Remaining(),
		Actions:         resolved,
		Outcome:         outcome,
		Minerals:        c.minerals,
		PUSpentByRole:   c.puByRole(),
		NextRound:       rs.number + 1,
		Complete:        complete,
	}
	return msg
}

func (c *Crew) applyNavigator(p *pendingAction) protocol.ResolvedAction {
	ra := protocol.ResolvedAction{Role: protocol.RoleNavigator, Kind: p.act.Kind, Cost: p.cost}
	if p.auto || p.act.Kind == KindNoOp {
		ra.Kind = KindNoOp
		ra.NoOp = true
		return ra
	}
	if !c.round.ledger.Reserve(p.cost) {
		ra.Reason = protocol.ErrInsufficientPU
		return ra
	}
	c.puSpent[RoleNavigator] += p.cost

	switch p.act.Kind {
	case KindTravel:
		c.location = p.act.Destination
		ra.Target = p.act.Destination
		ra.Applied = true
	case KindSendProbe:
		a := c.asteroids[c.location]
		c.intel.Record(Fact{
			Asteroid:   a.Name,
			Kind:       FactMaxMinerals,
			Value:      a.MaxMinerals,
			Discoverer: RoleNavigator,
			Round:      c.round.number,
		})
		c.probesUsed++
		c.round.probesThisRound++
		ra.Target = a.Name
		ra.Applied = true
	}
	return ra
}

func (c *Crew) applyDriller(p *pendingAction) (protocol.ResolvedAction, *protocol.MiningOutcome) {
	ra := protocol.ResolvedAction{Role: protocol.RoleDriller, Kind: p.act.Kind, Cost: p.cost}
	if p.auto || p.act.Kind == KindNoOp {
		ra.Kind = KindNoOp
		ra.NoOp = true
		return ra, nil
	}
	a := c.asteroids[c.location]

	// Validation ran against the pre-resolution view of the round; the
	// Navigator's travel may have landed the crew on an exhausted asteroid
	// since. A dead mine costs nothing.
	if p.act.Kind == KindMine && a.Mined {
		ra.Target = a.Name
		ra.Depth = p.act.Depth
		ra.Reason = protocol.ErrInvalidTarget
		return ra, nil
	}

	if !c.round.ledger.Reserve(p.cost) {
		ra.Reason = protocol.ErrInsufficientPU
		return ra, nil
	}
	c.puSpent[RoleDriller] += p.cost
	ra.Target = a.Name

	switch p.act.Kind {
	case KindDeployRobot:
		c.intel.Record(Fact{
			Asteroid:   a.Name,
			Kind:       FactShallowCost,
			Value:      a.ShallowCost,
			Discoverer: RoleDriller,
			Round:      c.round.number,
		})
		c.intel.Record(Fact{
			Asteroid:   a.Name,
			Kind:       FactDeepCost,
			Value:      a.DeepCost,
			Discoverer: RoleDriller,
			Round:      c.round.number,
		})
		ra.Applied = true
		return ra, nil

	case KindMine:
		ra.Depth = p.act.Depth
		ra.Applied = true

		// Intel state is what the Driller can see right now, which
		// includes this round's own robot facts but, under high
		// complexity, not the Navigator's same-round probe.
		combo := c.intel.Combo(RoleDriller, a.Name, c.round.number)
		prob, success := c.resolver.Resolve(p.act.Depth, combo)

		minerals := 0
		if success {
			if v, ok := c.intel.Known(a.Name, FactMaxMinerals); ok {
				minerals = v
			} else {
				minerals = c.cfg.FallbackYield
			}
		}
		a.Mined = true
		a.MinedRound = c.round.number
		if !c.round.training() {
			c.minerals += minerals
		}

		return ra, &protocol.MiningOutcome{
			Asteroid:    a.Name,
			Depth:       p.act.Depth,
			IntelCombo:  combo,
			Probability: prob,
			Success:     success,
			Minerals:    minerals,
			CostPaid:    p.cost,
		}
	}
	return ra, nil
}

func (c *Crew) puByRole() map[string]int {
	out := make(map[string]int, len(c.puSpent))
	for _, role := range Roles {
		out[string(role)] = c.puSpent[role]
	}
	return out
}
