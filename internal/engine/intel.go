package engine

// Fact kinds.
const (
	FactMaxMinerals = "max_minerals"
	FactShallowCost = "shallow_cost"
	FactDeepCost    = "deep_cost"
)

// Intel combos, as the probability matrix keys them.
const (
	ComboNone       = "none"
	ComboProbeOnly  = "probe_only"
	ComboRobotOnly  = "robot_only"
	ComboProbeRobot = "probe_plus_robot"
)

// Fact is one discovered truth about an asteroid. Facts are append-only and
// never overwritten; re-discovery of a value-stable fact is idempotent.
type Fact struct {
	Asteroid   string
	Kind       string
	Value      int
	Discoverer Role
	Round      int
}

type factKey struct {
	asteroid string
	kind     string
}

// IntelStore records discovered facts and answers visibility queries per the
// session's complexity condition. Visibility is computed, not stored.
type IntelStore struct {
	complexity string
	facts      []Fact
	index      map[factKey]int
}

func NewIntelStore(complexity string) *IntelStore {
	return &IntelStore{
		complexity: complexity,
		index:      map[factKey]int{},
	}
}

// Record appends a fact. A later discovery of an already-known
// (asteroid, kind) pair keeps the earlier fact; Record reports whether the
// fact was new.
func (s *IntelStore) Record(f Fact) bool {
	k := factKey{f.Asteroid, f.Kind}
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = len(s.facts)
	s.facts = append(s.facts, f)
	return true
}

// Facts returns all recorded facts in discovery order.
func (s *IntelStore) Facts() []Fact {
	out := make([]Fact, len(s.facts))
	copy(out, s.facts)
	return out
}

// VisibleTo reports whether role may see fact during currentRound. Under low
// complexity every fact is crew-wide from discovery onward. Under high
// complexity a fact stays private to its discoverer during the discovery
// round and becomes crew-wide the round after.
func (s *IntelStore) VisibleTo(role Role, f Fact, currentRound int) bool {
	if s.complexity == ComplexityLow {
		return true
	}
	if role == f.Discoverer {
		return true
	}
	return f.Round < currentRound
}

// VisibleValue looks up the value of (asteroid, kind) if a fact exists and
// role may see it in currentRound.
func (s *IntelStore) VisibleValue(role Role, asteroid, kind string, currentRound int) (int, bool) {
	i, ok := s.index[factKey{asteroid, kind}]
	if !ok {
		return 0, false
	}
	f := s.facts[i]
	if !s.VisibleTo(role, f, currentRound) {
		return 0, false
	}
	return f.Value, true
}

// Known reports the recorded value of (asteroid, kind) regardless of
// visibility. The resolver uses it for the true yield on a probed asteroid.
func (s *IntelStore) Known(asteroid, kind string) (int, bool) {
	i, ok := s.index[factKey{asteroid, kind}]
	if !ok {
		return 0, false
	}
	return s.facts[i].Value, true
}

// Combo classifies the intel state for a Mine at asteroid, from role's point
// of view in currentRound. Probe intel is the max-minerals fact; robot intel
// is either mining-cost fact.
func (s *IntelStore) Combo(role Role, asteroid string, currentRound int) string {
	_, probe := s.VisibleValue(role, asteroid, FactMaxMinerals, currentRound)
	_, shallow := s.VisibleValue(role, asteroid, FactShallowCost, currentRound)
	_, deep := s.VisibleValue(role, asteroid, FactDeepCost, currentRound)
	robot := shallow || deep

	switch {
	case probe && robot:
		return ComboProbeRobot
	case probe:
		return ComboProbeOnly
	case robot:
		return ComboRobotOnly
	}
	return ComboNone
}
