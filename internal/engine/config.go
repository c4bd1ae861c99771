package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Condition and option values.
const (
	PressureHigh = "high"
	PressureLow  = "low"

	ComplexityHigh = "high"
	ComplexityLow  = "low"

	CaptainHuman = "human"
	CaptainLLM   = "llm"

	ProbeCapSession = "session"
	ProbeCapRound   = "round"
)

// Config is the immutable session configuration. It is loaded once at
// session creation and validated before the first round starts; a Crew never
// mutates it.
type Config struct {
	Pressure    string `yaml:"pressure"`
	Complexity  string `yaml:"complexity"`
	CaptainType string `yaml:"captain_type"`
	Seed        int64  `yaml:"seed"`

	// ScoredRounds counts rounds 1..N. Round 0 is always a training round.
	ScoredRounds int `yaml:"scored_rounds"`

	PUPerRound  int            `yaml:"pu_per_round"`
	TravelCosts map[string]int `yaml:"travel_costs"`

	ProbeCost       int `yaml:"probe_cost"`
	RobotCost       int `yaml:"robot_cost"`
	MineShallowCost int `yaml:"mine_shallow_cost"`
	MineDeepCost    int `yaml:"mine_deep_cost"`

	BriefingHighPressureMs int `yaml:"briefing_high_pressure_ms"`
	BriefingLowPressureMs  int `yaml:"briefing_low_pressure_ms"`
	ActionStageMs          int `yaml:"action_stage_ms"`
	ResultStageMs          int `yaml:"result_stage_ms"`

	// ProbabilityMatrix is keyed by depth then intel combo.
	ProbabilityMatrix map[string]map[string]float64 `yaml:"probability_matrix"`

	// FallbackYield is the mineral yield for a successful Mine on an
	// asteroid whose max-minerals value was never probed.
	FallbackYield int `yaml:"fallback_yield"`

	// ProbeCap bounds the Navigator's SEND_PROBE actions; ProbeCapScope
	// selects whether the cap counts per session or per round.
	ProbeCap      int    `yaml:"probe_cap"`
	ProbeCapScope string `yaml:"probe_cap_scope"`
}

// Defaults mirrors the reference experiment configuration.
func Defaults() Config {
	return Config{
		Pressure:     PressureLow,
		Complexity:   ComplexityLow,
		CaptainType:  CaptainHuman,
		Seed:         1337,
		ScoredRounds: 5,
		PUPerRound:   4,
		TravelCosts: map[string]int{
			"Alpha": 0,
			"Beta":  1,
			"Gamma": 2,
			"Omega": 3,
		},
		ProbeCost:              1,
		RobotCost:              1,
		MineShallowCost:        1,
		MineDeepCost:           2,
		BriefingHighPressureMs: 90_000,
		BriefingLowPressureMs:  180_000,
		ActionStageMs:          15_000,
		ResultStageMs:          15_000,
		ProbabilityMatrix: map[string]map[string]float64{
			DepthShallow: {
				ComboNone:       0.15,
				ComboProbeOnly:  0.35,
				ComboRobotOnly:  0.30,
				ComboProbeRobot: 0.55,
			},
			DepthDeep: {
				ComboNone:       0.30,
				ComboProbeOnly:  0.55,
				ComboRobotOnly:  0.50,
				ComboProbeRobot: 0.80,
			},
		},
		FallbackYield: 30,
		ProbeCap:      2,
		ProbeCapScope: ProbeCapSession,
	}
}

// Load reads a yaml config over the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config yaml: %w", err)
	}
	return cfg, nil
}

// ConfigError is fatal: it is raised only at session setup and prevents the
// session from starting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func confErr(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the configuration for completeness. It must pass before
// the first round starts.
func (c Config) Validate() error {
	switch c.Pressure {
	case PressureHigh, PressureLow:
	default:
		return confErr("pressure", "want %q or %q, got %q", PressureHigh, PressureLow, c.Pressure)
	}
	switch c.Complexity {
	case ComplexityHigh, ComplexityLow:
	default:
		return confErr("complexity", "want %q or %q, got %q", ComplexityHigh, ComplexityLow, c.Complexity)
	}
	switch c.CaptainType {
	case CaptainHuman, CaptainLLM:
	default:
		return confErr("captain_type", "want %q or %q, got %q", CaptainHuman, CaptainLLM, c.CaptainType)
	}
	if c.ScoredRounds <= 0 {
		return confErr("scored_rounds", "must be positive, got %d", c.ScoredRounds)
	}
	if c.PUPerRound <= 0 {
		return confErr("pu_per_round", "must be positive, got %d", c.PUPerRound)
	}
	for _, name := range AsteroidNames {
		cost, ok := c.TravelCosts[name]
		if !ok {
			return confErr("travel_costs", "missing asteroid %s", name)
		}
		if cost < 0 {
			return confErr("travel_costs", "%s: negative cost %d", name, cost)
		}
	}
	for field, cost := range map[string]int{
		"probe_cost":        c.ProbeCost,
		"robot_cost":        c.RobotCost,
		"mine_shallow_cost": c.MineShallowCost,
		"mine_deep_cost":    c.MineDeepCost,
	} {
		if cost < 0 {
			return confErr(field, "negative cost %d", cost)
		}
	}
	for field, ms := range map[string]int{
		"briefing_high_pressure_ms": c.BriefingHighPressureMs,
		"briefing_low_pressure_ms":  c.BriefingLowPressureMs,
		"action_stage_ms":           c.ActionStageMs,
		"result_stage_ms":           c.ResultStageMs,
	} {
		if ms <= 0 {
			return confErr(field, "must be positive, got %d", ms)
		}
	}
	for _, depth := range []string{DepthShallow, DepthDeep} {
		row, ok := c.ProbabilityMatrix[depth]
		if !ok {
			return confErr("probability_matrix", "missing depth %s", depth)
		}
		for _, combo := range []string{ComboNone, ComboProbeOnly, ComboRobotOnly, ComboProbeRobot} {
			p, ok := row[combo]
			if !ok {
				return confErr("probability_matrix", "%s: missing combo %s", depth, combo)
			}
			if p < 0 || p > 1 {
				return confErr("probability_matrix", "%s/%s: probability %v out of [0,1]", depth, combo, p)
			}
		}
	}
	if c.FallbackYield < 0 {
		return confErr("fallback_yield", "must be non-negative, got %d", c.FallbackYield)
	}
	if c.ProbeCap < 0 {
		return confErr("probe_cap", "must be non-negative, got %d", c.ProbeCap)
	}
	switch c.ProbeCapScope {
	case ProbeCapSession, ProbeCapRound:
	default:
		return confErr("probe_cap_scope", "want %q or %q, got %q", ProbeCapSession, ProbeCapRound, c.ProbeCapScope)
	}
	return nil
}

// BriefingTime returns the briefing countdown for the session's pressure
// condition.
func (c Config) BriefingTime() time.Duration {
	if c.Pressure == PressureHigh {
		return time.Duration(c.BriefingHighPressureMs) * time.Millisecond
	}
	return time.Duration(c.BriefingLowPressureMs) * time.Millisecond
}

func (c Config) ActionTime() time.Duration {
	return time.Duration(c.ActionStageMs) * time.Millisecond
}

func (c Config) ResultTime() time.Duration {
	return time.Duration(c.ResultStageMs) * time.Millisecond
}
