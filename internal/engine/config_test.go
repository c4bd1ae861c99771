package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestConfigValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad pressure", func(c *Config) { c.Pressure = "extreme" }},
		{"bad complexity", func(c *Config) { c.Complexity = "" }},
		{"bad captain type", func(c *Config) { c.CaptainType = "robot" }},
		{"zero rounds", func(c *Config) { c.ScoredRounds = 0 }},
		{"zero budget", func(c *Config) { c.PUPerRound = 0 }},
		{"missing travel cost", func(c *Config) { delete(c.TravelCosts, "Omega") }},
		{"negative travel cost", func(c *Config) { c.TravelCosts["Beta"] = -1 }},
		{"negative probe cost", func(c *Config) { c.ProbeCost = -1 }},
		{"zero briefing", func(c *Config) { c.BriefingHighPressureMs = 0 }},
		{"missing depth row", func(c *Config) { delete(c.ProbabilityMatrix, DepthDeep) }},
		{"missing combo", func(c *Config) { delete(c.ProbabilityMatrix[DepthShallow], ComboRobotOnly) }},
		{"probability out of range", func(c *Config) { c.ProbabilityMatrix[DepthDeep][ComboNone] = 1.5 }},
		{"negative fallback yield", func(c *Config) { c.FallbackYield = -5 }},
		{"bad probe cap scope", func(c *Config) { c.ProbeCapScope = "weekly" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("validate accepted %s", tt.name)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("error is not a ConfigError: %v", err)
			}
		})
	}
}

func TestConfigLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
pressure: high
complexity: high
captain_type: llm
seed: 99
pu_per_round: 6
probe_cap_scope: round
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pressure != PressureHigh || cfg.Complexity != ComplexityHigh || cfg.CaptainType != CaptainLLM {
		t.Fatalf("conditions not applied: %+v", cfg)
	}
	if cfg.Seed != 99 || cfg.PUPerRound != 6 {
		t.Fatalf("overrides not applied: seed=%d pu=%d", cfg.Seed, cfg.PUPerRound)
	}
	if cfg.ProbeCapScope != ProbeCapRound {
		t.Fatalf("probe cap scope: %s", cfg.ProbeCapScope)
	}
	// Untouched keys keep their defaults.
	if cfg.MineDeepCost != 2 || cfg.TravelCosts["Gamma"] != 2 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config invalid: %v", err)
	}
}

func TestBriefingTimeFollowsPressure(t *testing.T) {
	cfg := Defaults()
	cfg.Pressure = PressureHigh
	high := cfg.BriefingTime()
	cfg.Pressure = PressureLow
	low := cfg.BriefingTime()
	if high >= low {
		t.Fatalf("high-pressure briefing (%s) not shorter than low (%s)", high, low)
	}
}
