package multicrew

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Justin2280/AI-Coordination-Wireframe/internal/engine"
)

// Config is the crews manifest: one entry per concurrent session. Each
// session entry overrides the engine defaults.
type Config struct {
	Crews []CrewSpec `yaml:"crews"`
}

type CrewSpec struct {
	ID string `yaml:"id"`

	// SeedOffset lets a manifest run many crews from one base seed.
	SeedOffset int64 `yaml:"seed_offset"`

	// Session holds engine.Config overrides; unset keys keep defaults.
	Session yaml.Node `yaml:"session"`
}

// SessionConfig resolves the spec into a full engine configuration.
func (s CrewSpec) SessionConfig() (engine.Config, error) {
	cfg := engine.Defaults()
	if !s.Session.IsZero() {
		if err := s.Session.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("crew %s: session: %w", s.ID, err)
		}
	}
	cfg.Seed += s.SeedOffset
	return cfg, nil
}

func Load(path string) (Config, error) {
	var cfg Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("crews yaml: %w", err)
	}
	if len(cfg.Crews) == 0 {
		return cfg, fmt.Errorf("crews yaml: no crews defined")
	}
	seen := map[string]struct{}{}
	for i, spec := range cfg.Crews {
		if spec.ID == "" {
			return cfg, fmt.Errorf("crews yaml: crew %d has empty id", i)
		}
		if _, dup := seen[spec.ID]; dup {
			return cfg, fmt.Errorf("crews yaml: duplicate crew id %q", spec.ID)
		}
		seen[spec.ID] = struct{}{}
	}
	return cfg, nil
}
