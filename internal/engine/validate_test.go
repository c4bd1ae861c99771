package engine

import (
	"log"
	"os"
	"testing"
	"time"

	"github.com/Justin2280/AI-Coordination-Wireframe/internal/protocol"
)

func testLogger() *log.Logger {
	return log.New(os.Stdout, "[test] ", log.LstdFlags)
}

// stagedCrew builds a crew with a hand-placed round for direct validator
// tests; the Run loop is not started.
func stagedCrew(t *testing.T, mutate func(*Config)) *Crew {
	t.Helper()
	cfg := Defaults()
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New("crew_test", cfg, testLogger())
	if err != nil {
		t.Fatalf("new crew: %v", err)
	}
	c.round = newRoundState(1, cfg, time.Now())
	c.round.stage = StageAction
	return c
}

func TestValidate_StageViolation(t *testing.T) {
	c := stagedCrew(t, nil)
	for _, stage := range []Stage{StageBriefing, StageResult} {
		c.round.stage = stage
		_, rej := c.validateAction(RoleNavigator, Action{Kind: KindTravel, Destination: "Beta"}, c.round)
		if rej == nil || rej.Code != protocol.ErrStageViolation {
			t.Fatalf("stage %s: rejection %+v", stage, rej)
		}
	}
}

func TestValidate_DuplicateAfterDeadline(t *testing.T) {
	c := stagedCrew(t, nil)
	if _, rej := c.validateAction(RoleNavigator, Action{Kind: KindTravel, Destination: "Beta"}, c.round); rej != nil {
		t.Fatalf("setup: %+v", rej)
	}
	c.round.pending[RoleNavigator] = &pendingAction{act: Action{Kind: KindTravel, Destination: "Beta"}, cost: 1}

	c.round.stage = StageResult
	_, rej := c.validateAction(RoleNavigator, Action{Kind: KindSendProbe}, c.round)
	if rej == nil || rej.Code != protocol.ErrDuplicateAction {
		t.Fatalf("post-deadline resubmission: %+v", rej)
	}
}

func TestValidate_RolePermissions(t *testing.T) {
	c := stagedCrew(t, nil)

	tests := []struct {
		role Role
		act  Action
		code string
	}{
		{RoleCaptain, Action{Kind: KindTravel, Destination: "Beta"}, protocol.ErrRoleViolation},
		{RoleCaptain, Action{Kind: KindMine, Depth: DepthShallow}, protocol.ErrRoleViolation},
		{RoleNavigator, Action{Kind: KindMine, Depth: DepthShallow}, protocol.ErrRoleViolation},
		{RoleNavigator, Action{Kind: KindDeployRobot}, protocol.ErrRoleViolation},
		{RoleDriller, Action{Kind: KindTravel, Destination: "Beta"}, protocol.ErrRoleViolation},
		{RoleDriller, Action{Kind: KindSendProbe}, protocol.ErrRoleViolation},
		{RoleNavigator, Action{Kind: KindTravel, Destination: "Beta"}, ""},
		{RoleNavigator, Action{Kind: KindSendProbe}, ""},
		{RoleDriller, Action{Kind: KindDeployRobot}, ""},
		{RoleDriller, Action{Kind: KindMine, Depth: DepthDeep}, ""},
	}
	for _, tt := range tests {
		_, rej := c.validateAction(tt.role, tt.act, c.round)
		if tt.code == "" {
			if rej != nil {
				t.Errorf("%s %s: unexpected rejection %+v", tt.role, tt.act.Kind, rej)
			}
			continue
		}
		if rej == nil || rej.Code != tt.code {
			t.Errorf("%s %s: rejection %+v want %s", tt.role, tt.act.Kind, rej, tt.code)
		}
	}
}

func TestValidate_InsufficientPU(t *testing.T) {
	c := stagedCrew(t, func(cfg *Config) {
		cfg.TravelCosts["Omega"] = 9
	})
	_, rej := c.validateAction(RoleNavigator, Action{Kind: KindTravel, Destination: "Omega"}, c.round)
	if rej == nil || rej.Code != protocol.ErrInsufficientPU {
		t.Fatalf("rejection %+v want %s", rej, protocol.ErrInsufficientPU)
	}
}

func TestValidate_DomainChecks(t *testing.T) {
	c := stagedCrew(t, nil)

	// Unknown destination.
	if _, rej := c.validateAction(RoleNavigator, Action{Kind: KindTravel, Destination: "Zeta"}, c.round); rej == nil || rej.Code != protocol.ErrInvalidTarget {
		t.Fatalf("unknown destination: %+v", rej)
	}
	// Travelling to the current location.
	if _, rej := c.validateAction(RoleNavigator, Action{Kind: KindTravel, Destination: "Alpha"}, c.round); rej == nil || rej.Code != protocol.ErrInvalidTarget {
		t.Fatalf("travel to current: %+v", rej)
	}
	// Bad depth.
	if _, rej := c.validateAction(RoleDriller, Action{Kind: KindMine, Depth: "core"}, c.round); rej == nil || rej.Code != protocol.ErrInvalidTarget {
		t.Fatalf("bad depth: %+v", rej)
	}
	// Already-mined asteroid.
	c.asteroids[c.location].Mined = true
	if _, rej := c.validateAction(RoleDriller, Action{Kind: KindMine, Depth: DepthShallow}, c.round); rej == nil || rej.Code != protocol.ErrInvalidTarget {
		t.Fatalf("mined asteroid: %+v", rej)
	}
}

// A Mine is judged against the asteroid it would actually hit: the
// Navigator's locked travel destination when one exists, else the current
// location.
func TestValidate_MineTargetFollowsCommittedTravel(t *testing.T) {
	c := stagedCrew(t, nil)
	c.asteroids["Alpha"].Mined = true
	c.round.pending[RoleNavigator] = &pendingAction{act: Action{Kind: KindTravel, Destination: "Beta"}, cost: 1}

	// Sitting on a mined asteroid with travel locked elsewhere: fine.
	if _, rej := c.validateAction(RoleDriller, Action{Kind: KindMine, Depth: DepthShallow}, c.round); rej != nil {
		t.Fatalf("mine at travel destination rejected: %+v", rej)
	}

	// A mined destination is refused even though the origin is untouched.
	c.asteroids["Alpha"].Mined = false
	c.asteroids["Beta"].Mined = true
	_, rej := c.validateAction(RoleDriller, Action{Kind: KindMine, Depth: DepthShallow}, c.round)
	if rej == nil || rej.Code != protocol.ErrInvalidTarget {
		t.Fatalf("mine at mined destination: %+v", rej)
	}
}

func TestValidate_ProbeCap(t *testing.T) {
	t.Run("session scope", func(t *testing.T) {
		c := stagedCrew(t, nil)
		c.probesUsed = 2
		_, rej := c.validateAction(RoleNavigator, Action{Kind: KindSendProbe}, c.round)
		if rej == nil || rej.Code != protocol.ErrRoleViolation {
			t.Fatalf("capped probe: %+v", rej)
		}
	})
	t.Run("round scope ignores session total", func(t *testing.T) {
		c := stagedCrew(t, func(cfg *Config) { cfg.ProbeCapScope = ProbeCapRound; cfg.ProbeCap = 1 })
		c.probesUsed = 5
		if _, rej := c.validateAction(RoleNavigator, Action{Kind: KindSendProbe}, c.round); rej != nil {
			t.Fatalf("round-scoped cap counted session probes: %+v", rej)
		}
		c.round.probesThisRound = 1
		if _, rej := c.validateAction(RoleNavigator, Action{Kind: KindSendProbe}, c.round); rej == nil {
			t.Fatalf("round-scoped cap not enforced")
		}
	})
}

func TestValidate_IsSideEffectFree(t *testing.T) {
	c := stagedCrew(t, nil)
	before := c.round.ledger.Remaining()

	c.validateAction(RoleNavigator, Action{Kind: KindTravel, Destination: "Omega"}, c.round)
	c.validateAction(RoleDriller, Action{Kind: KindMine, Depth: DepthDeep}, c.round)
	c.validateAction(RoleCaptain, Action{Kind: KindTravel, Destination: "Beta"}, c.round)

	if c.round.ledger.Remaining() != before {
		t.Fatalf("validation debited the ledger")
	}
	if len(c.intel.Facts()) != 0 {
		t.Fatalf("validation recorded intel")
	}
	if len(c.round.pending) != 0 {
		t.Fatalf("validation stored actions")
	}
}

func TestGenerateAsteroids_SeedStable(t *testing.T) {
	cfg := Defaults()
	cfg.Seed = 777
	a, err := New("a", cfg, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	b, err := New("b", cfg, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range AsteroidNames {
		x, y := a.asteroids[name], b.asteroids[name]
		if x.MaxMinerals != y.MaxMinerals || x.ShallowCost != y.ShallowCost || x.DeepCost != y.DeepCost {
			t.Fatalf("asteroid %s diverged for identical seed: %+v vs %+v", name, x, y)
		}
	}
	if a.asteroids["Alpha"].ShallowCost != 1 || a.asteroids["Alpha"].DeepCost != 2 {
		t.Fatalf("Alpha costs not fixed: %+v", a.asteroids["Alpha"])
	}
}
