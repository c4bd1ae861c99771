package engine

import "math/rand"

// AsteroidNames is the fixed field explored by every session, in display
// order.
var AsteroidNames = []string{"Alpha", "Beta", "Gamma", "Omega"}

// Asteroid holds the true (hidden) values for one asteroid. MaxMinerals and
// the mining costs become knowable only through intel facts; TravelCost is
// public from the session config.
type Asteroid struct {
	Name        string
	TravelCost  int
	MaxMinerals int
	ShallowCost int
	DeepCost    int
	Mined       bool
	MinedRound  int
}

// generateAsteroids draws the hidden asteroid values from the session seed.
// Ranges follow the reference setup: the starting asteroid Alpha has fixed
// mining costs, the others get progressively richer mineral ranges.
func generateAsteroids(cfg Config, rng *rand.Rand) map[string]*Asteroid {
	between := func(lo, hi int) int { return lo + rng.Intn(hi-lo+1) }

	out := map[string]*Asteroid{
		"Alpha": {
			Name:        "Alpha",
			MaxMinerals: between(50, 100),
			ShallowCost: 1,
			DeepCost:    2,
		},
		"Beta": {
			Name:        "Beta",
			MaxMinerals: between(60, 120),
			ShallowCost: between(1, 3),
			DeepCost:    between(2, 4),
		},
		"Gamma": {
			Name:        "Gamma",
			MaxMinerals: between(70, 140),
			ShallowCost: between(1, 3),
			DeepCost:    between(2, 4),
		},
		"Omega": {
			Name:        "Omega",
			MaxMinerals: between(80, 160),
			ShallowCost: between(1, 3),
			DeepCost:    between(2, 4),
		},
	}
	for name, a := range out {
		a.TravelCost = cfg.TravelCosts[name]
	}
	return out
}
