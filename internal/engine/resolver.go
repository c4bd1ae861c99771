package engine

import "math/rand"

// Resolver settles mining attempts against the session's probability matrix.
// It owns a private random source seeded once per session and advanced
// exactly once per Mine resolution, so a session's draw sequence is
// reproducible independent of request timing.
type Resolver struct {
	matrix map[string]map[string]float64
	rng    *rand.Rand
	draws  int
}

func NewResolver(cfg Config) *Resolver {
	return &Resolver{
		matrix: cfg.ProbabilityMatrix,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Probability returns the success probability for (depth, combo).
func (r *Resolver) Probability(depth, combo string) float64 {
	return r.matrix[depth][combo]
}

// Resolve draws one uniform number and reports the success probability used
// and whether the attempt succeeded. Draws are never retried; one outcome
// per Mine action is final.
func (r *Resolver) Resolve(depth, combo string) (p float64, success bool) {
	p = r.Probability(depth, combo)
	r.draws++
	return p, r.rng.Float64() < p
}

// Draws returns how many times the resolver has been advanced.
func (r *Resolver) Draws() int { return r.draws }
