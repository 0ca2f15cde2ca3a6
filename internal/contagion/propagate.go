package contagion

import (
	"math"

	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/errors"
)

// Options controls one propagation run
type Options struct {
	Decay         float64 // blend factor, must be in (0,1)
	MaxIterations int
	Epsilon       float64 // convergence threshold on max per-entity delta
}

// Report describes how a propagation run terminated. Converged=false means
// the iteration cap was hit before the epsilon criterion; the result is
// still usable but approximate.
type Report struct {
	Iterations int
	Converged  bool
	MaxDelta   float64
}

// Propagate diffuses risk across the graph. Each iteration computes, for
// every entity with incoming edges,
//
//	next = prev*(1-decay) + decay * Σ(weight * prev[neighbor])
//
// reading all neighbor values from the previous iteration's snapshot
// (double-buffered Jacobi update), so the result is independent of entity
// visitation order. Entities with no incoming edges keep their initial risk
// untouched.
//
// With decay in (0,1) and weights ≤ 1 the update is a contraction, so cycles
// in the graph cannot diverge; the iteration cap exists only to bound work.
func (g *Graph) Propagate(initial map[string]float64, opts Options) (map[string]float64, Report, error) {
	if opts.Decay <= 0 || opts.Decay >= 1 {
		return nil, Report{}, errors.InvalidInput("decay must be in (0,1), got %v", opts.Decay)
	}
	if opts.MaxIterations <= 0 {
		return nil, Report{}, errors.InvalidInput("max iterations must be positive, got %d", opts.MaxIterations)
	}

	prev := make([]float64, len(g.nodes))
	next := make([]float64, len(g.nodes))
	for i, id := range g.nodes {
		prev[i] = initial[id]
	}

	report := Report{}
	for iter := 0; iter < opts.MaxIterations; iter++ {
		maxDelta := 0.0
		for i := range g.nodes {
			in := g.incoming[i]
			if len(in) == 0 {
				next[i] = prev[i]
				continue
			}
			var transmitted float64
			for _, e := range in {
				transmitted += e.weight * prev[e.source]
			}
			next[i] = prev[i]*(1-opts.Decay) + opts.Decay*transmitted
			if d := math.Abs(next[i] - prev[i]); d > maxDelta {
				maxDelta = d
			}
		}
		prev, next = next, prev
		report.Iterations = iter + 1
		report.MaxDelta = maxDelta
		if maxDelta <= opts.Epsilon {
			report.Converged = true
			break
		}
	}

	result := make(map[string]float64, len(g.nodes))
	for i, id := range g.nodes {
		result[id] = prev[i]
	}
	return result, report, nil
}
