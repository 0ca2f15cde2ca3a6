// Package contagion models second-order risk transmission over a weighted
// directed graph of entities and computes propagated risk by iterative
// diffusion.
package contagion

import (
	"fmt"

	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/errors"
	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/models"
)

type edgeRef struct {
	source int
	weight float64
}

// Graph is the session-static entity topology. Construction validates every
// edge so propagation never has to (fail fast on malformed topology).
type Graph struct {
	nodes    []string
	index    map[string]int
	incoming [][]edgeRef
}

// NewGraph builds and validates the contagion graph. Edge weights must be in
// [0,1]; self-loops and duplicate (source, target) pairs are rejected with
// InvalidTopology, as are edges naming unknown entities.
func NewGraph(entityIDs []string, edges []models.ContagionEdge) (*Graph, error) {
	g := &Graph{
		nodes:    make([]string, 0, len(entityIDs)),
		index:    make(map[string]int, len(entityIDs)),
		incoming: make([][]edgeRef, 0, len(entityIDs)),
	}

	for _, id := range entityIDs {
		if _, dup := g.index[id]; dup {
			return nil, errors.InvalidTopology("duplicate entity id %q", id)
		}
		g.index[id] = len(g.nodes)
		g.nodes = append(g.nodes, id)
		g.incoming = append(g.incoming, nil)
	}

	seen := make(map[[2]string]bool, len(edges))
	for _, e := range edges {
		if e.Weight < 0 || e.Weight > 1 {
			return nil, errors.InvalidTopology("edge %s->%s: weight %v outside [0,1]", e.Source, e.Target, e.Weight)
		}
		if e.Source == e.Target {
			return nil, errors.InvalidTopology("edge %s->%s: self-loops are not allowed", e.Source, e.Target)
		}
		src, ok := g.index[e.Source]
		if !ok {
			return nil, errors.InvalidTopology("edge %s->%s: unknown source entity", e.Source, e.Target)
		}
		dst, ok := g.index[e.Target]
		if !ok {
			return nil, errors.InvalidTopology("edge %s->%s: unknown target entity", e.Source, e.Target)
		}
		key := [2]string{e.Source, e.Target}
		if seen[key] {
			return nil, errors.InvalidTopology("duplicate edge %s->%s", e.Source, e.Target)
		}
		seen[key] = true
		g.incoming[dst] = append(g.incoming[dst], edgeRef{source: src, weight: e.Weight})
	}

	return g, nil
}

// Size returns the number of entities in the graph
func (g *Graph) Size() int {
	return len(g.nodes)
}

// Entities returns the entity ids in insertion order
func (g *Graph) Entities() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// InDegree returns how many incoming edges an entity has
func (g *Graph) InDegree(entityID string) (int, error) {
	idx, ok := g.index[entityID]
	if !ok {
		return 0, fmt.Errorf("unknown entity %q", entityID)
	}
	return len(g.incoming[idx]), nil
}
