// Package depgraph orders models so that every model follows the models it
// depends on, and reports dependency cycles.
package depgraph

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Graph is a dependency graph over model ids. Edges run from a dependency to
// its dependent.
type Graph struct {
	g     *simple.DirectedGraph
	ids   []string
	nodes map[string]int64
	self  map[string]bool
}

// New builds a graph from deps, which maps an id to the ids it depends on.
// Ids that only appear as dependencies become nodes too.
func New(deps map[string][]string) *Graph {
	seen := map[string]bool{}
	for id, ds := range deps {
		seen[id] = true
		for _, d := range ds {
			seen[d] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	g := &Graph{
		g:     simple.NewDirectedGraph(),
		ids:   ids,
		nodes: make(map[string]int64, len(ids)),
		self:  map[string]bool{},
	}
	// node ids follow lexical order, so gonum's lexical tie-break sorts by name
	for i, id := range ids {
		g.nodes[id] = int64(i)
		g.g.AddNode(simple.Node(i))
	}
	for id, ds := range deps {
		for _, d := range ds {
			if d == id {
				g.self[id] = true
				continue
			}
			g.g.SetEdge(simple.Edge{F: simple.Node(g.nodes[d]), T: simple.Node(g.nodes[id])})
		}
	}
	return g
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.ids) }

func (g *Graph) names(nodes []graph.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, g.ids[n.ID()])
	}
	sort.Strings(out)
	return out
}

// Cycles returns every group of mutually dependent ids, including ids that
// depend on themselves. Ids within a group and the groups are sorted.
func (g *Graph) Cycles() [][]string {
	var out [][]string
	for _, scc := range topo.TarjanSCC(g.g) {
		if len(scc) == 1 && !g.self[g.ids[scc[0].ID()]] {
			continue
		}
		out = append(out, g.names(scc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// Order returns every id with dependencies first. Ties are broken by id and
// the members of a cycle are emitted together in id order.
func (g *Graph) Order() []string {
	sorted, err := topo.SortStabilized(g.g, nil)
	if err == nil {
		return g.flatten(sorted, nil)
	}
	var cyclic topo.Unorderable
	if !errors.As(err, &cyclic) {
		return append([]string(nil), g.ids...)
	}
	return g.flatten(sorted, cyclic)
}

// flatten replaces the nil markers SortStabilized leaves for cyclic
// components with the components' members.
func (g *Graph) flatten(sorted []graph.Node, cyclic topo.Unorderable) []string {
	out := make([]string, 0, len(g.ids))
	next := 0
	for _, n := range sorted {
		if n != nil {
			out = append(out, g.ids[n.ID()])
			continue
		}
		if next < len(cyclic) {
			out = append(out, g.names(cyclic[next])...)
			next++
		}
	}
	return out
}
