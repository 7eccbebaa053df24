// Package graph provides introspection and rewriting of pipeline graphs:
// traversal of a pipe's upstream DAG, queries over it, and in-place
// replacement or removal of pipes through their declared source slots.
//
// A Graph maps each pipe to the graph of its predecessors. Pipes are
// identified by their interface value (pointer identity), never by
// structural equality. Graphs are transient: every call to Traverse builds
// a fresh one, and rewrites return a freshly retraversed graph.
package graph

import (
	"errors"

	torchdata "github.com/PierreGtch/TorchData"
)

// Common errors.
var (
	// ErrMultipleRoots is returned by Replace and Remove when the graph does
	// not have exactly one terminal pipe.
	ErrMultipleRoots = errors.New("graph: expected a graph with a single terminal pipe")

	// ErrRemoveSource is returned by Remove for a pipe with no predecessors.
	ErrRemoveSource = errors.New("graph: cannot remove a source pipe")

	// ErrRemoveMultiInput is returned by Remove for a pipe with more than
	// one predecessor; the splice target would be ambiguous.
	ErrRemoveMultiInput = errors.New("graph: cannot remove a pipe with multiple source pipes")
)

// Graph is an insertion-ordered mapping from pipe to the graph of its
// predecessors. A graph built by Traverse has exactly one top-level entry,
// the terminal pipe.
type Graph struct {
	order   []torchdata.Pipe
	entries map[torchdata.Pipe]*Graph
}

// Roots returns the top-level pipes in insertion order.
func (g *Graph) Roots() []torchdata.Pipe {
	return g.order
}

// Sub returns the predecessor graph of a top-level pipe.
func (g *Graph) Sub(p torchdata.Pipe) (*Graph, bool) {
	sub, ok := g.entries[p]
	return sub, ok
}

// Len returns the number of top-level entries.
func (g *Graph) Len() int { return len(g.order) }

func (g *Graph) add(p torchdata.Pipe, sub *Graph) {
	if _, ok := g.entries[p]; ok {
		return
	}
	g.order = append(g.order, p)
	g.entries[p] = sub
}

func newGraph() *Graph {
	return &Graph{entries: make(map[torchdata.Pipe]*Graph)}
}

// Traverse builds the dependency graph of pipe: a single top-level entry
// for the pipe itself, whose subgraph covers everything reachable through
// declared source slots. Shared sub-DAGs are traversed once and share one
// subgraph object. Within one call, identity assignment is stable.
func Traverse(pipe torchdata.Pipe) *Graph {
	t := &traversal{
		memo:   make(map[torchdata.Pipe]*Graph),
		onPath: make(map[torchdata.Pipe]bool),
	}
	g := newGraph()
	g.add(pipe, t.subgraph(pipe))
	return g
}

type traversal struct {
	memo   map[torchdata.Pipe]*Graph
	onPath map[torchdata.Pipe]bool
}

func (t *traversal) subgraph(pipe torchdata.Pipe) *Graph {
	if sub, ok := t.memo[pipe]; ok {
		return sub
	}

	sub := newGraph()
	t.onPath[pipe] = true
	for _, src := range pipe.Sources() {
		if src == nil || t.onPath[src] {
			// A pipe already on the current path indicates a cycle;
			// pipelines are DAGs, so stop rather than recurse forever.
			continue
		}
		sub.add(src, t.subgraph(src))
	}
	delete(t.onPath, pipe)

	t.memo[pipe] = sub
	return sub
}
