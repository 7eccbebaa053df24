package graph

import (
	"reflect"

	torchdata "github.com/PierreGtch/TorchData"
)

// FindByType walks the graph depth-first, pre-order, and collects every
// pipe whose exact runtime type is t. Each distinct pipe appears at most
// once regardless of how many paths reach it. Subtypes and interface
// satisfaction deliberately do not match: wrapper types that embed a pipe
// type must not be captured by a query for the wrapped type.
func FindByType(g *Graph, t reflect.Type) []torchdata.Pipe {
	var pipes []torchdata.Pipe
	visited := make(map[torchdata.Pipe]bool)

	var walk func(g *Graph)
	walk = func(g *Graph) {
		for _, p := range g.order {
			if visited[p] {
				continue
			}
			visited[p] = true
			if reflect.TypeOf(p) == t {
				pipes = append(pipes, p)
			}
			walk(g.entries[p])
		}
	}
	walk(g)

	return pipes
}

// Find is the typed form of FindByType: it collects every pipe in the graph
// whose exact runtime type is T.
func Find[T torchdata.Pipe](g *Graph) []T {
	var pipes []T
	for _, p := range FindByType(g, reflect.TypeOf((*T)(nil)).Elem()) {
		pipes = append(pipes, p.(T))
	}
	return pipes
}

// ListAll returns every pipe in the graph, in breadth-first discovery order
// and without duplicates. Pipes in exclude, and everything reachable from
// their own traversals, are omitted; this answers "which pipes were added
// downstream of these points".
func ListAll(g *Graph, exclude ...torchdata.Pipe) []torchdata.Pipe {
	visited := make(map[torchdata.Pipe]bool)

	for _, ex := range exclude {
		if ex == nil || visited[ex] {
			continue
		}
		for _, p := range ListAll(Traverse(ex)) {
			visited[p] = true
		}
	}

	type queued struct {
		pipe torchdata.Pipe
		sub  *Graph
	}
	var queue []queued
	for _, p := range g.order {
		if !visited[p] {
			visited[p] = true
			queue = append(queue, queued{p, g.entries[p]})
		}
	}

	var pipes []torchdata.Pipe
	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]
		pipes = append(pipes, head.pipe)
		for _, p := range head.sub.order {
			if !visited[p] {
				visited[p] = true
				queue = append(queue, queued{p, head.sub.entries[p]})
			}
		}
	}

	return pipes
}
