package graph

import (
	"fmt"

	torchdata "github.com/PierreGtch/TorchData"
)

// Replace substitutes newPipe for oldPipe in the graph and returns a fresh
// traversal of the resulting pipeline. The graph must have exactly one
// terminal pipe. If oldPipe is the terminal pipe itself, the pipeline is
// rebuilt from newPipe; otherwise every receiver holding oldPipe in a
// source slot is rewired to newPipe.
//
// Only the first matching slot per receiver is reassigned: pipes are
// assumed to hold at most one reference to a given predecessor.
func Replace(g *Graph, oldPipe, newPipe torchdata.Pipe) (*Graph, error) {
	if g.Len() != 1 {
		return nil, fmt.Errorf("%w: got %d terminal pipes", ErrMultipleRoots, g.Len())
	}

	terminal := g.Roots()[0]
	if terminal == oldPipe {
		g = Traverse(newPipe)
		terminal = newPipe
	}

	for _, receiver := range ListAll(g) {
		if err := swapFirst(receiver, oldPipe, newPipe); err != nil {
			return nil, err
		}
	}

	return Traverse(terminal), nil
}

// Remove splices pipe out of the graph: every receiver of pipe is rewired
// to pipe's single predecessor. The graph must have exactly one terminal
// pipe; the removed pipe must have exactly one predecessor (a source cannot
// be removed, and a multi-input pipe has no unambiguous splice target).
func Remove(g *Graph, pipe torchdata.Pipe) (*Graph, error) {
	if g.Len() != 1 {
		return nil, fmt.Errorf("%w: got %d terminal pipes", ErrMultipleRoots, g.Len())
	}

	sources := pipe.Sources()
	switch {
	case len(sources) == 0:
		return nil, fmt.Errorf("%w: %q", ErrRemoveSource, pipe.Name())
	case len(sources) > 1:
		return nil, fmt.Errorf("%w: %q has %d source pipes", ErrRemoveMultiInput, pipe.Name(), len(sources))
	}
	predecessor := sources[0]

	terminal := g.Roots()[0]
	if terminal == pipe {
		terminal = predecessor
	}

	for _, receiver := range ListAll(g) {
		if receiver == pipe {
			continue
		}
		if err := swapFirst(receiver, pipe, predecessor); err != nil {
			return nil, err
		}
	}

	return Traverse(terminal), nil
}

// swapFirst reassigns the first source slot of receiver holding oldPipe to
// newPipe. Receivers not referencing oldPipe are left untouched.
func swapFirst(receiver, oldPipe, newPipe torchdata.Pipe) error {
	for i, src := range receiver.Sources() {
		if src != oldPipe {
			continue
		}
		if err := receiver.SetSource(i, newPipe); err != nil {
			return fmt.Errorf("graph: rewire %q: %w", receiver.Name(), err)
		}
		return nil
	}
	return nil
}
