package graph_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	torchdata "github.com/PierreGtch/TorchData"
	"github.com/PierreGtch/TorchData/graph"
)

func passThrough(name string, source torchdata.IterPipe) *torchdata.Mapper {
	return torchdata.NewMapper(name, source, func(ctx context.Context, item any) (any, error) {
		return item, nil
	})
}

func collect(t *testing.T, p torchdata.IterPipe) []any {
	t.Helper()
	items, err := torchdata.Collect(context.Background(), p)
	if err != nil {
		t.Fatalf("Collect(%s) error = %v", p.Name(), err)
	}
	return items
}

func names(pipes []torchdata.Pipe) []string {
	out := make([]string, len(pipes))
	for i, p := range pipes {
		out[i] = p.Name()
	}
	return out
}

func TestTraverseLinearChain(t *testing.T) {
	src := torchdata.Wrap("src", 1, 2)
	mid := passThrough("mid", src)
	top := passThrough("top", mid)

	g := graph.Traverse(top)
	if g.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 terminal entry", g.Len())
	}
	if g.Roots()[0] != torchdata.Pipe(top) {
		t.Fatalf("root = %v, want the traversed pipe", g.Roots()[0])
	}

	sub, ok := g.Sub(top)
	if !ok || sub.Len() != 1 || sub.Roots()[0] != torchdata.Pipe(mid) {
		t.Fatalf("subgraph of top = %v, want [mid]", sub)
	}
	sub, ok = sub.Sub(mid)
	if !ok || sub.Len() != 1 || sub.Roots()[0] != torchdata.Pipe(src) {
		t.Fatalf("subgraph of mid = %v, want [src]", sub)
	}
	sub, ok = sub.Sub(src)
	if !ok || sub.Len() != 0 {
		t.Fatalf("subgraph of src = %v, want empty", sub)
	}
}

func TestTraverseSharedSubgraphOnce(t *testing.T) {
	// Diamond: both zipper inputs lead back to the same source pipe.
	src := torchdata.Wrap("src", 1)
	left := passThrough("left", src)
	right := passThrough("right", src)
	z, err := torchdata.NewIterKeyZipper("zip", left, right,
		func(item any) (any, error) { return item, nil })
	if err != nil {
		t.Fatalf("NewIterKeyZipper() error = %v", err)
	}

	g := graph.Traverse(z)
	all := graph.ListAll(g)
	if len(all) != 4 {
		t.Fatalf("ListAll() = %v, want 4 distinct pipes", names(all))
	}

	// The shared source must appear under both zipper inputs as the same
	// subgraph object.
	zSub, _ := g.Sub(z)
	leftSub, _ := zSub.Sub(left)
	rightSub, _ := zSub.Sub(right)
	ls, _ := leftSub.Sub(src)
	rs, _ := rightSub.Sub(src)
	if ls != rs {
		t.Error("shared source traversed into two distinct subgraph objects")
	}
}

func TestListAllOrderAndExclusion(t *testing.T) {
	src := torchdata.Wrap("src", 1)
	mid := passThrough("mid", src)
	top := passThrough("top", mid)
	g := graph.Traverse(top)

	got := names(graph.ListAll(g))
	if !reflect.DeepEqual(got, []string{"top", "mid", "src"}) {
		t.Errorf("ListAll() = %v, want [top mid src]", got)
	}

	// Excluding mid removes it and everything it reaches.
	got = names(graph.ListAll(g, mid))
	if !reflect.DeepEqual(got, []string{"top"}) {
		t.Errorf("ListAll(exclude mid) = %v, want [top]", got)
	}
}

func TestFindByTypeExactMatch(t *testing.T) {
	src := torchdata.Wrap("src", 1)
	mid := passThrough("mid", src)
	top := passThrough("top", mid)
	g := graph.Traverse(top)

	mappers := graph.FindByType(g, reflect.TypeOf(&torchdata.Mapper{}))
	if len(mappers) != 2 {
		t.Fatalf("FindByType(Mapper) = %v, want 2 pipes", names(mappers))
	}
	if mappers[0] != torchdata.Pipe(top) || mappers[1] != torchdata.Pipe(mid) {
		t.Errorf("FindByType(Mapper) = %v, want [top mid] in discovery order",
			names(mappers))
	}

	wrappers := graph.Find[*torchdata.IterableWrapper](g)
	if len(wrappers) != 1 || wrappers[0] != src {
		t.Errorf("Find[IterableWrapper] = %v, want [src]", wrappers)
	}

	ranges := graph.Find[*torchdata.RangePipe](g)
	if len(ranges) != 0 {
		t.Errorf("Find[RangePipe] = %v, want none", ranges)
	}
}

func TestFindDeduplicatesSharedPipes(t *testing.T) {
	src := torchdata.Wrap("src", 1)
	left := passThrough("left", src)
	right := passThrough("right", src)
	z, err := torchdata.NewIterKeyZipper("zip", left, right,
		func(item any) (any, error) { return item, nil })
	if err != nil {
		t.Fatalf("NewIterKeyZipper() error = %v", err)
	}

	wrappers := graph.Find[*torchdata.IterableWrapper](graph.Traverse(z))
	if len(wrappers) != 1 {
		t.Errorf("Find[IterableWrapper] found %d pipes, want 1 despite two paths",
			len(wrappers))
	}
}

func TestReplaceMidPipe(t *testing.T) {
	src := torchdata.Wrap("src", 1, 2, 3)
	old := torchdata.NewMapper("double", src, func(ctx context.Context, item any) (any, error) {
		return item.(int) * 2, nil
	})
	top := passThrough("top", old)

	repl := torchdata.NewMapper("triple", src, func(ctx context.Context, item any) (any, error) {
		return item.(int) * 3, nil
	})

	g, err := graph.Replace(graph.Traverse(top), old, repl)
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if g.Roots()[0] != torchdata.Pipe(top) {
		t.Fatalf("root after Replace = %v, want top", g.Roots()[0])
	}
	got := names(graph.ListAll(g))
	if !reflect.DeepEqual(got, []string{"top", "triple", "src"}) {
		t.Errorf("pipes after Replace = %v, want [top triple src]", got)
	}

	items := collect(t, top)
	if !reflect.DeepEqual(items, []any{3, 6, 9}) {
		t.Errorf("Collect() = %v, want [3 6 9]", items)
	}
}

func TestReplaceTerminalPipe(t *testing.T) {
	src := torchdata.Wrap("src", 1, 2)
	old := passThrough("old", src)

	repl := torchdata.NewMapper("new", src, func(ctx context.Context, item any) (any, error) {
		return item.(int) + 10, nil
	})

	g, err := graph.Replace(graph.Traverse(old), old, repl)
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if g.Roots()[0] != torchdata.Pipe(repl) {
		t.Fatalf("root after Replace = %v, want the replacement", g.Roots()[0])
	}
	items := collect(t, repl)
	if !reflect.DeepEqual(items, []any{11, 12}) {
		t.Errorf("Collect() = %v, want [11 12]", items)
	}
}

func TestReplaceRewiresEveryReceiver(t *testing.T) {
	// Both zipper inputs read the same mid pipe; Replace must rewire both.
	src := torchdata.Wrap("src", 1)
	mid := passThrough("mid", src)
	left := passThrough("left", mid)
	right := passThrough("right", mid)
	z, err := torchdata.NewIterKeyZipper("zip", left, right,
		func(item any) (any, error) { return item, nil })
	if err != nil {
		t.Fatalf("NewIterKeyZipper() error = %v", err)
	}

	repl := passThrough("repl", src)
	if _, err := graph.Replace(graph.Traverse(z), mid, repl); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if left.Sources()[0] != torchdata.Pipe(repl) {
		t.Error("left input still reads the replaced pipe")
	}
	if right.Sources()[0] != torchdata.Pipe(repl) {
		t.Error("right input still reads the replaced pipe")
	}
}

func TestRemoveSplicesPipeOut(t *testing.T) {
	src := torchdata.Wrap("src", 1, 2)
	mid := torchdata.NewMapper("negate", src, func(ctx context.Context, item any) (any, error) {
		return -item.(int), nil
	})
	top := passThrough("top", mid)

	g, err := graph.Remove(graph.Traverse(top), mid)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	got := names(graph.ListAll(g))
	if !reflect.DeepEqual(got, []string{"top", "src"}) {
		t.Errorf("pipes after Remove = %v, want [top src]", got)
	}
	items := collect(t, top)
	if !reflect.DeepEqual(items, []any{1, 2}) {
		t.Errorf("Collect() = %v, want [1 2]", items)
	}
}

func TestReplaceRoundTrip(t *testing.T) {
	// Substituting a pipe and then substituting it back reproduces the
	// original pipeline: same pipe set, same root, same output.
	src := torchdata.Wrap("src", 1, 2, 3)
	old := torchdata.NewMapper("double", src, func(ctx context.Context, item any) (any, error) {
		return item.(int) * 2, nil
	})
	top := passThrough("top", old)

	repl := torchdata.NewMapper("triple", src, func(ctx context.Context, item any) (any, error) {
		return item.(int) * 3, nil
	})

	wantNames := names(graph.ListAll(graph.Traverse(top)))
	wantItems := collect(t, top)

	g, err := graph.Replace(graph.Traverse(top), old, repl)
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	g, err = graph.Replace(g, repl, old)
	if err != nil {
		t.Fatalf("Replace() back error = %v", err)
	}

	if g.Roots()[0] != torchdata.Pipe(top) {
		t.Fatalf("root after round trip = %v, want top", g.Roots()[0])
	}
	got := names(graph.ListAll(g))
	if !reflect.DeepEqual(got, wantNames) {
		t.Errorf("pipes after round trip = %v, want %v", got, wantNames)
	}
	if top.Sources()[0] != torchdata.Pipe(old) {
		t.Errorf("top source after round trip = %v, want the original mapper", top.Sources()[0])
	}
	items := collect(t, top)
	if !reflect.DeepEqual(items, wantItems) {
		t.Errorf("Collect() after round trip = %v, want %v", items, wantItems)
	}
}

func TestRemoveThenReinsert(t *testing.T) {
	src := torchdata.Wrap("src", 1, 2)
	mid := torchdata.NewMapper("negate", src, func(ctx context.Context, item any) (any, error) {
		return -item.(int), nil
	})
	top := passThrough("top", mid)

	wantNames := names(graph.ListAll(graph.Traverse(top)))
	wantItems := collect(t, top)

	g, err := graph.Remove(graph.Traverse(top), mid)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	// The spliced-out pipe keeps its own source slot, so rewiring its
	// predecessor's receivers back to it reinserts it where it was.
	g, err = graph.Replace(g, src, mid)
	if err != nil {
		t.Fatalf("Replace() to reinsert error = %v", err)
	}

	got := names(graph.ListAll(g))
	if !reflect.DeepEqual(got, wantNames) {
		t.Errorf("pipes after reinsert = %v, want %v", got, wantNames)
	}
	items := collect(t, top)
	if !reflect.DeepEqual(items, wantItems) {
		t.Errorf("Collect() after reinsert = %v, want %v", items, wantItems)
	}
}

func TestRemoveTerminalPipe(t *testing.T) {
	src := torchdata.Wrap("src", 1)
	top := passThrough("top", src)

	g, err := graph.Remove(graph.Traverse(top), top)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if g.Roots()[0] != torchdata.Pipe(src) {
		t.Errorf("root after removing terminal = %v, want src", g.Roots()[0])
	}
}

func TestRemoveErrors(t *testing.T) {
	src := torchdata.Wrap("src", 1)
	left := passThrough("left", src)
	right := passThrough("right", src)
	z, err := torchdata.NewIterKeyZipper("zip", left, right,
		func(item any) (any, error) { return item, nil })
	if err != nil {
		t.Fatalf("NewIterKeyZipper() error = %v", err)
	}
	g := graph.Traverse(z)

	if _, err := graph.Remove(g, src); !errors.Is(err, graph.ErrRemoveSource) {
		t.Errorf("Remove(source) error = %v, want ErrRemoveSource", err)
	}
	if _, err := graph.Remove(g, z); !errors.Is(err, graph.ErrRemoveMultiInput) {
		t.Errorf("Remove(zipper) error = %v, want ErrRemoveMultiInput", err)
	}
}

func TestRewriteRequiresSingleTerminal(t *testing.T) {
	src := torchdata.Wrap("src", 1)
	top := passThrough("top", src)
	g := graph.Traverse(top)
	sub, _ := g.Sub(top)
	// The source's subgraph has no entries at all, which also fails the
	// single-terminal check.
	emptySub, _ := sub.Sub(src)

	if _, err := graph.Replace(emptySub, src, top); !errors.Is(err, graph.ErrMultipleRoots) {
		t.Errorf("Replace(empty graph) error = %v, want ErrMultipleRoots", err)
	}
	if _, err := graph.Remove(emptySub, top); !errors.Is(err, graph.ErrMultipleRoots) {
		t.Errorf("Remove(empty graph) error = %v, want ErrMultipleRoots", err)
	}
}

func TestTraverseSplitterBranches(t *testing.T) {
	// A splitter branch's predecessor chain runs through the shared
	// container down to the upstream source.
	src := torchdata.Range("numbers", 0, 4, 1)
	branches, err := torchdata.RoundRobinDemux("demux", src, 2)
	if err != nil {
		t.Fatalf("RoundRobinDemux() error = %v", err)
	}

	all := graph.ListAll(graph.Traverse(branches[0]))
	got := names(all)
	if !reflect.DeepEqual(got, []string{"demux[0]", "demux", "numbers"}) {
		t.Errorf("ListAll() = %v, want [demux[0] demux numbers]", got)
	}

	ranges := graph.Find[*torchdata.RangePipe](graph.Traverse(branches[1]))
	if len(ranges) != 1 || ranges[0] != src {
		t.Errorf("Find[RangePipe] = %v, want the upstream source", ranges)
	}
}
