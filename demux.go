package torchdata

import (
	"context"
	"errors"
	"fmt"
)

const defaultSplitBufferSize = 1000

// DemuxOption configures a round-robin splitter.
type DemuxOption func(*roundRobinDemux)

// WithDemuxBufferSize bounds the total number of items buffered across all
// branches while they wait to be consumed. Use -1 for an unbounded buffer;
// any other non-positive value is a construction error. The default is 1000.
func WithDemuxBufferSize(n int) DemuxOption {
	return func(d *roundRobinDemux) { d.bufferSize = n }
}

// WithDemuxRelease sets the hook releasing buffered items discarded without
// being yielded. The default closes items implementing io.Closer.
func WithDemuxRelease(fn ReleaseFunc) DemuxOption {
	return func(d *roundRobinDemux) { d.release = fn }
}

// WithDemuxLogger sets the logger used for soft conditions.
func WithDemuxLogger(logger Logger) DemuxOption {
	return func(d *roundRobinDemux) { d.logger = logger }
}

// RoundRobinDemux splits source into numInstances branch pipes: the item at
// position i goes to branch i mod numInstances. The branches share one
// container holding upstream state, so consuming any branch may buffer items
// destined for the others; the buffer bound applies to the total across all
// branches and overflowing it is a hard error.
//
// numInstances must be at least 1. With numInstances == 1 the split is a
// no-op: the source itself is returned, with a warning.
func RoundRobinDemux(name string, source IterPipe, numInstances int, opts ...DemuxOption) ([]IterPipe, error) {
	if source == nil {
		return nil, fmt.Errorf("demux %q: source pipe is required", name)
	}
	if numInstances < 1 {
		return nil, fmt.Errorf("demux %q: expected at least 1 instance, got %d", name, numInstances)
	}

	d := &roundRobinDemux{
		name:       name,
		source:     source,
		n:          numInstances,
		bufferSize: defaultSplitBufferSize,
		release:    DefaultRelease,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.bufferSize <= 0 && d.bufferSize != -1 {
		return nil, fmt.Errorf("demux %q: buffer size must be positive or -1, got %d", name, d.bufferSize)
	}

	if numInstances == 1 {
		if d.logger != nil {
			d.logger.Warn(context.Background(), "round-robin split into 1 instance is a no-op, returning the source pipe",
				"pipe", name)
		}
		return []IterPipe{source}, nil
	}

	branches := make([]IterPipe, numInstances)
	for i := range branches {
		branches[i] = &demuxBranch{
			name:      fmt.Sprintf("%s[%d]", name, i),
			container: d,
			idx:       i,
		}
	}
	return branches, nil
}

// roundRobinDemux is the shared container behind the branch pipes. It is a
// graph node: each branch's only predecessor is the container, and the
// container's only predecessor is the upstream source.
type roundRobinDemux struct {
	name       string
	source     IterPipe
	n          int
	bufferSize int
	release    ReleaseFunc
	logger     Logger

	pass *demuxPass
}

// demuxPass is the state of one iteration pass, shared by all branches.
type demuxPass struct {
	srcIt    Iterator
	queues   [][]any // pending items per branch
	buffered int     // total across queues
	pos      int     // next source position
	srcDone  bool
	srcErr   error
	claimed  []bool // branch has a live iterator in this pass
	closed   []bool // branch finished (exhausted or closed)
}

// Name returns the container's identifier.
func (d *roundRobinDemux) Name() string { return d.name }

// Sources returns the single upstream pipe.
func (d *roundRobinDemux) Sources() []Pipe { return []Pipe{d.source} }

// SetSource reassigns the upstream pipe; the slot requires an IterPipe.
func (d *roundRobinDemux) SetSource(i int, src Pipe) error {
	if i != 0 {
		return fmt.Errorf("pipe %q has no source slot %d", d.name, i)
	}
	ip, ok := src.(IterPipe)
	if !ok {
		return fmt.Errorf("pipe %q source slot 0 requires an IterPipe, got %T", d.name, src)
	}
	d.source = ip
	return nil
}

// newPass abandons any current pass and starts a fresh one.
func (d *roundRobinDemux) newPass() *demuxPass {
	d.abandonPass()
	d.pass = &demuxPass{
		srcIt:   d.source.Iter(),
		queues:  make([][]any, d.n),
		claimed: make([]bool, d.n),
		closed:  make([]bool, d.n),
	}
	return d.pass
}

// abandonPass releases every still-buffered item and closes the source
// iterator.
func (d *roundRobinDemux) abandonPass() {
	p := d.pass
	if p == nil {
		return
	}
	d.pass = nil
	for i, q := range p.queues {
		for _, item := range q {
			d.release(item)
		}
		p.queues[i] = nil
	}
	p.buffered = 0
	if p.srcIt != nil {
		_ = p.srcIt.Close()
	}
}

// iterFor hands branch idx an iterator bound to the current pass. A branch
// re-iterating while it already holds a live iterator resets the whole pass,
// invalidating the other branches' iterators.
func (d *roundRobinDemux) iterFor(idx int) Iterator {
	if d.pass == nil || d.pass.claimed[idx] {
		d.newPass()
	}
	d.pass.claimed[idx] = true
	return &demuxBranchIter{d: d, pass: d.pass, idx: idx}
}

// next produces the next item for branch idx within pass p, buffering items
// that belong to other branches.
func (d *roundRobinDemux) next(ctx context.Context, p *demuxPass, idx int) (any, error) {
	if p.srcErr != nil {
		return nil, p.srcErr
	}
	if p != d.pass {
		return nil, ErrIteratorInvalid
	}

	if q := p.queues[idx]; len(q) > 0 {
		item := q[0]
		p.queues[idx] = q[1:]
		p.buffered--
		return item, nil
	}

	for {
		if p.srcDone {
			d.branchDone(p, idx)
			return nil, ErrEndOfStream
		}

		item, err := p.srcIt.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrEndOfStream) {
				p.srcDone = true
				continue
			}
			p.srcErr = err
			d.failPass(p)
			return nil, err
		}

		target := p.pos % d.n
		p.pos++
		if target == idx {
			return item, nil
		}

		if p.closed[target] {
			// Nobody will consume this item anymore.
			d.release(item)
			continue
		}
		p.queues[target] = append(p.queues[target], item)
		p.buffered++
		if d.bufferSize != -1 && p.buffered > d.bufferSize {
			err := fmt.Errorf("%w: demux %q exceeded its bound of %d buffered items", ErrBufferOverflow, d.name, d.bufferSize)
			p.srcErr = err
			d.failPass(p)
			return nil, err
		}
	}
}

// branchDone marks a branch finished and tears the pass down once every
// branch is finished.
func (d *roundRobinDemux) branchDone(p *demuxPass, idx int) {
	if p.closed[idx] {
		return
	}
	p.closed[idx] = true
	for _, item := range p.queues[idx] {
		d.release(item)
		p.buffered--
	}
	p.queues[idx] = nil

	for _, done := range p.closed {
		if !done {
			return
		}
	}
	if p == d.pass {
		d.abandonPass()
	} else if p.srcIt != nil {
		_ = p.srcIt.Close()
	}
}

// failPass releases all buffered items after a hard error; branch iterators
// of the pass keep reporting the error.
func (d *roundRobinDemux) failPass(p *demuxPass) {
	for i, q := range p.queues {
		for _, item := range q {
			d.release(item)
		}
		p.queues[i] = nil
	}
	p.buffered = 0
	_ = p.srcIt.Close()
	if p == d.pass {
		d.pass = nil
	}
}

// demuxBranch is the lightweight handle for one output stream of a
// round-robin split.
type demuxBranch struct {
	name      string
	container *roundRobinDemux
	idx       int
}

// Name returns the branch's identifier.
func (b *demuxBranch) Name() string { return b.name }

// Sources returns the shared container node.
func (b *demuxBranch) Sources() []Pipe { return []Pipe{b.container} }

// SetSource reassigns the container slot; it requires a round-robin
// container.
func (b *demuxBranch) SetSource(i int, src Pipe) error {
	if i != 0 {
		return fmt.Errorf("pipe %q has no source slot %d", b.name, i)
	}
	c, ok := src.(*roundRobinDemux)
	if !ok {
		return fmt.Errorf("pipe %q source slot 0 requires a round-robin container, got %T", b.name, src)
	}
	b.container = c
	return nil
}

// Len computes the branch's length from the source length without consuming
// the stream.
func (b *demuxBranch) Len() (int, error) {
	n, err := b.container.source.Len()
	if err != nil {
		return 0, err
	}
	avg := n / b.container.n
	if n-avg*b.container.n > b.idx {
		return avg + 1, nil
	}
	return avg, nil
}

// Iter attaches to the container's current pass, or begins a new one.
func (b *demuxBranch) Iter() Iterator {
	return b.container.iterFor(b.idx)
}

type demuxBranchIter struct {
	d    *roundRobinDemux
	pass *demuxPass
	idx  int
	done bool
}

func (it *demuxBranchIter) Next(ctx context.Context) (any, error) {
	if it.done {
		return nil, ErrEndOfStream
	}
	item, err := it.d.next(ctx, it.pass, it.idx)
	if err != nil {
		if errors.Is(err, ErrEndOfStream) {
			it.done = true
		}
		return nil, err
	}
	return item, nil
}

func (it *demuxBranchIter) Close() error {
	if it.done {
		return nil
	}
	it.done = true
	if it.pass == it.d.pass {
		it.d.branchDone(it.pass, it.idx)
	}
	return nil
}
