package torchdata

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// UnzipOption configures a positional splitter.
type UnzipOption func(*forker)

// WithSkipColumns excludes the given column indices from the split; each
// index must be in [0, sequenceLength). Skipping every column is a
// construction error.
func WithSkipColumns(columns ...int) UnzipOption {
	return func(f *forker) { f.skip = columns }
}

// WithUnzipBufferSize bounds how far the leading branch may read ahead of
// the slowest branch. Use -1 for an unbounded buffer; any other
// non-positive value is a construction error. The default is 1000.
func WithUnzipBufferSize(n int) UnzipOption {
	return func(f *forker) { f.bufferSize = n }
}

// WithUnzipRelease sets the hook releasing buffered items discarded without
// being yielded. The default closes items implementing io.Closer.
func WithUnzipRelease(fn ReleaseFunc) UnzipOption {
	return func(f *forker) { f.release = fn }
}

// Unzip splits a stream of fixed-length sequences into one branch pipe per
// retained column: branch k yields element columns[k] of every sequence.
// Items must be slices or arrays of at least sequenceLength elements.
//
// The source is consumed once through a shared forker container; each
// produced sequence is buffered until every branch has read it, and the
// buffer bound limits the distance between the fastest and slowest branch.
func Unzip(name string, source IterPipe, sequenceLength int, opts ...UnzipOption) ([]IterPipe, error) {
	if source == nil {
		return nil, fmt.Errorf("unzip %q: source pipe is required", name)
	}
	if sequenceLength < 1 {
		return nil, fmt.Errorf("unzip %q: sequence length must be at least 1, got %d", name, sequenceLength)
	}

	f := &forker{
		name:       name,
		source:     source,
		bufferSize: defaultSplitBufferSize,
		release:    DefaultRelease,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.bufferSize <= 0 && f.bufferSize != -1 {
		return nil, fmt.Errorf("unzip %q: buffer size must be positive or -1, got %d", name, f.bufferSize)
	}

	skip := make(map[int]bool, len(f.skip))
	for _, col := range f.skip {
		if col < 0 || col >= sequenceLength {
			return nil, fmt.Errorf("unzip %q: skip column %d out of range [0, %d)", name, col, sequenceLength)
		}
		skip[col] = true
	}
	for col := 0; col < sequenceLength; col++ {
		if !skip[col] {
			f.columns = append(f.columns, col)
		}
	}
	if len(f.columns) == 0 {
		return nil, fmt.Errorf("unzip %q: every column is skipped; check sequence length and skip columns", name)
	}

	branches := make([]IterPipe, len(f.columns))
	for slot, col := range f.columns {
		branches[slot] = &unzipBranch{
			name:      fmt.Sprintf("%s[%d]", name, col),
			container: f,
			slot:      slot,
			col:       col,
		}
	}
	return branches, nil
}

// forker is the shared container behind unzip branches: it consumes the
// source once and exposes every produced sequence to each branch.
type forker struct {
	name       string
	source     IterPipe
	columns    []int
	skip       []int
	bufferSize int
	release    ReleaseFunc

	pass *forkPass
}

// forkPass is the state of one iteration pass, shared by all branches.
type forkPass struct {
	srcIt    Iterator
	buf      []any // items between the slowest and fastest branch
	bufStart int   // absolute position of buf[0]
	ptr      []int // next absolute position per branch
	srcDone  bool
	srcErr   error
	claimed  []bool
	closed   []bool
}

// Name returns the container's identifier.
func (f *forker) Name() string { return f.name }

// Sources returns the single upstream pipe.
func (f *forker) Sources() []Pipe { return []Pipe{f.source} }

// SetSource reassigns the upstream pipe; the slot requires an IterPipe.
func (f *forker) SetSource(i int, src Pipe) error {
	if i != 0 {
		return fmt.Errorf("pipe %q has no source slot %d", f.name, i)
	}
	ip, ok := src.(IterPipe)
	if !ok {
		return fmt.Errorf("pipe %q source slot 0 requires an IterPipe, got %T", f.name, src)
	}
	f.source = ip
	return nil
}

func (f *forker) newPass() *forkPass {
	f.abandonPass()
	n := len(f.columns)
	f.pass = &forkPass{
		srcIt:   f.source.Iter(),
		ptr:     make([]int, n),
		claimed: make([]bool, n),
		closed:  make([]bool, n),
	}
	return f.pass
}

func (f *forker) abandonPass() {
	p := f.pass
	if p == nil {
		return
	}
	f.pass = nil
	f.releaseTail(p, 0)
	if p.srcIt != nil {
		_ = p.srcIt.Close()
	}
}

// releaseTail releases every buffered item not yet consumed by all active
// branches; from is the lowest pointer among branches still active.
func (f *forker) releaseTail(p *forkPass, minActive int) {
	for pos := p.bufStart; pos < p.bufStart+len(p.buf); pos++ {
		if pos >= minActive {
			f.release(p.buf[pos-p.bufStart])
		}
	}
	p.buf = nil
}

func (f *forker) iterFor(slot int) Iterator {
	if f.pass == nil || f.pass.claimed[slot] {
		f.newPass()
	}
	f.pass.claimed[slot] = true
	return &unzipBranchIter{f: f, pass: f.pass, slot: slot}
}

// next yields element col of the sequence at the branch's current position,
// pulling from the source when the branch is in the lead.
func (f *forker) next(ctx context.Context, p *forkPass, slot, col int) (any, error) {
	if p.srcErr != nil {
		return nil, p.srcErr
	}
	if p != f.pass {
		return nil, ErrIteratorInvalid
	}

	pos := p.ptr[slot]
	for pos >= p.bufStart+len(p.buf) {
		if p.srcDone {
			f.branchDone(p, slot)
			return nil, ErrEndOfStream
		}
		item, err := p.srcIt.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrEndOfStream) {
				p.srcDone = true
				continue
			}
			p.srcErr = err
			f.failPass(p)
			return nil, err
		}
		p.buf = append(p.buf, item)
		if f.bufferSize != -1 && len(p.buf) > f.bufferSize {
			err := fmt.Errorf("%w: unzip %q read more than %d items ahead of its slowest branch", ErrBufferOverflow, f.name, f.bufferSize)
			p.srcErr = err
			f.failPass(p)
			return nil, err
		}
	}

	item := p.buf[pos-p.bufStart]
	p.ptr[slot] = pos + 1
	f.compact(p)

	elem, err := indexSequence(item, col)
	if err != nil {
		p.srcErr = fmt.Errorf("unzip %q: %w", f.name, err)
		f.failPass(p)
		return nil, p.srcErr
	}
	return elem, nil
}

// compact drops buffered items already consumed by every active branch.
func (f *forker) compact(p *forkPass) {
	min := -1
	for slot, ptr := range p.ptr {
		if p.closed[slot] {
			continue
		}
		if min == -1 || ptr < min {
			min = ptr
		}
	}
	if min == -1 {
		return
	}
	for p.bufStart < min && len(p.buf) > 0 {
		p.buf = p.buf[1:]
		p.bufStart++
	}
}

func (f *forker) branchDone(p *forkPass, slot int) {
	if p.closed[slot] {
		return
	}
	p.closed[slot] = true

	min := -1
	for s, ptr := range p.ptr {
		if p.closed[s] {
			continue
		}
		if min == -1 || ptr < min {
			min = ptr
		}
	}
	if min == -1 {
		// Last active branch: whatever is still buffered beyond this
		// branch's own pointer was never yielded anywhere.
		f.releaseTail(p, p.ptr[slot])
		if p == f.pass {
			f.pass = nil
		}
		_ = p.srcIt.Close()
		return
	}
	f.compact(p)
}

func (f *forker) failPass(p *forkPass) {
	f.releaseTail(p, 0)
	_ = p.srcIt.Close()
	if p == f.pass {
		f.pass = nil
	}
}

// indexSequence extracts element col from a slice or array item.
func indexSequence(item any, col int) (any, error) {
	if seq, ok := item.([]any); ok {
		if col >= len(seq) {
			return nil, fmt.Errorf("sequence has %d elements, need index %d", len(seq), col)
		}
		return seq[col], nil
	}
	v := reflect.ValueOf(item)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if col >= v.Len() {
			return nil, fmt.Errorf("sequence has %d elements, need index %d", v.Len(), col)
		}
		return v.Index(col).Interface(), nil
	default:
		return nil, fmt.Errorf("expected a sequence item, got %T", item)
	}
}

// unzipBranch is the lightweight handle for one column of an unzip split.
type unzipBranch struct {
	name      string
	container *forker
	slot      int
	col       int
}

// Name returns the branch's identifier.
func (b *unzipBranch) Name() string { return b.name }

// Sources returns the shared forker container node.
func (b *unzipBranch) Sources() []Pipe { return []Pipe{b.container} }

// SetSource reassigns the container slot; it requires a forker container.
func (b *unzipBranch) SetSource(i int, src Pipe) error {
	if i != 0 {
		return fmt.Errorf("pipe %q has no source slot %d", b.name, i)
	}
	c, ok := src.(*forker)
	if !ok {
		return fmt.Errorf("pipe %q source slot 0 requires a forker container, got %T", b.name, src)
	}
	b.container = c
	return nil
}

// Len returns the source's length; every branch yields one element per
// source item.
func (b *unzipBranch) Len() (int, error) { return b.container.source.Len() }

// Iter attaches to the container's current pass, or begins a new one.
func (b *unzipBranch) Iter() Iterator {
	return b.container.iterFor(b.slot)
}

type unzipBranchIter struct {
	f    *forker
	pass *forkPass
	slot int
	done bool
}

func (it *unzipBranchIter) Next(ctx context.Context) (any, error) {
	if it.done {
		return nil, ErrEndOfStream
	}
	b := it.f.columns[it.slot]
	item, err := it.f.next(ctx, it.pass, it.slot, b)
	if err != nil {
		if errors.Is(err, ErrEndOfStream) {
			it.done = true
		}
		return nil, err
	}
	return item, nil
}

func (it *unzipBranchIter) Close() error {
	if it.done {
		return nil
	}
	it.done = true
	if it.pass == it.f.pass {
		it.f.branchDone(it.pass, it.slot)
	}
	return nil
}
