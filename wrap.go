package torchdata

import (
	"context"
	"errors"
	"fmt"
)

// IterableWrapper is a source pipe backed by a slice.
type IterableWrapper struct {
	name  string
	items []any
}

// Wrap creates a source pipe producing the given items in order.
func Wrap(name string, items ...any) *IterableWrapper {
	return &IterableWrapper{name: name, items: items}
}

// Name returns the pipe's identifier.
func (w *IterableWrapper) Name() string { return w.name }

// Sources returns no predecessors; a wrapper is a source pipe.
func (w *IterableWrapper) Sources() []Pipe { return nil }

// SetSource always fails; a wrapper has no predecessor slots.
func (w *IterableWrapper) SetSource(i int, src Pipe) error {
	return fmt.Errorf("pipe %q has no source slot %d", w.name, i)
}

// Len returns the number of wrapped items.
func (w *IterableWrapper) Len() (int, error) { return len(w.items), nil }

// Iter returns an iterator over the wrapped items.
func (w *IterableWrapper) Iter() Iterator { return &sliceIter{items: w.items} }

type sliceIter struct {
	items []any
	pos   int
	done  bool
}

func (it *sliceIter) Next(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.done || it.pos >= len(it.items) {
		it.done = true
		return nil, ErrEndOfStream
	}
	item := it.items[it.pos]
	it.pos++
	return item, nil
}

func (it *sliceIter) Close() error {
	it.done = true
	return nil
}

// Range creates a source pipe producing the integers [start, stop) with the
// given step. A zero or negative-direction step that cannot reach stop
// produces an empty stream.
func Range(name string, start, stop, step int) *RangePipe {
	return &RangePipe{name: name, start: start, stop: stop, step: step}
}

// RangePipe is a source pipe producing a sequence of integers.
type RangePipe struct {
	name              string
	start, stop, step int
}

// Name returns the pipe's identifier.
func (r *RangePipe) Name() string { return r.name }

// Sources returns no predecessors; a range is a source pipe.
func (r *RangePipe) Sources() []Pipe { return nil }

// SetSource always fails; a range has no predecessor slots.
func (r *RangePipe) SetSource(i int, src Pipe) error {
	return fmt.Errorf("pipe %q has no source slot %d", r.name, i)
}

// Len returns the number of integers the pipe produces.
func (r *RangePipe) Len() (int, error) {
	if r.step == 0 {
		return 0, nil
	}
	n := 0
	if r.step > 0 && r.stop > r.start {
		n = (r.stop - r.start + r.step - 1) / r.step
	} else if r.step < 0 && r.stop < r.start {
		n = (r.start - r.stop - r.step - 1) / -r.step
	}
	return n, nil
}

// Iter returns an iterator over the integer sequence.
func (r *RangePipe) Iter() Iterator {
	return &rangeIter{cur: r.start, stop: r.stop, step: r.step}
}

type rangeIter struct {
	cur, stop, step int
	done            bool
}

func (it *rangeIter) Next(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.done || it.step == 0 ||
		(it.step > 0 && it.cur >= it.stop) ||
		(it.step < 0 && it.cur <= it.stop) {
		it.done = true
		return nil, ErrEndOfStream
	}
	v := it.cur
	it.cur += it.step
	return v, nil
}

func (it *rangeIter) Close() error {
	it.done = true
	return nil
}

// SequenceWrapper is a random-access source pipe backed by a map.
type SequenceWrapper struct {
	name  string
	items map[any]any
}

// Sequence creates a map-backed MapPipe. The map is used directly, not
// copied; the caller must not mutate it while the pipe is in use.
func Sequence(name string, items map[any]any) *SequenceWrapper {
	return &SequenceWrapper{name: name, items: items}
}

// Name returns the pipe's identifier.
func (s *SequenceWrapper) Name() string { return s.name }

// Sources returns no predecessors; a sequence wrapper is a source pipe.
func (s *SequenceWrapper) Sources() []Pipe { return nil }

// SetSource always fails; a sequence wrapper has no predecessor slots.
func (s *SequenceWrapper) SetSource(i int, src Pipe) error {
	return fmt.Errorf("pipe %q has no source slot %d", s.name, i)
}

// Get returns the item stored under key.
func (s *SequenceWrapper) Get(key any) (any, error) {
	v, ok := s.items[key]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}
	return v, nil
}

// Len returns the number of stored items.
func (s *SequenceWrapper) Len() (int, error) { return len(s.items), nil }

// MapFunc transforms one item.
type MapFunc func(ctx context.Context, item any) (any, error)

// Mapper applies a function to every item of its source.
type Mapper struct {
	name   string
	source IterPipe
	fn     MapFunc
}

// NewMapper creates a pipe applying fn to every item produced by source.
func NewMapper(name string, source IterPipe, fn MapFunc) *Mapper {
	return &Mapper{name: name, source: source, fn: fn}
}

// Name returns the pipe's identifier.
func (m *Mapper) Name() string { return m.name }

// Sources returns the single upstream pipe.
func (m *Mapper) Sources() []Pipe { return []Pipe{m.source} }

// SetSource reassigns the upstream pipe; the slot requires an IterPipe.
func (m *Mapper) SetSource(i int, src Pipe) error {
	if i != 0 {
		return fmt.Errorf("pipe %q has no source slot %d", m.name, i)
	}
	ip, ok := src.(IterPipe)
	if !ok {
		return fmt.Errorf("pipe %q source slot 0 requires an IterPipe, got %T", m.name, src)
	}
	m.source = ip
	return nil
}

// Len returns the source's length.
func (m *Mapper) Len() (int, error) { return m.source.Len() }

// Iter returns an iterator applying the mapper's function per item.
func (m *Mapper) Iter() Iterator {
	return &mapIter{src: m.source.Iter(), fn: m.fn}
}

type mapIter struct {
	src Iterator
	fn  MapFunc
}

func (it *mapIter) Next(ctx context.Context) (any, error) {
	item, err := it.src.Next(ctx)
	if err != nil {
		return nil, err
	}
	return it.fn(ctx, item)
}

func (it *mapIter) Close() error { return it.src.Close() }

// Collect drains one full pass of a pipe into a slice. On error the items
// collected so far are returned along with the error.
func Collect(ctx context.Context, p IterPipe) ([]any, error) {
	it := p.Iter()
	defer func() { _ = it.Close() }()

	var items []any
	for {
		item, err := it.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrEndOfStream) {
				return items, nil
			}
			return items, err
		}
		items = append(items, item)
	}
}
