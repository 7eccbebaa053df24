package torchdata

import (
	"context"
	"fmt"
)

// MapKeyZipper joins a sequential stream against a random-access source. For
// each primary item the key function must map to a key present in the
// reference MapPipe; a miss fails the pass immediately, with no buffering
// and no retry.
type MapKeyZipper struct {
	name    string
	source  IterPipe
	ref     MapPipe
	keyFn   KeyFunc
	mergeFn MergeFunc
	keepKey bool
}

// MapZipOption configures a MapKeyZipper.
type MapZipOption func(*MapKeyZipper)

// WithMapMergeFn sets the function combining a primary item with the item
// looked up in the reference pipe. The default yields Pair{First, Second}.
func WithMapMergeFn(fn MergeFunc) MapZipOption {
	return func(z *MapKeyZipper) { z.mergeFn = fn }
}

// WithMapKeepKey makes the zipper yield Keyed{Key, Value} instead of the
// bare merged value.
func WithMapKeepKey() MapZipOption {
	return func(z *MapKeyZipper) { z.keepKey = true }
}

// NewMapKeyZipper creates a lookup join of source against the random-access
// pipe ref.
func NewMapKeyZipper(name string, source IterPipe, ref MapPipe, keyFn KeyFunc, opts ...MapZipOption) (*MapKeyZipper, error) {
	if source == nil || ref == nil {
		return nil, fmt.Errorf("map zipper %q: source and ref pipes are required", name)
	}
	if keyFn == nil {
		return nil, fmt.Errorf("map zipper %q: key function is required", name)
	}

	z := &MapKeyZipper{name: name, source: source, ref: ref, keyFn: keyFn}
	for _, opt := range opts {
		opt(z)
	}
	return z, nil
}

// Name returns the pipe's identifier.
func (z *MapKeyZipper) Name() string { return z.name }

// Sources returns the primary pipe and the reference pipe, in that order.
func (z *MapKeyZipper) Sources() []Pipe { return []Pipe{z.source, z.ref} }

// SetSource reassigns a predecessor slot. Slot 0 requires an IterPipe, slot
// 1 a MapPipe.
func (z *MapKeyZipper) SetSource(i int, src Pipe) error {
	switch i {
	case 0:
		ip, ok := src.(IterPipe)
		if !ok {
			return fmt.Errorf("pipe %q source slot 0 requires an IterPipe, got %T", z.name, src)
		}
		z.source = ip
	case 1:
		mp, ok := src.(MapPipe)
		if !ok {
			return fmt.Errorf("pipe %q source slot 1 requires a MapPipe, got %T", z.name, src)
		}
		z.ref = mp
	default:
		return fmt.Errorf("pipe %q has no source slot %d", z.name, i)
	}
	return nil
}

// Len returns the primary stream's length.
func (z *MapKeyZipper) Len() (int, error) { return z.source.Len() }

// Iter begins a fresh pass over the primary stream.
func (z *MapKeyZipper) Iter() Iterator {
	return &mapZipIter{z: z, srcIt: z.source.Iter()}
}

type mapZipIter struct {
	z     *MapKeyZipper
	srcIt Iterator
	done  bool
}

func (it *mapZipIter) Next(ctx context.Context) (any, error) {
	if it.done {
		return nil, ErrEndOfStream
	}

	item, err := it.srcIt.Next(ctx)
	if err != nil {
		it.done = true
		_ = it.srcIt.Close()
		return nil, err
	}

	key, err := it.z.keyFn(item)
	if err != nil {
		it.fail()
		return nil, fmt.Errorf("map zipper %q: key function: %w", it.z.name, err)
	}

	refItem, err := it.z.ref.Get(key)
	if err != nil {
		it.fail()
		return nil, fmt.Errorf("map zipper %q: item %v maps to key %v: %w", it.z.name, item, key, err)
	}

	var res any
	if it.z.mergeFn != nil {
		res, err = it.z.mergeFn(item, refItem)
		if err != nil {
			it.fail()
			return nil, fmt.Errorf("map zipper %q: merge function: %w", it.z.name, err)
		}
	} else {
		res = Pair{First: item, Second: refItem}
	}
	if it.z.keepKey {
		return Keyed{Key: key, Value: res}, nil
	}
	return res, nil
}

func (it *mapZipIter) fail() {
	it.done = true
	_ = it.srcIt.Close()
}

func (it *mapZipIter) Close() error {
	if !it.done {
		it.fail()
	}
	return nil
}
