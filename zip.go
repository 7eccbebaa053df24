package torchdata

import (
	"container/list"
	"context"
	"errors"
	"fmt"
)

const defaultZipBufferSize = 10000

// IterKeyZipper joins two sequential streams by key. It yields one result
// per item of the primary stream, in the primary stream's order. Reference
// items whose key has not yet been requested wait in an insertion-ordered
// buffer; when the buffer exceeds its bound the oldest entry is evicted
// (FIFO) with a one-time warning.
type IterKeyZipper struct {
	name       string
	source     IterPipe
	ref        IterPipe
	keyFn      KeyFunc
	refKeyFn   KeyFunc
	mergeFn    MergeFunc
	keepKey    bool
	bufferSize int
	release    ReleaseFunc
	logger     Logger
}

// ZipOption configures an IterKeyZipper.
type ZipOption func(*IterKeyZipper)

// WithRefKeyFn sets the key function applied to reference items. When not
// set, the primary key function is used for both streams.
func WithRefKeyFn(fn KeyFunc) ZipOption {
	return func(z *IterKeyZipper) { z.refKeyFn = fn }
}

// WithMergeFn sets the function combining a primary item with its matching
// reference item. The default yields Pair{First, Second}.
func WithMergeFn(fn MergeFunc) ZipOption {
	return func(z *IterKeyZipper) { z.mergeFn = fn }
}

// WithKeepKey makes the zipper yield Keyed{Key, Value} instead of the bare
// merged value.
func WithKeepKey() ZipOption {
	return func(z *IterKeyZipper) { z.keepKey = true }
}

// WithBufferSize bounds the reference buffer. Use -1 for an unbounded
// buffer; any other non-positive value is a construction error. The default
// is 10000.
func WithBufferSize(n int) ZipOption {
	return func(z *IterKeyZipper) { z.bufferSize = n }
}

// WithRelease sets the hook releasing buffered items that are discarded
// without being yielded. The default closes items implementing io.Closer.
func WithRelease(fn ReleaseFunc) ZipOption {
	return func(z *IterKeyZipper) { z.release = fn }
}

// WithZipLogger sets the logger used for soft conditions such as buffer
// eviction.
func WithZipLogger(logger Logger) ZipOption {
	return func(z *IterKeyZipper) { z.logger = logger }
}

// NewIterKeyZipper creates a keyed join of source against ref. keyFn computes
// the key of a primary item; the reference key function defaults to keyFn.
func NewIterKeyZipper(name string, source, ref IterPipe, keyFn KeyFunc, opts ...ZipOption) (*IterKeyZipper, error) {
	if source == nil || ref == nil {
		return nil, fmt.Errorf("zipper %q: source and ref pipes are required", name)
	}
	if keyFn == nil {
		return nil, fmt.Errorf("zipper %q: key function is required", name)
	}

	z := &IterKeyZipper{
		name:       name,
		source:     source,
		ref:        ref,
		keyFn:      keyFn,
		bufferSize: defaultZipBufferSize,
		release:    DefaultRelease,
	}
	for _, opt := range opts {
		opt(z)
	}
	if z.refKeyFn == nil {
		z.refKeyFn = z.keyFn
	}
	if z.bufferSize <= 0 && z.bufferSize != -1 {
		return nil, fmt.Errorf("zipper %q: buffer size must be positive or -1, got %d", name, z.bufferSize)
	}
	return z, nil
}

// Name returns the pipe's identifier.
func (z *IterKeyZipper) Name() string { return z.name }

// Sources returns the primary and reference pipes, in that order.
func (z *IterKeyZipper) Sources() []Pipe { return []Pipe{z.source, z.ref} }

// SetSource reassigns a predecessor slot; both slots require an IterPipe.
func (z *IterKeyZipper) SetSource(i int, src Pipe) error {
	ip, ok := src.(IterPipe)
	if !ok {
		return fmt.Errorf("pipe %q source slot %d requires an IterPipe, got %T", z.name, i, src)
	}
	switch i {
	case 0:
		z.source = ip
	case 1:
		z.ref = ip
	default:
		return fmt.Errorf("pipe %q has no source slot %d", z.name, i)
	}
	return nil
}

// Len returns the primary stream's length.
func (z *IterKeyZipper) Len() (int, error) { return z.source.Len() }

// Iter begins a fresh pass: the buffer starts empty and the reference pipe
// is re-iterated from its own start.
func (z *IterKeyZipper) Iter() Iterator {
	return &zipIter{
		z:     z,
		srcIt: z.source.Iter(),
		refIt: z.ref.Iter(),
		buf:   newKVBuffer(),
	}
}

type zipIter struct {
	z      *IterKeyZipper
	srcIt  Iterator
	refIt  Iterator
	buf    *kvBuffer
	warned bool
	done   bool
}

func (it *zipIter) Next(ctx context.Context) (any, error) {
	if it.done {
		return nil, ErrEndOfStream
	}

	item, err := it.srcIt.Next(ctx)
	if err != nil {
		it.finish()
		return nil, err
	}

	key, err := it.z.keyFn(item)
	if err != nil {
		it.finish()
		return nil, fmt.Errorf("zipper %q: key function: %w", it.z.name, err)
	}

	for !it.buf.has(key) {
		refItem, err := it.refIt.Next(ctx)
		if err != nil {
			it.finish()
			if errors.Is(err, ErrEndOfStream) {
				return nil, fmt.Errorf("%w: no match for item %v; consider increasing the buffer size", ErrNoMatch, item)
			}
			return nil, err
		}
		refKey, err := it.z.refKeyFn(refItem)
		if err != nil {
			it.finish()
			return nil, fmt.Errorf("zipper %q: reference key function: %w", it.z.name, err)
		}
		if it.buf.has(refKey) {
			it.finish()
			return nil, fmt.Errorf("%w: %v", ErrDuplicateKey, refKey)
		}
		if it.z.bufferSize != -1 && it.buf.len() > it.z.bufferSize {
			warnOnce(ctx, it.z.logger, &it.warned,
				"zip buffer reached its bound, evicting oldest reference entries in FIFO order",
				"pipe", it.z.name, "buffer_size", it.z.bufferSize)
			_, evicted := it.buf.popOldest()
			it.z.release(evicted)
		}
		it.buf.put(refKey, refItem)
	}

	refItem := it.buf.pop(key)
	var res any
	if it.z.mergeFn != nil {
		res, err = it.z.mergeFn(item, refItem)
		if err != nil {
			it.finish()
			return nil, fmt.Errorf("zipper %q: merge function: %w", it.z.name, err)
		}
	} else {
		res = Pair{First: item, Second: refItem}
	}
	if it.z.keepKey {
		return Keyed{Key: key, Value: res}, nil
	}
	return res, nil
}

// finish drains the buffer through the release hook and closes both upstream
// iterators. It runs on exhaustion, on failure, and on early Close.
func (it *zipIter) finish() {
	if it.done {
		return
	}
	it.done = true
	it.buf.drain(it.z.release)
	_ = it.refIt.Close()
	_ = it.srcIt.Close()
}

func (it *zipIter) Close() error {
	it.finish()
	return nil
}

// kvBuffer is an insertion-ordered key-value buffer with FIFO eviction.
type kvBuffer struct {
	order *list.List
	index map[any]*list.Element
}

type kvEntry struct {
	key  any
	item any
}

func newKVBuffer() *kvBuffer {
	return &kvBuffer{
		order: list.New(),
		index: make(map[any]*list.Element),
	}
}

func (b *kvBuffer) len() int { return b.order.Len() }

func (b *kvBuffer) has(key any) bool {
	_, ok := b.index[key]
	return ok
}

func (b *kvBuffer) put(key, item any) {
	b.index[key] = b.order.PushBack(&kvEntry{key: key, item: item})
}

func (b *kvBuffer) pop(key any) any {
	elem := b.index[key]
	delete(b.index, key)
	b.order.Remove(elem)
	return elem.Value.(*kvEntry).item
}

// popOldest removes and returns the oldest-inserted entry.
func (b *kvBuffer) popOldest() (key, item any) {
	elem := b.order.Front()
	ent := elem.Value.(*kvEntry)
	delete(b.index, ent.key)
	b.order.Remove(elem)
	return ent.key, ent.item
}

// drain releases every remaining entry and empties the buffer.
func (b *kvBuffer) drain(release ReleaseFunc) {
	for elem := b.order.Front(); elem != nil; elem = elem.Next() {
		release(elem.Value.(*kvEntry).item)
	}
	b.order.Init()
	b.index = make(map[any]*list.Element)
}
