// Package torchdata provides lazily-evaluated, composable data pipelines:
// pull-based stream operators ("pipes") that form a directed acyclic graph,
// plus combinators for splitting one stream into several correlated streams
// and joining streams by key.
//
// Key features:
//   - Small, composable interfaces
//   - Pull-based, single-threaded evaluation: nothing runs until a consumer
//     asks for the next item
//   - Explicit predecessor edges, enabling graph introspection and rewriting
//     (see the graph subpackage)
//   - Bounded buffering with explicit eviction and cleanup policy
//   - Functional options for configuration
//
// Basic usage:
//
//	src := torchdata.Wrap("numbers", 1, 2, 3)
//	it := src.Iter()
//	defer it.Close()
//	for {
//		item, err := it.Next(ctx)
//		if errors.Is(err, torchdata.ErrEndOfStream) {
//			break
//		}
//		// use item
//	}
package torchdata

import (
	"context"
	"errors"
	"io"
)

// Common errors.
var (
	// ErrEndOfStream is returned by Iterator.Next when the stream is exhausted.
	ErrEndOfStream = errors.New("torchdata: end of stream")

	// ErrNoLen is returned by Len when a pipe cannot report its length
	// without consuming the stream.
	ErrNoLen = errors.New("torchdata: length not available")

	// ErrKeyNotFound is returned by MapPipe.Get for an unknown key.
	ErrKeyNotFound = errors.New("torchdata: key not found")

	// ErrNoMatch is returned by a key zipper when its reference pipe is
	// exhausted before a match is found for the current item.
	ErrNoMatch = errors.New("torchdata: no matching key in reference pipe")

	// ErrDuplicateKey is returned when the reference pipe of a key zipper
	// produces a key that is already buffered.
	ErrDuplicateKey = errors.New("torchdata: duplicate key in reference pipe")

	// ErrBufferOverflow is returned when a splitter's look-ahead buffer
	// exceeds its configured bound.
	ErrBufferOverflow = errors.New("torchdata: buffer overflow")

	// ErrIteratorInvalid is returned by an iterator that was invalidated
	// because its shared container started a new iteration pass.
	ErrIteratorInvalid = errors.New("torchdata: iterator invalidated by a new iteration pass")
)

// Pipe is a node in a pipeline graph. A pipe's identity is its interface
// value: implementations must be pointers, and two pipes are the same node
// only if they are the same pointer, never by structural equality.
//
// Every pipe declares its predecessor edges explicitly. Sources returns the
// current predecessor slots in a fixed order; SetSource reassigns one slot.
// The graph subpackage rewrites pipelines exclusively through these two
// methods.
type Pipe interface {
	// Name returns the pipe's identifier.
	Name() string

	// Sources returns the pipe's predecessor slots. Source pipes return an
	// empty slice. The returned slice must not be mutated by the caller.
	Sources() []Pipe

	// SetSource reassigns predecessor slot i. It fails if i is out of range
	// or if src does not satisfy the capability the slot requires (for
	// example, a lookup slot requires a MapPipe).
	SetSource(i int, src Pipe) error
}

// Iterator is one pass over an IterPipe's stream.
//
// Next returns the next item, or ErrEndOfStream once the stream is
// exhausted. Any other error aborts the pass; buffered items are released
// before the error propagates. Close abandons the pass early and releases
// any items still buffered; it is idempotent and safe after exhaustion.
type Iterator interface {
	Next(ctx context.Context) (any, error)
	Close() error
}

// IterPipe is a pipe that produces a stream of items on demand.
//
// Iter begins a fresh pass: all internal buffers start empty and upstream
// pipes are re-iterated from their own start.
type IterPipe interface {
	Pipe

	// Iter returns an iterator over a fresh pass of the stream.
	Iter() Iterator

	// Len returns the number of items the pipe will produce, or ErrNoLen
	// when the length is unknown without consuming the stream.
	Len() (int, error)
}

// MapPipe is a random-access source: items are addressed by key rather than
// produced in sequence.
type MapPipe interface {
	Pipe

	// Get returns the item stored under key, or ErrKeyNotFound.
	Get(key any) (any, error)

	// Len returns the number of items held, or ErrNoLen.
	Len() (int, error)
}

// ReleaseFunc releases one buffered item that is being discarded without
// having been yielded. Combinators call it for every such item: leftovers
// when a pass ends or is abandoned, and entries evicted from a bounded
// buffer.
type ReleaseFunc func(item any)

// DefaultRelease closes items that implement io.Closer and ignores
// everything else. It is the release hook used when none is configured.
func DefaultRelease(item any) {
	if c, ok := item.(io.Closer); ok {
		_ = c.Close()
	}
}

// Logger provides structured logging for pipes. All methods accept
// alternating key-value pairs after the message.
type Logger interface {
	Debug(ctx context.Context, msg string, keysAndValues ...any)
	Info(ctx context.Context, msg string, keysAndValues ...any)
	Warn(ctx context.Context, msg string, keysAndValues ...any)
	Error(ctx context.Context, msg string, keysAndValues ...any)
}

// KeyFunc computes the join key for an item. Keys are used as Go map keys
// and must be comparable.
type KeyFunc func(item any) (any, error)

// MergeFunc combines an item from the primary stream with the matching item
// from the reference input.
type MergeFunc func(item, refItem any) (any, error)

// Pair is the default merge result: the primary item and the matching
// reference item, in that order.
type Pair struct {
	First  any
	Second any
}

// Keyed wraps a yielded value together with the key that matched it. Zippers
// yield Keyed values when configured with WithKeepKey.
type Keyed struct {
	Key   any
	Value any
}

// warnOnce logs at Warn level through an optional logger, at most once per
// flag.
func warnOnce(ctx context.Context, logger Logger, warned *bool, msg string, keysAndValues ...any) {
	if *warned || logger == nil {
		return
	}
	*warned = true
	logger.Warn(ctx, msg, keysAndValues...)
}
