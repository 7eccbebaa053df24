package torchdata_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	torchdata "github.com/PierreGtch/TorchData"
)

func TestMapKeyZipperLooksUpEveryItem(t *testing.T) {
	ctx := context.Background()
	source := torchdata.Wrap("source", entry{"a", 1}, entry{"b", 2}, entry{"c", 3})
	ref := torchdata.Sequence("ref", map[any]any{"a": 100, "b": 200, "c": 300})

	z, err := torchdata.NewMapKeyZipper("zipmap", source, ref, entryKey,
		torchdata.WithMapMergeFn(func(item, refItem any) (any, error) {
			return item.(entry).val + refItem.(int), nil
		}))
	if err != nil {
		t.Fatalf("NewMapKeyZipper() error = %v", err)
	}

	items, err := torchdata.Collect(ctx, z)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if !reflect.DeepEqual(items, []any{101, 202, 303}) {
		t.Errorf("Collect() = %v, want [101 202 303]", items)
	}
}

func TestMapKeyZipperDefaultsToPair(t *testing.T) {
	ctx := context.Background()
	source := torchdata.Wrap("source", entry{"a", 1})
	ref := torchdata.Sequence("ref", map[any]any{"a": 100})

	z, err := torchdata.NewMapKeyZipper("zipmap", source, ref, entryKey)
	if err != nil {
		t.Fatalf("NewMapKeyZipper() error = %v", err)
	}

	items, err := torchdata.Collect(ctx, z)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	want := []any{torchdata.Pair{First: entry{"a", 1}, Second: 100}}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("Collect() = %v, want %v", items, want)
	}
}

func TestMapKeyZipperKeepKey(t *testing.T) {
	ctx := context.Background()
	source := torchdata.Wrap("source", entry{"a", 1})
	ref := torchdata.Sequence("ref", map[any]any{"a": 100})

	z, err := torchdata.NewMapKeyZipper("zipmap", source, ref, entryKey,
		torchdata.WithMapKeepKey())
	if err != nil {
		t.Fatalf("NewMapKeyZipper() error = %v", err)
	}

	items, err := torchdata.Collect(ctx, z)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	want := []any{torchdata.Keyed{
		Key:   "a",
		Value: torchdata.Pair{First: entry{"a", 1}, Second: 100},
	}}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("Collect() = %v, want %v", items, want)
	}
}

func TestMapKeyZipperMissFailsImmediately(t *testing.T) {
	ctx := context.Background()
	source := torchdata.Wrap("source", entry{"a", 1}, entry{"missing", 2}, entry{"b", 3})
	ref := torchdata.Sequence("ref", map[any]any{"a": 100, "b": 200})

	z, err := torchdata.NewMapKeyZipper("zipmap", source, ref, entryKey)
	if err != nil {
		t.Fatalf("NewMapKeyZipper() error = %v", err)
	}

	items, err := torchdata.Collect(ctx, z)
	if !errors.Is(err, torchdata.ErrKeyNotFound) {
		t.Fatalf("Collect() error = %v, want ErrKeyNotFound", err)
	}
	if len(items) != 1 {
		t.Errorf("got %d items before the failure, want 1", len(items))
	}

	// The failed pass is over; a fresh pass starts from the beginning and
	// fails at the same item.
	items, err = torchdata.Collect(ctx, z)
	if !errors.Is(err, torchdata.ErrKeyNotFound) {
		t.Fatalf("second pass error = %v, want ErrKeyNotFound", err)
	}
	if len(items) != 1 {
		t.Errorf("second pass got %d items, want 1", len(items))
	}
}

func TestMapKeyZipperSourceSlots(t *testing.T) {
	source := torchdata.Wrap("source", entry{"a", 1}, entry{"b", 2})
	ref := torchdata.Sequence("ref", map[any]any{"a": 100})

	z, err := torchdata.NewMapKeyZipper("zipmap", source, ref, entryKey)
	if err != nil {
		t.Fatalf("NewMapKeyZipper() error = %v", err)
	}

	if n, err := z.Len(); err != nil || n != 2 {
		t.Errorf("Len() = %d, %v, want 2, nil", n, err)
	}
	srcs := z.Sources()
	if len(srcs) != 2 || srcs[0] != torchdata.Pipe(source) || srcs[1] != torchdata.Pipe(ref) {
		t.Errorf("Sources() = %v, want [source ref]", srcs)
	}

	// Slot 0 requires an IterPipe, slot 1 a MapPipe.
	if err := z.SetSource(0, ref); err == nil {
		t.Error("SetSource(0, MapPipe) error = nil, want capability error")
	}
	if err := z.SetSource(1, source); err == nil {
		t.Error("SetSource(1, IterPipe) error = nil, want capability error")
	}
	other := torchdata.Sequence("other", map[any]any{"a": 1})
	if err := z.SetSource(1, other); err != nil {
		t.Errorf("SetSource(1) error = %v", err)
	}
	if z.Sources()[1] != torchdata.Pipe(other) {
		t.Error("SetSource(1) did not reassign the reference slot")
	}
}

func TestNewMapKeyZipperValidation(t *testing.T) {
	source := torchdata.Wrap("source")
	ref := torchdata.Sequence("ref", nil)

	if _, err := torchdata.NewMapKeyZipper("zipmap", source, nil, entryKey); err == nil {
		t.Error("NewMapKeyZipper(nil ref) error = nil, want error")
	}
	if _, err := torchdata.NewMapKeyZipper("zipmap", source, ref, nil); err == nil {
		t.Error("NewMapKeyZipper(nil keyFn) error = nil, want error")
	}
}
