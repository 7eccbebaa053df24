package torchdata_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	torchdata "github.com/PierreGtch/TorchData"
)

func TestWrapProducesItemsInOrder(t *testing.T) {
	ctx := context.Background()
	src := torchdata.Wrap("letters", "a", "b", "c")

	items, err := torchdata.Collect(ctx, src)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if !reflect.DeepEqual(items, []any{"a", "b", "c"}) {
		t.Errorf("Collect() = %v, want [a b c]", items)
	}

	n, err := src.Len()
	if err != nil || n != 3 {
		t.Errorf("Len() = %d, %v, want 3, nil", n, err)
	}
}

func TestWrapRestartsFromItsOwnStart(t *testing.T) {
	ctx := context.Background()
	src := torchdata.Wrap("numbers", 1, 2)

	for pass := 0; pass < 2; pass++ {
		items, err := torchdata.Collect(ctx, src)
		if err != nil {
			t.Fatalf("pass %d: Collect() error = %v", pass, err)
		}
		if !reflect.DeepEqual(items, []any{1, 2}) {
			t.Errorf("pass %d: Collect() = %v, want [1 2]", pass, items)
		}
	}
}

func TestIteratorExhaustionIsSticky(t *testing.T) {
	ctx := context.Background()
	it := torchdata.Wrap("one", 1).Iter()

	if _, err := it.Next(ctx); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := it.Next(ctx); !errors.Is(err, torchdata.ErrEndOfStream) {
			t.Fatalf("Next() after exhaustion error = %v, want ErrEndOfStream", err)
		}
	}
}

func TestRange(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name              string
		start, stop, step int
		want              []any
	}{
		{"ascending", 0, 5, 1, []any{0, 1, 2, 3, 4}},
		{"stepped", 1, 10, 3, []any{1, 4, 7}},
		{"descending", 3, 0, -1, []any{3, 2, 1}},
		{"empty", 5, 5, 1, nil},
		{"wrong direction", 0, 5, -1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := torchdata.Range(tt.name, tt.start, tt.stop, tt.step)
			items, err := torchdata.Collect(ctx, r)
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			if !reflect.DeepEqual(items, tt.want) {
				t.Errorf("Collect() = %v, want %v", items, tt.want)
			}
			n, err := r.Len()
			if err != nil {
				t.Fatalf("Len() error = %v", err)
			}
			if n != len(tt.want) {
				t.Errorf("Len() = %d, want %d", n, len(tt.want))
			}
		})
	}
}

func TestSequenceGet(t *testing.T) {
	seq := torchdata.Sequence("lookup", map[any]any{"a": 100, "b": 200})

	v, err := seq.Get("a")
	if err != nil || v != 100 {
		t.Errorf("Get(a) = %v, %v, want 100, nil", v, err)
	}
	if _, err := seq.Get("z"); !errors.Is(err, torchdata.ErrKeyNotFound) {
		t.Errorf("Get(z) error = %v, want ErrKeyNotFound", err)
	}
	if n, err := seq.Len(); err != nil || n != 2 {
		t.Errorf("Len() = %d, %v, want 2, nil", n, err)
	}
}

func TestMapperAppliesFunction(t *testing.T) {
	ctx := context.Background()
	src := torchdata.Wrap("numbers", 1, 2, 3)
	doubled := torchdata.NewMapper("double", src, func(ctx context.Context, item any) (any, error) {
		return item.(int) * 2, nil
	})

	items, err := torchdata.Collect(ctx, doubled)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if !reflect.DeepEqual(items, []any{2, 4, 6}) {
		t.Errorf("Collect() = %v, want [2 4 6]", items)
	}
}

func TestMapperPropagatesFunctionError(t *testing.T) {
	ctx := context.Background()
	src := torchdata.Wrap("numbers", 1, 2)
	failing := torchdata.NewMapper("fail", src, func(ctx context.Context, item any) (any, error) {
		return nil, fmt.Errorf("boom on %v", item)
	})

	_, err := torchdata.Collect(ctx, failing)
	if err == nil {
		t.Fatal("Collect() error = nil, want function error")
	}
}

func TestSetSourceValidation(t *testing.T) {
	src := torchdata.Wrap("src", 1)
	other := torchdata.Wrap("other", 2)
	m := torchdata.NewMapper("map", src, func(ctx context.Context, item any) (any, error) {
		return item, nil
	})

	if err := m.SetSource(0, other); err != nil {
		t.Errorf("SetSource(0) error = %v", err)
	}
	if m.Sources()[0] != torchdata.Pipe(other) {
		t.Error("SetSource(0) did not reassign the slot")
	}
	if err := m.SetSource(1, other); err == nil {
		t.Error("SetSource(1) error = nil, want out-of-range error")
	}
	if err := m.SetSource(0, torchdata.Sequence("seq", nil)); err == nil {
		t.Error("SetSource(0, MapPipe) error = nil, want capability error")
	}
	if err := src.SetSource(0, other); err == nil {
		t.Error("source pipe SetSource error = nil, want error")
	}
}

func TestCollectHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := torchdata.Collect(ctx, torchdata.Wrap("numbers", 1, 2, 3))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Collect() error = %v, want context.Canceled", err)
	}
}
