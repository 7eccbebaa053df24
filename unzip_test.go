package torchdata_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	torchdata "github.com/PierreGtch/TorchData"
)

func TestUnzipSplitsColumns(t *testing.T) {
	ctx := context.Background()
	source := torchdata.Wrap("rows",
		[]any{1, "a", true},
		[]any{2, "b", false},
		[]any{3, "c", true})

	branches, err := torchdata.Unzip("unzip", source, 3)
	if err != nil {
		t.Fatalf("Unzip() error = %v", err)
	}
	if len(branches) != 3 {
		t.Fatalf("got %d branches, want 3", len(branches))
	}

	want := [][]any{
		{1, 2, 3},
		{"a", "b", "c"},
		{true, false, true},
	}
	for i, b := range branches {
		items := drainBranch(t, ctx, b)
		if !reflect.DeepEqual(items, want[i]) {
			t.Errorf("branch %d = %v, want %v", i, items, want[i])
		}
	}
}

func TestUnzipSkipColumns(t *testing.T) {
	ctx := context.Background()
	source := torchdata.Wrap("rows",
		[]any{1, "a", true},
		[]any{2, "b", false})

	branches, err := torchdata.Unzip("unzip", source, 3,
		torchdata.WithSkipColumns(1))
	if err != nil {
		t.Fatalf("Unzip() error = %v", err)
	}
	if len(branches) != 2 {
		t.Fatalf("got %d branches, want 2", len(branches))
	}
	if branches[0].Name() != "unzip[0]" || branches[1].Name() != "unzip[2]" {
		t.Errorf("branch names = %q, %q, want unzip[0], unzip[2]",
			branches[0].Name(), branches[1].Name())
	}

	first := drainBranch(t, ctx, branches[0])
	third := drainBranch(t, ctx, branches[1])
	if !reflect.DeepEqual(first, []any{1, 2}) {
		t.Errorf("column 0 = %v, want [1 2]", first)
	}
	if !reflect.DeepEqual(third, []any{true, false}) {
		t.Errorf("column 2 = %v, want [true false]", third)
	}
}

func TestUnzipTypedSlices(t *testing.T) {
	ctx := context.Background()
	source := torchdata.Wrap("rows", []int{1, 10}, []int{2, 20})

	branches, err := torchdata.Unzip("unzip", source, 2)
	if err != nil {
		t.Fatalf("Unzip() error = %v", err)
	}

	left := drainBranch(t, ctx, branches[0])
	right := drainBranch(t, ctx, branches[1])
	if !reflect.DeepEqual(left, []any{1, 2}) {
		t.Errorf("column 0 = %v, want [1 2]", left)
	}
	if !reflect.DeepEqual(right, []any{10, 20}) {
		t.Errorf("column 1 = %v, want [10 20]", right)
	}
}

func TestUnzipValidation(t *testing.T) {
	source := torchdata.Wrap("rows")

	tests := []struct {
		name string
		run  func() ([]torchdata.IterPipe, error)
	}{
		{"nil source", func() ([]torchdata.IterPipe, error) {
			return torchdata.Unzip("unzip", nil, 2)
		}},
		{"zero sequence length", func() ([]torchdata.IterPipe, error) {
			return torchdata.Unzip("unzip", source, 0)
		}},
		{"skip column out of range", func() ([]torchdata.IterPipe, error) {
			return torchdata.Unzip("unzip", source, 2, torchdata.WithSkipColumns(2))
		}},
		{"all columns skipped", func() ([]torchdata.IterPipe, error) {
			return torchdata.Unzip("unzip", source, 2, torchdata.WithSkipColumns(0, 1))
		}},
		{"zero buffer size", func() ([]torchdata.IterPipe, error) {
			return torchdata.Unzip("unzip", source, 2, torchdata.WithUnzipBufferSize(0))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.run(); err == nil {
				t.Error("Unzip() error = nil, want error")
			}
		})
	}
}

func TestUnzipBufferOverflow(t *testing.T) {
	ctx := context.Background()
	source := torchdata.Wrap("rows",
		[]any{1, 10}, []any{2, 20}, []any{3, 30})

	branches, err := torchdata.Unzip("unzip", source, 2,
		torchdata.WithUnzipBufferSize(1))
	if err != nil {
		t.Fatalf("Unzip() error = %v", err)
	}

	// Reading the first branch two items ahead of the untouched second
	// branch exceeds the look-ahead bound.
	it := branches[0].Iter()
	if item, err := it.Next(ctx); err != nil || item != 1 {
		t.Fatalf("Next() = %v, %v, want 1, nil", item, err)
	}
	if _, err := it.Next(ctx); !errors.Is(err, torchdata.ErrBufferOverflow) {
		t.Fatalf("Next() error = %v, want ErrBufferOverflow", err)
	}
	if _, err := it.Next(ctx); !errors.Is(err, torchdata.ErrBufferOverflow) {
		t.Errorf("Next() after failure error = %v, want ErrBufferOverflow", err)
	}
}

func TestUnzipInterleavedWithSmallBuffer(t *testing.T) {
	ctx := context.Background()
	source := torchdata.Wrap("rows",
		[]any{1, 10}, []any{2, 20}, []any{3, 30})

	// Lockstep consumption keeps at most one sequence buffered.
	branches, err := torchdata.Unzip("unzip", source, 2,
		torchdata.WithUnzipBufferSize(1))
	if err != nil {
		t.Fatalf("Unzip() error = %v", err)
	}

	it0 := branches[0].Iter()
	it1 := branches[1].Iter()
	var left, right []any
	for i := 0; i < 3; i++ {
		l, err := it0.Next(ctx)
		if err != nil {
			t.Fatalf("branch 0 Next() error = %v", err)
		}
		r, err := it1.Next(ctx)
		if err != nil {
			t.Fatalf("branch 1 Next() error = %v", err)
		}
		left = append(left, l)
		right = append(right, r)
	}
	if !reflect.DeepEqual(left, []any{1, 2, 3}) {
		t.Errorf("branch 0 = %v, want [1 2 3]", left)
	}
	if !reflect.DeepEqual(right, []any{10, 20, 30}) {
		t.Errorf("branch 1 = %v, want [10 20 30]", right)
	}
}

func TestUnzipReiterationResetsPass(t *testing.T) {
	ctx := context.Background()
	source := torchdata.Wrap("rows", []any{1, 10}, []any{2, 20})

	branches, err := torchdata.Unzip("unzip", source, 2)
	if err != nil {
		t.Fatalf("Unzip() error = %v", err)
	}

	it0 := branches[0].Iter()
	it1 := branches[1].Iter()
	if item, err := it1.Next(ctx); err != nil || item != 10 {
		t.Fatalf("Next() = %v, %v, want 10, nil", item, err)
	}

	it1b := branches[1].Iter()
	if item, err := it1b.Next(ctx); err != nil || item != 10 {
		t.Errorf("new pass Next() = %v, %v, want 10, nil", item, err)
	}
	if _, err := it0.Next(ctx); !errors.Is(err, torchdata.ErrIteratorInvalid) {
		t.Errorf("stale iterator Next() error = %v, want ErrIteratorInvalid", err)
	}
}

func TestUnzipReleasesUnconsumedTail(t *testing.T) {
	ctx := context.Background()
	row1, row2 := []any{1, 10}, []any{2, 20}
	source := torchdata.Wrap("rows", row1, row2, []any{3, 30})
	rec := &releaseRecorder{}

	branches, err := torchdata.Unzip("unzip", source, 2,
		torchdata.WithUnzipRelease(rec.release))
	if err != nil {
		t.Fatalf("Unzip() error = %v", err)
	}

	it0 := branches[0].Iter()
	it1 := branches[1].Iter()
	if _, err := it0.Next(ctx); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if _, err := it0.Next(ctx); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if _, err := it1.Next(ctx); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	// Branch 0 is two rows in, branch 1 one row in. Closing both abandons
	// the second row, which only branch 0 ever saw; the third row was never
	// pulled from the source and needs no release.
	if err := it0.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := it1.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !reflect.DeepEqual(rec.released, []any{row2}) {
		t.Errorf("released = %v, want [%v]", rec.released, row2)
	}
}

func TestUnzipNonSequenceItemFails(t *testing.T) {
	ctx := context.Background()
	source := torchdata.Wrap("rows", 42)

	branches, err := torchdata.Unzip("unzip", source, 2)
	if err != nil {
		t.Fatalf("Unzip() error = %v", err)
	}

	if _, err := torchdata.Collect(ctx, branches[0]); err == nil {
		t.Error("Collect() error = nil, want sequence error")
	}
}

func TestUnzipBranchLen(t *testing.T) {
	source := torchdata.Wrap("rows", []any{1, 10}, []any{2, 20})
	branches, err := torchdata.Unzip("unzip", source, 2)
	if err != nil {
		t.Fatalf("Unzip() error = %v", err)
	}
	for i, b := range branches {
		if n, err := b.Len(); err != nil || n != 2 {
			t.Errorf("branch %d Len() = %d, %v, want 2, nil", i, n, err)
		}
	}
}
