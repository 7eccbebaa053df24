package torchdata_test

import (
	"context"
	"sync"
	"testing"

	torchdata "github.com/PierreGtch/TorchData"
)

// testLogger records structured log calls for assertions.
type testLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *testLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level == "warn" {
		l.warns = append(l.warns, msg)
	}
}

func (l *testLogger) Debug(ctx context.Context, msg string, keysAndValues ...any) {
	l.log("debug", msg)
}

func (l *testLogger) Info(ctx context.Context, msg string, keysAndValues ...any) {
	l.log("info", msg)
}

func (l *testLogger) Warn(ctx context.Context, msg string, keysAndValues ...any) {
	l.log("warn", msg)
}

func (l *testLogger) Error(ctx context.Context, msg string, keysAndValues ...any) {
	l.log("error", msg)
}

func (l *testLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

// releaseRecorder captures every item handed to the release hook.
type releaseRecorder struct {
	released []any
}

func (r *releaseRecorder) release(item any) {
	r.released = append(r.released, item)
}

// drainBranch consumes a branch to exhaustion and fails the test on any
// error other than end of stream.
func drainBranch(t *testing.T, ctx context.Context, p torchdata.IterPipe) []any {
	t.Helper()
	items, err := torchdata.Collect(ctx, p)
	if err != nil {
		t.Fatalf("Collect(%s) error = %v", p.Name(), err)
	}
	return items
}
