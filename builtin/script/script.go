// Package script executes sandboxed Lua transforms over pipeline items.
// A script defines a transform(item) function; each item of the stream is
// converted to a Lua value, passed through the function, and the result
// converted back to Go.
package script

import (
	"context"
	"fmt"
	"os"

	"github.com/Shopify/go-lua"
)

// Validate checks that a script compiles and defines a transform function,
// without running it over any item.
func Validate(source string) error {
	l := lua.NewState()
	setupSandbox(l)

	if err := lua.DoString(l, source); err != nil {
		return fmt.Errorf("script error: %w", err)
	}

	l.Global("transform")
	defer l.Pop(1)
	if l.TypeOf(-1) != lua.TypeFunction {
		return fmt.Errorf("required function 'transform' not found")
	}
	return nil
}

// ValidateFile checks a script file.
func ValidateFile(path string) error {
	content, err := os.ReadFile(path) //nolint:gosec // Path is user-provided and validated
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	return Validate(string(content))
}

// Transform runs a script's transform function over one item. Each call
// executes in a fresh sandboxed Lua state, so scripts cannot leak state
// between items.
func Transform(ctx context.Context, source string, item any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := lua.NewState()
	setupSandbox(l)

	if err := lua.DoString(l, source); err != nil {
		return nil, fmt.Errorf("script error: %w", err)
	}

	l.Global("transform")
	if l.TypeOf(-1) != lua.TypeFunction {
		l.Pop(1)
		return nil, fmt.Errorf("required function 'transform' not found")
	}
	pushValue(l, item)
	if err := l.ProtectedCall(1, 1, 0); err != nil {
		return nil, fmt.Errorf("transform error: %w", err)
	}
	result := pullValue(l, -1)
	l.Pop(1)
	return result, nil
}

// Key runs a script's key function over one item. It behaves like
// Transform but calls key(item) instead, for scripts that compute join
// keys.
func Key(ctx context.Context, source string, item any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := lua.NewState()
	setupSandbox(l)

	if err := lua.DoString(l, source); err != nil {
		return nil, fmt.Errorf("script error: %w", err)
	}

	l.Global("key")
	if l.TypeOf(-1) != lua.TypeFunction {
		l.Pop(1)
		return nil, fmt.Errorf("required function 'key' not found")
	}
	pushValue(l, item)
	if err := l.ProtectedCall(1, 1, 0); err != nil {
		return nil, fmt.Errorf("key error: %w", err)
	}
	result := pullValue(l, -1)
	l.Pop(1)
	return result, nil
}
