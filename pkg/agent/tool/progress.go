package tool

import (
	"context"
	"fmt"
)

// Event is a status message emitted by a running tool
type Event struct {
	Tool    string
	Message string
}

// ProgressFunc receives tool events, e.g. to show them in a terminal
type ProgressFunc func(ctx context.Context, event Event)

type progressKey struct{}

// WithProgress returns a context whose tools report to fn
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// Report sends a formatted event for toolName. Without a ProgressFunc in
// ctx it does nothing.
func Report(ctx context.Context, toolName, format string, args ...any) {
	fn, ok := ctx.Value(progressKey{}).(ProgressFunc)
	if !ok || fn == nil {
		return
	}
	fn(ctx, Event{Tool: toolName, Message: fmt.Sprintf(format, args...)})
}
