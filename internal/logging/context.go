package logging

import (
	"context"
	"slices"
)

type requestIDKey struct{}

// WithRequestID tags ctx so every log line written with it carries request_id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// contextArgs never writes into the backing array of args.
func contextArgs(ctx context.Context, args []any) []any {
	if id := RequestID(ctx); id != "" {
		return slices.Concat(args, []any{"request_id", id})
	}
	return args
}
