// Package reqctx stamps every ops API request with a request ID, carried
// via a context-key struct narrowed to the one ID this domain's
// single-process ops surface needs (no distributed trace ID, since
// OpenTelemetry already covers cross-process spans for the pipeline
// itself).
package reqctx

import "context"

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
