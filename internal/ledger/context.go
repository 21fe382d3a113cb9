package ledger

import "context"

type batchKeyCtx struct{}

// WithBatchKey tags a write with an idempotency key. Backends apply a
// keyed write at most once, so a retried batch is never double-counted.
func WithBatchKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, batchKeyCtx{}, key)
}

// BatchKey returns the idempotency key carried by ctx, if any.
func BatchKey(ctx context.Context) string {
	key, _ := ctx.Value(batchKeyCtx{}).(string)
	return key
}
