package appctx

import "context"

// ContextKey is the shared type for all context keys in this codebase.
// Keeping it in a tiny package avoids import cycles (config <-> utils).
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyUserId        = ContextKey("UserId")
	ContextKeyUserName      = ContextKey("UserName")
	ContextKeyCorrelationId = ContextKey("CorrelationId")

	// ContextKeySkipInvalidation disables the cache invalidation router for
	// writes made under this context (maintenance backfills, derived-field
	// persists). Request-scoped on purpose: a process-wide "syncing" flag
	// would cross-contaminate concurrent requests.
	ContextKeySkipInvalidation = ContextKey("SkipInvalidation")

	// ContextKeyPendingInvalidations carries the eviction buffer for one
	// write, so cache flushes can run after the transaction commits.
	ContextKeyPendingInvalidations = ContextKey("PendingInvalidations")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func GetBool(ctx context.Context, key ContextKey) (bool, bool) {
	v, ok := ctx.Value(key).(bool)
	return v, ok
}

func GetInt(ctx context.Context, key ContextKey) (int, bool) {
	v, ok := ctx.Value(key).(int)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
