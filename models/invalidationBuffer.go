package models

import (
	"context"
	"sync"

	"bitbucket.org/mmdatafocus/clientdesk_backend/appctx"
	"bitbucket.org/mmdatafocus/clientdesk_backend/config"
)

// invalidationBuffer collects the cache evictions one write produces so
// they can run after the transaction commits. Flushing from inside the GORM
// hooks would leave a window where a racing reader re-caches the pre-commit
// value for a full TTL.
type invalidationBuffer struct {
	mu       sync.Mutex
	entities map[EntityType]struct{}
	keys     map[string]struct{}
}

func (b *invalidationBuffer) addEntity(entityType EntityType) {
	b.mu.Lock()
	b.entities[entityType] = struct{}{}
	b.mu.Unlock()
}

func (b *invalidationBuffer) addKey(key string) {
	b.mu.Lock()
	b.keys[key] = struct{}{}
	b.mu.Unlock()
}

func (b *invalidationBuffer) flush(ctx context.Context) {
	b.mu.Lock()
	keys := make([]string, 0, len(b.keys))
	for key := range b.keys {
		keys = append(keys, key)
	}
	entities := make([]EntityType, 0, len(b.entities))
	for entityType := range b.entities {
		entities = append(entities, entityType)
	}
	b.keys = map[string]struct{}{}
	b.entities = map[EntityType]struct{}{}
	b.mu.Unlock()

	if len(keys) > 0 {
		if err := config.RemoveRedisKey(keys...); err != nil {
			config.LogError(config.GetLogger(), "invalidationBuffer", "flush",
				"remove instance keys", keys, err)
		}
	}
	for _, entityType := range entities {
		invalidateEntity(ctx, entityType)
	}
}

func bufferFrom(ctx context.Context) *invalidationBuffer {
	buffer, _ := ctx.Value(appctx.ContextKeyPendingInvalidations).(*invalidationBuffer)
	return buffer
}

// deferInvalidation arms an eviction buffer on the context and returns the
// flush to call once the write has committed. On an error path the flush is
// simply never called; nothing was committed, nothing went stale. A nested
// write reuses the outermost buffer and gets a no-op flush.
func deferInvalidation(ctx context.Context) (context.Context, func()) {
	if bufferFrom(ctx) != nil {
		return ctx, func() {}
	}
	buffer := &invalidationBuffer{
		entities: map[EntityType]struct{}{},
		keys:     map[string]struct{}{},
	}
	ctx = appctx.Set(ctx, appctx.ContextKeyPendingInvalidations, buffer)
	flushCtx := ctx
	return ctx, func() { buffer.flush(flushCtx) }
}
