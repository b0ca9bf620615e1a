package models

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/clientdesk_backend/cache"
	"bitbucket.org/mmdatafocus/clientdesk_backend/utils"
	"gorm.io/gorm"
)

func TestDeferredInvalidationFlushesAfterCommitOnly(t *testing.T) {
	ctx, flush := deferInvalidation(context.Background())

	store := cache.Std()
	key := string(NamespaceServiceRequestHours) + "41"
	if err := store.Set(ctx, key, 3, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// a hook firing mid-transaction must record, not evict
	tx := &gorm.DB{Statement: &gorm.Statement{Context: ctx}}
	afterWrite(tx, EntityTypeTimeEntry)

	var got int
	if ok, _ := store.Get(ctx, key, &got); !ok {
		t.Fatal("namespace evicted before the flush ran")
	}

	flush()
	if ok, _ := store.Get(ctx, key, &got); ok {
		t.Fatal("expected eviction after the flush")
	}
}

func TestDeferInvalidationNestedWriteSharesBuffer(t *testing.T) {
	outer, _ := deferInvalidation(context.Background())
	inner, innerFlush := deferInvalidation(outer)

	if bufferFrom(inner) != bufferFrom(outer) {
		t.Fatal("nested write should reuse the outermost buffer")
	}

	store := cache.Std()
	key := string(NamespaceProjectHours) + "7"
	if err := store.Set(inner, key, 1, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	bufferFrom(inner).addEntity(EntityTypeTimeEntry)

	// the inner flush is a no-op; only the outermost owner evicts
	innerFlush()
	var got int
	if ok, _ := store.Get(inner, key, &got); !ok {
		t.Fatal("inner flush must not evict on behalf of the outer write")
	}
}

func TestAfterWriteHonorsSkipFlagOverBuffer(t *testing.T) {
	ctx, _ := deferInvalidation(context.Background())
	ctx = utils.SetSkipInvalidationInContext(ctx, true)

	tx := &gorm.DB{Statement: &gorm.Statement{Context: ctx}}
	afterWrite(tx, EntityTypeTimeEntry)

	buffer := bufferFrom(ctx)
	buffer.mu.Lock()
	pending := len(buffer.entities)
	buffer.mu.Unlock()
	if pending != 0 {
		t.Fatalf("skip flag set, expected no pending invalidations, got %d", pending)
	}
}
