package utils

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/clientdesk_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyUserId           = appctx.ContextKeyUserId
	ContextKeyUserName         = appctx.ContextKeyUserName
	ContextKeyCorrelationId    = appctx.ContextKeyCorrelationId
	ContextKeySkipInvalidation = appctx.ContextKeySkipInvalidation
)

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func GetSkipInvalidationFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeySkipInvalidation)
}

func SetSkipInvalidationInContext(ctx context.Context, skip bool) context.Context {
	return appctx.Set(ctx, ContextKeySkipInvalidation, skip)
}

// WithStoreTimeout bounds an object-store call. The original design had no
// timeout at all; a hung db connection should fail the request, never hand
// back stale data silently.
func WithStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	seconds := 5
	if v := strings.TrimSpace(os.Getenv("STORE_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			seconds = n
		}
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}
