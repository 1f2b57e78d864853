package ctxmanage

import (
	"context"

	"github.com/gin-gonic/gin"
)

type ctxKey int

// TraceIdKey is the request context key under which middleware.Logger stores the trace id.
const TraceIdKey ctxKey = 1

// GetTraceIdOfRequest returns the trace id stored on the request, or "unknown" when the
// request did not pass through the logging middleware.
func GetTraceIdOfRequest(c *gin.Context) string {
	return GetTraceId(c.Request.Context())
}

func GetTraceId(ctx context.Context) string {
	traceId, ok := ctx.Value(TraceIdKey).(string)
	if !ok {
		return "unknown"
	}
	return traceId
}

func WithTraceId(ctx context.Context, traceId string) context.Context {
	return context.WithValue(ctx, TraceIdKey, traceId)
}
