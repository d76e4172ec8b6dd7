package engine

import (
	"context"
	"encoding/hex"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// WithRequestID 使用调用方的请求 ID，未设置时每个请求生成一个 UUIDv7
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID ctx 中的请求 ID
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func newRequestID() string {
	u, err := uuid.NewV7()
	if err != nil {
		u = uuid.New()
	}
	return hex.EncodeToString(u[:])
}
