package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const (
	RequestIDKey ctxKey = "request_id"
	UserIDKey    ctxKey = "user_id"
)

// New builds a zap logger. Production mode emits JSON with ISO8601 times,
// anything else uses the colored development console encoder.
func New(production bool) *zap.Logger {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return l
}

// WithRequestID stores the request id on ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID stores the authenticated user id on ctx.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// RequestID returns the request id stored on ctx, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// FromContext decorates l with the request and user ids found on ctx.
func FromContext(ctx context.Context, l *zap.Logger) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	if ctx == nil {
		return l
	}
	var fields []zap.Field
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		fields = append(fields, zap.String(string(RequestIDKey), id))
	}
	if id, ok := ctx.Value(UserIDKey).(int64); ok && id != 0 {
		fields = append(fields, zap.Int64(string(UserIDKey), id))
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}
