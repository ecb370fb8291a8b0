package composables

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/asptt-sync/pkg/constants"
)

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the logger from the context, or nil.
func UseLogger(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return nil
	}
	switch typed := ctx.Value(constants.LoggerKey).(type) {
	case *logrus.Entry:
		return typed
	case *logrus.Logger:
		return logrus.NewEntry(typed)
	default:
		return nil
	}
}

// WithOperator records who triggered the current action, for import logs.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, constants.OperatorKey, strings.TrimSpace(operator))
}

func UseOperator(ctx context.Context) string {
	v, _ := ctx.Value(constants.OperatorKey).(string)
	if v == "" {
		return "system"
	}
	return v
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, constants.RequestIDKey, strings.TrimSpace(id))
}

func UseRequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(constants.RequestIDKey).(string)
	return v, ok && v != ""
}
