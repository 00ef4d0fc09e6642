package checker

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type runIDKey struct{}

// WithRunID attaches a run identifier to ctx; CheckCTLogs logs under it
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run identifier in ctx or a fresh one
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(runIDKey{}).(string); ok && runID != "" {
		return runID
	}
	return uuid.New().String()
}

func runIDField(ctx context.Context) zap.Field {
	if runID, ok := ctx.Value(runIDKey{}).(string); ok {
		return zap.String("run_id", runID)
	}
	return zap.Skip()
}
