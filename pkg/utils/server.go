package utils

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

type ServerInterface interface {
	// Start starts the server in the background
	Start() error
	// Shutdown gracefully shuts down the server
	Shutdown(ctx context.Context) error
}

// Run starts server and shuts it down once ctx is done
func Run(ctx context.Context, server ServerInterface, logger *zap.Logger) error {
	if err := server.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Error("Shutdown timeout exceeded")
		}
		return err
	}

	logger.Info("Shutdown complete")
	return nil
}
