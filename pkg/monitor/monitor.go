package monitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tb0hdan/ctlog-checker/pkg/buffer"
	"github.com/tb0hdan/ctlog-checker/pkg/checker"
	"github.com/tb0hdan/ctlog-checker/pkg/client"
	"github.com/tb0hdan/ctlog-checker/pkg/configs"
	"github.com/tb0hdan/ctlog-checker/pkg/metrics"
	"github.com/tb0hdan/ctlog-checker/pkg/watcher"
	"github.com/tb0hdan/ctlog-checker/pkg/web"
	"go.uber.org/zap"
)

type ServerInterface interface {
	// Start starts the periodic checker and its web surface
	Start() error
	// Shutdown gracefully shuts down the server
	Shutdown(ctx context.Context) error
}

// Server runs the CT log check on an interval and serves its results
type Server struct {
	config        *configs.Config
	logger        *zap.Logger
	clientManager client.ManagerInterface
	watcher       watcher.WatcherInterface
	webServer     web.ServerInterface
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// New creates a new monitor server
func New(config *configs.Config, logger *zap.Logger) (*Server, error) {
	if len(config.Checker.DomainNamePatterns) == 0 {
		return nil, fmt.Errorf("%w: no domain name patterns configured", checker.ErrInvalidArgument)
	}

	ctx, cancel := context.WithCancel(context.Background())

	alertBuffer := buffer.New(config.Server.AlertBufferSize)
	clientManager := client.NewManager(logger, config.Server.ClientBufferSize)
	ctWatcher := watcher.NewWatcher(config, logger, checker.New(config, logger), clientManager, alertBuffer)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewCheckCollector(ctWatcher, clientManager),
	)

	webServer := web.NewServer(config, logger, clientManager, alertBuffer, ctWatcher, registry)

	return &Server{
		config:        config,
		logger:        logger,
		clientManager: clientManager,
		watcher:       ctWatcher,
		webServer:     webServer,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start starts the client manager, the web server and the watcher loop
func (s *Server) Start() error {
	s.logger.Info("Starting ctlog-checker server")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientManager.Start(s.ctx)
	}()

	if err := s.webServer.Start(); err != nil {
		return fmt.Errorf("failed to start web server: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.watcher.Start(s.ctx)
	}()

	s.logger.Info("ctlog-checker server started",
		zap.Int("port", s.config.Server.Port),
		zap.String("host", s.config.Server.Host),
	)

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down ctlog-checker server")

	s.cancel()

	if err := s.webServer.Shutdown(ctx); err != nil {
		s.logger.Error("Error shutting down web server", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("ctlog-checker server shut down")
	return nil
}
