package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tb0hdan/ctlog-checker/pkg/buffer"
	"github.com/tb0hdan/ctlog-checker/pkg/client"
	"github.com/tb0hdan/ctlog-checker/pkg/configs"
	"github.com/tb0hdan/ctlog-checker/pkg/metrics"
	"github.com/tb0hdan/ctlog-checker/pkg/models"
	"go.uber.org/zap"
)

const latestAlertsLimit = 25

const homeText = `ctlog-checker

Certificates issued by unexpected CAs for the monitored domain name patterns.

  ws  /               alert stream (full records)
  ws  /domains-only   alert stream (names only)
  GET /latest.json    most recent alerts
  GET /report.json    aggregate of the last successful check
  GET /stats          check statistics
  GET /metrics        Prometheus metrics
  GET /healthz        liveness
`

type ServerInterface interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// Server represents the web server
type Server struct {
	config        *configs.Config
	logger        *zap.Logger
	clientManager client.ManagerInterface
	alertBuffer   buffer.AlertBufferInterface
	reports       metrics.StatsProvider
	gatherer      prometheus.Gatherer
	httpServer    *http.Server
	upgrader      websocket.Upgrader
}

// NewServer creates a new web server
func NewServer(config *configs.Config, logger *zap.Logger, clientManager client.ManagerInterface,
	alertBuffer buffer.AlertBufferInterface, reports metrics.StatsProvider, gatherer prometheus.Gatherer) *Server {
	return &Server{
		config:        config,
		logger:        logger,
		clientManager: clientManager,
		alertBuffer:   alertBuffer,
		reports:       reports,
		gatherer:      gatherer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoints
	mux.HandleFunc("/", s.handleWebSocket)
	mux.HandleFunc("/domains-only", s.handleWebSocket)

	// REST endpoints
	mux.HandleFunc("/latest.json", s.handleLatest)
	mux.HandleFunc("/report.json", s.handleReport)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return mux
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	s.logger.Info("HTTP server listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Shutdown gracefully shuts down the web server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		s.handleHome(w, r)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	streamType := models.StreamFull
	if r.URL.Path == "/domains-only" {
		streamType = models.StreamDomainsOnly
	}

	client := &models.Client{
		StreamType:  streamType,
		Connection:  conn,
		SendChan:    make(chan []byte, s.config.Server.ClientBufferSize),
		IP:          r.RemoteAddr,
		UserAgent:   r.Header.Get("User-Agent"),
		ConnectedAt: time.Now(),
	}

	s.clientManager.Register(client)

	go s.handleClient(client)
}

// handleClient pumps alerts to a WebSocket client until it goes away
func (s *Server) handleClient(client *models.Client) {
	conn := client.Connection.(*websocket.Conn)
	pongTimeout := time.Duration(s.config.Server.PongTimeout) * time.Second
	writeTimeout := time.Duration(s.config.Server.WriteTimeout) * time.Second

	ticker := time.NewTicker(time.Duration(s.config.Server.PingPeriod) * time.Second)
	gone := make(chan struct{})
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	conn.SetReadLimit(s.config.Server.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	// Read pump, only there to process pongs and notice disconnects
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case message, ok := <-client.SendChan:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.clientManager.Unregister(client)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.clientManager.Unregister(client)
				return
			}

		case <-gone:
			s.clientManager.Unregister(client)
			return
		}
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(homeText))
}

// handleLatest returns the most recent alerts
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.alertBuffer.GetLatest(latestAlertsLimit))
}

// handleReport returns the aggregate of the last successful check
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	result := s.reports.LastResult()
	if result == nil {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, result)
}

// handleStats returns check statistics
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.reports.GetStats()
	stats.ConnectedClients = s.clientManager.GetClientCount()
	s.writeJSON(w, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
