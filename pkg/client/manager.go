package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tb0hdan/ctlog-checker/pkg/models"
	"go.uber.org/zap"
)

type ManagerInterface interface {
	Start(ctx context.Context)
	Register(client *models.Client)
	Unregister(client *models.Client)
	Broadcast(alert *models.Alert)
	GetClientCount() int
	GetClients() map[string]*models.Client
}

// Manager manages WebSocket clients subscribed to alerts
type Manager struct {
	clients    map[string]*models.Client
	mu         sync.RWMutex
	logger     *zap.Logger
	register   chan *models.Client
	unregister chan *models.Client
	broadcast  chan *models.Alert
	bufferSize int
}

// NewManager creates a new client manager
func NewManager(logger *zap.Logger, bufferSize int) ManagerInterface {
	return &Manager{
		clients:    make(map[string]*models.Client),
		logger:     logger,
		register:   make(chan *models.Client),
		unregister: make(chan *models.Client),
		broadcast:  make(chan *models.Alert, 1000),
		bufferSize: bufferSize,
	}
}

// Start runs the client manager loop until ctx is done
func (m *Manager) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.closeAllClients()
			return

		case client := <-m.register:
			m.registerClient(client)

		case client := <-m.unregister:
			m.unregisterClient(client)

		case alert := <-m.broadcast:
			m.broadcastAlert(alert)
		}
	}
}

// Register registers a new client
func (m *Manager) Register(client *models.Client) {
	client.ID = uuid.New().String()
	m.register <- client
}

// Unregister unregisters a client
func (m *Manager) Unregister(client *models.Client) {
	m.unregister <- client
}

// Broadcast queues an alert for all clients, dropping it when the queue is full
func (m *Manager) Broadcast(alert *models.Alert) {
	select {
	case m.broadcast <- alert:
	default:
		m.logger.Warn("Broadcast channel full, dropping alert")
	}
}

// GetClientCount returns the number of connected clients
func (m *Manager) GetClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// GetClients returns a copy of all connected clients
func (m *Manager) GetClients() map[string]*models.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients := make(map[string]*models.Client, len(m.clients))
	for id, client := range m.clients {
		clients[id] = client
	}
	return clients
}

func (m *Manager) registerClient(client *models.Client) {
	m.mu.Lock()
	m.clients[client.ID] = client
	m.mu.Unlock()

	m.logger.Info("Client connected",
		zap.String("id", client.ID),
		zap.String("ip", client.IP),
		zap.String("stream_type", streamTypeToString(client.StreamType)),
	)
}

func (m *Manager) unregisterClient(client *models.Client) {
	m.mu.Lock()
	_, ok := m.clients[client.ID]
	if ok {
		close(client.SendChan)
		delete(m.clients, client.ID)
	}
	m.mu.Unlock()

	if ok {
		m.logger.Info("Client disconnected",
			zap.String("id", client.ID),
			zap.Duration("duration", time.Since(client.ConnectedAt)),
		)
	}
}

// broadcastAlert encodes alert once per stream type and queues it on every
// subscriber. Clients whose buffer is full are disconnected after the pass.
func (m *Manager) broadcastAlert(alert *models.Alert) {
	m.mu.RLock()
	byStream := make(map[models.StreamType][]*models.Client)
	for _, client := range m.clients {
		byStream[client.StreamType] = append(byStream[client.StreamType], client)
	}
	m.mu.RUnlock()

	var stalled []*models.Client
	for streamType, clients := range byStream {
		// Nothing to show a domains-only subscriber
		if streamType == models.StreamDomainsOnly && len(alertDomains(alert)) == 0 {
			continue
		}

		message, err := formatMessage(alert, streamType)
		if err != nil {
			m.logger.Error("Failed to format message",
				zap.String("stream_type", streamTypeToString(streamType)),
				zap.Error(err),
			)
			continue
		}

		for _, client := range clients {
			select {
			case client.SendChan <- message:
			default:
				stalled = append(stalled, client)
			}
		}
	}

	for _, client := range stalled {
		m.logger.Warn("Client buffer full, closing connection",
			zap.String("id", client.ID),
			zap.String("run_id", alert.RunID),
		)
		m.unregisterClient(client)
	}
}

// alertDomains returns the certificate SANs, or the subject common name when
// there are none
func alertDomains(alert *models.Alert) []string {
	if alert.Certificate == nil {
		return nil
	}
	if len(alert.Certificate.SubjectAlternativeNames) > 0 {
		return alert.Certificate.SubjectAlternativeNames
	}
	if cn := alert.Certificate.Subject.CommonName(); cn != "" {
		return []string{cn}
	}
	return nil
}

// formatMessage encodes an alert for the given stream type
func formatMessage(alert *models.Alert, streamType models.StreamType) ([]byte, error) {
	switch streamType {
	case models.StreamDomainsOnly:
		data := models.DomainsOnlyData{
			RunID:   alert.RunID,
			Seen:    alert.Seen,
			Domains: alertDomains(alert),
		}
		if alert.Certificate != nil {
			data.Issuer = alert.Certificate.Issuer.CommonName()
		}
		return json.Marshal(models.DomainsOnly{
			MessageType: alert.MessageType,
			Data:        data,
		})

	default:
		return json.Marshal(alert)
	}
}

// closeAllClients closes all client connections
func (m *Manager) closeAllClients() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.clients {
		close(client.SendChan)
	}
	m.clients = make(map[string]*models.Client)
}

// streamTypeToString converts stream type to string
func streamTypeToString(st models.StreamType) string {
	switch st {
	case models.StreamFull:
		return "full"
	case models.StreamDomainsOnly:
		return "domains-only"
	default:
		return "unknown"
	}
}
