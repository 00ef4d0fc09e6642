package monitor

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tb0hdan/ctlog-checker/pkg/models"
)

// MockClientManager is a mock implementation of client.ManagerInterface
type MockClientManager struct {
	mock.Mock
}

func (m *MockClientManager) Start(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockClientManager) Register(client *models.Client) {
	m.Called(client)
}

func (m *MockClientManager) Unregister(client *models.Client) {
	m.Called(client)
}

func (m *MockClientManager) Broadcast(alert *models.Alert) {
	m.Called(alert)
}

func (m *MockClientManager) GetClientCount() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockClientManager) GetClients() map[string]*models.Client {
	args := m.Called()
	return args.Get(0).(map[string]*models.Client)
}

// MockWatcher is a mock implementation of watcher.WatcherInterface
type MockWatcher struct {
	mock.Mock
}

func (m *MockWatcher) Start(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockWatcher) RunOnce(ctx context.Context) *models.RunReport {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.RunReport)
}

func (m *MockWatcher) GetStats() models.Stats {
	args := m.Called()
	return args.Get(0).(models.Stats)
}

func (m *MockWatcher) LastResult() *models.AggregateResult {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.AggregateResult)
}

// MockWebServer is a mock implementation of web.ServerInterface
type MockWebServer struct {
	mock.Mock
}

func (m *MockWebServer) Start() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockWebServer) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
