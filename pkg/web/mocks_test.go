package web

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

// MockAlertBuffer is a mock implementation of buffer.AlertBufferInterface
type MockAlertBuffer struct {
	mock.Mock
}

func (m *MockAlertBuffer) Add(alert *models.Alert) {
	m.Called(alert)
}

func (m *MockAlertBuffer) GetLatest(limit int) []*models.Alert {
	args := m.Called(limit)
	return args.Get(0).([]*models.Alert)
}

func (m *MockAlertBuffer) GetAlertCount() int64 {
	args := m.Called()
	return args.Get(0).(int64)
}

// MockReports is a mock implementation of metrics.StatsProvider
type MockReports struct {
	mock.Mock
}

func (m *MockReports) GetStats() models.Stats {
	args := m.Called()
	return args.Get(0).(models.Stats)
}

func (m *MockReports) LastResult() *models.AggregateResult {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.AggregateResult)
}
