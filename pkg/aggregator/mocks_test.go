package aggregator

import (
	"github.com/stretchr/testify/mock"
	"github.com/tb0hdan/ctlog-checker/pkg/models"
)

// MockExtractor is a mock implementation of extract.ExtractorInterface
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(summary *models.Text) (*models.CertificateRecord, error) {
	args := m.Called(summary)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CertificateRecord), args.Error(1)
}
