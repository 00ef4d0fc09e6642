package extract

import (
	"github.com/stretchr/testify/mock"
	"github.com/tb0hdan/ctlog-checker/pkg/models"
)

// MockParser is a mock implementation of parser.ParserInterface
type MockParser struct {
	mock.Mock
}

func (m *MockParser) ParseCertificatePEM(pemText string) (*models.DecodedCertificate, error) {
	args := m.Called(pemText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DecodedCertificate), args.Error(1)
}
