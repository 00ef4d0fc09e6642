package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

type MockServer struct {
	mock.Mock
}

func (m *MockServer) Start() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockServer) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type RunTestSuite struct {
	suite.Suite
	server *MockServer
}

func (suite *RunTestSuite) SetupTest() {
	suite.server = new(MockServer)
}

func (suite *RunTestSuite) TearDownTest() {
	suite.server.AssertExpectations(suite.T())
}

func (suite *RunTestSuite) TestStartError() {
	startErr := errors.New("bind failed")
	suite.server.On("Start").Return(startErr)

	err := Run(context.Background(), suite.server, zaptest.NewLogger(suite.T()))

	suite.ErrorIs(err, startErr)
}

func (suite *RunTestSuite) TestShutdownOnCancel() {
	suite.server.On("Start").Return(nil)
	suite.server.On("Shutdown", mock.Anything).Run(func(args mock.Arguments) {
		_, hasDeadline := args.Get(0).(context.Context).Deadline()
		suite.True(hasDeadline)
	}).Return(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	suite.NoError(Run(ctx, suite.server, zaptest.NewLogger(suite.T())))
}

func (suite *RunTestSuite) TestShutdownError() {
	shutdownErr := context.DeadlineExceeded
	suite.server.On("Start").Return(nil)
	suite.server.On("Shutdown", mock.Anything).Return(shutdownErr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	suite.ErrorIs(Run(ctx, suite.server, zaptest.NewLogger(suite.T())), shutdownErr)
}

func TestRunTestSuite(t *testing.T) {
	suite.Run(t, new(RunTestSuite))
}
