package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/tb0hdan/ctlog-checker/pkg/checker"
	"github.com/tb0hdan/ctlog-checker/pkg/configs"
	"github.com/tb0hdan/ctlog-checker/pkg/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type WatcherTestSuite struct {
	suite.Suite
	logger      *zap.Logger
	config      *configs.Config
	now         time.Time
	mockChecker *MockChecker
	mockClient  *MockClientManager
	mockBuffer  *MockAlertBuffer
}

func (suite *WatcherTestSuite) SetupTest() {
	suite.logger = zaptest.NewLogger(suite.T())
	suite.config = &configs.Config{
		Checker: configs.CheckerConfig{
			DomainNamePatterns:  []string{"%.example.com", "%.example.org"},
			ExpectedCAs:         []string{"Let's Encrypt", "^DigiCert"},
			IgnoreIssuedBefore:  86400,
			IgnoreExpiredBefore: 0,
		},
		Server: configs.ServerConfig{
			CheckInterval: 3600,
		},
	}
	suite.now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	suite.mockChecker = new(MockChecker)
	suite.mockClient = new(MockClientManager)
	suite.mockBuffer = new(MockAlertBuffer)
}

func (suite *WatcherTestSuite) TearDownTest() {
	suite.mockChecker.AssertExpectations(suite.T())
	suite.mockClient.AssertExpectations(suite.T())
	suite.mockBuffer.AssertExpectations(suite.T())
}

func (suite *WatcherTestSuite) newWatcher() *Watcher {
	w := NewWatcher(suite.config, suite.logger, suite.mockChecker, suite.mockClient, suite.mockBuffer)
	w.now = func() time.Time { return suite.now }
	return w
}

func (suite *WatcherTestSuite) createTestResult() *models.AggregateResult {
	expected := &models.CertificateRecord{
		Serial: "1",
		Issuer: models.RDN{"commonName": "Let's Encrypt R3"},
	}
	rogue1 := &models.CertificateRecord{
		Serial: "2",
		Issuer: models.RDN{"commonName": "Rogue CA"},
	}
	rogue2 := &models.CertificateRecord{
		Serial: "3",
		Issuer: models.RDN{"commonName": "Rogue CA"},
	}

	result := models.NewAggregateResult()
	result.AllCerts.Entries = []*models.CertificateRecord{expected, rogue1, rogue2}
	result.UnexpectedCA.Entries = []*models.CertificateRecord{rogue1, rogue2}
	result.ByCA.Entries["Let's Encrypt R3"] = []*models.CertificateRecord{expected}
	result.ByCA.Entries["Rogue CA"] = []*models.CertificateRecord{rogue1, rogue2}
	result.Recount()
	return result
}

func (suite *WatcherTestSuite) TestNewWatcher() {
	w := NewWatcher(suite.config, suite.logger, suite.mockChecker, suite.mockClient, suite.mockBuffer)

	suite.NotNil(w)
	suite.Implements((*WatcherInterface)(nil), w)
	suite.Equal(suite.config, w.config)
	suite.NotNil(w.logger)
	suite.NotNil(w.now)
	suite.Nil(w.LastResult())

	stats := w.GetStats()
	suite.Equal(int64(0), stats.Runs)
	suite.Nil(stats.LastRun)
}

func (suite *WatcherTestSuite) TestRunOnceRaisesAlerts() {
	result := suite.createTestResult()
	nowTS := suite.now.Unix()

	var ctxRunID string
	suite.mockChecker.On("CheckCTLogs",
		mock.Anything,
		suite.config.Checker.DomainNamePatterns,
		models.FilterWindow{
			IgnoreIssuedBeforeTS:  nowTS - 86400,
			IgnoreExpiredBeforeTS: nowTS,
			ExpectedCAs:           []string{"Let's Encrypt", "^DigiCert"},
		},
	).Run(func(args mock.Arguments) {
		ctxRunID = checker.RunIDFromContext(args.Get(0).(context.Context))
	}).Return(result, nil).Once()
	suite.mockBuffer.On("Add", mock.AnythingOfType("*models.Alert")).Twice()
	suite.mockClient.On("Broadcast", mock.AnythingOfType("*models.Alert")).Twice()

	w := suite.newWatcher()
	report := w.RunOnce(context.Background())

	suite.NotEmpty(report.RunID)
	suite.Equal(report.RunID, ctxRunID)
	suite.Empty(report.Error)
	suite.Equal(3, report.AllCerts)
	suite.Equal(2, report.UnexpectedCA)
	suite.Equal(2, report.DistinctIssuers)
	suite.Equal(2, report.NewAlerts)

	stats := w.GetStats()
	suite.Equal(int64(1), stats.Runs)
	suite.Equal(int64(0), stats.FailedRuns)
	suite.Equal(int64(2), stats.AlertsRaised)
	suite.Equal(report, stats.LastRun)
	suite.Equal(result, w.LastResult())

	for _, call := range suite.mockBuffer.Calls {
		alert := call.Arguments.Get(0).(*models.Alert)
		suite.Equal(alertMessageType, alert.MessageType)
		suite.Equal(report.RunID, alert.RunID)
		suite.Equal("Rogue CA", alert.Certificate.Issuer.CommonName())
	}
}

func (suite *WatcherTestSuite) TestOverlappingWindowsAlertOnce() {
	first := suite.createTestResult()
	second := suite.createTestResult()
	rogue3 := &models.CertificateRecord{
		Serial: "4",
		Issuer: models.RDN{"commonName": "Rogue CA"},
	}
	second.UnexpectedCA.Entries = append(second.UnexpectedCA.Entries, rogue3)
	second.Recount()

	suite.mockChecker.On("CheckCTLogs", mock.Anything, mock.Anything, mock.Anything).Return(first, nil).Once()
	suite.mockChecker.On("CheckCTLogs", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("HTTP 500")).Once()
	suite.mockChecker.On("CheckCTLogs", mock.Anything, mock.Anything, mock.Anything).Return(first, nil).Once()
	suite.mockChecker.On("CheckCTLogs", mock.Anything, mock.Anything, mock.Anything).Return(second, nil).Once()
	suite.mockBuffer.On("Add", mock.AnythingOfType("*models.Alert")).Times(3)
	suite.mockClient.On("Broadcast", mock.AnythingOfType("*models.Alert")).Times(3)

	w := suite.newWatcher()
	suite.Equal(2, w.RunOnce(context.Background()).NewAlerts)
	// A failed run keeps what was already alerted on
	suite.NotEmpty(w.RunOnce(context.Background()).Error)

	repeated := w.RunOnce(context.Background())
	suite.Equal(2, repeated.UnexpectedCA)
	suite.Equal(0, repeated.NewAlerts)

	grown := w.RunOnce(context.Background())
	suite.Equal(3, grown.UnexpectedCA)
	suite.Equal(1, grown.NewAlerts)

	suite.Equal(int64(3), w.GetStats().AlertsRaised)
	last := suite.mockBuffer.Calls[len(suite.mockBuffer.Calls)-1].Arguments.Get(0).(*models.Alert)
	suite.Equal("4", last.Certificate.Serial)
}

func (suite *WatcherTestSuite) TestAlertKeyPrefersFingerprint() {
	withFingerprint := &models.CertificateRecord{Serial: "1", Fingerprint: "AB:CD", Issuer: models.RDN{"commonName": "Rogue CA"}}
	withoutFingerprint := &models.CertificateRecord{Serial: "1", Issuer: models.RDN{"commonName": "Rogue CA"}}

	suite.Equal("AB:CD", alertKey(withFingerprint))
	suite.Equal("Rogue CA/1", alertKey(withoutFingerprint))
}

func (suite *WatcherTestSuite) TestRunOnceFailureKeepsPreviousResult() {
	result := suite.createTestResult()
	result.UnexpectedCA.Entries = []*models.CertificateRecord{}
	result.Recount()

	suite.mockChecker.On("CheckCTLogs", mock.Anything, mock.Anything, mock.Anything).Return(result, nil).Once()
	suite.mockChecker.On("CheckCTLogs", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("HTTP 500")).Once()

	w := suite.newWatcher()
	w.RunOnce(context.Background())
	report := w.RunOnce(context.Background())

	suite.Contains(report.Error, "HTTP 500")

	stats := w.GetStats()
	suite.Equal(int64(2), stats.Runs)
	suite.Equal(int64(1), stats.FailedRuns)
	suite.Equal(int64(0), stats.AlertsRaised)
	suite.Equal(report, stats.LastRun)
	suite.Equal(result, w.LastResult())
}

func (suite *WatcherTestSuite) TestRunOnceWithoutIssuedBound() {
	suite.config.Checker.IgnoreIssuedBefore = configs.NoIssuedBound

	suite.mockChecker.On("CheckCTLogs", mock.Anything, mock.Anything,
		mock.MatchedBy(func(window models.FilterWindow) bool {
			return window.IgnoreIssuedBeforeTS == 0
		}),
	).Return(models.NewAggregateResult(), nil).Once()

	w := suite.newWatcher()
	report := w.RunOnce(context.Background())
	suite.Empty(report.Error)
	suite.Equal(0, report.AllCerts)
}

func (suite *WatcherTestSuite) TestContextCancellation() {
	suite.mockChecker.On("CheckCTLogs", mock.Anything, mock.Anything, mock.Anything).
		Return(models.NewAggregateResult(), nil)

	w := suite.newWatcher()
	ctx, cancel := context.WithCancel(context.Background())

	finished := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(finished)
	}()

	suite.Eventually(func() bool {
		return w.GetStats().Runs == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		suite.Fail("Watcher did not stop after context cancellation")
	}
}

func (suite *WatcherTestSuite) TestConcurrentStatsAccess() {
	suite.mockChecker.On("CheckCTLogs", mock.Anything, mock.Anything, mock.Anything).
		Return(models.NewAggregateResult(), nil)

	w := suite.newWatcher()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(id int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 20; j++ {
				if id%2 == 0 {
					w.RunOnce(context.Background())
				}
				_ = w.GetStats()
				_ = w.LastResult()
			}
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	suite.Equal(int64(100), w.GetStats().Runs)
}

func TestWatcherTestSuite(t *testing.T) {
	suite.Run(t, new(WatcherTestSuite))
}
