package watcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tb0hdan/ctlog-checker/pkg/buffer"
	"github.com/tb0hdan/ctlog-checker/pkg/checker"
	"github.com/tb0hdan/ctlog-checker/pkg/client"
	"github.com/tb0hdan/ctlog-checker/pkg/configs"
	"github.com/tb0hdan/ctlog-checker/pkg/models"
	"go.uber.org/zap"
)

const alertMessageType = "unexpected_ca"

type WatcherInterface interface {
	Start(ctx context.Context)
	RunOnce(ctx context.Context) *models.RunReport
	GetStats() models.Stats
	LastResult() *models.AggregateResult
}

// Watcher re-runs the CT log check on a fixed interval and raises an alert
// for every certificate issued by an unexpected CA
type Watcher struct {
	config        *configs.Config
	logger        *zap.Logger
	checker       checker.CheckerInterface
	clientManager client.ManagerInterface
	alertBuffer   buffer.AlertBufferInterface
	now           func() time.Time

	// State
	runs         int64
	failedRuns   int64
	alertsRaised int64
	lastRun      *models.RunReport
	lastResult   *models.AggregateResult
	mu           sync.RWMutex

	// Unexpected-CA certificates seen by the last successful run
	alerted   map[string]struct{}
	alertedMu sync.Mutex
}

// NewWatcher creates a new periodic CT log watcher
func NewWatcher(config *configs.Config, logger *zap.Logger, ctChecker checker.CheckerInterface,
	clientManager client.ManagerInterface, alertBuffer buffer.AlertBufferInterface) *Watcher {
	return &Watcher{
		config:        config,
		logger:        logger.With(zap.String("component", "watcher")),
		checker:       ctChecker,
		clientManager: clientManager,
		alertBuffer:   alertBuffer,
		now:           time.Now,
		alerted:       make(map[string]struct{}),
	}
}

// Start runs a check immediately and then every check interval until ctx is done
func (w *Watcher) Start(ctx context.Context) {
	w.logger.Info("Starting CT log watcher",
		zap.Strings("patterns", w.config.Checker.DomainNamePatterns),
		zap.Int("interval", w.config.Server.CheckInterval),
	)

	w.RunOnce(ctx)

	interval := time.Duration(w.config.Server.CheckInterval) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping CT log watcher")
			return

		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs one check with a window derived from the current time
func (w *Watcher) RunOnce(ctx context.Context) *models.RunReport {
	started := w.now()
	runID := uuid.New().String()
	patterns := w.config.Checker.DomainNamePatterns

	report := &models.RunReport{
		RunID:     runID,
		StartedAt: started,
		Patterns:  patterns,
	}

	result, err := w.checker.CheckCTLogs(checker.WithRunID(ctx, runID), patterns, w.config.Window(started))
	report.Duration = w.now().Sub(started)
	atomic.AddInt64(&w.runs, 1)

	if err != nil {
		atomic.AddInt64(&w.failedRuns, 1)
		report.Error = err.Error()
		w.logger.Error("Check failed", zap.String("run_id", runID), zap.Error(err))
		w.setLastRun(report, nil)
		return report
	}

	report.AllCerts = result.AllCerts.Count
	report.UnexpectedCA = result.UnexpectedCA.Count
	report.DistinctIssuers = result.ByCA.Count

	seen := float64(started.UnixNano()) / 1e9
	for _, record := range w.newUnexpected(result.UnexpectedCA.Entries) {
		alert := &models.Alert{
			MessageType: alertMessageType,
			RunID:       runID,
			Seen:        seen,
			Certificate: record,
		}
		w.alertBuffer.Add(alert)
		w.clientManager.Broadcast(alert)
		atomic.AddInt64(&w.alertsRaised, 1)
		report.NewAlerts++
	}

	if report.UnexpectedCA > 0 {
		w.logger.Warn("Certificates from unexpected CAs found",
			zap.String("run_id", runID),
			zap.Int("count", report.UnexpectedCA),
			zap.Int("new", report.NewAlerts),
		)
	}

	w.setLastRun(report, result)
	return report
}

// newUnexpected returns the records not alerted on by the previous successful
// run and remembers the current set. Consecutive windows overlap whenever the
// issuance lookback exceeds the check interval.
func (w *Watcher) newUnexpected(records []*models.CertificateRecord) []*models.CertificateRecord {
	w.alertedMu.Lock()
	defer w.alertedMu.Unlock()

	current := make(map[string]struct{}, len(records))
	fresh := make([]*models.CertificateRecord, 0, len(records))
	for _, record := range records {
		key := alertKey(record)
		if _, ok := current[key]; ok {
			continue
		}
		current[key] = struct{}{}
		if _, ok := w.alerted[key]; !ok {
			fresh = append(fresh, record)
		}
	}
	w.alerted = current

	return fresh
}

func alertKey(record *models.CertificateRecord) string {
	if record.Fingerprint != "" {
		return record.Fingerprint
	}
	return record.Issuer.CommonName() + "/" + record.Serial
}

func (w *Watcher) setLastRun(report *models.RunReport, result *models.AggregateResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastRun = report
	if result != nil {
		w.lastResult = result
	}
}

// GetStats returns watcher statistics
func (w *Watcher) GetStats() models.Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return models.Stats{
		Runs:         atomic.LoadInt64(&w.runs),
		FailedRuns:   atomic.LoadInt64(&w.failedRuns),
		AlertsRaised: atomic.LoadInt64(&w.alertsRaised),
		LastRun:      w.lastRun,
	}
}

// LastResult returns the aggregate of the last successful check, or nil
func (w *Watcher) LastResult() *models.AggregateResult {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.lastResult
}
