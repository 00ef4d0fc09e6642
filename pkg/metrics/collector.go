package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tb0hdan/ctlog-checker/pkg/models"
)

var (
	runsTotalDesc          = prometheus.NewDesc("ctlog_checker_runs_total", "Number of CT log checks performed", nil, nil)
	failedRunsTotalDesc    = prometheus.NewDesc("ctlog_checker_failed_runs_total", "Number of CT log checks that returned an error", nil, nil)
	alertsTotalDesc        = prometheus.NewDesc("ctlog_checker_alerts_total", "Number of unexpected-CA alerts raised", nil, nil)
	lastRunSuccessDesc     = prometheus.NewDesc("ctlog_checker_last_run_success", "Whether the last check succeeded (1) or failed (0)", nil, nil)
	lastRunTimestampDesc   = prometheus.NewDesc("ctlog_checker_last_run_timestamp_seconds", "Start time of the last check in seconds since epoch", nil, nil)
	lastRunDurationDesc    = prometheus.NewDesc("ctlog_checker_last_run_duration_seconds", "Duration of the last check", nil, nil)
	certificatesDesc       = prometheus.NewDesc("ctlog_checker_certificates", "Certificates admitted by the last successful check", []string{"set"}, nil)
	issuerCertificatesDesc = prometheus.NewDesc("ctlog_checker_issuer_certificates", "Certificates admitted by the last successful check, by issuer common name", []string{"issuer"}, nil)
	connectedClientsDesc   = prometheus.NewDesc("ctlog_checker_connected_clients", "Number of connected alert stream clients", nil, nil)
)

// StatsProvider exposes the state the collector reports on
type StatsProvider interface {
	GetStats() models.Stats
	LastResult() *models.AggregateResult
}

// ClientCounter reports connected stream clients
type ClientCounter interface {
	GetClientCount() int
}

type checkCollector struct {
	stats   StatsProvider
	clients ClientCounter
}

// NewCheckCollector returns a Prometheus collector exposing check results
func NewCheckCollector(stats StatsProvider, clients ClientCounter) prometheus.Collector {
	return &checkCollector{
		stats:   stats,
		clients: clients,
	}
}

func (collector *checkCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- runsTotalDesc
	ch <- failedRunsTotalDesc
	ch <- alertsTotalDesc
	ch <- lastRunSuccessDesc
	ch <- lastRunTimestampDesc
	ch <- lastRunDurationDesc
	ch <- certificatesDesc
	ch <- issuerCertificatesDesc
	ch <- connectedClientsDesc
}

func (collector *checkCollector) Collect(ch chan<- prometheus.Metric) {
	stats := collector.stats.GetStats()

	ch <- prometheus.MustNewConstMetric(runsTotalDesc, prometheus.CounterValue, float64(stats.Runs))
	ch <- prometheus.MustNewConstMetric(failedRunsTotalDesc, prometheus.CounterValue, float64(stats.FailedRuns))
	ch <- prometheus.MustNewConstMetric(alertsTotalDesc, prometheus.CounterValue, float64(stats.AlertsRaised))
	ch <- prometheus.MustNewConstMetric(connectedClientsDesc, prometheus.GaugeValue, float64(collector.clients.GetClientCount()))

	if stats.LastRun != nil {
		success := 1.0
		if stats.LastRun.Error != "" {
			success = 0.0
		}
		ch <- prometheus.MustNewConstMetric(lastRunSuccessDesc, prometheus.GaugeValue, success)
		ch <- prometheus.MustNewConstMetric(lastRunTimestampDesc, prometheus.GaugeValue, float64(stats.LastRun.StartedAt.Unix()))
		ch <- prometheus.MustNewConstMetric(lastRunDurationDesc, prometheus.GaugeValue, stats.LastRun.Duration.Seconds())
	}

	result := collector.stats.LastResult()
	if result == nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(certificatesDesc, prometheus.GaugeValue, float64(result.AllCerts.Count), "all")
	ch <- prometheus.MustNewConstMetric(certificatesDesc, prometheus.GaugeValue, float64(result.UnexpectedCA.Count), "unexpected_ca")
	for issuer, records := range result.ByCA.Entries {
		ch <- prometheus.MustNewConstMetric(issuerCertificatesDesc, prometheus.GaugeValue, float64(len(records)), issuer)
	}
}
