// Package metrics exposes Prometheus collectors for the audit service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OutcomeBatches counts outcome batches consumed from the intake queue.
	OutcomeBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainaudit_outcome_batches_total",
		Help: "Attack-outcome batches processed.",
	})

	// OutcomesProcessed counts individual attack outcomes classified.
	OutcomesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainaudit_outcomes_total",
		Help: "Attack outcomes classified.",
	})

	// Findings counts findings by severity.
	Findings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainaudit_findings_total",
		Help: "Findings produced, by severity.",
	}, []string{"severity"})

	// ReportWriteErrors counts failed report sink writes.
	ReportWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainaudit_report_write_errors_total",
		Help: "Report sink write failures.",
	})

	// ProviderErrors counts failed chain-provider calls during scans.
	ProviderErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainaudit_provider_errors_total",
		Help: "Chain provider call failures.",
	})

	// HistoricalScans counts completed historical scans.
	HistoricalScans = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainaudit_historical_scans_total",
		Help: "Historical scans completed.",
	})

	// LastRiskScore tracks the most recent risk score per program.
	LastRiskScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chainaudit_last_risk_score",
		Help: "Risk score of the most recent detection report, by program.",
	}, []string{"program"})
)

// Serve starts the Prometheus scrape endpoint on addr. It blocks and is
// intended to run in its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
