package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "frostguard_"

	resultSuccess = "success"
	resultError   = "error"

	downlinkResultSent      = "sent"
	downlinkResultFailed    = "failed"
	downlinkResultConfirmed = "confirmed"
	downlinkResultTimeout   = "timeout"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	uplinksClassified   *prometheus.CounterVec
	ambiguousClassified *prometheus.CounterVec

	downlinkRequests prometheus.Counter
	downlinkResults  *prometheus.CounterVec

	sweeperRunsTotal   *prometheus.CounterVec
	sweeperRunLatency  *prometheus.HistogramVec
	pipelineReports    *prometheus.CounterVec
	pipelineLayerState *prometheus.CounterVec

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total uplink webhook requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total uplink webhook errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Uplink webhook latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		uplinksClassified = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "uplinks_classified_total",
				Help: "Total classified uplinks by payload type",
			},
			[]string{"payload_type"},
		)
		ambiguousClassified = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "uplinks_ambiguous_total",
				Help: "Total ambiguous classifications by primary payload type",
			},
			[]string{"payload_type"},
		)

		downlinkRequests = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "downlink_requests_total",
				Help: "Total requested configuration changes",
			},
		)
		downlinkResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "downlink_results_total",
				Help: "Total downlink outcomes by status",
			},
			[]string{"status"},
		)

		sweeperRunsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sweeper_runs_total",
				Help: "Total change timeout sweeper runs by result",
			},
			[]string{"result"},
		)
		sweeperRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "sweeper_run_latency_seconds",
				Help:    "Change timeout sweeper latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		pipelineReports = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pipeline_reports_total",
				Help: "Total pipeline health reports by overall status",
			},
			[]string{"status"},
		)
		pipelineLayerState = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pipeline_failing_layer_total",
				Help: "Total pipeline health reports by failing layer",
			},
			[]string{"layer"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report export operations by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			uplinksClassified,
			ambiguousClassified,
			downlinkRequests,
			downlinkResults,
			sweeperRunsTotal,
			sweeperRunLatency,
			pipelineReports,
			pipelineLayerState,
			reportExportTotal,
			reportExportLatency,
		)

		if db != nil {
			prometheus.MustRegister(newDBCollector(db, logger))
		}
	})
}

// ObserveIngest records webhook request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// IncUplinkClassified counts a classified uplink, including "unclassified".
func IncUplinkClassified(payloadType string, ambiguous bool) {
	if payloadType == "" {
		payloadType = "unknown"
	}
	if uplinksClassified != nil {
		uplinksClassified.WithLabelValues(payloadType).Inc()
	}
	if ambiguous && ambiguousClassified != nil {
		ambiguousClassified.WithLabelValues(payloadType).Inc()
	}
}

// IncDownlinkRequested increments requested change counter.
func IncDownlinkRequested() {
	if downlinkRequests != nil {
		downlinkRequests.Inc()
	}
}

// IncDownlinkResult increments downlink outcome counter.
func IncDownlinkResult(status string) {
	if status == "" {
		status = "unknown"
	}
	if downlinkResults != nil {
		downlinkResults.WithLabelValues(status).Inc()
	}
}

// AddDownlinkTimeouts increments timeout counter by count.
func AddDownlinkTimeouts(count int) {
	if count <= 0 {
		return
	}
	if downlinkResults != nil {
		downlinkResults.WithLabelValues(downlinkResultTimeout).Add(float64(count))
	}
}

// ObserveSweeperRun records sweeper latency and result.
func ObserveSweeperRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if sweeperRunsTotal != nil {
		sweeperRunsTotal.WithLabelValues(result).Inc()
	}
	if sweeperRunLatency != nil {
		sweeperRunLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObservePipelineReport counts a report by overall status and failing layer.
func ObservePipelineReport(status, failingLayer string) {
	if status == "" {
		status = "unknown"
	}
	if pipelineReports != nil {
		pipelineReports.WithLabelValues(status).Inc()
	}
	if failingLayer != "" && pipelineLayerState != nil {
		pipelineLayerState.WithLabelValues(failingLayer).Inc()
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	IngestResultSuccess = resultSuccess
	IngestResultError   = resultError

	ResultSuccess = resultSuccess
	ResultError   = resultError

	DownlinkResultSent      = downlinkResultSent
	DownlinkResultFailed    = downlinkResultFailed
	DownlinkResultConfirmed = downlinkResultConfirmed
	DownlinkResultTimeout   = downlinkResultTimeout
)
