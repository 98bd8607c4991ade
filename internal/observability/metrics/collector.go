package metrics

import pipeline "frostguard/internal/pipeline/domain"

// PipelineCollector forwards pipeline reports to Prometheus.
type PipelineCollector struct{}

// ObserveReport implements pipeline.Collector.
func (PipelineCollector) ObserveReport(report pipeline.Report) {
	failing := ""
	if report.FailingLayer != nil {
		failing = string(*report.FailingLayer)
	}
	ObservePipelineReport(string(report.OverallStatus), failing)
}
