package metrics

import (
	"testing"
	"time"

	pipeline "frostguard/internal/pipeline/domain"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHelpersBeforeInit(t *testing.T) {
	// Helpers must be safe to call when Init was never run, as in unit tests.
	ObserveIngest(IngestResultSuccess, time.Millisecond)
	IncIngestError("invalid_json")
	IncUplinkClassified("unclassified", false)
	IncDownlinkRequested()
	IncDownlinkResult(DownlinkResultSent)
	AddDownlinkTimeouts(3)
	ObserveSweeperRun(ResultSuccess, time.Second)
	ObserveReportExport("pdf", ResultSuccess, time.Millisecond)

	layer := pipeline.LayerGateway
	PipelineCollector{}.ObserveReport(pipeline.Report{OverallStatus: pipeline.StatusFailed, FailingLayer: &layer})
}

func TestDBCollectorWithoutDatabase(t *testing.T) {
	collector := newDBCollector(nil, nil)

	descs := make(chan *prometheus.Desc, 4)
	collector.Describe(descs)
	close(descs)
	if len(descs) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descs))
	}

	samples := make(chan prometheus.Metric, 4)
	collector.Collect(samples)
	close(samples)
	if len(samples) != 0 {
		t.Fatalf("expected no samples without a database, got %d", len(samples))
	}
}
