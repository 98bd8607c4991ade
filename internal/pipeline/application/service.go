package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	pipeline "frostguard/internal/pipeline/domain"
	sensors "frostguard/internal/sensors/domain"

	"golang.org/x/sync/errgroup"
)

var ErrSensorNotFound = errors.New("pipeline: sensor not found")

// Clock provides the evaluation time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Service builds pipeline health reports.
type Service struct {
	reader     SnapshotReader
	thresholds pipeline.Thresholds
	collector  pipeline.Collector
	clock      Clock
	logger     *log.Logger
}

// NewService constructs a Service. A nil collector discards observations.
func NewService(reader SnapshotReader, cfg Config, collector pipeline.Collector, clock Clock, logger *log.Logger) (*Service, error) {
	if reader == nil {
		return nil, errors.New("pipeline: nil snapshot reader")
	}
	if cfg.Thresholds == nil {
		cfg.Thresholds = pipeline.DefaultThresholds()
	}
	if collector == nil {
		collector = pipeline.NopCollector{}
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{reader: reader, thresholds: cfg.Thresholds, collector: collector, clock: clock, logger: logger}, nil
}

// Report evaluates every layer for a sensor.
func (s *Service) Report(ctx context.Context, sensorID string) (pipeline.Report, error) {
	if strings.TrimSpace(sensorID) == "" {
		return pipeline.Report{}, errors.New("pipeline: sensor_id required")
	}
	snap, err := s.reader.Snapshot(ctx, sensorID)
	if err != nil {
		return pipeline.Report{}, err
	}
	if snap == nil {
		return pipeline.Report{}, ErrSensorNotFound
	}
	now := s.clock.Now().UTC()

	observations := s.observations(snap, now)
	checks := make([]pipeline.CheckResult, len(observations), len(observations)+1)
	g, _ := errgroup.WithContext(ctx)
	for i, item := range observations {
		i, item := i, item
		g.Go(func() error {
			checks[i] = pipeline.CheckLayer(item.obs, item.threshold, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return pipeline.Report{}, err
	}

	checks = append(checks, pipeline.CheckExternalAPI(snap.ExternalAPIEnabled, snap.ExternalAPILastOK, snap.ExternalAPILastFailure, snap.ExternalAPILastError))

	report := pipeline.Aggregate(checks, now)
	s.collector.ObserveReport(report)
	if report.OverallStatus == pipeline.StatusFailed || report.OverallStatus == pipeline.StatusDegraded {
		failing := "none"
		if report.FailingLayer != nil {
			failing = string(*report.FailingLayer)
		}
		s.logger.Printf("event=pipeline_degraded sensor_id=%s overall=%s failing_layer=%s", sensorID, report.OverallStatus, failing)
	}
	return report, nil
}

type layerInput struct {
	obs       pipeline.Observation
	threshold pipeline.Threshold
}

func (s *Service) observations(snap *Snapshot, now time.Time) []layerInput {
	status := sensors.ResolveStatus(snap.Sensor, now)
	sensorObs := pipeline.Observation{
		Layer:        pipeline.LayerSensor,
		Applicable:   true,
		LastActivity: snap.Sensor.LastSeenAt,
		Details: fmt.Sprintf("display_status=%s expected_interval_s=%d interval_source=%s db_status=%s",
			status.Status, status.ExpectedIntervalS, status.IntervalSource, snap.Sensor.DBStatus),
	}
	if snap.Sensor.DBStatus == sensors.DBStatusFault {
		sensorObs.Error = "sensor reported fault"
	}

	inputs := []layerInput{
		{obs: sensorObs, threshold: sensorThreshold(s.thresholds.For(pipeline.LayerSensor), status.ExpectedIntervalS)},
		{obs: pipeline.Observation{
			Layer:        pipeline.LayerGateway,
			Applicable:   snap.GatewayID != "",
			LastActivity: snap.GatewayLastSeenAt,
		}},
		{obs: pipeline.Observation{Layer: pipeline.LayerTTN, Applicable: true, LastActivity: snap.NetworkLastUplinkAt}},
		{obs: pipeline.Observation{Layer: pipeline.LayerDecoder, Applicable: true, LastActivity: snap.DecoderLastSuccess, Error: snap.DecoderLastError}},
		{obs: pipeline.Observation{Layer: pipeline.LayerWebhook, Applicable: true, LastActivity: snap.WebhookLastSuccess}},
		{obs: pipeline.Observation{Layer: pipeline.LayerDatabase, Applicable: true, LastActivity: snap.DatabaseLastWrite}},
	}
	for i := range inputs[1:] {
		item := &inputs[i+1]
		item.threshold = s.thresholds.For(item.obs.Layer)
	}
	return inputs
}

// sensorThreshold widens the configured bounds so a sensor is never degraded
// before its own report interval allows it to be late.
func sensorThreshold(configured pipeline.Threshold, expectedIntervalS int) pipeline.Threshold {
	lateMinutes := expectedIntervalS * 3 / 2 / 60
	silentMinutes := expectedIntervalS * 3 / 60
	if lateMinutes > configured.StaleMinutes {
		configured.StaleMinutes = lateMinutes
	}
	if silentMinutes > configured.FailedMinutes {
		configured.FailedMinutes = silentMinutes
	}
	return configured
}
