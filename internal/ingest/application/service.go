package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	classification "frostguard/internal/classification/domain"
	downlink "frostguard/internal/downlink/domain"
	normalization "frostguard/internal/normalization/domain"
	"frostguard/internal/observability/metrics"
)

var (
	ErrUnknownDevice = errors.New("ingest: unknown device")
	ErrInvalidUplink = errors.New("ingest: invalid uplink")
)

// Pipeline stages recorded per uplink.
const (
	StageNetwork  = "ttn"
	StageWebhook  = "webhook"
	StageDecoder  = "decoder"
	StageDatabase = "database"
)

// Sensor is the subset of a sensor row ingest needs.
type Sensor struct {
	ID         string
	SensorType string
}

// Uplink is one decoded uplink delivered by the network server.
type Uplink struct {
	DevEUI            string
	DeviceID          string
	GatewayID         string
	FPort             int
	FCnt              int64
	DecodedPayload    map[string]any
	RawPayload        json.RawMessage
	ReceivedAt        time.Time
	NetworkReceivedAt time.Time
}

// Reading is the persisted form of a classified uplink.
type Reading struct {
	SensorID      string
	GatewayID     string
	PayloadType   string
	Confidence    float64
	IsAmbiguous   bool
	Normalized    json.RawMessage
	Decoded       json.RawMessage
	FPort         int
	FCnt          int64
	ReceivedAt    time.Time
	NetworkAt     time.Time
	DecoderFailed bool
}

// Repository persists uplinks.
type Repository interface {
	SensorByDevEUI(ctx context.Context, devEUI string) (*Sensor, error)
	// SaveReading stores the reading and touches sensor, gateway and stage
	// activity in one transaction.
	SaveReading(ctx context.Context, reading Reading) error
	RecordStageError(ctx context.Context, sensorID, stage, message string, at time.Time) error
}

// DownlinkOutcomes applies device outcomes to in-flight configuration changes.
type DownlinkOutcomes interface {
	Confirm(ctx context.Context, sensorID string) (*downlink.PendingChange, error)
	Fail(ctx context.Context, sensorID, reason string) (*downlink.PendingChange, error)
}

// Result describes how an uplink was classified and stored.
type Result struct {
	SensorID       string                `json:"sensor_id"`
	Classification classification.Result `json:"classification"`
	Reading        any                   `json:"reading"`
}

// Service classifies, normalizes and stores uplinks.
type Service struct {
	repo     Repository
	registry *classification.Registry
	outcomes DownlinkOutcomes
	logger   *log.Logger
	now      func() time.Time
}

// NewService constructs an ingest service.
func NewService(repo Repository, registry *classification.Registry, outcomes DownlinkOutcomes, logger *log.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("ingest: nil repository")
	}
	if registry == nil {
		return nil, errors.New("ingest: nil schema registry")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		repo:     repo,
		registry: registry,
		outcomes: outcomes,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// HandleUplink classifies and stores one uplink. Payloads matching no schema
// are stored as unclassified.
func (s *Service) HandleUplink(ctx context.Context, up Uplink) (Result, error) {
	sensor, err := s.sensor(ctx, up.DevEUI)
	if err != nil {
		return Result{}, err
	}
	receivedAt := up.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}
	networkAt := up.NetworkReceivedAt
	if networkAt.IsZero() {
		networkAt = receivedAt
	}

	result := s.registry.Classify(up.DecodedPayload)
	metrics.IncUplinkClassified(result.PayloadType, result.IsAmbiguous)

	var normalized any
	if family, ok := normalization.FamilyForSensorType(sensor.SensorType); ok && up.DecodedPayload != nil {
		normalized = normalization.Normalize(family, up.DecodedPayload)
	}
	normalizedJSON, err := json.Marshal(normalized)
	if err != nil {
		return Result{}, err
	}
	decoded := up.RawPayload
	if len(decoded) == 0 {
		decoded, _ = json.Marshal(up.DecodedPayload)
	}

	reading := Reading{
		SensorID:      sensor.ID,
		GatewayID:     up.GatewayID,
		PayloadType:   result.PayloadType,
		Confidence:    result.Confidence,
		IsAmbiguous:   result.IsAmbiguous,
		Normalized:    normalizedJSON,
		Decoded:       decoded,
		FPort:         up.FPort,
		FCnt:          up.FCnt,
		ReceivedAt:    receivedAt,
		NetworkAt:     networkAt,
		DecoderFailed: len(up.DecodedPayload) == 0,
	}
	if err := s.repo.SaveReading(ctx, reading); err != nil {
		if stageErr := s.repo.RecordStageError(ctx, sensor.ID, StageDatabase, err.Error(), receivedAt); stageErr != nil {
			s.logger.Printf("ingest: record stage error: %v", stageErr)
		}
		return Result{}, err
	}
	if reading.DecoderFailed {
		if err := s.repo.RecordStageError(ctx, sensor.ID, StageDecoder, "no decoded payload", receivedAt); err != nil {
			s.logger.Printf("ingest: record stage error: %v", err)
		}
	}
	if !result.Classified() {
		s.logger.Printf("event=uplink_unclassified sensor_id=%s reasons=%q", sensor.ID, strings.Join(result.Reasons, "; "))
	}
	return Result{SensorID: sensor.ID, Classification: result, Reading: normalized}, nil
}

// HandleDownlinkAck confirms the sensor's in-flight change.
func (s *Service) HandleDownlinkAck(ctx context.Context, devEUI string) (*downlink.PendingChange, error) {
	sensor, err := s.sensor(ctx, devEUI)
	if err != nil {
		return nil, err
	}
	if s.outcomes == nil {
		return nil, nil
	}
	return s.outcomes.Confirm(ctx, sensor.ID)
}

// HandleDownlinkFailed fails the sensor's in-flight change.
func (s *Service) HandleDownlinkFailed(ctx context.Context, devEUI, reason string) (*downlink.PendingChange, error) {
	sensor, err := s.sensor(ctx, devEUI)
	if err != nil {
		return nil, err
	}
	if s.outcomes == nil {
		return nil, nil
	}
	return s.outcomes.Fail(ctx, sensor.ID, reason)
}

func (s *Service) sensor(ctx context.Context, devEUI string) (*Sensor, error) {
	devEUI = strings.ToUpper(strings.TrimSpace(devEUI))
	if devEUI == "" {
		return nil, fmt.Errorf("%w: missing dev_eui", ErrInvalidUplink)
	}
	sensor, err := s.repo.SensorByDevEUI(ctx, devEUI)
	if err != nil {
		return nil, err
	}
	if sensor == nil {
		return nil, ErrUnknownDevice
	}
	return sensor, nil
}
