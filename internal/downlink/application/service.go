package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	downlink "frostguard/internal/downlink/domain"
	"frostguard/internal/observability/metrics"

	"github.com/google/uuid"
)

var (
	ErrInvalidRequest = errors.New("downlink: invalid request")
	ErrSensorNotFound = errors.New("downlink: sensor not found")
	ErrDispatchFailed = errors.New("downlink: dispatch failed")
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ChangeRequest asks for one configuration change on a sensor.
type ChangeRequest struct {
	SensorID    string         `json:"sensor_id"`
	CommandKey  string         `json:"command_key"`
	Values      map[string]any `json:"values"`
	RequestedBy string         `json:"-"`
}

// Service encodes configuration changes and tracks their lifecycle.
type Service struct {
	changes   ChangeRepository
	configs   SensorConfigRepository
	devices   DeviceDirectory
	transport Transport
	catalog   *downlink.Catalog
	encoder   *downlink.Encoder
	clock     downlink.Clock
	logger    *log.Logger
}

// NewService constructs a downlink service. A nil clock uses the system clock.
func NewService(changes ChangeRepository, configs SensorConfigRepository, devices DeviceDirectory, transport Transport, catalog *downlink.Catalog, clock downlink.Clock, logger *log.Logger) (*Service, error) {
	if changes == nil {
		return nil, errors.New("downlink: nil change repo")
	}
	if configs == nil {
		return nil, errors.New("downlink: nil sensor config repo")
	}
	if devices == nil {
		return nil, errors.New("downlink: nil device directory")
	}
	if transport == nil {
		return nil, errors.New("downlink: nil transport")
	}
	if catalog == nil {
		return nil, errors.New("downlink: nil catalog")
	}
	if clock == nil {
		clock = downlink.SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		changes:   changes,
		configs:   configs,
		devices:   devices,
		transport: transport,
		catalog:   catalog,
		encoder:   downlink.NewEncoder(clock),
		clock:     clock,
		logger:    logger,
	}, nil
}

// Commands returns the command catalog.
func (s *Service) Commands() []downlink.Command {
	return s.catalog.Commands()
}

// RequestChange encodes a command, records it and pushes it to the device.
// When the push fails the change is returned in failed state together with
// an error wrapping ErrDispatchFailed.
func (s *Service) RequestChange(ctx context.Context, req ChangeRequest) (*downlink.PendingChange, error) {
	sensorID := strings.TrimSpace(req.SensorID)
	if sensorID == "" {
		return nil, fmt.Errorf("%w: sensor_id required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.CommandKey) == "" {
		return nil, fmt.Errorf("%w: command_key required", ErrInvalidRequest)
	}
	cmd, err := s.catalog.Lookup(req.CommandKey)
	if err != nil {
		return nil, err
	}
	deviceID, err := s.devices.DeviceID(ctx, sensorID)
	if err != nil {
		return nil, err
	}
	if deviceID == "" {
		return nil, ErrSensorNotFound
	}

	payloadHex, err := s.encoder.Encode(cmd, req.Values)
	if err != nil {
		return nil, err
	}
	values := req.Values
	if values == nil {
		values = map[string]any{}
	}
	rawValues, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	now := s.clock.Now().UTC()
	change := &downlink.PendingChange{
		ID:             uuid.NewString(),
		SensorID:       sensorID,
		CommandKey:     cmd.Key,
		Values:         rawValues,
		PayloadHex:     payloadHex,
		FPort:          cmd.FPort,
		ExpectedResult: downlink.ExpectedResult(cmd, req.Values),
		Status:         downlink.StatusQueued,
		RequestedBy:    req.RequestedBy,
		CreatedAt:      now,
	}
	if err := s.changes.Create(ctx, change); err != nil {
		return nil, err
	}
	if err := s.configs.SetPendingChange(ctx, sensorID, change.ID); err != nil {
		if _, markErr := s.changes.MarkFailed(ctx, change.ID, downlink.StatusQueued, downlink.ErrorNotDispatched, s.clock.Now().UTC()); markErr != nil {
			s.logger.Printf("downlink: abandon change=%s: %v", change.ID, markErr)
		}
		return nil, err
	}
	metrics.IncDownlinkRequested()

	pushErr := s.transport.Push(ctx, Downlink{
		DeviceID:   deviceID,
		FPort:      change.FPort,
		PayloadHex: payloadHex,
		Confirmed:  downlink.Confirmed,
		Operation:  downlink.QueueOperation,
	})
	at := s.clock.Now().UTC()
	if pushErr != nil {
		if _, err := s.changes.MarkFailed(ctx, change.ID, downlink.StatusQueued, pushErr.Error(), at); err != nil {
			return nil, err
		}
		if err := s.configs.ClearPendingChange(ctx, sensorID, change.ID); err != nil {
			return nil, err
		}
		change.Status = downlink.StatusFailed
		change.Error = pushErr.Error()
		change.FailedAt = &at
		metrics.IncDownlinkResult(metrics.DownlinkResultFailed)
		s.logger.Printf("downlink: push failed sensor=%s change=%s: %v", sensorID, change.ID, pushErr)
		return change, fmt.Errorf("%w: %v", ErrDispatchFailed, pushErr)
	}

	if _, err := s.changes.MarkSent(ctx, change.ID, at); err != nil {
		return nil, err
	}
	change.Status = downlink.StatusSent
	change.SentAt = &at
	metrics.IncDownlinkResult(metrics.DownlinkResultSent)
	return change, nil
}

// Confirm records device acknowledgement of the sensor's latest sent change.
// It returns nil when nothing is in flight.
func (s *Service) Confirm(ctx context.Context, sensorID string) (*downlink.PendingChange, error) {
	change, err := s.changes.LatestSentForSensor(ctx, sensorID)
	if err != nil || change == nil {
		return nil, err
	}
	at := s.clock.Now().UTC()
	moved, err := s.changes.MarkConfirmed(ctx, change.ID, at)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, nil
	}
	if err := s.configs.ClearPendingChange(ctx, change.SensorID, change.ID); err != nil {
		return nil, err
	}
	change.Status = downlink.StatusConfirmed
	change.ConfirmedAt = &at
	metrics.IncDownlinkResult(metrics.DownlinkResultConfirmed)
	return change, nil
}

// Fail records a network-reported failure for the sensor's latest sent change.
func (s *Service) Fail(ctx context.Context, sensorID, reason string) (*downlink.PendingChange, error) {
	change, err := s.changes.LatestSentForSensor(ctx, sensorID)
	if err != nil || change == nil {
		return nil, err
	}
	if reason == "" {
		reason = "downlink failed"
	}
	at := s.clock.Now().UTC()
	moved, err := s.changes.MarkFailed(ctx, change.ID, downlink.StatusSent, reason, at)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, nil
	}
	if err := s.configs.ClearPendingChange(ctx, change.SensorID, change.ID); err != nil {
		return nil, err
	}
	change.Status = downlink.StatusFailed
	change.Error = reason
	change.FailedAt = &at
	metrics.IncDownlinkResult(metrics.DownlinkResultFailed)
	return change, nil
}

// ListChanges returns the newest changes for a sensor.
func (s *Service) ListChanges(ctx context.Context, sensorID string, limit int) ([]downlink.PendingChange, error) {
	if strings.TrimSpace(sensorID) == "" {
		return nil, fmt.Errorf("%w: sensor_id required", ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.changes.ListBySensor(ctx, sensorID, limit)
}
