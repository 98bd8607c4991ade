package application

import (
	"context"
	"time"

	sensors "frostguard/internal/sensors/domain"
)

// Snapshot is the persisted state consulted for one sensor's health report.
type Snapshot struct {
	SensorID string
	Sensor   sensors.StatusInput
	// GatewayID is empty when no gateway is assigned.
	GatewayID           string
	GatewayLastSeenAt   *time.Time
	NetworkLastUplinkAt *time.Time
	DecoderLastSuccess  *time.Time
	DecoderLastError    string
	WebhookLastSuccess  *time.Time
	DatabaseLastWrite   *time.Time
	ExternalAPIEnabled  bool
	// ExternalAPILastOK is the newest successful push; ExternalAPILastFailure
	// the newest push the network server rejected.
	ExternalAPILastOK      *time.Time
	ExternalAPILastFailure *time.Time
	ExternalAPILastError   string
}

// SnapshotReader loads snapshots. It returns nil when the sensor does not exist.
type SnapshotReader interface {
	Snapshot(ctx context.Context, sensorID string) (*Snapshot, error)
}
