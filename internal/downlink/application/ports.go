package application

import (
	"context"
	"time"

	downlink "frostguard/internal/downlink/domain"
)

// ChangeRepository persists pending changes. Mark methods apply only when the
// row is still in the expected status and report whether it moved.
type ChangeRepository interface {
	Create(ctx context.Context, change *downlink.PendingChange) error
	MarkSent(ctx context.Context, id string, sentAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id, fromStatus, errMsg string, failedAt time.Time) (bool, error)
	MarkConfirmed(ctx context.Context, id string, confirmedAt time.Time) (bool, error)
	GetByID(ctx context.Context, id string) (*downlink.PendingChange, error)
	ListBySensor(ctx context.Context, sensorID string, limit int) ([]downlink.PendingChange, error)
	LatestSentForSensor(ctx context.Context, sensorID string) (*downlink.PendingChange, error)
}

// SensorConfigRepository tracks the in-flight change on a sensor configuration.
type SensorConfigRepository interface {
	SetPendingChange(ctx context.Context, sensorID, changeID string) error
	ClearPendingChange(ctx context.Context, sensorID, changeID string) error
}

// DeviceDirectory resolves a sensor to its network server device id.
type DeviceDirectory interface {
	DeviceID(ctx context.Context, sensorID string) (string, error)
}

// Downlink is one outbound frame handed to the transport.
type Downlink struct {
	DeviceID   string
	FPort      int
	PayloadHex string
	Confirmed  bool
	Operation  string
}

// Transport submits downlinks to the network server queue.
type Transport interface {
	Push(ctx context.Context, d Downlink) error
}
