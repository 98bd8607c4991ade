package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	downlinkapp "frostguard/internal/downlink/application"
)

// SensorConfigRepository maintains sensor_configurations.pending_change_id.
type SensorConfigRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSensorConfigRepository constructs a repository.
func NewSensorConfigRepository(db *sql.DB) *SensorConfigRepository {
	return &SensorConfigRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// SetPendingChange points the sensor configuration at changeID, creating the
// configuration row when missing.
func (r *SensorConfigRepository) SetPendingChange(ctx context.Context, sensorID, changeID string) error {
	if r == nil || r.db == nil {
		return errors.New("sensor config repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sensor_configurations (sensor_id, pending_change_id, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (sensor_id) DO UPDATE
SET pending_change_id = EXCLUDED.pending_change_id, updated_at = EXCLUDED.updated_at`, sensorID, changeID, r.now())
	return err
}

// ClearPendingChange drops the reference only if it still points at changeID.
func (r *SensorConfigRepository) ClearPendingChange(ctx context.Context, sensorID, changeID string) error {
	if r == nil || r.db == nil {
		return errors.New("sensor config repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE sensor_configurations
SET pending_change_id = NULL, updated_at = $3
WHERE sensor_id = $1 AND pending_change_id = $2`, sensorID, changeID, r.now())
	return err
}

// DeviceDirectory resolves sensors to network server device ids.
type DeviceDirectory struct {
	db *sql.DB
}

// NewDeviceDirectory constructs a directory.
func NewDeviceDirectory(db *sql.DB) *DeviceDirectory {
	return &DeviceDirectory{db: db}
}

// DeviceID returns the TTN device id of a sensor.
func (d *DeviceDirectory) DeviceID(ctx context.Context, sensorID string) (string, error) {
	if d == nil || d.db == nil {
		return "", errors.New("device directory: nil db")
	}
	var deviceID sql.NullString
	var devEUI string
	err := d.db.QueryRowContext(ctx, `
SELECT ttn_device_id, dev_eui
FROM sensors
WHERE id = $1`, sensorID).Scan(&deviceID, &devEUI)
	if errors.Is(err, sql.ErrNoRows) {
		return "", downlinkapp.ErrSensorNotFound
	}
	if err != nil {
		return "", err
	}
	if deviceID.Valid && deviceID.String != "" {
		return deviceID.String, nil
	}
	return "eui-" + strings.ToLower(devEUI), nil
}
