package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	ingestapp "frostguard/internal/ingest/application"
)

// Repository is the Postgres store for uplinks.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SensorByDevEUI finds a sensor by its upper-case DevEUI.
func (r *Repository) SensorByDevEUI(ctx context.Context, devEUI string) (*ingestapp.Sensor, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("ingest repo: nil db")
	}
	var sensor ingestapp.Sensor
	err := r.db.QueryRowContext(ctx, `
SELECT id, sensor_type
FROM sensors
WHERE dev_eui = $1`, devEUI).Scan(&sensor.ID, &sensor.SensorType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sensor, nil
}

// SaveReading inserts the reading and touches activity in one transaction.
func (r *Repository) SaveReading(ctx context.Context, reading ingestapp.Reading) error {
	if r == nil || r.db == nil {
		return errors.New("ingest repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	normalized := reading.Normalized
	if len(normalized) == 0 {
		normalized = []byte("null")
	}
	decoded := reading.Decoded
	if len(decoded) == 0 {
		decoded = []byte("null")
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO sensor_readings (
	sensor_id, gateway_id, payload_type, confidence, is_ambiguous, normalized, decoded_payload,
	f_port, f_cnt, received_at
) VALUES (
	$1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10
)`, reading.SensorID, reading.GatewayID, reading.PayloadType, reading.Confidence, reading.IsAmbiguous,
		normalized, decoded, reading.FPort, reading.FCnt, reading.ReceivedAt); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE sensors
SET last_seen_at = GREATEST(COALESCE(last_seen_at, $2), $2),
	status = CASE WHEN status IN ('pending', 'joining') THEN 'active' ELSE status END,
	gateway_id = COALESCE((SELECT id FROM gateways WHERE id = NULLIF($3, '')), gateway_id)
WHERE id = $1`, reading.SensorID, reading.ReceivedAt, reading.GatewayID); err != nil {
		return err
	}

	if reading.GatewayID != "" {
		if _, err := tx.ExecContext(ctx, `
UPDATE gateways
SET last_seen_at = GREATEST(COALESCE(last_seen_at, $2), $2)
WHERE id = $1`, reading.GatewayID, reading.NetworkAt); err != nil {
			return err
		}
	}

	stages := map[string]time.Time{
		ingestapp.StageNetwork:  reading.NetworkAt,
		ingestapp.StageWebhook:  reading.ReceivedAt,
		ingestapp.StageDatabase: reading.ReceivedAt,
	}
	if !reading.DecoderFailed {
		stages[ingestapp.StageDecoder] = reading.ReceivedAt
	}
	for stage, at := range stages {
		if err := touchStage(ctx, tx, reading.SensorID, stage, at); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func touchStage(ctx context.Context, tx *sql.Tx, sensorID, stage string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO pipeline_activity (sensor_id, stage, last_success_at)
VALUES ($1, $2, $3)
ON CONFLICT (sensor_id, stage) DO UPDATE
SET last_success_at = GREATEST(COALESCE(pipeline_activity.last_success_at, EXCLUDED.last_success_at), EXCLUDED.last_success_at)`,
		sensorID, stage, at)
	return err
}

// RecordStageError stores the latest failure of a stage.
func (r *Repository) RecordStageError(ctx context.Context, sensorID, stage, message string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("ingest repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO pipeline_activity (sensor_id, stage, last_error_at, last_error)
VALUES ($1, $2, $3, $4)
ON CONFLICT (sensor_id, stage) DO UPDATE
SET last_error_at = EXCLUDED.last_error_at, last_error = EXCLUDED.last_error`, sensorID, stage, at, message)
	return err
}
