package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	downlink "frostguard/internal/downlink/domain"
	pipelineapp "frostguard/internal/pipeline/application"
)

// Activity stages recorded by ingest.
const (
	StageNetwork  = "ttn"
	StageWebhook  = "webhook"
	StageDecoder  = "decoder"
	StageDatabase = "database"
)

// SnapshotReader loads pipeline snapshots from Postgres.
type SnapshotReader struct {
	db                 *sql.DB
	externalAPIEnabled bool
}

// NewSnapshotReader constructs a reader. externalAPIEnabled marks whether a
// network server API client is configured.
func NewSnapshotReader(db *sql.DB, externalAPIEnabled bool) *SnapshotReader {
	return &SnapshotReader{db: db, externalAPIEnabled: externalAPIEnabled}
}

// Snapshot implements pipelineapp.SnapshotReader.
func (r *SnapshotReader) Snapshot(ctx context.Context, sensorID string) (*pipelineapp.Snapshot, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("pipeline snapshot: nil db")
	}
	var (
		snap              pipelineapp.Snapshot
		provisioning      sql.NullString
		lastSeen          sql.NullTime
		configInterval    sql.NullInt64
		catalogInterval   sql.NullInt64
		gatewayID         sql.NullString
		gatewayLastSeen   sql.NullTime
		networkLast       sql.NullTime
		webhookLast       sql.NullTime
		decoderLast       sql.NullTime
		decoderLastError  sql.NullString
		databaseLast      sql.NullTime
		externalAPILastOK sql.NullTime
		lastPushFailure   sql.NullTime
		lastPushError     sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
SELECT s.id, s.status, s.sensor_type, s.provisioning_state, s.last_seen_at,
	c.uplink_interval_s, m.default_interval_s,
	g.id, g.last_seen_at,
	(SELECT last_success_at FROM pipeline_activity WHERE sensor_id = s.id AND stage = $2),
	(SELECT last_success_at FROM pipeline_activity WHERE sensor_id = s.id AND stage = $3),
	(SELECT last_success_at FROM pipeline_activity WHERE sensor_id = s.id AND stage = $4),
	(SELECT last_error FROM pipeline_activity WHERE sensor_id = s.id AND stage = $4),
	(SELECT last_success_at FROM pipeline_activity WHERE sensor_id = s.id AND stage = $5),
	(SELECT max(sent_at) FROM sensor_pending_changes),
	f.failed_at, f.error
FROM sensors s
LEFT JOIN sensor_configurations c ON c.sensor_id = s.id
LEFT JOIN device_models m ON m.id = s.device_model_id
LEFT JOIN gateways g ON g.id = s.gateway_id
LEFT JOIN LATERAL (
	SELECT failed_at, error
	FROM sensor_pending_changes
	WHERE status = 'failed' AND sent_at IS NULL AND error <> $6
	ORDER BY failed_at DESC
	LIMIT 1
) f ON true
WHERE s.id = $1`, sensorID, StageNetwork, StageWebhook, StageDecoder, StageDatabase, downlink.ErrorNotDispatched).Scan(
		&snap.SensorID,
		&snap.Sensor.DBStatus,
		&snap.Sensor.SensorType,
		&provisioning,
		&lastSeen,
		&configInterval,
		&catalogInterval,
		&gatewayID,
		&gatewayLastSeen,
		&networkLast,
		&webhookLast,
		&decoderLast,
		&decoderLastError,
		&databaseLast,
		&externalAPILastOK,
		&lastPushFailure,
		&lastPushError,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap.Sensor.ProvisioningState = provisioning.String
	snap.Sensor.LastSeenAt = nullTime(lastSeen)
	snap.Sensor.ConfigIntervalS = nullInt(configInterval)
	snap.Sensor.CatalogDefaultIntervalS = nullInt(catalogInterval)
	snap.GatewayID = gatewayID.String
	snap.GatewayLastSeenAt = nullTime(gatewayLastSeen)
	snap.NetworkLastUplinkAt = nullTime(networkLast)
	snap.WebhookLastSuccess = nullTime(webhookLast)
	snap.DecoderLastSuccess = nullTime(decoderLast)
	snap.DecoderLastError = decoderLastError.String
	snap.DatabaseLastWrite = nullTime(databaseLast)
	snap.ExternalAPIEnabled = r.externalAPIEnabled
	snap.ExternalAPILastOK = nullTime(externalAPILastOK)
	snap.ExternalAPILastFailure = nullTime(lastPushFailure)
	snap.ExternalAPILastError = lastPushError.String
	return &snap, nil
}

func nullTime(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}

func nullInt(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

var _ pipelineapp.SnapshotReader = (*SnapshotReader)(nil)
