package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	downlink "frostguard/internal/downlink/domain"
)

const changeColumns = `id, sensor_id, command_key, values_json, payload_hex, f_port, expected_result,
	status, requested_by, error, created_at, sent_at, confirmed_at, failed_at`

// ChangeRepository is a Postgres implementation for pending changes.
type ChangeRepository struct {
	db *sql.DB
}

// NewChangeRepository constructs a repository.
func NewChangeRepository(db *sql.DB) *ChangeRepository {
	return &ChangeRepository{db: db}
}

// Create inserts a change.
func (r *ChangeRepository) Create(ctx context.Context, change *downlink.PendingChange) error {
	if r == nil || r.db == nil {
		return errors.New("change repo: nil db")
	}
	if change == nil {
		return errors.New("change repo: nil change")
	}
	values := change.Values
	if len(values) == 0 {
		values = []byte("{}")
	}
	if !json.Valid(values) {
		return errors.New("change repo: invalid values")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sensor_pending_changes (
	id, sensor_id, command_key, values_json, payload_hex, f_port, expected_result,
	status, requested_by, created_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
)`, change.ID, change.SensorID, change.CommandKey, values, change.PayloadHex, change.FPort, change.ExpectedResult,
		change.Status, change.RequestedBy, change.CreatedAt)
	return err
}

// MarkSent moves a queued change to sent.
func (r *ChangeRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("change repo: nil db")
	}
	return r.exec(ctx, `
UPDATE sensor_pending_changes
SET status = $1, sent_at = $2
WHERE id = $3 AND status = $4`, downlink.StatusSent, sentAt, id, downlink.StatusQueued)
}

// MarkFailed moves a change in fromStatus to failed.
func (r *ChangeRepository) MarkFailed(ctx context.Context, id, fromStatus, errMsg string, failedAt time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("change repo: nil db")
	}
	return r.exec(ctx, `
UPDATE sensor_pending_changes
SET status = $1, error = $2, failed_at = $3
WHERE id = $4 AND status = $5`, downlink.StatusFailed, errMsg, failedAt, id, fromStatus)
}

// MarkConfirmed moves a sent change to confirmed.
func (r *ChangeRepository) MarkConfirmed(ctx context.Context, id string, confirmedAt time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("change repo: nil db")
	}
	return r.exec(ctx, `
UPDATE sensor_pending_changes
SET status = $1, confirmed_at = $2
WHERE id = $3 AND status = $4`, downlink.StatusConfirmed, confirmedAt, id, downlink.StatusSent)
}

func (r *ChangeRepository) exec(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	count, _ := result.RowsAffected()
	return count > 0, nil
}

// GetByID fetches a change by id.
func (r *ChangeRepository) GetByID(ctx context.Context, id string) (*downlink.PendingChange, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("change repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+changeColumns+`
FROM sensor_pending_changes
WHERE id = $1`, id)
	return scanChange(row)
}

// LatestSentForSensor returns the most recently sent change still awaiting
// the device.
func (r *ChangeRepository) LatestSentForSensor(ctx context.Context, sensorID string) (*downlink.PendingChange, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("change repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+changeColumns+`
FROM sensor_pending_changes
WHERE sensor_id = $1 AND status = $2
ORDER BY sent_at DESC
LIMIT 1`, sensorID, downlink.StatusSent)
	return scanChange(row)
}

// ListBySensor lists the newest changes of a sensor.
func (r *ChangeRepository) ListBySensor(ctx context.Context, sensorID string, limit int) ([]downlink.PendingChange, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("change repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+changeColumns+`
FROM sensor_pending_changes
WHERE sensor_id = $1
ORDER BY created_at DESC
LIMIT $2`, sensorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []downlink.PendingChange
	for rows.Next() {
		change, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *change)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// TimeoutStale moves at most limit sent changes older than cutoff to timeout
// and clears sensor configuration references to them, in one transaction.
// Rows locked by a concurrent run are skipped.
func (r *ChangeRepository) TimeoutStale(ctx context.Context, cutoff, now time.Time, limit int) ([]downlink.TimedOutChange, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("change repo: nil db")
	}
	if limit <= 0 {
		return nil, errors.New("change repo: invalid limit")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
UPDATE sensor_pending_changes
SET status = $1, failed_at = $2, error = 'timeout'
WHERE id IN (
	SELECT id FROM sensor_pending_changes
	WHERE status = $3 AND sent_at < $4
	ORDER BY sent_at ASC
	LIMIT $5
	FOR UPDATE SKIP LOCKED
) AND status = $3 AND sent_at < $4
RETURNING id, sensor_id`, downlink.StatusTimeout, now, downlink.StatusSent, cutoff, limit)
	if err != nil {
		return nil, err
	}
	var timedOut []downlink.TimedOutChange
	ids := make([]string, 0)
	for rows.Next() {
		var item downlink.TimedOutChange
		if err := rows.Scan(&item.ID, &item.SensorID); err != nil {
			rows.Close()
			return nil, err
		}
		timedOut = append(timedOut, item)
		ids = append(ids, item.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(ids) > 0 {
		if _, err := tx.ExecContext(ctx, `
UPDATE sensor_configurations
SET pending_change_id = NULL, updated_at = $2
WHERE pending_change_id = ANY($1)`, ids, now); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return timedOut, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChange(row rowScanner) (*downlink.PendingChange, error) {
	var change downlink.PendingChange
	var values []byte
	var requestedBy sql.NullString
	var errMsg sql.NullString
	var sentAt, confirmedAt, failedAt sql.NullTime
	if err := row.Scan(
		&change.ID,
		&change.SensorID,
		&change.CommandKey,
		&values,
		&change.PayloadHex,
		&change.FPort,
		&change.ExpectedResult,
		&change.Status,
		&requestedBy,
		&errMsg,
		&change.CreatedAt,
		&sentAt,
		&confirmedAt,
		&failedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	change.Values = values
	change.RequestedBy = requestedBy.String
	change.Error = errMsg.String
	change.CreatedAt = change.CreatedAt.UTC()
	change.SentAt = nullTime(sentAt)
	change.ConfirmedAt = nullTime(confirmedAt)
	change.FailedAt = nullTime(failedAt)
	return &change, nil
}

func nullTime(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}
