package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const insertEntrySQL = `
INSERT INTO audit_logs (
	id, actor, role, action, resource_type, resource_id, sensor_id,
	metadata, payload_digest, ip, user_agent, created_at
) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12)`

// Repository persists audit entries to audit_logs.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository returns nil for a nil db.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db, now: time.Now}
}

// Log implements Logger.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	e := entry.normalized(r.now())
	_, err := r.db.ExecContext(ctx, insertEntrySQL,
		e.ID, e.Actor, e.Role, e.Action, e.ResourceType, e.ResourceID, e.SensorID,
		[]byte(e.Metadata), e.PayloadDigest, e.IP, e.UserAgent, e.CreatedAt)
	return err
}
