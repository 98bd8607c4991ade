package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit actions.
const (
	ActionDownlinkRequested = "downlink.requested"
	ActionDownlinkConfirmed = "downlink.confirmed"
	ActionDownlinkFailed    = "downlink.failed"
	ActionSweeperRun        = "sweeper.run"
)

// Entry represents an audit log entry.
type Entry struct {
	ID            string
	Actor         string
	Role          string
	Action        string
	ResourceType  string
	ResourceID    string
	SensorID      string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NopLogger drops entries.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Entry) error { return nil }

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// normalized fills id, timestamp, digest and an empty metadata object.
func (e Entry) normalized(now time.Time) Entry {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now.UTC()
	}
	if e.PayloadDigest == "" {
		e.PayloadDigest = DigestJSON(e.Metadata)
	}
	if len(e.Metadata) == 0 {
		e.Metadata = json.RawMessage("{}")
	}
	return e
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
