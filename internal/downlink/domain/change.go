package downlink

import (
	"encoding/json"
	"time"
)

// Pending change lifecycle.
const (
	StatusQueued    = "queued"
	StatusSent      = "sent"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusTimeout   = "timeout"
)

// ErrorNotDispatched marks a change abandoned before it reached the network
// server.
const ErrorNotDispatched = "not_dispatched"

// Transport policy for configuration downlinks. One change is one downlink.
const (
	DefaultFPort   = 2
	Confirmed      = false
	QueueOperation = "replace"
)

// PendingChange tracks one dispatched configuration downlink. Rows are never
// deleted.
type PendingChange struct {
	ID             string          `json:"id"`
	SensorID       string          `json:"sensor_id"`
	CommandKey     string          `json:"command_key"`
	Values         json.RawMessage `json:"values"`
	PayloadHex     string          `json:"payload_hex"`
	FPort          int             `json:"f_port"`
	ExpectedResult string          `json:"expected_result"`
	Status         string          `json:"status"`
	RequestedBy    string          `json:"requested_by,omitempty"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	SentAt         *time.Time      `json:"sent_at,omitempty"`
	ConfirmedAt    *time.Time      `json:"confirmed_at,omitempty"`
	FailedAt       *time.Time      `json:"failed_at,omitempty"`
}

// TimedOutChange identifies a change moved to timeout by the sweeper.
type TimedOutChange struct {
	ID       string
	SensorID string
}
