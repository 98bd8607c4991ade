package ttn

import (
	"context"
	"errors"

	downlinkapp "frostguard/internal/downlink/application"
)

// ErrNotConfigured is returned when no application credentials are set.
var ErrNotConfigured = errors.New("ttn: client not configured")

// DisabledTransport rejects every downlink. Changes requested while it is
// wired are recorded as failed.
type DisabledTransport struct{}

// Push always fails.
func (DisabledTransport) Push(context.Context, downlinkapp.Downlink) error {
	return ErrNotConfigured
}
