package sensors

import (
	"strings"
	"time"
)

// Display statuses.
const (
	StatusPending      = "pending"
	StatusJoining      = "joining"
	StatusError        = "error"
	StatusNever        = "never"
	StatusOnline       = "online"
	StatusLate         = "late"
	StatusNotReporting = "not_reporting"
)

// Stored sensor statuses consulted by the resolver.
const (
	DBStatusPending = "pending"
	DBStatusJoining = "joining"
	DBStatusActive  = "active"
	DBStatusFault   = "fault"
)

// ProvisioningExistsInTTN marks a device already registered on the network server.
const ProvisioningExistsInTTN = "exists_in_ttn"

// Interval sources, in resolution order.
const (
	IntervalSourceConfig       = "config"
	IntervalSourceCatalog      = "catalog"
	IntervalSourceTypeFallback = "type_fallback"
)

const defaultFallbackIntervalS = 3600

var fallbackIntervalS = map[string]int{
	"temperature":          600,
	"temperature_humidity": 600,
	"door":                 86400,
	"contact":              86400,
}

// StatusInput is a point-in-time snapshot of one sensor.
type StatusInput struct {
	DBStatus                string
	SensorType              string
	LastSeenAt              *time.Time
	ProvisioningState       string
	ConfigIntervalS         *int
	CatalogDefaultIntervalS *int
}

// StatusResult is the derived display status.
type StatusResult struct {
	Status            string `json:"status"`
	ExpectedIntervalS int    `json:"expected_interval_s"`
	IntervalSource    string `json:"interval_source"`
}

// ExpectedInterval resolves the report interval: the first positive value of
// the per-sensor override, the model default, then the type fallback.
func ExpectedInterval(sensorType string, configIntervalS, catalogDefaultIntervalS *int) (int, string) {
	if configIntervalS != nil && *configIntervalS > 0 {
		return *configIntervalS, IntervalSourceConfig
	}
	if catalogDefaultIntervalS != nil && *catalogDefaultIntervalS > 0 {
		return *catalogDefaultIntervalS, IntervalSourceCatalog
	}
	if interval, ok := fallbackIntervalS[strings.ToLower(sensorType)]; ok {
		return interval, IntervalSourceTypeFallback
	}
	return defaultFallbackIntervalS, IntervalSourceTypeFallback
}

// ResolveStatus derives the display status. It is a pure function of its
// inputs; the first matching rule wins.
func ResolveStatus(in StatusInput, now time.Time) StatusResult {
	interval, source := ExpectedInterval(in.SensorType, in.ConfigIntervalS, in.CatalogDefaultIntervalS)
	result := StatusResult{ExpectedIntervalS: interval, IntervalSource: source}

	provisioned := in.ProvisioningState == ProvisioningExistsInTTN
	switch {
	case in.DBStatus == DBStatusPending && !provisioned:
		result.Status = StatusPending
	case ((in.DBStatus == DBStatusPending && provisioned) || in.DBStatus == DBStatusJoining) && in.LastSeenAt == nil:
		result.Status = StatusJoining
	case in.DBStatus == DBStatusFault:
		result.Status = StatusError
	case in.LastSeenAt == nil:
		result.Status = StatusNever
	default:
		result.Status = statusFromElapsed(now.Sub(*in.LastSeenAt), interval)
	}
	return result
}

func statusFromElapsed(elapsed time.Duration, intervalS int) string {
	interval := time.Duration(intervalS) * time.Second
	switch {
	case elapsed <= interval*3/2:
		return StatusOnline
	case elapsed <= interval*3:
		return StatusLate
	default:
		return StatusNotReporting
	}
}
