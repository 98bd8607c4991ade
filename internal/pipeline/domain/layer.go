package pipeline

import (
	"fmt"
	"time"
)

// Layer names one stage of the sensor-to-database data path.
type Layer string

const (
	LayerSensor      Layer = "sensor"
	LayerGateway     Layer = "gateway"
	LayerTTN         Layer = "ttn"
	LayerDecoder     Layer = "decoder"
	LayerWebhook     Layer = "webhook"
	LayerDatabase    Layer = "database"
	LayerExternalAPI Layer = "external_api"
)

// CriticalPath is the canonical device-to-database order used for failingLayer.
var CriticalPath = []Layer{LayerSensor, LayerGateway, LayerTTN, LayerDecoder, LayerWebhook, LayerDatabase}

// AllLayers is every evaluated layer in report order.
var AllLayers = append(append([]Layer{}, CriticalPath...), LayerExternalAPI)

// Status is a layer or report health state.
type Status string

const (
	StatusHealthy       Status = "healthy"
	StatusDegraded      Status = "degraded"
	StatusFailed        Status = "failed"
	StatusUnknown       Status = "unknown"
	StatusNotApplicable Status = "not_applicable"
)

// Threshold bounds, in minutes, after which a layer degrades and then fails.
type Threshold struct {
	StaleMinutes  int `yaml:"stale_minutes" json:"stale_minutes"`
	FailedMinutes int `yaml:"failed_minutes" json:"failed_minutes"`
}

// Valid reports whether both bounds are positive and ordered.
func (t Threshold) Valid() bool {
	return t.StaleMinutes > 0 && t.FailedMinutes >= t.StaleMinutes
}

// Thresholds maps each layer to its bounds.
type Thresholds map[Layer]Threshold

var defaultThreshold = Threshold{StaleMinutes: 60, FailedMinutes: 1440}

// DefaultThresholds returns a fresh copy of the built-in bounds.
func DefaultThresholds() Thresholds {
	out := make(Thresholds, len(AllLayers))
	for _, layer := range AllLayers {
		out[layer] = defaultThreshold
	}
	out[LayerGateway] = Threshold{StaleMinutes: 10, FailedMinutes: 60}
	return out
}

// For returns the bounds for layer, falling back to the defaults.
func (t Thresholds) For(layer Layer) Threshold {
	if th, ok := t[layer]; ok && th.Valid() {
		return th
	}
	if th, ok := DefaultThresholds()[layer]; ok {
		return th
	}
	return defaultThreshold
}

// Observation is the input for one layer check.
type Observation struct {
	Layer Layer
	// Applicable is false when the underlying entity does not exist.
	Applicable   bool
	LastActivity *time.Time
	Error        string
	Details      string
}

// CheckResult is the outcome of one layer check.
type CheckResult struct {
	Layer            Layer      `json:"layer"`
	Status           Status     `json:"status"`
	LastSuccess      *time.Time `json:"last_success,omitempty"`
	Error            string     `json:"error,omitempty"`
	TechnicalDetails string     `json:"technical_details,omitempty"`
	Message          string     `json:"message"`
}

// CheckLayer maps an observation onto a status. It never fails.
func CheckLayer(obs Observation, th Threshold, now time.Time) CheckResult {
	result := CheckResult{
		Layer:            obs.Layer,
		LastSuccess:      obs.LastActivity,
		Error:            obs.Error,
		TechnicalDetails: obs.Details,
	}
	if !obs.Applicable {
		result.Status = StatusNotApplicable
		result.LastSuccess = nil
		result.Message = fmt.Sprintf("%s: not configured", obs.Layer)
		return result
	}
	if obs.LastActivity == nil {
		result.Status = StatusUnknown
		result.Message = fmt.Sprintf("%s: no activity recorded", obs.Layer)
		return result
	}

	elapsed := now.Sub(*obs.LastActivity)
	if elapsed < 0 {
		elapsed = 0
	}
	minutes := int(elapsed / time.Minute)
	switch {
	case elapsed >= time.Duration(th.FailedMinutes)*time.Minute:
		result.Status = StatusFailed
		result.Message = fmt.Sprintf("%s: no activity for %d minutes", obs.Layer, minutes)
	case elapsed >= time.Duration(th.StaleMinutes)*time.Minute:
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("%s: last activity %d minutes ago", obs.Layer, minutes)
	default:
		result.Status = StatusHealthy
		result.Message = fmt.Sprintf("%s: active", obs.Layer)
	}
	if result.TechnicalDetails == "" {
		result.TechnicalDetails = fmt.Sprintf("last_activity=%s elapsed_minutes=%d stale=%d failed=%d",
			obs.LastActivity.UTC().Format(time.RFC3339), minutes, th.StaleMinutes, th.FailedMinutes)
	}
	return result
}

// CheckExternalAPI reports whether the latest push to the network server API
// succeeded. Idle time is not a failure; a push that failed after the last
// successful one is.
func CheckExternalAPI(enabled bool, lastOK, lastFailure *time.Time, lastError string) CheckResult {
	result := CheckResult{Layer: LayerExternalAPI, LastSuccess: lastOK}
	switch {
	case !enabled:
		result.Status = StatusNotApplicable
		result.LastSuccess = nil
		result.Message = fmt.Sprintf("%s: not configured", LayerExternalAPI)
	case lastFailure != nil && (lastOK == nil || lastFailure.After(*lastOK)):
		result.Status = StatusFailed
		result.Error = lastError
		result.Message = fmt.Sprintf("%s: last push failed", LayerExternalAPI)
		result.TechnicalDetails = "last_failure=" + lastFailure.UTC().Format(time.RFC3339)
	case lastOK == nil:
		result.Status = StatusHealthy
		result.Message = fmt.Sprintf("%s: no pushes yet", LayerExternalAPI)
	default:
		result.Status = StatusHealthy
		result.Message = fmt.Sprintf("%s: last push succeeded", LayerExternalAPI)
		result.TechnicalDetails = "last_push=" + lastOK.UTC().Format(time.RFC3339)
	}
	return result
}
