package pipeline

import (
	"sort"
	"strings"
	"time"
)

// Report is the folded health of every layer for one sensor.
type Report struct {
	OverallStatus Status        `json:"overall_status"`
	FailingLayer  *Layer        `json:"failing_layer,omitempty"`
	Checks        []CheckResult `json:"checks"`
	UserMessage   string        `json:"user_message"`
	AdminDetails  string        `json:"admin_details"`
	CheckedAt     time.Time     `json:"checked_at"`
}

const healthyMessage = "All systems are working normally."

var userMessages = map[Layer]string{
	LayerSensor:   "The sensor has not reported recently. Check its battery and placement.",
	LayerGateway:  "The gateway serving this sensor appears offline. Check its power and internet connection.",
	LayerTTN:      "The LoRaWAN network is not forwarding data for this sensor.",
	LayerDecoder:  "Data from this sensor could not be decoded.",
	LayerWebhook:  "Sensor data is not reaching the application.",
	LayerDatabase: "Sensor data is not being saved. Support has been notified.",
}

const (
	unknownMessage    = "Health could not be fully determined yet."
	peripheralMessage = "Sensor data is flowing, but a connected service needs attention."
)

// UserMessage returns the static message for a failing layer. Outside the
// critical path only the overall status is known.
func UserMessage(failing *Layer, overall Status) string {
	if failing != nil {
		if msg, ok := userMessages[*failing]; ok {
			return msg
		}
	}
	switch overall {
	case StatusHealthy:
		return healthyMessage
	case StatusFailed, StatusDegraded:
		return peripheralMessage
	default:
		return unknownMessage
	}
}

// Aggregate folds already computed checks into a report. Checks are ordered
// canonically regardless of input order. Every active check counts toward the
// overall status; only critical-path layers can be the failing layer.
func Aggregate(checks []CheckResult, now time.Time) Report {
	ordered := append([]CheckResult(nil), checks...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return layerIndex(ordered[i].Layer) < layerIndex(ordered[j].Layer)
	})

	report := Report{
		OverallStatus: OverallStatus(ordered),
		FailingLayer:  FailingLayer(ordered),
		Checks:        ordered,
		AdminDetails:  AdminDetails(ordered),
		CheckedAt:     now,
	}
	report.UserMessage = UserMessage(report.FailingLayer, report.OverallStatus)
	return report
}

// OverallStatus folds every check; not_applicable checks are ignored.
func OverallStatus(checks []CheckResult) Status {
	var failed, degraded, unknown bool
	active := 0
	for _, c := range checks {
		if c.Status == StatusNotApplicable {
			continue
		}
		active++
		switch c.Status {
		case StatusFailed:
			failed = true
		case StatusDegraded:
			degraded = true
		case StatusHealthy:
		default:
			unknown = true
		}
	}
	switch {
	case failed:
		return StatusFailed
	case degraded:
		return StatusDegraded
	case active > 0 && !unknown:
		return StatusHealthy
	default:
		return StatusUnknown
	}
}

// FailingLayer returns the earliest critical-path layer that is failed or degraded.
func FailingLayer(checks []CheckResult) *Layer {
	byLayer := make(map[Layer]Status, len(checks))
	for _, c := range checks {
		byLayer[c.Layer] = c.Status
	}
	for _, layer := range CriticalPath {
		status, ok := byLayer[layer]
		if ok && (status == StatusFailed || status == StatusDegraded) {
			l := layer
			return &l
		}
	}
	return nil
}

// AdminDetails joins technical details, one "layer: details" line per check.
func AdminDetails(checks []CheckResult) string {
	lines := make([]string, 0, len(checks))
	for _, c := range checks {
		if c.TechnicalDetails == "" {
			continue
		}
		lines = append(lines, string(c.Layer)+": "+c.TechnicalDetails)
	}
	return strings.Join(lines, "\n")
}

func layerIndex(l Layer) int {
	for i, layer := range AllLayers {
		if layer == l {
			return i
		}
	}
	return len(AllLayers)
}
