package pipeline

import (
	"testing"
	"time"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func TestCheckLayerStatuses(t *testing.T) {
	th := Threshold{StaleMinutes: 60, FailedMinutes: 1440}
	cases := []struct {
		name string
		obs  Observation
		want Status
	}{
		{name: "not applicable", obs: Observation{Layer: LayerGateway}, want: StatusNotApplicable},
		{name: "no timestamp", obs: Observation{Layer: LayerSensor, Applicable: true}, want: StatusUnknown},
		{name: "fresh", obs: Observation{Layer: LayerSensor, Applicable: true, LastActivity: ago(5 * time.Minute)}, want: StatusHealthy},
		{name: "future timestamp", obs: Observation{Layer: LayerSensor, Applicable: true, LastActivity: ago(-time.Minute)}, want: StatusHealthy},
		{name: "stale boundary", obs: Observation{Layer: LayerSensor, Applicable: true, LastActivity: ago(60 * time.Minute)}, want: StatusDegraded},
		{name: "failed boundary", obs: Observation{Layer: LayerSensor, Applicable: true, LastActivity: ago(1440 * time.Minute)}, want: StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CheckLayer(tc.obs, th, now)
			if got.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got.Status)
			}
			if got.Message == "" {
				t.Fatalf("expected message")
			}
		})
	}
}

func TestCheckLayerKeepsSuppliedDetails(t *testing.T) {
	got := CheckLayer(Observation{Layer: LayerDatabase, Applicable: true, LastActivity: ago(time.Minute), Details: "rows=3"}, DefaultThresholds().For(LayerDatabase), now)
	if got.TechnicalDetails != "rows=3" {
		t.Fatalf("unexpected details %q", got.TechnicalDetails)
	}
}

func TestDefaultThresholds(t *testing.T) {
	th := DefaultThresholds()
	if th[LayerSensor] != (Threshold{StaleMinutes: 60, FailedMinutes: 1440}) {
		t.Fatalf("unexpected sensor threshold %+v", th[LayerSensor])
	}
	if th[LayerGateway] != (Threshold{StaleMinutes: 10, FailedMinutes: 60}) {
		t.Fatalf("unexpected gateway threshold %+v", th[LayerGateway])
	}
	for _, layer := range AllLayers {
		if !th[layer].Valid() {
			t.Fatalf("missing default for %s", layer)
		}
	}
}

func TestThresholdsForFallsBackOnInvalid(t *testing.T) {
	th := Thresholds{LayerGateway: {StaleMinutes: 30, FailedMinutes: 5}}
	if got := th.For(LayerGateway); got.StaleMinutes != 10 {
		t.Fatalf("expected default gateway threshold, got %+v", got)
	}
}

func TestCheckExternalAPI(t *testing.T) {
	ok := now.Add(-48 * time.Hour)
	earlier := ok.Add(-time.Hour)
	later := ok.Add(time.Hour)
	cases := []struct {
		name    string
		enabled bool
		lastOK  *time.Time
		failure *time.Time
		want    Status
	}{
		{name: "disabled", enabled: false, failure: &later, want: StatusNotApplicable},
		{name: "never pushed", enabled: true, want: StatusHealthy},
		{name: "idle since success", enabled: true, lastOK: &ok, want: StatusHealthy},
		{name: "recovered", enabled: true, lastOK: &ok, failure: &earlier, want: StatusHealthy},
		{name: "failed after success", enabled: true, lastOK: &ok, failure: &later, want: StatusFailed},
		{name: "only failures", enabled: true, failure: &earlier, want: StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CheckExternalAPI(tc.enabled, tc.lastOK, tc.failure, "ttn: http 403: forbidden")
			if got.Status != tc.want || got.Layer != LayerExternalAPI {
				t.Fatalf("expected %s, got %+v", tc.want, got)
			}
			if tc.want == StatusFailed && got.Error == "" {
				t.Fatalf("expected error to be reported")
			}
		})
	}
}
