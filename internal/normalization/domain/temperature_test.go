package normalization

import (
	"math"
	"testing"
)

func TestNormalizeTemperatureAliases(t *testing.T) {
	reading := NormalizeTemperature(map[string]any{"TempC_SHT": 4.25, "Hum_SHT": 61.5, "BatV": 3.05})
	if reading.TemperatureC == nil || *reading.TemperatureC != 4.25 {
		t.Fatalf("unexpected temperature: %v", reading.TemperatureC)
	}
	if reading.HumidityPct == nil || *reading.HumidityPct != 61.5 {
		t.Fatalf("unexpected humidity: %v", reading.HumidityPct)
	}
	if reading.BatteryV == nil || *reading.BatteryV != 3.05 {
		t.Fatalf("unexpected battery: %v", reading.BatteryV)
	}
	if reading.BatteryPct != nil {
		t.Fatalf("expected nil battery pct, got %v", *reading.BatteryPct)
	}
}

func TestNormalizeTemperatureFahrenheit(t *testing.T) {
	reading := NormalizeTemperature(map[string]any{"temperature_f": 212.0})
	if reading.TemperatureC == nil || math.Abs(*reading.TemperatureC-100) > 1e-9 {
		t.Fatalf("expected 100C, got %v", reading.TemperatureC)
	}
}

func TestFamilyForSensorType(t *testing.T) {
	cases := map[string]Family{
		"door":                 FamilyDoor,
		"contact":              FamilyDoor,
		"temperature":          FamilyTemperature,
		"temperature_humidity": FamilyTemperature,
	}
	for sensorType, want := range cases {
		got, ok := FamilyForSensorType(sensorType)
		if !ok || got != want {
			t.Fatalf("%s: expected %s, got %s", sensorType, want, got)
		}
	}
	if _, ok := FamilyForSensorType("leak"); ok {
		t.Fatalf("expected no family for leak")
	}
	if Normalize("leak", map[string]any{"water_leak": true}) != nil {
		t.Fatalf("expected nil for unknown family")
	}
}
