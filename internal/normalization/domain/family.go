package normalization

import "strings"

// Family is a device family with its own canonical reading shape.
type Family string

const (
	FamilyDoor        Family = "door"
	FamilyTemperature Family = "temperature"
)

// FamilyForSensorType maps a sensor type to its reading family.
func FamilyForSensorType(sensorType string) (Family, bool) {
	switch strings.ToLower(strings.TrimSpace(sensorType)) {
	case "door", "contact":
		return FamilyDoor, true
	case "temperature", "temperature_humidity":
		return FamilyTemperature, true
	}
	return "", false
}

// Normalize dispatches to the family normalizer. Unknown families yield nil.
func Normalize(family Family, payload map[string]any) any {
	switch family {
	case FamilyDoor:
		return NormalizeDoor(payload)
	case FamilyTemperature:
		return NormalizeTemperature(payload)
	}
	return nil
}
