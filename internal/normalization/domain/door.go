package normalization

// DoorReading is the canonical reading for door/contact sensors. Every field
// is nil when the payload carries no alias for it.
type DoorReading struct {
	DoorOpen      *bool    `json:"door_open"`
	OpenCount     *int64   `json:"open_count"`
	OpenDurationS *float64 `json:"open_duration_s"`
	BatteryV      *float64 `json:"battery_v"`
	Alarm         *bool    `json:"alarm"`
}

var (
	DoorOpenAliases = Aliases(UnitNone,
		"door_open", "DOOR_OPEN_STATUS", "door_status", "open_state_abs", "doorStatus", "open_close", "contactStatus")
	OpenCountAliases = Aliases(UnitNone,
		"open_count", "DOOR_OPEN_TIMES", "door_open_times", "openCount", "open_times")
	OpenDurationAliases = append(
		Aliases(UnitSeconds, "open_duration_s", "open_duration_seconds"),
		Aliases(UnitMinutes, "LAST_DOOR_OPEN_DURATION", "last_door_open_duration", "open_duration_min")...)
	BatteryVoltageAliases = Aliases(UnitNone,
		"battery_v", "BAT_V", "BatV", "battery_voltage", "batteryVoltage", "bat_v")
	AlarmAliases = Aliases(UnitNone,
		"alarm", "ALARM", "door_alarm", "alarm_status", "alarmStatus")
)

// NormalizeDoor maps a vendor door/contact payload into a DoorReading.
func NormalizeDoor(payload map[string]any) DoorReading {
	var reading DoorReading
	if _, value, ok := DoorOpenAliases.FirstPresent(payload); ok {
		reading.DoorOpen = coerceBool(value, doorTokens)
	}
	if _, value, ok := OpenCountAliases.FirstPresent(payload); ok {
		reading.OpenCount = coerceInt(value)
	}
	if alias, value, ok := OpenDurationAliases.FirstPresent(payload); ok {
		reading.OpenDurationS = coerceSeconds(value, alias.Unit)
	}
	if _, value, ok := BatteryVoltageAliases.FirstPresent(payload); ok {
		reading.BatteryV = coerceFloat(value)
	}
	if _, value, ok := AlarmAliases.FirstPresent(payload); ok {
		reading.Alarm = coerceBool(value, alarmTokens)
	}
	return reading
}
