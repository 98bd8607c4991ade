package normalization

// TemperatureReading is the canonical reading for temperature and
// temperature/humidity sensors.
type TemperatureReading struct {
	TemperatureC *float64 `json:"temperature_c"`
	HumidityPct  *float64 `json:"humidity_pct"`
	BatteryV     *float64 `json:"battery_v"`
	BatteryPct   *float64 `json:"battery_pct"`
}

var (
	TemperatureAliases = append(
		Aliases(UnitCelsius, "temperature", "temperature_c", "TempC_SHT", "TempC_DS", "temp", "Temperature"),
		Aliases(UnitFahrenheit, "temperature_f", "TempF")...)
	HumidityAliases = Aliases(UnitNone,
		"humidity", "humidity_pct", "Hum_SHT", "relative_humidity", "hum", "Humidity")
	BatteryPercentAliases = Aliases(UnitNone,
		"battery_level", "battery_pct", "BatteryLevel", "battery")
)

// NormalizeTemperature maps a vendor temperature payload into a TemperatureReading.
func NormalizeTemperature(payload map[string]any) TemperatureReading {
	var reading TemperatureReading
	if alias, value, ok := TemperatureAliases.FirstPresent(payload); ok {
		reading.TemperatureC = coerceCelsius(value, alias.Unit)
	}
	if _, value, ok := HumidityAliases.FirstPresent(payload); ok {
		reading.HumidityPct = coerceFloat(value)
	}
	if _, value, ok := BatteryVoltageAliases.FirstPresent(payload); ok {
		reading.BatteryV = coerceFloat(value)
	}
	if _, value, ok := BatteryPercentAliases.FirstPresent(payload); ok {
		reading.BatteryPct = coerceFloat(value)
	}
	return reading
}
