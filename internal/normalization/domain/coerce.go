package normalization

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// boolTokens maps case-insensitive vendor strings to boolean states.
type boolTokens struct {
	truthy []string
	falsy  []string
}

var (
	doorTokens = boolTokens{
		truthy: []string{"open"},
		falsy:  []string{"closed", "close"},
	}
	alarmTokens = boolTokens{
		truthy: []string{"true", "alarm", "on", "yes"},
		falsy:  []string{"false", "normal", "off", "no"},
	}
)

func (t boolTokens) match(value string) (bool, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, token := range t.truthy {
		if value == token {
			return true, true
		}
	}
	for _, token := range t.falsy {
		if value == token {
			return false, true
		}
	}
	return false, false
}

func coerceBool(value any, tokens boolTokens) *bool {
	switch v := value.(type) {
	case nil:
		return nil
	case bool:
		return &v
	case string:
		if b, ok := tokens.match(v); ok {
			return &b
		}
		return nil
	}
	number, ok := toFloat(value)
	if !ok {
		return nil
	}
	switch number {
	case 1:
		b := true
		return &b
	case 0:
		b := false
		return &b
	}
	return nil
}

func coerceInt(value any) *int64 {
	number, ok := toFloat(value)
	if !ok || number != math.Trunc(number) {
		return nil
	}
	n := int64(number)
	return &n
}

func coerceFloat(value any) *float64 {
	number, ok := toFloat(value)
	if !ok {
		return nil
	}
	return &number
}

// coerceSeconds converts a duration alias into seconds.
func coerceSeconds(value any, unit Unit) *float64 {
	number, ok := toFloat(value)
	if !ok {
		return nil
	}
	if unit == UnitMinutes {
		number *= 60
	}
	return &number
}

// coerceCelsius converts a temperature alias into degrees Celsius.
func coerceCelsius(value any, unit Unit) *float64 {
	number, ok := toFloat(value)
	if !ok {
		return nil
	}
	if unit == UnitFahrenheit {
		number = (number - 32) * 5 / 9
	}
	return &number
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint8:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}
