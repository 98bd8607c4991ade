package downlink

import (
	"fmt"
	"strconv"
	"strings"
)

// ExpectedResult renders a human-readable summary of what a command will set,
// for audit display. Hidden fields are skipped.
func ExpectedResult(cmd Command, values map[string]any) string {
	name := cmd.Name
	if name == "" {
		name = cmd.Key
	}
	var parts []string
	for _, field := range cmd.Fields {
		if field.Hidden {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = %s", field.DisplayName(), displayValue(field, values)))
	}
	if len(parts) == 0 {
		return name
	}
	return name + ": " + strings.Join(parts, ", ")
}

func displayValue(field Field, values map[string]any) string {
	if field.Encoding != nil && field.Encoding.Kind() == KindUnixTimestamp {
		return "current time"
	}
	raw, ok := resolveValue(field, values)
	if !ok {
		return "(missing)"
	}
	if field.Encoding != nil {
		switch field.Encoding.Kind() {
		case KindBool01, KindInvertBool01:
			if b, err := toBool(raw); err == nil {
				if b {
					return "on"
				}
				return "off"
			}
		}
	}
	text := formatRaw(raw)
	if field.Unit != "" {
		text += " " + field.Unit
	}
	return text
}

func formatRaw(raw any) string {
	switch v := raw.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	}
	return fmt.Sprint(raw)
}
