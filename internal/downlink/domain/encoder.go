package downlink

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Encoder renders commands into uppercase hex downlink payloads.
type Encoder struct {
	clock Clock
}

// NewEncoder constructs an encoder. A nil clock uses the system clock.
func NewEncoder(clock Clock) *Encoder {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Encoder{clock: clock}
}

// Encode binds values to the command fields positionally and returns the
// payload as uppercase hex. Values are keyed by field name; a missing value
// falls back to the field default and fails when there is none.
func (e *Encoder) Encode(cmd Command, values map[string]any) (string, error) {
	if len(cmd.Fields) == 0 {
		return strings.ToUpper(cmd.HexTemplate), nil
	}
	segments, err := parseTemplate(cmd.HexTemplate)
	if err != nil {
		return "", fmt.Errorf("command %s: %w", cmd.Key, err)
	}
	if got := countPlaceholders(segments); got != len(cmd.Fields) {
		return "", fmt.Errorf("%w: command %s has %d placeholders and %d fields", ErrFieldCountMismatch, cmd.Key, got, len(cmd.Fields))
	}

	now := e.now()
	var out strings.Builder
	next := 0
	for _, seg := range segments {
		if !seg.isField {
			out.WriteString(seg.literal)
			continue
		}
		field := cmd.Fields[next]
		next++
		encoded, err := encodeField(cmd.Key, field, values, now)
		if err != nil {
			return "", err
		}
		out.WriteString(strings.ToUpper(hex.EncodeToString(encoded)))
	}
	return out.String(), nil
}

func (e *Encoder) now() time.Time {
	if e == nil || e.clock == nil {
		return SystemClock{}.Now()
	}
	return e.clock.Now()
}

func encodeField(commandKey string, field Field, values map[string]any, now time.Time) ([]byte, error) {
	if field.Encoding == nil {
		return nil, fmt.Errorf("%w: command %s field %s", ErrUnknownEncoding, commandKey, field.Name)
	}
	in := encodeInput{unit: field.Unit, now: now}
	if _, ignoresValue := field.Encoding.(unixNowEncoding); !ignoresValue {
		raw, ok := resolveValue(field, values)
		if !ok {
			return nil, &MissingFieldValueError{CommandKey: commandKey, Field: field.Name}
		}
		transformed, err := field.InputTransform.apply(raw)
		if err != nil {
			return nil, fmt.Errorf("command %s field %s: %w", commandKey, field.Name, err)
		}
		in.value = transformed
	}
	encoded, err := field.Encoding.encode(in)
	if err != nil {
		return nil, fmt.Errorf("command %s field %s: %w", commandKey, field.Name, err)
	}
	return encoded, nil
}

func resolveValue(field Field, values map[string]any) (any, bool) {
	if value, ok := values[field.Name]; ok && value != nil {
		return value, true
	}
	if field.Default != nil {
		return field.Default, true
	}
	return nil, false
}
