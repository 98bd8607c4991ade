package downlink

import (
	"fmt"
	"math"
)

// Transform adjusts a raw field value before encoding.
type Transform string

const (
	TransformNone             Transform = ""
	TransformMinutesToSeconds Transform = "minutes_to_seconds"
)

// ParseTransform resolves a catalog transform name.
func ParseTransform(name string) (Transform, error) {
	switch Transform(name) {
	case TransformNone, TransformMinutesToSeconds:
		return Transform(name), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTransform, name)
}

func (t Transform) apply(value any) (any, error) {
	switch t {
	case TransformNone:
		return value, nil
	case TransformMinutesToSeconds:
		number, err := toNumber(value)
		if err != nil {
			return nil, err
		}
		// Whole seconds; 4.35*60 is 260.999... in float64.
		return math.Round(number * 60), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, string(t))
}

// Field is one encoded parameter of a command.
type Field struct {
	Name           string
	Label          string
	Encoding       Encoding
	Default        any
	Unit           string
	InputTransform Transform
	Hidden         bool
}

// DisplayName returns the label shown to users.
func (f Field) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Command is a catalog entry describing one Class A configuration downlink.
type Command struct {
	Key         string
	Name        string
	Description string
	HexTemplate string
	FPort       int
	Fields      []Field
}

// Validate checks the template against the field list.
func (c Command) Validate() error {
	if c.Key == "" {
		return fmt.Errorf("%w: empty command key", ErrInvalidCatalog)
	}
	if c.FPort < 0 || c.FPort > 223 {
		return fmt.Errorf("%w: command %s f_port %d out of range", ErrInvalidCatalog, c.Key, c.FPort)
	}
	segments, err := parseTemplate(c.HexTemplate)
	if err != nil {
		return fmt.Errorf("command %s: %w", c.Key, err)
	}
	if got := countPlaceholders(segments); got != len(c.Fields) {
		return fmt.Errorf("%w: command %s has %d placeholders and %d fields", ErrFieldCountMismatch, c.Key, got, len(c.Fields))
	}
	for _, field := range c.Fields {
		if field.Name == "" {
			return fmt.Errorf("%w: command %s has an unnamed field", ErrInvalidCatalog, c.Key)
		}
		if field.Encoding == nil {
			return fmt.Errorf("%w: command %s field %s", ErrUnknownEncoding, c.Key, field.Name)
		}
		if _, err := ParseTransform(string(field.InputTransform)); err != nil {
			return fmt.Errorf("command %s field %s: %w", c.Key, field.Name, err)
		}
	}
	return nil
}

// EncodedLength is the hex length of any successful encoding of c.
func (c Command) EncodedLength() (int, error) {
	if len(c.Fields) == 0 {
		return len(c.HexTemplate), nil
	}
	segments, err := parseTemplate(c.HexTemplate)
	if err != nil {
		return 0, err
	}
	n := literalLength(segments)
	for _, field := range c.Fields {
		if field.Encoding == nil {
			return 0, fmt.Errorf("%w: field %s", ErrUnknownEncoding, field.Name)
		}
		n += field.Encoding.Width() * 2
	}
	return n, nil
}
