package classification

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	payloadTypePattern = regexp.MustCompile(`^[a-z0-9_]+_v\d+$`)
	semverPattern      = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// ErrInvalidSchema is returned when a schema definition is malformed.
var ErrInvalidSchema = errors.New("classification: invalid schema")

// SchemaDefinition is a versioned canonical payload schema.
type SchemaDefinition struct {
	PayloadType    string   `yaml:"payload_type" json:"payload_type"`
	Version        string   `yaml:"version" json:"version"`
	RequiredFields []string `yaml:"required_fields" json:"required_fields"`
	OptionalFields []string `yaml:"optional_fields" json:"optional_fields"`
	Capabilities   []string `yaml:"capabilities" json:"capabilities"`
}

// Validate checks naming and field rules.
func (s SchemaDefinition) Validate() error {
	if !payloadTypePattern.MatchString(s.PayloadType) {
		return fmt.Errorf("%w: payload type %q must end in _v<N>", ErrInvalidSchema, s.PayloadType)
	}
	if s.PayloadType == Unclassified {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidSchema, s.PayloadType)
	}
	if !semverPattern.MatchString(s.Version) {
		return fmt.Errorf("%w: %s version %q is not semver", ErrInvalidSchema, s.PayloadType, s.Version)
	}
	if len(s.RequiredFields) == 0 {
		return fmt.Errorf("%w: %s has no required fields", ErrInvalidSchema, s.PayloadType)
	}
	seen := make(map[string]struct{}, len(s.RequiredFields)+len(s.OptionalFields))
	for _, field := range append(append([]string{}, s.RequiredFields...), s.OptionalFields...) {
		if field == "" {
			return fmt.Errorf("%w: %s has an empty field name", ErrInvalidSchema, s.PayloadType)
		}
		if _, ok := seen[field]; ok {
			return fmt.Errorf("%w: %s lists %q twice", ErrInvalidSchema, s.PayloadType, field)
		}
		seen[field] = struct{}{}
	}
	return nil
}

// requiredSupersetOf reports whether s requires every field other requires.
func (s SchemaDefinition) requiredSupersetOf(other SchemaDefinition) bool {
	required := make(map[string]struct{}, len(s.RequiredFields))
	for _, field := range s.RequiredFields {
		required[field] = struct{}{}
	}
	for _, field := range other.RequiredFields {
		if _, ok := required[field]; !ok {
			return false
		}
	}
	return true
}
