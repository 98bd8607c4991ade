package downlink

import (
	"errors"
	"fmt"
)

var (
	ErrMissingFieldValue       = errors.New("downlink: missing field value")
	ErrUnterminatedPlaceholder = errors.New("downlink: unterminated template placeholder")
	ErrInvalidTemplate         = errors.New("downlink: invalid hex template")
	ErrFieldCountMismatch      = errors.New("downlink: placeholder count does not match fields")
	ErrUnknownEncoding         = errors.New("downlink: unknown field encoding")
	ErrUnknownTransform        = errors.New("downlink: unknown input transform")
	ErrInvalidFieldValue       = errors.New("downlink: invalid field value")
	ErrValueOutOfRange         = errors.New("downlink: value out of range")
	ErrUnknownCommand          = errors.New("downlink: unknown command")
	ErrInvalidCatalog          = errors.New("downlink: invalid command catalog")
)

// MissingFieldValueError names the field a caller failed to supply.
type MissingFieldValueError struct {
	CommandKey string
	Field      string
}

func (e *MissingFieldValueError) Error() string {
	return fmt.Sprintf("downlink: missing value for field %q of command %q", e.Field, e.CommandKey)
}

// Is matches ErrMissingFieldValue.
func (e *MissingFieldValueError) Is(target error) bool {
	return target == ErrMissingFieldValue
}
