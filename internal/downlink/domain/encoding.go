package downlink

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Encoding kind names as they appear in the command catalog.
const (
	KindU8              = "u8"
	KindU16BE           = "u16be"
	KindU24BE           = "u24be"
	KindU32BE           = "u32be"
	KindBool01          = "bool01"
	KindInvertBool01    = "invertBool01"
	KindTempCelsiusX100 = "temp_celsius_x100"
	KindUnixTimestamp   = "unix_timestamp_now"
)

// Encoding turns one field value into a fixed number of bytes. The set of
// implementations is closed; catalog names resolve through ParseEncoding.
type Encoding interface {
	Kind() string
	Width() int
	encode(in encodeInput) ([]byte, error)
}

type encodeInput struct {
	value any
	unit  string
	now   time.Time
}

// ParseEncoding resolves a catalog encoding name.
func ParseEncoding(name string) (Encoding, error) {
	switch name {
	case KindU8:
		return unsignedEncoding{kind: KindU8, width: 1, mask: true}, nil
	case KindU16BE:
		return unsignedEncoding{kind: KindU16BE, width: 2}, nil
	case KindU24BE:
		return unsignedEncoding{kind: KindU24BE, width: 3}, nil
	case KindU32BE:
		return unsignedEncoding{kind: KindU32BE, width: 4}, nil
	case KindBool01:
		return boolEncoding{}, nil
	case KindInvertBool01:
		return boolEncoding{invert: true}, nil
	case KindTempCelsiusX100:
		return celsiusX100Encoding{}, nil
	case KindUnixTimestamp:
		return unixNowEncoding{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
}

// MustEncoding is ParseEncoding for statically known names.
func MustEncoding(name string) Encoding {
	enc, err := ParseEncoding(name)
	if err != nil {
		panic(err)
	}
	return enc
}

// unsignedEncoding writes a big-endian unsigned integer. Fractions are
// truncated toward zero. u8 masks to the low byte; wider kinds reject values
// that do not fit.
type unsignedEncoding struct {
	kind  string
	width int
	mask  bool
}

func (e unsignedEncoding) Kind() string { return e.kind }
func (e unsignedEncoding) Width() int   { return e.width }

func (e unsignedEncoding) encode(in encodeInput) ([]byte, error) {
	number, err := toNumber(in.value)
	if err != nil {
		return nil, err
	}
	n := int64(math.Trunc(number))
	limit := int64(1) << (8 * e.width)
	if e.mask {
		n &= limit - 1
	} else if n < 0 || n >= limit {
		return nil, fmt.Errorf("%w: %d does not fit %s", ErrValueOutOfRange, n, e.kind)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	return buf[8-e.width:], nil
}

// boolEncoding writes 0x01/0x00; invert flips it for disable-style flags.
type boolEncoding struct {
	invert bool
}

func (e boolEncoding) Kind() string {
	if e.invert {
		return KindInvertBool01
	}
	return KindBool01
}

func (e boolEncoding) Width() int { return 1 }

func (e boolEncoding) encode(in encodeInput) ([]byte, error) {
	b, err := toBool(in.value)
	if err != nil {
		return nil, err
	}
	if e.invert {
		b = !b
	}
	if b {
		return []byte{0x01}, nil
	}
	return []byte{0x00}, nil
}

// celsiusX100Encoding writes round(celsius*100) as a two's complement int16.
type celsiusX100Encoding struct{}

func (celsiusX100Encoding) Kind() string { return KindTempCelsiusX100 }
func (celsiusX100Encoding) Width() int   { return 2 }

func (celsiusX100Encoding) encode(in encodeInput) ([]byte, error) {
	number, err := toNumber(in.value)
	if err != nil {
		return nil, err
	}
	if isFahrenheit(in.unit) {
		number = (number - 32) * 5 / 9
	}
	scaled := int64(math.Round(number * 100))
	if scaled < math.MinInt16 || scaled > math.MaxInt16 {
		return nil, fmt.Errorf("%w: %.2f C does not fit int16", ErrValueOutOfRange, number)
	}
	if scaled < 0 {
		scaled += 65536
	}
	return []byte{byte(scaled >> 8), byte(scaled)}, nil
}

// unixNowEncoding writes the current unix time and ignores the supplied value.
type unixNowEncoding struct{}

func (unixNowEncoding) Kind() string { return KindUnixTimestamp }
func (unixNowEncoding) Width() int   { return 4 }

func (unixNowEncoding) encode(in encodeInput) ([]byte, error) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(in.now.Unix()))
	return buf[:], nil
}

func isFahrenheit(unit string) bool {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "f", "°f", "fahrenheit", "degf":
		return true
	}
	return false
}

func toNumber(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidFieldValue, v)
		}
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidFieldValue, v)
		}
		return f, nil
	case interface{ Float64() (float64, error) }:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidFieldValue, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: %v (%T) is not a number", ErrInvalidFieldValue, value, value)
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "on", "enabled", "enable", "yes", "1":
			return true, nil
		case "false", "off", "disabled", "disable", "no", "0":
			return false, nil
		}
		return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidFieldValue, v)
	}
	number, err := toNumber(value)
	if err != nil {
		return false, err
	}
	return number != 0, nil
}
