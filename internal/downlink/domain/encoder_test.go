package downlink

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func field(name, kind string) Field {
	return Field{Name: name, Encoding: MustEncoding(kind)}
}

func TestEncodeU24Interval(t *testing.T) {
	cmd := Command{Key: "tdc", HexTemplate: "01{seconds}", Fields: []Field{field("seconds", KindU24BE)}}
	got, err := NewEncoder(nil).Encode(cmd, map[string]any{"seconds": 7200.0})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got != "01001C20" {
		t.Fatalf("expected 01001C20, got %s", got)
	}
}

func TestEncodeZeroFieldReturnsTemplateUppercased(t *testing.T) {
	cmd := Command{Key: "reset", HexTemplate: "04ff"}
	got, err := NewEncoder(nil).Encode(cmd, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got != "04FF" {
		t.Fatalf("expected 04FF, got %s", got)
	}
}

func TestEncodeTemperature(t *testing.T) {
	cases := []struct {
		name  string
		unit  string
		value float64
		want  string
	}{
		{name: "positive", value: 25.00, want: "09C4"},
		{name: "negative", value: -5.00, want: "FE0C"},
		{name: "zero", value: 0, want: "0000"},
		{name: "rounding", value: 2.346, want: "00EB"},
		{name: "fahrenheit freezing", unit: "F", value: 32, want: "0000"},
		{name: "fahrenheit negative", unit: "F", value: 23, want: "FE0C"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := field("t", KindTempCelsiusX100)
			f.Unit = tc.unit
			cmd := Command{Key: "temp", HexTemplate: "{t}", Fields: []Field{f}}
			got, err := NewEncoder(nil).Encode(cmd, map[string]any{"t": tc.value})
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestEncodeTemperatureOutOfRange(t *testing.T) {
	cmd := Command{Key: "temp", HexTemplate: "{t}", Fields: []Field{field("t", KindTempCelsiusX100)}}
	if _, err := NewEncoder(nil).Encode(cmd, map[string]any{"t": 400.0}); !errors.Is(err, ErrValueOutOfRange) {
		t.Fatalf("expected ErrValueOutOfRange, got %v", err)
	}
}

func TestEncodeBooleans(t *testing.T) {
	cmd := Command{Key: "flags", HexTemplate: "A7{a}{b}", Fields: []Field{field("a", KindBool01), field("b", KindInvertBool01)}}
	enc := NewEncoder(nil)

	got, err := enc.Encode(cmd, map[string]any{"a": true, "b": true})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got != "A70100" {
		t.Fatalf("expected A70100, got %s", got)
	}
	got, err = enc.Encode(cmd, map[string]any{"a": false, "b": "disabled"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got != "A70001" {
		t.Fatalf("expected A70001, got %s", got)
	}
}

func TestEncodeUnsignedWidths(t *testing.T) {
	cases := []struct {
		kind  string
		value any
		want  string
	}{
		{kind: KindU8, value: 5.0, want: "05"},
		{kind: KindU8, value: 300.0, want: "2C"},
		{kind: KindU8, value: 255.6, want: "FF"},
		{kind: KindU8, value: 4.9, want: "04"},
		{kind: KindU16BE, value: 899.99, want: "0383"},
		{kind: KindU16BE, value: 900.0, want: "0384"},
		{kind: KindU24BE, value: "86400", want: "015180"},
		{kind: KindU32BE, value: 1, want: "00000001"},
	}
	for _, tc := range cases {
		cmd := Command{Key: "u", HexTemplate: "{v}", Fields: []Field{field("v", tc.kind)}}
		got, err := NewEncoder(nil).Encode(cmd, map[string]any{"v": tc.value})
		if err != nil {
			t.Fatalf("%s: encode: %v", tc.kind, err)
		}
		if got != tc.want {
			t.Fatalf("%s(%v): expected %s, got %s", tc.kind, tc.value, tc.want, got)
		}
	}
}

func TestEncodeUnsignedOverflow(t *testing.T) {
	cmd := Command{Key: "u", HexTemplate: "{v}", Fields: []Field{field("v", KindU16BE)}}
	if _, err := NewEncoder(nil).Encode(cmd, map[string]any{"v": 70000.0}); !errors.Is(err, ErrValueOutOfRange) {
		t.Fatalf("expected ErrValueOutOfRange, got %v", err)
	}
	if _, err := NewEncoder(nil).Encode(cmd, map[string]any{"v": -1.0}); !errors.Is(err, ErrValueOutOfRange) {
		t.Fatalf("expected ErrValueOutOfRange for negative, got %v", err)
	}
}

func TestEncodeMinutesToSeconds(t *testing.T) {
	f := field("interval", KindU24BE)
	f.InputTransform = TransformMinutesToSeconds
	cmd := Command{Key: "tdc", HexTemplate: "01{interval}", Fields: []Field{f}}
	got, err := NewEncoder(nil).Encode(cmd, map[string]any{"interval": 120.0})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got != "01001C20" {
		t.Fatalf("expected 01001C20, got %s", got)
	}
	got, err = NewEncoder(nil).Encode(cmd, map[string]any{"interval": 4.35})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got != "01000105" {
		t.Fatalf("expected 01000105, got %s", got)
	}
}

func TestEncodeUnixTimestampUsesClock(t *testing.T) {
	at := time.Unix(0x65A1B2C3, 0).UTC()
	cmd := Command{Key: "sync", HexTemplate: "30{now}00", Fields: []Field{field("ts", KindUnixTimestamp)}}
	got, err := NewEncoder(FixedClock{At: at}).Encode(cmd, map[string]any{"ts": 12.0})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got != "3065A1B2C300" {
		t.Fatalf("expected 3065A1B2C300, got %s", got)
	}
}

func TestEncodePlaceholdersBindPositionally(t *testing.T) {
	cmd := Command{Key: "pos", HexTemplate: "AA{second}{first}", Fields: []Field{field("first", KindU8), field("second", KindU8)}}
	got, err := NewEncoder(nil).Encode(cmd, map[string]any{"first": 1.0, "second": 2.0})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got != "AA0102" {
		t.Fatalf("expected AA0102, got %s", got)
	}
}

func TestEncodeMissingFieldValue(t *testing.T) {
	cmd := Command{Key: "tdc", HexTemplate: "01{seconds}", Fields: []Field{field("seconds", KindU24BE)}}
	_, err := NewEncoder(nil).Encode(cmd, map[string]any{"seconds": nil})
	if !errors.Is(err, ErrMissingFieldValue) {
		t.Fatalf("expected ErrMissingFieldValue, got %v", err)
	}
	var missing *MissingFieldValueError
	if !errors.As(err, &missing) || missing.Field != "seconds" || missing.CommandKey != "tdc" {
		t.Fatalf("expected field and command in error, got %v", err)
	}
}

func TestEncodeUsesDefault(t *testing.T) {
	f := field("seconds", KindU24BE)
	f.Default = 600.0
	cmd := Command{Key: "tdc", HexTemplate: "01{seconds}", Fields: []Field{f}}
	got, err := NewEncoder(nil).Encode(cmd, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got != "01000258" {
		t.Fatalf("expected 01000258, got %s", got)
	}
}

func TestEncodeTemplateErrors(t *testing.T) {
	cases := []struct {
		name string
		tpl  string
		want error
	}{
		{name: "unterminated", tpl: "01{seconds", want: ErrUnterminatedPlaceholder},
		{name: "non hex literal", tpl: "0G{x}", want: ErrInvalidTemplate},
		{name: "odd literal", tpl: "0{x}", want: ErrInvalidTemplate},
		{name: "too many placeholders", tpl: "01{x}{y}", want: ErrFieldCountMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := Command{Key: "bad", HexTemplate: tc.tpl, Fields: []Field{field("x", KindU8)}}
			if _, err := NewEncoder(nil).Encode(cmd, map[string]any{"x": 1.0}); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestEncodeNilEncodingFailsFast(t *testing.T) {
	cmd := Command{Key: "bad", HexTemplate: "{x}", Fields: []Field{{Name: "x"}}}
	if _, err := NewEncoder(nil).Encode(cmd, map[string]any{"x": 1.0}); !errors.Is(err, ErrUnknownEncoding) {
		t.Fatalf("expected ErrUnknownEncoding, got %v", err)
	}
	if _, err := ParseEncoding("i16le"); !errors.Is(err, ErrUnknownEncoding) {
		t.Fatalf("expected ErrUnknownEncoding from ParseEncoding, got %v", err)
	}
}

func TestEncodedLengthMatchesOutput(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	enc := NewEncoder(FixedClock{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	for _, cmd := range catalog.Commands() {
		values := sampleValues(cmd)
		got, err := enc.Encode(cmd, values)
		if err != nil {
			t.Fatalf("%s: encode: %v", cmd.Key, err)
		}
		want, err := cmd.EncodedLength()
		if err != nil {
			t.Fatalf("%s: encoded length: %v", cmd.Key, err)
		}
		if len(got) != want {
			t.Fatalf("%s: expected length %d, got %d (%s)", cmd.Key, want, len(got), got)
		}
		if len(got)%2 != 0 || strings.ToUpper(got) != got {
			t.Fatalf("%s: output %q is not even-length uppercase hex", cmd.Key, got)
		}
	}
}

func sampleValues(cmd Command) map[string]any {
	values := make(map[string]any)
	for _, f := range cmd.Fields {
		if f.Default != nil || f.Encoding.Kind() == KindUnixTimestamp {
			continue
		}
		switch f.Encoding.Kind() {
		case KindBool01, KindInvertBool01:
			values[f.Name] = true
		case KindTempCelsiusX100:
			values[f.Name] = 4.0
		default:
			values[f.Name] = 60.0
		}
	}
	return values
}
