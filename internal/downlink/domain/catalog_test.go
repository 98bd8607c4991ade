package downlink

import (
	"errors"
	"testing"
)

func TestDefaultCatalogLoads(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	cmd, err := catalog.Lookup("set_uplink_interval")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if cmd.FPort != DefaultFPort {
		t.Fatalf("expected default f_port %d, got %d", DefaultFPort, cmd.FPort)
	}
	got, err := NewEncoder(nil).Encode(cmd, map[string]any{"interval_minutes": 120.0})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got != "01001C20" {
		t.Fatalf("expected 01001C20, got %s", got)
	}
}

func TestCatalogLookupUnknown(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	if _, err := catalog.Lookup("self_destruct"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestLoadCatalogRejectsUnknownEncoding(t *testing.T) {
	_, err := LoadCatalog([]byte(`
commands:
  - key: bad
    hex_template: "01{x}"
    fields:
      - name: x
        encoding: i16le
`))
	if !errors.Is(err, ErrUnknownEncoding) {
		t.Fatalf("expected ErrUnknownEncoding, got %v", err)
	}
}

func TestLoadCatalogRejectsUnknownTransform(t *testing.T) {
	_, err := LoadCatalog([]byte(`
commands:
  - key: bad
    hex_template: "01{x}"
    fields:
      - name: x
        encoding: u8
        inputTransform: hours_to_seconds
`))
	if !errors.Is(err, ErrUnknownTransform) {
		t.Fatalf("expected ErrUnknownTransform, got %v", err)
	}
}

func TestLoadCatalogRejectsPlaceholderMismatch(t *testing.T) {
	_, err := LoadCatalog([]byte(`
commands:
  - key: bad
    hex_template: "01{x}{y}"
    fields:
      - name: x
        encoding: u8
`))
	if !errors.Is(err, ErrFieldCountMismatch) {
		t.Fatalf("expected ErrFieldCountMismatch, got %v", err)
	}
}
