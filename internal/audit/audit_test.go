package audit

import (
	"strings"
	"testing"
	"time"
)

func TestEntryNormalizedFillsDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	e := Entry{Action: ActionSweeperRun}.normalized(now)
	if !strings.HasPrefix(e.ID, "audit-") {
		t.Fatalf("unexpected id %q", e.ID)
	}
	if !e.CreatedAt.Equal(now) || e.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected utc timestamp, got %v", e.CreatedAt)
	}
	if string(e.Metadata) != "{}" || e.PayloadDigest != "" {
		t.Fatalf("unexpected metadata %s digest %q", e.Metadata, e.PayloadDigest)
	}
}

func TestEntryNormalizedKeepsSuppliedValues(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	meta := []byte(`{"timed_out":2}`)
	e := Entry{ID: "audit-1", CreatedAt: at, Metadata: meta}.normalized(time.Now())
	if e.ID != "audit-1" || !e.CreatedAt.Equal(at) {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.PayloadDigest != DigestJSON(meta) || len(e.PayloadDigest) != 64 {
		t.Fatalf("unexpected digest %q", e.PayloadDigest)
	}
}
