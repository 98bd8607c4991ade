package application

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	downlink "frostguard/internal/downlink/domain"
)

type row struct {
	id       string
	sensorID string
	status   string
	sentAt   time.Time
}

// memoryStore applies the same stale predicate as the Postgres update.
type memoryStore struct {
	rows   []*row
	err    error
	limits []int
}

func (m *memoryStore) TimeoutStale(_ context.Context, cutoff, _ time.Time, limit int) ([]downlink.TimedOutChange, error) {
	m.limits = append(m.limits, limit)
	if m.err != nil {
		return nil, m.err
	}
	candidates := make([]*row, 0)
	for _, r := range m.rows {
		if r.status == downlink.StatusSent && r.sentAt.Before(cutoff) {
			candidates = append(candidates, r)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].sentAt.Before(candidates[j].sentAt) })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]downlink.TimedOutChange, 0, len(candidates))
	for _, r := range candidates {
		r.status = downlink.StatusTimeout
		out = append(out, downlink.TimedOutChange{ID: r.id, SensorID: r.sensorID})
	}
	return out, nil
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newSweeper(t *testing.T, store StaleChangeStore, cfg Config) (*Sweeper, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	s, err := NewSweeper(store, cfg, downlink.FixedClock{At: now}, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}
	return s, &buf
}

func TestClampTimeoutHours(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{in: 0, want: 1},
		{in: -5, want: 1},
		{in: math.NaN(), want: 24},
		{in: math.Inf(1), want: 168},
		{in: math.Inf(-1), want: 1},
		{in: 0.25, want: 1},
		{in: 0.5, want: 1},
		{in: 1, want: 1},
		{in: 48, want: 48},
		{in: 168, want: 168},
		{in: 500, want: 168},
	}
	for _, tc := range cases {
		if got := ClampTimeoutHours(tc.in); got != tc.want {
			t.Fatalf("clamp(%v): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestRunClampsExplicitZeroWindow(t *testing.T) {
	store := &memoryStore{rows: []*row{
		{id: "c1", sensorID: "s1", status: downlink.StatusSent, sentAt: now.Add(-2 * time.Hour)},
	}}
	s, _ := newSweeper(t, store, Config{})
	if s.TimeoutHours() != DefaultTimeoutHours {
		t.Fatalf("expected unset config to use default, got %v", s.TimeoutHours())
	}
	zero := 0.0
	result, err := s.Run(context.Background(), &zero)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TimeoutHours != 1 || result.TimedOut != 1 || !result.Cutoff.Equal(now.Add(-time.Hour)) {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunTimesOutStaleSentChangesOnce(t *testing.T) {
	store := &memoryStore{rows: []*row{
		{id: "c1", sensorID: "s1", status: downlink.StatusSent, sentAt: now.Add(-30 * time.Hour)},
		{id: "c2", sensorID: "s1", status: downlink.StatusSent, sentAt: now.Add(-25 * time.Hour)},
		{id: "c3", sensorID: "s2", status: downlink.StatusSent, sentAt: now.Add(-48 * time.Hour)},
		{id: "c4", sensorID: "s3", status: downlink.StatusSent, sentAt: now.Add(-time.Hour)},
		{id: "c5", sensorID: "s4", status: downlink.StatusConfirmed, sentAt: now.Add(-72 * time.Hour)},
		{id: "c6", sensorID: "s5", status: downlink.StatusQueued, sentAt: now.Add(-72 * time.Hour)},
	}}
	sweeper, logs := newSweeper(t, store, Config{})

	first, err := sweeper.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if first.TimedOut != 3 {
		t.Fatalf("expected 3 timed out, got %d", first.TimedOut)
	}
	sensors := append([]string(nil), first.AffectedSensors...)
	sort.Strings(sensors)
	if strings.Join(sensors, ",") != "s1,s2" {
		t.Fatalf("unexpected affected sensors %v", first.AffectedSensors)
	}
	if !first.Cutoff.Equal(now.Add(-24*time.Hour)) || first.TimeoutHours != 24 {
		t.Fatalf("unexpected cutoff %s hours %v", first.Cutoff, first.TimeoutHours)
	}
	if store.rows[3].status != downlink.StatusSent {
		t.Fatalf("fresh change must stay sent")
	}

	second, err := sweeper.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.TimedOut != 0 || len(second.AffectedSensors) != 0 {
		t.Fatalf("expected idempotent second run, got %+v", second)
	}
	if !strings.Contains(logs.String(), "event=sweeper_completed") {
		t.Fatalf("expected completion log, got %q", logs.String())
	}
}

func TestRunHonoursRequestedWindow(t *testing.T) {
	store := &memoryStore{rows: []*row{
		{id: "c1", sensorID: "s1", status: downlink.StatusSent, sentAt: now.Add(-2 * time.Hour)},
	}}
	sweeper, _ := newSweeper(t, store, Config{})
	hours := 0.25
	result, err := sweeper.Run(context.Background(), &hours)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TimeoutHours != 1 || result.TimedOut != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunBatchLimit(t *testing.T) {
	store := &memoryStore{}
	for i := 0; i < 250; i++ {
		store.rows = append(store.rows, &row{id: "c", sensorID: "s", status: downlink.StatusSent, sentAt: now.Add(-time.Duration(30+i) * time.Hour)})
	}
	sweeper, _ := newSweeper(t, store, Config{BatchLimit: 1000})
	result, err := sweeper.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TimedOut != MaxBatchLimit || store.limits[0] != MaxBatchLimit {
		t.Fatalf("expected batch of %d, got %d (limit %d)", MaxBatchLimit, result.TimedOut, store.limits[0])
	}
	result, _ = sweeper.Run(context.Background(), nil)
	if result.TimedOut != 50 {
		t.Fatalf("expected remaining 50, got %d", result.TimedOut)
	}
}

func TestRunStoreFailure(t *testing.T) {
	store := &memoryStore{err: errors.New("connection reset")}
	sweeper, logs := newSweeper(t, store, Config{})
	if _, err := sweeper.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(logs.String(), "event=sweeper_failed") {
		t.Fatalf("expected failure log, got %q", logs.String())
	}
}

func TestNewSweeperRequiresStore(t *testing.T) {
	if _, err := NewSweeper(nil, Config{}, nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}
