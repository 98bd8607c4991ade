package ttn

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"frostguard/internal/audit"
	classification "frostguard/internal/classification/domain"
	downlink "frostguard/internal/downlink/domain"
	ingestapp "frostguard/internal/ingest/application"
)

type memoryRepo struct {
	readings []ingestapp.Reading
}

func (m *memoryRepo) SensorByDevEUI(_ context.Context, devEUI string) (*ingestapp.Sensor, error) {
	if devEUI != "A84041000181C1E5" {
		return nil, nil
	}
	return &ingestapp.Sensor{ID: "door-1", SensorType: "door"}, nil
}

func (m *memoryRepo) SaveReading(_ context.Context, reading ingestapp.Reading) error {
	m.readings = append(m.readings, reading)
	return nil
}

func (m *memoryRepo) RecordStageError(context.Context, string, string, string, time.Time) error {
	return nil
}

type memoryAudit struct {
	entries []audit.Entry
}

func (m *memoryAudit) Log(_ context.Context, entry audit.Entry) error {
	m.entries = append(m.entries, entry)
	return nil
}

type stubOutcomes struct {
	reasons []string
}

func (s *stubOutcomes) Confirm(_ context.Context, sensorID string) (*downlink.PendingChange, error) {
	return &downlink.PendingChange{SensorID: sensorID, Status: downlink.StatusConfirmed}, nil
}

func (s *stubOutcomes) Fail(_ context.Context, sensorID, reason string) (*downlink.PendingChange, error) {
	s.reasons = append(s.reasons, reason)
	return &downlink.PendingChange{SensorID: sensorID, Status: downlink.StatusFailed}, nil
}

func newHandler(t *testing.T) (*WebhookHandler, *memoryRepo, *stubOutcomes) {
	handler, repo, outcomes, _ := newAuditedHandler(t)
	return handler, repo, outcomes
}

func newAuditedHandler(t *testing.T) (*WebhookHandler, *memoryRepo, *stubOutcomes, *memoryAudit) {
	t.Helper()
	registry, err := classification.DefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	repo := &memoryRepo{}
	outcomes := &stubOutcomes{}
	svc, err := ingestapp.NewService(repo, registry, outcomes, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	auditLog := &memoryAudit{}
	handler, err := NewWebhookHandler(svc, auditLog, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return handler, repo, outcomes, auditLog
}

func post(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/ingest/ttn/uplink", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

const doorUplink = `{
  "end_device_ids": {"device_id": "eui-a84041000181c1e5", "dev_eui": "A84041000181C1E5"},
  "received_at": "2026-03-01T12:00:01Z",
  "uplink_message": {
    "f_port": 10,
    "f_cnt": 42,
    "decoded_payload": {"DOOR_OPEN_STATUS": "OPEN", "DOOR_OPEN_TIMES": 16, "LAST_DOOR_OPEN_DURATION": 3, "BAT_V": 3.19},
    "rx_metadata": [
      {"gateway_ids": {"gateway_id": "gw-hall"}, "rssi": -110},
      {"gateway_ids": {"gateway_id": "gw-kitchen"}, "rssi": -72}
    ],
    "received_at": "2026-03-01T12:00:00Z"
  }
}`

func TestWebhookUplink(t *testing.T) {
	handler, repo, _ := newHandler(t)
	rec := post(handler, doorUplink)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		SensorID       string `json:"sensor_id"`
		Classification struct {
			PayloadType string `json:"payload_type"`
		} `json:"classification"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SensorID != "door-1" {
		t.Fatalf("unexpected response %s", rec.Body.String())
	}
	if len(repo.readings) != 1 {
		t.Fatalf("expected one reading, got %d", len(repo.readings))
	}
	reading := repo.readings[0]
	if reading.GatewayID != "gw-kitchen" {
		t.Fatalf("expected strongest gateway, got %s", reading.GatewayID)
	}
	if reading.FPort != 10 || reading.FCnt != 42 {
		t.Fatalf("unexpected frame fields %+v", reading)
	}
	if !reading.NetworkAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) ||
		!reading.ReceivedAt.Equal(time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC)) {
		t.Fatalf("unexpected timestamps %v %v", reading.NetworkAt, reading.ReceivedAt)
	}
	if reading.PayloadType != "lds02_door_v1" {
		t.Fatalf("unexpected payload type %s", reading.PayloadType)
	}
}

func TestWebhookDownlinkOutcomes(t *testing.T) {
	handler, _, outcomes, auditLog := newAuditedHandler(t)
	rec := post(handler, `{"end_device_ids":{"dev_eui":"A84041000181C1E5"},"downlink_ack":{"f_port":2}}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"confirmed":true`) {
		t.Fatalf("ack: %d %s", rec.Code, rec.Body.String())
	}
	rec = post(handler, `{"end_device_ids":{"dev_eui":"A84041000181C1E5"},"downlink_failed":{"error":{"name":"tx_failed","message_format":"transmission failed"}}}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"failed":true`) {
		t.Fatalf("failed: %d %s", rec.Code, rec.Body.String())
	}
	if len(outcomes.reasons) != 1 || outcomes.reasons[0] != "transmission failed" {
		t.Fatalf("unexpected reasons %v", outcomes.reasons)
	}
	if len(auditLog.entries) != 2 {
		t.Fatalf("expected two audit entries, got %d", len(auditLog.entries))
	}
	if auditLog.entries[0].Action != audit.ActionDownlinkConfirmed || auditLog.entries[1].Action != audit.ActionDownlinkFailed {
		t.Fatalf("unexpected audit actions %+v", auditLog.entries)
	}
	if auditLog.entries[0].Actor != webhookActor || auditLog.entries[0].SensorID != "door-1" {
		t.Fatalf("unexpected audit entry %+v", auditLog.entries[0])
	}
}

func TestWebhookErrors(t *testing.T) {
	handler, _, _ := newHandler(t)
	cases := []struct {
		name string
		body string
		want int
	}{
		{name: "invalid json", body: `{`, want: http.StatusBadRequest},
		{name: "missing dev eui", body: `{"uplink_message":{"f_port":1}}`, want: http.StatusBadRequest},
		{name: "unknown device", body: `{"end_device_ids":{"dev_eui":"0000000000000000"},"uplink_message":{"f_port":1}}`, want: http.StatusNotFound},
		{name: "other message", body: `{"end_device_ids":{"dev_eui":"A84041000181C1E5"},"join_accept":{}}`, want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := post(handler, tc.body); rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/ingest/ttn/uplink", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
