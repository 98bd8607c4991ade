package ttn

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"frostguard/internal/audit"
	downlink "frostguard/internal/downlink/domain"
	ingestapp "frostguard/internal/ingest/application"
	"frostguard/internal/observability/metrics"
)

const (
	maxBodyBytes = 1 << 20
	webhookActor = "ttn-webhook"
)

// WebhookHandler handles The Things Stack application webhooks.
type WebhookHandler struct {
	service     *ingestapp.Service
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewWebhookHandler constructs a webhook handler. Device outcomes for
// configuration changes are written to auditLogger when it is set.
func NewWebhookHandler(service *ingestapp.Service, auditLogger audit.Logger, logger *log.Logger) (*WebhookHandler, error) {
	if service == nil {
		return nil, errors.New("ttn webhook: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &WebhookHandler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP ingests uplink, downlink ack and downlink failed messages.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.IngestResultSuccess
	defer func() {
		metrics.ObserveIngest(result, time.Since(start))
	}()
	fail := func(reason string, status int, msg string) {
		result = metrics.IngestResultError
		metrics.IncIngestError(reason)
		http.Error(w, msg, status)
	}

	if r.Method != http.MethodPost {
		result = metrics.IngestResultError
		metrics.IncIngestError("method_not_allowed")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Printf("ttn webhook: read body error: %v", err)
		fail("read_body", http.StatusBadRequest, "read body error")
		return
	}
	defer r.Body.Close()

	var msg webhookMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Printf("ttn webhook: decode error: %v", err)
		fail("invalid_json", http.StatusBadRequest, "invalid json")
		return
	}

	var resp any
	switch {
	case msg.UplinkMessage != nil:
		resp, err = h.service.HandleUplink(r.Context(), msg.toUplink())
	case msg.DownlinkAck != nil:
		change, ackErr := h.service.HandleDownlinkAck(r.Context(), msg.EndDeviceIDs.DevEUI)
		h.logOutcome(r, audit.ActionDownlinkConfirmed, change)
		resp, err = map[string]any{"confirmed": change != nil}, ackErr
	case msg.DownlinkFailed != nil:
		change, failErr := h.service.HandleDownlinkFailed(r.Context(), msg.EndDeviceIDs.DevEUI, msg.DownlinkFailed.reason())
		h.logOutcome(r, audit.ActionDownlinkFailed, change)
		resp, err = map[string]any{"failed": change != nil}, failErr
	default:
		resp = map[string]any{"ignored": true}
	}
	if err != nil {
		switch {
		case errors.Is(err, ingestapp.ErrUnknownDevice):
			fail("unknown_device", http.StatusNotFound, "unknown device")
		case errors.Is(err, ingestapp.ErrInvalidUplink):
			fail("invalid_payload", http.StatusBadRequest, err.Error())
		default:
			h.logger.Printf("ttn webhook: handle error: %v", err)
			fail("store_error", http.StatusInternalServerError, "store error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *WebhookHandler) logOutcome(r *http.Request, action string, change *downlink.PendingChange) {
	if h.auditLogger == nil || change == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"command_key": change.CommandKey,
		"status":      change.Status,
		"error":       change.Error,
	})
	if err := h.auditLogger.Log(r.Context(), audit.FromRequest(r, audit.Entry{
		Actor:        webhookActor,
		Action:       action,
		ResourceType: "pending_change",
		ResourceID:   change.ID,
		SensorID:     change.SensorID,
		Metadata:     meta,
	})); err != nil {
		h.logger.Printf("ttn webhook: audit: %v", err)
	}
}
