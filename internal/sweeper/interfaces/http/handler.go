package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"frostguard/internal/audit"
	sweeperapp "frostguard/internal/sweeper/application"
)

// Handler exposes the change timeout sweeper.
type Handler struct {
	sweeper     *sweeperapp.Sweeper
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(sweeper *sweeperapp.Sweeper, auditLogger audit.Logger, logger *log.Logger) (*Handler, error) {
	if sweeper == nil {
		return nil, errors.New("sweeper handler: nil sweeper")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{sweeper: sweeper, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP handles GET/POST /api/v1/sweeper/change-timeouts.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":                    true,
			"name":                  sweeperapp.Name,
			"default_timeout_hours": h.sweeper.TimeoutHours(),
			"min_timeout_hours":     sweeperapp.MinTimeoutHours,
			"max_timeout_hours":     sweeperapp.MaxTimeoutHours,
			"batch_limit":           h.sweeper.BatchLimit(),
		})
	case http.MethodPost:
		h.handleRun(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "read body error"})
		return
	}
	defer r.Body.Close()

	var req struct {
		TimeoutHours *float64 `json:"timeout_hours"`
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid json"})
			return
		}
	}

	result, err := h.sweeper.Run(r.Context(), req.TimeoutHours)
	if err != nil {
		h.logger.Printf("sweeper handler: run: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	h.logAudit(r, result)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"timed_out":        result.TimedOut,
		"affected_sensors": result.AffectedSensors,
		"cutoff":           result.Cutoff.Format(time.RFC3339),
		"timeout_hours":    result.TimeoutHours,
	})
}

func (h *Handler) logAudit(r *http.Request, result sweeperapp.Result) {
	if h.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(result)
	if err := h.auditLogger.Log(r.Context(), audit.FromRequest(r, audit.Entry{
		Action:       audit.ActionSweeperRun,
		ResourceType: "sweeper",
		ResourceID:   sweeperapp.Name,
		Metadata:     meta,
	})); err != nil {
		h.logger.Printf("sweeper handler: audit: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
