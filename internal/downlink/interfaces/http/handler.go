package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"frostguard/internal/audit"
	"frostguard/internal/auth"
	downlinkapp "frostguard/internal/downlink/application"
	downlink "frostguard/internal/downlink/domain"
)

// Handler provides downlink HTTP endpoints.
type Handler struct {
	service     *downlinkapp.Service
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *downlinkapp.Service, auditLogger audit.Logger, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("downlink handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP handles POST/GET /api/v1/downlinks.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type commandView struct {
	Key          string      `json:"key"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	FPort        int         `json:"f_port"`
	HexTemplate  string      `json:"hex_template"`
	EncodedBytes int         `json:"encoded_bytes"`
	Fields       []fieldView `json:"fields"`
}

type fieldView struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	Encoding  string `json:"encoding"`
	Default   any    `json:"default,omitempty"`
	Unit      string `json:"unit,omitempty"`
	Transform string `json:"input_transform,omitempty"`
}

// Commands handles GET /api/v1/downlinks/commands.
func (h *Handler) Commands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	commands := h.service.Commands()
	views := make([]commandView, 0, len(commands))
	for _, cmd := range commands {
		length, _ := cmd.EncodedLength()
		view := commandView{
			Key:          cmd.Key,
			Name:         cmd.Name,
			Description:  cmd.Description,
			FPort:        cmd.FPort,
			HexTemplate:  cmd.HexTemplate,
			EncodedBytes: length / 2,
			Fields:       make([]fieldView, 0, len(cmd.Fields)),
		}
		for _, field := range cmd.Fields {
			if field.Hidden {
				continue
			}
			view.Fields = append(view.Fields, fieldView{
				Name:      field.Name,
				Label:     field.DisplayName(),
				Encoding:  field.Encoding.Kind(),
				Default:   field.Default,
				Unit:      field.Unit,
				Transform: string(field.InputTransform),
			})
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req downlinkapp.ChangeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	req.RequestedBy = auth.SubjectFromContext(r.Context())

	change, err := h.service.RequestChange(r.Context(), req)
	if change != nil {
		h.logAudit(r, change)
	}
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Printf("downlink handler: request change: %v", err)
		}
		if change != nil {
			writeJSON(w, status, map[string]any{"error": err.Error(), "change": change})
			return
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusAccepted, change)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sensorID := r.URL.Query().Get("sensor_id")
	if sensorID == "" {
		http.Error(w, "sensor_id required", http.StatusBadRequest)
		return
	}
	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	list, err := h.service.ListChanges(r.Context(), sensorID, limit)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}
	if list == nil {
		list = []downlink.PendingChange{}
	}
	writeJSON(w, http.StatusOK, list)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, downlinkapp.ErrInvalidRequest),
		errors.Is(err, downlink.ErrMissingFieldValue),
		errors.Is(err, downlink.ErrInvalidFieldValue),
		errors.Is(err, downlink.ErrValueOutOfRange),
		errors.Is(err, downlink.ErrUnknownCommand):
		return http.StatusBadRequest
	case errors.Is(err, downlinkapp.ErrSensorNotFound):
		return http.StatusNotFound
	case errors.Is(err, downlinkapp.ErrDispatchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) logAudit(r *http.Request, change *downlink.PendingChange) {
	if h.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"command_key":     change.CommandKey,
		"payload_hex":     change.PayloadHex,
		"f_port":          change.FPort,
		"expected_result": change.ExpectedResult,
		"status":          change.Status,
	})
	if err := h.auditLogger.Log(r.Context(), audit.FromRequest(r, audit.Entry{
		Action:       audit.ActionDownlinkRequested,
		ResourceType: "pending_change",
		ResourceID:   change.ID,
		SensorID:     change.SensorID,
		Metadata:     meta,
	})); err != nil {
		h.logger.Printf("downlink handler: audit: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
