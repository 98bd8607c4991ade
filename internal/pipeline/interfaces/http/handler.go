package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"frostguard/internal/observability/metrics"
	pipelineapp "frostguard/internal/pipeline/application"
	pipeline "frostguard/internal/pipeline/domain"
)

const basePath = "/api/v1/pipeline-health"

// Handler serves pipeline health reports.
type Handler struct {
	service *pipelineapp.Service
	logger  *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *pipelineapp.Service, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("pipeline handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, logger: logger}, nil
}

// ServeHTTP routes GET /api/v1/pipeline-health[/export.pdf|/export.xlsx].
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	format := ""
	switch strings.TrimSuffix(r.URL.Path, "/") {
	case basePath:
	case basePath + "/export.pdf":
		format = "pdf"
	case basePath + "/export.xlsx":
		format = "xlsx"
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	sensorID := r.URL.Query().Get("sensor_id")
	if sensorID == "" {
		http.Error(w, "sensor_id required", http.StatusBadRequest)
		return
	}
	report, err := h.service.Report(r.Context(), sensorID)
	if err != nil {
		if errors.Is(err, pipelineapp.ErrSensorNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Printf("pipeline handler: report: %v", err)
		http.Error(w, "report failed", http.StatusInternalServerError)
		return
	}

	if format == "" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
		return
	}
	h.export(w, sensorID, format, report)
}

func (h *Handler) export(w http.ResponseWriter, sensorID, format string, report pipeline.Report) {
	start := time.Now()
	var (
		data        []byte
		err         error
		contentType string
	)
	switch format {
	case "pdf":
		data, err = BuildReportPDF(sensorID, report)
		contentType = "application/pdf"
	case "xlsx":
		data, err = BuildReportXLSX(sensorID, report)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		metrics.ObserveReportExport(format, metrics.ResultError, time.Since(start))
		h.logger.Printf("pipeline handler: export %s: %v", format, err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveReportExport(format, metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFileName(sensorID, format)+`"`)
	_, _ = w.Write(data)
}
