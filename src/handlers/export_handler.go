package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/GokhanYmn/NakitAkisGrafana/src/logger"
	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/GokhanYmn/NakitAkisGrafana/src/services"
)

type ExportHandler struct {
	service  services.NakitAkisService
	export   services.ExportService
	defaults Defaults
	now      func() time.Time
}

func NewExportHandler(service services.NakitAkisService, export services.ExportService, defaults Defaults) *ExportHandler {
	return &ExportHandler{service: service, export: export, defaults: defaults, now: time.Now}
}

// report computes the snapshot for the JSON parameters in the request body.
func (h *ExportHandler) report(r *http.Request) (models.Report, error) {
	values, err := valuesFromJSON(r.Body)
	if err != nil {
		return models.Report{}, err
	}
	params, err := parseAccrualParams(r, values, h.defaults)
	if err != nil {
		return models.Report{}, err
	}
	res, err := h.service.ComputeSnapshot(r.Context(), params)
	if err != nil {
		return models.Report{}, err
	}
	return models.Report{Parameters: params, Result: res, GeneratedAt: h.now()}, nil
}

func (h *ExportHandler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	report, err := h.report(r)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := h.export.WriteCSV(&buf, report); err != nil {
		logger.ErrorFromContext(r.Context(), "CSV export failed", "error", err)
		sendJSONError(w, "CSV export failed", http.StatusInternalServerError)
		return
	}

	fileName := fmt.Sprintf("nakit-akis-analizi-%s.csv", report.GeneratedAt.Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.WarnFromContext(r.Context(), "Failed to write CSV export", "error", err)
	}
}

func (h *ExportHandler) HandleExportHTML(w http.ResponseWriter, r *http.Request) {
	report, err := h.report(r)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := h.export.WriteHTML(&buf, report); err != nil {
		logger.ErrorFromContext(r.Context(), "HTML export failed", "error", err)
		sendJSONError(w, "HTML export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.WarnFromContext(r.Context(), "Failed to write HTML export", "error", err)
	}
}
