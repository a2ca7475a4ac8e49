package handlers

import (
	"net/http"
	"time"

	"github.com/GokhanYmn/NakitAkisGrafana/src/logger"
	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/GokhanYmn/NakitAkisGrafana/src/security/validation"
	"github.com/GokhanYmn/NakitAkisGrafana/src/services"
)

type NakitAkisHandler struct {
	service  services.NakitAkisService
	catalog  services.CatalogService
	defaults Defaults
	now      func() time.Time
}

func NewNakitAkisHandler(service services.NakitAkisService, catalog services.CatalogService, defaults Defaults) *NakitAkisHandler {
	return &NakitAkisHandler{service: service, catalog: catalog, defaults: defaults, now: time.Now}
}

type tableColumn struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// analysisResponse is the snapshot plus a Grafana table rendering of it.
type analysisResponse struct {
	models.AccrualResult
	Parameters models.AccrualParameters `json:"parametreler"`
	Columns    []tableColumn            `json:"columns"`
	Rows       [][]any                  `json:"rows"`
}

func snapshotTable(res models.AccrualResult, at time.Time) ([]tableColumn, [][]any) {
	columns := []tableColumn{
		{Text: "Metric", Type: "string"},
		{Text: "Value", Type: "number"},
		{Text: "Time", Type: "time"},
	}
	ts := unixMillis(at)
	rows := [][]any{
		{"Toplam Faiz Tutarı", res.RealInterestTotal, ts},
		{"Model Faiz Tutarı", res.ModelInterestTotal, ts},
		{"Fark Tutarı", res.DifferenceAmount, ts},
		{"Fark Yüzdesi", res.DifferencePercentage.Round(2), ts},
	}
	return columns, rows
}

func (h *NakitAkisHandler) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	params, err := parseAccrualParams(r, r.URL.Query(), h.defaults)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	res, err := h.service.ComputeSnapshot(r.Context(), params)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	cols, rows := snapshotTable(res, h.now())
	sendJSON(w, analysisResponse{AccrualResult: res, Parameters: params, Columns: cols, Rows: rows}, http.StatusOK)
}

func (h *NakitAkisHandler) HandleGetTimeSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params, err := parseAccrualParams(r, q, h.defaults)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	g, err := validation.ParseGranularity(q.Get("periyot"))
	if err != nil {
		sendServiceError(w, err)
		return
	}

	points, err := h.service.ComputeTimeSeries(r.Context(), params, g, nil, nil)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	logger.FromContext(r.Context()).Debug("Time series computed", "points", len(points), "granularity", g)
	sendJSON(w, points, http.StatusOK)
}

func (h *NakitAkisHandler) HandleGetTrends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params, err := parseAccrualParams(r, q, h.defaults)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	g, err := validation.ParseGranularity(q.Get("periyot"))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	byFund, err := parseBool(q.Get("fonBazli"), true)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	points, err := h.service.ComputeTrends(r.Context(), params, g, nil, nil, byFund)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, points, http.StatusOK)
}

// institutionParam reads kaynakKurulus, defaulting to the configured institution.
func (h *NakitAkisHandler) institutionParam(r *http.Request) (string, error) {
	inst, err := cleanValue(r, r.URL.Query().Get("kaynakKurulus"), "kaynakKurulus")
	if err != nil {
		return "", err
	}
	if inst == "" {
		inst = h.defaults.Institution
	}
	return inst, nil
}

func (h *NakitAkisHandler) HandleListInstitutions(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, h.catalog.ListInstitutions(r.Context()), http.StatusOK)
}

func (h *NakitAkisHandler) HandleListFunds(w http.ResponseWriter, r *http.Request) {
	inst, err := h.institutionParam(r)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, h.catalog.ListFunds(r.Context(), inst), http.StatusOK)
}

func (h *NakitAkisHandler) HandleListIssuances(w http.ResponseWriter, r *http.Request) {
	inst, err := h.institutionParam(r)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	fund, err := cleanValue(r, r.URL.Query().Get("fonNo"), "fonNo")
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, h.catalog.ListIssuances(r.Context(), inst, fund), http.StatusOK)
}

// HandleListCounterparties lists banks across all institutions unless
// kaynakKurulus is given.
func (h *NakitAkisHandler) HandleListCounterparties(w http.ResponseWriter, r *http.Request) {
	inst, err := cleanValue(r, r.URL.Query().Get("kaynakKurulus"), "kaynakKurulus")
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, h.catalog.ListCounterparties(r.Context(), inst), http.StatusOK)
}

func (h *NakitAkisHandler) HandleGetFilterOptions(w http.ResponseWriter, r *http.Request) {
	inst, err := h.institutionParam(r)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	fund, err := cleanValue(r, r.URL.Query().Get("fonNo"), "fonNo")
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, h.catalog.FilterOptions(r.Context(), inst, fund), http.StatusOK)
}

func (h *NakitAkisHandler) HandleTestConnection(w http.ResponseWriter, r *http.Request) {
	connected := h.service.TestConnectivity(r.Context())
	sendJSON(w, map[string]bool{"connected": connected}, http.StatusOK)
}

// HandleHealth is the liveness probe; it fails with 503 when the store is unreachable.
func (h *NakitAkisHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	connected := h.service.TestConnectivity(r.Context())
	if !connected {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	sendJSON(w, map[string]any{
		"status":    status,
		"database":  connected,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}, code)
}
