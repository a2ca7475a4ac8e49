package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GokhanYmn/NakitAkisGrafana/src/logger"
	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/GokhanYmn/NakitAkisGrafana/src/query"
	"github.com/GokhanYmn/NakitAkisGrafana/src/security/validation"
	"github.com/GokhanYmn/NakitAkisGrafana/src/services"
)

// Metrics served by the simple-JSON datasource.
const (
	MetricRealInterest  = "nakit_akis.toplam_faiz"
	MetricModelInterest = "nakit_akis.model_faiz"
	MetricDifference    = "nakit_akis.fark_tutari"
	MetricDifferencePct = "nakit_akis.fark_yuzdesi"
)

var grafanaMetrics = []string{MetricRealInterest, MetricModelInterest, MetricDifference, MetricDifferencePct}

// Dashboard variable names mapped onto the nakitakis query parameters.
var grafanaVariables = map[string]string{
	"kaynak_kurulus": "kaynakKurulus",
	"fm_fonlar":      "fonNo",
	"fon_no":         "fonNo",
	"ihrac_no":       "ihracNo",
	"bankalar":       "bankalar",
	"faiz_orani":     "faizOrani",
	"model_faiz":     "modelFaizOrani",
	"model":          "model",
}

type GrafanaHandler struct {
	service  services.NakitAkisService
	catalog  services.CatalogService
	defaults Defaults
	lookback time.Duration
	now      func() time.Time
}

func NewGrafanaHandler(service services.NakitAkisService, catalog services.CatalogService, defaults Defaults, lookback time.Duration) *GrafanaHandler {
	return &GrafanaHandler{service: service, catalog: catalog, defaults: defaults, lookback: lookback, now: time.Now}
}

type grafanaRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type grafanaTarget struct {
	Target string `json:"target"`
	RefID  string `json:"refId"`
}

type scopedVar struct {
	Text  json.RawMessage `json:"text"`
	Value json.RawMessage `json:"value"`
}

type grafanaQueryRequest struct {
	Range      grafanaRange         `json:"range"`
	Targets    []grafanaTarget      `json:"targets"`
	ScopedVars map[string]scopedVar `json:"scopedVars"`
}

type grafanaSeries struct {
	Target     string  `json:"target"`
	Datapoints [][]any `json:"datapoints"`
}

type variableOption struct {
	Text  string `json:"text"`
	Value string `json:"value"`
}

type grafanaTrendRow struct {
	Timestamp int64  `json:"timestamp"`
	Week      string `json:"hafta"`
	models.TrendPoint
}

func decodeJSONBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON body: %v", validation.ErrValidationFailed, err)
	}
	return nil
}

// rawValue reads a scoped variable value, which Grafana sends either as a
// string or, for multi-value variables, as an array of strings.
func rawValue(raw json.RawMessage) (single string, multi []string) {
	if len(raw) == 0 {
		return "", nil
	}
	if err := json.Unmarshal(raw, &single); err == nil {
		return single, nil
	}
	if err := json.Unmarshal(raw, &multi); err == nil {
		return "", multi
	}
	return "", nil
}

// dashboardValues translates the query string and scoped variables into
// nakitakis parameters. Scoped variables win over the query string.
func dashboardValues(q url.Values, vars map[string]scopedVar) url.Values {
	out := url.Values{}
	for k, vs := range q {
		if mapped, ok := grafanaVariables[k]; ok {
			k = mapped
		}
		out[k] = vs
	}
	for name, v := range vars {
		param, ok := grafanaVariables[name]
		if !ok {
			continue
		}
		single, multi := rawValue(v.Value)
		switch {
		case len(multi) > 0 && param == "fonNo":
			out.Del("fonNo")
			out.Set("fonlar", strings.Join(multi, ","))
		case len(multi) > 0:
			out.Set(param, strings.Join(multi, ","))
		case single != "":
			out.Set(param, single)
		}
	}
	if query.IsAll(out.Get("fonNo")) {
		out.Del("fonNo")
	}
	return out
}

// timeRange resolves the dashboard range, defaulting to the configured lookback.
func (h *GrafanaHandler) timeRange(rg grafanaRange) (from, to time.Time) {
	to = h.now().UTC()
	from = to.Add(-h.lookback)
	if t, err := time.Parse(time.RFC3339, rg.To); err == nil {
		to = t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, rg.From); err == nil {
		from = t.UTC()
	}
	return from, to
}

func civil(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

func selectedMetrics(targets []grafanaTarget) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range targets {
		name := strings.ToLower(strings.TrimSpace(t.Target))
		for _, m := range grafanaMetrics {
			if name == m && !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	if len(out) == 0 {
		return grafanaMetrics
	}
	return out
}

func seriesFor(metric string, points []models.TimeSeriesPoint) grafanaSeries {
	s := grafanaSeries{Target: metric, Datapoints: make([][]any, 0, len(points))}
	for _, p := range points {
		v := p.RealInterestTotal
		switch metric {
		case MetricModelInterest:
			v = p.ModelInterestTotal
		case MetricDifference:
			v = p.DifferenceAmount
		case MetricDifferencePct:
			v = p.DifferencePercentage.Round(2)
		}
		s.Datapoints = append(s.Datapoints, []any{v.InexactFloat64(), unixMillis(p.PeriodStart)})
	}
	return s
}

func (h *GrafanaHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, map[string]string{"status": "healthy", "timestamp": h.now().UTC().Format(time.RFC3339)}, http.StatusOK)
}

func (h *GrafanaHandler) HandleTestDataSource(w http.ResponseWriter, r *http.Request) {
	status := "success"
	if !h.service.TestConnectivity(r.Context()) {
		status = "error"
	}
	sendJSON(w, map[string]string{"status": status}, http.StatusOK)
}

// HandleQuery serves the daily reconciliation series for the dashboard range.
func (h *GrafanaHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req grafanaQueryRequest
	if r.Method == http.MethodPost {
		if err := decodeJSONBody(r, &req); err != nil {
			sendServiceError(w, err)
			return
		}
	}

	values := dashboardValues(r.URL.Query(), req.ScopedVars)
	params, err := parseAccrualParams(r, values, h.defaults)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	g, err := validation.ParseGranularity(valueOr(values.Get("periyot"), string(models.Day)))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	from, to := h.timeRange(req.Range)

	points, err := h.service.ComputeTimeSeries(r.Context(), params, g, civil(from), civil(to))
	if err != nil {
		sendServiceError(w, err)
		return
	}

	metrics := selectedMetrics(req.Targets)
	out := make([]grafanaSeries, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, seriesFor(m, points))
	}
	logger.InfoFromContext(r.Context(), "Grafana query served",
		"institution", params.SourceInstitution, "points", len(points), "metrics", len(metrics))
	sendJSON(w, out, http.StatusOK)
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func (h *GrafanaHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		sendServiceError(w, err)
		return
	}
	needle := strings.ToLower(strings.TrimSpace(req.Target))
	out := make([]string, 0, len(grafanaMetrics))
	for _, m := range grafanaMetrics {
		if needle == "" || strings.Contains(m, needle) {
			out = append(out, m)
		}
	}
	sendJSON(w, out, http.StatusOK)
}

// HandleVariable answers dashboard variable queries for the
// institution -> fund -> issuance cascade and the bank list.
func (h *GrafanaHandler) HandleVariable(w http.ResponseWriter, r *http.Request) {
	values := url.Values{}
	if r.Method == http.MethodPost {
		body, err := valuesFromJSON(r.Body)
		if err != nil {
			sendServiceError(w, err)
			return
		}
		values = body
	}
	for k, vs := range r.URL.Query() {
		if values.Get(k) == "" {
			values[k] = vs
		}
	}

	name := strings.ToLower(strings.TrimSpace(values.Get("variable")))
	if name == "" {
		sendJSONError(w, "Variable parameter is required", http.StatusBadRequest)
		return
	}
	institution, err := cleanValue(r, values.Get("kaynak_kurulus"), "kaynak_kurulus")
	if err != nil {
		sendServiceError(w, err)
		return
	}
	if institution == "" {
		institution = h.defaults.Institution
	}
	fund, err := cleanValue(r, values.Get("fm_fonlar"), "fm_fonlar")
	if err != nil {
		sendServiceError(w, err)
		return
	}

	ctx := r.Context()
	options := []variableOption{}
	switch name {
	case "kaynak_kurulus":
		for _, inst := range h.catalog.ListInstitutions(ctx) {
			options = append(options, variableOption{Text: inst.Institution, Value: inst.Institution})
		}
	case "fon_no", "fm_fonlar":
		for _, f := range h.catalog.ListFunds(ctx, institution) {
			options = append(options, variableOption{
				Text:  fmt.Sprintf("%s (₺%s)", f.FundNumber, services.FormatWholeAmount(f.PrincipalTotal)),
				Value: f.FundNumber,
			})
		}
		if len(options) == 0 {
			options = append(options, variableOption{Text: "Fon bulunamadı", Value: ""})
		}
	case "ihrac_no":
		for _, i := range h.catalog.ListIssuances(ctx, institution, fund) {
			options = append(options, variableOption{
				Text:  fmt.Sprintf("%s (₺%s)", i.IssuanceNumber, services.FormatWholeAmount(i.PrincipalTotal)),
				Value: i.IssuanceNumber,
			})
		}
		if len(options) == 0 {
			options = append(options, variableOption{Text: "İhraç bulunamadı", Value: ""})
		}
	case "bankalar", "banka_adi":
		for _, c := range h.catalog.ListCounterparties(ctx, institution) {
			options = append(options, variableOption{Text: c.Name, Value: c.Name})
		}
	default:
		sendJSONError(w, "Unknown variable: "+name, http.StatusBadRequest)
		return
	}
	sendJSON(w, options, http.StatusOK)
}

// HandleAnnotations has no event source; dashboards get an empty list.
func (h *GrafanaHandler) HandleAnnotations(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, []any{}, http.StatusOK)
}

// HandleTrends serves the fund-partitioned cumulative growth table.
func (h *GrafanaHandler) HandleTrends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	values := dashboardValues(q, nil)
	params, err := parseAccrualParams(r, values, h.defaults)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	g, err := validation.ParseGranularity(valueOr(q.Get("period"), q.Get("periyot")))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	from, to := h.timeRange(grafanaRange{From: q.Get("from"), To: q.Get("to")})

	points, err := h.service.ComputeTrends(r.Context(), params, g, civil(from), civil(to), true)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	rows := make([]grafanaTrendRow, 0, len(points))
	for _, p := range points {
		p.GrowthPercentage = p.GrowthPercentage.Round(2)
		p.CumulativeGrowth = p.CumulativeGrowth.Round(2)
		p.AverageRatePercent = p.AverageRatePercent.Round(2)
		rows = append(rows, grafanaTrendRow{
			Timestamp:  unixMillis(p.PeriodStart),
			Week:       p.PeriodStart.Format(validation.DateLayout),
			TrendPoint: p,
		})
	}
	sendJSON(w, rows, http.StatusOK)
}
