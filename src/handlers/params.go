package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/GokhanYmn/NakitAkisGrafana/src/config"
	"github.com/GokhanYmn/NakitAkisGrafana/src/logger"
	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/GokhanYmn/NakitAkisGrafana/src/security/validation"
	"github.com/shopspring/decimal"
)

// maxBodyBytes bounds JSON request bodies (export parameters, Grafana queries).
const maxBodyBytes = 1 << 20

// Defaults are the reconciliation inputs used when a request omits them.
type Defaults struct {
	Rate        decimal.Decimal
	ModelRate   decimal.Decimal
	Institution string
}

// DefaultsFromConfig picks the request defaults out of the application config.
func DefaultsFromConfig(cfg *config.AppConfig) Defaults {
	return Defaults{
		Rate:        cfg.DefaultRate,
		ModelRate:   cfg.DefaultModelRate,
		Institution: cfg.DefaultInstitution,
	}
}

func sendJSON(w http.ResponseWriter, payload any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("Failed to encode JSON response", "error", err)
	}
}

func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	sendJSON(w, map[string]string{"error": message}, statusCode)
}

// sendServiceError maps validation failures to 400; anything else is a 500.
func sendServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, validation.ErrValidationFailed) {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	sendJSONError(w, "internal error", http.StatusInternalServerError)
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// cleanValue runs the XSS check and the filter sanitizer over one value.
func cleanValue(r *http.Request, s, field string) (string, error) {
	if err := validation.CheckXSSPatterns(s, field, GetRequestID(r.Context())); err != nil {
		return "", err
	}
	return validation.SanitizeFilterValue(s, field)
}

func cleanList(r *http.Request, s, field string) ([]string, error) {
	if err := validation.CheckXSSPatterns(s, field, GetRequestID(r.Context())); err != nil {
		return nil, err
	}
	items, err := validation.SanitizeFilterList(splitList(s), field)
	if err != nil {
		return nil, err
	}
	if len(items) > validation.MaxFilterValues {
		return nil, fmt.Errorf("%w: %s accepts at most %d values", validation.ErrValidationFailed, field, validation.MaxFilterValues)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

func rateOrDefault(s string, fallback decimal.Decimal, field string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	return validation.ParseRate(s, field)
}

// parseAccrualParams builds and validates the reconciliation parameters
// from query-style values. Absent values take the configured defaults.
func parseAccrualParams(r *http.Request, v url.Values, def Defaults) (models.AccrualParameters, error) {
	var (
		p   models.AccrualParameters
		err error
	)
	if p.AnnualRate, err = rateOrDefault(v.Get("faizOrani"), def.Rate, "faizOrani"); err != nil {
		return p, err
	}
	if p.ModelAnnualRate, err = rateOrDefault(v.Get("modelFaizOrani"), def.ModelRate, "modelFaizOrani"); err != nil {
		return p, err
	}
	if p.Model, err = validation.ParseModel(v.Get("model")); err != nil {
		return p, err
	}
	if p.SourceInstitution, err = cleanValue(r, v.Get("kaynakKurulus"), "kaynakKurulus"); err != nil {
		return p, err
	}
	if p.SourceInstitution == "" {
		p.SourceInstitution = def.Institution
	}
	if p.SelectedFunds, err = cleanList(r, v.Get("fonlar"), "fonlar"); err != nil {
		return p, err
	}
	if p.FundNumber, err = cleanValue(r, v.Get("fonNo"), "fonNo"); err != nil {
		return p, err
	}
	if p.IssuanceNumber, err = cleanValue(r, v.Get("ihracNo"), "ihracNo"); err != nil {
		return p, err
	}
	if p.Counterparties, err = cleanList(r, v.Get("bankalar"), "bankalar"); err != nil {
		return p, err
	}
	if p.StartFrom, err = validation.ParseDate(v.Get("baslangicTarihi"), "baslangicTarihi"); err != nil {
		return p, err
	}
	if p.StartTo, err = validation.ParseDate(v.Get("bitisTarihi"), "bitisTarihi"); err != nil {
		return p, err
	}
	return p, validation.ValidateParameters(p)
}

func parseBool(s string, fallback bool) (bool, error) {
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("%w: '%s' is not a boolean", validation.ErrValidationFailed, s)
	}
	return b, nil
}

// valuesFromJSON flattens a JSON parameter object into query-style values
// so bodies and query strings share one parser. Arrays are joined with
// commas. A top-level "parametreler" object is unwrapped.
func valuesFromJSON(body io.Reader) (url.Values, error) {
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return url.Values{}, nil
		}
		return nil, fmt.Errorf("%w: invalid JSON body: %v", validation.ErrValidationFailed, err)
	}
	if inner, ok := raw["parametreler"].(map[string]any); ok {
		raw = inner
	}

	out := url.Values{}
	for k, val := range raw {
		s, err := scalarString(val)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", validation.ErrValidationFailed, k, err)
		}
		if s != "" {
			out.Set(k, s)
		}
	}
	return out, nil
}

func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			s, err := scalarString(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	}
	return "", fmt.Errorf("unsupported value type %T", v)
}

func unixMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}
