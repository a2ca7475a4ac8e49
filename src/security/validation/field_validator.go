// src/security/validation/field_validator.go
package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/GokhanYmn/NakitAkisGrafana/src/logger"
	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/shopspring/decimal"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	DefaultMaxStringLength = 255
	MaxFilterValues        = 50
	DateLayout             = "2006-01-02"
)

var (
	// MaxRate is the upper bound of an annual rate, as a fraction (50%).
	MaxRate = decimal.RequireFromString("0.50")

	hundred = decimal.NewFromInt(100)
)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ParseRate converts a boundary rate to the canonical fraction and checks
// its range. "0.45" and "45%" both mean 45% per year; a bare number above 1
// is ambiguous and rejected.
func ParseRate(s, fieldName string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, fieldName); err != nil {
		return decimal.Zero, err
	}

	percent := strings.HasSuffix(trimmed, "%")
	number := strings.TrimSpace(strings.TrimSuffix(trimmed, "%"))
	// Turkish locale decimal comma.
	if !strings.Contains(number, ".") {
		number = strings.Replace(number, ",", ".", 1)
	}

	rate, err := decimal.NewFromString(number)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s ('%s') is not a valid number", ErrValidationFailed, fieldName, s)
	}
	if percent {
		rate = rate.Div(hundred)
	} else if rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%w: %s ('%s') must be a fraction such as 0.45 or a percent such as 45%%", ErrValidationFailed, fieldName, s)
	}
	if err := ValidateRate(rate, fieldName); err != nil {
		return decimal.Zero, err
	}
	return rate, nil
}

// ValidateRate checks a fractional rate lies in (0, 0.50].
func ValidateRate(rate decimal.Decimal, fieldName string) error {
	if !rate.IsPositive() || rate.GreaterThan(MaxRate) {
		logger.L.Warn("Rate out of range", "field", fieldName, "value", rate.String())
		return fmt.Errorf("%w: %s must be greater than 0 and at most 0.50 (50%%), got %s", ErrValidationFailed, fieldName, rate.String())
	}
	return nil
}

// ParseDate parses an optional YYYY-MM-DD date. Empty input yields nil.
func ParseDate(s, fieldName string) (*time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, nil
	}
	// Dashboards sometimes send full timestamps.
	if len(trimmed) > len(DateLayout) {
		if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
			d := time.Date(ts.UTC().Year(), ts.UTC().Month(), ts.UTC().Day(), 0, 0, 0, 0, time.UTC)
			return &d, nil
		}
	}
	t, err := time.Parse(DateLayout, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s ('%s') is not a valid date (expected YYYY-MM-DD)", ErrValidationFailed, fieldName, s)
	}
	return &t, nil
}

// ValidateDateRange rejects a range whose start is after its end. Either bound may be absent.
func ValidateDateRange(from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return fmt.Errorf("%w: start date %s is after end date %s", ErrValidationFailed, from.Format(DateLayout), to.Format(DateLayout))
	}
	return nil
}

// ParseModel maps a model name to a strategy; empty means simple.
func ParseModel(s string) (models.ModelStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "simple", "basit":
		return models.ModelSimple, nil
	case "compound", "bilesik", "bileşik":
		return models.ModelCompound, nil
	}
	return "", fmt.Errorf("%w: model ('%s') must be simple or compound", ErrValidationFailed, s)
}

// ParseGranularity wraps models.ParseGranularity as a validation error.
func ParseGranularity(s string) (models.Granularity, error) {
	g, err := models.ParseGranularity(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return g, nil
}

// ValidateParameters checks a fully assembled parameter set.
func ValidateParameters(p models.AccrualParameters) error {
	if err := ValidateRate(p.AnnualRate, "faizOrani"); err != nil {
		return err
	}
	if !p.ModelAnnualRate.IsZero() {
		if err := ValidateRate(p.ModelAnnualRate, "modelFaizOrani"); err != nil {
			return err
		}
	}
	if p.Model != models.ModelSimple && p.Model != models.ModelCompound {
		return fmt.Errorf("%w: unknown model %q", ErrValidationFailed, p.Model)
	}
	if len(p.SelectedFunds) > MaxFilterValues || len(p.Counterparties) > MaxFilterValues {
		return fmt.Errorf("%w: at most %d values per list filter", ErrValidationFailed, MaxFilterValues)
	}
	return ValidateDateRange(p.StartFrom, p.StartTo)
}
