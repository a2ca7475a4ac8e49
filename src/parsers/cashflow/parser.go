// src/parsers/cashflow/parser.go
package cashflow

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/GokhanYmn/NakitAkisGrafana/src/logger"
	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/shopspring/decimal"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("cashflow parser: missing required column")

var requiredColumns = []string{"kaynak_kurulus", "banka_adi", "baslangic_tarihi", "donus_tarihi", "mevduat_tutari"}

var dateLayouts = []string{"2006-01-02", "02.01.2006", "02/01/2006", "2006-01-02 15:04:05", time.RFC3339}

// Result is the outcome of a parse: the usable records and the number of
// data rows that were skipped.
type Result struct {
	Records []models.CashFlowRecord
	Skipped int
}

// Parser reads nakit_akis exports. Columns are located by header name, so
// column order and extra columns do not matter.
type Parser struct{}

// NewParser creates a new instance of the cash-flow CSV parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads a comma or semicolon separated export with a header row.
func (p *Parser) Parse(file io.Reader) (Result, error) {
	br := bufio.NewReader(file)
	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return Result{}, fmt.Errorf("cashflow parser: failed to read input: %w", err)
	}

	reader := csv.NewReader(br)
	reader.Comma = detectDelimiter(first)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return Result{}, fmt.Errorf("cashflow parser: failed to read CSV header: %w", err)
	}
	index := headerIndex(header)
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var res Result
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return res, fmt.Errorf("cashflow parser: line %d: %w", line, err)
		}
		if blank(row) {
			continue
		}
		rec, err := toRecord(row, index)
		if err != nil {
			logger.L.Warn("Cash-flow parser: skipping row", "line", line, "error", err)
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func detectDelimiter(sample []byte) rune {
	firstLine := string(sample)
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		return ';'
	}
	return ','
}

func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		index[name] = i
	}
	return index
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func field(row []string, index map[string]int, name string) string {
	i, ok := index[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func toRecord(row []string, index map[string]int) (models.CashFlowRecord, error) {
	rec := models.CashFlowRecord{
		SourceInstitution: field(row, index, "kaynak_kurulus"),
		FundNumber:        field(row, index, "fon_no"),
		IssuanceNumber:    field(row, index, "ihrac_no"),
		ISIN:              field(row, index, "vdmk_isin_kodu"),
		CounterpartyName:  field(row, index, "banka_adi"),
	}
	if rec.SourceInstitution == "" {
		return rec, fmt.Errorf("kaynak_kurulus is empty")
	}

	var err error
	if rec.StartDate, err = parseDate(field(row, index, "baslangic_tarihi")); err != nil {
		return rec, fmt.Errorf("baslangic_tarihi: %w", err)
	}
	if rec.ReturnDate, err = parseDate(field(row, index, "donus_tarihi")); err != nil {
		return rec, fmt.Errorf("donus_tarihi: %w", err)
	}
	if rec.PrincipalAmount, err = parseAmount(field(row, index, "mevduat_tutari")); err != nil {
		return rec, fmt.Errorf("mevduat_tutari: %w", err)
	}
	if rec.ActualInterestAmount, err = parseAmount(field(row, index, "faiz_tutari")); err != nil {
		return rec, fmt.Errorf("faiz_tutari: %w", err)
	}
	if rec.TotalReturnAmount, err = parseAmount(field(row, index, "toplam_donus")); err != nil {
		return rec, fmt.Errorf("toplam_donus: %w", err)
	}
	rate, err := parseAmount(strings.TrimSuffix(field(row, index, "faiz_orani"), "%"))
	if err != nil {
		return rec, fmt.Errorf("faiz_orani: %w", err)
	}
	// Exports carry the realised rate either as 0.45 or as 45.
	if rate.GreaterThan(decimal.NewFromInt(1)) {
		rate = rate.Div(decimal.NewFromInt(100))
	}
	rec.ActualInterestRate = rate
	return rec, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("date is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// normalizeDecimalString turns "1.234.567,89", "1,234,567.89" and
// "1234567,89" into "1234567.89". The right-most separator is the decimal
// point when both appear.
func normalizeDecimalString(s string) string {
	cleaned := strings.Trim(strings.TrimSpace(s), "\"")
	cleaned = strings.NewReplacer("₺", "", "TL", "", " ", "", "\u00a0", "").Replace(cleaned)

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") > 1 {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		}
	case strings.Count(cleaned, ".") > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}
	return cleaned
}

// parseAmount reads an optional amount; empty input is zero.
func parseAmount(s string) (decimal.Decimal, error) {
	normalized := normalizeDecimalString(s)
	if normalized == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(normalized)
}
