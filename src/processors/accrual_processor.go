// src/processors/accrual_processor.go
package processors

import (
	"math"
	"strings"
	"time"

	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/shopspring/decimal"
)

// DaysPerYear is the day-count basis of every accrual formula (ACT/365).
const DaysPerYear = 365

var (
	// MaxAmount is the ceiling of the fixed-point output domain, the largest
	// 96-bit scaled decimal. Amounts above it are clamped, never rejected.
	MaxAmount = decimal.RequireFromString("79228162514264337593543950335")

	daysPerYear = decimal.NewFromInt(DaysPerYear)
	maxFloat, _ = MaxAmount.Float64()
)

// Accrual is the per-record outcome of the calculator.
type Accrual struct {
	Record  models.CashFlowRecord
	Real    decimal.Decimal
	Model   decimal.Decimal
	Clamped bool
}

// Totals is the reduction of a set of accruals.
type Totals struct {
	Real    decimal.Decimal
	Model   decimal.Decimal
	Count   int
	Clamped bool
}

// AccrualProcessor computes real and model interest for cash-flow records.
type AccrualProcessor interface {
	RealInterest(rec models.CashFlowRecord, params models.AccrualParameters) decimal.Decimal
	ModelInterest(rec models.CashFlowRecord, params models.AccrualParameters) (decimal.Decimal, bool)
	Evaluate(records []models.CashFlowRecord, params models.AccrualParameters) []Accrual
	Rules() []models.FallbackRule
}

type accrualProcessorImpl struct {
	rules []models.FallbackRule
}

// NewAccrualProcessor creates a calculator using the given counterparty rule table.
// Rules are matched in order; the first whose pattern occurs in the
// counterparty name supplies the fallback rate.
func NewAccrualProcessor(rules []models.FallbackRule) AccrualProcessor {
	cp := make([]models.FallbackRule, 0, len(rules))
	for _, r := range rules {
		if strings.TrimSpace(r.Pattern) == "" {
			continue
		}
		cp = append(cp, r)
	}
	return &accrualProcessorImpl{rules: cp}
}

func (p *accrualProcessorImpl) Rules() []models.FallbackRule {
	out := make([]models.FallbackRule, len(p.rules))
	copy(out, p.rules)
	return out
}

// RealInterest trusts a recorded interest amount and otherwise estimates it
// with simple interest at the counterparty's fallback rate or the annual rate.
func (p *accrualProcessorImpl) RealInterest(rec models.CashFlowRecord, params models.AccrualParameters) decimal.Decimal {
	if rec.HasActualInterest() {
		return rec.ActualInterestAmount
	}
	rate := params.AnnualRate
	if rule, ok := p.match(rec.CounterpartyName); ok {
		rate = rule.Rate
	}
	return SimpleInterest(rec.PrincipalAmount, rate, TenorDays(rec.StartDate, rec.ReturnDate))
}

// ModelInterest applies the benchmark formula selected by params.Model.
// The boolean reports whether the amount was clamped to MaxAmount.
func (p *accrualProcessorImpl) ModelInterest(rec models.CashFlowRecord, params models.AccrualParameters) (decimal.Decimal, bool) {
	days := TenorDays(rec.StartDate, rec.ReturnDate)
	rate := params.EffectiveModelRate()
	if params.Model == models.ModelCompound {
		return CompoundInterest(rec.PrincipalAmount, rate, days)
	}
	return ClampAmount(SimpleInterest(rec.PrincipalAmount, rate, days))
}

// Evaluate computes both series for every eligible record, in input order.
func (p *accrualProcessorImpl) Evaluate(records []models.CashFlowRecord, params models.AccrualParameters) []Accrual {
	out := make([]Accrual, 0, len(records))
	for _, rec := range records {
		if !Eligible(rec) {
			continue
		}
		realAmt, realClamped := ClampAmount(p.RealInterest(rec, params))
		modelAmt, modelClamped := p.ModelInterest(rec, params)
		out = append(out, Accrual{
			Record:  rec,
			Real:    realAmt,
			Model:   modelAmt,
			Clamped: realClamped || modelClamped,
		})
	}
	return out
}

func (p *accrualProcessorImpl) match(counterparty string) (models.FallbackRule, bool) {
	for _, r := range p.rules {
		if strings.Contains(counterparty, r.Pattern) {
			return r, true
		}
	}
	return models.FallbackRule{}, false
}

// Sum reduces accruals into totals, clamping each running sum.
func Sum(accruals []Accrual) Totals {
	t := Totals{Real: decimal.Zero, Model: decimal.Zero}
	for _, a := range accruals {
		var c1, c2 bool
		t.Real, c1 = ClampAmount(t.Real.Add(a.Real))
		t.Model, c2 = ClampAmount(t.Model.Add(a.Model))
		t.Clamped = t.Clamped || c1 || c2 || a.Clamped
		t.Count++
	}
	return t
}

// Eligible reports whether a record may take part in any aggregate:
// it must have returned something and have a positive tenor.
func Eligible(rec models.CashFlowRecord) bool {
	return rec.TotalReturnAmount.IsPositive() && TenorDays(rec.StartDate, rec.ReturnDate) > 0
}

// TenorDays is the calendar day count between two dates, ignoring time of day.
// It works on Unix seconds so spans beyond time.Duration's range stay exact.
func TenorDays(start, end time.Time) int {
	const secondsPerDay = 24 * 60 * 60
	return int((civilDate(end).Unix() - civilDate(start).Unix()) / secondsPerDay)
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SimpleInterest is principal * rate * days / 365. Non-positive tenors yield zero.
func SimpleInterest(principal, rate decimal.Decimal, days int) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	return principal.Mul(rate).Mul(decimal.NewFromInt(int64(days))).Div(daysPerYear)
}

// CompoundAnnualRate is the effective annual rate of daily compounding:
// (1 + rate/365)^365 - 1.
func CompoundAnnualRate(rate decimal.Decimal) float64 {
	r, _ := rate.Float64()
	return math.Pow(1+r/DaysPerYear, DaysPerYear) - 1
}

// CompoundInterest is principal * (1 + bilesik)^(days/365) - principal where
// bilesik is CompoundAnnualRate(rate). The growth factor is computed in
// float64 and converted with SafeDecimal; the boolean reports clamping.
func CompoundInterest(principal, rate decimal.Decimal, days int) (decimal.Decimal, bool) {
	if days <= 0 {
		return decimal.Zero, false
	}
	r, _ := rate.Float64()
	// (1+bilesik)^(days/365) - 1 == (1+r/365)^days - 1, evaluated through
	// log1p/expm1 so small rates keep their precision.
	growth := math.Expm1(float64(days) * math.Log1p(r/DaysPerYear))
	factor, clamped := SafeDecimal(growth)
	if clamped {
		return MaxAmount, true
	}
	return ClampAmount(principal.Mul(factor))
}

// SafeDecimal converts a floating intermediate to a decimal. NaN, infinities
// and magnitudes beyond MaxAmount become +/-MaxAmount and report true.
func SafeDecimal(f float64) (decimal.Decimal, bool) {
	switch {
	case math.IsNaN(f), math.IsInf(f, 1), f > maxFloat:
		return MaxAmount, true
	case math.IsInf(f, -1), f < -maxFloat:
		return MaxAmount.Neg(), true
	}
	return decimal.NewFromFloat(f), false
}

// ClampAmount bounds d to [-MaxAmount, MaxAmount].
func ClampAmount(d decimal.Decimal) (decimal.Decimal, bool) {
	if d.GreaterThan(MaxAmount) {
		return MaxAmount, true
	}
	if d.LessThan(MaxAmount.Neg()) {
		return MaxAmount.Neg(), true
	}
	return d, false
}
