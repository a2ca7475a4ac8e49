package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ModelStrategy selects which theoretical formula produces model interest.
type ModelStrategy string

const (
	ModelSimple   ModelStrategy = "simple"
	ModelCompound ModelStrategy = "compound"
)

// AccrualParameters is the immutable input of every reconciliation call.
// Rates are fractions: 0.45 means 45% per year.
type AccrualParameters struct {
	AnnualRate        decimal.Decimal `json:"faizOrani"`
	ModelAnnualRate   decimal.Decimal `json:"modelFaizOrani"`
	Model             ModelStrategy   `json:"model"`
	SourceInstitution string          `json:"kaynakKurulus"`
	SelectedFunds     []string        `json:"secilenFonlar,omitempty"`
	FundNumber        string          `json:"secilenFonNo,omitempty"`
	IssuanceNumber    string          `json:"secilenIhracNo,omitempty"`
	Counterparties    []string        `json:"secilenBankalar,omitempty"`
	StartFrom         *time.Time      `json:"baslangicTarihi,omitempty"`
	StartTo           *time.Time      `json:"bitisTarihi,omitempty"`
}

// EffectiveModelRate returns the model rate, falling back to the annual rate
// when no separate model rate was supplied.
func (p AccrualParameters) EffectiveModelRate() decimal.Decimal {
	if p.ModelAnnualRate.IsZero() {
		return p.AnnualRate
	}
	return p.ModelAnnualRate
}

// AccrualResult compares the real interest paid with the modelled benchmark.
type AccrualResult struct {
	RealInterestTotal    decimal.Decimal `json:"toplamFaizTutari"`
	ModelInterestTotal   decimal.Decimal `json:"toplamModelFaizTutari"`
	DifferenceAmount     decimal.Decimal `json:"farkTutari"`
	DifferencePercentage decimal.Decimal `json:"farkYuzdesi"`
	RecordCount          int             `json:"kayitSayisi"`
	Clamped              bool            `json:"clamped"`
	Degraded             bool            `json:"degraded"`
	DegradedReason       string          `json:"degradedReason,omitempty"`
}

// NewAccrualResult builds a result and derives its comparison metrics.
func NewAccrualResult(realTotal, modelTotal decimal.Decimal, count int) AccrualResult {
	diff := realTotal.Sub(modelTotal)
	return AccrualResult{
		RealInterestTotal:    realTotal,
		ModelInterestTotal:   modelTotal,
		DifferenceAmount:     diff,
		DifferencePercentage: PercentOf(diff, modelTotal),
		RecordCount:          count,
	}
}

// DegradedResult is returned when the record store cannot be read.
func DegradedResult(reason string) AccrualResult {
	r := NewAccrualResult(decimal.Zero, decimal.Zero, 0)
	r.Degraded = true
	r.DegradedReason = reason
	return r
}

var hundred = decimal.NewFromInt(100)

// PercentOf returns part/whole*100, or zero when whole is zero.
func PercentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// Report pairs a snapshot with the parameters that produced it, for export.
type Report struct {
	Parameters  AccrualParameters `json:"parametreler"`
	Result      AccrualResult     `json:"sonuc"`
	GeneratedAt time.Time         `json:"raporTarihi"`
}
