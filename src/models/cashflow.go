// src/models/cashflow.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashFlowRecord is a single deposit placement read from the nakit_akis table.
// Optional numeric columns are zero when the store has NULL.
type CashFlowRecord struct {
	ID                   int64           `json:"id"`
	SourceInstitution    string          `json:"kaynakKurulus"`
	FundNumber           string          `json:"fonNo,omitempty"`
	IssuanceNumber       string          `json:"ihracNo,omitempty"`
	ISIN                 string          `json:"vdmkIsinKodu,omitempty"`
	CounterpartyName     string          `json:"bankaAdi"`
	StartDate            time.Time       `json:"baslangicTarihi"`
	ReturnDate           time.Time       `json:"donusTarihi"`
	PrincipalAmount      decimal.Decimal `json:"mevduatTutari"`
	ActualInterestRate   decimal.Decimal `json:"faizOrani"`
	ActualInterestAmount decimal.Decimal `json:"faizTutari"`
	TotalReturnAmount    decimal.Decimal `json:"toplamDonus"`
}

// HasActualInterest reports whether the store carries a realised interest
// amount. Negative amounts are corrections and count as recorded.
func (r CashFlowRecord) HasActualInterest() bool {
	return !r.ActualInterestAmount.IsZero()
}

// FallbackRule maps a counterparty name marker to the rate used when a
// record of that counterparty has no realised interest.
type FallbackRule struct {
	Pattern string          `json:"pattern"`
	Rate    decimal.Decimal `json:"rate"`
}
