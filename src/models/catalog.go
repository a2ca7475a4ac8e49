package models

import "github.com/shopspring/decimal"

// InstitutionInfo is a distinct source institution with its record count.
type InstitutionInfo struct {
	Institution string `json:"kaynakKurulus"`
	RecordCount int64  `json:"kayitSayisi"`
}

// FundInfo is a distinct fund of an institution.
type FundInfo struct {
	FundNumber     string          `json:"fonNo"`
	RecordCount    int64           `json:"kayitSayisi"`
	PrincipalTotal decimal.Decimal `json:"toplamTutar"`
}

// IssuanceInfo is a distinct issuance of an institution and fund.
type IssuanceInfo struct {
	IssuanceNumber string          `json:"ihracNo"`
	RecordCount    int64           `json:"kayitSayisi"`
	PrincipalTotal decimal.Decimal `json:"toplamTutar"`
}

// CounterpartyInfo is a distinct counterparty (bank) name.
type CounterpartyInfo struct {
	Name        string `json:"bankaAdi"`
	RecordCount int64  `json:"kayitSayisi"`
}

// FilterOptions is the whole institution -> fund -> issuance cascade.
type FilterOptions struct {
	Institutions []InstitutionInfo `json:"kaynakKuruluslar"`
	Funds        []FundInfo        `json:"fonlar"`
	Issuances    []IssuanceInfo    `json:"ihraclar"`
}
