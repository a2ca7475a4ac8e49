package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Granularity is the bucket width of a time series.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// ParseGranularity accepts the English names and the Turkish ones the
// dashboard sends (gun, hafta, ay).
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "daily", "gun", "gün":
		return Day, nil
	case "", "week", "weekly", "hafta":
		return Week, nil
	case "month", "monthly", "ay":
		return Month, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// TimeSeriesPoint is one non-empty bucket of a reconciliation series.
type TimeSeriesPoint struct {
	PeriodStart          time.Time       `json:"tarih"`
	RealInterestTotal    decimal.Decimal `json:"toplamFaizTutari"`
	ModelInterestTotal   decimal.Decimal `json:"toplamModelFaizTutari"`
	DifferenceAmount     decimal.Decimal `json:"farkTutari"`
	DifferencePercentage decimal.Decimal `json:"farkYuzdesi"`
	CumulativeReal       decimal.Decimal `json:"kumulatifFaiz"`
	CumulativeModel      decimal.Decimal `json:"kumulatifModelFaiz"`
	GrowthPercentage     decimal.Decimal `json:"buyumeYuzdesi"`
	RecordCount          int             `json:"kayitSayisi"`
}

// TrendPoint is a bucket of the fund-partitioned cumulative growth view.
type TrendPoint struct {
	PeriodStart         time.Time       `json:"hafta"`
	FundNumber          string          `json:"fon_no"`
	Principal           decimal.Decimal `json:"haftalik_mevduat"`
	RealInterest        decimal.Decimal `json:"haftalik_faiz_kazanci"`
	ModelInterest       decimal.Decimal `json:"haftalik_model_faiz"`
	CumulativePrincipal decimal.Decimal `json:"kumulatif_mevduat"`
	CumulativeReal      decimal.Decimal `json:"kumulatif_faiz_kazanci"`
	CumulativeModel     decimal.Decimal `json:"kumulatif_model_faiz"`
	GrowthPercentage    decimal.Decimal `json:"haftalik_buyume_yuzde"`
	CumulativeGrowth    decimal.Decimal `json:"kumulatif_buyume_yuzde"`
	RecordCount         int             `json:"haftalik_islem_sayisi"`
	AverageRatePercent  decimal.Decimal `json:"ortalama_faiz_orani"`
	Institution         string          `json:"kurulus"`
}

// UnknownFund labels records without a fund number in partitioned views.
const UnknownFund = "bilinmiyor"
