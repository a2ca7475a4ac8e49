// src/services/interfaces.go
package services

import (
	"context"
	"io"
	"time"

	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/GokhanYmn/NakitAkisGrafana/src/query"
)

// CashFlowRepository is the read side of the record store.
type CashFlowRepository interface {
	FetchRecords(ctx context.Context, f query.Filter) ([]models.CashFlowRecord, error)
	ListInstitutions(ctx context.Context) ([]models.InstitutionInfo, error)
	ListFunds(ctx context.Context, institution string) ([]models.FundInfo, error)
	ListIssuances(ctx context.Context, institution, fund string) ([]models.IssuanceInfo, error)
	ListCounterparties(ctx context.Context, institution string) ([]models.CounterpartyInfo, error)
	Ping(ctx context.Context) error
}

// NakitAkisService reconciles real interest against the model benchmark.
// Only parameter validation errors are returned; store failures degrade.
type NakitAkisService interface {
	ComputeSnapshot(ctx context.Context, params models.AccrualParameters) (models.AccrualResult, error)
	ComputeTimeSeries(ctx context.Context, params models.AccrualParameters, g models.Granularity, from, to *time.Time) ([]models.TimeSeriesPoint, error)
	ComputeTrends(ctx context.Context, params models.AccrualParameters, g models.Granularity, from, to *time.Time, byFund bool) ([]models.TrendPoint, error)
	TestConnectivity(ctx context.Context) bool
}

// CatalogService lists the distinct filter values. Failures yield empty lists.
type CatalogService interface {
	ListInstitutions(ctx context.Context) []models.InstitutionInfo
	ListFunds(ctx context.Context, institution string) []models.FundInfo
	ListIssuances(ctx context.Context, institution, fund string) []models.IssuanceInfo
	ListCounterparties(ctx context.Context, institution string) []models.CounterpartyInfo
	FilterOptions(ctx context.Context, institution, fund string) models.FilterOptions
}

// ExportService renders an already computed snapshot.
type ExportService interface {
	WriteCSV(w io.Writer, report models.Report) error
	WriteHTML(w io.Writer, report models.Report) error
}
