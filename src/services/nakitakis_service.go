package services

import (
	"context"
	"time"

	"github.com/GokhanYmn/NakitAkisGrafana/src/logger"
	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/GokhanYmn/NakitAkisGrafana/src/processors"
	"github.com/GokhanYmn/NakitAkisGrafana/src/query"
	"github.com/GokhanYmn/NakitAkisGrafana/src/security/validation"
)

const degradedStoreUnavailable = "record store unavailable"

type nakitAkisServiceImpl struct {
	repo    CashFlowRepository
	accrual processors.AccrualProcessor
	series  processors.SeriesProcessor
}

// NewNakitAkisService creates the reconciliation engine over a record store.
func NewNakitAkisService(repo CashFlowRepository, accrual processors.AccrualProcessor, series processors.SeriesProcessor) NakitAkisService {
	return &nakitAkisServiceImpl{repo: repo, accrual: accrual, series: series}
}

// evaluate fetches and accrues the records matching params. ok is false when
// the store could not be read; the failure is already logged.
func (s *nakitAkisServiceImpl) evaluate(ctx context.Context, op string, params models.AccrualParameters) ([]processors.Accrual, bool) {
	f := query.FilterFromParams(params)
	records, err := s.repo.FetchRecords(ctx, f)
	if err != nil {
		logger.ErrorFromContext(ctx, "Record store query failed",
			"operation", op,
			"error", err,
			"institution", params.SourceInstitution,
			"filters", f.Shape(),
			"rate", params.AnnualRate.String(),
			"modelRate", params.EffectiveModelRate().String(),
			"model", params.Model,
		)
		return nil, false
	}
	accruals := s.accrual.Evaluate(records, params)
	logger.FromContext(ctx).Debug("Accrued records",
		"operation", op, "fetched", len(records), "eligible", len(accruals))
	return accruals, true
}

func warnClamped(ctx context.Context, op string, params models.AccrualParameters) {
	logger.WarnFromContext(ctx, "Accrual exceeded the decimal range and was clamped",
		"operation", op,
		"ceiling", processors.MaxAmount.String(),
		"institution", params.SourceInstitution,
		"rate", params.AnnualRate.String(),
	)
}

func (s *nakitAkisServiceImpl) ComputeSnapshot(ctx context.Context, params models.AccrualParameters) (models.AccrualResult, error) {
	if err := validation.ValidateParameters(params); err != nil {
		return models.AccrualResult{}, err
	}

	accruals, ok := s.evaluate(ctx, "snapshot", params)
	if !ok {
		return models.DegradedResult(degradedStoreUnavailable), nil
	}

	totals := processors.Sum(accruals)
	result := models.NewAccrualResult(totals.Real, totals.Model, totals.Count)
	diff, diffClamped := processors.ClampAmount(result.DifferenceAmount)
	result.DifferenceAmount = diff
	result.Clamped = totals.Clamped || diffClamped
	if result.Clamped {
		warnClamped(ctx, "snapshot", params)
	}

	logger.InfoFromContext(ctx, "Snapshot computed",
		"institution", params.SourceInstitution,
		"records", result.RecordCount,
		"real", result.RealInterestTotal.StringFixed(2),
		"model", result.ModelInterestTotal.StringFixed(2),
	)
	return result, nil
}

// withRange narrows params to [from, to] when either bound is given.
func withRange(params models.AccrualParameters, from, to *time.Time) (models.AccrualParameters, error) {
	if from != nil {
		params.StartFrom = from
	}
	if to != nil {
		params.StartTo = to
	}
	if err := validation.ValidateParameters(params); err != nil {
		return params, err
	}
	return params, nil
}

func (s *nakitAkisServiceImpl) ComputeTimeSeries(ctx context.Context, params models.AccrualParameters, g models.Granularity, from, to *time.Time) ([]models.TimeSeriesPoint, error) {
	params, err := withRange(params, from, to)
	if err != nil {
		return nil, err
	}

	accruals, ok := s.evaluate(ctx, "timeseries", params)
	if !ok {
		return []models.TimeSeriesPoint{}, nil
	}
	if processors.Sum(accruals).Clamped {
		warnClamped(ctx, "timeseries", params)
	}
	return s.series.Reduce(accruals, g), nil
}

func (s *nakitAkisServiceImpl) ComputeTrends(ctx context.Context, params models.AccrualParameters, g models.Granularity, from, to *time.Time, byFund bool) ([]models.TrendPoint, error) {
	params, err := withRange(params, from, to)
	if err != nil {
		return nil, err
	}

	accruals, ok := s.evaluate(ctx, "trends", params)
	if !ok {
		return []models.TrendPoint{}, nil
	}
	// Trends follow placements, so zero principal rows carry no signal.
	kept := accruals[:0]
	for _, a := range accruals {
		if a.Record.PrincipalAmount.IsPositive() {
			kept = append(kept, a)
		}
	}
	points := s.series.Trends(kept, g, byFund)
	for i := range points {
		points[i].Institution = params.SourceInstitution
	}
	return points, nil
}

func (s *nakitAkisServiceImpl) TestConnectivity(ctx context.Context) bool {
	if err := s.repo.Ping(ctx); err != nil {
		logger.WarnFromContext(ctx, "Connectivity test failed", "error", err)
		return false
	}
	return true
}
