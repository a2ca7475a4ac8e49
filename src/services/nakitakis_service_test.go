package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/GokhanYmn/NakitAkisGrafana/src/logger"
	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/GokhanYmn/NakitAkisGrafana/src/processors"
	"github.com/GokhanYmn/NakitAkisGrafana/src/query"
	"github.com/GokhanYmn/NakitAkisGrafana/src/security/validation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("connection refused")

type fakeRepository struct {
	mu      sync.Mutex
	records []models.CashFlowRecord
	err     error
	filters []query.Filter

	institutions   []models.InstitutionInfo
	funds          []models.FundInfo
	issuances      []models.IssuanceInfo
	counterparties []models.CounterpartyInfo
	fundsErr       error
	listCalls      []string
}

func (f *fakeRepository) FetchRecords(ctx context.Context, flt query.Filter) ([]models.CashFlowRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, flt)
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeRepository) called(name string) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, name)
	f.mu.Unlock()
}

func (f *fakeRepository) ListInstitutions(ctx context.Context) ([]models.InstitutionInfo, error) {
	f.called("institutions")
	return f.institutions, f.err
}

func (f *fakeRepository) ListFunds(ctx context.Context, institution string) ([]models.FundInfo, error) {
	f.called("funds:" + institution)
	if f.fundsErr != nil {
		return nil, f.fundsErr
	}
	return f.funds, f.err
}

func (f *fakeRepository) ListIssuances(ctx context.Context, institution, fund string) ([]models.IssuanceInfo, error) {
	f.called("issuances:" + institution + "/" + fund)
	return f.issuances, f.err
}

func (f *fakeRepository) ListCounterparties(ctx context.Context, institution string) ([]models.CounterpartyInfo, error) {
	f.called("counterparties:" + institution)
	return f.counterparties, f.err
}

func (f *fakeRepository) Ping(ctx context.Context) error { return f.err }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func placement(principal, actual string, start time.Time, tenor int) models.CashFlowRecord {
	p := d(principal)
	return models.CashFlowRecord{
		SourceInstitution:    "FİBABANKA",
		FundNumber:           "F1",
		CounterpartyName:     "ABC BANK",
		StartDate:            start,
		ReturnDate:           start.AddDate(0, 0, tenor),
		PrincipalAmount:      p,
		ActualInterestAmount: d(actual),
		TotalReturnAmount:    p.Add(d(actual)).Add(decimal.NewFromInt(1)),
	}
}

func baseParams(rate string) models.AccrualParameters {
	return models.AccrualParameters{
		AnnualRate:        d(rate),
		ModelAnnualRate:   d(rate),
		Model:             models.ModelSimple,
		SourceInstitution: "FİBABANKA",
	}
}

func newService(repo CashFlowRepository) NakitAkisService {
	rules := []models.FallbackRule{{Pattern: "ZBJ", Rate: d("0.48")}}
	return NewNakitAkisService(repo, processors.NewAccrualProcessor(rules), processors.NewSeriesProcessor())
}

// capture routes the contextual logger into a buffer.
func capture() (context.Context, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger.ToContext(context.Background(), l), buf
}

func TestComputeSnapshot_FallbackEstimateMatchesModel(t *testing.T) {
	repo := &fakeRepository{records: []models.CashFlowRecord{
		placement("1000000", "0", day(2024, 1, 1), 365),
	}}

	res, err := newService(repo).ComputeSnapshot(context.Background(), baseParams("0.45"))
	require.NoError(t, err)

	assert.True(t, res.RealInterestTotal.Equal(d("450000")), "got %s", res.RealInterestTotal)
	assert.True(t, res.ModelInterestTotal.Equal(d("450000")), "got %s", res.ModelInterestTotal)
	assert.True(t, res.DifferenceAmount.IsZero())
	assert.True(t, res.DifferencePercentage.IsZero())
	assert.Equal(t, 1, res.RecordCount)
	assert.False(t, res.Degraded)
	assert.False(t, res.Clamped)
}

func TestComputeSnapshot_TrustedAndEstimatedInterest(t *testing.T) {
	repo := &fakeRepository{records: []models.CashFlowRecord{
		placement("2000000", "600000", day(2024, 1, 1), 365),
		placement("1000000", "0", day(2024, 2, 1), 180),
	}}

	res, err := newService(repo).ComputeSnapshot(context.Background(), baseParams("0.30"))
	require.NoError(t, err)

	assert.Equal(t, "747945.21", res.RealInterestTotal.StringFixed(2))
	assert.Equal(t, 2, res.RecordCount)
}

func TestComputeSnapshot_CounterpartyRuleAppliesToEstimate(t *testing.T) {
	rec := placement("1000000", "0", day(2024, 1, 1), 365)
	rec.CounterpartyName = "XX ZBJ KATILIM"
	repo := &fakeRepository{records: []models.CashFlowRecord{rec}}

	res, err := newService(repo).ComputeSnapshot(context.Background(), baseParams("0.45"))
	require.NoError(t, err)

	assert.True(t, res.RealInterestTotal.Equal(d("480000")), "got %s", res.RealInterestTotal)
	assert.True(t, res.ModelInterestTotal.Equal(d("450000")))
	assert.Equal(t, "6.67", res.DifferencePercentage.StringFixed(2))
}

func TestComputeSnapshot_EmptySetIsZero(t *testing.T) {
	repo := &fakeRepository{}
	svc := newService(repo)
	ctx := context.Background()

	res, err := svc.ComputeSnapshot(ctx, baseParams("0.45"))
	require.NoError(t, err)
	assert.True(t, res.RealInterestTotal.IsZero())
	assert.True(t, res.ModelInterestTotal.IsZero())
	assert.True(t, res.DifferencePercentage.IsZero())
	assert.Equal(t, 0, res.RecordCount)
	assert.False(t, res.Degraded)

	series, err := svc.ComputeTimeSeries(ctx, baseParams("0.45"), models.Week, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, series)
	assert.Empty(t, series)
}

func TestComputeSnapshot_OverflowIsClampedAndWarned(t *testing.T) {
	huge := "50000000000000000000000000000"
	repo := &fakeRepository{records: []models.CashFlowRecord{
		placement("1000", huge, day(2024, 1, 1), 30),
		placement("1000", huge, day(2024, 2, 1), 30),
	}}
	ctx, logs := capture()

	res, err := newService(repo).ComputeSnapshot(ctx, baseParams("0.45"))
	require.NoError(t, err)

	assert.True(t, res.RealInterestTotal.Equal(processors.MaxAmount))
	assert.True(t, res.Clamped)
	assert.False(t, res.Degraded)
	assert.Contains(t, logs.String(), `"level":"WARN"`)
	assert.Contains(t, logs.String(), "clamped")
}

func TestComputeSnapshot_StoreFailureDegrades(t *testing.T) {
	repo := &fakeRepository{err: errStoreDown}
	ctx, logs := capture()

	res, err := newService(repo).ComputeSnapshot(ctx, baseParams("0.45"))
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.Equal(t, "record store unavailable", res.DegradedReason)
	assert.True(t, res.RealInterestTotal.IsZero())
	assert.Equal(t, 0, res.RecordCount)
	assert.Contains(t, logs.String(), "connection refused")
	assert.Contains(t, logs.String(), `"institution":"FİBABANKA"`)
}

func TestComputeSnapshot_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *models.AccrualParameters)
	}{
		{"zero rate", func(p *models.AccrualParameters) { p.AnnualRate = decimal.Zero }},
		{"percent number", func(p *models.AccrualParameters) { p.AnnualRate = d("45") }},
		{"model rate too high", func(p *models.AccrualParameters) { p.ModelAnnualRate = d("0.9") }},
		{"unknown model", func(p *models.AccrualParameters) { p.Model = "exotic" }},
		{"inverted range", func(p *models.AccrualParameters) {
			from, to := day(2024, 5, 1), day(2024, 1, 1)
			p.StartFrom, p.StartTo = &from, &to
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepository{}
			p := baseParams("0.45")
			tt.mutate(&p)

			_, err := newService(repo).ComputeSnapshot(context.Background(), p)
			require.Error(t, err)
			assert.ErrorIs(t, err, validation.ErrValidationFailed)
			assert.Empty(t, repo.filters, "store must not be queried")
		})
	}
}

func TestComputeSnapshot_ForwardsFilters(t *testing.T) {
	repo := &fakeRepository{}
	p := baseParams("0.45")
	p.FundNumber = "F1"
	p.Counterparties = []string{"ABC"}

	_, err := newService(repo).ComputeSnapshot(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, repo.filters, 1)
	assert.Equal(t, "FİBABANKA", repo.filters[0].Institution)
	assert.Equal(t, "F1", repo.filters[0].FundNumber)
	assert.Equal(t, []string{"ABC"}, repo.filters[0].Counterparties)
}

func TestComputeTimeSeries_RangeOverridesParameters(t *testing.T) {
	repo := &fakeRepository{records: []models.CashFlowRecord{
		placement("1000000", "0", day(2024, 1, 3), 365),
		placement("1000000", "0", day(2024, 2, 7), 365),
	}}
	from, to := day(2024, 1, 1), day(2024, 3, 1)

	points, err := newService(repo).ComputeTimeSeries(context.Background(), baseParams("0.45"), models.Month, &from, &to)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, day(2024, 1, 1), points[0].PeriodStart)
	assert.Equal(t, day(2024, 2, 1), points[1].PeriodStart)
	assert.True(t, points[1].CumulativeReal.Equal(d("900000")))

	require.Len(t, repo.filters, 1)
	assert.Equal(t, &from, repo.filters[0].StartFrom)
	assert.Equal(t, &to, repo.filters[0].StartTo)
}

func TestComputeTimeSeries_StoreFailureIsEmpty(t *testing.T) {
	points, err := newService(&fakeRepository{err: errStoreDown}).
		ComputeTimeSeries(context.Background(), baseParams("0.45"), models.Day, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, points)
	assert.Empty(t, points)
}

func TestComputeTimeSeries_InvalidRange(t *testing.T) {
	from, to := day(2024, 5, 1), day(2024, 1, 1)
	_, err := newService(&fakeRepository{}).
		ComputeTimeSeries(context.Background(), baseParams("0.45"), models.Day, &from, &to)
	assert.ErrorIs(t, err, validation.ErrValidationFailed)
}

func TestComputeTrends(t *testing.T) {
	zero := placement("0", "10", day(2024, 1, 2), 30)
	other := placement("1000000", "0", day(2024, 1, 3), 365)
	other.FundNumber = "F2"
	repo := &fakeRepository{records: []models.CashFlowRecord{
		placement("1000000", "0", day(2024, 1, 1), 365),
		zero,
		other,
	}}
	svc := newService(repo)

	points, err := svc.ComputeTrends(context.Background(), baseParams("0.45"), models.Week, nil, nil, true)
	require.NoError(t, err)
	require.Len(t, points, 2)
	for _, p := range points {
		assert.Equal(t, "FİBABANKA", p.Institution)
		assert.Equal(t, 1, p.RecordCount)
	}

	points, err = svc.ComputeTrends(context.Background(), baseParams("0.45"), models.Week, nil, nil, false)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 2, points[0].RecordCount)
	assert.True(t, points[0].Principal.Equal(d("2000000")))
}

func TestComputeTrends_StoreFailureIsEmpty(t *testing.T) {
	points, err := newService(&fakeRepository{err: errStoreDown}).
		ComputeTrends(context.Background(), baseParams("0.45"), models.Week, nil, nil, true)
	require.NoError(t, err)
	assert.NotNil(t, points)
	assert.Empty(t, points)
}

func TestTestConnectivity(t *testing.T) {
	assert.True(t, newService(&fakeRepository{}).TestConnectivity(context.Background()))
	assert.False(t, newService(&fakeRepository{err: errStoreDown}).TestConnectivity(context.Background()))
}
