package processors

import (
	"sort"
	"time"

	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/shopspring/decimal"
)

// AllFunds labels the single partition of a trend that is not split by fund.
const AllFunds = "tümü"

// SeriesProcessor buckets accruals over time.
type SeriesProcessor interface {
	Reduce(accruals []Accrual, g models.Granularity) []models.TimeSeriesPoint
	Trends(accruals []Accrual, g models.Granularity, byFund bool) []models.TrendPoint
}

type seriesProcessorImpl struct{}

// NewSeriesProcessor creates a new instance of SeriesProcessor.
func NewSeriesProcessor() SeriesProcessor {
	return &seriesProcessorImpl{}
}

// BucketStart truncates t to the start of its bucket: the calendar day, the
// ISO week (Monday) or the first day of the month, in UTC.
func BucketStart(t time.Time, g models.Granularity) time.Time {
	d := civilDate(t)
	switch g {
	case models.Week:
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case models.Month:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return d
}

// GrowthPercent is (current-previous)/previous*100, zero when previous is not positive.
func GrowthPercent(current, previous decimal.Decimal) decimal.Decimal {
	if !previous.IsPositive() {
		return decimal.Zero
	}
	return models.PercentOf(current.Sub(previous), previous)
}

type bucket struct {
	start     time.Time
	fund      string
	real      decimal.Decimal
	model     decimal.Decimal
	principal decimal.Decimal
	rateSum   decimal.Decimal
	count     int
}

func (b *bucket) add(a Accrual) {
	b.real, _ = ClampAmount(b.real.Add(a.Real))
	b.model, _ = ClampAmount(b.model.Add(a.Model))
	b.principal, _ = ClampAmount(b.principal.Add(a.Record.PrincipalAmount))
	b.rateSum = b.rateSum.Add(a.Record.ActualInterestRate)
	b.count++
}

func newBucket(start time.Time, fund string) *bucket {
	return &bucket{
		start:     start,
		fund:      fund,
		real:      decimal.Zero,
		model:     decimal.Zero,
		principal: decimal.Zero,
		rateSum:   decimal.Zero,
	}
}

// Reduce groups accruals by the bucket of their start date. The result holds
// one point per non-empty bucket, strictly ascending, with running totals.
func (p *seriesProcessorImpl) Reduce(accruals []Accrual, g models.Granularity) []models.TimeSeriesPoint {
	byStart := make(map[time.Time]*bucket)
	for _, a := range accruals {
		key := BucketStart(a.Record.StartDate, g)
		b, ok := byStart[key]
		if !ok {
			b = newBucket(key, "")
			byStart[key] = b
		}
		b.add(a)
	}

	buckets := make([]*bucket, 0, len(byStart))
	for _, b := range byStart {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].start.Before(buckets[j].start) })

	points := make([]models.TimeSeriesPoint, 0, len(buckets))
	cumReal, cumModel := decimal.Zero, decimal.Zero
	previous := decimal.Zero
	for _, b := range buckets {
		cumReal, _ = ClampAmount(cumReal.Add(b.real))
		cumModel, _ = ClampAmount(cumModel.Add(b.model))
		r := models.NewAccrualResult(b.real, b.model, b.count)
		points = append(points, models.TimeSeriesPoint{
			PeriodStart:          b.start,
			RealInterestTotal:    r.RealInterestTotal,
			ModelInterestTotal:   r.ModelInterestTotal,
			DifferenceAmount:     r.DifferenceAmount,
			DifferencePercentage: r.DifferencePercentage,
			CumulativeReal:       cumReal,
			CumulativeModel:      cumModel,
			GrowthPercentage:     GrowthPercent(b.real, previous),
			RecordCount:          b.count,
		})
		previous = b.real
	}
	return points
}

// Trends mirrors the weekly cumulative growth report: per partition running
// sums of principal, real and model interest, growth of principal against
// the previous bucket and against the first bucket of the partition.
func (p *seriesProcessorImpl) Trends(accruals []Accrual, g models.Granularity, byFund bool) []models.TrendPoint {
	type key struct {
		start time.Time
		fund  string
	}
	grouped := make(map[key]*bucket)
	for _, a := range accruals {
		fund := AllFunds
		if byFund {
			fund = a.Record.FundNumber
			if fund == "" {
				fund = models.UnknownFund
			}
		}
		k := key{start: BucketStart(a.Record.StartDate, g), fund: fund}
		b, ok := grouped[k]
		if !ok {
			b = newBucket(k.start, fund)
			grouped[k] = b
		}
		b.add(a)
	}

	buckets := make([]*bucket, 0, len(grouped))
	for _, b := range grouped {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if !buckets[i].start.Equal(buckets[j].start) {
			return buckets[i].start.Before(buckets[j].start)
		}
		return buckets[i].fund < buckets[j].fund
	})

	type running struct {
		principal, real, model decimal.Decimal
		previous, first        decimal.Decimal
		seen                   bool
	}
	partitions := make(map[string]*running)

	points := make([]models.TrendPoint, 0, len(buckets))
	for _, b := range buckets {
		run, ok := partitions[b.fund]
		if !ok {
			run = &running{principal: decimal.Zero, real: decimal.Zero, model: decimal.Zero}
			partitions[b.fund] = run
		}
		run.principal, _ = ClampAmount(run.principal.Add(b.principal))
		run.real, _ = ClampAmount(run.real.Add(b.real))
		run.model, _ = ClampAmount(run.model.Add(b.model))

		growth := decimal.Zero
		if run.seen {
			growth = GrowthPercent(b.principal, run.previous)
		} else {
			run.first = b.principal
			run.seen = true
		}
		avgRate := decimal.Zero
		if b.count > 0 {
			avgRate = b.rateSum.Div(decimal.NewFromInt(int64(b.count))).Mul(decimal.NewFromInt(100))
		}

		points = append(points, models.TrendPoint{
			PeriodStart:         b.start,
			FundNumber:          b.fund,
			Principal:           b.principal,
			RealInterest:        b.real,
			ModelInterest:       b.model,
			CumulativePrincipal: run.principal,
			CumulativeReal:      run.real,
			CumulativeModel:     run.model,
			GrowthPercentage:    growth,
			CumulativeGrowth:    GrowthPercent(b.principal, run.first),
			RecordCount:         b.count,
			AverageRatePercent:  avgRate,
		})
		run.previous = b.principal
	}
	return points
}
