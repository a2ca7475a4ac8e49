package model

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/GokhanYmn/NakitAkisGrafana/src/database"
	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/GokhanYmn/NakitAkisGrafana/src/query"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func newTestStore(t *testing.T) (*CashFlowStore, *sql.DB) {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, filepath.Join(t.TempDir(), "nakitakis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db, database.DriverSQLite))
	return NewCashFlowStore(db, query.SQLite, 5*time.Second), db
}

func seed(t *testing.T, s *CashFlowStore) {
	t.Helper()
	records := []models.CashFlowRecord{
		{SourceInstitution: "FİBABANKA", FundNumber: "F1", IssuanceNumber: "I1", CounterpartyName: "ABC BANK",
			StartDate: day(2024, 1, 1), ReturnDate: day(2024, 7, 1), PrincipalAmount: d("1000000"),
			ActualInterestRate: d("0.45"), ActualInterestAmount: d("600000.5"), TotalReturnAmount: d("1600000.5")},
		{SourceInstitution: "FİBABANKA", FundNumber: "F1", IssuanceNumber: "I2", CounterpartyName: "XX ZBJ KATILIM",
			StartDate: day(2024, 1, 15), ReturnDate: day(2024, 2, 15), PrincipalAmount: d("500000"),
			TotalReturnAmount: d("500000")},
		{SourceInstitution: "FİBABANKA", FundNumber: "F2", CounterpartyName: "DEF BANK",
			StartDate: day(2024, 3, 1), ReturnDate: day(2024, 4, 1), PrincipalAmount: d("250000"),
			TotalReturnAmount: d("251000")},
		{SourceInstitution: "AKBANK", FundNumber: "F9", CounterpartyName: "ABC BANK",
			StartDate: day(2024, 2, 1), ReturnDate: day(2024, 3, 1), PrincipalAmount: d("100"),
			TotalReturnAmount: d("101")},
	}
	n, err := s.InsertRecords(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, len(records), n)
}

func TestFetchRecords_ProjectsTypedRows(t *testing.T) {
	s, _ := newTestStore(t)
	seed(t, s)

	records, err := s.FetchRecords(context.Background(), query.Filter{Institution: "FİBABANKA"})
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, "FİBABANKA", first.SourceInstitution)
	assert.Equal(t, "F1", first.FundNumber)
	assert.Equal(t, "I1", first.IssuanceNumber)
	assert.Equal(t, day(2024, 1, 1), first.StartDate)
	assert.Equal(t, day(2024, 7, 1), first.ReturnDate)
	assert.True(t, first.PrincipalAmount.Equal(d("1000000")))
	assert.True(t, first.ActualInterestAmount.Equal(d("600000.5")), "got %s", first.ActualInterestAmount)
	assert.True(t, first.ActualInterestRate.Equal(d("0.45")))

	second := records[1]
	assert.True(t, second.ActualInterestAmount.IsZero())
	assert.False(t, second.HasActualInterest())

	third := records[2]
	assert.Empty(t, third.IssuanceNumber)
	assert.Empty(t, third.ISIN)
}

func TestFetchRecords_Filters(t *testing.T) {
	s, _ := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	count := func(f query.Filter) int {
		records, err := s.FetchRecords(ctx, f)
		require.NoError(t, err)
		return len(records)
	}

	assert.Equal(t, 4, count(query.Filter{}))
	assert.Equal(t, 2, count(query.Filter{Institution: "FİBABANKA", FundNumber: "F1"}))
	assert.Equal(t, 1, count(query.Filter{Institution: "FİBABANKA", FundNumber: "F1", IssuanceNumber: "I2"}))
	assert.Equal(t, 1, count(query.Filter{IssuanceNumber: "I2"}))
	assert.Equal(t, 3, count(query.Filter{Funds: []string{"F1", "F9"}}))
	assert.Equal(t, 2, count(query.Filter{Counterparties: []string{"ABC"}}))
	assert.Equal(t, 3, count(query.Filter{Institution: "FİBABANKA", Counterparties: []string{"ABC", "ZBJ", "DEF"}}))
	assert.Equal(t, 2, count(query.Filter{Institution: "FİBABANKA", ExcludeCounterparties: []string{"ZBJ"}}))

	from, to := day(2024, 1, 15), day(2024, 3, 1)
	assert.Equal(t, 3, count(query.Filter{StartFrom: &from, StartTo: &to}))
	assert.Equal(t, 2, count(query.Filter{StartTo: &from}))
}

func TestFetchRecords_SentinelsMatchAbsentFilter(t *testing.T) {
	s, _ := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	base, err := s.FetchRecords(ctx, query.Filter{Institution: "FİBABANKA"})
	require.NoError(t, err)
	for _, sentinel := range []string{"All", "$__all"} {
		got, err := s.FetchRecords(ctx, query.Filter{Institution: "FİBABANKA", FundNumber: sentinel, IssuanceNumber: sentinel})
		require.NoError(t, err)
		assert.Equal(t, base, got, sentinel)
	}
}

func TestFetchRecords_InstitutionSentinelsMatchAllInstitutions(t *testing.T) {
	s, _ := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	for _, sentinel := range []string{"", "All", "all", "$__all"} {
		records, err := s.FetchRecords(ctx, query.Filter{Institution: sentinel})
		require.NoError(t, err)
		assert.Len(t, records, 4, sentinel)
	}
}

func TestFetchRecords_CounterpartyPatternIsLiteral(t *testing.T) {
	s, _ := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	records, err := s.FetchRecords(ctx, query.Filter{Counterparties: []string{"A_C"}})
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = s.FetchRecords(ctx, query.Filter{Counterparties: []string{"%"}})
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = s.FetchRecords(ctx, query.Filter{ExcludeCounterparties: []string{"B_NK"}})
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestAmountsRoundTripExactly(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	big := d("123456789012345678.91")
	_, err := s.InsertRecords(ctx, []models.CashFlowRecord{
		{SourceInstitution: "X", FundNumber: "F1", CounterpartyName: "ABC BANK", StartDate: day(2024, 1, 1), ReturnDate: day(2024, 2, 1),
			PrincipalAmount: big, ActualInterestRate: d("0.4512345678"), ActualInterestAmount: d("0.01"), TotalReturnAmount: big},
		{SourceInstitution: "X", FundNumber: "F1", CounterpartyName: "ABC BANK", StartDate: day(2024, 1, 2), ReturnDate: day(2024, 2, 1),
			PrincipalAmount: d("0.09"), TotalReturnAmount: d("0.09")},
	})
	require.NoError(t, err)

	records, err := s.FetchRecords(ctx, query.Filter{Institution: "X"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].PrincipalAmount.Equal(big), "got %s", records[0].PrincipalAmount)
	assert.True(t, records[0].ActualInterestRate.Equal(d("0.4512345678")), "got %s", records[0].ActualInterestRate)

	funds, err := s.ListFunds(ctx, "X")
	require.NoError(t, err)
	require.Len(t, funds, 1)
	assert.Equal(t, int64(2), funds[0].RecordCount)
	assert.True(t, funds[0].PrincipalTotal.Equal(d("123456789012345679.00")), "got %s", funds[0].PrincipalTotal)
}

func TestFetchRecords_SkipsUndatedRows(t *testing.T) {
	s, db := newTestStore(t)
	seed(t, s)
	_, err := db.Exec(`INSERT INTO nakit_akis (kaynak_kurulus, banka_adi, baslangic_tarihi, donus_tarihi, mevduat_tutari, toplam_donus)
		VALUES ('FİBABANKA', 'ABC BANK', NULL, '2024-05-01', 10, 10)`)
	require.NoError(t, err)

	records, err := s.FetchRecords(context.Background(), query.Filter{Institution: "FİBABANKA"})
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestToRecord_RejectsNullDates(t *testing.T) {
	row := cashFlowRow{id: 7, end: NullDate{Time: day(2024, 1, 1), Valid: true}}
	_, err := row.toRecord()
	assert.True(t, errors.Is(err, ErrNullColumn))

	row = cashFlowRow{id: 8, start: NullDate{Time: day(2024, 1, 1), Valid: true}}
	_, err = row.toRecord()
	assert.ErrorIs(t, err, ErrNullColumn)
}

func TestLookups(t *testing.T) {
	s, _ := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	institutions, err := s.ListInstitutions(ctx)
	require.NoError(t, err)
	require.Len(t, institutions, 2)
	assert.Equal(t, "AKBANK", institutions[0].Institution)
	assert.Equal(t, int64(3), institutions[1].RecordCount)

	funds, err := s.ListFunds(ctx, "FİBABANKA")
	require.NoError(t, err)
	require.Len(t, funds, 2)
	assert.Equal(t, "F1", funds[0].FundNumber)
	assert.Equal(t, int64(2), funds[0].RecordCount)
	assert.True(t, funds[0].PrincipalTotal.Equal(d("1500000")), "got %s", funds[0].PrincipalTotal)

	issuances, err := s.ListIssuances(ctx, "FİBABANKA", "F1")
	require.NoError(t, err)
	require.Len(t, issuances, 2)
	assert.Equal(t, "I1", issuances[0].IssuanceNumber)
	assert.Equal(t, "I2", issuances[1].IssuanceNumber)

	none, err := s.ListIssuances(ctx, "FİBABANKA", "F2")
	require.NoError(t, err)
	assert.Empty(t, none)

	banks, err := s.ListCounterparties(ctx, "")
	require.NoError(t, err)
	require.Len(t, banks, 3)
	assert.Equal(t, "ABC BANK", banks[0].Name)
	assert.Equal(t, int64(2), banks[0].RecordCount)
}

func TestPing(t *testing.T) {
	s, db := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))

	require.NoError(t, db.Close())
	assert.Error(t, s.Ping(context.Background()))
	_, err := s.FetchRecords(context.Background(), query.Filter{})
	assert.Error(t, err)
}

func TestNullDateScan(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		want  time.Time
		valid bool
	}{
		{"nil", nil, time.Time{}, false},
		{"time", time.Date(2024, 5, 6, 23, 0, 0, 0, time.UTC), day(2024, 5, 6), true},
		{"date text", "2024-05-06", day(2024, 5, 6), true},
		{"datetime bytes", []byte("2024-05-06 10:11:12"), day(2024, 5, 6), true},
		{"rfc3339", "2024-05-06T10:11:12Z", day(2024, 5, 6), true},
		{"empty", "", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var nd NullDate
			require.NoError(t, nd.Scan(tt.in))
			assert.Equal(t, tt.valid, nd.Valid)
			assert.Equal(t, tt.want, nd.Time)
		})
	}

	var nd NullDate
	assert.Error(t, nd.Scan("06/05/2024"))
	assert.Error(t, nd.Scan(42))
}
