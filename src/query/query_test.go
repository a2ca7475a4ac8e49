package query

import (
	"strings"
	"testing"
	"time"

	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(t time.Time) *time.Time { return &t }

func TestRecordsQuery_NoFilters(t *testing.T) {
	q := SQLite.RecordsQuery(Filter{})
	assert.Contains(t, q.SQL, " WHERE baslangic_tarihi IS NOT NULL AND donus_tarihi IS NOT NULL ORDER BY")
	assert.Empty(t, q.Args)
	assert.True(t, strings.HasSuffix(q.SQL, "ORDER BY baslangic_tarihi, id"))
}

func TestRecordsQuery_AllFilters(t *testing.T) {
	f := Filter{
		Institution:           "FİBABANKA",
		Funds:                 []string{"F1", "F2"},
		FundNumber:            "F1",
		IssuanceNumber:        "I9",
		Counterparties:        []string{"ABC", "XYZ"},
		ExcludeCounterparties: []string{"ZBJ"},
		StartFrom:             ptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		StartTo:               ptr(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)),
	}
	q := SQLite.RecordsQuery(f)

	assert.Contains(t, q.SQL, "kaynak_kurulus = ?")
	assert.Contains(t, q.SQL, "fon_no IN (?, ?)")
	assert.Contains(t, q.SQL, "fon_no = ?")
	assert.Contains(t, q.SQL, "ihrac_no = ?")
	assert.Contains(t, q.SQL, `(banka_adi LIKE ? ESCAPE '\' OR banka_adi LIKE ? ESCAPE '\')`)
	assert.Contains(t, q.SQL, `(banka_adi NOT LIKE ? ESCAPE '\')`)
	assert.Contains(t, q.SQL, "baslangic_tarihi >= ?")
	assert.Contains(t, q.SQL, "baslangic_tarihi <= ?")
	assert.Equal(t, []any{
		"FİBABANKA", "F1", "F2", "F1", "I9", "%ABC%", "%XYZ%", "%ZBJ%", "2024-01-01", "2024-06-30",
	}, q.Args)
	assert.Equal(t, strings.Count(q.SQL, "?"), len(q.Args))
}

func TestRecordsQuery_PostgresPlaceholders(t *testing.T) {
	q := Postgres.RecordsQuery(Filter{
		Institution:    "A",
		Counterparties: []string{"B", "C"},
		StartTo:        ptr(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
	})
	assert.Contains(t, q.SQL, "kaynak_kurulus = $1")
	assert.Contains(t, q.SQL, `(banka_adi LIKE $2 ESCAPE '\' OR banka_adi LIKE $3 ESCAPE '\')`)
	assert.Contains(t, q.SQL, "baslangic_tarihi <= $4")
	assert.NotContains(t, q.SQL, "?")
	assert.Len(t, q.Args, 4)
}

func TestRecordsQuery_EachFilterIndependent(t *testing.T) {
	from := ptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	to := ptr(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	tests := []struct {
		name   string
		filter Filter
		want   string
		args   int
	}{
		{"institution", Filter{Institution: "A"}, "kaynak_kurulus = ?", 1},
		{"funds", Filter{Funds: []string{"F1"}}, "fon_no IN (?)", 1},
		{"fund", Filter{FundNumber: "F1"}, "fon_no = ?", 1},
		{"issuance without fund", Filter{IssuanceNumber: "I1"}, "ihrac_no = ?", 1},
		{"counterparty", Filter{Counterparties: []string{"X"}}, `(banka_adi LIKE ? ESCAPE '\')`, 1},
		{"from only", Filter{StartFrom: from}, "baslangic_tarihi >= ?", 1},
		{"to only", Filter{StartTo: to}, "baslangic_tarihi <= ?", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := SQLite.RecordsQuery(tt.filter)
			assert.Contains(t, q.SQL, "donus_tarihi IS NOT NULL AND "+tt.want+" ORDER BY")
			assert.Len(t, q.Args, tt.args)
		})
	}
}

func TestRecordsQuery_SentinelsEqualAbsent(t *testing.T) {
	base := SQLite.RecordsQuery(Filter{Institution: "A"})
	for _, sentinel := range []string{"", "All", "$__all", "  "} {
		t.Run(sentinel, func(t *testing.T) {
			q := SQLite.RecordsQuery(Filter{Institution: "A", FundNumber: sentinel, IssuanceNumber: sentinel})
			assert.Equal(t, base, q)
			q = SQLite.RecordsQuery(Filter{Institution: "A", Funds: []string{"F1", sentinel}})
			if strings.TrimSpace(sentinel) == "" {
				assert.Contains(t, q.SQL, "fon_no IN (?)")
				return
			}
			assert.Equal(t, base, q)
		})
	}
}

func TestRecordsQuery_InstitutionSentinelsEqualAbsent(t *testing.T) {
	base := SQLite.RecordsQuery(Filter{})
	for _, sentinel := range []string{"", "All", "all", "$__all", " "} {
		assert.Equal(t, base, SQLite.RecordsQuery(Filter{Institution: sentinel}), sentinel)
	}
	assert.Equal(t, "all", Filter{Institution: "$__all"}.Shape())

	q := SQLite.RecordsQuery(Filter{Institution: " AKBANK "})
	assert.Equal(t, []any{"AKBANK"}, q.Args)
}

func TestRecordsQuery_CounterpartyPatternsAreLiteral(t *testing.T) {
	q := SQLite.RecordsQuery(Filter{Counterparties: []string{"A_C", "100%"}, ExcludeCounterparties: []string{`C:\X`}})
	assert.Equal(t, []any{`%A\_C%`, `%100\%%`, `%C:\\X%`}, q.Args)
}

func TestRecordsQuery_BlankPatternsIgnored(t *testing.T) {
	q := SQLite.RecordsQuery(Filter{Counterparties: []string{" ", ""}})
	assert.NotContains(t, q.SQL, "LIKE")
	assert.Empty(t, q.Args)
}

func TestRecordsQuery_ValuesNeverInlined(t *testing.T) {
	evil := "x' OR '1'='1"
	q := SQLite.RecordsQuery(Filter{Institution: evil, FundNumber: evil, Counterparties: []string{evil}})
	assert.NotContains(t, q.SQL, evil)
	assert.Contains(t, q.Args, evil)
}

func TestLookupQueries(t *testing.T) {
	q := SQLite.InstitutionsQuery()
	assert.Contains(t, q.SQL, "GROUP BY kaynak_kurulus ORDER BY kaynak_kurulus")
	assert.Empty(t, q.Args)

	q = Postgres.FundsQuery("A")
	assert.Contains(t, q.SQL, "COALESCE(SUM(mevduat_tutari), 0)")
	assert.Contains(t, q.SQL, "GROUP BY fon_no ORDER BY fon_no")
	assert.Equal(t, []any{"A"}, q.Args)

	// SQLite sums outside the engine.
	q = SQLite.FundsQuery("A")
	assert.NotContains(t, q.SQL, "SUM(")
	assert.True(t, strings.HasSuffix(q.SQL, "ORDER BY fon_no, id"), q.SQL)
	assert.Equal(t, []any{"A"}, q.Args)

	q = Postgres.IssuancesQuery("A", "F1")
	assert.Contains(t, q.SQL, "kaynak_kurulus = $1 AND fon_no = $2")
	assert.Equal(t, []any{"A", "F1"}, q.Args)

	q = SQLite.IssuancesQuery("A", "$__all")
	assert.Equal(t, []any{"A"}, q.Args)

	q = SQLite.CounterpartiesQuery("")
	assert.Contains(t, q.SQL, "GROUP BY banka_adi ORDER BY banka_adi")
	assert.Empty(t, q.Args)
}

func TestFilterFromParamsAndShape(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := FilterFromParams(models.AccrualParameters{
		SourceInstitution: "A",
		FundNumber:        "All",
		Counterparties:    []string{"X"},
		StartFrom:         &from,
	})
	require.Equal(t, "A", f.Institution)
	assert.Equal(t, "institution+counterparties+from", f.Shape())
	assert.Equal(t, "all", Filter{}.Shape())
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, Postgres, DialectFor("pgx"))
	assert.Equal(t, Postgres, DialectFor("postgres"))
	assert.Equal(t, SQLite, DialectFor("sqlite"))
	assert.Equal(t, SQLite, DialectFor(""))
}

func TestInsertRecordSQL(t *testing.T) {
	assert.Equal(t, 11, strings.Count(SQLite.InsertRecordSQL(), "?"))
	pg := Postgres.InsertRecordSQL()
	assert.Contains(t, pg, "$1, $2")
	assert.Contains(t, pg, "$11)")
}
