// src/query/query.go
package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
)

// Table is the cash-flow record table every query reads.
const Table = "nakit_akis"

const recordColumns = "id, kaynak_kurulus, fon_no, ihrac_no, vdmk_isin_kodu, banka_adi, " +
	"baslangic_tarihi, donus_tarihi, mevduat_tutari, faiz_orani, faiz_tutari, toplam_donus"

const dateLayout = "2006-01-02"

// Dialect decides how bind placeholders are rendered.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) Dialect {
	switch strings.ToLower(driver) {
	case "pgx", "postgres", "postgresql":
		return Postgres
	}
	return SQLite
}

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Query is rendered SQL plus its bound arguments, in placeholder order.
type Query struct {
	SQL  string
	Args []any
}

// IsAll reports whether v is one of the "no filter" values the dashboard
// and Grafana send for an unselected institution, fund or issuance.
func IsAll(v string) bool {
	switch strings.TrimSpace(v) {
	case "", "All", "all", "$__all":
		return true
	}
	return false
}

// Filter is the set of optional, independent record predicates.
type Filter struct {
	Institution           string
	Funds                 []string
	FundNumber            string
	IssuanceNumber        string
	Counterparties        []string
	ExcludeCounterparties []string
	StartFrom             *time.Time
	StartTo               *time.Time
}

// FilterFromParams projects the filtering part of accrual parameters.
func FilterFromParams(p models.AccrualParameters) Filter {
	return Filter{
		Institution:    p.SourceInstitution,
		Funds:          p.SelectedFunds,
		FundNumber:     p.FundNumber,
		IssuanceNumber: p.IssuanceNumber,
		Counterparties: p.Counterparties,
		StartFrom:      p.StartFrom,
		StartTo:        p.StartTo,
	}
}

// Shape names the filters that are active, for logging failed queries
// without their values.
func (f Filter) Shape() string {
	var parts []string
	if !IsAll(f.Institution) {
		parts = append(parts, "institution")
	}
	if len(selectedFunds(f.Funds)) > 0 {
		parts = append(parts, "funds")
	}
	if !IsAll(f.FundNumber) {
		parts = append(parts, "fund")
	}
	if !IsAll(f.IssuanceNumber) {
		parts = append(parts, "issuance")
	}
	if len(patterns(f.Counterparties)) > 0 {
		parts = append(parts, "counterparties")
	}
	if len(patterns(f.ExcludeCounterparties)) > 0 {
		parts = append(parts, "excludeCounterparties")
	}
	if f.StartFrom != nil {
		parts = append(parts, "from")
	}
	if f.StartTo != nil {
		parts = append(parts, "to")
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, "+")
}

type builder struct {
	dialect Dialect
	where   []string
	args    []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	if b.dialect == Postgres {
		return "$" + strconv.Itoa(len(b.args))
	}
	return "?"
}

func (b *builder) cond(format string, values ...any) {
	placeholders := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = b.bind(v)
	}
	b.where = append(b.where, fmt.Sprintf(format, placeholders...))
}

func (b *builder) in(column string, values []string) {
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = b.bind(v)
	}
	b.where = append(b.where, column+" IN ("+strings.Join(placeholders, ", ")+")")
}

// likeEscaper makes user values match literally, the way fallback rules
// match counterparty names in-process.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (b *builder) like(column string, values []string, negate bool) {
	op, join := "LIKE", " OR "
	if negate {
		op, join = "NOT LIKE", " AND "
	}
	conds := make([]string, len(values))
	for i, v := range values {
		conds[i] = column + " " + op + " " + b.bind("%"+likeEscaper.Replace(v)+"%") + ` ESCAPE '\'`
	}
	b.where = append(b.where, "("+strings.Join(conds, join)+")")
}

func (b *builder) nonEmpty(column string) {
	b.where = append(b.where, column+" IS NOT NULL AND "+column+" <> ''")
}

func (b *builder) apply(f Filter) {
	if !IsAll(f.Institution) {
		b.cond("kaynak_kurulus = %s", strings.TrimSpace(f.Institution))
	}
	if funds := selectedFunds(f.Funds); len(funds) > 0 {
		b.in("fon_no", funds)
	}
	if !IsAll(f.FundNumber) {
		b.cond("fon_no = %s", strings.TrimSpace(f.FundNumber))
	}
	if !IsAll(f.IssuanceNumber) {
		b.cond("ihrac_no = %s", strings.TrimSpace(f.IssuanceNumber))
	}
	if p := patterns(f.Counterparties); len(p) > 0 {
		b.like("banka_adi", p, false)
	}
	if p := patterns(f.ExcludeCounterparties); len(p) > 0 {
		b.like("banka_adi", p, true)
	}
	if f.StartFrom != nil {
		b.cond("baslangic_tarihi >= %s", f.StartFrom.UTC().Format(dateLayout))
	}
	if f.StartTo != nil {
		b.cond("baslangic_tarihi <= %s", f.StartTo.UTC().Format(dateLayout))
	}
}

func (b *builder) whereClause() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

// selectedFunds drops blanks; a list holding an "all" sentinel selects nothing.
func selectedFunds(funds []string) []string {
	out := make([]string, 0, len(funds))
	for _, f := range funds {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if IsAll(f) {
			return nil
		}
		out = append(out, f)
	}
	return out
}

func patterns(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// RecordsQuery selects every dated record matching f, oldest placement first.
func (d Dialect) RecordsQuery(f Filter) Query {
	b := &builder{dialect: d}
	b.where = append(b.where, "baslangic_tarihi IS NOT NULL", "donus_tarihi IS NOT NULL")
	b.apply(f)
	sql := "SELECT " + recordColumns + " FROM " + Table + b.whereClause() + " ORDER BY baslangic_tarihi, id"
	return Query{SQL: sql, Args: b.args}
}

// InstitutionsQuery lists distinct institutions with their record counts.
func (d Dialect) InstitutionsQuery() Query {
	b := &builder{dialect: d}
	b.nonEmpty("kaynak_kurulus")
	sql := "SELECT kaynak_kurulus, COUNT(*) FROM " + Table + b.whereClause() +
		" GROUP BY kaynak_kurulus ORDER BY kaynak_kurulus"
	return Query{SQL: sql, Args: b.args}
}

// totalsQuery lists key values with record counts and principal totals.
// SQLite keeps amounts as TEXT and its SUM runs in float64, so there it
// returns one row per record ordered by key and the caller folds
// consecutive rows with the same key.
func (d Dialect) totalsQuery(key string, b *builder) Query {
	if d == SQLite {
		sql := "SELECT " + key + ", 1, COALESCE(mevduat_tutari, '0') FROM " + Table + b.whereClause() +
			" ORDER BY " + key + ", id"
		return Query{SQL: sql, Args: b.args}
	}
	sql := "SELECT " + key + ", COUNT(*), COALESCE(SUM(mevduat_tutari), 0) FROM " + Table + b.whereClause() +
		" GROUP BY " + key + " ORDER BY " + key
	return Query{SQL: sql, Args: b.args}
}

// FundsQuery lists the funds of an institution with counts and principal totals.
// An empty institution lists funds across all institutions.
func (d Dialect) FundsQuery(institution string) Query {
	b := &builder{dialect: d}
	b.nonEmpty("fon_no")
	b.apply(Filter{Institution: institution})
	return d.totalsQuery("fon_no", b)
}

// IssuancesQuery lists the issuances of an institution and fund.
func (d Dialect) IssuancesQuery(institution, fund string) Query {
	b := &builder{dialect: d}
	b.nonEmpty("ihrac_no")
	b.apply(Filter{Institution: institution, FundNumber: fund})
	return d.totalsQuery("ihrac_no", b)
}

// CounterpartiesQuery lists distinct counterparty names, optionally scoped to an institution.
func (d Dialect) CounterpartiesQuery(institution string) Query {
	b := &builder{dialect: d}
	b.nonEmpty("banka_adi")
	b.apply(Filter{Institution: institution})
	sql := "SELECT banka_adi, COUNT(*) FROM " + Table + b.whereClause() +
		" GROUP BY banka_adi ORDER BY banka_adi"
	return Query{SQL: sql, Args: b.args}
}

// PingQuery is the cheapest statement that proves the table is readable.
func (d Dialect) PingQuery() Query {
	return Query{SQL: "SELECT COUNT(*) FROM (SELECT 1 FROM " + Table + " LIMIT 1) t"}
}

// InsertRecordSQL is the single-row insert used to seed a store.
func (d Dialect) InsertRecordSQL() string {
	b := &builder{dialect: d}
	placeholders := make([]string, 11)
	for i := range placeholders {
		placeholders[i] = b.bind(nil)
	}
	return "INSERT INTO " + Table + " (kaynak_kurulus, fon_no, ihrac_no, vdmk_isin_kodu, banka_adi, " +
		"baslangic_tarihi, donus_tarihi, mevduat_tutari, faiz_orani, faiz_tutari, toplam_donus) VALUES (" +
		strings.Join(placeholders, ", ") + ")"
}
