package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GokhanYmn/NakitAkisGrafana/src/logger"
	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/GokhanYmn/NakitAkisGrafana/src/query"
	"github.com/shopspring/decimal"
)

// ErrNullColumn is returned when a column the record projection requires is NULL.
var ErrNullColumn = errors.New("unexpected NULL in required column")

// CashFlowStore reads the nakit_akis table. Every call runs on its own
// connection, released before the call returns.
type CashFlowStore struct {
	db      *sql.DB
	dialect query.Dialect
	timeout time.Duration
}

// NewCashFlowStore wraps an open database. A zero timeout leaves deadlines to the caller.
func NewCashFlowStore(db *sql.DB, dialect query.Dialect, timeout time.Duration) *CashFlowStore {
	return &CashFlowStore{db: db, dialect: dialect, timeout: timeout}
}

func (s *CashFlowStore) withConn(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()
	return fn(ctx, conn)
}

// cashFlowRow mirrors one row of RecordsQuery, column for column.
type cashFlowRow struct {
	id           int64
	institution  sql.NullString
	fund         sql.NullString
	issuance     sql.NullString
	isin         sql.NullString
	counterparty sql.NullString
	start        NullDate
	end          NullDate
	principal    decimal.NullDecimal
	rate         decimal.NullDecimal
	interest     decimal.NullDecimal
	totalReturn  decimal.NullDecimal
}

func (r *cashFlowRow) scan(rows *sql.Rows) error {
	return rows.Scan(
		&r.id,
		&r.institution,
		&r.fund,
		&r.issuance,
		&r.isin,
		&r.counterparty,
		&r.start,
		&r.end,
		&r.principal,
		&r.rate,
		&r.interest,
		&r.totalReturn,
	)
}

func (r cashFlowRow) toRecord() (models.CashFlowRecord, error) {
	if !r.start.Valid {
		return models.CashFlowRecord{}, fmt.Errorf("%w: baslangic_tarihi (id %d)", ErrNullColumn, r.id)
	}
	if !r.end.Valid {
		return models.CashFlowRecord{}, fmt.Errorf("%w: donus_tarihi (id %d)", ErrNullColumn, r.id)
	}
	return models.CashFlowRecord{
		ID:                   r.id,
		SourceInstitution:    r.institution.String,
		FundNumber:           strings.TrimSpace(r.fund.String),
		IssuanceNumber:       strings.TrimSpace(r.issuance.String),
		ISIN:                 r.isin.String,
		CounterpartyName:     r.counterparty.String,
		StartDate:            r.start.Time,
		ReturnDate:           r.end.Time,
		PrincipalAmount:      orZero(r.principal),
		ActualInterestRate:   orZero(r.rate),
		ActualInterestAmount: orZero(r.interest),
		TotalReturnAmount:    orZero(r.totalReturn),
	}, nil
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if d.Valid {
		return d.Decimal
	}
	return decimal.Zero
}

// FetchRecords returns every record matching f, ordered by start date.
func (s *CashFlowStore) FetchRecords(ctx context.Context, f query.Filter) ([]models.CashFlowRecord, error) {
	q := s.dialect.RecordsQuery(f)
	var records []models.CashFlowRecord
	err := s.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, q.SQL, q.Args...)
		if err != nil {
			return fmt.Errorf("failed to query records: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var row cashFlowRow
			if err := row.scan(rows); err != nil {
				return fmt.Errorf("failed to scan record: %w", err)
			}
			rec, err := row.toRecord()
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("Fetched cash-flow records", "count", len(records), "filters", f.Shape())
	return records, nil
}

type countRow struct {
	key   sql.NullString
	count int64
}

type totalRow struct {
	key   sql.NullString
	count int64
	total decimal.Decimal
}

func (s *CashFlowStore) queryCounts(ctx context.Context, q query.Query) ([]countRow, error) {
	var out []countRow
	err := s.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, q.SQL, q.Args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r countRow
			if err := rows.Scan(&r.key, &r.count); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

func (s *CashFlowStore) queryTotals(ctx context.Context, q query.Query) ([]totalRow, error) {
	var out []totalRow
	err := s.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, q.SQL, q.Args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r totalRow
			if err := rows.Scan(&r.key, &r.count, &r.total); err != nil {
				return err
			}
			// Rows arrive ordered by key; per-record rows fold into one total.
			if last := len(out) - 1; last >= 0 && out[last].key == r.key {
				out[last].count += r.count
				out[last].total = out[last].total.Add(r.total)
				continue
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// ListInstitutions returns distinct institutions ordered by name.
func (s *CashFlowStore) ListInstitutions(ctx context.Context) ([]models.InstitutionInfo, error) {
	rows, err := s.queryCounts(ctx, s.dialect.InstitutionsQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to list institutions: %w", err)
	}
	out := make([]models.InstitutionInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.InstitutionInfo{Institution: r.key.String, RecordCount: r.count})
	}
	return out, nil
}

// ListFunds returns the funds of an institution ordered by fund number.
func (s *CashFlowStore) ListFunds(ctx context.Context, institution string) ([]models.FundInfo, error) {
	rows, err := s.queryTotals(ctx, s.dialect.FundsQuery(institution))
	if err != nil {
		return nil, fmt.Errorf("failed to list funds: %w", err)
	}
	out := make([]models.FundInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.FundInfo{FundNumber: r.key.String, RecordCount: r.count, PrincipalTotal: r.total})
	}
	return out, nil
}

// ListIssuances returns the issuances of an institution and fund ordered by issuance number.
func (s *CashFlowStore) ListIssuances(ctx context.Context, institution, fund string) ([]models.IssuanceInfo, error) {
	rows, err := s.queryTotals(ctx, s.dialect.IssuancesQuery(institution, fund))
	if err != nil {
		return nil, fmt.Errorf("failed to list issuances: %w", err)
	}
	out := make([]models.IssuanceInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.IssuanceInfo{IssuanceNumber: r.key.String, RecordCount: r.count, PrincipalTotal: r.total})
	}
	return out, nil
}

// ListCounterparties returns distinct counterparty names ordered by name.
func (s *CashFlowStore) ListCounterparties(ctx context.Context, institution string) ([]models.CounterpartyInfo, error) {
	rows, err := s.queryCounts(ctx, s.dialect.CounterpartiesQuery(institution))
	if err != nil {
		return nil, fmt.Errorf("failed to list counterparties: %w", err)
	}
	out := make([]models.CounterpartyInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.CounterpartyInfo{Name: r.key.String, RecordCount: r.count})
	}
	return out, nil
}

// Ping checks that a connection can be acquired and the table read.
func (s *CashFlowStore) Ping(ctx context.Context) error {
	q := s.dialect.PingQuery()
	return s.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var n int64
		if err := conn.QueryRowContext(ctx, q.SQL, q.Args...).Scan(&n); err != nil {
			return fmt.Errorf("ping query failed: %w", err)
		}
		return nil
	})
}

// InsertRecords writes records in one transaction and returns how many were stored.
// Used by the seed command only; the reporting path never writes.
func (s *CashFlowStore) InsertRecords(ctx context.Context, records []models.CashFlowRecord) (int, error) {
	inserted := 0
	err := s.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, s.dialect.InsertRecordSQL())
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			if _, err := stmt.ExecContext(ctx,
				r.SourceInstitution,
				nullIfEmpty(r.FundNumber),
				nullIfEmpty(r.IssuanceNumber),
				nullIfEmpty(r.ISIN),
				r.CounterpartyName,
				r.StartDate.UTC().Format(dateLayout),
				r.ReturnDate.UTC().Format(dateLayout),
				r.PrincipalAmount.String(),
				r.ActualInterestRate.String(),
				r.ActualInterestAmount.String(),
				r.TotalReturnAmount.String(),
			); err != nil {
				return fmt.Errorf("failed to insert record %d: %w", inserted+1, err)
			}
			inserted++
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
