package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Layouts SQLite may hand back for a DATE column stored as TEXT.
var dateLayouts = []string{
	dateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// NullDate scans a DATE column into a UTC calendar date, whether the driver
// returns time.Time (pgx, sqlite with a DATE decltype) or text.
type NullDate struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner.
func (d *NullDate) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		d.Time, d.Valid = time.Time{}, false
		return nil
	case time.Time:
		d.Time, d.Valid = truncateDate(v), true
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	}
	return fmt.Errorf("cannot scan %T into a date", value)
}

// Value implements driver.Valuer.
func (d NullDate) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.Time.Format(dateLayout), nil
}

func (d *NullDate) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time, d.Valid = time.Time{}, false
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time, d.Valid = truncateDate(t), true
			return nil
		}
	}
	return fmt.Errorf("cannot parse %q as a date", s)
}

// truncateDate keeps the calendar date as written, dropping clock and zone.
func truncateDate(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}
