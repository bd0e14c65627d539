package archive

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/record"
)

// Placeholder renders the n-th (1-based) bind parameter for a SQL dialect.
type Placeholder func(n int) string

// Question renders "?" placeholders (SQLite, ClickHouse).
func Question(int) string { return "?" }

// Dollar renders "$n" placeholders (PostgreSQL).
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

// Where builds a WHERE clause for q. It returns "1=1" when q selects
// everything. Time bounds are passed through conv so backends can store
// timestamps in their own representation.
func Where(q record.Query, ph Placeholder, conv func(any) any) (string, []any) {
	if conv == nil {
		conv = func(v any) any { return v }
	}
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, ph(len(args))))
	}
	if q.Service != "" {
		add("service = %s", q.Service)
	}
	if q.Level != nil {
		add("level = %s", q.Level.String())
	}
	if !q.Since.IsZero() {
		add("ts >= %s", conv(q.Since))
	}
	if !q.Until.IsZero() {
		add("ts <= %s", conv(q.Until))
	}
	if len(conds) == 0 {
		return "1=1", nil
	}
	return strings.Join(conds, " AND "), args
}

// Columns is the column list shared by the SQL backends, in scan order.
const Columns = "id, service, service_name, level, message, call_site, ts"

// FromColumns rebuilds a record from its stored column values.
func FromColumns(id, key, name, level, msg, site string, ts time.Time) (record.Record, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return record.Record{}, fmt.Errorf("bad record id %q: %w", id, err)
	}
	lvl, err := record.ParseLevel(level)
	if err != nil {
		return record.Record{}, err
	}
	return record.Record{
		ID:          uid,
		Service:     key,
		ServiceName: name,
		Level:       lvl,
		Message:     msg,
		CallSite:    site,
		Time:        ts,
	}, nil
}
