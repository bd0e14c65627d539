package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/archive"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/record"
)

// Archive stores log records in a SQLite database. Timestamps are kept as
// unix nanoseconds so range queries compare integers.
type Archive struct {
	db *sql.DB
}

// New opens a SQLite archive.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "sqlite://:memory:"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory database)
func New(dsn string) (*Archive, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// every new connection to :memory: is a fresh database
	db.SetMaxOpenConns(1)

	a := &Archive{db: db}
	if err := a.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS log_records(
			id TEXT PRIMARY KEY,
			service TEXT NOT NULL,
			service_name TEXT NOT NULL,
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			call_site TEXT NOT NULL DEFAULT '',
			ts INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_log_records_service_ts ON log_records(service, ts);`,
	}
	for _, st := range stmts {
		if _, err := a.db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) Archive(ctx context.Context, recs []record.Record) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO log_records(`+archive.Columns+`)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING;`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx,
			r.ID.String(), r.Service, r.ServiceName, r.Level.String(),
			r.Message, r.CallSite, r.Time.UnixNano()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert record %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (a *Archive) Retrieve(ctx context.Context, q record.Query) ([]record.Record, error) {
	where, args := archive.Where(q, archive.Question, unixNano)
	rows, err := a.db.QueryContext(ctx,
		`SELECT `+archive.Columns+` FROM log_records WHERE `+where+` ORDER BY ts, id;`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []record.Record
	for rows.Next() {
		var (
			id, key, name, level, msg, site string
			ts                              int64
		)
		if err := rows.Scan(&id, &key, &name, &level, &msg, &site, &ts); err != nil {
			return nil, err
		}
		r, err := archive.FromColumns(id, key, name, level, msg, site, time.Unix(0, ts))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (a *Archive) Erase(ctx context.Context, q record.Query) (int64, error) {
	where, args := archive.Where(q, archive.Question, unixNano)
	res, err := a.db.ExecContext(ctx, `DELETE FROM log_records WHERE `+where+`;`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (a *Archive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func unixNano(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UnixNano()
	}
	return v
}
