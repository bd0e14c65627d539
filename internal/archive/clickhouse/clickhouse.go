package clickhouse

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/archive"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/record"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Archive stores log records in ClickHouse using the official Go client.
type Archive struct {
	conn  driver.Conn
	table string
}

// Options configures the connection.
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
	Table    string
}

func New(opts Options) (*Archive, error) {
	if opts.Table == "" {
		opts.Table = "log_records"
	}
	if !tableName.MatchString(opts.Table) {
		return nil, fmt.Errorf("invalid ClickHouse table name %q", opts.Table)
	}
	if opts.Database == "" {
		opts.Database = "default"
	}
	if opts.Username == "" {
		opts.Username = "default"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	a := &Archive{conn: conn, table: opts.Table}
	if err := a.ensureSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) ensureSchema(ctx context.Context) error {
	return a.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+a.table+` (
			id String,
			service String,
			service_name String,
			level LowCardinality(String),
			message String,
			call_site String,
			ts DateTime64(9, 'UTC')
		) ENGINE = ReplacingMergeTree()
		ORDER BY (service, ts, id)`)
}

func (a *Archive) Archive(ctx context.Context, recs []record.Record) error {
	if len(recs) == 0 {
		return nil
	}
	batch, err := a.conn.PrepareBatch(ctx, `INSERT INTO `+a.table+` (`+archive.Columns+`)`)
	if err != nil {
		return fmt.Errorf("failed to prepare ClickHouse batch: %w", err)
	}
	for _, r := range recs {
		if err := batch.Append(
			r.ID.String(), r.Service, r.ServiceName, r.Level.String(),
			r.Message, r.CallSite, r.Time.UTC(),
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append record %s: %w", r.ID, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to insert records into ClickHouse: %w", err)
	}
	return nil
}

func (a *Archive) Retrieve(ctx context.Context, q record.Query) ([]record.Record, error) {
	where, args := archive.Where(q, archive.Question, nil)
	rows, err := a.conn.Query(ctx,
		`SELECT `+archive.Columns+` FROM `+a.table+` FINAL WHERE `+where+` ORDER BY ts, id`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []record.Record
	for rows.Next() {
		var (
			id, key, name, level, msg, site string
			ts                              time.Time
		)
		if err := rows.Scan(&id, &key, &name, &level, &msg, &site, &ts); err != nil {
			return nil, err
		}
		r, err := archive.FromColumns(id, key, name, level, msg, site, ts)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Erase deletes matching rows with a synchronous mutation and returns the
// number of rows that matched before the delete.
func (a *Archive) Erase(ctx context.Context, q record.Query) (int64, error) {
	where, args := archive.Where(q, archive.Question, nil)
	var n uint64
	if err := a.conn.QueryRow(ctx,
		`SELECT count() FROM `+a.table+` FINAL WHERE `+where, args...).Scan(&n); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	mctx := clickhouse.Context(ctx, clickhouse.WithSettings(clickhouse.Settings{
		"mutations_sync": 1,
	}))
	if err := a.conn.Exec(mctx, `ALTER TABLE `+a.table+` DELETE WHERE `+where, args...); err != nil {
		return 0, fmt.Errorf("failed to delete records from ClickHouse: %w", err)
	}
	return int64(n), nil
}

func (a *Archive) Close() error {
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}
