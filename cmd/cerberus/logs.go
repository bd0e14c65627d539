package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	cerberus "github.com/LateinCecer/Cerbeurs-Registry-Public"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/archive"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/archive/factory"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/record"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/terminal"
)

func (f LogsFlags) query() (record.Query, error) {
	q := record.Query{Service: f.Service}
	if f.Level != "" {
		l, err := record.ParseLevel(f.Level)
		if err != nil {
			return q, err
		}
		q.Level = &l
	}
	var err error
	if f.Since != "" {
		if q.Since, err = time.Parse(time.RFC3339, f.Since); err != nil {
			return q, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if f.Until != "" {
		if q.Until, err = time.Parse(time.RFC3339, f.Until); err != nil {
			return q, fmt.Errorf("invalid --until: %w", err)
		}
	}
	return q, nil
}

func openArchive(configPath, dsn string) (archive.Archive, error) {
	if dsn == "" {
		cfg, err := cerberus.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
		dsn = cfg.Log.ArchiveDSN
	}
	if dsn == "" {
		return nil, errors.New("no archive configured: use --dsn or log.archive_dsn")
	}
	return factory.NewFromDSN(dsn)
}

// QueryLogs prints the archived records matching f
func QueryLogs(ctx context.Context, w io.Writer, configPath string, f LogsFlags) error {
	q, err := f.query()
	if err != nil {
		return err
	}
	arc, err := openArchive(configPath, f.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = arc.Close() }()

	recs, err := arc.Retrieve(ctx, q)
	if err != nil {
		return err
	}
	if f.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.Time.Format(time.RFC3339),
			r.Service,
			r.Level.String(),
			r.Message,
		})
	}
	terminal.PrintTable(w, []string{"Time", "Service", "Level", "Message"}, rows)
	return nil
}

// EraseLogs deletes the archived records matching f
func EraseLogs(ctx context.Context, w io.Writer, configPath string, f LogsFlags) error {
	q, err := f.query()
	if err != nil {
		return err
	}
	arc, err := openArchive(configPath, f.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = arc.Close() }()

	n, err := arc.Erase(ctx, q)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Erased %d record(s)\n", n)
	return nil
}
