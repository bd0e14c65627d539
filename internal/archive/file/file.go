package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/archive"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/record"
)

// Archive appends records as JSON lines to a size-rotated file.
// It cannot be queried.
type Archive struct {
	mu sync.Mutex
	w  *lumberjack.Logger
}

// Config mirrors the rotation knobs of the log mirror files.
type Config struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New opens a file archive.
// DSN format: "file:///path/to/records.jsonl"
func New(dsn string) (*Archive, error) {
	dsn = strings.TrimSpace(dsn)
	if strings.HasPrefix(strings.ToLower(dsn), "file://") {
		dsn = dsn[len("file://"):]
	}
	return NewWithConfig(Config{Path: dsn})
}

func NewWithConfig(cfg Config) (*Archive, error) {
	if cfg.Path == "" {
		return nil, errors.New("empty archive file path")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{w: &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    valOr(cfg.MaxSizeMB, 10),
		MaxBackups: valOr(cfg.MaxBackups, 3),
		MaxAge:     valOr(cfg.MaxAgeDays, 7),
		Compress:   cfg.Compress,
	}}, nil
}

func valOr(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

func (a *Archive) Archive(ctx context.Context, recs []record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf []byte
	for _, r := range recs {
		line, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", r.ID, err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.w.Write(buf)
	return err
}

func (a *Archive) Retrieve(context.Context, record.Query) ([]record.Record, error) {
	return nil, archive.ErrUnsupported
}

func (a *Archive) Erase(context.Context, record.Query) (int64, error) {
	return 0, archive.ErrUnsupported
}

func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.w.Close()
}
