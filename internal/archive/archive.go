package archive

import (
	"context"
	"errors"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/record"
)

// ErrUnsupported is returned by backends that cannot serve an operation,
// e.g. querying an append-only file archive.
var ErrUnsupported = errors.New("operation not supported by archive")

// Archive is the durable destination for flushed log records.
// Implementations must be safe for concurrent use.
type Archive interface {
	Archive(ctx context.Context, recs []record.Record) error
	Retrieve(ctx context.Context, q record.Query) ([]record.Record, error)
	Erase(ctx context.Context, q record.Query) (int64, error)
	Close() error
}

// Nop accepts and discards everything.
type Nop struct{}

func (Nop) Archive(context.Context, []record.Record) error { return nil }

func (Nop) Retrieve(context.Context, record.Query) ([]record.Record, error) { return nil, nil }

func (Nop) Erase(context.Context, record.Query) (int64, error) { return 0, nil }

func (Nop) Close() error { return nil }
