package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/record"
)

const prefixRecord = "log/"

// Archive keeps log records in an embedded Badger key-value store.
// Keys are laid out as log/<service>\x00<unix-nanos>/<id> so one service's
// records iterate in time order.
type Archive struct {
	db *badgerdb.DB
}

// New opens a Badger archive.
// DSN format:
//   - "badger:///path/to/dir"
//   - "badger://:memory:"
func New(dsn string) (*Archive, error) {
	dsn = strings.TrimSpace(dsn)
	if strings.HasPrefix(strings.ToLower(dsn), "badger://") {
		dsn = dsn[len("badger://"):]
	}
	if dsn == "" {
		return nil, errors.New("empty Badger DSN")
	}

	var opts badgerdb.Options
	if dsn == ":memory:" {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badgerdb.DefaultOptions(dsn)
	}
	db, err := badgerdb.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &Archive{db: db}, nil
}

func servicePrefix(key string) []byte {
	return []byte(prefixRecord + key + "\x00")
}

func recordKey(r record.Record) []byte {
	return fmt.Appendf(servicePrefix(r.Service), "%020d/%s", r.Time.UnixNano(), r.ID)
}

func queryPrefix(q record.Query) []byte {
	if q.Service != "" {
		return servicePrefix(q.Service)
	}
	return []byte(prefixRecord)
}

func (a *Archive) Archive(ctx context.Context, recs []record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wb := a.db.NewWriteBatch()
	defer wb.Cancel()
	for _, r := range recs {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", r.ID, err)
		}
		if err := wb.Set(recordKey(r), data); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// scan calls fn for every stored record matching q.
func (a *Archive) scan(ctx context.Context, q record.Query, fn func(key []byte, r record.Record)) error {
	return a.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = queryPrefix(q)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var r record.Record
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				return err
			}
			if q.Matches(r) {
				fn(item.KeyCopy(nil), r)
			}
		}
		return nil
	})
}

func (a *Archive) Retrieve(ctx context.Context, q record.Query) ([]record.Record, error) {
	var out []record.Record
	err := a.scan(ctx, q, func(_ []byte, r record.Record) {
		out = append(out, r)
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(x, y record.Record) int {
		return x.Time.Compare(y.Time)
	})
	return out, nil
}

func (a *Archive) Erase(ctx context.Context, q record.Query) (int64, error) {
	var keys [][]byte
	err := a.scan(ctx, q, func(k []byte, _ record.Record) {
		keys = append(keys, k)
	})
	if err != nil {
		return 0, err
	}
	wb := a.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

func (a *Archive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
