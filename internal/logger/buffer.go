package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/archive"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/metrics"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/record"
)

// Default buffering configuration constants
const (
	DefaultHighWaterMark  = 1000
	DefaultArchiveTimeout = 5 * time.Second
)

// Flush triggers, used as metric labels.
const (
	TriggerHighWater = "high_water"
	TriggerSchedule  = "schedule"
	TriggerShutdown  = "shutdown"
	TriggerManual    = "manual"
)

// Buffer holds log records per service key until they are archived.
// The total count never exceeds the high-water mark once Add returns.
type Buffer struct {
	mu      sync.Mutex
	mark    int
	count   int
	buckets map[string]map[uuid.UUID]record.Record

	sink     archive.Archive
	timeout  time.Duration
	diag     *slog.Logger
	inflight sync.WaitGroup // sink calls that may outlive their timeout
}

// NewBuffer creates a buffer flushing into sink. A nil sink drops records on
// flush; mark and timeout fall back to their defaults when not positive.
// diag receives archive failure reports and must not route back into the
// attribution logger.
func NewBuffer(sink archive.Archive, mark int, timeout time.Duration, diag *slog.Logger) *Buffer {
	if sink == nil {
		sink = archive.Nop{}
	}
	if mark <= 0 {
		mark = DefaultHighWaterMark
	}
	if timeout <= 0 {
		timeout = DefaultArchiveTimeout
	}
	if diag == nil {
		diag = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Buffer{
		mark:    mark,
		buckets: make(map[string]map[uuid.UUID]record.Record),
		sink:    sink,
		timeout: timeout,
		diag:    diag,
	}
}

// Add inserts r and flushes every bucket when the count crosses the mark.
// It reports whether a flush happened. Archive failures are never returned.
func (b *Buffer) Add(r record.Record) bool {
	b.mu.Lock()
	bucket, ok := b.buckets[r.Service]
	if !ok {
		bucket = make(map[uuid.UUID]record.Record)
		b.buckets[r.Service] = bucket
	}
	if _, dup := bucket[r.ID]; !dup {
		bucket[r.ID] = r
		b.count++
	}
	var out []record.Record
	if b.count > b.mark {
		out = b.drainLocked()
	}
	n := b.count
	b.mu.Unlock()

	metrics.SetBuffered(n)
	if out == nil {
		return false
	}
	b.archive(TriggerHighWater, out)
	return true
}

// Flush archives and clears everything currently buffered.
func (b *Buffer) Flush(trigger string) {
	b.mu.Lock()
	out := b.drainLocked()
	b.mu.Unlock()
	metrics.SetBuffered(0)
	b.archive(trigger, out)
}

// Wait blocks until every sink call started by this buffer has returned, or
// until d elapses (the archive timeout when d is not positive). It reports
// whether all calls finished. The sink must not be closed before Wait.
func (b *Buffer) Wait(d time.Duration) bool {
	if d <= 0 {
		d = b.timeout
	}
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Pending returns a copy of the records buffered for key.
func (b *Buffer) Pending(key string) []record.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	bucket := b.buckets[key]
	out := make([]record.Record, 0, len(bucket))
	for _, r := range bucket {
		out = append(out, r)
	}
	return out
}

func (b *Buffer) drainLocked() []record.Record {
	out := make([]record.Record, 0, b.count)
	for _, bucket := range b.buckets {
		for _, r := range bucket {
			out = append(out, r)
		}
	}
	b.buckets = make(map[string]map[uuid.UUID]record.Record)
	b.count = 0
	return out
}

// archive hands recs to the sink and waits at most b.timeout. Errors and
// panics from the sink are reported on the diagnostics logger only.
func (b *Buffer) archive(trigger string, recs []record.Record) {
	if len(recs) == 0 {
		return
	}
	metrics.IncFlush(trigger)
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	done := make(chan error, 1)
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("archive panicked: %v", p)
			}
		}()
		done <- b.sink.Archive(ctx, recs)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	metrics.ObserveArchiveDuration(time.Since(start).Seconds())
	if err != nil {
		metrics.IncArchiveFailure()
		b.diag.Warn("archive flush failed", "trigger", trigger, "records", len(recs), "error", err)
	}
}
