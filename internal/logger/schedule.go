package logger

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// FlushScheduler flushes a Logger's buffer on a cron schedule, independent
// of the high-water mark.
type FlushScheduler struct {
	scheduler *cron.Cron
	entryID   cron.EntryID
}

// NewFlushScheduler parses spec (standard five-field cron syntax or
// descriptors such as "@every 1m") and binds it to l.
func NewFlushScheduler(spec string, l *Logger) (*FlushScheduler, error) {
	scheduler := cron.New()
	entryID, err := scheduler.AddFunc(spec, func() { l.Flush(TriggerSchedule) })
	if err != nil {
		return nil, fmt.Errorf("invalid flush schedule %q: %w", spec, err)
	}
	return &FlushScheduler{scheduler: scheduler, entryID: entryID}, nil
}

func (f *FlushScheduler) Start() { f.scheduler.Start() }

// Stop halts the scheduler and waits for a running flush to finish.
func (f *FlushScheduler) Stop() {
	<-f.scheduler.Stop().Done()
}

// Next returns the next scheduled flush time, zero before Start.
func (f *FlushScheduler) Next() time.Time {
	return f.scheduler.Entry(f.entryID).Next
}
