package record

import (
	"time"

	"github.com/google/uuid"
)

// Record is one log entry. Records are immutable once created.
type Record struct {
	ID          uuid.UUID `json:"id"`
	Service     string    `json:"service"`
	ServiceName string    `json:"service_name"`
	Level       Level     `json:"level"`
	Message     string    `json:"message"`
	CallSite    string    `json:"call_site"`
	Time        time.Time `json:"time"`
}

// New builds a record with a fresh id.
func New(key, name string, level Level, msg, callSite string, at time.Time) Record {
	return Record{
		ID:          uuid.New(),
		Service:     key,
		ServiceName: name,
		Level:       level,
		Message:     msg,
		CallSite:    callSite,
		Time:        at,
	}
}

// Query selects archived records. Zero fields match everything: an empty
// Service matches every service, a nil Level every level, and zero Since or
// Until leave that side of the time range open.
type Query struct {
	Service string
	Level   *Level
	Since   time.Time
	Until   time.Time
}

// Matches reports whether r falls within the query.
func (q Query) Matches(r Record) bool {
	if q.Service != "" && r.Service != q.Service {
		return false
	}
	if q.Level != nil && r.Level != *q.Level {
		return false
	}
	if !q.Since.IsZero() && r.Time.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && r.Time.After(q.Until) {
		return false
	}
	return true
}

// LevelPtr is a helper for building queries.
func LevelPtr(l Level) *Level { return &l }
