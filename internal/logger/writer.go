package logger

import (
	"bytes"
	"sync"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/record"
)

// LineWriter turns written bytes into one record per line. Partial lines
// stay pending until their newline arrives.
type LineWriter struct {
	l     *Logger
	level record.Level

	mu      sync.Mutex
	pending []byte
}

// Writer returns an io.Writer that logs each written line at level, suitable
// for log.SetOutput or exec.Cmd.Stdout.
func (l *Logger) Writer(level record.Level) *LineWriter {
	return &LineWriter{l: l, level: level}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.pending = append(w.pending, p...)
	var lines []string
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(w.pending[:i], "\r")))
		w.pending = w.pending[i+1:]
	}
	w.mu.Unlock()

	for _, line := range lines {
		w.l.emit(w.level, "", true, line)
	}
	return len(p), nil
}

// Flush logs a pending partial line, if any.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	line := string(w.pending)
	w.pending = nil
	w.mu.Unlock()
	if line != "" {
		w.l.emit(w.level, "", true, line)
	}
}
