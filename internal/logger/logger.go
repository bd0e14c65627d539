package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/archive"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/metrics"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/record"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/service"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/worker"
)

// Identity used when neither the calling worker's owner nor the default
// service can be resolved.
const (
	BootstrapKey  service.Key = "BOOTSTRAP"
	BootstrapName             = "bootstrap"
)

// Resolver maps workers and keys to registered services.
// *registry.Directory implements it.
type Resolver interface {
	Owner(id worker.ID) (service.Service, bool)
	Lookup(key service.Key) (service.Service, bool)
}

// Options configures a Logger.
type Options struct {
	Out            io.Writer // standard stream, os.Stdout when nil
	Err            io.Writer // error stream, os.Stderr when nil
	Color          bool
	DefaultKey     service.Key // attribution fallback
	HighWaterMark  int
	Archive        archive.Archive
	ArchiveTimeout time.Duration
	Files          Config // optional rotating mirror files
	FilesName      string // base name of the mirror files, "cerberus" when empty
	Diagnostics    *slog.Logger
	Now            func() time.Time
}

// Logger attributes every record to the service owning the calling
// goroutine, prints it and keeps it buffered for archiving.
type Logger struct {
	res    Resolver
	defKey service.Key
	color  bool
	now    func() time.Time
	buf    *Buffer
	diag   *slog.Logger

	mu      sync.Mutex // serializes stream writes
	out     io.Writer
	err     io.Writer
	fileOut io.WriteCloser
	fileErr io.WriteCloser
}

func New(res Resolver, opts Options) *Logger {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FilesName == "" {
		opts.FilesName = "cerberus"
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = slog.New(NewColorTextHandler(opts.Err, nil, opts.Color))
	}
	l := &Logger{
		res:    res,
		defKey: opts.DefaultKey,
		color:  opts.Color,
		now:    opts.Now,
		buf:    NewBuffer(opts.Archive, opts.HighWaterMark, opts.ArchiveTimeout, opts.Diagnostics),
		diag:   opts.Diagnostics,
		out:    opts.Out,
		err:    opts.Err,
	}
	l.fileOut, l.fileErr = opts.Files.Writers(opts.FilesName)
	return l
}

// Buffer exposes the record buffer.
func (l *Logger) Buffer() *Buffer { return l.buf }

// Diagnostics returns the logger used for failures of the logging pipeline.
func (l *Logger) Diagnostics() *slog.Logger { return l.diag }

// Resolve returns the key and name of the service the calling goroutine
// is attributed to.
func (l *Logger) Resolve() (service.Key, string) {
	if l.res != nil {
		if s, ok := l.res.Owner(worker.CurrentID()); ok {
			return s.Key(), s.Name()
		}
		if s, ok := l.res.Lookup(l.defKey); ok {
			return s.Key(), s.Name()
		}
	}
	return BootstrapKey, BootstrapName
}

func (l *Logger) Log(level record.Level, msg string) { l.emit(level, callSite(0), true, msg) }

// LogInline is Log without the trailing line break, for progress output.
func (l *Logger) LogInline(level record.Level, msg string) { l.emit(level, callSite(0), false, msg) }

// LogDepth records the call site depth frames above the caller. Depths past
// the top of the stack fall back to the immediate caller.
func (l *Logger) LogDepth(level record.Level, depth int, msg string) {
	l.emit(level, callSite(depth), true, msg)
}

func (l *Logger) Info(msg string)     { l.emit(record.Info, callSite(0), true, msg) }
func (l *Logger) Debug(msg string)    { l.emit(record.Debug, callSite(0), true, msg) }
func (l *Logger) Fine(msg string)     { l.emit(record.Fine, callSite(0), true, msg) }
func (l *Logger) Warning(msg string)  { l.emit(record.Warning, callSite(0), true, msg) }
func (l *Logger) Critical(msg string) { l.emit(record.Critical, callSite(0), true, msg) }
func (l *Logger) Fatal(msg string)    { l.emit(record.Fatal, callSite(0), true, msg) }

func (l *Logger) Infof(format string, args ...any) {
	l.emit(record.Info, callSite(0), true, fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...any) {
	l.emit(record.Debug, callSite(0), true, fmt.Sprintf(format, args...))
}

func (l *Logger) Finef(format string, args ...any) {
	l.emit(record.Fine, callSite(0), true, fmt.Sprintf(format, args...))
}

func (l *Logger) Warningf(format string, args ...any) {
	l.emit(record.Warning, callSite(0), true, fmt.Sprintf(format, args...))
}

func (l *Logger) Criticalf(format string, args ...any) {
	l.emit(record.Critical, callSite(0), true, fmt.Sprintf(format, args...))
}

func (l *Logger) Fatalf(format string, args ...any) {
	l.emit(record.Fatal, callSite(0), true, fmt.Sprintf(format, args...))
}

func (l *Logger) InfoInline(msg string)    { l.emit(record.Info, callSite(0), false, msg) }
func (l *Logger) DebugInline(msg string)   { l.emit(record.Debug, callSite(0), false, msg) }
func (l *Logger) FineInline(msg string)    { l.emit(record.Fine, callSite(0), false, msg) }
func (l *Logger) WarningInline(msg string) { l.emit(record.Warning, callSite(0), false, msg) }

// Flush archives everything buffered.
func (l *Logger) Flush(trigger string) { l.buf.Flush(trigger) }

// Close releases the mirror files. It does not flush.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []error
	for _, c := range []io.Closer{l.fileOut, l.fileErr} {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	l.fileOut, l.fileErr = nil, nil
	return errors.Join(errs...)
}

func (l *Logger) emit(level record.Level, site string, newline bool, msg string) {
	key, name := l.Resolve()
	r := record.New(string(key), name, level, msg, site, l.now())
	l.write(r, newline)
	metrics.IncLogRecord(r.Service, level.String())
	l.buf.Add(r)
}

func (l *Logger) write(r record.Record, newline bool) {
	lvl := r.Level.String()
	plain := format(r, lvl, newline)
	console := plain
	if l.color {
		console = format(r, r.Level.Colored(), newline)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	w, f := l.out, l.fileOut
	if r.Level.IsError() {
		w, f = l.err, l.fileErr
	}
	_, _ = io.WriteString(w, console)
	if f != nil {
		_, _ = io.WriteString(f, plain)
	}
}

// format renders "[HH:MM:SS | name | LEVEL] message". Fatal records carry
// their call site.
func format(r record.Record, lvl string, newline bool) string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(r.Time.Format(time.TimeOnly))
	b.WriteString(" | ")
	b.WriteString(r.ServiceName)
	b.WriteString(" | ")
	b.WriteString(lvl)
	b.WriteString("] ")
	b.WriteString(r.Message)
	if r.Level == record.Fatal && r.CallSite != "" {
		b.WriteString(" at:\n\t")
		b.WriteString(r.CallSite)
	}
	if newline {
		b.WriteByte('\n')
	}
	return b.String()
}

// callSite describes the frame depth levels above the caller of the
// exported function that invoked it.
func callSite(depth int) string {
	if depth < 0 {
		depth = 0
	}
	pc, file, line, ok := runtime.Caller(depth + 2)
	if !ok {
		pc, file, line, ok = runtime.Caller(2)
		if !ok {
			return ""
		}
	}
	return frameString(pc, file, line)
}

func frameString(pc uintptr, file string, line int) string {
	fn := "?"
	if f := runtime.FuncForPC(pc); f != nil {
		fn = f.Name()
	}
	return fmt.Sprintf("%s(%s:%d)", fn, filepath.Base(file), line)
}
