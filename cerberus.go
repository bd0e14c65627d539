package cerberus

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/archive"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/archive/factory"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/config"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/logger"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/metrics"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/record"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/server"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/service"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/supervisor"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/terminal"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/worker"
)

// Public API wrappers to expose internal functionality to external users.

type Key = service.Key

type Service = service.Service

// Func builds a Service from plain functions.
type Func = service.Func

type Worker = worker.Worker

type WorkerGroup = worker.Group

type Registry = supervisor.Registry

type Options = supervisor.Options

type LogOptions = logger.Options

type Level = record.Level

type Record = record.Record

type Query = record.Query

type Archive = archive.Archive

type Command = terminal.Command

type Permissions = terminal.Permissions

type Config = config.FileConfig

const (
	Info     = record.Info
	Debug    = record.Debug
	Fine     = record.Fine
	Warning  = record.Warning
	Critical = record.Critical
	Fatal    = record.Fatal
)

const MainKey = supervisor.MainKey

var (
	ErrServiceNotFound     = service.ErrServiceNotFound
	ErrIllegalServiceState = service.ErrIllegalServiceState
	ErrAlreadyBootstrapped = errors.New("registry already bootstrapped")
	ErrNotBootstrapped     = errors.New("registry not bootstrapped")
)

var (
	mu       sync.Mutex
	instance *supervisor.Registry
)

// Bootstrap creates the process-wide registry and starts its main service on
// the calling goroutine.
func Bootstrap(opts Options) (*Registry, error) {
	mu.Lock()
	defer mu.Unlock()
	if instance != nil {
		return nil, ErrAlreadyBootstrapped
	}
	r, err := supervisor.New(opts)
	if err != nil {
		return nil, err
	}
	if err := r.Bootstrap(); err != nil {
		_ = r.Shutdown()
		return nil, err
	}
	instance = r
	return r, nil
}

// Instance returns the bootstrapped registry, or nil.
func Instance() *Registry {
	mu.Lock()
	defer mu.Unlock()
	return instance
}

// Shutdown stops every service, flushes the log buffer and forgets the
// process-wide registry so that Bootstrap may be called again.
func Shutdown() error {
	mu.Lock()
	r := instance
	instance = nil
	mu.Unlock()
	if r == nil {
		return ErrNotBootstrapped
	}
	return r.Shutdown()
}

func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// OptionsFromConfig opens the configured archive and maps the file
// configuration onto registry options. in feeds the terminal.
func OptionsFromConfig(c *Config, in io.Reader) (Options, error) {
	arc, err := factory.NewFromDSN(c.Log.ArchiveDSN)
	if err != nil {
		return Options{}, fmt.Errorf("open archive: %w", err)
	}
	var perms terminal.Permissions
	if len(c.Terminal.Permissions) > 0 {
		perms = terminal.PermissionSet(c.Terminal.Permissions)
	}
	return Options{
		Log: logger.Options{
			Color:          c.Log.Color,
			HighWaterMark:  c.Log.HighWaterMark,
			Archive:        arc,
			ArchiveTimeout: c.Log.ArchiveTimeout,
			Files:          c.Log.Files(),
		},
		DefaultService: service.Key(c.DefaultService),
		FlushSchedule:  c.Log.FlushSchedule,
		Terminal:       c.Terminal.Enabled,
		Input:          in,
		Prompt:         c.Terminal.Prompt,
		Permissions:    perms,
		CaptureSlog:    c.Log.CaptureSlog,
	}, nil
}

func NewHTTPServer(addr, basePath string, r *Registry) (*http.Server, error) {
	return server.NewServer(addr, basePath, r)
}

// Metrics helpers
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// NewMetricsServer returns an unstarted server exposing /metrics on addr.
func NewMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Log helpers write through the bootstrapped registry and are dropped
// before Bootstrap.

func logAt(level record.Level, msg string) {
	if r := Instance(); r != nil {
		r.Logger().LogDepth(level, 2, msg)
	}
}

func LogInfo(msg string)     { logAt(record.Info, msg) }
func LogDebug(msg string)    { logAt(record.Debug, msg) }
func LogFine(msg string)     { logAt(record.Fine, msg) }
func LogWarning(msg string)  { logAt(record.Warning, msg) }
func LogCritical(msg string) { logAt(record.Critical, msg) }
func LogFatal(msg string)    { logAt(record.Fatal, msg) }

func LogInfof(format string, args ...any)    { logAt(record.Info, fmt.Sprintf(format, args...)) }
func LogWarningf(format string, args ...any) { logAt(record.Warning, fmt.Sprintf(format, args...)) }
func LogCriticalf(format string, args ...any) {
	logAt(record.Critical, fmt.Sprintf(format, args...))
}
