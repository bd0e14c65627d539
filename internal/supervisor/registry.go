package supervisor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/archive"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/lifecycle"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/logger"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/registry"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/service"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/terminal"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/worker"
)

// Options configures a Registry.
type Options struct {
	Log logger.Options
	// DefaultService receives records from goroutines no service owns.
	// Defaults to MainKey.
	DefaultService service.Key
	// FlushSchedule is an optional cron spec for periodic archive flushes.
	FlushSchedule string

	Terminal    bool
	Input       io.Reader // terminal input, os.Stdin when nil
	Prompt      string
	Permissions terminal.Permissions
	// CaptureSlog routes the default slog logger (and the log package)
	// through the attribution logger while the main service runs.
	CaptureSlog bool
}

// Registry ties the service directory, the lifecycle supervisor and the
// attribution logger together behind one handle.
type Registry struct {
	dir   *registry.Directory
	life  *lifecycle.Supervisor
	log   *logger.Logger
	arc   archive.Archive
	main  *MainService
	flush *logger.FlushScheduler

	bootOnce sync.Once
	bootErr  error
	shutOnce sync.Once
	shutErr  error
}

func New(opts Options) (*Registry, error) {
	if opts.DefaultService == "" {
		opts.DefaultService = MainKey
	}
	if opts.Log.Archive == nil {
		opts.Log.Archive = archive.Nop{}
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	opts.Log.DefaultKey = opts.DefaultService
	promptOut := opts.Log.Out
	if promptOut == nil {
		promptOut = os.Stdout
	}

	dir := registry.NewDirectory()
	r := &Registry{
		dir:  dir,
		life: lifecycle.New(dir),
		log:  logger.New(dir, opts.Log),
		arc:  opts.Log.Archive,
	}
	if opts.FlushSchedule != "" {
		f, err := logger.NewFlushScheduler(opts.FlushSchedule, r.log)
		if err != nil {
			return nil, err
		}
		r.flush = f
	}
	r.main = &MainService{
		reg:         r,
		useTerminal: opts.Terminal,
		input:       opts.Input,
		perms:       opts.Permissions,
		termOpts:    terminal.Options{Prompt: opts.Prompt, PromptOut: promptOut},
		captureSlog: opts.CaptureSlog,
	}
	return r, nil
}

// Bootstrap registers and starts the main service on the calling goroutine
// and starts the flush schedule. Only the first call has an effect.
func (r *Registry) Bootstrap() error {
	r.bootOnce.Do(func() {
		r.dir.Register(r.main)
		if _, err := r.life.Start(MainKey); err != nil {
			r.bootErr = fmt.Errorf("start main service: %w", err)
			return
		}
		if r.flush != nil {
			r.flush.Start()
		}
	})
	return r.bootErr
}

// Shutdown stops every running service, flushes all buffered records, then
// releases the log files and the archive. Only the first call has an effect.
func (r *Registry) Shutdown() error {
	r.shutOnce.Do(func() {
		if r.flush != nil {
			r.flush.Stop()
		}
		r.life.StopAll()
		r.log.Flush(logger.TriggerShutdown)
		if !r.log.Buffer().Wait(0) {
			r.log.Diagnostics().Warn("archive still busy at shutdown, closing anyway")
		}
		r.shutErr = errors.Join(r.log.Close(), r.arc.Close())
	})
	return r.shutErr
}

func (r *Registry) Directory() *registry.Directory   { return r.dir }
func (r *Registry) Lifecycle() *lifecycle.Supervisor { return r.life }
func (r *Registry) Logger() *logger.Logger           { return r.log }
func (r *Registry) Archive() archive.Archive         { return r.arc }
func (r *Registry) Main() *MainService               { return r.main }

// Register adds s unless its key is taken; the service on file is returned.
func (r *Registry) Register(s service.Service) (service.Service, bool) { return r.dir.Register(s) }

func (r *Registry) Get(key service.Key) (service.Service, error) { return r.dir.Get(key) }

func (r *Registry) GetByName(fragment string) (service.Service, error) {
	return r.dir.GetByName(fragment)
}

func (r *Registry) GetByWorker(id worker.ID) (service.Service, error) {
	return r.dir.GetByWorker(id)
}

// Current returns the service owning the calling goroutine.
func (r *Registry) Current() (service.Service, error) {
	return r.dir.GetByWorker(worker.CurrentID())
}

func (r *Registry) Services() []service.Service { return r.dir.All() }

func (r *Registry) Start(key service.Key) (service.Service, error) { return r.life.Start(key) }
func (r *Registry) StartAll()                                      { r.life.StartAll() }
func (r *Registry) Stop(key service.Key) (service.Service, error)  { return r.life.Stop(key) }
func (r *Registry) StopAll()                                       { r.life.StopAll() }

func (r *Registry) ForceStop(key service.Key) (service.Service, error) {
	return r.life.ForceStop(key)
}

func (r *Registry) IsRunning(key service.Key) bool   { return r.life.IsRunning(key) }
func (r *Registry) OnlineTime(key service.Key) int64 { return r.life.OnlineTime(key) }

// Terminal returns the main service's terminal. It fails with
// ErrIllegalServiceState while the main service is stopped or runs without
// a terminal.
func (r *Registry) Terminal() (*terminal.Terminal, error) {
	if !r.life.IsRunning(MainKey) {
		return nil, &service.StateError{Key: MainKey}
	}
	t := r.main.Terminal()
	if t == nil {
		return nil, fmt.Errorf("%w: main service runs without a terminal", service.ErrIllegalServiceState)
	}
	return t, nil
}

// RegisterCommand adds c to the terminal. Duplicate names are ignored.
func (r *Registry) RegisterCommand(c terminal.Command) error {
	t, err := r.Terminal()
	if err != nil {
		return err
	}
	t.Executor().Register(c)
	return nil
}

func (r *Registry) UnregisterCommand(name string) error {
	t, err := r.Terminal()
	if err != nil {
		return err
	}
	t.Executor().Unregister(name)
	return nil
}

// NoPermission prints the standard access denied warning.
func (r *Registry) NoPermission() {
	r.log.Warning("Access denied! If you think this is a mistake contact your local system administrator.")
}
