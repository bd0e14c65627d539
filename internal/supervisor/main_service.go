package supervisor

import (
	"context"
	"io"
	"log"
	"log/slog"
	"sync"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/logger"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/service"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/terminal"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/worker"
)

const (
	MainKey  service.Key = "MAIN"
	MainName             = "MainService"
)

// Permissions checked by the built-in terminal commands.
const (
	PermRegistry = "cerberus.registry"
	PermStop     = PermRegistry + ".stop"
	PermStart    = PermRegistry + ".start"
	PermTime     = PermRegistry + ".time"
	PermStatus   = PermRegistry + ".status"
	PermHelp     = PermRegistry + ".help"
	PermList     = PermRegistry + ".list"
	PermExit     = PermStop
)

// MainService is the service every registry starts with. It owns the
// goroutine that bootstrapped the registry and, when enabled, the terminal.
type MainService struct {
	reg *Registry

	useTerminal bool
	input       io.Reader
	perms       terminal.Permissions
	termOpts    terminal.Options
	captureSlog bool

	group worker.Group

	mu       sync.Mutex
	boot     *worker.Worker
	term     *terminal.Terminal
	termW    *worker.Worker
	done     chan struct{}
	prevSlog *slog.Logger
	prevLog  io.Writer
}

func (m *MainService) Key() service.Key { return MainKey }
func (m *MainService) Name() string     { return MainName }

func (m *MainService) Workers() []*worker.Worker { return m.group.Workers() }

// Start adopts the calling goroutine and launches the terminal worker.
func (m *MainService) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.done = make(chan struct{})
	m.boot = m.group.Adopt("bootstrap")

	if m.captureSlog {
		m.prevSlog, m.prevLog = slog.Default(), log.Writer()
		slog.SetDefault(slog.New(logger.NewHandler(m.reg.log)))
	}

	if m.useTerminal {
		exec := terminal.NewExecutor()
		exec.Register(&serviceCommand{reg: m.reg})
		exec.Register(&helpCommand{reg: m.reg})
		exec.Register(&exitCommand{reg: m.reg})
		m.term = terminal.New(exec, m.input, m.reg.log, m.perms, m.termOpts)
		term := m.term
		m.termW = m.group.Go("terminal", func(ctx context.Context) {
			if err := term.Run(ctx); err != nil {
				m.reg.log.Warningf("terminal stopped: %v", err)
			}
		})
	}
	return nil
}

// Stop cancels the terminal worker and releases the bootstrap goroutine. It
// does not wait for the terminal, which may be the caller.
func (m *MainService) Stop() error {
	m.reg.log.Info("Shutting down main service")

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.termW != nil {
		m.termW.Interrupt()
		m.termW = nil
	}
	m.term = nil
	m.group.Release(m.boot)
	m.boot = nil
	if m.prevSlog != nil {
		slog.SetDefault(m.prevSlog)
		log.SetOutput(m.prevLog)
		m.prevSlog, m.prevLog = nil, nil
	}
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	return nil
}

// Terminal returns the running terminal, nil when disabled or stopped.
func (m *MainService) Terminal() *terminal.Terminal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.term
}

// Done is closed when the main service stops. It returns nil while stopped.
func (m *MainService) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}
