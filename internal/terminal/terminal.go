package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// Printer receives the terminal's own messages.
type Printer interface {
	Info(msg string)
	Warning(msg string)
}

// Options configures a Terminal.
type Options struct {
	Prompt    string    // printed before each read when PromptOut is set
	PromptOut io.Writer // usually os.Stdout
}

// Terminal reads command lines and dispatches them to an Executor.
type Terminal struct {
	exec  *Executor
	in    io.Reader
	out   Printer
	perms Permissions
	opts  Options

	mu   sync.Mutex
	last Command
}

// New creates a terminal. A nil perms grants everything.
func New(exec *Executor, in io.Reader, out Printer, perms Permissions, opts Options) *Terminal {
	if exec == nil {
		exec = NewExecutor()
	}
	if perms == nil {
		perms = AllowAll{}
	}
	return &Terminal{exec: exec, in: in, out: out, perms: perms, opts: opts}
}

func (t *Terminal) Executor() *Executor { return t.exec }

func (t *Terminal) Permissions() Permissions { return t.perms }

// Run reads lines until the input ends or ctx is cancelled. Commands are
// executed on the calling goroutine.
func (t *Terminal) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(t.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		t.prompt()
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			t.Dispatch(line)
		}
	}
}

func (t *Terminal) prompt() {
	if t.opts.PromptOut != nil && t.opts.Prompt != "" {
		_, _ = io.WriteString(t.opts.PromptOut, t.opts.Prompt)
	}
}

// Dispatch executes one command line.
func (t *Terminal) Dispatch(line string) {
	args := Split(line)
	if len(args) == 0 {
		t.mu.Lock()
		last := t.last
		t.mu.Unlock()
		if pc, ok := last.(ProcessCommand); ok {
			pc.Exit()
		}
		return
	}

	c, ok := t.exec.Lookup(args[0])
	if !ok {
		t.out.Warning(fmt.Sprintf("Command %q not found!", args[0]))
		return
	}
	if !t.perms.HasPermission(c.Permission()) {
		t.out.Warning("Access denied! Required permission:\n" + c.Permission())
		return
	}
	if !c.Execute(t.perms, args[1:]) {
		t.out.Warning("Wrong usage! Try: " + c.Usage())
		return
	}
	t.mu.Lock()
	t.last = c
	t.mu.Unlock()
}
