package terminal

import (
	"sort"
	"sync"
)

// Command is an entry in the terminal's command table.
type Command interface {
	// Name is the word that invokes the command.
	Name() string
	Usage() string
	// Permission is required to run the command at all. Commands may check
	// finer permissions on p themselves.
	Permission() string
	// Execute runs the command and reports whether the arguments were valid.
	Execute(p Permissions, args []string) bool
}

// ProcessCommand is a command that keeps running after Execute returns.
// An empty input line calls Exit on the last executed ProcessCommand.
type ProcessCommand interface {
	Command
	Exit()
}

// Executor is the command table.
type Executor struct {
	mu       sync.RWMutex
	commands map[string]Command
}

func NewExecutor() *Executor {
	return &Executor{commands: make(map[string]Command)}
}

// Register adds c unless a command with the same name exists.
// It reports whether c was added.
func (e *Executor) Register(c Command) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.commands[c.Name()]; ok {
		return false
	}
	e.commands[c.Name()] = c
	return true
}

// Unregister removes the command registered under name.
func (e *Executor) Unregister(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.commands[name]; !ok {
		return false
	}
	delete(e.commands, name)
	return true
}

func (e *Executor) Lookup(name string) (Command, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.commands[name]
	return c, ok
}

// Commands returns the registered commands sorted by name.
func (e *Executor) Commands() []Command {
	e.mu.RLock()
	out := make([]Command, 0, len(e.commands))
	for _, c := range e.commands {
		out = append(out, c)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (e *Executor) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.commands)
}
