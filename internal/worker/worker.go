package worker

import (
	"bytes"
	"context"
	"runtime"
	"strconv"
	"sync"
)

// ID identifies a goroutine. Zero means unknown.
type ID uint64

var goroutinePrefix = []byte("goroutine ")

// CurrentID returns the id of the calling goroutine.
// The runtime does not expose it directly, so it is read from the header line
// of the goroutine's own stack trace ("goroutine 42 [running]:").
func CurrentID() ID {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return ID(id)
}

// Worker is a goroutine owned by a service.
type Worker struct {
	id     ID
	name   string
	ctx    context.Context
	cancel context.CancelFunc
}

func (w *Worker) ID() ID                   { return w.id }
func (w *Worker) Name() string             { return w.name }
func (w *Worker) Context() context.Context { return w.ctx }

// Interrupt cancels the worker's context. Safe to call more than once.
func (w *Worker) Interrupt() { w.cancel() }

// Interrupted reports whether Interrupt has been called.
func (w *Worker) Interrupted() bool { return w.ctx.Err() != nil }

// Group tracks the workers a service owns.
// The zero value is ready to use.
type Group struct {
	mu      sync.RWMutex
	workers map[*Worker]struct{}
	wg      sync.WaitGroup
}

// Go runs fn on a new owned goroutine. It returns once the goroutine is
// running and registered, so the caller can rely on ownership immediately.
// The worker leaves the group when fn returns.
func (g *Group) Go(name string, fn func(ctx context.Context)) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{name: name, ctx: ctx, cancel: cancel}
	ready := make(chan struct{})
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		w.id = CurrentID()
		g.add(w)
		close(ready)
		defer func() {
			g.remove(w)
			cancel()
		}()
		fn(ctx)
	}()
	<-ready
	return w
}

// Adopt claims the calling goroutine as an owned worker. The caller must
// Release it when the goroutine stops acting for the service.
func (g *Group) Adopt(name string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{id: CurrentID(), name: name, ctx: ctx, cancel: cancel}
	g.add(w)
	return w
}

// Release removes w from the group and cancels its context.
func (g *Group) Release(w *Worker) {
	if w == nil {
		return
	}
	g.remove(w)
	w.cancel()
}

// Workers returns a snapshot of the owned workers.
func (g *Group) Workers() []*Worker {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Worker, 0, len(g.workers))
	for w := range g.workers {
		out = append(out, w)
	}
	return out
}

// Owns reports whether a worker with the given id belongs to the group.
func (g *Group) Owns(id ID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for w := range g.workers {
		if w.id == id {
			return true
		}
	}
	return false
}

// Len returns the number of owned workers.
func (g *Group) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.workers)
}

// Interrupt cancels every owned worker.
func (g *Group) Interrupt() {
	for _, w := range g.Workers() {
		w.Interrupt()
	}
}

// Wait blocks until every goroutine started with Go has returned.
// Adopted workers are not waited for.
func (g *Group) Wait() { g.wg.Wait() }

func (g *Group) add(w *Worker) {
	g.mu.Lock()
	if g.workers == nil {
		g.workers = make(map[*Worker]struct{})
	}
	g.workers[w] = struct{}{}
	g.mu.Unlock()
}

func (g *Group) remove(w *Worker) {
	g.mu.Lock()
	delete(g.workers, w)
	g.mu.Unlock()
}
