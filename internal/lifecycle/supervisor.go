package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/metrics"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/registry"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/service"
)

// NotRunning is returned by OnlineTime for services that are not running.
const NotRunning int64 = -1

// Supervisor tracks which registered services are running and enforces the
// Stopped <-> Running state machine. Presence in the running set is the
// definition of running.
//
// The running mark is written before the start hook is invoked, so a hook
// (and any observer racing with it) already sees the service as running.
// Hooks are invoked outside the lock.
type Supervisor struct {
	dir *registry.Directory
	now func() time.Time

	mu      sync.Mutex
	seq     uint64
	running map[service.Key]mark
}

// mark is one running entry. seq identifies the Start call that wrote it.
type mark struct {
	at  time.Time
	seq uint64
}

func New(dir *registry.Directory) *Supervisor {
	return &Supervisor{
		dir:     dir,
		now:     time.Now,
		running: make(map[service.Key]mark),
	}
}

// Start marks the service running and invokes its start hook.
// It fails with service.ErrServiceNotFound for unknown keys and with
// service.ErrIllegalServiceState when the service is already running.
// If the hook fails or panics the running mark is rolled back, unless a
// later Start has replaced it in the meantime.
func (s *Supervisor) Start(key service.Key) (service.Service, error) {
	svc, err := s.dir.Get(key)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if _, ok := s.running[key]; ok {
		s.mu.Unlock()
		return svc, &service.StateError{Key: key, Running: true, Op: "start"}
	}
	s.seq++
	own := mark{at: s.now(), seq: s.seq}
	s.running[key] = own
	s.mu.Unlock()

	if err := safeStart(svc); err != nil {
		s.mu.Lock()
		m, ok := s.running[key]
		owned := ok && m.seq == own.seq
		if owned {
			delete(s.running, key)
		}
		s.mu.Unlock()
		metrics.IncHookFailure(string(key), "start")
		if owned {
			metrics.SetRunning(string(key), false)
		}
		return svc, fmt.Errorf("start service %s: %w", key, err)
	}
	metrics.IncStart(string(key))
	return svc, nil
}

// StartAll attempts to start every registered service. Services that are
// already running count as started; other failures are skipped without
// aborting the batch and are only visible at debug level.
func (s *Supervisor) StartAll() {
	for _, svc := range s.dir.All() {
		if _, err := s.Start(svc.Key()); err != nil {
			if errors.Is(err, service.ErrIllegalServiceState) {
				continue
			}
			slog.Debug("bulk start skipped service", "service", svc.Key(), "error", err)
		}
	}
}

// Stop removes the service from the running set and invokes its stop hook.
// It fails with service.ErrServiceNotFound for unknown keys and with
// service.ErrIllegalServiceState when the service is not running. A failing
// hook is returned wrapped; the service is stopped either way.
func (s *Supervisor) Stop(key service.Key) (service.Service, error) {
	svc, err := s.claim(key, "stop")
	if err != nil {
		return svc, err
	}
	metrics.IncStop(string(key), "single")
	if err := svc.Stop(); err != nil {
		metrics.IncHookFailure(string(key), "stop")
		return svc, fmt.Errorf("stop service %s: %w", key, err)
	}
	return svc, nil
}

// StopAll stops every running service and clears the running set. The set
// is cleared even if individual stop hooks fail; failures are only visible at
// debug level.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	keys := make([]service.Key, 0, len(s.running))
	for k := range s.running {
		keys = append(keys, k)
	}
	clear(s.running)
	s.mu.Unlock()

	for _, k := range keys {
		svc, ok := s.dir.Lookup(k)
		if !ok {
			continue
		}
		metrics.IncStop(string(k), "bulk")
		if err := safeStop(svc); err != nil {
			metrics.IncHookFailure(string(k), "stop")
			slog.Debug("bulk stop hook failed", "service", k, "error", err)
		}
	}
}

// ForceStop interrupts every worker the service owns and then invokes its
// stop hook. The service may be in the middle of an operation; partial state
// is possible.
func (s *Supervisor) ForceStop(key service.Key) (service.Service, error) {
	svc, err := s.claim(key, "stop")
	if err != nil {
		return svc, err
	}
	for _, w := range svc.Workers() {
		if w != nil {
			w.Interrupt()
		}
	}
	metrics.IncStop(string(key), "force")
	if err := svc.Stop(); err != nil {
		metrics.IncHookFailure(string(key), "stop")
		return svc, fmt.Errorf("force stop service %s: %w", key, err)
	}
	return svc, nil
}

func (s *Supervisor) IsRunning(key service.Key) bool {
	s.mu.Lock()
	_, ok := s.running[key]
	s.mu.Unlock()
	return ok
}

// OnlineTime returns the epoch milliseconds at which the service was last
// started, or NotRunning.
func (s *Supervisor) OnlineTime(key service.Key) int64 {
	s.mu.Lock()
	m, ok := s.running[key]
	s.mu.Unlock()
	if !ok {
		return NotRunning
	}
	return m.at.UnixMilli()
}

// StartedAt is OnlineTime as a time.Time.
func (s *Supervisor) StartedAt(key service.Key) (time.Time, bool) {
	s.mu.Lock()
	m, ok := s.running[key]
	s.mu.Unlock()
	return m.at, ok
}

// Running returns a snapshot of the running set.
func (s *Supervisor) Running() map[service.Key]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[service.Key]time.Time, len(s.running))
	for k, v := range s.running {
		out[k] = v.at
	}
	return out
}

// claim resolves key and removes it from the running set in one step.
func (s *Supervisor) claim(key service.Key, op string) (service.Service, error) {
	svc, err := s.dir.Get(key)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.running[key]; !ok {
		return svc, &service.StateError{Key: key, Running: false, Op: op}
	}
	delete(s.running, key)
	return svc, nil
}

func safeStart(svc service.Service) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in start hook: %v", r)
		}
	}()
	return svc.Start()
}

func safeStop(svc service.Service) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in stop hook: %v", r)
		}
	}()
	return svc.Stop()
}
