package service

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceNotFound is returned when a lookup by key, worker or name misses.
	ErrServiceNotFound = errors.New("service not found")
	// ErrIllegalServiceState is returned when a transition is not allowed in the
	// current state (double start, stop while stopped, commands while stopped).
	ErrIllegalServiceState = errors.New("illegal service state")
)

// NotFoundError describes a failed lookup. It matches ErrServiceNotFound.
type NotFoundError struct {
	By    string // "key", "worker" or "name"
	Value string
}

func (e *NotFoundError) Error() string {
	switch e.By {
	case "worker":
		return fmt.Sprintf("goroutine %s is not owned by any service", e.Value)
	case "name":
		return fmt.Sprintf("no service is registered under the name %q", e.Value)
	default:
		return fmt.Sprintf("no service is registered with key %q", e.Value)
	}
}

func (e *NotFoundError) Unwrap() error { return ErrServiceNotFound }

// StateError describes a rejected transition. It matches ErrIllegalServiceState.
type StateError struct {
	Key     Key
	Running bool
	Op      string
}

func (e *StateError) Error() string {
	state := "stopped"
	if e.Running {
		state = "running"
	}
	if e.Op == "" {
		return fmt.Sprintf("service %s is %s", e.Key, state)
	}
	return fmt.Sprintf("cannot %s service %s: already %s", e.Op, e.Key, state)
}

func (e *StateError) Unwrap() error { return ErrIllegalServiceState }
