package service

import (
	"slices"
	"strings"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/worker"
)

// Key identifies a registered service. Only one service may be registered per key.
type Key string

func (k Key) String() string { return string(k) }

// Service is a unit of functionality with a start/stop lifecycle.
// Start and Stop are invoked by the lifecycle supervisor; implementations do
// not need to guard against double invocation.
type Service interface {
	Key() Key
	// Name is the declared simple name used for name based lookups.
	Name() string
	Start() error
	Stop() error
	// Workers lists the goroutines the service currently owns. May be empty.
	Workers() []*worker.Worker
}

// Func builds a Service from plain functions. Nil hooks are no-ops.
// Goroutines started through Group are reported as owned workers.
type Func struct {
	ServiceKey  Key
	ServiceName string
	OnStart     func() error
	OnStop      func() error
	Group       worker.Group
}

func (f *Func) Key() Key { return f.ServiceKey }

func (f *Func) Name() string {
	if f.ServiceName == "" {
		return string(f.ServiceKey)
	}
	return f.ServiceName
}

func (f *Func) Start() error {
	if f.OnStart == nil {
		return nil
	}
	return f.OnStart()
}

func (f *Func) Stop() error {
	if f.OnStop == nil {
		return nil
	}
	return f.OnStop()
}

func (f *Func) Workers() []*worker.Worker { return f.Group.Workers() }

// SortByKey orders services by key in place.
func SortByKey(svcs []Service) {
	slices.SortFunc(svcs, func(a, b Service) int { return strings.Compare(string(a.Key()), string(b.Key())) })
}
