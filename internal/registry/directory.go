package registry

import (
	"strconv"
	"strings"
	"sync"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/metrics"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/service"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/worker"
)

// Directory holds the registered services keyed by service.Key.
// Entries are never removed; the first registration for a key wins.
type Directory struct {
	mu       sync.RWMutex
	services map[service.Key]service.Service
}

func NewDirectory() *Directory {
	return &Directory{services: make(map[service.Key]service.Service)}
}

// Register stores s unless its key is already taken. It returns the service
// now on file and whether s was inserted.
func (d *Directory) Register(s service.Service) (service.Service, bool) {
	k := s.Key()
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.services[k]; ok {
		return cur, false
	}
	d.services[k] = s
	metrics.SetRegistered(len(d.services))
	return s, true
}

// Lookup returns the service registered under key.
func (d *Directory) Lookup(key service.Key) (service.Service, bool) {
	d.mu.RLock()
	s, ok := d.services[key]
	d.mu.RUnlock()
	return s, ok
}

// Get is Lookup with the miss reported as service.ErrServiceNotFound.
func (d *Directory) Get(key service.Key) (service.Service, error) {
	if s, ok := d.Lookup(key); ok {
		return s, nil
	}
	return nil, &service.NotFoundError{By: "key", Value: string(key)}
}

func (d *Directory) Contains(key service.Key) bool {
	_, ok := d.Lookup(key)
	return ok
}

// Owner returns the service that reports the goroutine id among its workers.
// This is a linear scan over all services and their workers.
func (d *Directory) Owner(id worker.ID) (service.Service, bool) {
	if id == 0 {
		return nil, false
	}
	for _, s := range d.All() {
		for _, w := range s.Workers() {
			if w != nil && w.ID() == id {
				return s, true
			}
		}
	}
	return nil, false
}

// GetByWorker is Owner with the miss reported as service.ErrServiceNotFound.
func (d *Directory) GetByWorker(id worker.ID) (service.Service, error) {
	if s, ok := d.Owner(id); ok {
		return s, nil
	}
	return nil, &service.NotFoundError{By: "worker", Value: strconv.FormatUint(uint64(id), 10)}
}

// FindByName resolves a service by its declared name in three passes: exact
// match, case-insensitive match, then case-insensitive substring match.
// Within the fallback passes the first service in map iteration order wins,
// so ambiguous fragments do not resolve deterministically.
func (d *Directory) FindByName(fragment string) (service.Service, bool) {
	all := d.All()
	for _, s := range all {
		if s.Name() == fragment {
			return s, true
		}
	}
	for _, s := range all {
		if strings.EqualFold(s.Name(), fragment) {
			return s, true
		}
	}
	lower := strings.ToLower(fragment)
	for _, s := range all {
		if strings.Contains(strings.ToLower(s.Name()), lower) {
			return s, true
		}
	}
	return nil, false
}

// GetByName is FindByName with the miss reported as service.ErrServiceNotFound.
func (d *Directory) GetByName(fragment string) (service.Service, error) {
	if s, ok := d.FindByName(fragment); ok {
		return s, nil
	}
	return nil, &service.NotFoundError{By: "name", Value: fragment}
}

// All returns a snapshot of the registered services in unspecified order.
func (d *Directory) All() []service.Service {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]service.Service, 0, len(d.services))
	for _, s := range d.services {
		out = append(out, s)
	}
	return out
}

// Len returns the number of registered services.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.services)
}
