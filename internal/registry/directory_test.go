package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/service"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/worker"
)

func newSvc(key, name string) *service.Func {
	return &service.Func{ServiceKey: service.Key(key), ServiceName: name}
}

func TestGetUnknownKey(t *testing.T) {
	d := NewDirectory()
	_, err := d.Get("MISSING")
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrServiceNotFound))
	assert.Contains(t, err.Error(), "MISSING")
	assert.False(t, d.Contains("MISSING"))
}

func TestRegisterThenGet(t *testing.T) {
	d := NewDirectory()
	s := newSvc("MAIN", "MainService")
	got, inserted := d.Register(s)
	assert.True(t, inserted)
	assert.Same(t, s, got)

	found, err := d.Get("MAIN")
	require.NoError(t, err)
	assert.Same(t, s, found)
	assert.True(t, d.Contains("MAIN"))
}

func TestRegisterFirstWins(t *testing.T) {
	d := NewDirectory()
	first := newSvc("K", "First")
	second := newSvc("K", "Second")
	d.Register(first)
	got, inserted := d.Register(second)
	assert.False(t, inserted)
	assert.Same(t, first, got)

	found, err := d.Get("K")
	require.NoError(t, err)
	assert.Same(t, first, found)
	assert.Equal(t, 1, d.Len())
}

func TestFindByNamePasses(t *testing.T) {
	d := NewDirectory()
	alpha := newSvc("A", "Alpha")
	alphaBeta := newSvc("AB", "AlphaBeta")
	d.Register(alphaBeta)
	d.Register(alpha)

	for i := 0; i < 20; i++ {
		got, err := d.GetByName("Alpha")
		require.NoError(t, err)
		assert.Same(t, alpha, got, "exact match must beat substring")

		got, err = d.GetByName("alpha")
		require.NoError(t, err)
		assert.Same(t, alpha, got, "case-insensitive exact match must beat substring")
	}

	got, err := d.GetByName("beta")
	require.NoError(t, err)
	assert.Same(t, alphaBeta, got)

	_, err = d.GetByName("gamma")
	assert.ErrorIs(t, err, service.ErrServiceNotFound)
}

func TestOwnerByWorker(t *testing.T) {
	d := NewDirectory()
	s := newSvc("NET", "Network")
	d.Register(s)
	d.Register(newSvc("IDLE", "Idle"))

	release := make(chan struct{})
	ids := make(chan worker.ID, 1)
	s.Group.Go("reader", func(ctx context.Context) {
		ids <- worker.CurrentID()
		<-release
	})
	id := <-ids

	got, err := d.GetByWorker(id)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = d.GetByWorker(worker.CurrentID())
	assert.ErrorIs(t, err, service.ErrServiceNotFound)
	_, ok := d.Owner(0)
	assert.False(t, ok)

	close(release)
	s.Group.Wait()
	_, ok = d.Owner(id)
	assert.False(t, ok)
}

func TestAllIsSnapshot(t *testing.T) {
	d := NewDirectory()
	d.Register(newSvc("A", "A"))
	snap := d.All()
	d.Register(newSvc("B", "B"))
	assert.Len(t, snap, 1)
	assert.Len(t, d.All(), 2)
}

func TestConcurrentRegister(t *testing.T) {
	d := NewDirectory()
	const n = 50
	var wg sync.WaitGroup
	inserted := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok := d.Register(newSvc("SAME", fmt.Sprintf("svc-%d", i)))
			inserted <- ok
			d.Register(newSvc(fmt.Sprintf("K%d", i), "x"))
			_ = d.All()
		}(i)
	}
	wg.Wait()
	close(inserted)
	wins := 0
	for ok := range inserted {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, n+1, d.Len())
}
