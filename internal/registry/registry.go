// Package registry keeps the named strategy managers in configuration order.
package registry

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/vadiminshakov/rsibot/internal/engine"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrDuplicateStrategy is returned when a name is registered twice.
var ErrDuplicateStrategy = errors.New("strategy already registered")

// Registry maps unique strategy names to their managers.
type Registry struct {
	l *zap.Logger

	mu     sync.RWMutex
	order  []string
	byName map[string]*engine.Manager
}

// New creates an empty registry.
func New(l *zap.Logger) *Registry {
	if l == nil {
		l = zap.NewNop()
	}
	return &Registry{l: l, byName: make(map[string]*engine.Manager)}
}

// Add registers m under its name.
func (r *Registry) Add(m *engine.Manager) error {
	if m == nil {
		return errors.New("manager is nil")
	}
	name := m.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; ok {
		return errors.Wrapf(ErrDuplicateStrategy, "name %q", name)
	}
	r.byName[name] = m
	r.order = append(r.order, name)
	return nil
}

// Get looks up a manager by exact name.
func (r *Registry) Get(name string) (*engine.Manager, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

// Names returns strategy names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Managers returns managers in registration order.
func (r *Registry) Managers() []*engine.Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(r.order, func(name string, _ int) *engine.Manager {
		return r.byName[name]
	})
}

// Running returns the names of strategies with a live loop.
func (r *Registry) Running() []string {
	return lo.FilterMap(r.Managers(), func(m *engine.Manager, _ int) (string, bool) {
		return m.Name(), m.Running()
	})
}

// Snapshots returns the lifecycle state of every strategy.
func (r *Registry) Snapshots() []engine.Status {
	return lo.Map(r.Managers(), func(m *engine.Manager, _ int) engine.Status {
		return m.Snapshot()
	})
}

// StopAll stops every running strategy concurrently and waits until each
// one has drained or ctx expires.
func (r *Registry) StopAll(ctx context.Context) {
	var g errgroup.Group
	for _, m := range r.Managers() {
		if !m.Running() {
			continue
		}
		g.Go(func() error {
			msg := m.Stop(ctx)
			r.l.Info("shutdown", zap.String("strategy", m.Name()), zap.String("result", msg))
			return nil
		})
	}
	_ = g.Wait()
}
