package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/rsibot/internal/domain"
	"go.uber.org/zap"
)

type runner interface {
	Run(ctx context.Context, t Trader) error
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the time source for start and stop stamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLocation sets the zone used when rendering timestamps.
func WithLocation(loc *time.Location) ManagerOption {
	return func(m *Manager) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// Status is a point-in-time view of a managed strategy.
type Status struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at,omitempty"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Manager owns at most one running loop for one strategy.
type Manager struct {
	trader Trader
	loop   runner
	l      *zap.Logger
	now    func() time.Time
	loc    *time.Location

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	stoppedAt time.Time
	lastErr   error
}

// NewManager creates a stopped manager for trader.
func NewManager(l *zap.Logger, trader Trader, loop runner, opts ...ManagerOption) *Manager {
	if l == nil {
		l = zap.NewNop()
	}
	m := &Manager{
		trader: trader,
		loop:   loop,
		l:      l.With(zap.String("strategy", trader.Name())),
		now:    time.Now,
		loc:    time.UTC,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the managed strategy name.
func (m *Manager) Name() string {
	return m.trader.Name()
}

// Trader returns the managed strategy.
func (m *Manager) Trader() Trader {
	return m.trader
}

// Start spawns the polling loop unless one is already running.
func (m *Manager) Start() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runningLocked() {
		return fmt.Sprintf("Strategy %s is already running.", m.Name())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.startedAt = m.now()
	m.lastErr = nil

	go m.run(ctx, done)

	m.l.Info("strategy started")
	return fmt.Sprintf("Strategy %s started.", m.Name())
}

// Stop cancels the loop and waits for it to drain or for ctx to expire.
func (m *Manager) Stop(ctx context.Context) string {
	m.mu.Lock()
	if !m.runningLocked() {
		m.mu.Unlock()
		return fmt.Sprintf("Strategy %s is not running.", m.Name())
	}
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		m.l.Warn("strategy did not stop in time", zap.Error(ctx.Err()))
		return fmt.Sprintf("Strategy %s is stopping.", m.Name())
	}

	m.l.Info("strategy stopped")
	return fmt.Sprintf("Strategy %s stopped.", m.Name())
}

// Status renders the lifecycle state. It never waits on the loop.
func (m *Manager) Status() string {
	s := m.Snapshot()

	var msg string
	if s.Running {
		msg = fmt.Sprintf("Strategy %s is running. Started on %s.", s.Name, m.format(s.StartedAt))
	} else {
		msg = fmt.Sprintf("Strategy %s is not running. Last stopped on %s.", s.Name, m.format(s.StoppedAt))
	}
	if s.LastError != "" {
		msg += fmt.Sprintf(" Last error: %s.", s.LastError)
	}
	return msg
}

// Running reports whether a loop is live.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningLocked()
}

// Snapshot returns the lifecycle record.
func (m *Manager) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{
		Name:      m.Name(),
		Running:   m.runningLocked(),
		StartedAt: m.startedAt,
		StoppedAt: m.stoppedAt,
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	err := m.runLoop(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stoppedAt = m.now()
	if err != nil {
		m.lastErr = err
		m.l.Error("strategy loop terminated", zap.Error(err))
	}
}

func (m *Manager) runLoop(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return m.loop.Run(ctx, m.trader)
}

func (m *Manager) runningLocked() bool {
	if m.done == nil {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

func (m *Manager) format(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.In(m.loc).Format(domain.TimeLayout)
}
