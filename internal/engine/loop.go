// Package engine runs strategies on a fixed polling interval and manages their lifecycle.
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/rsibot/internal/domain"
	"github.com/vadiminshakov/rsibot/pkg/retrier"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 60 * time.Second
	DefaultFetchTimeout = 30 * time.Second
)

// Trader is the strategy surface the loop drives.
type Trader interface {
	Name() string
	Pair() domain.Pair
	TradeAmount() decimal.Decimal
	FetchPriceWindow(ctx context.Context) ([]domain.MarketCandle, error)
	Decide(window []domain.MarketCandle) domain.Signal
	ApplyDecision(price, amount decimal.Decimal, signal domain.Signal) (domain.Transaction, error)
	ObservePrice(price decimal.Decimal)
	Balances() domain.Balances
}

// LoopConfig controls cycle timing.
type LoopConfig struct {
	PollInterval time.Duration
	// FetchTimeout bounds each fetch attempt. Providers whose client takes no context
	// (Bybit V5) stop waiting at the deadline and drop the late response.
	FetchTimeout time.Duration
	// Retrier governs fetch failures inside one cycle. Nil means no retries.
	Retrier *retrier.Retrier
}

// Loop executes fetch, decide and apply cycles until its context is cancelled.
type Loop struct {
	cfg     LoopConfig
	l       *zap.Logger
	metrics *Metrics
}

// NewLoop creates a polling loop. metrics may be nil.
func NewLoop(l *zap.Logger, cfg LoopConfig, metrics *Metrics) *Loop {
	if l == nil {
		l = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Retrier == nil {
		cfg.Retrier = retrier.New()
	}
	return &Loop{cfg: cfg, l: l, metrics: metrics}
}

// Run blocks until ctx is cancelled and then returns nil.
// Cancellation is observed only between cycles and during the fetch, never between decide and apply.
func (lp *Loop) Run(ctx context.Context, t Trader) error {
	l := lp.l.With(zap.String("strategy", t.Name()), zap.String("pair", t.Pair().String()))

	balances := t.Balances()
	pair := t.Pair()
	l.Info("starting polling loop",
		zap.Duration("poll_interval", lp.cfg.PollInterval),
		zap.String(pair.To, balances.Get(pair.To).StringFixed(2)),
		zap.String(pair.From, balances.Get(pair.From).StringFixed(5)))

	lp.metrics.running(t.Name(), true)
	defer lp.metrics.running(t.Name(), false)

	ticker := time.NewTicker(lp.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			l.Info("context done, stopping polling loop")
			return nil
		}

		lp.cycle(ctx, t, l)

		select {
		case <-ctx.Done():
			l.Info("context done, stopping polling loop")
			return nil
		case <-ticker.C:
		}
	}
}

func (lp *Loop) cycle(ctx context.Context, t Trader, l *zap.Logger) {
	started := time.Now()
	defer lp.metrics.cycle(t.Name(), started)

	window, err := retrier.DoWithData(lp.cfg.Retrier, ctx, func(ctx context.Context) ([]domain.MarketCandle, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, lp.cfg.FetchTimeout)
		defer cancel()
		return t.FetchPriceWindow(fetchCtx)
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		lp.metrics.fetchFailure(t.Name())
		l.Warn("failed to fetch price window, skipping cycle", zap.Error(err))
		return
	}

	price, ok := domain.LastClose(window)
	if !ok {
		lp.metrics.fetchFailure(t.Name())
		l.Warn("empty price window, skipping cycle")
		return
	}
	t.ObservePrice(price)

	signal := t.Decide(window)
	lp.metrics.signal(t.Name(), signal)
	if !signal.IsTrade() {
		l.Debug("holding", zap.String("price", price.String()))
		return
	}

	tx, err := t.ApplyDecision(price, t.TradeAmount(), signal)
	if err != nil {
		l.Error("failed to apply decision", zap.String("signal", signal.String()), zap.Error(err))
		return
	}
	lp.metrics.transaction(t.Name(), tx.Outcome)
}
