// Package strategy binds a market data source, a decision rule and a paper ledger into a runnable strategy.
package strategy

import (
	"context"
	"math"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/rsibot/internal/domain"
	"github.com/vadiminshakov/rsibot/internal/events"
	"github.com/vadiminshakov/rsibot/internal/ledger"
	"github.com/vadiminshakov/rsibot/pkg/indicators"
	"go.uber.org/zap"
)

var (
	// ErrNoData is returned when the source yields an empty window.
	ErrNoData = errors.New("no data found")
	// ErrNotEnoughData is returned by Indicator when the window is shorter than period+1.
	ErrNotEnoughData = errors.New("not enough data to compute indicator")
)

type klineProvider interface {
	GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.MarketCandle, error)
}

// Config is the static description of a strategy instance.
type Config struct {
	Name        string
	Pair        domain.Pair
	Timeframe   string
	Limit       int
	TradeAmount decimal.Decimal
	RSI         RSISettings
}

// Strategy owns its ledger and decision state. Only ApplyDecision changes balances.
type Strategy struct {
	cfg      Config
	provider klineProvider
	decider  Decider
	ledger   *ledger.Ledger
	sink     events.Sink
	l        *zap.Logger

	mu        sync.RWMutex
	lastPrice decimal.Decimal
}

// New wires a strategy. sink may be nil.
func New(l *zap.Logger, cfg Config, provider klineProvider, decider Decider, book *ledger.Ledger, sink events.Sink) (*Strategy, error) {
	if l == nil {
		l = zap.NewNop()
	}
	if cfg.Name == "" {
		return nil, errors.New("strategy name is required")
	}
	if provider == nil {
		return nil, errors.New("kline provider is required")
	}
	if decider == nil {
		return nil, errors.New("decider is required")
	}
	if book == nil {
		return nil, errors.New("ledger is required")
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = "5m"
	}
	if !cfg.TradeAmount.IsPositive() {
		return nil, errors.Errorf("trade amount must be positive, got %s", cfg.TradeAmount)
	}

	return &Strategy{
		cfg:      cfg,
		provider: provider,
		decider:  decider,
		ledger:   book,
		sink:     sink,
		l:        l,
	}, nil
}

// Name returns the registry name.
func (s *Strategy) Name() string { return s.cfg.Name }

// Pair returns the traded pair.
func (s *Strategy) Pair() domain.Pair { return s.cfg.Pair }

// TradeAmount returns the fixed base quantity traded per signal.
func (s *Strategy) TradeAmount() decimal.Decimal { return s.cfg.TradeAmount }

// FetchPriceWindow pulls the latest candles, oldest first.
func (s *Strategy) FetchPriceWindow(ctx context.Context) ([]domain.MarketCandle, error) {
	candles, err := s.provider.GetKlines(ctx, s.cfg.Pair, s.cfg.Timeframe, s.cfg.Limit)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s %s klines", s.cfg.Pair.String(), s.cfg.Timeframe)
	}
	if len(candles) == 0 {
		return nil, ErrNoData
	}
	return candles, nil
}

// Decide delegates to the configured rule.
func (s *Strategy) Decide(window []domain.MarketCandle) domain.Signal {
	signal := s.decider.Decide(window)
	s.l.Debug("decision", zap.String("signal", signal.String()), zap.Int("window", len(window)))
	return signal
}

// ApplyDecision executes a paper trade and publishes the resulting record.
func (s *Strategy) ApplyDecision(price, amount decimal.Decimal, signal domain.Signal) (domain.Transaction, error) {
	tx, err := s.ledger.Apply(price, amount, signal)
	if err != nil {
		return domain.Transaction{}, errors.Wrap(err, "apply decision")
	}

	if tx.Executed() {
		s.l.Info("trade executed",
			zap.String("action", tx.Action.String()),
			zap.String("price", tx.Price.String()),
			zap.String("amount", tx.Amount.String()),
			zap.String("value", tx.Value.String()))
	} else {
		s.l.Warn("trade rejected",
			zap.String("action", tx.Action.String()),
			zap.String("price", tx.Price.String()),
			zap.String("amount", tx.Amount.String()),
			zap.String("reason", tx.Reason))
	}

	if s.sink != nil {
		s.sink.Publish(tx)
	}
	return tx, nil
}

// Balances returns a snapshot copy.
func (s *Strategy) Balances() domain.Balances {
	return s.ledger.Balances()
}

// RecentTransactions returns the last n records, oldest first.
func (s *Strategy) RecentTransactions(n int) []domain.Transaction {
	return s.ledger.Recent(n)
}

// TransactionCount returns the total number of records.
func (s *Strategy) TransactionCount() int {
	return s.ledger.Len()
}

// Indicator fetches a fresh window and returns its RSI rounded to cents.
func (s *Strategy) Indicator(ctx context.Context) (float64, error) {
	window, err := s.FetchPriceWindow(ctx)
	if err != nil {
		return 0, err
	}
	rsi := s.cfg.RSI.Value(window)
	if math.IsNaN(rsi) {
		return 0, errors.Wrapf(ErrNotEnoughData, "have %d candles, need %d", len(window), s.cfg.RSI.Period+1)
	}
	return indicators.Round(rsi, 2), nil
}

// ObservePrice records the latest close seen by the polling loop.
func (s *Strategy) ObservePrice(price decimal.Decimal) {
	s.mu.Lock()
	s.lastPrice = price
	s.mu.Unlock()
}

// LastPrice returns the last observed close, false if none yet.
func (s *Strategy) LastPrice() (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPrice, s.lastPrice.IsPositive()
}

// Valuation prices the balances at the last observed close.
func (s *Strategy) Valuation() (domain.Valuation, bool) {
	price, ok := s.LastPrice()
	if !ok {
		return domain.Valuation{}, false
	}
	return s.Balances().Value(s.cfg.Pair, price), true
}
