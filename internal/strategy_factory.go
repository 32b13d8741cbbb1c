package internal

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rsibot/config"
	"github.com/vadiminshakov/rsibot/internal/events"
	"github.com/vadiminshakov/rsibot/internal/ledger"
	"github.com/vadiminshakov/rsibot/internal/services/market/collector"
	"github.com/vadiminshakov/rsibot/internal/services/strategy"
)

// strategyFactory creates strategies from their configuration.
type strategyFactory struct {
	logger   *zap.Logger
	location *time.Location
	provider collector.KlineProvider
	sink     events.Sink
}

// newStrategyFactory creates a factory sharing one market data source and one transaction sink.
func newStrategyFactory(logger *zap.Logger, location *time.Location, provider collector.KlineProvider, sink events.Sink) *strategyFactory {
	return &strategyFactory{logger: logger, location: location, provider: provider, sink: sink}
}

// createStrategy builds a strategy with its own ledger and decision rule.
func (f *strategyFactory) createStrategy(sc config.StrategyConfig) (*strategy.Strategy, error) {
	settings := strategy.RSISettings{
		Period:    sc.Period,
		Lower:     sc.Lower,
		Upper:     sc.Upper,
		Smoothing: sc.Smoothing,
	}
	if err := settings.Validate(); err != nil {
		return nil, errors.Wrapf(err, "strategy %s", sc.Name)
	}

	var decider strategy.Decider
	switch sc.Kind {
	case config.KindThreshold:
		decider = strategy.NewThreshold(settings)
	case config.KindCooldown:
		decider = strategy.NewCooldown(settings, sc.Delay)
	default:
		return nil, errors.Errorf("unknown strategy kind %q for %s", sc.Kind, sc.Name)
	}

	book, err := ledger.New(sc.Pair, sc.Balances, ledger.WithOwner(sc.Name), ledger.WithLocation(f.location))
	if err != nil {
		return nil, errors.Wrapf(err, "ledger for %s", sc.Name)
	}

	logger := f.logger.With(zap.String("strategy", sc.Name), zap.String("pair", sc.Pair.String()))

	return strategy.New(logger, strategy.Config{
		Name:        sc.Name,
		Pair:        sc.Pair,
		Timeframe:   sc.Timeframe,
		Limit:       sc.Limit,
		TradeAmount: sc.TradeAmount,
		RSI:         settings,
	}, f.provider, decider, book, f.sink)
}
