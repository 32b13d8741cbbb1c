// Package collector fetches candlestick windows from supported exchanges.
package collector

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/rsibot/internal/domain"
)

// KlineProvider fetches the latest limit candles of a pair, oldest first.
// interval uses exchange-neutral notation such as "1m", "5m", "1h", "1d".
type KlineProvider interface {
	GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.MarketCandle, error)
}

// rawCandle carries the string fields every exchange SDK returns.
type rawCandle struct {
	openTime, closeTime            time.Time
	open, high, low, close, volume string
}

func (r rawCandle) parse(i int) (domain.MarketCandle, error) {
	c := domain.MarketCandle{OpenTime: r.openTime, CloseTime: r.closeTime}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"open", r.open, &c.Open},
		{"high", r.high, &c.High},
		{"low", r.low, &c.Low},
		{"close", r.close, &c.Close},
		{"volume", r.volume, &c.Volume},
	}

	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return domain.MarketCandle{}, errors.Wrapf(err, "failed to parse %s at index %d", f.name, i)
		}
		*f.dst = v
	}
	return c, nil
}
