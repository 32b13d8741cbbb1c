package collector

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/rsibot/internal/domain"
)

// BinanceKlineProvider implements KlineProvider for Binance spot.
type BinanceKlineProvider struct {
	client *binance.Client
}

// NewBinanceKlineProvider creates a new Binance kline provider.
func NewBinanceKlineProvider(client *binance.Client) *BinanceKlineProvider {
	return &BinanceKlineProvider{client: client}
}

// GetKlines fetches kline data from Binance.
func (p *BinanceKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.MarketCandle, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	klines, err := p.client.NewKlinesService().
		Symbol(pair.Symbol()).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", pair.String())
	}

	result := make([]domain.MarketCandle, len(klines))
	for i, k := range klines {
		c, err := rawCandle{
			openTime:  time.UnixMilli(k.OpenTime),
			closeTime: time.UnixMilli(k.CloseTime),
			open:      k.Open,
			high:      k.High,
			low:       k.Low,
			close:     k.Close,
			volume:    k.Volume,
		}.parse(i)
		if err != nil {
			return nil, err
		}
		result[i] = c
	}

	return result, nil
}
