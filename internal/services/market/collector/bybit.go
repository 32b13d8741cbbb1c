package collector

import (
	"context"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/rsibot/internal/domain"
)

// bybitMaxLimit is the V5 kline page size cap.
const bybitMaxLimit = 1000

// BybitKlineProvider implements KlineProvider for Bybit spot.
type BybitKlineProvider struct {
	client *bybit.Client
}

// NewBybitKlineProvider creates a new Bybit kline provider.
func NewBybitKlineProvider(client *bybit.Client) *BybitKlineProvider {
	return &BybitKlineProvider{client: client}
}

// GetKlines fetches kline data. Bybit lists newest first, the result is reversed.
func (p *BybitKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.MarketCandle, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	if limit > bybitMaxLimit {
		limit = bybitMaxLimit
	}

	bybitInterval, err := convertIntervalToBybit(interval)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid interval: %s", interval)
	}
	step, err := parseIntervalToDuration(interval)
	if err != nil {
		return nil, err
	}

	// the V5 client takes no context, so a hung call is abandoned once ctx expires
	var items bybit.V5GetKlineList
	err = withContext(ctx, func() error {
		result, err := p.client.V5().Market().GetKline(bybit.V5GetKlineParam{
			Category: bybit.CategoryV5Spot,
			Symbol:   bybit.SymbolV5(pair.Symbol()),
			Interval: bybit.Interval(bybitInterval),
			Limit:    &limit,
		})
		if err != nil {
			return errors.Wrapf(err, "failed to fetch klines from Bybit for %s", pair.String())
		}
		if result == nil || len(result.Result.List) == 0 {
			return errors.Errorf("no kline data returned from Bybit for %s", pair.String())
		}
		items = result.Result.List
		return nil
	})
	if err != nil {
		return nil, err
	}

	candles := make([]domain.MarketCandle, len(items))
	for i, k := range items {
		openTime, err := parseTimestamp(k.StartTime)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse start time at index %d", i)
		}
		c, err := rawCandle{
			openTime:  openTime,
			closeTime: openTime.Add(step - time.Millisecond),
			open:      k.Open,
			high:      k.High,
			low:       k.Low,
			close:     k.Close,
			volume:    k.Volume,
		}.parse(i)
		if err != nil {
			return nil, err
		}
		candles[len(items)-1-i] = c
	}

	return candles, nil
}

// withContext runs call and returns early with ctx.Err() once ctx is done.
// An abandoned call finishes in the background and its outcome is dropped.
func withContext(ctx context.Context, call func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- call()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
