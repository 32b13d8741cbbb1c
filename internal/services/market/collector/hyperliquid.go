package collector

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vadiminshakov/rsibot/internal/domain"
)

// HyperliquidKlineProvider implements KlineProvider for Hyperliquid.
type HyperliquidKlineProvider struct {
	info *hyperliquid.Info
	now  func() time.Time
}

// NewHyperliquidKlineProvider creates a new Hyperliquid kline provider.
func NewHyperliquidKlineProvider(info *hyperliquid.Info) *HyperliquidKlineProvider {
	return &HyperliquidKlineProvider{info: info, now: time.Now}
}

// GetKlines fetches the candles covering the last limit intervals.
// Hyperliquid quotes by coin, so only the base asset of pair is used.
func (p *HyperliquidKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.MarketCandle, error) {
	if p.info == nil {
		return nil, errors.New("hyperliquid info is nil")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	step, err := parseIntervalToDuration(interval)
	if err != nil {
		return nil, err
	}

	start, end := candleRange(p.now(), step, limit)
	coin := strings.ToUpper(pair.From)

	candles, err := p.info.CandlesSnapshot(ctx, coin, interval, start, end)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch candles from Hyperliquid for %s", coin)
	}
	if len(candles) == 0 {
		return nil, errors.Errorf("no candles from hyperliquid for %s %s", coin, interval)
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	out := make([]domain.MarketCandle, len(candles))
	for i, c := range candles {
		mc, err := rawCandle{
			openTime:  time.UnixMilli(c.TimeOpen),
			closeTime: time.UnixMilli(c.TimeClose),
			open:      c.Open,
			high:      c.High,
			low:       c.Low,
			close:     c.Close,
			volume:    c.Volume,
		}.parse(i)
		if err != nil {
			return nil, err
		}
		out[i] = mc
	}

	return out, nil
}

// candleRange returns the millisecond window for limit candles plus two spare ones.
func candleRange(now time.Time, step time.Duration, limit int) (startMs, endMs int64) {
	endMs = now.UnixMilli()
	startMs = endMs - int64(limit+2)*step.Milliseconds()
	return startMs, endMs
}
