package strategy

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/vadiminshakov/rsibot/internal/domain"
)

type mockKlineProvider struct {
	mock.Mock
}

func (m *mockKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.MarketCandle, error) {
	args := m.Called(ctx, pair, interval, limit)
	candles, _ := args.Get(0).([]domain.MarketCandle)
	return candles, args.Error(1)
}

// candlesFrom builds a window whose closes step by step from start.
func candlesFrom(start, step float64, n int) []domain.MarketCandle {
	out := make([]domain.MarketCandle, n)
	for i := range out {
		out[i] = domain.MarketCandle{Close: decimal.NewFromFloat(start + step*float64(i))}
	}
	return out
}
