package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketCandle single OHLCV candlestick.
type MarketCandle struct {
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime time.Time
}

// ClosePrices extracts close prices, oldest first.
func ClosePrices(candles []MarketCandle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close.InexactFloat64()
	}
	return closes
}

// LastClose returns the close of the most recent candle.
func LastClose(candles []MarketCandle) (decimal.Decimal, bool) {
	if len(candles) == 0 {
		return decimal.Zero, false
	}
	return candles[len(candles)-1].Close, true
}
