// Package indicators provides the relative strength index used by the decision rules.
package indicators

import (
	"fmt"
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/rsibot/internal/domain"
)

// Smoothing selects how average gains and losses are computed.
type Smoothing string

const (
	// SmoothingSimple uses the plain mean of the trailing period.
	SmoothingSimple Smoothing = "simple"
	// SmoothingWilder uses Wilder's running moving average.
	SmoothingWilder Smoothing = "wilder"
)

// neutralRSI is reported for a window without any price movement.
const neutralRSI = 50.0

// ParseSmoothing validates a smoothing name, empty means simple.
func ParseSmoothing(s string) (Smoothing, error) {
	switch Smoothing(s) {
	case "", SmoothingSimple:
		return SmoothingSimple, nil
	case SmoothingWilder:
		return SmoothingWilder, nil
	default:
		return "", fmt.Errorf("unknown rsi smoothing %q", s)
	}
}

// RSI returns the relative strength index of the last period steps of closes.
// It returns NaN when there are fewer than period+1 samples.
func RSI(closes []float64, period int) float64 {
	if period < 1 || len(closes) < period+1 {
		return math.NaN()
	}

	gains, losses := changes(closes[len(closes)-period-1:])
	return fromAverages(mean(gains, period), mean(losses, period))
}

// WilderRSI returns the Wilder-smoothed RSI of closes, NaN on short input.
// The averages run over the whole series, so only a series without any movement is neutral.
func WilderRSI(closes []float64, period int) float64 {
	if period < 1 || len(closes) < period+1 {
		return math.NaN()
	}

	gains, losses := changes(closes)
	return fromAverages(wilderAverage(gains, period), wilderAverage(losses, period))
}

// Compute dispatches to the RSI variant selected by smoothing.
func Compute(closes []float64, period int, smoothing Smoothing) float64 {
	if smoothing == SmoothingWilder {
		return WilderRSI(closes, period)
	}
	return RSI(closes, period)
}

// RSIFromCandles computes the simple RSI over candle closes.
func RSIFromCandles(candles []domain.MarketCandle, period int) float64 {
	return RSI(domain.ClosePrices(candles), period)
}

// Round rounds v to places decimals. NaN passes through.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func fromAverages(avgGain, avgLoss float64) float64 {
	switch {
	case avgGain == 0 && avgLoss == 0:
		return neutralRSI
	case avgLoss == 0:
		return 100
	}
	rs := avgGain / avgLoss
	return clamp(100 - 100/(1+rs))
}

// mean averages the last period values through the SMA indicator.
func mean(values []float64, period int) float64 {
	sma := trend.NewSmaWithPeriod[float64](period)
	out := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))

	var m float64
	if len(out) > 0 {
		m = out[len(out)-1]
	} else {
		for _, v := range values[len(values)-period:] {
			m += v
		}
		m /= float64(period)
	}
	if m < 0 {
		// float drift of the running sum
		return 0
	}
	return m
}

// changes splits consecutive deltas into gains and positive loss magnitudes.
func changes(closes []float64) (gains, losses []float64) {
	gains = make([]float64, len(closes)-1)
	losses = make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i-1] = delta
		} else {
			losses[i-1] = -delta
		}
	}
	return gains, losses
}

// wilderAverage is the running moving average seeded with the mean of the first period values.
func wilderAverage(values []float64, period int) float64 {
	rma := trend.NewRmaWithPeriod[float64](period)
	out := helper.ChanToSlice(rma.Compute(helper.SliceToChan(values)))
	if len(out) == 0 {
		return 0
	}
	return math.Max(0, out[len(out)-1])
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
