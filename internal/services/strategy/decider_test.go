package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vadiminshakov/rsibot/internal/domain"
)

func TestThreshold_Decide(t *testing.T) {
	rule := NewThreshold(DefaultRSISettings())

	tests := []struct {
		name   string
		window []domain.MarketCandle
		want   domain.Signal
	}{
		{name: "falling prices buy", window: candlesFrom(200, -1, 30), want: domain.SignalBuy},
		{name: "rising prices sell", window: candlesFrom(100, 1, 30), want: domain.SignalSell},
		{name: "flat prices hold", window: candlesFrom(100, 0, 30), want: domain.SignalHold},
		{name: "short window holds", window: candlesFrom(100, 1, 10), want: domain.SignalHold},
		{name: "empty window holds", window: nil, want: domain.SignalHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rule.Decide(tt.window))
		})
	}
}

func TestThreshold_BoundsAreExclusive(t *testing.T) {
	rule := NewThreshold(RSISettings{Period: 4, Lower: 25, Upper: 75})

	// three gains, one loss: RSI exactly 75
	atUpper := []domain.MarketCandle{}
	for _, c := range []float64{10, 12, 14, 16, 14} {
		atUpper = append(atUpper, candlesFrom(c, 0, 1)...)
	}
	assert.Equal(t, domain.SignalHold, rule.Decide(atUpper))
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestCooldown_Decide(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	delay := 15 * time.Minute
	rule := NewCooldown(DefaultRSISettings(), delay, WithNow(clock.Now))

	buyWindow := candlesFrom(200, -1, 30)
	sellWindow := candlesFrom(100, 1, 30)

	// the delay is counted from construction
	assert.Equal(t, domain.SignalHold, rule.Decide(buyWindow))

	clock.now = start.Add(delay - time.Second)
	assert.Equal(t, domain.SignalHold, rule.Decide(buyWindow))

	clock.now = start.Add(delay)
	assert.Equal(t, domain.SignalBuy, rule.Decide(buyWindow))
	assert.Equal(t, start.Add(2*delay), rule.NextAllowed())

	clock.now = start.Add(delay + time.Minute)
	assert.Equal(t, domain.SignalHold, rule.Decide(sellWindow))

	clock.now = start.Add(2 * delay)
	assert.Equal(t, domain.SignalSell, rule.Decide(sellWindow))
}

func TestCooldown_HoldDoesNotResetTimer(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	rule := NewCooldown(DefaultRSISettings(), time.Minute, WithNow(clock.Now))

	clock.now = start.Add(2 * time.Minute)
	assert.Equal(t, domain.SignalHold, rule.Decide(candlesFrom(100, 0, 30)))
	assert.Equal(t, start.Add(time.Minute), rule.NextAllowed())

	assert.Equal(t, domain.SignalBuy, rule.Decide(candlesFrom(200, -1, 30)))
}

func TestCooldown_NoTwoTradesWithinDelay(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	delay := 10 * time.Minute
	rule := NewCooldown(DefaultRSISettings(), delay, WithNow(clock.Now))

	var trades []time.Time
	for i := 0; i < 120; i++ {
		clock.now = start.Add(time.Duration(i) * time.Minute)
		if rule.Decide(candlesFrom(200, -1, 30)).IsTrade() {
			trades = append(trades, clock.now)
		}
	}

	assert.NotEmpty(t, trades)
	for i := 1; i < len(trades); i++ {
		assert.GreaterOrEqual(t, trades[i].Sub(trades[i-1]), delay)
	}
}

func TestRSISettings_Validate(t *testing.T) {
	assert.NoError(t, DefaultRSISettings().Validate())
	assert.Error(t, RSISettings{Period: 0, Lower: 30, Upper: 70}.Validate())
	assert.Error(t, RSISettings{Period: 14, Lower: 70, Upper: 30}.Validate())
	assert.Error(t, RSISettings{Period: 14, Lower: 30, Upper: 101}.Validate())
}
