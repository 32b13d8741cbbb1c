package strategy

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/vadiminshakov/rsibot/internal/domain"
	"github.com/vadiminshakov/rsibot/pkg/indicators"
)

// Decider turns a price window into a signal. Implementations never touch balances.
type Decider interface {
	Decide(window []domain.MarketCandle) domain.Signal
}

// RSISettings are the indicator parameters shared by the RSI rules.
type RSISettings struct {
	Period    int
	Lower     float64
	Upper     float64
	Smoothing indicators.Smoothing
}

// DefaultRSISettings are period 14 with 30/70 bounds.
func DefaultRSISettings() RSISettings {
	return RSISettings{Period: 14, Lower: 30, Upper: 70, Smoothing: indicators.SmoothingSimple}
}

// Validate checks the bounds are usable.
func (s RSISettings) Validate() error {
	if s.Period < 1 {
		return fmt.Errorf("rsi period must be >= 1, got %d", s.Period)
	}
	if s.Lower < 0 || s.Upper > 100 || s.Lower >= s.Upper {
		return fmt.Errorf("rsi bounds must satisfy 0 <= lower < upper <= 100, got %.2f/%.2f", s.Lower, s.Upper)
	}
	return nil
}

// Value computes the RSI of the window closes. NaN means not enough data.
func (s RSISettings) Value(window []domain.MarketCandle) float64 {
	return indicators.Compute(domain.ClosePrices(window), s.Period, s.Smoothing)
}

// Threshold buys below the lower bound and sells above the upper bound.
type Threshold struct {
	settings RSISettings
}

// NewThreshold creates a stateless threshold rule.
func NewThreshold(settings RSISettings) *Threshold {
	return &Threshold{settings: settings}
}

// Decide implements Decider.
func (t *Threshold) Decide(window []domain.MarketCandle) domain.Signal {
	return t.signalFor(t.settings.Value(window))
}

func (t *Threshold) signalFor(rsi float64) domain.Signal {
	switch {
	case math.IsNaN(rsi):
		return domain.SignalHold
	case rsi < t.settings.Lower:
		return domain.SignalBuy
	case rsi > t.settings.Upper:
		return domain.SignalSell
	default:
		return domain.SignalHold
	}
}

// CooldownOption configures a Cooldown rule.
type CooldownOption func(*Cooldown)

// WithNow overrides the clock.
func WithNow(now func() time.Time) CooldownOption {
	return func(c *Cooldown) {
		c.now = now
	}
}

// Cooldown is the threshold rule gated by a minimum delay between trade signals.
// The delay starts at construction, so the first signal waits a full period.
type Cooldown struct {
	rule  *Threshold
	delay time.Duration
	now   func() time.Time

	mu         sync.Mutex
	lastAction time.Time
}

// NewCooldown creates a delay-gated threshold rule.
func NewCooldown(settings RSISettings, delay time.Duration, opts ...CooldownOption) *Cooldown {
	c := &Cooldown{
		rule:  NewThreshold(settings),
		delay: delay,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastAction = c.now()
	return c
}

// Decide implements Decider. A trade signal arriving before lastAction+delay is downgraded to HOLD.
func (c *Cooldown) Decide(window []domain.MarketCandle) domain.Signal {
	signal := c.rule.Decide(window)
	if !signal.IsTrade() {
		return domain.SignalHold
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Before(c.lastAction.Add(c.delay)) {
		return domain.SignalHold
	}
	c.lastAction = now
	return signal
}

// NextAllowed returns the earliest time a trade signal may pass.
func (c *Cooldown) NextAllowed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAction.Add(c.delay)
}
