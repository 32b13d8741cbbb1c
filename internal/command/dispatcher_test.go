package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/rsibot/internal/domain"
	"github.com/vadiminshakov/rsibot/internal/engine"
	"github.com/vadiminshakov/rsibot/internal/ledger"
	"github.com/vadiminshakov/rsibot/internal/registry"
	"github.com/vadiminshakov/rsibot/internal/services/strategy"
	"go.uber.org/zap"
)

var ethUsdt = domain.Pair{From: "ETH", To: "USDT"}

type staticProvider struct {
	candles []domain.MarketCandle
	err     error
}

func (p staticProvider) GetKlines(context.Context, domain.Pair, string, int) ([]domain.MarketCandle, error) {
	return p.candles, p.err
}

type waitRunner struct{}

func (waitRunner) Run(ctx context.Context, _ engine.Trader) error {
	<-ctx.Done()
	return nil
}

type memSessions struct {
	mu  sync.Mutex
	ids []string
}

func (s *memSessions) Remember(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, id)
}

func rising(n int) []domain.MarketCandle {
	out := make([]domain.MarketCandle, n)
	for i := range out {
		out[i] = domain.MarketCandle{Close: decimal.NewFromInt(int64(1900 + 10*i))}
	}
	return out
}

type fixture struct {
	disp       *Dispatcher
	strategies map[string]*strategy.Strategy
	sessions   *memSessions
}

func newFixture(t *testing.T, providers map[string]staticProvider) fixture {
	t.Helper()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	reg := registry.New(zap.NewNop())
	strategies := make(map[string]*strategy.Strategy)

	for _, name := range []string{"rsi-simple", "rsi-delay"} {
		book, err := ledger.New(ethUsdt, domain.Balances{
			"USDT": decimal.NewFromInt(1000),
			"ETH":  decimal.RequireFromString("0.25"),
		}, ledger.WithClock(func() time.Time { return fixed }), ledger.WithOwner(name))
		require.NoError(t, err)

		provider, ok := providers[name]
		if !ok {
			provider = staticProvider{candles: rising(20)}
		}
		s, err := strategy.New(zap.NewNop(), strategy.Config{
			Name:        name,
			Pair:        ethUsdt,
			TradeAmount: decimal.RequireFromString("0.05"),
			RSI:         strategy.DefaultRSISettings(),
		}, provider, strategy.NewThreshold(strategy.DefaultRSISettings()), book, nil)
		require.NoError(t, err)

		require.NoError(t, reg.Add(engine.NewManager(zap.NewNop(), s, waitRunner{})))
		strategies[name] = s
	}

	sessions := &memSessions{}
	disp := NewDispatcher(zap.NewNop(), reg, WithSessions(sessions), WithBotName("Paper bot"), WithStopTimeout(time.Second))
	return fixture{disp: disp, strategies: strategies, sessions: sessions}
}

func (f fixture) send(t *testing.T, line string) string {
	t.Helper()
	return f.disp.HandleText(context.Background(), "42", line)
}

func TestDispatcherGeneralCommands(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, "Paper bot is running! Use /help to see available commands.", f.send(t, "/start"))
	assert.Equal(t, []string{"42"}, f.sessions.ids)

	help := f.send(t, "/help")
	assert.Contains(t, help, "General commands:")
	assert.Contains(t, help, "/strategy_start <StrategyName>")
	assert.Contains(t, help, "/rsi <StrategyName>")

	assert.Equal(t, "Available strategies:\nrsi-simple\nrsi-delay", f.send(t, "/get_strategies"))
	assert.Equal(t, "Unknown command /moon. Use /help to see available commands.", f.send(t, "/moon"))
	assert.Equal(t, "Empty command. Use /help to see available commands.", f.send(t, "  "))
}

func TestDispatcherLifecycle(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, "Usage: /strategy_start <StrategyName>", f.send(t, "/strategy_start"))
	assert.Equal(t, "Usage: /strategy_stop <StrategyName>", f.send(t, "/strategy_stop a b"))
	assert.Equal(t, "Strategy nope not found.", f.send(t, "/strategy_status nope"))

	assert.Equal(t, "Strategy rsi-simple is not running.", f.send(t, "/strategy_stop rsi-simple"))
	assert.Equal(t, "Strategy rsi-simple is not running. Last stopped on never.", f.send(t, "/strategy_status rsi-simple"))

	assert.Equal(t, "Strategy rsi-simple started.", f.send(t, "/strategy_start rsi-simple"))
	assert.Equal(t, "Strategy rsi-simple is already running.", f.send(t, "/strategy_start rsi-simple"))
	assert.Contains(t, f.send(t, "/strategy_status rsi-simple"), "Strategy rsi-simple is running. Started on ")
	assert.Contains(t, f.send(t, "/strategy_status rsi-delay"), "is not running")

	assert.Equal(t, "Strategy rsi-simple stopped.", f.send(t, "/strategy_stop rsi-simple"))
	assert.Contains(t, f.send(t, "/strategy_status rsi-simple"), "is not running. Last stopped on ")
}

func TestDispatcherBalances(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, "USDT: 1000.00\nETH: 0.25000", f.send(t, "/balances rsi-simple"))
	assert.Equal(t, "Usage: /balances <StrategyName>", f.send(t, "/balances"))
	assert.Equal(t, "Strategy x not found.", f.send(t, "/balances x"))

	s := f.strategies["rsi-simple"]
	_, err := s.ApplyDecision(decimal.NewFromInt(2000), decimal.RequireFromString("0.05"), domain.SignalBuy)
	require.NoError(t, err)
	s.ObservePrice(decimal.NewFromInt(2000))

	assert.Equal(t,
		"USDT: 900.00\nETH: 0.30000\nValue at $2000: 1500.00 USDT or 0.75000 ETH",
		f.send(t, "/balances rsi-simple"))
	assert.Equal(t, "USDT: 1000.00\nETH: 0.25000", f.send(t, "/balances rsi-delay"))
}

func TestDispatcherRecent(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, "No transactions found.", f.send(t, "/recent rsi-simple"))
	assert.Equal(t, "Please provide a valid number.", f.send(t, "/recent rsi-simple abc"))
	assert.Equal(t, "Please provide a valid number.", f.send(t, "/recent rsi-simple 0"))
	assert.Equal(t, "Usage: /recent <StrategyName> <number>", f.send(t, "/recent"))

	s := f.strategies["rsi-simple"]
	price := decimal.NewFromInt(2000)
	amount := decimal.RequireFromString("0.05")
	for i := 0; i < 6; i++ {
		_, err := s.ApplyDecision(price, amount, domain.SignalBuy)
		require.NoError(t, err)
	}
	_, err := s.ApplyDecision(price, decimal.NewFromInt(10), domain.SignalSell)
	require.NoError(t, err)

	reply := f.send(t, "/recent rsi-simple 2")
	assert.Equal(t,
		"Recent trades:\n"+
			"[2024-01-02 03:04:05][BUY]: 0.05 ETH at $2000\n"+
			"[2024-01-02 03:04:05][FAILURE]: Unable to SELL 10 ETH at $2000 (insufficient ETH)\n"+
			"Last 2 shown of 7 transactions.",
		reply)

	assert.Contains(t, f.send(t, "/recent rsi-simple"), "Last 5 shown of 7 transactions.")
	assert.Contains(t, f.send(t, "/recent rsi-simple 50"), "Last 7 shown of 7 transactions.")
}

func TestDispatcherIndicator(t *testing.T) {
	f := newFixture(t, map[string]staticProvider{
		"rsi-simple": {candles: rising(20)},
		"rsi-delay":  {err: errors.New("timeout")},
	})

	assert.Equal(t, "Current RSI: 100.00", f.send(t, "/rsi rsi-simple"))
	assert.Equal(t, "Unable to fetch market data for rsi-delay. Try again later.", f.send(t, "/indicator rsi-delay"))
	assert.Equal(t, "Usage: /rsi <StrategyName>", f.send(t, "/rsi"))

	short := newFixture(t, map[string]staticProvider{"rsi-simple": {candles: rising(5)}})
	assert.Equal(t, "Not enough data to compute RSI for rsi-simple yet.", short.send(t, "/rsi rsi-simple"))
}
