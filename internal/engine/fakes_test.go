package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/rsibot/internal/domain"
)

var ethUsdt = domain.Pair{From: "ETH", To: "USDT"}

// fakeTrader scripts fetch results and records applied decisions.
type fakeTrader struct {
	mu       sync.Mutex
	name     string
	fetches  int
	failN    int
	signal   domain.Signal
	applied  []domain.Signal
	prices   []decimal.Decimal
	observed decimal.Decimal
}

func newFakeTrader(name string, signal domain.Signal) *fakeTrader {
	return &fakeTrader{name: name, signal: signal}
}

func (f *fakeTrader) Name() string                 { return f.name }
func (f *fakeTrader) Pair() domain.Pair            { return ethUsdt }
func (f *fakeTrader) TradeAmount() decimal.Decimal { return decimal.RequireFromString("0.05") }

func (f *fakeTrader) Balances() domain.Balances {
	return domain.Balances{"USDT": decimal.NewFromInt(1000), "ETH": decimal.RequireFromString("0.25")}
}

func (f *fakeTrader) FetchPriceWindow(ctx context.Context) ([]domain.MarketCandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetches <= f.failN {
		return nil, errors.New("exchange unavailable")
	}
	return []domain.MarketCandle{
		{Close: decimal.NewFromInt(1990)},
		{Close: decimal.NewFromInt(2000)},
	}, nil
}

func (f *fakeTrader) Decide([]domain.MarketCandle) domain.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signal
}

func (f *fakeTrader) ApplyDecision(price, amount decimal.Decimal, signal domain.Signal) (domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, signal)
	f.prices = append(f.prices, price)
	return domain.Transaction{Action: signal, Outcome: domain.OutcomeExecutedBuy}, nil
}

func (f *fakeTrader) ObservePrice(price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observed = price
}

func (f *fakeTrader) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeTrader) appliedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}

// blockingRunner ignores cancellation until released.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (b *blockingRunner) Run(ctx context.Context, t Trader) error {
	b.started <- struct{}{}
	<-b.release
	return nil
}

type panicRunner struct{}

func (panicRunner) Run(context.Context, Trader) error {
	panic("boom")
}

// slowApplyTrader holds every ApplyDecision until release is closed.
type slowApplyTrader struct {
	*fakeTrader
	entered chan struct{}
	release chan struct{}
}

func newSlowApplyTrader(name string, signal domain.Signal) *slowApplyTrader {
	return &slowApplyTrader{
		fakeTrader: newFakeTrader(name, signal),
		entered:    make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
}

func (s *slowApplyTrader) ApplyDecision(price, amount decimal.Decimal, signal domain.Signal) (domain.Transaction, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
	return s.fakeTrader.ApplyDecision(price, amount, signal)
}
