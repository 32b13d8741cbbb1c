package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/rsibot/internal/domain"
)

var ethUsdt = domain.Pair{From: "ETH", To: "USDT"}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(ethUsdt, domain.Balances{"USDT": d("1000"), "ETH": d("0.25")},
		WithClock(func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }))
	require.NoError(t, err)
	return l
}

func assertBalances(t *testing.T, l *Ledger, quote, base string) {
	t.Helper()
	b := l.Balances()
	assert.True(t, b.Get("USDT").Equal(d(quote)), "USDT: got %s, want %s", b.Get("USDT"), quote)
	assert.True(t, b.Get("ETH").Equal(d(base)), "ETH: got %s, want %s", b.Get("ETH"), base)
}

func TestLedger_BuyExecuted(t *testing.T) {
	l := newTestLedger(t)

	tx, err := l.Apply(d("2000"), d("0.05"), domain.SignalBuy)
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeExecutedBuy, tx.Outcome)
	assert.True(t, tx.Value.Equal(d("100")))
	assert.NotEmpty(t, tx.ID)
	assertBalances(t, l, "900.00", "0.30000")
	assert.Equal(t, 1, l.Len())
}

func TestLedger_SellRejectedOnInsufficientBase(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Apply(d("2000"), d("0.05"), domain.SignalBuy)
	require.NoError(t, err)

	tx, err := l.Apply(d("2000"), d("1.0"), domain.SignalSell)
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeRejected, tx.Outcome)
	assert.Equal(t, "insufficient ETH", tx.Reason)
	assertBalances(t, l, "900", "0.3")
	assert.Equal(t, 2, l.Len())
}

func TestLedger_BuyRejectedOnInsufficientQuote(t *testing.T) {
	l := newTestLedger(t)

	tx, err := l.Apply(d("2000"), d("1"), domain.SignalBuy)
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeRejected, tx.Outcome)
	assert.Equal(t, "insufficient USDT", tx.Reason)
	assertBalances(t, l, "1000", "0.25")
}

func TestLedger_BuyExactlyAllQuote(t *testing.T) {
	l := newTestLedger(t)

	tx, err := l.Apply(d("4000"), d("0.25"), domain.SignalBuy)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeExecutedBuy, tx.Outcome)
	assertBalances(t, l, "0", "0.5")
}

func TestLedger_BuyThenSellRestoresBalances(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.Apply(d("1834.27"), d("0.05"), domain.SignalBuy)
	require.NoError(t, err)
	_, err = l.Apply(d("1834.27"), d("0.05"), domain.SignalSell)
	require.NoError(t, err)

	assertBalances(t, l, "1000", "0.25")
}

func TestLedger_Rounding(t *testing.T) {
	l := newTestLedger(t)

	tx, err := l.Apply(d("1999.999"), d("0.0123456"), domain.SignalBuy)
	require.NoError(t, err)

	assert.True(t, tx.Value.Equal(d("24.69")), tx.Value.String())
	assert.True(t, tx.Amount.Equal(d("0.01235")), tx.Amount.String())
	assertBalances(t, l, "975.31", "0.26235")
}

func TestLedger_InvalidCalls(t *testing.T) {
	tests := []struct {
		name    string
		price   string
		amount  string
		signal  domain.Signal
		wantErr error
	}{
		{name: "hold", price: "2000", amount: "0.05", signal: domain.SignalHold, wantErr: ErrInvalidSignal},
		{name: "unknown signal", price: "2000", amount: "0.05", signal: domain.Signal("SHORT"), wantErr: ErrInvalidSignal},
		{name: "zero amount", price: "2000", amount: "0", signal: domain.SignalBuy, wantErr: ErrInvalidAmount},
		{name: "negative price", price: "-1", amount: "0.05", signal: domain.SignalSell, wantErr: ErrInvalidAmount},
		{name: "amount rounds to zero", price: "2000", amount: "0.000001", signal: domain.SignalBuy, wantErr: ErrInvalidAmount},
		{name: "value rounds to zero", price: "0.1", amount: "0.01", signal: domain.SignalBuy, wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t)
			_, err := l.Apply(d(tt.price), d(tt.amount), tt.signal)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, 0, l.Len())
			assertBalances(t, l, "1000", "0.25")
		})
	}
}

func TestLedger_Recent(t *testing.T) {
	l := newTestLedger(t)
	assert.Empty(t, l.Recent(5))

	prices := []string{"100", "101", "102", "103", "104"}
	for _, p := range prices {
		_, err := l.Apply(d(p), d("0.01"), domain.SignalBuy)
		require.NoError(t, err)
	}

	all := l.Recent(10)
	require.Len(t, all, 5)
	for i, tx := range all {
		assert.True(t, tx.Price.Equal(d(prices[i])))
	}

	last2 := l.Recent(2)
	require.Len(t, last2, 2)
	assert.True(t, last2[0].Price.Equal(d("103")))
	assert.True(t, last2[1].Price.Equal(d("104")))

	assert.Empty(t, l.Recent(0))
}

func TestLedger_BalancesReturnsCopy(t *testing.T) {
	l := newTestLedger(t)
	b := l.Balances()
	b["USDT"] = decimal.Zero

	assertBalances(t, l, "1000", "0.25")
}

func TestLedger_NeverNegativeUnderRepeatedTrades(t *testing.T) {
	l := newTestLedger(t)
	signals := []domain.Signal{domain.SignalSell, domain.SignalSell, domain.SignalSell, domain.SignalSell, domain.SignalSell, domain.SignalSell}
	for _, s := range signals {
		_, err := l.Apply(d("2000"), d("0.05"), s)
		require.NoError(t, err)
	}
	for i := 0; i < 20; i++ {
		_, err := l.Apply(d("2000"), d("0.05"), domain.SignalBuy)
		require.NoError(t, err)
	}

	for asset, v := range l.Balances() {
		assert.False(t, v.IsNegative(), "%s went negative: %s", asset, v)
	}
	assert.Equal(t, 26, l.Len())
}

func TestLedger_ConcurrentReaders(t *testing.T) {
	l := newTestLedger(t)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = l.Apply(d("2000"), d("0.001"), domain.SignalBuy)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = l.Recent(3)
			_ = l.Balances()
		}
	}()
	wg.Wait()

	assert.Equal(t, 100, l.Len())
}

func TestNew_RejectsNegativeBalance(t *testing.T) {
	_, err := New(ethUsdt, domain.Balances{"USDT": d("-1")})
	assert.Error(t, err)
}
