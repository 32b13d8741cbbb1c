// Package ledger implements the paper balance sheet and its append-only transaction log.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/rsibot/internal/domain"
)

var (
	// ErrInvalidSignal is returned when Apply is called with HOLD or an unknown signal.
	ErrInvalidSignal = errors.New("signal does not describe a trade")
	// ErrInvalidAmount is returned for non-positive prices, or amounts and values that round to zero.
	ErrInvalidAmount = errors.New("price and amount must be positive")
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used to stamp transactions.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithLocation sets the time zone transactions are stamped in.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithOwner tags every transaction with the owning strategy name.
func WithOwner(name string) Option {
	return func(l *Ledger) {
		l.owner = name
	}
}

// Ledger holds quote and base balances for a single pair.
// Balances never go negative: a trade that cannot be covered is recorded as rejected.
type Ledger struct {
	mu           sync.RWMutex
	pair         domain.Pair
	owner        string
	balances     domain.Balances
	transactions []domain.Transaction
	now          func() time.Time
	loc          *time.Location
}

// New creates a ledger seeded with initial balances. Missing assets start at zero.
func New(pair domain.Pair, initial domain.Balances, opts ...Option) (*Ledger, error) {
	balances := domain.Balances{
		pair.To:   domain.RoundQuote(initial.Get(pair.To)),
		pair.From: domain.RoundBase(initial.Get(pair.From)),
	}
	for asset, v := range balances {
		if v.IsNegative() {
			return nil, errors.Errorf("initial %s balance is negative: %s", asset, v)
		}
	}

	l := &Ledger{
		pair:     pair,
		balances: balances,
		now:      time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Apply executes a paper trade of amount base units at price.
// Exactly one transaction is appended for every valid call. Insufficient funds is not an error.
func (l *Ledger) Apply(price, amount decimal.Decimal, signal domain.Signal) (domain.Transaction, error) {
	if !signal.IsTrade() {
		return domain.Transaction{}, errors.Wrapf(ErrInvalidSignal, "apply %q", signal)
	}
	value := domain.RoundQuote(price.Mul(amount))
	rounded := domain.RoundBase(amount)
	if !price.IsPositive() || !rounded.IsPositive() || !value.IsPositive() {
		return domain.Transaction{}, errors.Wrapf(ErrInvalidAmount, "price %s, amount %s", price, amount)
	}
	amount = rounded

	l.mu.Lock()
	defer l.mu.Unlock()

	tx := domain.Transaction{
		ID:       uuid.NewString(),
		Strategy: l.owner,
		Pair:     l.pair,
		Time:     l.now().In(l.loc),
		Action:   signal,
		Price:    price,
		Amount:   amount,
		Value:    value,
	}

	quote, base := l.balances[l.pair.To], l.balances[l.pair.From]

	switch signal {
	case domain.SignalBuy:
		if quote.LessThan(value) {
			tx.Outcome = domain.OutcomeRejected
			tx.Reason = "insufficient " + l.pair.To
			break
		}
		l.balances[l.pair.To] = domain.RoundQuote(quote.Sub(value))
		l.balances[l.pair.From] = domain.RoundBase(base.Add(amount))
		tx.Outcome = domain.OutcomeExecutedBuy
	case domain.SignalSell:
		if base.LessThan(amount) {
			tx.Outcome = domain.OutcomeRejected
			tx.Reason = "insufficient " + l.pair.From
			break
		}
		l.balances[l.pair.To] = domain.RoundQuote(quote.Add(value))
		l.balances[l.pair.From] = domain.RoundBase(base.Sub(amount))
		tx.Outcome = domain.OutcomeExecutedSell
	}

	tx.Balances = l.balances.Clone()
	l.transactions = append(l.transactions, tx)

	return tx, nil
}

// Balances returns a snapshot copy of the current balances.
func (l *Ledger) Balances() domain.Balances {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances.Clone()
}

// Recent returns the last min(n, Len()) transactions, oldest first.
func (l *Ledger) Recent(n int) []domain.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || len(l.transactions) == 0 {
		return []domain.Transaction{}
	}
	if n > len(l.transactions) {
		n = len(l.transactions)
	}

	out := make([]domain.Transaction, n)
	copy(out, l.transactions[len(l.transactions)-n:])
	return out
}

// Len returns the number of recorded transactions.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.transactions)
}

// Pair returns the traded pair.
func (l *Ledger) Pair() domain.Pair {
	return l.pair
}
