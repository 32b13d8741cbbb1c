package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is used for every human-readable timestamp.
const TimeLayout = "2006-01-02 15:04:05"

// Outcome describes how a ledger apply ended.
type Outcome string

const (
	OutcomeExecutedBuy  Outcome = "executed-buy"
	OutcomeExecutedSell Outcome = "executed-sell"
	OutcomeRejected     Outcome = "rejected"
)

// Transaction is an immutable ledger record. Rejected attempts are recorded too.
type Transaction struct {
	ID       string          `json:"id"`
	Strategy string          `json:"strategy"`
	Pair     Pair            `json:"pair"`
	Time     time.Time       `json:"ts"`
	Action   Signal          `json:"action"`
	Outcome  Outcome         `json:"outcome"`
	Price    decimal.Decimal `json:"price"`
	Amount   decimal.Decimal `json:"amount"`
	Value    decimal.Decimal `json:"value"`
	Balances Balances        `json:"balances"`
	Reason   string          `json:"reason,omitempty"`
}

// Executed reports whether balances were changed by this record.
func (t Transaction) Executed() bool {
	return t.Outcome != OutcomeRejected
}

// String renders the record as a single display line.
func (t Transaction) String() string {
	ts := t.Time.Format(TimeLayout)
	if !t.Executed() {
		return fmt.Sprintf("[%s][FAILURE]: Unable to %s %s %s at $%s (%s)",
			ts, t.Action, t.Amount.String(), t.Pair.From, t.Price.String(), t.Reason)
	}
	return fmt.Sprintf("[%s][%s]: %s %s at $%s",
		ts, t.Action, t.Amount.String(), t.Pair.From, t.Price.String())
}
