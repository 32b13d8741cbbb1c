package domain

import "github.com/shopspring/decimal"

const (
	quotePrecision int32 = 2
	basePrecision  int32 = 5
)

// Balances maps an asset symbol to its quantity.
type Balances map[string]decimal.Decimal

// Clone returns an independent copy.
func (b Balances) Clone() Balances {
	out := make(Balances, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Get returns the quantity of asset, zero when absent.
func (b Balances) Get(asset string) decimal.Decimal {
	if v, ok := b[asset]; ok {
		return v
	}
	return decimal.Zero
}

// RoundQuote rounds a quote-currency amount to cents.
func RoundQuote(d decimal.Decimal) decimal.Decimal {
	return d.Round(quotePrecision)
}

// RoundBase rounds a base-asset quantity to the ledger precision.
func RoundBase(d decimal.Decimal) decimal.Decimal {
	return d.Round(basePrecision)
}

// Valuation is the worth of a balance sheet at a given price.
type Valuation struct {
	Price decimal.Decimal
	// TotalQuote is quote + base*price.
	TotalQuote decimal.Decimal
	// TotalBase is base + quote/price.
	TotalBase decimal.Decimal
}

// Value prices the balances for pair at price. A non-positive price yields a zero Valuation.
func (b Balances) Value(pair Pair, price decimal.Decimal) Valuation {
	if !price.IsPositive() {
		return Valuation{}
	}
	quote, base := b.Get(pair.To), b.Get(pair.From)
	return Valuation{
		Price:      price,
		TotalQuote: RoundQuote(quote.Add(base.Mul(price))),
		TotalBase:  RoundBase(base.Add(quote.Div(price))),
	}
}
