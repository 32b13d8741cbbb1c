package domain

// Signal is the per-cycle output of a decision rule.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// IsTrade reports whether the signal asks for a balance change.
func (s Signal) IsTrade() bool {
	return s == SignalBuy || s == SignalSell
}

func (s Signal) String() string {
	return string(s)
}
