package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/vadiminshakov/rsibot/internal/domain"
	"github.com/vadiminshakov/rsibot/internal/engine"
	"github.com/vadiminshakov/rsibot/internal/services/strategy"
	"go.uber.org/zap"
)

const (
	defaultRecentCount = 5
	defaultStopTimeout = 10 * time.Second
	defaultBotName     = "RSI bot"
)

const helpText = `General commands:
   /start - initializes the service and subscribes this chat to trade notifications
   /help - displays this message
Strategy commands:
   /list_strategies - lists all available strategies
   /strategy_start <StrategyName> - starts the specified strategy
   /strategy_stop <StrategyName> - stops the specified strategy
   /strategy_status <StrategyName> - displays the status of the specified strategy
   /balances <StrategyName> - displays the strategy balances
   /recent <StrategyName> <number> - shows the last <number> transactions, if any. Default <number> is 5.
   /rsi <StrategyName> - returns the current RSI for the strategy pair`

// Strategies is the lookup the dispatcher needs from the registry.
type Strategies interface {
	Get(name string) (*engine.Manager, bool)
	Names() []string
}

// Sessions remembers where asynchronous notifications should go.
type Sessions interface {
	Remember(session string)
}

// reporter is the read surface a strategy exposes beyond the loop contract.
type reporter interface {
	Pair() domain.Pair
	Balances() domain.Balances
	RecentTransactions(n int) []domain.Transaction
	TransactionCount() int
	Indicator(ctx context.Context) (float64, error)
	Valuation() (domain.Valuation, bool)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSessions registers the store notified on /start.
func WithSessions(s Sessions) Option {
	return func(d *Dispatcher) {
		d.sessions = s
	}
}

// WithBotName sets the name used in the /start greeting.
func WithBotName(name string) Option {
	return func(d *Dispatcher) {
		if name != "" {
			d.botName = name
		}
	}
}

// WithStopTimeout bounds how long strategy-stop waits for the loop to drain.
func WithStopTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.stopTimeout = d
		}
	}
}

// Dispatcher turns commands into reply text. It is safe for concurrent use.
type Dispatcher struct {
	l           *zap.Logger
	strategies  Strategies
	sessions    Sessions
	botName     string
	stopTimeout time.Duration
}

// NewDispatcher creates a dispatcher over the given strategies.
func NewDispatcher(l *zap.Logger, strategies Strategies, opts ...Option) *Dispatcher {
	if l == nil {
		l = zap.NewNop()
	}
	d := &Dispatcher{
		l:           l,
		strategies:  strategies,
		botName:     defaultBotName,
		stopTimeout: defaultStopTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleText parses and dispatches a raw command line.
func (d *Dispatcher) HandleText(ctx context.Context, session, text string) string {
	cmd, ok := Parse(text)
	if !ok {
		return "Empty command. Use /help to see available commands."
	}
	cmd.Session = session
	return d.Handle(ctx, cmd)
}

// Handle executes cmd and returns the reply. Invalid arguments never mutate state.
func (d *Dispatcher) Handle(ctx context.Context, cmd Command) string {
	d.l.Debug("command received",
		zap.String("command", cmd.Name),
		zap.Strings("args", cmd.Args),
		zap.String("session", cmd.Session))

	switch cmd.Name {
	case Start:
		if d.sessions != nil && cmd.Session != "" {
			d.sessions.Remember(cmd.Session)
		}
		return fmt.Sprintf("%s is running! Use /help to see available commands.", d.botName)
	case Help:
		return helpText
	case ListStrategies:
		return "Available strategies:\n" + strings.Join(d.strategies.Names(), "\n")
	case StrategyStart:
		return d.withManager(cmd, "strategy_start", func(m *engine.Manager) string {
			return m.Start()
		})
	case StrategyStop:
		return d.withManager(cmd, "strategy_stop", func(m *engine.Manager) string {
			stopCtx, cancel := context.WithTimeout(ctx, d.stopTimeout)
			defer cancel()
			return m.Stop(stopCtx)
		})
	case StrategyStatus:
		return d.withManager(cmd, "strategy_status", func(m *engine.Manager) string {
			return m.Status()
		})
	case Balances:
		return d.withReporter(cmd, "balances <StrategyName>", 1, 1, func(_ string, r reporter) string {
			return formatBalances(r)
		})
	case Recent:
		return d.withReporter(cmd, "recent <StrategyName> <number>", 1, 2, func(_ string, r reporter) string {
			count := defaultRecentCount
			if len(cmd.Args) == 2 {
				n, err := strconv.Atoi(cmd.Args[1])
				if err != nil || n < 1 {
					return "Please provide a valid number."
				}
				count = n
			}
			return formatRecent(r, count)
		})
	case Indicator:
		return d.withReporter(cmd, "rsi <StrategyName>", 1, 1, func(name string, r reporter) string {
			return d.indicator(ctx, name, r)
		})
	default:
		name := cmd.Raw
		if name == "" {
			name = cmd.Name
		}
		return fmt.Sprintf("Unknown command /%s. Use /help to see available commands.", name)
	}
}

func (d *Dispatcher) withManager(cmd Command, usage string, fn func(*engine.Manager) string) string {
	if len(cmd.Args) != 1 {
		return fmt.Sprintf("Usage: /%s <StrategyName>", usage)
	}
	m, ok := d.strategies.Get(cmd.Args[0])
	if !ok {
		return fmt.Sprintf("Strategy %s not found.", cmd.Args[0])
	}
	return fn(m)
}

func (d *Dispatcher) withReporter(cmd Command, usage string, minArgs, maxArgs int, fn func(string, reporter) string) string {
	if len(cmd.Args) < minArgs || len(cmd.Args) > maxArgs {
		return "Usage: /" + usage
	}
	name := cmd.Args[0]
	m, ok := d.strategies.Get(name)
	if !ok {
		return fmt.Sprintf("Strategy %s not found.", name)
	}
	r, ok := m.Trader().(reporter)
	if !ok {
		return fmt.Sprintf("Strategy %s does not expose reports.", name)
	}
	return fn(name, r)
}

func (d *Dispatcher) indicator(ctx context.Context, name string, r reporter) string {
	v, err := r.Indicator(ctx)
	switch {
	case err == nil:
		return fmt.Sprintf("Current RSI: %.2f", v)
	case errors.Is(err, strategy.ErrNotEnoughData):
		return fmt.Sprintf("Not enough data to compute RSI for %s yet.", name)
	default:
		d.l.Warn("indicator request failed", zap.String("strategy", name), zap.Error(err))
		return fmt.Sprintf("Unable to fetch market data for %s. Try again later.", name)
	}
}

func formatBalances(r reporter) string {
	pair := r.Pair()
	b := r.Balances()

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n", pair.To, b.Get(pair.To).StringFixed(2))
	fmt.Fprintf(&sb, "%s: %s", pair.From, b.Get(pair.From).StringFixed(5))

	if v, ok := r.Valuation(); ok {
		fmt.Fprintf(&sb, "\nValue at $%s: %s %s or %s %s",
			v.Price.String(),
			v.TotalQuote.StringFixed(2), pair.To,
			v.TotalBase.StringFixed(5), pair.From)
	}
	return sb.String()
}

func formatRecent(r reporter, count int) string {
	total := r.TransactionCount()
	if total == 0 {
		return "No transactions found."
	}
	txs := r.RecentTransactions(count)
	lines := lo.Map(txs, func(tx domain.Transaction, _ int) string {
		return tx.String()
	})
	return fmt.Sprintf("Recent trades:\n%s\nLast %d shown of %d transactions.",
		strings.Join(lines, "\n"), len(txs), total)
}
