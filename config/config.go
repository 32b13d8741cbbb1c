// Package config loads the bot configuration from YAML, flags and environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/rsibot/internal/domain"
	"github.com/vadiminshakov/rsibot/pkg/indicators"
	"gopkg.in/yaml.v3"
)

// Kind selects the decision rule of a strategy.
type Kind string

const (
	KindThreshold Kind = "threshold"
	KindCooldown  Kind = "cooldown"
)

const (
	PlatformBinance     = "binance"
	PlatformBybit       = "bybit"
	PlatformHyperliquid = "hyperliquid"
	PlatformSimulate    = "simulate"
)

const (
	defaultPlatform     = PlatformSimulate
	defaultPollInterval = 60 * time.Second
	defaultFetchTimeout = 30 * time.Second
	defaultTradeAmount  = "0.05"
	defaultPair         = "ETH_USDT"
	defaultTimeframe    = "5m"
	defaultLimit        = 100
	defaultPeriod       = 14
	defaultLower        = 30.0
	defaultUpper        = 70.0
	defaultDelay        = 15 * time.Minute
	defaultWebAddr      = "127.0.0.1:8080"
	defaultChatRate     = 1.0
)

// Config is the validated runtime configuration.
type Config struct {
	Platform     string
	Location     *time.Location
	PollInterval time.Duration
	FetchTimeout time.Duration
	FetchRetry   RetryConfig
	// JournalDir is the transaction WAL directory; empty disables the journal.
	JournalDir string
	Web        WebConfig
	Telegram   TelegramConfig
	Strategies []StrategyConfig
}

// RetryConfig is the fetch failure policy inside one cycle.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// WebConfig configures the HTTP command surface.
type WebConfig struct {
	Enabled          bool
	Addr             string
	AutocertDomains  []string
	AutocertCacheDir string
	// Token guards the command endpoint. It comes from WEB_TOKEN.
	Token string
}

// TelegramConfig configures the chat command channel. Token and chat come from the environment.
type TelegramConfig struct {
	Disabled      bool
	Token         string
	AllowedChatID int64
	NotifyTrades  bool
	// MessagesPerSecond paces outgoing messages.
	MessagesPerSecond float64
}

// Enabled reports whether the bot should connect to Telegram.
func (t TelegramConfig) Enabled() bool {
	return !t.Disabled && t.Token != ""
}

// StrategyConfig describes one registry entry.
type StrategyConfig struct {
	Name        string
	Kind        Kind
	Pair        domain.Pair
	Timeframe   string
	Limit       int
	Period      int
	Lower       float64
	Upper       float64
	Smoothing   indicators.Smoothing
	Delay       time.Duration
	TradeAmount decimal.Decimal
	Balances    domain.Balances
	// Autostart launches the loop at process start instead of waiting for a start command.
	Autostart bool
}

// ConfigTmp is the raw YAML document.
type ConfigTmp struct {
	Platform     string        `yaml:"platform"`
	Timezone     string        `yaml:"timezone,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	FetchTimeout time.Duration `yaml:"fetch_timeout,omitempty"`
	FetchRetry   RetryTmp      `yaml:"fetch_retry,omitempty"`
	TradeAmount  string        `yaml:"trade_amount,omitempty"`
	JournalDir   string        `yaml:"journal_dir,omitempty"`
	Web          WebTmp        `yaml:"web,omitempty"`
	Telegram     TelegramTmp   `yaml:"telegram,omitempty"`
	Strategies   []StrategyTmp `yaml:"strategies"`
}

// RetryTmp is the raw fetch_retry section.
type RetryTmp struct {
	MaxRetries      int           `yaml:"max_retries,omitempty"`
	InitialInterval time.Duration `yaml:"initial_interval,omitempty"`
	MaxInterval     time.Duration `yaml:"max_interval,omitempty"`
}

// WebTmp is the raw web section.
type WebTmp struct {
	Disabled         bool     `yaml:"disabled,omitempty"`
	Addr             string   `yaml:"addr,omitempty"`
	AutocertDomains  []string `yaml:"autocert_domains,omitempty"`
	AutocertCacheDir string   `yaml:"autocert_cache_dir,omitempty"`
}

// TelegramTmp is the raw telegram section.
type TelegramTmp struct {
	Disabled          bool   `yaml:"disabled,omitempty"`
	NotifyTrades      bool   `yaml:"notify_trades,omitempty"`
	MessagesPerSecond string `yaml:"messages_per_second,omitempty"`
}

// StrategyTmp is a raw strategy entry.
type StrategyTmp struct {
	Name        string            `yaml:"name"`
	Kind        string            `yaml:"kind,omitempty"`
	Pair        string            `yaml:"pair,omitempty"`
	Timeframe   string            `yaml:"timeframe,omitempty"`
	Limit       int               `yaml:"limit,omitempty"`
	PeriodStr   string            `yaml:"rsi_period,omitempty"`
	LowerStr    string            `yaml:"rsi_lower,omitempty"`
	UpperStr    string            `yaml:"rsi_upper,omitempty"`
	Smoothing   string            `yaml:"rsi_smoothing,omitempty"`
	Delay       time.Duration     `yaml:"delay,omitempty"`
	TradeAmount string            `yaml:"trade_amount,omitempty"`
	Balances    map[string]string `yaml:"balances,omitempty"`
	Autostart   bool              `yaml:"autostart,omitempty"`
}

// DefaultTmp mirrors the stock registry: a plain RSI strategy and a 15 minute cooldown variant.
func DefaultTmp() ConfigTmp {
	return ConfigTmp{
		Platform:     defaultPlatform,
		PollInterval: defaultPollInterval,
		Strategies: []StrategyTmp{
			{Name: "rsi-simple", Kind: string(KindThreshold)},
			{Name: "rsi-delay", Kind: string(KindCooldown), Delay: defaultDelay},
		},
	}
}

// Default returns the parsed stock configuration.
func Default() Config {
	cfg, err := DefaultTmp().Parse()
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// Load reads and parses a YAML file.
func Load(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(f)
}

// Parse decodes a YAML document.
func Parse(data []byte) (Config, error) {
	var tmp ConfigTmp
	if err := yaml.Unmarshal(data, &tmp); err != nil {
		return Config{}, errors.Wrap(err, "decode yaml config")
	}
	return tmp.Parse()
}

// Parse validates the raw document and fills in defaults.
func (c ConfigTmp) Parse() (Config, error) {
	cfg := Config{
		Platform:     strings.ToLower(c.Platform),
		PollInterval: c.PollInterval,
		FetchTimeout: c.FetchTimeout,
		FetchRetry: RetryConfig{
			MaxRetries:      c.FetchRetry.MaxRetries,
			InitialInterval: c.FetchRetry.InitialInterval,
			MaxInterval:     c.FetchRetry.MaxInterval,
		},
		JournalDir: c.JournalDir,
		Web: WebConfig{
			Enabled:          !c.Web.Disabled,
			Addr:             c.Web.Addr,
			AutocertDomains:  c.Web.AutocertDomains,
			AutocertCacheDir: c.Web.AutocertCacheDir,
		},
		Telegram: TelegramConfig{
			Disabled:     c.Telegram.Disabled,
			NotifyTrades: c.Telegram.NotifyTrades,
		},
	}

	switch cfg.Platform {
	case "":
		cfg.Platform = defaultPlatform
	case PlatformBinance, PlatformBybit, PlatformHyperliquid, PlatformSimulate:
	default:
		return Config{}, fmt.Errorf("incorrect 'platform' param in yaml config: %q", c.Platform)
	}

	cfg.Location = time.UTC
	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'timezone' param in yaml config: %w", err)
		}
		cfg.Location = loc
	}

	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollInterval < 0 {
		return Config{}, fmt.Errorf("incorrect 'poll_interval' param in yaml config: %s", cfg.PollInterval)
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.FetchRetry.MaxRetries < 0 {
		return Config{}, fmt.Errorf("incorrect 'fetch_retry.max_retries' param in yaml config: %d", cfg.FetchRetry.MaxRetries)
	}
	if cfg.Web.Addr == "" {
		cfg.Web.Addr = defaultWebAddr
	}
	if cfg.Web.AutocertCacheDir == "" {
		cfg.Web.AutocertCacheDir = "certs"
	}

	cfg.Telegram.MessagesPerSecond = defaultChatRate
	if c.Telegram.MessagesPerSecond != "" {
		rate, err := strconv.ParseFloat(c.Telegram.MessagesPerSecond, 64)
		if err != nil || rate <= 0 {
			return Config{}, fmt.Errorf("incorrect 'telegram.messages_per_second' param in yaml config: %q", c.Telegram.MessagesPerSecond)
		}
		cfg.Telegram.MessagesPerSecond = rate
	}

	defaultAmount := defaultTradeAmount
	if c.TradeAmount != "" {
		defaultAmount = c.TradeAmount
	}

	if len(c.Strategies) == 0 {
		return Config{}, errors.New("yaml config must define at least one strategy")
	}

	seen := make(map[string]struct{}, len(c.Strategies))
	for i, s := range c.Strategies {
		sc, err := s.parse(defaultAmount)
		if err != nil {
			return Config{}, errors.Wrapf(err, "strategy #%d", i+1)
		}
		if _, dup := seen[sc.Name]; dup {
			return Config{}, fmt.Errorf("duplicate strategy name %q", sc.Name)
		}
		seen[sc.Name] = struct{}{}
		cfg.Strategies = append(cfg.Strategies, sc)
	}

	return cfg, nil
}

func (s StrategyTmp) parse(defaultAmount string) (StrategyConfig, error) {
	name := strings.TrimSpace(s.Name)
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return StrategyConfig{}, fmt.Errorf("incorrect 'name' param: %q (must be a single word)", s.Name)
	}

	sc := StrategyConfig{
		Name:      name,
		Kind:      Kind(strings.ToLower(s.Kind)),
		Timeframe: s.Timeframe,
		Limit:     s.Limit,
		Delay:     s.Delay,
		Autostart: s.Autostart,
		Period:    defaultPeriod,
		Lower:     defaultLower,
		Upper:     defaultUpper,
	}

	switch sc.Kind {
	case "":
		sc.Kind = KindThreshold
	case KindThreshold:
	case KindCooldown:
		if sc.Delay == 0 {
			sc.Delay = defaultDelay
		}
		if sc.Delay < 0 {
			return StrategyConfig{}, fmt.Errorf("incorrect 'delay' param: %s", sc.Delay)
		}
	default:
		return StrategyConfig{}, fmt.Errorf("incorrect 'kind' param: %q (threshold or cooldown)", s.Kind)
	}

	pairStr := s.Pair
	if pairStr == "" {
		pairStr = defaultPair
	}
	pair, err := domain.ParsePair(pairStr)
	if err != nil {
		return StrategyConfig{}, fmt.Errorf("incorrect 'pair' param: %w", err)
	}
	sc.Pair = pair

	if sc.Timeframe == "" {
		sc.Timeframe = defaultTimeframe
	}
	if sc.Limit == 0 {
		sc.Limit = defaultLimit
	}
	if sc.Limit < 0 {
		return StrategyConfig{}, fmt.Errorf("incorrect 'limit' param: %d", sc.Limit)
	}

	if s.PeriodStr != "" {
		period, err := strconv.Atoi(s.PeriodStr)
		if err != nil || period < 1 {
			return StrategyConfig{}, fmt.Errorf("incorrect 'rsi_period' param (must be a positive integer): %q", s.PeriodStr)
		}
		sc.Period = period
	}
	if s.LowerStr != "" {
		if sc.Lower, err = strconv.ParseFloat(s.LowerStr, 64); err != nil {
			return StrategyConfig{}, fmt.Errorf("incorrect 'rsi_lower' param: %w", err)
		}
	}
	if s.UpperStr != "" {
		if sc.Upper, err = strconv.ParseFloat(s.UpperStr, 64); err != nil {
			return StrategyConfig{}, fmt.Errorf("incorrect 'rsi_upper' param: %w", err)
		}
	}
	if sc.Lower < 0 || sc.Upper > 100 || sc.Lower >= sc.Upper {
		return StrategyConfig{}, fmt.Errorf("rsi bounds must satisfy 0 <= lower < upper <= 100, got %.2f/%.2f", sc.Lower, sc.Upper)
	}
	if sc.Limit < sc.Period+1 {
		return StrategyConfig{}, fmt.Errorf("'limit' %d is too small for rsi_period %d", sc.Limit, sc.Period)
	}

	if sc.Smoothing, err = indicators.ParseSmoothing(s.Smoothing); err != nil {
		return StrategyConfig{}, err
	}

	amountStr := s.TradeAmount
	if amountStr == "" {
		amountStr = defaultAmount
	}
	sc.TradeAmount, err = decimal.NewFromString(amountStr)
	if err != nil || !sc.TradeAmount.IsPositive() {
		return StrategyConfig{}, fmt.Errorf("incorrect 'trade_amount' param (must be a positive decimal): %q", amountStr)
	}
	if !domain.RoundBase(sc.TradeAmount).IsPositive() {
		return StrategyConfig{}, fmt.Errorf("incorrect 'trade_amount' param (below the 0.00001 base precision): %q", amountStr)
	}

	sc.Balances = domain.Balances{
		pair.To:   decimal.NewFromInt(1000),
		pair.From: decimal.RequireFromString("0.25"),
	}
	for asset, v := range s.Balances {
		amount, err := decimal.NewFromString(v)
		if err != nil || amount.IsNegative() {
			return StrategyConfig{}, fmt.Errorf("incorrect balance for %s: %q", asset, v)
		}
		asset = strings.ToUpper(asset)
		if asset != pair.From && asset != pair.To {
			return StrategyConfig{}, fmt.Errorf("balance asset %s is not part of pair %s", asset, pair.String())
		}
		sc.Balances[asset] = amount
	}

	return sc, nil
}
