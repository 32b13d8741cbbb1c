// Package setup runs the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/rsibot/config"
	"github.com/vadiminshakov/rsibot/internal/domain"
	"gopkg.in/yaml.v3"
)

// OutputFile is where the wizard writes the generated configuration.
const OutputFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers holds the raw wizard input.
type Answers struct {
	Platform     string
	Pair         string
	Kinds        []string
	PollInterval string
	Timeframe    string
	Period       string
	Lower        string
	Upper        string
	Delay        string
	TradeAmount  string
	QuoteBalance string
	BaseBalance  string
	NotifyTrades bool
}

// DefaultAnswers pre-fills the wizard with the stock strategy settings.
func DefaultAnswers() Answers {
	return Answers{
		Platform:     config.PlatformSimulate,
		Pair:         "ETH_USDT",
		Kinds:        []string{string(config.KindThreshold), string(config.KindCooldown)},
		PollInterval: "60s",
		Timeframe:    "5m",
		Period:       "14",
		Lower:        "30",
		Upper:        "70",
		Delay:        "15m",
		TradeAmount:  "0.05",
		QuoteBalance: "1000",
		BaseBalance:  "0.25",
		NotifyTrades: true,
	}
}

// RunTUI launches the terminal configuration wizard and writes OutputFile.
func RunTUI() error {
	a := DefaultAnswers()
	confirm := false

	step := func(title string) {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("RSI BOT CONFIG WIZARD"))
		fmt.Println(stepStyle.Render(title))
	}

	step("STEP 1: MARKET")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Paper trading only: no orders are ever sent.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Market data source").
				Options(
					huh.NewOption("Binance public data (no keys)", config.PlatformSimulate),
					huh.NewOption("Binance", config.PlatformBinance),
					huh.NewOption("Bybit", config.PlatformBybit),
					huh.NewOption("Hyperliquid", config.PlatformHyperliquid),
				).
				Value(&a.Platform),
			huh.NewInput().
				Title("Trading Pair").
				Description("BASE_QUOTE (e.g. ETH_USDT)").
				Value(&a.Pair).
				Validate(validatePair),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 2: STRATEGIES")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Strategies to register").
				Options(
					huh.NewOption("RSI thresholds", string(config.KindThreshold)).Selected(true),
					huh.NewOption("RSI thresholds with cooldown", string(config.KindCooldown)).Selected(true),
				).
				Value(&a.Kinds).
				Validate(func(v []string) error {
					if len(v) == 0 {
						return errors.New("select at least one strategy")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 3: RSI SETTINGS")
	fields := []huh.Field{
		huh.NewInput().Title("Candle timeframe").Description("e.g. 1m, 5m, 1h").Value(&a.Timeframe),
		huh.NewInput().Title("Poll interval").Description("Duration string (e.g. 30s, 1m)").Value(&a.PollInterval).Validate(validateDuration),
		huh.NewInput().Title("RSI period").Value(&a.Period).Validate(validatePositiveInt),
		huh.NewInput().Title("Lower bound (BUY below)").Value(&a.Lower).Validate(validateBound),
		huh.NewInput().Title("Upper bound (SELL above)").Value(&a.Upper).Validate(validateBound),
	}
	if containsKind(a.Kinds, config.KindCooldown) {
		fields = append(fields, huh.NewInput().Title("Cooldown between trades").Value(&a.Delay).Validate(validateDuration))
	}
	if err = huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return err
	}

	step("STEP 4: PAPER BALANCES")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Trade amount (base units)").Value(&a.TradeAmount).Validate(validatePositiveDecimal),
			huh.NewInput().Title("Starting quote balance").Value(&a.QuoteBalance).Validate(validateNonNegativeDecimal),
			huh.NewInput().Title("Starting base balance").Value(&a.BaseBalance).Validate(validateNonNegativeDecimal),
			huh.NewConfirm().Title("Send trade notifications to Telegram?").Value(&a.NotifyTrades),
		),
	).Run()
	if err != nil {
		return err
	}

	tmp, err := BuildConfig(a)
	if err != nil {
		return err
	}

	step("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Platform: %s\nPair: %s\nStrategies: %s\nTimeframe: %s\nRSI: %s (%s/%s)\n",
		a.Platform, a.Pair, strings.Join(a.Kinds, ", "), a.Timeframe, a.Period, a.Lower, a.Upper,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return errors.New("setup cancelled by user")
	}

	if err := WriteConfig(OutputFile, tmp); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting bot...", OutputFile)))
	time.Sleep(1500 * time.Millisecond)
	return nil
}

// BuildConfig turns wizard answers into a raw config document and checks that it parses.
func BuildConfig(a Answers) (config.ConfigTmp, error) {
	pair, err := domain.ParsePair(a.Pair)
	if err != nil {
		return config.ConfigTmp{}, err
	}
	poll, err := time.ParseDuration(a.PollInterval)
	if err != nil {
		return config.ConfigTmp{}, errors.Wrap(err, "poll interval")
	}

	tmp := config.ConfigTmp{
		Platform:     a.Platform,
		PollInterval: poll,
		TradeAmount:  a.TradeAmount,
		Telegram:     config.TelegramTmp{NotifyTrades: a.NotifyTrades},
	}

	for _, kind := range a.Kinds {
		s := config.StrategyTmp{
			Name:      "rsi-" + kind,
			Kind:      kind,
			Pair:      pair.String(),
			Timeframe: a.Timeframe,
			PeriodStr: a.Period,
			LowerStr:  a.Lower,
			UpperStr:  a.Upper,
			Balances: map[string]string{
				pair.To:   a.QuoteBalance,
				pair.From: a.BaseBalance,
			},
		}
		if kind == string(config.KindCooldown) {
			delay, err := time.ParseDuration(a.Delay)
			if err != nil {
				return config.ConfigTmp{}, errors.Wrap(err, "cooldown delay")
			}
			s.Delay = delay
		}
		tmp.Strategies = append(tmp.Strategies, s)
	}

	if _, err := tmp.Parse(); err != nil {
		return config.ConfigTmp{}, err
	}
	return tmp, nil
}

// WriteConfig marshals tmp as YAML into path.
func WriteConfig(path string, tmp config.ConfigTmp) error {
	data, err := yaml.Marshal(tmp)
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}
	return nil
}

func containsKind(kinds []string, k config.Kind) bool {
	for _, v := range kinds {
		if v == string(k) {
			return true
		}
	}
	return false
}

func validatePair(s string) error {
	_, err := domain.ParsePair(s)
	return err
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return errors.New("must be a positive integer")
	}
	return nil
}

func validateBound(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 100 {
		return errors.New("must be between 0 and 100")
	}
	return nil
}

func validatePositiveDecimal(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return errors.New("must be a valid number")
	}
	if !d.IsPositive() {
		return errors.New("must be positive")
	}
	return nil
}

func validateNonNegativeDecimal(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return errors.New("must be a valid number")
	}
	if d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}
