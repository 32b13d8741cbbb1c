// Package clients constructs exchange SDK clients from credentials in the environment.
package clients

import (
	"fmt"
	"strings"

	"github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
)

const defaultHyperliquidURL = "https://api.hyperliquid.xyz"

// NewBinanceClient returns a Binance client. Market data endpoints work without keys.
func NewBinanceClient(apiKey, apiSecret string) *binance.Client {
	return binance.NewClient(apiKey, apiSecret)
}

// NewBybitClient returns a Bybit client, authenticated when both keys are set.
func NewBybitClient(apiKey, apiSecret string) *bybit.Client {
	client := bybit.NewClient()
	if apiKey != "" && apiSecret != "" {
		client = client.WithAuth(apiKey, apiSecret)
	}
	return client
}

// FromEnv builds the client for platform using credentials read through getenv.
func FromEnv(platform string, getenv func(string) string) (any, error) {
	switch strings.ToLower(platform) {
	case "binance":
		return NewBinanceClient(getenv("BINANCE_API_KEY"), getenv("BINANCE_API_SECRET")), nil
	case "bybit":
		return NewBybitClient(getenv("BYBIT_API_KEY"), getenv("BYBIT_API_SECRET")), nil
	case "hyperliquid":
		key := getenv("HYPERLIQUID_PRIVATE_KEY")
		if key == "" {
			return nil, errors.New("HYPERLIQUID_PRIVATE_KEY environment variable must be set")
		}
		baseURL := getenv("HYPERLIQUID_BASE_URL")
		if baseURL == "" {
			baseURL = defaultHyperliquidURL
		}
		return NewHyperliquidClient(key, baseURL)
	case "simulate", "":
		return NewSimulateClient(), nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", platform)
	}
}
