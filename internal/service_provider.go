package internal

import (
	"fmt"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"

	"github.com/vadiminshakov/rsibot/internal/clients"
	"github.com/vadiminshakov/rsibot/internal/services/market/collector"
)

// newKlineProvider selects the market data source for the client type.
// This is the single point of truth for dispatching to platform-specific implementations.
func newKlineProvider(client any) (collector.KlineProvider, error) {
	switch c := client.(type) {
	case *binance.Client:
		return collector.NewBinanceKlineProvider(c), nil
	case *bybit.Client:
		return collector.NewBybitKlineProvider(c), nil
	case *clients.SimulateClient:
		return collector.NewBinanceKlineProvider(c.GetBinanceClient()), nil
	case *clients.HyperliquidClient:
		return collector.NewHyperliquidKlineProvider(c.Info()), nil
	case collector.KlineProvider:
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}
