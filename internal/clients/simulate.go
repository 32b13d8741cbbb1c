package clients

import (
	"github.com/adshao/go-binance/v2"
)

// SimulateClient reads public Binance market data for paper trading without credentials.
type SimulateClient struct {
	binanceClient *binance.Client
}

// NewSimulateClient creates a keyless client.
func NewSimulateClient() *SimulateClient {
	return &SimulateClient{binanceClient: binance.NewClient("", "")}
}

// GetBinanceClient returns the underlying Binance client.
func (c *SimulateClient) GetBinanceClient() *binance.Client {
	return c.binanceClient
}
