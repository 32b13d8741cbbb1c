package clients

import (
	"testing"

	"github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv(t *testing.T) {
	c, err := FromEnv("simulate", envOf(nil))
	require.NoError(t, err)
	assert.IsType(t, &SimulateClient{}, c)

	c, err = FromEnv("binance", envOf(nil))
	require.NoError(t, err)
	assert.IsType(t, &binance.Client{}, c)

	c, err = FromEnv("bybit", envOf(map[string]string{"BYBIT_API_KEY": "k", "BYBIT_API_SECRET": "s"}))
	require.NoError(t, err)
	assert.IsType(t, &bybit.Client{}, c)

	_, err = FromEnv("hyperliquid", envOf(nil))
	assert.Error(t, err)

	_, err = FromEnv("hyperliquid", envOf(map[string]string{"HYPERLIQUID_PRIVATE_KEY": "0xnothex"}))
	assert.Error(t, err)

	_, err = FromEnv("kraken", envOf(nil))
	assert.Error(t, err)
}
