package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertIntervalToBybit(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  string
		shouldErr bool
	}{
		{name: "1 minute", input: "1m", expected: "1"},
		{name: "5 minutes", input: "5m", expected: "5"},
		{name: "15 minutes", input: "15m", expected: "15"},
		{name: "1 hour", input: "1h", expected: "60"},
		{name: "4 hours", input: "4h", expected: "240"},
		{name: "1 day", input: "1d", expected: "D"},
		{name: "1 week", input: "1w", expected: "W"},
		{name: "empty", input: "", shouldErr: true},
		{name: "no unit", input: "1", shouldErr: true},
		{name: "unsupported unit", input: "1x", shouldErr: true},
		{name: "no number", input: "m", shouldErr: true},
		{name: "garbage number", input: "abm", shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := convertIntervalToBybit(tt.input)
			if tt.shouldErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseIntervalToDuration(t *testing.T) {
	tests := map[string]time.Duration{
		"5m": 5 * time.Minute,
		"1h": time.Hour,
		"1d": 24 * time.Hour,
		"1w": 7 * 24 * time.Hour,
	}
	for in, want := range tests {
		got, err := parseIntervalToDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseIntervalToDuration("0m")
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	ts, err := parseTimestamp("1672531200000")
	require.NoError(t, err)
	assert.Equal(t, int64(1672531200), ts.Unix())

	_, err = parseTimestamp("")
	assert.Error(t, err)
	_, err = parseTimestamp("abc")
	assert.Error(t, err)
}

func TestRawCandleParse(t *testing.T) {
	open := time.UnixMilli(1672531200000)
	c, err := rawCandle{openTime: open, open: "1", high: "2", low: "0.5", close: "1.5", volume: "10"}.parse(0)
	require.NoError(t, err)
	assert.Equal(t, "1.5", c.Close.String())
	assert.Equal(t, open, c.OpenTime)

	_, err = rawCandle{open: "1", high: "x"}.parse(3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "high at index 3")
}

func TestCandleRange(t *testing.T) {
	now := time.UnixMilli(10_000_000)
	start, end := candleRange(now, time.Minute, 100)
	assert.Equal(t, int64(10_000_000), end)
	assert.Equal(t, int64(10_000_000-102*60_000), start)
}

func TestWithContext(t *testing.T) {
	t.Run("returns the call result", func(t *testing.T) {
		err := withContext(context.Background(), func() error { return errors.New("rate limited") })
		assert.EqualError(t, err, "rate limited")
		assert.NoError(t, withContext(context.Background(), func() error { return nil }))
	})

	t.Run("gives up on a hung call when ctx expires", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		started := time.Now()
		err := withContext(ctx, func() error {
			<-release
			return nil
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(started), time.Second)
	})

	t.Run("skips the call when ctx is already done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := withContext(ctx, func() error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}
