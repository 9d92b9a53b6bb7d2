package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)

	assert.Equal(t, 5*time.Second, cfg.Scanner.ScanLatency)
	assert.Equal(t, 3*time.Second, cfg.Scanner.ParallelLatencyMin)
	assert.Equal(t, 7*time.Second, cfg.Scanner.ParallelLatencyMax)
	assert.InDelta(t, 0.7, cfg.Scanner.FindProbability, 1e-9)
	assert.Equal(t, []string{"USDC", "USDT", "DAI", "ETH", "WBTC"}, cfg.Scanner.Assets)

	assert.InDelta(t, 1.0, cfg.Engine.InvestmentAmount, 1e-9)

	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 50, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SCAN_LATENCY", "250ms")
	t.Setenv("SCAN_FIND_PROBABILITY", "0.5")
	t.Setenv("SCAN_ASSETS", "USDC, ETH ,")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("ENGINE_GAS_USED_MAX", "100000")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Scanner.ScanLatency)
	assert.InDelta(t, 0.5, cfg.Scanner.FindProbability, 1e-9)
	assert.Equal(t, []string{"USDC", "ETH"}, cfg.Scanner.Assets)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, int64(100000), cfg.Engine.GasUsedMax)
}

func TestLoadConfigMalformedValuesFallBack(t *testing.T) {
	t.Setenv("SCAN_LATENCY", "soon")
	t.Setenv("RATE_LIMIT_RPS", "many")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Scanner.ScanLatency)
	assert.Equal(t, 50, cfg.RateLimit.RequestsPerSecond)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"probability above one", "SCAN_FIND_PROBABILITY", "1.5"},
		{"probability below zero", "SCAN_FIND_PROBABILITY", "-0.1"},
		{"apy band inverted", "SCAN_APY_MAX", "1"},
		{"latency band inverted", "PARALLEL_SCAN_LATENCY_MAX", "1s"},
		{"non-positive investment", "ENGINE_INVESTMENT_AMOUNT", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
