package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftmind/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("test", []string{"--use-memory"})
	require.NoError(t, err)

	assert.Equal(t, "ETH", cfg.MainToken)
	assert.Equal(t, 7, cfg.HistoryDays)
	assert.Equal(t, domain.StrategyBalanced, cfg.Strategy)
	assert.Equal(t, 60*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 30*time.Second, cfg.StatusInterval)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 0.01, cfg.AutoSwapAmount)
	assert.Equal(t, 0.75, cfg.AutoSwapMinConfidence)
	assert.False(t, cfg.AutoSwap)
}

func TestLoad_EnvAndFlags(t *testing.T) {
	t.Setenv("MAIN_TOKEN", "sol")
	t.Setenv("STRATEGY", "stable")
	t.Setenv("REFRESH_INTERVAL", "90")
	t.Setenv("STATUS_INTERVAL", "2m")
	t.Setenv("USE_MEMORY", "true")
	t.Setenv("HISTORY_DAYS", "14")

	cfg, err := Load("test", []string{"--history-days", "30"})
	require.NoError(t, err)

	assert.Equal(t, "SOL", cfg.MainToken)
	assert.Equal(t, domain.StrategyBalanced, cfg.Strategy, "legacy alias")
	assert.Equal(t, 90*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 2*time.Minute, cfg.StatusInterval)
	assert.True(t, cfg.UseMemory)
	assert.Equal(t, 30, cfg.HistoryDays, "flag wins over env")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no storage", nil},
		{"bad strategy", []string{"--use-memory", "--strategy", "yolo"}},
		{"auto-swap without wallet", []string{"--use-memory", "--auto-swap"}},
		{"confidence out of range", []string{"--use-memory", "--auto-swap-min-confidence", "1.5"}},
		{"unknown flag", []string{"--nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("POSTGRES_DSN", "")
			_, err := Load("test", tt.args)
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SHIFTMIND_TEST_A=from-file\nSHIFTMIND_TEST_B=from-file\n"), 0o600))

	t.Setenv("SHIFTMIND_TEST_B", "from-env")
	t.Cleanup(func() { os.Unsetenv("SHIFTMIND_TEST_A") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("SHIFTMIND_TEST_A"))
	assert.Equal(t, "from-env", os.Getenv("SHIFTMIND_TEST_B"), "existing env is not overridden")

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
