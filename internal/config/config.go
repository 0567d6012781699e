// Package config loads service configuration from flags, with environment
// variables (optionally from a .env file) as flag defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"shiftmind/internal/domain"
)

// Config holds the service configuration.
type Config struct {
	CoinGeckoURL string
	SideShiftURL string
	AffiliateID  string
	SideShiftKey string

	PostgresDSN   string
	ClickhouseDSN string
	RedisAddr     string
	RedisPassword string
	UseMemory     bool

	HTTPAddr        string
	RefreshInterval time.Duration
	StatusInterval  time.Duration
	CacheTTL        time.Duration
	FetchRateLimit  float64 // requests per second, 0 disables

	MainToken     string
	HistoryDays   int
	Strategy      domain.StrategyType
	WalletAddress string

	AutoSwap              bool
	AutoSwapAmount        float64
	AutoSwapMinConfidence float64
}

// LoadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load parses args (without the program name) using environment values as
// defaults. Flags win over the environment.
func Load(name string, args []string) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cfg := &Config{}
	var strategy string

	fs.StringVar(&cfg.CoinGeckoURL, "coingecko-url", envString("COINGECKO_API_URL", "https://api.coingecko.com/api/v3"), "CoinGecko API base URL")
	fs.StringVar(&cfg.SideShiftURL, "sideshift-url", envString("SIDESHIFT_API_URL", "https://sideshift.ai/api/v2"), "SideShift API base URL")
	fs.StringVar(&cfg.AffiliateID, "affiliate-id", envString("SIDESHIFT_AFFILIATE_ID", ""), "SideShift affiliate id")
	fs.StringVar(&cfg.SideShiftKey, "sideshift-secret", envString("SIDESHIFT_SECRET", ""), "SideShift private key")

	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", envString("POSTGRES_DSN", ""), "PostgreSQL connection string")
	fs.StringVar(&cfg.ClickhouseDSN, "clickhouse-dsn", envString("CLICKHOUSE_DSN", ""), "ClickHouse connection string (optional archive)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", envString("REDIS_ADDR", ""), "Redis address for the shared response cache (optional)")
	fs.StringVar(&cfg.RedisPassword, "redis-password", envString("REDIS_PASSWORD", ""), "Redis password")
	fs.BoolVar(&cfg.UseMemory, "use-memory", envBool("USE_MEMORY", false), "Use in-memory storage instead of PostgreSQL")

	fs.StringVar(&cfg.HTTPAddr, "http-addr", envString("HTTP_ADDR", ":8080"), "HTTP listen address")
	fs.DurationVar(&cfg.RefreshInterval, "refresh-interval", envDuration("REFRESH_INTERVAL", 60*time.Second), "Price refresh interval")
	fs.DurationVar(&cfg.StatusInterval, "status-interval", envDuration("STATUS_INTERVAL", 30*time.Second), "Swap status poll interval")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", envDuration("CACHE_TTL", 30*time.Second), "Fresh lifetime of cached GET responses")
	fs.Float64Var(&cfg.FetchRateLimit, "fetch-rate-limit", envFloat("FETCH_RATE_LIMIT", 0), "Outbound requests per second (0 = unlimited)")

	fs.StringVar(&cfg.MainToken, "token", envString("MAIN_TOKEN", "ETH"), "Token the signal is generated for")
	fs.IntVar(&cfg.HistoryDays, "history-days", envInt("HISTORY_DAYS", 7), "Days of price history to analyze")
	fs.StringVar(&strategy, "strategy", envString("STRATEGY", string(domain.StrategyBalanced)), "Default strategy: safe, balanced or aggressive")
	fs.StringVar(&cfg.WalletAddress, "wallet", envString("WALLET_ADDRESS", ""), "Wallet that receives swaps")

	fs.BoolVar(&cfg.AutoSwap, "auto-swap", envBool("AUTO_SWAP", false), "Act on confident signals")
	fs.Float64Var(&cfg.AutoSwapAmount, "auto-swap-amount", envFloat("AUTO_SWAP_AMOUNT", 0.01), "Amount swapped by auto-swap")
	fs.Float64Var(&cfg.AutoSwapMinConfidence, "auto-swap-min-confidence", envFloat("AUTO_SWAP_MIN_CONFIDENCE", 0.75), "Confidence above which auto-swap acts")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	st, err := domain.ParseStrategyType(strategy)
	if err != nil {
		return nil, err
	}
	cfg.Strategy = st
	cfg.MainToken = strings.ToUpper(strings.TrimSpace(cfg.MainToken))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and storage requirements.
func (c *Config) Validate() error {
	var errs []error
	if !c.UseMemory && c.PostgresDSN == "" {
		errs = append(errs, errors.New("--postgres-dsn is required (use --use-memory for in-memory storage)"))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, errors.New("refresh interval must be positive"))
	}
	if c.StatusInterval <= 0 {
		errs = append(errs, errors.New("status interval must be positive"))
	}
	if c.HistoryDays <= 0 {
		errs = append(errs, errors.New("history days must be positive"))
	}
	if c.AutoSwapAmount <= 0 {
		errs = append(errs, errors.New("auto-swap amount must be positive"))
	}
	if c.AutoSwapMinConfidence < 0 || c.AutoSwapMinConfidence > 1 {
		errs = append(errs, errors.New("auto-swap confidence must be within [0, 1]"))
	}
	if c.AutoSwap && c.WalletAddress == "" {
		errs = append(errs, errors.New("auto-swap requires a wallet address"))
	}
	if c.FetchRateLimit < 0 {
		errs = append(errs, errors.New("fetch rate limit must not be negative"))
	}
	return errors.Join(errs...)
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

// envDuration accepts Go durations ("90s") or plain seconds ("90").
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
