// Package main fetches current prices and history once and prints the
// trade signal for a token and strategy as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shiftmind/internal/config"
	"shiftmind/internal/domain"
	"shiftmind/internal/fetch"
	"shiftmind/internal/marketdata"
	"shiftmind/internal/monitor"
	"shiftmind/internal/swap"
)

type output struct {
	Token     string                     `json:"token"`
	Strategy  domain.StrategyType        `json:"strategy"`
	Price     float64                    `json:"price"`
	Change24h float64                    `json:"change24h"`
	Signal    domain.AISignal            `json:"signal"`
	Metrics   domain.MarketMetrics       `json:"metrics"`
	Points    int                        `json:"historyPoints"`
	History   []domain.PriceHistoryPoint `json:"history,omitempty"`
	At        time.Time                  `json:"generatedAt"`
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	token := flag.String("token", envOrDefault("MAIN_TOKEN", "ETH"), "Token to analyze")
	strategy := flag.String("strategy", envOrDefault("STRATEGY", "balanced"), "Strategy: safe, balanced or aggressive")
	days := flag.Int("days", 7, "Days of price history")
	baseURL := flag.String("coingecko-url", os.Getenv("COINGECKO_API_URL"), "CoinGecko API base URL")
	withHistory := flag.Bool("history", false, "Include the price history in the output")
	verbose := flag.Bool("v", false, "Log fetch attempts to stderr")
	flag.Parse()

	st, err := domain.ParseStrategyType(*strategy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(os.Stderr, "[signal] ", log.LstdFlags)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher := fetch.New(fetch.WithLogger(logger))
	refresher := monitor.NewPriceRefresher(monitor.RefresherOptions{
		Market:          marketdata.NewClient(fetcher, *baseURL),
		Symbols:         swap.DefaultRegistry().Symbols(),
		MainToken:       *token,
		HistoryDays:     *days,
		DefaultStrategy: st,
		Logger:          logger,
	})

	snap, err := refresher.RunOnce(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	current := snap.Prices[snap.Symbol]
	out := output{
		Token:     snap.Symbol,
		Strategy:  snap.Strategy,
		Price:     current.CurrentPrice,
		Change24h: current.PriceChangePercentage24h,
		Signal:    snap.Signal,
		Metrics:   snap.Metrics,
		Points:    len(snap.History),
		At:        snap.UpdatedAt,
	}
	if *withHistory {
		out.History = snap.History
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
