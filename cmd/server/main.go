// Package main runs the shiftmind service: periodic price refresh and signal
// generation, optional auto-swap, swap status polling, the HTTP API and the
// websocket signal feed.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"shiftmind/internal/api"
	"shiftmind/internal/cache"
	"shiftmind/internal/config"
	"shiftmind/internal/fetch"
	"shiftmind/internal/marketdata"
	"shiftmind/internal/monitor"
	"shiftmind/internal/sideshift"
	sig "shiftmind/internal/signal"
	"shiftmind/internal/storage"
	chstore "shiftmind/internal/storage/clickhouse"
	"shiftmind/internal/storage/memory"
	"shiftmind/internal/storage/migrations"
	pgstore "shiftmind/internal/storage/postgres"
	"shiftmind/internal/stream"
	"shiftmind/internal/swap"
)

// stores holds the storage implementations used by the service.
type stores struct {
	strategies   storage.StrategyStore
	transactions storage.SwapTransactionStore
	prices       storage.PriceHistoryStore
	signals      storage.SignalStore
}

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if err := config.LoadDotEnv(".env"); err != nil {
		logger.Printf("Warning: %v", err)
	}
	cfg, err := config.Load(os.Args[0], os.Args[1:])
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanupStores, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanupStores()

	respCache, cleanupCache, err := createCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create cache: %v", err)
	}
	defer cleanupCache()

	fetchOpts := []fetch.Option{
		fetch.WithCache(respCache),
		fetch.WithCacheTTL(cfg.CacheTTL),
		fetch.WithLogger(log.New(os.Stdout, "[fetch] ", log.LstdFlags)),
	}
	if cfg.FetchRateLimit > 0 {
		fetchOpts = append(fetchOpts, fetch.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.FetchRateLimit), 1)))
	}
	fetcher := fetch.New(fetchOpts...)

	market := marketdata.NewClient(fetcher, cfg.CoinGeckoURL)
	provider := sideshift.NewClient(fetcher, cfg.SideShiftURL,
		sideshift.WithAffiliateID(cfg.AffiliateID),
		sideshift.WithSecret(cfg.SideShiftKey),
	)

	registry := swap.DefaultRegistry()
	go checkProviderCoins(ctx, provider, registry, logger)
	orchestrator := swap.New(swap.Options{
		Provider: provider,
		Store:    st.transactions,
		Registry: registry,
		Logger:   log.New(os.Stdout, "[swap] ", log.LstdFlags|log.Lshortfile),
	})

	generator := sig.NewGenerator(sig.DefaultProfiles(), registry.Stablecoins())
	hub := stream.NewHub(log.New(os.Stdout, "[stream] ", log.LstdFlags))
	defer hub.Close()

	monitorLogger := log.New(os.Stdout, "[monitor] ", log.LstdFlags|log.Lshortfile)
	refresher := monitor.NewPriceRefresher(monitor.RefresherOptions{
		Market:          market,
		Generator:       generator,
		Symbols:         registry.Symbols(),
		MainToken:       cfg.MainToken,
		HistoryDays:     cfg.HistoryDays,
		Interval:        cfg.RefreshInterval,
		Strategies:      st.strategies,
		WalletAddress:   cfg.WalletAddress,
		DefaultStrategy: cfg.Strategy,
		PriceArchive:    st.prices,
		SignalArchive:   st.signals,
		Publisher:       hub,
		Swapper:         orchestrator,
		AutoSwap:        cfg.AutoSwap,
		AutoSwapAmount:  cfg.AutoSwapAmount,
		MinConfidence:   cfg.AutoSwapMinConfidence,
		Logger:          monitorLogger,
	})
	poller := monitor.NewStatusPoller(monitor.PollerOptions{
		Checker:  orchestrator,
		Interval: cfg.StatusInterval,
		Logger:   monitorLogger,
	})

	server := api.NewServer(api.Options{
		Signals:    refresher,
		Swaps:      orchestrator,
		Strategies: st.strategies,
		Generator:  generator,
		Stream:     hub,
		Clients:    hub.Clients,

		PriceArchive:  st.prices,
		SignalArchive: st.signals,
		Logger:        logger,
	})

	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case s := <-sigCh:
			logger.Printf("Received signal %v, initiating graceful shutdown...", s)
			cancel()
		case <-done:
			return
		}

		// Wait for second signal for immediate shutdown
		select {
		case s := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", s)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.ListenAndServe(gctx, cfg.HTTPAddr) })
	g.Go(func() error { return refresher.Run(gctx) })
	g.Go(func() error { return poller.Run(gctx) })

	logger.Printf("shiftmind started: token=%s strategy=%s auto-swap=%v memory=%v",
		cfg.MainToken, cfg.Strategy, cfg.AutoSwap, cfg.UseMemory)

	err = g.Wait()
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores creates the configured stores. The ClickHouse archive is
// optional; without it history and signals are kept in memory.
func createStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (*stores, func(), error) {
	st := &stores{
		strategies:   memory.NewStrategyStore(),
		transactions: memory.NewSwapTransactionStore(),
		prices:       memory.NewPriceHistoryStore(),
		signals:      memory.NewSignalStore(),
	}
	if cfg.UseMemory {
		logger.Println("Using in-memory storage")
		return st, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}
	st.strategies = pgstore.NewStrategyStore(pool)
	st.transactions = pgstore.NewSwapTransactionStore(pool)

	if cfg.ClickhouseDSN == "" {
		logger.Println("Using PostgreSQL storage, in-memory archive")
		return st, pool.Close, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	st.prices = chstore.NewPriceHistoryStore(conn)
	st.signals = chstore.NewSignalStore(conn)

	logger.Println("Using PostgreSQL storage, ClickHouse archive")
	cleanup := func() {
		pool.Close()
		conn.Close()
	}
	return st, cleanup, nil
}

// createCache returns the shared Redis cache when configured, otherwise a
// process-local one.
func createCache(ctx context.Context, cfg *config.Config, logger *log.Logger) (cache.Cache, func(), error) {
	retention := 10 * cfg.CacheTTL
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(cache.WithRetention(retention)), func() {}, nil
	}

	client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, nil, err
	}
	logger.Printf("Using Redis response cache at %s", cfg.RedisAddr)
	return cache.NewRedisCache(client, retention), func() { client.Close() }, nil
}

// checkProviderCoins warns about registry tokens the provider does not list.
func checkProviderCoins(ctx context.Context, provider swap.CoinLister, registry *swap.Registry, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	unlisted, err := swap.UnlistedTokens(ctx, provider, registry)
	if err != nil {
		logger.Printf("Warning: could not list provider coins: %v", err)
		return
	}
	if len(unlisted) > 0 {
		logger.Printf("Warning: provider does not list %v; swaps with them will fail", unlisted)
	}
}
