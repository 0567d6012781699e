// Package api exposes the signal, strategy and swap operations over HTTP.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"shiftmind/internal/domain"
	"shiftmind/internal/monitor"
	"shiftmind/internal/observability"
	"shiftmind/internal/signal"
	"shiftmind/internal/storage"
	"shiftmind/internal/swap"
)

// SignalSource provides the latest refresh outcome.
type SignalSource interface {
	Latest() (*monitor.Snapshot, bool)
}

// Swaps is the swap surface served by the API.
type Swaps interface {
	ValidatePair(ctx context.Context, from, to string) swap.PairValidation
	Quote(ctx context.Context, from, to string, amount float64) (*swap.QuoteView, error)
	InitiateSwap(ctx context.Context, req domain.SwapRequest) swap.SwapResult
	CheckStatus(ctx context.Context, shiftID string) swap.StatusResult
	Transaction(ctx context.Context, shiftID string) (*domain.SwapTransaction, error)
	History(ctx context.Context, address string, limit int) ([]*domain.SwapTransaction, error)
}

var _ Swaps = (*swap.Orchestrator)(nil)

// Options configures a Server.
type Options struct {
	Signals    SignalSource
	Swaps      Swaps
	Strategies storage.StrategyStore
	Generator  *signal.Generator // rotation hints. Default: default profiles
	Stream     http.Handler      // websocket feed. Optional
	Clients    func() int        // connected stream clients. Optional

	PriceArchive  storage.PriceHistoryStore // optional
	SignalArchive storage.SignalStore       // optional

	Now    func() time.Time
	Logger *log.Logger
}

// Server handles HTTP API requests.
type Server struct {
	opts    Options
	started time.Time
	logger  *log.Logger
	handler http.Handler
}

// NewServer creates a Server and registers its routes.
func NewServer(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Generator == nil {
		opts.Generator = signal.NewGenerator(nil, nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{opts: opts, started: opts.Now(), logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("GET /api/signal", s.handleSignal)
	mux.HandleFunc("GET /api/prices", s.handlePrices)
	mux.HandleFunc("GET /api/prices/{symbol}/history", s.handlePriceHistory)
	mux.HandleFunc("GET /api/signals/{symbol}", s.handleRecentSignals)
	mux.HandleFunc("GET /api/recommendation", s.handleRecommendation)
	mux.HandleFunc("POST /api/portfolio/risk", s.handlePortfolioRisk)
	mux.HandleFunc("GET /api/strategy/{address}", s.handleGetStrategy)
	mux.HandleFunc("PUT /api/strategy", s.handlePutStrategy)
	mux.HandleFunc("GET /api/pairs/{from}/{to}", s.handleValidatePair)
	mux.HandleFunc("GET /api/quote", s.handleQuote)
	mux.HandleFunc("POST /api/swaps", s.handleCreateSwap)
	mux.HandleFunc("GET /api/swaps/{id}", s.handleSwapStatus)
	mux.HandleFunc("GET /api/swaps/{id}/record", s.handleSwapRecord)
	mux.HandleFunc("GET /api/history/{address}", s.handleHistory)
	if opts.Stream != nil {
		mux.Handle("GET /ws/signals", opts.Stream)
	}

	s.handler = s.corsMiddleware(s.loggingMiddleware(mux))
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("Starting HTTP server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}
