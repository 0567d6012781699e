package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shiftmind/internal/domain"
	"shiftmind/internal/monitor"
	"shiftmind/internal/signal"
	"shiftmind/internal/storage"
)

const maxBodyBytes = 1 << 16

type errorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status        string              `json:"status"`
	Uptime        string              `json:"uptime"`
	Token         string              `json:"token,omitempty"`
	Strategy      domain.StrategyType `json:"strategy,omitempty"`
	LastRefresh   *time.Time          `json:"lastRefresh,omitempty"`
	StreamClients int                 `json:"streamClients"`
}

type strategyRequest struct {
	UserAddress     string `json:"userAddress"`
	StrategyType    string `json:"strategyType"`
	AutoSwapEnabled bool   `json:"autoSwapEnabled"`
	IsActive        *bool  `json:"isActive,omitempty"`
}

type strategyResponse struct {
	UserAddress     string              `json:"userAddress"`
	StrategyType    domain.StrategyType `json:"strategyType"`
	AutoSwapEnabled bool                `json:"autoSwapEnabled"`
	IsActive        bool                `json:"isActive"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

type swapRequest struct {
	UserID        string  `json:"userId"`
	FromToken     string  `json:"fromToken"`
	ToToken       string  `json:"toToken"`
	Amount        float64 `json:"amount"`
	WalletAddress string  `json:"walletAddress"`
	StrategyType  string  `json:"strategyType"`
}

type swapRecord struct {
	ID             string              `json:"id"`
	ShiftID        string              `json:"shiftId"`
	FromToken      string              `json:"fromToken"`
	ToToken        string              `json:"toToken"`
	FromAmount     float64             `json:"fromAmount"`
	ToAmount       float64             `json:"toAmount"`
	DepositAddress string              `json:"depositAddress"`
	SettleAddress  string              `json:"settleAddress"`
	Rate           float64             `json:"rate"`
	Status         domain.RecordStatus `json:"status"`
	StrategyType   domain.StrategyType `json:"strategyType,omitempty"`
	ErrorMessage   string              `json:"errorMessage,omitempty"`
	ExpiresAt      *time.Time          `json:"expiresAt,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status: "starting",
		Uptime: s.opts.Now().Sub(s.started).Round(time.Second).String(),
	}
	if s.opts.Signals != nil {
		if snap, ok := s.opts.Signals.Latest(); ok {
			resp.Status = "running"
			resp.Token = snap.Symbol
			resp.Strategy = snap.Strategy
			updated := snap.UpdatedAt
			resp.LastRefresh = &updated
		}
	}
	if s.opts.Clients != nil {
		resp.StreamClients = s.opts.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no signal generated yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no prices fetched yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"prices":    snap.Prices,
		"updatedAt": snap.UpdatedAt,
	})
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.PriceArchive == nil {
		writeError(w, http.StatusServiceUnavailable, "price archive not configured")
		return
	}
	now := s.opts.Now().UnixMilli()
	end := getInt64Param(r, "end", now)
	start := getInt64Param(r, "start", end-int64(24*time.Hour/time.Millisecond))
	if start > end {
		writeError(w, http.StatusBadRequest, "start must not be after end")
		return
	}
	points, err := s.opts.PriceArchive.GetByTimeRange(r.Context(), r.PathValue("symbol"), start, end)
	if err != nil {
		s.logger.Printf("price history: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load price history")
		return
	}
	if points == nil {
		points = []domain.PriceHistoryPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

type signalRecord struct {
	Symbol      string               `json:"symbol"`
	Strategy    domain.StrategyType  `json:"strategy"`
	Signal      domain.AISignal      `json:"signal"`
	Metrics     domain.MarketMetrics `json:"metrics"`
	Price       float64              `json:"price"`
	Change24h   float64              `json:"change24h"`
	GeneratedAt time.Time            `json:"generatedAt"`
}

func (s *Server) handleRecentSignals(w http.ResponseWriter, r *http.Request) {
	if s.opts.SignalArchive == nil {
		writeError(w, http.StatusServiceUnavailable, "signal archive not configured")
		return
	}
	limit := getIntParam(r, "limit", 20, 1, 500)
	records, err := s.opts.SignalArchive.GetRecent(r.Context(), r.PathValue("symbol"), limit)
	if err != nil {
		s.logger.Printf("recent signals: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load signals")
		return
	}
	out := make([]signalRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, signalRecord{
			Symbol:      rec.Symbol,
			Strategy:    rec.StrategyType,
			Signal:      rec.Signal,
			Metrics:     rec.Metrics,
			Price:       rec.Price,
			Change24h:   rec.Change24h,
			GeneratedAt: rec.GeneratedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no prices fetched yet")
		return
	}
	holding := r.URL.Query().Get("holding")
	if holding == "" {
		holding = snap.Symbol
	}
	strategy := snap.Strategy
	if q := r.URL.Query().Get("strategy"); q != "" {
		st, err := domain.ParseStrategyType(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		strategy = st
	}
	writeJSON(w, http.StatusOK, s.opts.Generator.Recommend(snap.Prices, strategy, holding))
}

type riskRequest struct {
	Holdings map[string]float64 `json:"holdings"`
}

type riskResponse struct {
	Risk      float64   `json:"risk"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Server) handlePortfolioRisk(w http.ResponseWriter, r *http.Request) {
	var req riskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, ok := s.snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no prices fetched yet")
		return
	}
	holdings := make(map[string]float64, len(req.Holdings))
	for sym, amount := range req.Holdings {
		holdings[strings.ToUpper(sym)] = amount
	}
	writeJSON(w, http.StatusOK, riskResponse{
		Risk:      signal.PortfolioRisk(holdings, snap.Prices),
		UpdatedAt: snap.UpdatedAt,
	})
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	if s.opts.Strategies == nil {
		writeError(w, http.StatusServiceUnavailable, "strategy storage not configured")
		return
	}
	st, err := s.opts.Strategies.Get(r.Context(), r.PathValue("address"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no strategy stored for address")
		return
	}
	if err != nil {
		s.logger.Printf("get strategy: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load strategy")
		return
	}
	writeJSON(w, http.StatusOK, toStrategyResponse(st))
}

func (s *Server) handlePutStrategy(w http.ResponseWriter, r *http.Request) {
	if s.opts.Strategies == nil {
		writeError(w, http.StatusServiceUnavailable, "strategy storage not configured")
		return
	}
	var req strategyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	address := strings.TrimSpace(req.UserAddress)
	if address == "" {
		writeError(w, http.StatusBadRequest, "userAddress is required")
		return
	}
	st, err := domain.ParseStrategyType(req.StrategyType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	now := s.opts.Now().UTC()
	record := &domain.UserStrategy{
		UserAddress:     address,
		StrategyType:    st,
		AutoSwapEnabled: req.AutoSwapEnabled,
		IsActive:        active,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.opts.Strategies.Upsert(r.Context(), record); err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Printf("upsert strategy: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store strategy")
		return
	}
	writeJSON(w, http.StatusOK, toStrategyResponse(record))
}

func (s *Server) handleValidatePair(w http.ResponseWriter, r *http.Request) {
	res := s.opts.Swaps.ValidatePair(r.Context(), r.PathValue("from"), r.PathValue("to"))
	status := http.StatusOK
	if !res.Valid && res.Transient {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := strconv.ParseFloat(q.Get("amount"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount must be a number")
		return
	}
	quote, err := s.opts.Swaps.Quote(r.Context(), q.Get("from"), q.Get("to"), amount)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleCreateSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	strategy := domain.StrategyBalanced
	if req.StrategyType != "" {
		st, err := domain.ParseStrategyType(req.StrategyType)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		strategy = st
	}
	userID := req.UserID
	if userID == "" {
		userID = req.WalletAddress
	}

	res := s.opts.Swaps.InitiateSwap(r.Context(), domain.SwapRequest{
		UserID:        userID,
		FromToken:     req.FromToken,
		ToToken:       req.ToToken,
		Amount:        req.Amount,
		WalletAddress: req.WalletAddress,
		StrategyType:  strategy,
	})

	status := http.StatusCreated
	switch {
	case res.Success:
	case res.Transient:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func (s *Server) handleSwapStatus(w http.ResponseWriter, r *http.Request) {
	res := s.opts.Swaps.CheckStatus(r.Context(), r.PathValue("id"))
	status := http.StatusOK
	if res.Error != "" {
		status = http.StatusBadGateway
		if res.Transient {
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, res)
}

func (s *Server) handleSwapRecord(w http.ResponseWriter, r *http.Request) {
	tx, err := s.opts.Swaps.Transaction(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "swap not found")
		return
	}
	if err != nil {
		s.logger.Printf("swap record: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load swap")
		return
	}
	writeJSON(w, http.StatusOK, toSwapRecord(tx))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := getIntParam(r, "limit", storage.DefaultHistoryLimit, 1, 500)
	txs, err := s.opts.Swaps.History(r.Context(), r.PathValue("address"), limit)
	if err != nil {
		s.logger.Printf("history: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	out := make([]swapRecord, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toSwapRecord(tx))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) snapshot() (*monitor.Snapshot, bool) {
	if s.opts.Signals == nil {
		return nil, false
	}
	return s.opts.Signals.Latest()
}

func toSwapRecord(tx *domain.SwapTransaction) swapRecord {
	return swapRecord{
		ID:             tx.ID,
		ShiftID:        tx.ShiftID,
		FromToken:      tx.FromToken,
		ToToken:        tx.ToToken,
		FromAmount:     tx.FromAmount,
		ToAmount:       tx.ToAmount,
		DepositAddress: tx.DepositAddress,
		SettleAddress:  tx.SettleAddress,
		Rate:           tx.Rate,
		Status:         tx.Status,
		StrategyType:   tx.StrategyType,
		ErrorMessage:   tx.ErrorMessage,
		ExpiresAt:      tx.ExpiresAt,
		CreatedAt:      tx.CreatedAt,
		UpdatedAt:      tx.UpdatedAt,
	}
}

// statusFor maps a core error to an HTTP status.
func statusFor(err error) int {
	var (
		validation  *domain.ValidationError
		unsupported *domain.UnsupportedTokenError
		rejection   *domain.ProviderRejection
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &unsupported):
		return http.StatusBadRequest
	case domain.IsTransient(err):
		return http.StatusServiceUnavailable
	case errors.As(err, &rejection):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func toStrategyResponse(st *domain.UserStrategy) strategyResponse {
	return strategyResponse{
		UserAddress:     st.UserAddress,
		StrategyType:    st.StrategyType,
		AutoSwapEnabled: st.AutoSwapEnabled,
		IsActive:        st.IsActive,
		UpdatedAt:       st.UpdatedAt,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

// getIntParam reads an integer query parameter, falling back to def when it
// is missing, malformed or outside [lo, hi].
func getIntParam(r *http.Request, key string, def, lo, hi int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < lo || v > hi {
		return def
	}
	return v
}

func getInt64Param(r *http.Request, key string, def int64) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
