package sideshift

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftmind/internal/domain"
	"shiftmind/internal/fetch"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	f := fetch.New(
		fetch.WithMaxAttempts(1),
		fetch.WithLogger(log.New(io.Discard, "", 0)),
	)
	return NewClient(f, server.URL, opts...)
}

func TestClient_FixedQuote(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quotes/fixed", r.URL.Path)
		assert.Equal(t, "eth", r.URL.Query().Get("depositCoin"))
		assert.Equal(t, "usdterc20", r.URL.Query().Get("settleCoin"))
		assert.Equal(t, "100000000000000000", r.URL.Query().Get("depositAmount"))

		w.Write([]byte(`{"depositCoin":"eth","settleCoin":"usdterc20","depositAmount":"100000000000000000",
			"settleAmount":"200000000","rate":"2000","min":"1000000000000000","max":5000000000000000000}`))
	})

	quote, err := client.FixedQuote(context.Background(), "eth", "usdterc20", "100000000000000000")
	require.NoError(t, err)
	assert.Equal(t, Amount("1000000000000000"), quote.Min)
	assert.Equal(t, Amount("5000000000000000000"), quote.Max)
	assert.Equal(t, Amount("2000"), quote.Rate)
	assert.Equal(t, DefaultQuoteTTL, quote.ExpiresIn)
}

func TestClient_FixedQuoteRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Amount too low"}}`))
	})

	_, err := client.FixedQuote(context.Background(), "eth", "btc", "1")
	var rejection *domain.ProviderRejection
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, "Amount too low", rejection.Message)
}

func TestClient_CreateFixedShift(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/shifts/fixed", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "s3cret", r.Header.Get("x-sideshift-secret"))

		var body ShiftRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "eth", body.DepositCoin)
		assert.Equal(t, "btc", body.SettleCoin)
		assert.Equal(t, "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", body.SettleAddress)
		assert.Equal(t, "10000000000000000", body.DepositAmount)
		assert.Equal(t, "aff-1", body.AffiliateID)

		w.Write([]byte(`{"id":"shift-1","depositCoin":"eth","settleCoin":"btc",
			"depositAddress":"0xdeposit","settleAddress":"bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
			"depositAmount":"10000000000000000","settleAmount":"52000","rate":"0.052","status":"waiting",
			"createdAt":"2024-01-01T00:00:00Z","expiresAt":"2024-01-01T00:10:00Z"}`))
	}, WithAffiliateID("aff-1"), WithSecret("s3cret"))

	order, err := client.CreateFixedShift(context.Background(), ShiftRequest{
		DepositCoin:   "eth",
		SettleCoin:    "btc",
		SettleAddress: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		DepositAmount: "10000000000000000",
	})
	require.NoError(t, err)
	assert.Equal(t, "shift-1", order.ID)
	assert.Equal(t, "0xdeposit", order.DepositAddress)
	assert.Equal(t, "waiting", order.Status)
	require.NotNil(t, order.ExpiresAt)
	assert.Equal(t, 10, order.ExpiresAt.Minute())
}

func TestClient_Shift(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shifts/shift-9", r.URL.Path)
		w.Write([]byte(`{"id":"shift-9","status":"settled","settleAmount":"52000"}`))
	})

	order, err := client.Shift(context.Background(), "shift-9")
	require.NoError(t, err)
	assert.Equal(t, "settled", order.Status)

	v, err := order.SettleAmount.Float()
	require.NoError(t, err)
	assert.Equal(t, 52000.0, v)
}

func TestClient_Pair(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pair/eth/sol", r.URL.Path)
		w.Write([]byte(`{"depositCoin":"eth","settleCoin":"sol","min":"0.01","max":"10","rate":"15.2"}`))
	})

	pair, err := client.Pair(context.Background(), "eth", "sol")
	require.NoError(t, err)
	assert.Equal(t, Amount("15.2"), pair.Rate)
}

func TestAmount_UnmarshalJSON(t *testing.T) {
	var v struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
		C Amount `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1.5","b":2.25,"c":null}`), &v))
	assert.Equal(t, Amount("1.5"), v.A)
	assert.Equal(t, Amount("2.25"), v.B)
	assert.Equal(t, Amount(""), v.C)

	f, err := v.C.Float()
	require.NoError(t, err)
	assert.Equal(t, 0.0, f)
}

func TestClient_Coins(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins", r.URL.Path)
		w.Write([]byte(`[{"coin":"ETH","name":"Ethereum","networks":["ethereum","arbitrum"]},{"coin":"BTC","name":"Bitcoin","networks":["bitcoin"]}]`))
	})

	coins, err := client.Coins(context.Background())
	require.NoError(t, err)
	require.Len(t, coins, 2)
	assert.Equal(t, "ETH", coins[0].Coin)
	assert.Equal(t, []string{"ethereum", "arbitrum"}, coins[0].Networks)
}
