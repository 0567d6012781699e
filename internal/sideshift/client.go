// Package sideshift is a client for the SideShift v2 swap API.
package sideshift

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"shiftmind/internal/domain"
	"shiftmind/internal/fetch"
)

// DefaultBaseURL is the SideShift v2 API root.
const DefaultBaseURL = "https://api.sideshift.ai/v2"

// DefaultQuoteTTL is used when a quote carries no expiry, in seconds.
const DefaultQuoteTTL = 600

// Client talks to the SideShift API through a fetch.Doer.
type Client struct {
	doer        fetch.Doer
	baseURL     string
	affiliateID string
	secret      string
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithAffiliateID attaches an affiliate id to created shifts.
func WithAffiliateID(id string) ClientOption {
	return func(c *Client) {
		c.affiliateID = id
	}
}

// WithSecret sets the x-sideshift-secret header on shift creation.
func WithSecret(secret string) ClientOption {
	return func(c *Client) {
		c.secret = secret
	}
}

// NewClient creates a client. An empty baseURL uses DefaultBaseURL.
func NewClient(doer fetch.Doer, baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		doer:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Coins lists the coins supported by the provider.
func (c *Client) Coins(ctx context.Context) ([]Coin, error) {
	var coins []Coin
	if _, err := fetch.GetJSON(ctx, c.doer, c.baseURL+"/coins", &coins); err != nil {
		return nil, fmt.Errorf("get coins: %w", err)
	}
	return coins, nil
}

// Pair returns the limits and rate for depositCoin -> settleCoin.
func (c *Client) Pair(ctx context.Context, depositCoin, settleCoin string) (*Pair, error) {
	endpoint := fmt.Sprintf("%s/pair/%s/%s", c.baseURL, url.PathEscape(depositCoin), url.PathEscape(settleCoin))

	var p Pair
	if _, err := fetch.GetJSON(ctx, c.doer, endpoint, &p); err != nil {
		return nil, fmt.Errorf("get pair %s/%s: %w", depositCoin, settleCoin, err)
	}
	return &p, nil
}

// FixedQuote requests a fixed-rate quote. depositAmount is in the deposit
// coin's smallest unit.
func (c *Client) FixedQuote(ctx context.Context, depositCoin, settleCoin, depositAmount string) (*Quote, error) {
	q := url.Values{}
	q.Set("depositCoin", depositCoin)
	q.Set("settleCoin", settleCoin)
	q.Set("depositAmount", depositAmount)

	var quote Quote
	if _, err := fetch.GetFreshJSON(ctx, c.doer, c.baseURL+"/quotes/fixed?"+q.Encode(), &quote); err != nil {
		return nil, fmt.Errorf("get fixed quote: %w", err)
	}
	if quote.ExpiresIn <= 0 {
		quote.ExpiresIn = DefaultQuoteTTL
	}
	return &quote, nil
}

// CreateFixedShift creates an order.
func (c *Client) CreateFixedShift(ctx context.Context, req ShiftRequest) (*Order, error) {
	if req.AffiliateID == "" {
		req.AffiliateID = c.affiliateID
	}
	header := http.Header{}
	if c.secret != "" {
		header.Set("x-sideshift-secret", c.secret)
	}

	var order Order
	if _, err := fetch.PostJSON(ctx, c.doer, c.baseURL+"/shifts/fixed", header, req, &order); err != nil {
		return nil, fmt.Errorf("create shift: %w", err)
	}
	if order.ID == "" {
		return nil, &domain.ProviderRejection{StatusCode: http.StatusOK, URL: c.baseURL + "/shifts/fixed", Message: "order without id"}
	}
	return &order, nil
}

// Shift returns the current state of an order. It is never served from cache.
func (c *Client) Shift(ctx context.Context, id string) (*Order, error) {
	var order Order
	if _, err := fetch.GetFreshJSON(ctx, c.doer, c.baseURL+"/shifts/"+url.PathEscape(id), &order); err != nil {
		return nil, fmt.Errorf("get shift %s: %w", id, err)
	}
	return &order, nil
}
