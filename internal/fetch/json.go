package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// GetJSON fetches url and decodes the JSON body into out.
func GetJSON(ctx context.Context, d Doer, url string, out any) (*Response, error) {
	return DoJSON(ctx, d, Request{Method: http.MethodGet, URL: url}, out)
}

// GetFreshJSON is GetJSON without the response cache. Use it for state that
// must reflect the upstream right now, such as order status.
func GetFreshJSON(ctx context.Context, d Doer, url string, out any) (*Response, error) {
	return DoJSON(ctx, d, Request{Method: http.MethodGet, URL: url, NoCache: true}, out)
}

// PostJSON encodes in as the request body and decodes the answer into out.
func PostJSON(ctx context.Context, d Doer, url string, header http.Header, in, out any) (*Response, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	h := header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set("Content-Type", "application/json")
	return DoJSON(ctx, d, Request{Method: http.MethodPost, URL: url, Header: h, Body: body}, out)
}

// DoJSON performs req and decodes the JSON body into out when out is non-nil.
func DoJSON(ctx context.Context, d Doer, req Request, out any) (*Response, error) {
	resp, err := d.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return resp, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return resp, nil
}
