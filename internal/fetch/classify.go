package fetch

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"shiftmind/internal/domain"
)

// classifyTransportError maps a client.Do or body read failure to a kind.
func classifyTransportError(err error) domain.NetworkErrorKind {
	if isTimeout(err) {
		return domain.NetworkTimeout
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH):
		return domain.NetworkNoConnectivity
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return domain.NetworkNoConnectivity
	}
	return domain.NetworkUnexpected
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// errorMessage extracts a provider error message from a response body.
// Supports {"error":{"message":...}}, {"error":"..."} and {"message":"..."}.
func errorMessage(body []byte) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return truncate(strings.TrimSpace(string(body)), 200)
	}

	if len(payload.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var s string
		if err := json.Unmarshal(payload.Error, &s); err == nil && s != "" {
			return s
		}
	}
	if payload.Message != "" {
		return payload.Message
	}
	return truncate(strings.TrimSpace(string(body)), 200)
}
