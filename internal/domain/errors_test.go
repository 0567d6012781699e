package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	netErr := &NetworkError{Kind: NetworkTimeout, URL: "http://x", Attempts: 3}

	assert.True(t, IsTransient(netErr))
	assert.True(t, IsTransient(fmt.Errorf("get quote: %w", netErr)))
	assert.False(t, IsTransient(&ProviderRejection{StatusCode: 400}))
	assert.False(t, IsTransient(&ValidationError{Field: "amount", Reason: "must be positive"}))
	assert.False(t, IsTransient(nil))
}

func TestNetworkError_Message(t *testing.T) {
	tests := []struct {
		kind NetworkErrorKind
		want string
	}{
		{NetworkNoConnectivity, "no connectivity after 3 attempts"},
		{NetworkTimeout, "request timed out after 3 attempts"},
		{NetworkRateLimited, "rate limited by provider after 3 attempts"},
		{NetworkUnexpected, "unexpected network failure after 3 attempts"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := &NetworkError{Kind: tt.kind, Attempts: 3}
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestPersistenceError_Unwrap(t *testing.T) {
	base := errors.New("connection reset")
	err := &PersistenceError{Operation: "insert swap transaction", Err: base}

	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "insert swap transaction")
}
