package sideshift

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Amount is a provider amount. The API sends amounts as JSON strings but
// numbers are accepted too.
type Amount string

// UnmarshalJSON accepts a string, a number or null.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(n.String())
	return nil
}

// Float returns the amount as float64; empty amounts are 0.
func (a Amount) Float() (float64, error) {
	if a == "" {
		return 0, nil
	}
	return strconv.ParseFloat(string(a), 64)
}

// Coin is an entry of /coins.
type Coin struct {
	Coin     string   `json:"coin"`
	Name     string   `json:"name"`
	Networks []string `json:"networks,omitempty"`
}

// Pair describes the deposit limits and rate of a coin pair.
type Pair struct {
	DepositCoin string `json:"depositCoin"`
	SettleCoin  string `json:"settleCoin"`
	Min         Amount `json:"min"`
	Max         Amount `json:"max"`
	Rate        Amount `json:"rate"`
}

// Quote is a fixed-rate quote.
type Quote struct {
	ID            string `json:"id,omitempty"`
	DepositCoin   string `json:"depositCoin"`
	SettleCoin    string `json:"settleCoin"`
	DepositAmount Amount `json:"depositAmount"`
	SettleAmount  Amount `json:"settleAmount"`
	Rate          Amount `json:"rate"`
	Min           Amount `json:"min"`
	Max           Amount `json:"max"`
	ExpiresIn     int    `json:"expiresIn"` // seconds
}

// ShiftRequest is the body of a fixed shift creation.
type ShiftRequest struct {
	DepositCoin   string `json:"depositCoin"`
	SettleCoin    string `json:"settleCoin"`
	SettleAddress string `json:"settleAddress"`
	DepositAmount string `json:"depositAmount"`
	AffiliateID   string `json:"affiliateId,omitempty"`
}

// Order is a shift as returned by creation and status calls.
type Order struct {
	ID             string     `json:"id"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	DepositCoin    string     `json:"depositCoin"`
	SettleCoin     string     `json:"settleCoin"`
	DepositAddress string     `json:"depositAddress"`
	SettleAddress  string     `json:"settleAddress"`
	DepositAmount  Amount     `json:"depositAmount"`
	SettleAmount   Amount     `json:"settleAmount"`
	Rate           Amount     `json:"rate"`
	Status         string     `json:"status"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}
