package swap

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"shiftmind/internal/domain"
	"shiftmind/internal/sideshift"
	"shiftmind/internal/wallet"
)

// Kind classifies a token.
type Kind string

// Token kinds.
const (
	KindCrypto     Kind = "crypto"
	KindStablecoin Kind = "stablecoin"
)

// Token is a registry entry: a display symbol mapped to the provider coin
// code and the precision of its smallest unit.
type Token struct {
	Symbol   string
	Name     string
	CoinCode string
	Decimals int32
	Kind     Kind
	Network  wallet.Network
}

// Registry is an immutable symbol -> Token table.
type Registry struct {
	bySymbol map[string]Token
	byCoin   map[string]Token
	symbols  []string
	stables  []string // registration order
}

// NewRegistry builds a registry. Symbols are stored upper case and coin
// codes lower case; duplicates of either are rejected.
func NewRegistry(tokens ...Token) (*Registry, error) {
	r := &Registry{
		bySymbol: make(map[string]Token, len(tokens)),
		byCoin:   make(map[string]Token, len(tokens)),
	}
	for _, t := range tokens {
		t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
		t.CoinCode = strings.ToLower(strings.TrimSpace(t.CoinCode))
		if t.Symbol == "" || t.CoinCode == "" {
			return nil, fmt.Errorf("token %q: symbol and coin code are required", t.Name)
		}
		if t.Decimals < 0 || t.Decimals > 36 {
			return nil, fmt.Errorf("token %s: decimals %d out of range", t.Symbol, t.Decimals)
		}
		if _, dup := r.bySymbol[t.Symbol]; dup {
			return nil, fmt.Errorf("duplicate token symbol %s", t.Symbol)
		}
		if _, dup := r.byCoin[t.CoinCode]; dup {
			return nil, fmt.Errorf("duplicate coin code %s", t.CoinCode)
		}
		r.bySymbol[t.Symbol] = t
		r.byCoin[t.CoinCode] = t
		r.symbols = append(r.symbols, t.Symbol)
		if t.Kind == KindStablecoin {
			r.stables = append(r.stables, t.Symbol)
		}
	}
	sort.Strings(r.symbols)
	return r, nil
}

// DefaultTokens is the built-in token table.
func DefaultTokens() []Token {
	return []Token{
		{Symbol: "ETH", Name: "Ethereum", CoinCode: "eth", Decimals: 18, Kind: KindCrypto, Network: wallet.NetworkEVM},
		{Symbol: "BTC", Name: "Bitcoin", CoinCode: "btc", Decimals: 8, Kind: KindCrypto, Network: wallet.NetworkBitcoin},
		{Symbol: "MATIC", Name: "Polygon", CoinCode: "matic", Decimals: 18, Kind: KindCrypto, Network: wallet.NetworkEVM},
		{Symbol: "USDT", Name: "Tether USD", CoinCode: "usdterc20", Decimals: 6, Kind: KindStablecoin, Network: wallet.NetworkEVM},
		{Symbol: "USDC", Name: "USD Coin", CoinCode: "usdcerc20", Decimals: 6, Kind: KindStablecoin, Network: wallet.NetworkEVM},
		{Symbol: "DAI", Name: "Dai Stablecoin", CoinCode: "dai", Decimals: 18, Kind: KindStablecoin, Network: wallet.NetworkEVM},
		{Symbol: "SOL", Name: "Solana", CoinCode: "sol", Decimals: 9, Kind: KindCrypto, Network: wallet.NetworkSolana},
		{Symbol: "XRP", Name: "Ripple", CoinCode: "xrp", Decimals: 6, Kind: KindCrypto, Network: wallet.NetworkXRP},
	}
}

// DefaultRegistry returns a registry over DefaultTokens.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultTokens()...)
	if err != nil {
		panic(err) // static table
	}
	return r
}

// Lookup resolves a symbol case-insensitively.
func (r *Registry) Lookup(symbol string) (Token, error) {
	t, ok := r.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return Token{}, &domain.UnsupportedTokenError{Symbol: symbol}
	}
	return t, nil
}

// ByCoinCode resolves a provider coin code.
func (r *Registry) ByCoinCode(code string) (Token, bool) {
	t, ok := r.byCoin[strings.ToLower(code)]
	return t, ok
}

// Symbols returns all symbols, sorted.
func (r *Registry) Symbols() []string {
	return append([]string(nil), r.symbols...)
}

// Stablecoins returns the symbols of KindStablecoin tokens in registration
// order, which is their preference order as rotation targets.
func (r *Registry) Stablecoins() []string {
	return append([]string(nil), r.stables...)
}

// CoinLister lists the coins a provider supports.
type CoinLister interface {
	Coins(ctx context.Context) ([]sideshift.Coin, error)
}

// UnlistedTokens returns the registry symbols the provider does not list,
// sorted.
func UnlistedTokens(ctx context.Context, p CoinLister, r *Registry) ([]string, error) {
	coins, err := p.Coins(ctx)
	if err != nil {
		return nil, err
	}
	listed := make(map[string]struct{}, len(coins))
	for _, c := range coins {
		listed[strings.ToUpper(c.Coin)] = struct{}{}
	}
	var out []string
	for _, s := range r.symbols {
		if _, ok := listed[s]; !ok {
			out = append(out, s)
		}
	}
	return out, nil
}
