// Package wallet validates settle addresses for the supported networks.
package wallet

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"

	"shiftmind/internal/domain"
)

// Network identifies an address format.
type Network string

// Supported networks.
const (
	NetworkEVM     Network = "evm"
	NetworkBitcoin Network = "bitcoin"
	NetworkSolana  Network = "solana"
	NetworkXRP     Network = "xrp"
)

const xrpAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

var rippleAlphabet = base58.NewAlphabet(xrpAlphabet)

// Validate checks that address is well formed for network.
func Validate(network Network, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return invalid("is empty")
	}

	switch network {
	case NetworkEVM:
		return validateEVM(address)
	case NetworkBitcoin:
		return validateBitcoin(address)
	case NetworkSolana:
		return validateSolana(address)
	case NetworkXRP:
		return validateXRP(address)
	default:
		return invalid(fmt.Sprintf("unknown network %q", network))
	}
}

func invalid(reason string) error {
	return &domain.ValidationError{Field: "wallet_address", Reason: reason}
}

// validateEVM accepts 0x-prefixed 20-byte hex. Mixed-case addresses must
// carry a valid EIP-55 checksum.
func validateEVM(address string) error {
	if len(address) != 42 || !strings.HasPrefix(address, "0x") {
		return invalid("expected 0x followed by 40 hex characters")
	}
	body := address[2:]
	if _, err := hex.DecodeString(body); err != nil {
		return invalid("expected 0x followed by 40 hex characters")
	}

	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return nil
	}
	if body != eip55(body) {
		return invalid("bad EIP-55 checksum")
	}
	return nil
}

// eip55 returns the checksummed form of a 40-char hex body.
func eip55(body string) string {
	lower := strings.ToLower(body)
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	hash := h.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}

// validateSolana accepts a base58 32-byte ed25519 public key on the curve.
func validateSolana(address string) error {
	decoded, err := base58.Decode(address)
	if err != nil {
		return invalid("not base58")
	}
	if len(decoded) != 32 {
		return invalid(fmt.Sprintf("expected 32 bytes, got %d", len(decoded)))
	}
	if _, err := new(edwards25519.Point).SetBytes(decoded); err != nil {
		return invalid("not an ed25519 public key")
	}
	return nil
}

// validateBitcoin accepts base58check P2PKH/P2SH and bech32/bech32m segwit addresses.
func validateBitcoin(address string) error {
	if strings.HasPrefix(strings.ToLower(address), "bc1") {
		return validateSegwit(address)
	}

	decoded, err := base58.Decode(address)
	if err != nil {
		return invalid("not base58")
	}
	if err := checkBase58Check(decoded); err != nil {
		return err
	}
	if decoded[0] != 0x00 && decoded[0] != 0x05 {
		return invalid("unknown address version")
	}
	return nil
}

// validateSegwit decodes a mainnet segwit address. Version 0 programs use
// bech32 and are 20 or 32 bytes; later versions use bech32m.
func validateSegwit(address string) error {
	hrp, data, encoding, err := bech32.DecodeGeneric(address)
	if err != nil {
		return invalid(fmt.Sprintf("bad bech32: %v", err))
	}
	if hrp != "bc" {
		return invalid(fmt.Sprintf("unexpected bech32 prefix %q", hrp))
	}
	if len(data) < 1 {
		return invalid("missing witness version")
	}
	version := data[0]
	if version > 16 {
		return invalid(fmt.Sprintf("bad witness version %d", version))
	}
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return invalid(fmt.Sprintf("bad witness program: %v", err))
	}
	if len(program) < 2 || len(program) > 40 {
		return invalid(fmt.Sprintf("bad witness program length %d", len(program)))
	}
	if version == 0 {
		if encoding != bech32.Version0 {
			return invalid("version 0 witness must use bech32")
		}
		if len(program) != 20 && len(program) != 32 {
			return invalid(fmt.Sprintf("bad v0 witness program length %d", len(program)))
		}
		return nil
	}
	if encoding != bech32.VersionM {
		return invalid("witness version 1+ must use bech32m")
	}
	return nil
}

// validateXRP accepts classic r-addresses in the Ripple base58 alphabet.
func validateXRP(address string) error {
	if !strings.HasPrefix(address, "r") || len(address) < 25 || len(address) > 35 {
		return invalid("expected r-address of 25 to 35 characters")
	}
	decoded, err := base58.DecodeAlphabet(address, rippleAlphabet)
	if err != nil {
		return invalid("not ripple base58")
	}
	if err := checkBase58Check(decoded); err != nil {
		return err
	}
	if decoded[0] != 0x00 {
		return invalid("unknown address version")
	}
	return nil
}

// checkBase58Check verifies a 25-byte version|payload|checksum layout.
func checkBase58Check(decoded []byte) error {
	if len(decoded) != 25 {
		return invalid(fmt.Sprintf("expected 25 bytes, got %d", len(decoded)))
	}
	first := sha256.Sum256(decoded[:21])
	second := sha256.Sum256(first[:])
	if !bytes.Equal(second[:4], decoded[21:]) {
		return invalid("bad checksum")
	}
	return nil
}
