package validate

import (
	"crypto/ecdsa"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"bscwallet/pkg/errs"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	keyPattern     = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)
)

// IsValidAddress reports whether s is a 0x-prefixed 40-hex-character address.
// Checksum casing is not enforced.
func IsValidAddress(s string) bool {
	if !addressPattern.MatchString(s) {
		return false
	}
	return common.IsHexAddress(s)
}

// IsValidPrivateKey reports whether s is 64 hex characters (optionally 0x-prefixed)
// that form a usable secp256k1 key.
func IsValidPrivateKey(s string) bool {
	_, err := ParsePrivateKey(s)
	return err == nil
}

// ParsePrivateKey parses a hex private key with or without 0x prefix.
func ParsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if !keyPattern.MatchString(hex) {
		return nil, fmt.Errorf("%w: private key must be 64 hex characters", errs.ErrInvalidCredential)
	}
	key, err := crypto.HexToECDSA(hex)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidCredential, err)
	}
	return key, nil
}

// Address checks s and returns it as a common.Address.
func Address(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !IsValidAddress(s) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", errs.ErrInvalidCredential, s)
	}
	return common.HexToAddress(s), nil
}

// PositiveNumber parses a strictly positive decimal string.
func PositiveNumber(s, field string) (math.LegacyDec, error) {
	d, err := math.LegacyNewDecFromStr(strings.TrimSpace(s))
	if err != nil {
		return math.LegacyDec{}, fmt.Errorf("%w: %s must be a valid number", errs.ErrInvalidAmount, field)
	}
	if !d.IsPositive() {
		return math.LegacyDec{}, fmt.Errorf("%w: %s must be positive", errs.ErrInvalidAmount, field)
	}
	return d, nil
}

// PositiveInteger parses a strictly positive integer no greater than max (max <= 0 disables the bound).
func PositiveInteger(s, field string, max int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a valid integer", errs.ErrInvalidAmount, field)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", errs.ErrInvalidAmount, field)
	}
	if max > 0 && v > max {
		return 0, fmt.Errorf("%w: %s must not exceed %d", errs.ErrInvalidAmount, field, max)
	}
	return v, nil
}

// TruncateAddress shortens an address for display, e.g. 0x1234...abcd.
func TruncateAddress(addr string, start, end int) string {
	if len(addr) < start+end {
		return addr
	}
	return addr[:start] + "..." + addr[len(addr)-end:]
}

// FormatTxHash shortens a transaction hash for display.
func FormatTxHash(hash string) string {
	if hash == "" {
		return ""
	}
	return TruncateAddress(hash, 8, 6)
}
