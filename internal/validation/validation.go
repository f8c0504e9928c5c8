// Package validation provides input validation for MatchForge.
package validation

import (
	"errors"
	"math/big"
	"regexp"
	"strings"
)

// Addresses are 20-byte identities in 0x-prefixed hex.
var addressRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ZeroAddress is the null identity.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// ValidateAddress validates an address string.
func ValidateAddress(addr string) error {
	if addr == "" {
		return errors.New("address cannot be empty")
	}
	if !addressRegex.MatchString(addr) {
		return errors.New("invalid address: must be 0x-prefixed 20-byte hex")
	}
	return nil
}

// IsZeroAddress reports whether addr is the null identity.
func IsZeroAddress(addr string) bool {
	return NormalizeAddress(addr) == ZeroAddress
}

// NormalizeAddress lowercases an address so lookups are case-insensitive.
func NormalizeAddress(addr string) string {
	return strings.ToLower(addr)
}

// ParseAmount parses a base-10 token amount in base units. Amounts must be
// strictly positive.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("amount cannot be empty")
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.New("invalid amount: must be a base-10 integer")
	}
	if n.Sign() <= 0 {
		return nil, errors.New("invalid amount: must be positive")
	}
	return n, nil
}
