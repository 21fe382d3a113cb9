package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Address is a lowercase 0x-prefixed hex account address.
type Address string

// ParseAddress validates and normalizes s.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if len(s) < 3 || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return "", fmt.Errorf("ledger: address %q must be 0x-prefixed", s)
	}
	body := s[2:]
	if len(body) > 40 {
		return "", fmt.Errorf("ledger: address %q is too long", s)
	}
	if _, err := hex.DecodeString(padEven(body)); err != nil {
		return "", fmt.Errorf("ledger: address %q is not hex", s)
	}
	return Address("0x" + strings.ToLower(body)), nil
}

// MustAddress is ParseAddress for constants and tests.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromName derives a stable address from a login name, for SSH
// players who do not bring a wallet.
func AddressFromName(name string) Address {
	sum := sha256.Sum256([]byte("rally:" + strings.ToLower(name)))
	return Address("0x" + hex.EncodeToString(sum[:20]))
}

// Short renders 0x1234…abcd.
func (a Address) Short() string {
	s := string(a)
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "…" + s[len(s)-4:]
}

// Equal compares addresses case-insensitively.
func (a Address) Equal(b Address) bool {
	return strings.EqualFold(string(a), string(b))
}

func padEven(s string) string {
	if len(s)%2 == 1 {
		return "0" + s
	}
	return s
}
