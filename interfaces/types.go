// Package interfaces defines the core interfaces and types for the people registry.
// It provides the contract between different components without implementation details.
package interfaces

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

// Identity is the opaque caller reference used as both record key and
// authorization subject. It is the address recovered from a request signature.
type Identity = common.Address

// NewIdentityFromHex parses a 0x-prefixed or bare 40-character hex address.
func NewIdentityFromHex(addr string) (Identity, error) {
	if !common.IsHexAddress(addr) {
		return Identity{}, fmt.Errorf("invalid identity %q: expected 20-byte hex address", addr)
	}
	return common.HexToAddress(addr), nil
}

// Person is a single registry record.
// The zero value is the sentinel returned for identities with no record.
type Person struct {
	Name     string `json:"name"`
	Age      uint32 `json:"age"`
	Height   uint32 `json:"height"`
	IsSenior bool   `json:"is_senior"`
}

// Exists reports whether the record is distinguishable from the empty sentinel.
func (p Person) Exists() bool {
	return p.Name != ""
}

// Payment describes the value attached to a create call.
// Ledgers backed by a chain use TxHash; the in-memory ledger uses Amount.
type Payment struct {
	TxHash common.Hash
	Amount *big.Int
}

var amountUnits = []struct {
	suffix string
	scale  *big.Int
}{
	{"ether", big.NewInt(params.Ether)},
	{"gwei", big.NewInt(params.GWei)},
	{"wei", big.NewInt(params.Wei)},
}

// ErrInvalidAmount is returned when an amount string cannot be parsed.
var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount parses a wei amount such as "1ether", "0.5ether", "10gwei",
// "1000wei" or a plain decimal wei value. Negative and fractional-wei amounts
// are rejected.
func ParseAmount(s string) (*big.Int, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	scale := big.NewInt(params.Wei)
	for _, unit := range amountUnits {
		if strings.HasSuffix(raw, unit.suffix) {
			raw = strings.TrimSpace(strings.TrimSuffix(raw, unit.suffix))
			scale = unit.scale
			break
		}
	}

	value, ok := new(big.Rat).SetString(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount %q", ErrInvalidAmount, s)
	}

	value.Mul(value, new(big.Rat).SetInt(scale))
	if !value.IsInt() {
		return nil, fmt.Errorf("%w: %q is not a whole number of wei", ErrInvalidAmount, s)
	}
	return new(big.Int).Set(value.Num()), nil
}

// FormatAmount renders a wei amount in the largest unit that represents it exactly.
func FormatAmount(amount *big.Int) string {
	if amount == nil {
		return "0wei"
	}
	for _, unit := range amountUnits {
		if amount.Sign() == 0 {
			break
		}
		q, r := new(big.Int).QuoRem(amount, unit.scale, new(big.Int))
		if r.Sign() == 0 {
			return q.String() + unit.suffix
		}
	}
	return amount.String() + "wei"
}
