package api

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/ruteri/people-registry/interfaces"
)

// Header constants used in HTTP requests.
const (
	// TimestampHeader carries the signing time in unix milliseconds.
	TimestampHeader = "X-Registry-Timestamp"

	// NonceHeader carries a client-chosen value that makes otherwise identical
	// requests distinct. It is part of the signed message.
	NonceHeader = "X-Registry-Nonce"

	// MaxNonceLength bounds the nonce header.
	MaxNonceLength = 64

	// SignatureHeader carries the hex-encoded 65-byte [R || S || V] signature.
	SignatureHeader = "X-Registry-Signature"

	// CallerHeader optionally names the identity the client believes it signs as.
	// When present it must match the recovered signer.
	CallerHeader = "X-Registry-Caller"

	// MaxBodySize is the maximum accepted request body size.
	MaxBodySize = 64 * 1024
)

var validate = validator.New()

// ErrInvalidRequest is returned for malformed or invalid request bodies.
var ErrInvalidRequest = errors.New("invalid request")

// PaymentRequest references the fee paid for a create request.
// With an on-chain ledger TxHash names a value transfer to the custody address;
// with the memory ledger Amount is debited from the caller's account.
type PaymentRequest struct {
	TxHash string `json:"tx_hash,omitempty" validate:"required_without=Amount,excluded_with=Amount,omitempty,len=66,startswith=0x,hexadecimal"`
	Amount string `json:"amount,omitempty" validate:"required_without=TxHash,omitempty,max=96"`
}

// ToPayment converts the request into a ledger payment.
func (p PaymentRequest) ToPayment() (interfaces.Payment, error) {
	var payment interfaces.Payment
	if p.TxHash != "" {
		payment.TxHash = common.HexToHash(p.TxHash)
	}
	if p.Amount != "" {
		amount, err := interfaces.ParseAmount(p.Amount)
		if err != nil {
			return interfaces.Payment{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		payment.Amount = amount
	}
	return payment, nil
}

// CreatePersonRequest is the body of POST /api/people.
// Age bounds are enforced by the registry, not here.
type CreatePersonRequest struct {
	Name    string         `json:"name" validate:"max=256"`
	Age     uint32         `json:"age"`
	Height  uint32         `json:"height"`
	Payment PaymentRequest `json:"payment"`
}

// PersonResponse is a stored record. Exists is false for the empty sentinel.
type PersonResponse struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Age      uint32 `json:"age"`
	Height   uint32 `json:"height"`
	IsSenior bool   `json:"is_senior"`
	Exists   bool   `json:"exists"`
}

// NewPersonResponse builds the response for id's record.
func NewPersonResponse(id interfaces.Identity, p interfaces.Person) PersonResponse {
	return PersonResponse{
		Identity: id.Hex(),
		Name:     p.Name,
		Age:      p.Age,
		Height:   p.Height,
		IsSenior: p.IsSenior,
		Exists:   p.Exists(),
	}
}

// Person converts the response back into a record.
func (r PersonResponse) Person() interfaces.Person {
	return interfaces.Person{
		Name:     r.Name,
		Age:      r.Age,
		Height:   r.Height,
		IsSenior: r.IsSenior,
	}
}

// CreatePersonResponse is returned by POST /api/people.
type CreatePersonResponse struct {
	PersonResponse
	// Paid is the collected payment in wei.
	Paid string `json:"paid"`
}

// WithdrawResponse is returned by POST /api/withdraw.
type WithdrawResponse struct {
	// Amount is the withdrawn amount in wei.
	Amount string `json:"amount"`
}

// AmountInt parses Amount.
func (r WithdrawResponse) AmountInt() (*big.Int, error) {
	amount, ok := new(big.Int).SetString(r.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", r.Amount)
	}
	return amount, nil
}

// RegistryInfoResponse is returned by GET /api/public/registry.
// Amounts are decimal wei.
type RegistryInfoResponse struct {
	Owner     string `json:"owner"`
	Balance   string `json:"balance"`
	MinFee    string `json:"min_fee"`
	SeniorAge uint32 `json:"senior_age"`
	MaxAge    uint32 `json:"max_age"`
	Records   int    `json:"records"`
	Ledger    string `json:"ledger"`
	Custody   string `json:"custody,omitempty"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ValidateRequest validates v with its struct tags.
func ValidateRequest(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
