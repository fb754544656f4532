package interfaces

import (
	"context"
	"errors"
	"math/big"
)

var (
	// ErrInvalidAge is returned when a record's age exceeds the configured maximum.
	ErrInvalidAge = errors.New("invalid age")

	// ErrInsufficientPayment is returned when the payment attached to a create
	// call is below the configured minimum fee.
	ErrInsufficientPayment = errors.New("insufficient payment")

	// ErrUnauthorized is returned when a non-owner calls an owner-only operation.
	ErrUnauthorized = errors.New("caller is not the owner")

	// ErrTransferFailed is returned when a payout could not be delivered.
	// The registry balance is left unchanged.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrStateUnavailable is returned when registry state could not be persisted or loaded.
	ErrStateUnavailable = errors.New("registry state unavailable")

	// ErrOwnerMismatch is returned when persisted state belongs to a different owner.
	ErrOwnerMismatch = errors.New("persisted state owner mismatch")
)

// Registry is the record/custody state machine.
type Registry interface {
	// CreatePerson stores a record for caller and retains payment.
	CreatePerson(ctx context.Context, caller Identity, name string, age, height uint32, payment *big.Int) (Person, error)

	// GetPerson returns caller's record, or the empty sentinel.
	GetPerson(caller Identity) Person

	// DeletePerson clears target's record. Owner only.
	DeletePerson(ctx context.Context, caller, target Identity) error

	// WithdrawAll pays the whole balance out to the owner. Owner only.
	WithdrawAll(ctx context.Context, caller Identity) (*big.Int, error)

	// Owner returns the identity fixed at construction.
	Owner() Identity

	// Balance returns the funds accumulated since the last withdrawal.
	Balance() *big.Int
}
