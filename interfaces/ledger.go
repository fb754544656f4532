package interfaces

import (
	"context"
	"errors"
	"math/big"
)

var (
	// ErrPaymentNotFound is returned when the referenced payment does not exist.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrPaymentPending is returned when the payment transaction is not yet mined
	// or the node cannot look it up yet.
	ErrPaymentPending = errors.New("payment pending")

	// ErrPaymentFailed is returned when the payment transaction reverted.
	ErrPaymentFailed = errors.New("payment failed")

	// ErrPaymentMismatch is returned when the payment was not sent by the payer
	// to the custody account.
	ErrPaymentMismatch = errors.New("payment does not match payer or custody")

	// ErrPaymentAlreadyClaimed is returned when a payment is presented twice.
	ErrPaymentAlreadyClaimed = errors.New("payment already claimed")

	// ErrInsufficientFunds is returned when an account cannot cover a transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Treasury sends custodied funds to an external account.
type Treasury interface {
	// Payout transfers amount from custody to the given identity.
	Payout(ctx context.Context, to Identity, amount *big.Int) error
}

// PaymentCollector takes custody of payments attached to create calls.
type PaymentCollector interface {
	// Collect claims the payment on behalf of payer and returns the amount received.
	Collect(ctx context.Context, payer Identity, payment Payment) (*big.Int, error)
}

// Ledger is the value-transfer mechanism the registry service runs against.
type Ledger interface {
	Treasury
	PaymentCollector

	// Name returns identifier for logging.
	Name() string
}
