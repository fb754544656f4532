package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ruteri/people-registry/interfaces"
)

// MemoryLedger keeps per-identity accounts and a custody account in memory.
// It is meant for development and tests, where payments are plain amounts
// debited from the payer's account instead of on-chain transactions.
type MemoryLedger struct {
	mu       sync.Mutex
	accounts map[interfaces.Identity]*big.Int
	custody  *big.Int
	log      *slog.Logger
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger(log *slog.Logger) *MemoryLedger {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryLedger{
		accounts: make(map[interfaces.Identity]*big.Int),
		custody:  new(big.Int),
		log:      log,
	}
}

// Deposit credits amount to id's account.
func (l *MemoryLedger) Deposit(id interfaces.Identity, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.account(id)
	acct.Add(acct, amount)
}

// BalanceOf returns a copy of id's account balance.
func (l *MemoryLedger) BalanceOf(id interfaces.Identity) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if bal, ok := l.accounts[id]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Custody returns a copy of the custodied funds.
func (l *MemoryLedger) Custody() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return new(big.Int).Set(l.custody)
}

// Collect moves payment.Amount from the payer's account into custody.
func (l *MemoryLedger) Collect(ctx context.Context, payer interfaces.Identity, payment interfaces.Payment) (*big.Int, error) {
	if payment.Amount == nil || payment.Amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: payment amount must be a non-negative value", interfaces.ErrPaymentMismatch)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.account(payer)
	if acct.Cmp(payment.Amount) < 0 {
		return nil, fmt.Errorf("%w: %s holds %s, payment is %s",
			interfaces.ErrInsufficientFunds, payer.Hex(), acct.String(), payment.Amount.String())
	}

	acct.Sub(acct, payment.Amount)
	l.custody.Add(l.custody, payment.Amount)

	l.log.Debug("Collected payment", "payer", payer.Hex(), "amount", payment.Amount.String())
	return new(big.Int).Set(payment.Amount), nil
}

// Payout moves amount from custody to the given identity's account.
func (l *MemoryLedger) Payout(ctx context.Context, to interfaces.Identity, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid payout amount %v", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.custody.Cmp(amount) < 0 {
		return fmt.Errorf("%w: custody holds %s, payout is %s",
			interfaces.ErrInsufficientFunds, l.custody.String(), amount.String())
	}

	l.custody.Sub(l.custody, amount)
	acct := l.account(to)
	acct.Add(acct, amount)

	l.log.Debug("Paid out", "to", to.Hex(), "amount", amount.String())
	return nil
}

// Name returns identifier for logging.
func (l *MemoryLedger) Name() string {
	return "memory"
}

// account returns id's balance, creating it on first use. Must be called with l.mu held.
func (l *MemoryLedger) account(id interfaces.Identity) *big.Int {
	bal, ok := l.accounts[id]
	if !ok {
		bal = new(big.Int)
		l.accounts[id] = bal
	}
	return bal
}

var _ interfaces.Ledger = (*MemoryLedger)(nil)
