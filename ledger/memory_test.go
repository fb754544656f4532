package ledger

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/people-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedger_CollectAndPayout(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := NewMemoryLedger(logger)
	ctx := context.Background()

	payer := common.HexToAddress("0x01")
	owner := common.HexToAddress("0x02")

	l.Deposit(payer, big.NewInt(100))

	collected, err := l.Collect(ctx, payer, interfaces.Payment{Amount: big.NewInt(60)})
	require.NoError(t, err)
	assert.Equal(t, int64(60), collected.Int64())
	assert.Equal(t, int64(40), l.BalanceOf(payer).Int64())
	assert.Equal(t, int64(60), l.Custody().Int64())

	require.NoError(t, l.Payout(ctx, owner, big.NewInt(60)))
	assert.Equal(t, int64(60), l.BalanceOf(owner).Int64())
	assert.Equal(t, int64(0), l.Custody().Int64())
}

func TestMemoryLedger_CollectInsufficientFunds(t *testing.T) {
	l := NewMemoryLedger(nil)
	payer := common.HexToAddress("0x01")
	l.Deposit(payer, big.NewInt(10))

	_, err := l.Collect(context.Background(), payer, interfaces.Payment{Amount: big.NewInt(11)})
	assert.ErrorIs(t, err, interfaces.ErrInsufficientFunds)

	// Nothing moved
	assert.Equal(t, int64(10), l.BalanceOf(payer).Int64())
	assert.Equal(t, int64(0), l.Custody().Int64())
}

func TestMemoryLedger_CollectInvalidAmount(t *testing.T) {
	l := NewMemoryLedger(nil)
	payer := common.HexToAddress("0x01")

	_, err := l.Collect(context.Background(), payer, interfaces.Payment{})
	assert.ErrorIs(t, err, interfaces.ErrPaymentMismatch)

	_, err = l.Collect(context.Background(), payer, interfaces.Payment{Amount: big.NewInt(-1)})
	assert.ErrorIs(t, err, interfaces.ErrPaymentMismatch)
}

func TestMemoryLedger_PayoutExceedsCustody(t *testing.T) {
	l := NewMemoryLedger(nil)
	owner := common.HexToAddress("0x02")

	err := l.Payout(context.Background(), owner, big.NewInt(1))
	assert.ErrorIs(t, err, interfaces.ErrInsufficientFunds)
	assert.Equal(t, int64(0), l.BalanceOf(owner).Int64())
}

func TestMemoryLedger_BalanceOfIsACopy(t *testing.T) {
	l := NewMemoryLedger(nil)
	payer := common.HexToAddress("0x01")
	l.Deposit(payer, big.NewInt(5))

	bal := l.BalanceOf(payer)
	bal.SetInt64(1000)

	assert.Equal(t, int64(5), l.BalanceOf(payer).Int64())
}
