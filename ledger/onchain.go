package ledger

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ruteri/people-registry/interfaces"
)

// ChainBackend is the subset of an Ethereum client used by the on-chain ledger.
// Both *ethclient.Client and the simulated backend's client satisfy it.
type ChainBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// OnchainLedger custodies registry funds in an Ethereum account.
//
// Payments are value transfers from the payer to the custody address, presented
// by transaction hash. Each transaction can be collected once; the set of
// collected hashes is persisted in the optional state store so that replays are
// refused across restarts. Payouts are value transfers signed by the custody key.
type OnchainLedger struct {
	backend ChainBackend
	key     *ecdsa.PrivateKey
	custody common.Address
	chainID *big.Int
	store   interfaces.StateStore
	log     *slog.Logger

	mu      sync.Mutex
	claimed map[common.Hash]struct{}

	// payoutMu serializes payouts so that nonces are not reused.
	payoutMu sync.Mutex
}

// NewOnchainLedger creates a ledger whose custody account is the address of key.
// Previously collected payments are loaded from store when one is given.
func NewOnchainLedger(ctx context.Context, backend ChainBackend, key *ecdsa.PrivateKey, store interfaces.StateStore, log *slog.Logger) (*OnchainLedger, error) {
	if key == nil {
		return nil, errors.New("custody key is required")
	}
	if log == nil {
		log = slog.Default()
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not fetch chain id: %w", err)
	}

	l := &OnchainLedger{
		backend: backend,
		key:     key,
		custody: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		store:   store,
		log:     log,
		claimed: make(map[common.Hash]struct{}),
	}

	if err := l.loadClaims(ctx); err != nil {
		return nil, err
	}

	log.Info("On-chain ledger ready",
		"custody", l.custody.Hex(),
		"chainID", chainID.String(),
		"claimed", len(l.claimed))
	return l, nil
}

// Custody returns the address payments must be sent to.
func (l *OnchainLedger) Custody() common.Address {
	return l.custody
}

// Collect verifies that payment.TxHash is a successful, mined value transfer
// from payer to the custody address that was not collected before, and returns
// its value.
func (l *OnchainLedger) Collect(ctx context.Context, payer interfaces.Identity, payment interfaces.Payment) (*big.Int, error) {
	hash := payment.TxHash
	if hash == (common.Hash{}) {
		return nil, fmt.Errorf("%w: no payment transaction given", interfaces.ErrPaymentNotFound)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.claimed[hash]; ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrPaymentAlreadyClaimed, hash.Hex())
	}

	tx, pending, err := l.backend.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrPaymentNotFound, hash.Hex())
	} else if isIndexingInProgress(err) {
		return nil, fmt.Errorf("%w: node is still indexing transactions, cannot look up %s yet", interfaces.ErrPaymentPending, hash.Hex())
	} else if err != nil {
		return nil, fmt.Errorf("could not fetch payment transaction %s: %w", hash.Hex(), err)
	}
	if pending {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrPaymentPending, hash.Hex())
	}

	receipt, err := l.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) || isIndexingInProgress(err) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrPaymentPending, hash.Hex())
	} else if err != nil {
		return nil, fmt.Errorf("could not fetch payment receipt %s: %w", hash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrPaymentFailed, hash.Hex())
	}

	if tx.To() == nil || *tx.To() != l.custody {
		return nil, fmt.Errorf("%w: %s was not sent to %s", interfaces.ErrPaymentMismatch, hash.Hex(), l.custody.Hex())
	}
	sender, err := types.Sender(types.LatestSignerForChainID(l.chainID), tx)
	if err != nil {
		return nil, fmt.Errorf("%w: could not recover sender of %s: %v", interfaces.ErrPaymentMismatch, hash.Hex(), err)
	}
	if sender != payer {
		return nil, fmt.Errorf("%w: %s was sent by %s", interfaces.ErrPaymentMismatch, hash.Hex(), sender.Hex())
	}

	l.claimed[hash] = struct{}{}
	if err := l.saveClaims(ctx); err != nil {
		delete(l.claimed, hash)
		return nil, err
	}

	l.log.Info("Collected on-chain payment",
		"payer", payer.Hex(),
		"tx", hash.Hex(),
		"value", tx.Value().String())
	return new(big.Int).Set(tx.Value()), nil
}

// errTxIndexingInProgress is the message a node returns for transaction lookups
// while it is still building its transaction index. It arrives over RPC as a
// plain string, so it is matched by text.
const errTxIndexingInProgress = "transaction indexing is in progress"

func isIndexingInProgress(err error) bool {
	return err != nil && strings.Contains(err.Error(), errTxIndexingInProgress)
}

// Payout sends amount from the custody account to the given identity.
// A zero amount is a no-op.
func (l *OnchainLedger) Payout(ctx context.Context, to interfaces.Identity, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid payout amount %v", amount)
	}
	if amount.Sign() == 0 {
		return nil
	}

	l.payoutMu.Lock()
	defer l.payoutMu.Unlock()

	tx, err := Transfer(ctx, l.backend, l.key, to, amount)
	if err != nil {
		return err
	}

	l.log.Info("Sent payout", "to", to.Hex(), "amount", amount.String(), "tx", tx.Hash().Hex())
	return nil
}

// Name returns identifier for logging.
func (l *OnchainLedger) Name() string {
	return fmt.Sprintf("onchain-%s", l.custody.Hex())
}

// Transfer signs a plain value transfer from key's address to `to` and sends it.
// It does not wait for the transaction to be mined.
func Transfer(ctx context.Context, backend ChainBackend, key *ecdsa.PrivateKey, to common.Address, amount *big.Int) (*types.Transaction, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not fetch chain id: %w", err)
	}
	nonce, err := backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("could not fetch nonce for %s: %w", from.Hex(), err)
	}
	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not fetch gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    amount,
		Gas:      params.TxGas,
		GasPrice: gasPrice,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, fmt.Errorf("could not sign transfer: %w", err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("could not send transfer: %w", err)
	}
	return signed, nil
}

func (l *OnchainLedger) loadClaims(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	data, err := l.store.Load(ctx, interfaces.PaymentClaimsKey)
	if errors.Is(err, interfaces.ErrContentNotFound) {
		return nil
	} else if err != nil {
		return fmt.Errorf("%w: could not load payment claims: %v", interfaces.ErrStateUnavailable, err)
	}

	var hashes []common.Hash
	if err := json.Unmarshal(data, &hashes); err != nil {
		return fmt.Errorf("%w: could not decode payment claims: %v", interfaces.ErrStateUnavailable, err)
	}
	for _, h := range hashes {
		l.claimed[h] = struct{}{}
	}
	return nil
}

// saveClaims must be called with l.mu held.
func (l *OnchainLedger) saveClaims(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	hashes := make([]common.Hash, 0, len(l.claimed))
	for h := range l.claimed {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i].Cmp(hashes[j]) < 0 })

	data, err := json.Marshal(hashes)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStateUnavailable, err)
	}
	if err := l.store.Save(ctx, interfaces.PaymentClaimsKey, data); err != nil {
		return fmt.Errorf("%w: could not persist payment claims: %v", interfaces.ErrStateUnavailable, err)
	}
	return nil
}

var _ interfaces.Ledger = (*OnchainLedger)(nil)
