package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ruteri/people-registry/interfaces"
)

// Params are the registry's validation parameters.
type Params struct {
	// MinFee is the smallest payment accepted by CreatePerson, in wei.
	MinFee *big.Int

	// SeniorAge is the age from which a record is flagged as senior.
	SeniorAge uint32

	// MaxAge is the largest age accepted by CreatePerson.
	MaxAge uint32
}

// DefaultParams returns a 1 ether fee, a senior threshold of 65 and a maximum age of 150.
func DefaultParams() Params {
	return Params{
		MinFee:    big.NewInt(params.Ether),
		SeniorAge: 65,
		MaxAge:    150,
	}
}

// Validate checks that the parameters are usable.
func (p Params) Validate() error {
	if p.MinFee == nil || p.MinFee.Sign() < 0 {
		return errors.New("minimum fee must be a non-negative amount")
	}
	if p.MaxAge == 0 {
		return errors.New("maximum age must be positive")
	}
	return nil
}

// Config holds the dependencies of a Registry.
type Config struct {
	// Owner is the identity allowed to delete records and withdraw funds.
	Owner interfaces.Identity

	Params Params

	// Treasury delivers withdrawals to the owner. Required.
	Treasury interfaces.Treasury

	// Store persists the registry across restarts. Optional.
	Store interfaces.StateStore

	Log *slog.Logger
}

// Registry is the record/custody state machine.
//
// Every operation holds the registry mutex for its whole duration, so calls are
// applied one at a time and each is either fully applied or fully rejected.
// When a Store is configured the new state is persisted before it is applied
// in memory.
type Registry struct {
	mu       sync.Mutex
	owner    interfaces.Identity
	params   Params
	people   map[interfaces.Identity]interfaces.Person
	balance  *big.Int
	treasury interfaces.Treasury
	store    interfaces.StateStore
	log      *slog.Logger
}

// New creates an empty registry owned by cfg.Owner.
func New(cfg Config) (*Registry, error) {
	if cfg.Owner == (common.Address{}) {
		return nil, errors.New("owner identity is required")
	}
	if cfg.Treasury == nil {
		return nil, errors.New("treasury is required")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registry params: %w", err)
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	return &Registry{
		owner: cfg.Owner,
		params: Params{
			MinFee:    new(big.Int).Set(cfg.Params.MinFee),
			SeniorAge: cfg.Params.SeniorAge,
			MaxAge:    cfg.Params.MaxAge,
		},
		people:   make(map[interfaces.Identity]interfaces.Person),
		balance:  new(big.Int),
		treasury: cfg.Treasury,
		store:    cfg.Store,
		log:      log,
	}, nil
}

// Restore replaces the in-memory state with the snapshot held by the store.
// A missing snapshot leaves the registry empty. A snapshot written for another
// owner is rejected with ErrOwnerMismatch.
func (r *Registry) Restore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	data, err := r.store.Load(ctx, interfaces.RegistryStateKey)
	if errors.Is(err, interfaces.ErrContentNotFound) {
		r.log.Info("No persisted registry state, starting empty", "store", r.store.Name())
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStateUnavailable, err)
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStateUnavailable, err)
	}
	if snap.Owner != r.owner {
		return fmt.Errorf("%w: snapshot owner %s, configured owner %s", interfaces.ErrOwnerMismatch, snap.Owner.Hex(), r.owner.Hex())
	}

	people := make(map[interfaces.Identity]interfaces.Person, len(snap.People))
	reflagged := 0
	for _, rec := range snap.People {
		if rec.Age > r.params.MaxAge {
			return fmt.Errorf("%w: persisted record for %s has age %d", interfaces.ErrInvalidAge, rec.Identity.Hex(), rec.Age)
		}
		// The senior threshold may have changed since the snapshot was written.
		person := rec.Person
		if senior := person.Age >= r.params.SeniorAge; senior != person.IsSenior {
			person.IsSenior = senior
			reflagged++
		}
		people[rec.Identity] = person
	}
	if reflagged > 0 {
		r.log.Warn("Corrected senior flag of restored records",
			"records", reflagged,
			"seniorAge", r.params.SeniorAge)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.people = people
	r.balance = snap.BalanceInt()

	r.log.Info("Restored registry state",
		"store", r.store.Name(),
		"records", len(people),
		"balance", r.balance.String())
	return nil
}

// CreatePerson stores a record for caller, overwriting any previous one, and
// adds payment to the balance. The age is checked before the payment.
func (r *Registry) CreatePerson(ctx context.Context, caller interfaces.Identity, name string, age, height uint32, payment *big.Int) (interfaces.Person, error) {
	if err := r.ValidateAge(age); err != nil {
		return interfaces.Person{}, err
	}
	if payment == nil || payment.Sign() <= 0 || payment.Cmp(r.params.MinFee) < 0 {
		return interfaces.Person{}, fmt.Errorf("%w: got %s, minimum is %s",
			interfaces.ErrInsufficientPayment, interfaces.FormatAmount(payment), interfaces.FormatAmount(r.params.MinFee))
	}

	person := interfaces.Person{
		Name:     name,
		Age:      age,
		Height:   height,
		IsSenior: age >= r.params.SeniorAge,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	balance := new(big.Int).Add(r.balance, payment)
	if err := r.save(ctx, balance, recordEdit{id: caller, person: &person}); err != nil {
		r.log.Error("Failed to persist new record", "caller", caller.Hex(), "err", err)
		return interfaces.Person{}, err
	}

	_, overwritten := r.people[caller]
	r.people[caller] = person
	r.balance = balance

	r.log.Info("Person record stored",
		"caller", caller.Hex(),
		"age", age,
		"senior", person.IsSenior,
		"overwritten", overwritten,
		"payment", payment.String())

	return person, nil
}

// ValidateAge reports whether CreatePerson would accept age.
// Callers use it to reject a request before collecting its payment.
func (r *Registry) ValidateAge(age uint32) error {
	if age > r.params.MaxAge {
		return fmt.Errorf("%w: %d exceeds maximum of %d", interfaces.ErrInvalidAge, age, r.params.MaxAge)
	}
	return nil
}

// GetPerson returns the record stored for caller, or the empty sentinel.
func (r *Registry) GetPerson(caller interfaces.Identity) interfaces.Person {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.people[caller]
}

// DeletePerson clears target's record. Only the owner may call it.
// Deleting an absent record succeeds.
func (r *Registry) DeletePerson(ctx context.Context, caller, target interfaces.Identity) error {
	if err := r.requireOwner(caller); err != nil {
		r.log.Warn("Rejected record deletion", "caller", caller.Hex(), "target", target.Hex())
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.people[target]; !ok {
		r.log.Debug("No record to delete", "target", target.Hex())
		return nil
	}

	if err := r.save(ctx, r.balance, recordEdit{id: target}); err != nil {
		r.log.Error("Failed to persist record deletion", "target", target.Hex(), "err", err)
		return err
	}
	delete(r.people, target)

	r.log.Info("Person record deleted", "target", target.Hex())
	return nil
}

// WithdrawAll pays the whole balance out to the owner and returns the amount.
// Only the owner may call it.
//
// The zeroed balance is persisted before the payout. If the payout fails the
// persisted state is rolled back and the in-memory balance is left untouched.
func (r *Registry) WithdrawAll(ctx context.Context, caller interfaces.Identity) (*big.Int, error) {
	if err := r.requireOwner(caller); err != nil {
		r.log.Warn("Rejected withdrawal", "caller", caller.Hex())
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	amount := new(big.Int).Set(r.balance)
	if amount.Sign() == 0 {
		return amount, nil
	}

	if err := r.save(ctx, new(big.Int)); err != nil {
		r.log.Error("Failed to persist withdrawal", "err", err)
		return nil, err
	}

	if err := r.treasury.Payout(ctx, r.owner, amount); err != nil {
		transferErr := fmt.Errorf("%w: %v", interfaces.ErrTransferFailed, err)
		r.log.Error("Payout failed, rolling back withdrawal", "amount", amount.String(), "err", err)

		if rbErr := r.save(context.WithoutCancel(ctx), r.balance); rbErr != nil {
			r.log.Error("Failed to roll back persisted balance", "amount", amount.String(), "err", rbErr)
			return nil, errors.Join(transferErr, rbErr)
		}
		return nil, transferErr
	}

	r.balance = new(big.Int)

	r.log.Info("Balance withdrawn", "owner", r.owner.Hex(), "amount", amount.String())
	return amount, nil
}

// Owner returns the identity fixed at construction.
func (r *Registry) Owner() interfaces.Identity {
	return r.owner
}

// Balance returns a copy of the funds accumulated since the last withdrawal.
func (r *Registry) Balance() *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return new(big.Int).Set(r.balance)
}

// Params returns a copy of the validation parameters.
func (r *Registry) Params() Params {
	return Params{
		MinFee:    new(big.Int).Set(r.params.MinFee),
		SeniorAge: r.params.SeniorAge,
		MaxAge:    r.params.MaxAge,
	}
}

// StoreStatus names the state store and reports whether it can be reached.
// A registry without a store reports "none" and is always available.
func (r *Registry) StoreStatus(ctx context.Context) (string, bool) {
	if r.store == nil {
		return "none", true
	}
	return r.store.Name(), r.store.Available(ctx)
}

// Count returns the number of records present.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.people)
}

func (r *Registry) requireOwner(caller interfaces.Identity) error {
	if caller != r.owner {
		return fmt.Errorf("%w: %s", interfaces.ErrUnauthorized, caller.Hex())
	}
	return nil
}

// recordEdit is a pending change to one record. A nil person removes it.
type recordEdit struct {
	id     interfaces.Identity
	person *interfaces.Person
}

// save persists the current state with the given balance and edits applied.
// Must be called with r.mu held.
func (r *Registry) save(ctx context.Context, balance *big.Int, edits ...recordEdit) error {
	if r.store == nil {
		return nil
	}

	people := make(map[interfaces.Identity]interfaces.Person, len(r.people)+len(edits))
	for id, p := range r.people {
		people[id] = p
	}
	for _, e := range edits {
		if e.person == nil {
			delete(people, e.id)
		} else {
			people[e.id] = *e.person
		}
	}

	data, err := NewSnapshot(r.owner, balance, people).Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStateUnavailable, err)
	}
	if err := r.store.Save(ctx, interfaces.RegistryStateKey, data); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStateUnavailable, err)
	}
	return nil
}

var _ interfaces.Registry = (*Registry)(nil)
