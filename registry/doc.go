// Package registry implements the people registry: a single-owner, fund-custodial
// record store.
//
// Any identity may register its own Person record by paying at least the minimum
// fee. Records are private to the identity that created them; there is no
// enumeration. Only the owner, fixed at construction, may delete records or
// withdraw the accumulated balance.
//
// # Operations
//
//   - CreatePerson validates the age (at most MaxAge), then the payment (at
//     least MinFee), derives IsSenior from SeniorAge, stores the record under
//     the caller's identity, overwriting any previous record, and adds the
//     payment to the balance.
//   - GetPerson returns the caller's record, or the zero Person when absent.
//   - DeletePerson clears a record. Owner only; deleting an absent record
//     succeeds.
//   - WithdrawAll transfers the whole balance to the owner through the
//     configured Treasury and zeroes it. Owner only.
//
// # Atomicity
//
// All operations are serialized by a mutex. With a StateStore configured, every
// mutation persists the resulting Snapshot before it is applied in memory, so a
// failed save leaves the registry unchanged. WithdrawAll persists the zero
// balance before paying out and restores the persisted balance if the payout
// fails.
//
// # Persistence
//
// Restore loads the snapshot stored under interfaces.RegistryStateKey. The
// snapshot is versioned JSON holding the owner, the balance as a hex quantity
// and the present records sorted by identity.
package registry
