// Package interfaces defines core interfaces and types for the people registry,
// separating interface definitions from implementations.
//
// # Registry
//
// Registry: the record/custody state machine. Any identity may create and read
// its own Person record by paying a fee; only the owner fixed at construction
// may delete records or withdraw the accumulated balance.
//
// # Value Transfer
//
// Treasury pays custodied funds out, PaymentCollector takes custody of the
// payment attached to a create call. Ledger combines both.
//
// # Storage
//
// StateStore: keyed blob storage for the registry snapshot and ledger claims,
// across multiple backend types (file, S3, IPFS, Vault, Redis, Postgres).
//
// StateStoreFactory: creates state stores from URI strings and manages
// multi-backend configurations for redundant storage.
//
// # Types
//
//   - Identity: 20-byte Ethereum address of a caller
//   - Person: name, age, height and the derived senior flag
//   - Payment: reference to a payment transaction or an in-memory amount
//
// Errors are sentinel values meant to be matched with errors.Is.
package interfaces
