// Package ledger provides the value-transfer mechanisms the registry runs against.
//
// Two implementations of interfaces.Ledger are available:
//
//   - MemoryLedger: accounts held in memory. Payments are amounts debited from
//     the payer's account; payouts credit the recipient. Used for development
//     and tests.
//
//   - OnchainLedger: funds custodied by an Ethereum account. Payments are value
//     transfers to the custody address, identified by transaction hash and
//     verified against the chain (mined, successful, correct sender and
//     recipient, not collected before). Payouts are signed value transfers from
//     the custody key.
//
// Transfer is the shared helper that signs and sends a plain value transfer; the
// registry client uses it to pay the registration fee.
package ledger
