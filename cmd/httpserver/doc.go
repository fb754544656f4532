// Package main (cmd/httpserver) runs the people registry server.
//
// The server keeps one record per caller identity and custodies the
// registration fees until the owner withdraws them. Callers sign every request
// with their Ethereum key; the recovered address is their identity.
//
// Two ledgers are supported:
//
//   - memory: balances held in process, credited at startup with --dev-fund.
//     Suitable for development and tests. Its custody is gone after a restart,
//     so it cannot be combined with --storage.
//
//   - onchain: fees are Ethereum value transfers to the custody account, named
//     by transaction hash in the create request. Withdrawals and refunds are
//     transfers signed by the custody key.
//
// With the onchain ledger, registry state is persisted to every --storage
// location after each change.
// The first location is the primary and must accept every write; the others
// are replicas. Without storage the state lives in memory only.
//
// Settings can be given in a TOML file (--config) and overridden by flags or
// PEOPLE_REGISTRY_* environment variables:
//
//	owner = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
//	min_fee = "1ether"
//	senior_age = 65
//	max_age = 150
//	ledger = "onchain"
//	rpc_addr = "http://127.0.0.1:8545"
//	storage = ["file:///var/lib/people-registry", "redis://localhost:6379/0"]
//	auth_window = "5m"
//
// Example usage with the memory ledger:
//
//	people-registry --owner=0x8ba1f109551bD432803012645Ac136ddd64DBA72 \
//	    --dev-fund=0x71C7656EC7ab88b098defB751B7401B5f6d8976F=10ether
//
// Example usage with an on-chain ledger:
//
//	people-registry --config=registry.toml \
//	    --custody-keystore=./custody.json --custody-password="$PASSWORD"
package main
