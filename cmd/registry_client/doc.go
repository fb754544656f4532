// Package main (cmd/registry_client) is a command-line client for the people registry API.
//
// Every request is signed with the key given by --key or --keystore, and the
// registry identifies the caller by that key's address.
//
// Commands:
//
//	create   - Store the caller's record. With --pay the fee is first sent on
//	           chain to the custody address and the transaction hash is used as
//	           the payment; otherwise --amount is debited from the memory ledger
//	           or --tx-hash names an earlier transfer.
//	get      - Print the caller's record.
//	delete   - Clear a record (owner key only).
//	withdraw - Pay the accumulated fees out to the owner (owner key only).
//	info     - Print the registry owner, parameters and totals.
//	pay      - Send the fee on chain and print the transaction hash.
package main
