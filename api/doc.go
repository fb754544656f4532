/*
Package api defines the HTTP contract of the people registry: request and
response bodies, the error code table, and request signing.

# Authentication

Callers are identified by an Ethereum-style address recovered from a
secp256k1 signature over each request. The signed digest is the EIP-191
personal-message hash of

	keccak256(METHOD "\n" PATH "\n" TIMESTAMP "\n" keccak256(body))

sent in the X-Registry-Timestamp (unix milliseconds) and X-Registry-Signature
(hex, 65 bytes) headers. Servers bound the timestamp to a window and refuse
digests they have already accepted.

# Errors

Every non-2xx response carries an ErrorResponse. StatusForError and
ErrorForCode translate between sentinel errors, HTTP statuses and codes in both
directions; see errors.go for the table.

# Subpackages

  - clients: typed HTTP client signing every request
*/
package api
