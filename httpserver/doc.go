/*
Package httpserver implements the HTTP API of the people registry.

Every registry operation is a signed request. The caller identity is the
address recovered from the request signature, so no accounts or sessions are
kept by the server. Requests are rejected when the signature is older or newer
than the authentication window, or when the same signed request was already
accepted (see Authenticator).

# Endpoints

  - POST /api/people - Store the caller's record, paying the registration fee
  - GET /api/people/me - Get the caller's record
  - DELETE /api/people/{identity} - Clear a record (owner only)
  - POST /api/withdraw - Pay the accumulated fees out to the owner (owner only)
  - GET /api/public/registry - Registry owner, parameters and totals (unsigned)
  - GET /livez - Liveness check
  - GET /readyz - Readiness check
  - GET /drain - Mark server as not ready
  - GET /undrain - Mark server as ready

pprof is mounted under /debug when enabled. Prometheus metrics are served on a
separate listener.

# Payments

The create handler validates the body and the age before the ledger collects
the payment. If the registry rejects the record afterwards, for example because
the payment is below the minimum fee, the collected amount is refunded to the
caller. A refund that fails is reported as transfer_failed.

# Errors

Non-2xx responses carry an api.ErrorResponse whose code is stable and maps
back to the sentinel error on the client side (see api.StatusForError).
*/
package httpserver
