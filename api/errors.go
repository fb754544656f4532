package api

import (
	"errors"
	"net/http"

	"github.com/ruteri/people-registry/interfaces"
)

// ErrorCodeInternal is reported for errors without a more specific code.
const ErrorCodeInternal = "internal"

type errorKind struct {
	err    error
	status int
	code   string
}

// errorKinds maps errors to HTTP statuses and codes, first match wins.
// Infrastructure failures come first so that a failed refund is never
// reported as the rejection that caused it.
var errorKinds = []errorKind{
	{interfaces.ErrTransferFailed, http.StatusServiceUnavailable, "transfer_failed"},
	{interfaces.ErrStateUnavailable, http.StatusServiceUnavailable, "state_unavailable"},

	{ErrMissingSignature, http.StatusUnauthorized, "missing_signature"},
	{ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature"},
	{ErrRequestExpired, http.StatusUnauthorized, "request_expired"},
	{ErrReplayedRequest, http.StatusUnauthorized, "replayed_request"},

	{interfaces.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{interfaces.ErrInvalidAge, http.StatusBadRequest, "invalid_age"},
	{ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},

	{interfaces.ErrInsufficientPayment, http.StatusPaymentRequired, "insufficient_payment"},
	{interfaces.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},
	{interfaces.ErrPaymentMismatch, http.StatusPaymentRequired, "payment_mismatch"},
	{interfaces.ErrPaymentFailed, http.StatusPaymentRequired, "payment_failed"},
	{interfaces.ErrPaymentNotFound, http.StatusPaymentRequired, "payment_not_found"},
	{interfaces.ErrPaymentAlreadyClaimed, http.StatusConflict, "payment_already_claimed"},
	{interfaces.ErrPaymentPending, http.StatusTooEarly, "payment_pending"},
}

// StatusForError returns the HTTP status and error code for err.
func StatusForError(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, ErrorCodeInternal
}

// ErrorForCode returns the sentinel error reported under code, or nil.
func ErrorForCode(code string) error {
	for _, k := range errorKinds {
		if k.code == code {
			return k.err
		}
	}
	return nil
}
