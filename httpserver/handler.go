package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/people-registry/api"
	"github.com/ruteri/people-registry/interfaces"
	"github.com/ruteri/people-registry/ledger"
	"github.com/ruteri/people-registry/metrics"
	"github.com/ruteri/people-registry/registry"
)

// Operation names used in logs and metrics.
const (
	opCreatePerson = "create_person"
	opGetPerson    = "get_person"
	opDeletePerson = "delete_person"
	opWithdrawAll  = "withdraw_all"
)

// RequestError provides structured error information for HTTP responses.
// It includes both an HTTP status code and the underlying error.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Handler processes HTTP requests for the people registry.
// It authenticates callers, moves payments through the ledger and applies
// operations to the registry.
type Handler struct {
	registry *registry.Registry
	ledger   interfaces.Ledger
	auth     *Authenticator
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewHandler creates a new HTTP request handler with the specified dependencies.
//
// Parameters:
//   - reg: The registry operations are applied to
//   - l: Ledger collecting create payments and refunding rejected ones
//   - auth: Authenticator deriving caller identities from request signatures
//   - log: Structured logger for operational insights
func NewHandler(reg *registry.Registry, l interfaces.Ledger, auth *Authenticator, log *slog.Logger) *Handler {
	return &Handler{
		registry: reg,
		ledger:   l,
		auth:     auth,
		log:      log,
	}
}

// SetMetrics attaches collectors and publishes the current registry state to them.
func (h *Handler) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
	h.updateStateMetrics()
}

// HandleCreatePerson registers the caller's record.
//
// URL format: POST /api/people
// Request body: api.CreatePersonRequest
// Response: api.CreatePersonResponse
//
// The age is validated before the payment is collected, so a request rejected
// for its age leaves the payment unclaimed. A payment collected for a request
// the registry then rejects is refunded to the caller.
func (h *Handler) HandleCreatePerson(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	caller, body, err := h.authenticate(w, r)
	if err != nil {
		h.fail(w, opCreatePerson, start, err)
		return
	}

	var req api.CreatePersonRequest
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		h.fail(w, opCreatePerson, start, fmt.Errorf("%w: %v", api.ErrInvalidRequest, err))
		return
	}
	if err := api.ValidateRequest(req); err != nil {
		h.fail(w, opCreatePerson, start, err)
		return
	}
	payment, err := req.Payment.ToPayment()
	if err != nil {
		h.fail(w, opCreatePerson, start, err)
		return
	}

	if err := h.registry.ValidateAge(req.Age); err != nil {
		h.fail(w, opCreatePerson, start, err)
		return
	}

	ctx := r.Context()
	collected, err := h.ledger.Collect(ctx, caller, payment)
	if err != nil {
		h.log.Info("Payment not collected", "caller", caller.Hex(), "err", err)
		h.fail(w, opCreatePerson, start, err)
		return
	}

	person, err := h.registry.CreatePerson(ctx, caller, req.Name, req.Age, req.Height, collected)
	if err != nil {
		if refundErr := h.refund(ctx, caller, collected); refundErr != nil {
			err = errors.Join(err, refundErr)
		}
		h.fail(w, opCreatePerson, start, err)
		return
	}

	h.succeed(w, opCreatePerson, start, api.CreatePersonResponse{
		PersonResponse: api.NewPersonResponse(caller, person),
		Paid:           collected.String(),
	})
}

// HandleGetPerson returns the caller's record, or the empty record.
//
// URL format: GET /api/people/me
// Response: api.PersonResponse
func (h *Handler) HandleGetPerson(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	caller, _, err := h.authenticate(w, r)
	if err != nil {
		h.fail(w, opGetPerson, start, err)
		return
	}

	h.succeed(w, opGetPerson, start, api.NewPersonResponse(caller, h.registry.GetPerson(caller)))
}

// HandleDeletePerson clears a record. Owner only.
//
// URL format: DELETE /api/people/{identity}
func (h *Handler) HandleDeletePerson(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	caller, _, err := h.authenticate(w, r)
	if err != nil {
		h.fail(w, opDeletePerson, start, err)
		return
	}

	target, err := interfaces.NewIdentityFromHex(chi.URLParam(r, "identity"))
	if err != nil {
		h.fail(w, opDeletePerson, start, fmt.Errorf("%w: %v", api.ErrInvalidRequest, err))
		return
	}

	if err := h.registry.DeletePerson(r.Context(), caller, target); err != nil {
		h.fail(w, opDeletePerson, start, err)
		return
	}

	h.observe(opDeletePerson, metrics.ResultOK, start)
	w.WriteHeader(http.StatusNoContent)
}

// HandleWithdrawAll pays the balance out to the owner. Owner only.
//
// URL format: POST /api/withdraw
// Response: api.WithdrawResponse
func (h *Handler) HandleWithdrawAll(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	caller, _, err := h.authenticate(w, r)
	if err != nil {
		h.fail(w, opWithdrawAll, start, err)
		return
	}

	amount, err := h.registry.WithdrawAll(r.Context(), caller)
	if err != nil {
		h.fail(w, opWithdrawAll, start, err)
		return
	}

	h.succeed(w, opWithdrawAll, start, api.WithdrawResponse{Amount: amount.String()})
}

// HandleRegistryInfo returns the public registry parameters.
//
// URL format: GET /api/public/registry
// Response: api.RegistryInfoResponse
func (h *Handler) HandleRegistryInfo(w http.ResponseWriter, r *http.Request) {
	params := h.registry.Params()
	resp := api.RegistryInfoResponse{
		Owner:     h.registry.Owner().Hex(),
		Balance:   h.registry.Balance().String(),
		MinFee:    params.MinFee.String(),
		SeniorAge: params.SeniorAge,
		MaxAge:    params.MaxAge,
		Records:   h.registry.Count(),
		Ledger:    h.ledger.Name(),
	}
	if onchain, ok := h.ledger.(*ledger.OnchainLedger); ok {
		resp.Custody = onchain.Custody().Hex()
	}

	writeJSON(w, http.StatusOK, resp)
}

// authenticate reads the body and returns the identity that signed the request.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (interfaces.Identity, []byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, api.MaxBodySize))
	if err != nil {
		return interfaces.Identity{}, nil, &RequestError{
			StatusCode: http.StatusRequestEntityTooLarge,
			Err:        fmt.Errorf("%w: %v", api.ErrInvalidRequest, err),
		}
	}

	caller, err := h.auth.Authenticate(r, body)
	if err != nil {
		h.log.Debug("Authentication failed", "path", r.URL.Path, "err", err)
		return interfaces.Identity{}, nil, err
	}
	return caller, body, nil
}

func (h *Handler) refund(ctx context.Context, caller interfaces.Identity, amount *big.Int) error {
	if err := h.ledger.Payout(context.WithoutCancel(ctx), caller, amount); err != nil {
		h.log.Error("Failed to refund rejected payment",
			"caller", caller.Hex(),
			"amount", amount.String(),
			"err", err)
		return fmt.Errorf("%w: refund of %s failed: %v", interfaces.ErrTransferFailed, amount.String(), err)
	}
	h.log.Info("Refunded rejected payment", "caller", caller.Hex(), "amount", amount.String())
	return nil
}

func (h *Handler) succeed(w http.ResponseWriter, operation string, start time.Time, resp interface{}) {
	h.observe(operation, metrics.ResultOK, start)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) fail(w http.ResponseWriter, operation string, start time.Time, err error) {
	status, code := api.StatusForError(err)
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		status = reqErr.StatusCode
	}

	result := metrics.ResultRejected
	if status >= http.StatusInternalServerError {
		result = metrics.ResultError
		h.log.Error("Request failed", "operation", operation, "code", code, "err", err)
	}
	h.observe(operation, result, start)

	writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Code: code})
}

func (h *Handler) observe(operation, result string, start time.Time) {
	h.metrics.ObserveOperation(operation, result, start)
	if operation != opGetPerson {
		h.updateStateMetrics()
	}
}

func (h *Handler) updateStateMetrics() {
	h.metrics.SetState(h.registry.Balance(), h.registry.Count())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
