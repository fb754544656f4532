package httpserver

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ruteri/people-registry/api"
	"github.com/ruteri/people-registry/interfaces"
	"github.com/ruteri/people-registry/ledger"
	"github.com/ruteri/people-registry/registry"
	"github.com/ruteri/people-registry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var oneEther = big.NewInt(params.Ether)

type testEnv struct {
	server   *Server
	registry *registry.Registry
	ledger   *ledger.MemoryLedger
	owner    *ecdsa.PrivateKey
	alice    *ecdsa.PrivateKey
}

func newTestKey(t *testing.T) *ecdsa.PrivateKey {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func identityOf(key *ecdsa.PrivateKey) interfaces.Identity {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// newTestEnv wires a server over a memory ledger in which alice holds 10 ether.
func newTestEnv(t *testing.T, l interfaces.Ledger) *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		owner: newTestKey(t),
		alice: newTestKey(t),
	}

	mem := ledger.NewMemoryLedger(logger)
	mem.Deposit(identityOf(env.alice), new(big.Int).Mul(big.NewInt(10), oneEther))
	env.ledger = mem
	if l == nil {
		l = mem
	}

	reg, err := registry.New(registry.Config{
		Owner:    identityOf(env.owner),
		Params:   registry.DefaultParams(),
		Treasury: l,
		Log:      logger,
	})
	require.NoError(t, err)
	env.registry = reg

	handler := NewHandler(reg, l, NewAuthenticator(time.Minute, logger), logger)
	env.server, err = New(&HTTPServerConfig{
		Log:                      logger,
		GracefulShutdownDuration: time.Second,
	}, handler)
	require.NoError(t, err)

	return env
}

func (e *testEnv) do(t *testing.T, key *ecdsa.PrivateKey, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if key != nil {
		require.NoError(t, api.SignRequest(req, body, key, time.Now()))
	}
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func createBody(t *testing.T, name string, age uint32, amount string) []byte {
	body, err := json.Marshal(api.CreatePersonRequest{
		Name:    name,
		Age:     age,
		Height:  170,
		Payment: api.PaymentRequest{Amount: amount},
	})
	require.NoError(t, err)
	return body
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) api.ErrorResponse {
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestHandleCreatePerson_Success(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := identityOf(env.alice)

	rr := env.do(t, env.alice, http.MethodPost, "/api/people", createBody(t, "Sammy", 70, "1ether"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp api.CreatePersonResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, alice.Hex(), resp.Identity)
	assert.Equal(t, "Sammy", resp.Name)
	assert.True(t, resp.IsSenior)
	assert.True(t, resp.Exists)
	assert.Equal(t, oneEther.String(), resp.Paid)

	assert.Equal(t, 0, oneEther.Cmp(env.registry.Balance()))
	assert.Equal(t, 0, oneEther.Cmp(env.ledger.Custody()))
	assert.Equal(t, "Sammy", env.registry.GetPerson(alice).Name)
}

func TestHandleCreatePerson_InsufficientPaymentIsRefunded(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := identityOf(env.alice)
	before := env.ledger.BalanceOf(alice)

	rr := env.do(t, env.alice, http.MethodPost, "/api/people", createBody(t, "Sammy", 70, "1000"))
	assert.Equal(t, http.StatusPaymentRequired, rr.Code)
	assert.Equal(t, "insufficient_payment", decodeError(t, rr).Code)

	assert.Equal(t, 0, before.Cmp(env.ledger.BalanceOf(alice)))
	assert.Equal(t, 0, env.ledger.Custody().Sign())
	assert.Equal(t, 0, env.registry.Count())
}

func TestHandleCreatePerson_InvalidAgeCollectsNothing(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := identityOf(env.alice)
	before := env.ledger.BalanceOf(alice)

	rr := env.do(t, env.alice, http.MethodPost, "/api/people", createBody(t, "Sammy", 151, "1ether"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_age", decodeError(t, rr).Code)

	assert.Equal(t, 0, before.Cmp(env.ledger.BalanceOf(alice)))
	assert.Equal(t, 0, env.ledger.Custody().Sign())
}

func TestHandleCreatePerson_PayerWithoutFunds(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, newTestKey(t), http.MethodPost, "/api/people", createBody(t, "Bob", 30, "1ether"))
	assert.Equal(t, http.StatusPaymentRequired, rr.Code)
	assert.Equal(t, "insufficient_funds", decodeError(t, rr).Code)
	assert.Equal(t, 0, env.registry.Count())
}

func TestHandleCreatePerson_BadRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := map[string][]byte{
		"not json":       []byte("{"),
		"unknown field":  []byte(`{"name":"Sammy","payment":{"amount":"1ether"},"admin":true}`),
		"no payment":     []byte(`{"name":"Sammy","age":30}`),
		"invalid amount": []byte(`{"name":"Sammy","payment":{"amount":"lots"}}`),
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rr := env.do(t, env.alice, http.MethodPost, "/api/people", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "invalid_request", decodeError(t, rr).Code)
		})
	}
	assert.Equal(t, 0, env.ledger.Custody().Sign())
}

type failingPayoutLedger struct {
	*ledger.MemoryLedger
}

func (l failingPayoutLedger) Payout(ctx context.Context, to interfaces.Identity, amount *big.Int) error {
	return errors.New("rpc down")
}

func TestHandleCreatePerson_RefundFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := ledger.NewMemoryLedger(logger)
	env := newTestEnv(t, failingPayoutLedger{mem})
	mem.Deposit(identityOf(env.alice), oneEther)

	rr := env.do(t, env.alice, http.MethodPost, "/api/people", createBody(t, "Sammy", 70, "1000"))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "transfer_failed", decodeError(t, rr).Code)
	assert.Equal(t, 0, big.NewInt(1000).Cmp(mem.Custody()))
}

func TestHandleGetPerson(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, env.alice, http.MethodGet, "/api/people/me", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp api.PersonResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Exists)
	assert.Equal(t, identityOf(env.alice).Hex(), resp.Identity)

	rr = env.do(t, env.alice, http.MethodPost, "/api/people", createBody(t, "Sammy", 30, "1ether"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, env.alice, http.MethodGet, "/api/people/me", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Exists)
	assert.False(t, resp.IsSenior)
	assert.Equal(t, uint32(30), resp.Age)
}

func TestHandleDeletePerson(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := identityOf(env.alice)

	rr := env.do(t, env.alice, http.MethodPost, "/api/people", createBody(t, "Sammy", 30, "1ether"))
	require.Equal(t, http.StatusOK, rr.Code)

	path := "/api/people/" + alice.Hex()

	rr = env.do(t, env.alice, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rr).Code)
	assert.True(t, env.registry.GetPerson(alice).Exists())

	rr = env.do(t, env.owner, http.MethodDelete, "/api/people/not-an-address", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, env.owner, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.False(t, env.registry.GetPerson(alice).Exists())

	// Fees stay in custody
	assert.Equal(t, 0, oneEther.Cmp(env.registry.Balance()))
}

func TestHandleWithdrawAll(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := identityOf(env.owner)

	for _, amount := range []string{"1ether", "2ether"} {
		rr := env.do(t, env.alice, http.MethodPost, "/api/people", createBody(t, "Sammy", 30, amount))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := env.do(t, env.alice, http.MethodPost, "/api/withdraw", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, env.owner, http.MethodPost, "/api/withdraw", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp api.WithdrawResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	three := new(big.Int).Mul(big.NewInt(3), oneEther)
	assert.Equal(t, three.String(), resp.Amount)
	assert.Equal(t, 0, three.Cmp(env.ledger.BalanceOf(owner)))
	assert.Equal(t, 0, env.registry.Balance().Sign())

	// Nothing left to withdraw
	rr = env.do(t, env.owner, http.MethodPost, "/api/withdraw", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "0", resp.Amount)
}

func TestHandleRegistryInfo(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, nil, http.MethodGet, "/api/public/registry", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp api.RegistryInfoResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, identityOf(env.owner).Hex(), resp.Owner)
	assert.Equal(t, oneEther.String(), resp.MinFee)
	assert.Equal(t, uint32(65), resp.SeniorAge)
	assert.Equal(t, uint32(150), resp.MaxAge)
	assert.Equal(t, "0", resp.Balance)
	assert.Equal(t, "memory", resp.Ledger)
	assert.Empty(t, resp.Custody)
}

func TestUnsignedRequestsRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/people"},
		{http.MethodGet, "/api/people/me"},
		{http.MethodDelete, "/api/people/" + identityOf(env.alice).Hex()},
		{http.MethodPost, "/api/withdraw"},
	} {
		rr := env.do(t, nil, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, tc.path)
		assert.Equal(t, "missing_signature", decodeError(t, rr).Code, tc.path)
	}
}

func TestReplayedRequestRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	body := createBody(t, "Sammy", 30, "1ether")
	req := httptest.NewRequest(http.MethodPost, "/api/people", bytes.NewReader(body))
	require.NoError(t, api.SignRequest(req, body, env.alice, time.Now()))
	headers := req.Header.Clone()

	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	replay := httptest.NewRequest(http.MethodPost, "/api/people", bytes.NewReader(body))
	replay.Header = headers
	rr = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, replay)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "replayed_request", decodeError(t, rr).Code)

	// Only the first request paid
	assert.Equal(t, 0, oneEther.Cmp(env.registry.Balance()))
}

func decodeHealth(t *testing.T, rr *httptest.ResponseRecorder) healthStatus {
	var status healthStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	return status
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.Equal(t, http.StatusOK, env.do(t, nil, http.MethodGet, "/livez", nil).Code)

	require.Equal(t, http.StatusOK, env.do(t, env.alice, http.MethodPost, "/api/people", createBody(t, "Alice", 30, "1ether")).Code)

	rr := env.do(t, nil, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, healthStatus{Status: "ready", Records: 1, Ledger: "memory", Storage: "none"}, decodeHealth(t, rr))

	rr = env.do(t, nil, http.MethodGet, "/drain", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "draining", decodeHealth(t, rr).Status)
	assert.Equal(t, "already draining", decodeHealth(t, env.do(t, nil, http.MethodGet, "/drain", nil)).Status)

	rr = env.do(t, nil, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "draining", decodeHealth(t, rr).Status)

	assert.Equal(t, http.StatusOK, env.do(t, nil, http.MethodGet, "/undrain", nil).Code)
	assert.Equal(t, "already ready", decodeHealth(t, env.do(t, nil, http.MethodGet, "/undrain", nil)).Status)
	assert.Equal(t, http.StatusOK, env.do(t, nil, http.MethodGet, "/readyz", nil).Code)

	env.server.drainMu.Lock()
	assert.Nil(t, env.server.drainTimer, "undrain cancels the drain timer")
	env.server.drainMu.Unlock()
}

func TestReadiness_StoreUnavailable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := filepath.Join(t.TempDir(), "state")
	store, err := storage.NewFileBackend(dir, logger)
	require.NoError(t, err)

	l := ledger.NewMemoryLedger(logger)
	reg, err := registry.New(registry.Config{
		Owner:    identityOf(newTestKey(t)),
		Params:   registry.DefaultParams(),
		Treasury: l,
		Store:    store,
		Log:      logger,
	})
	require.NoError(t, err)
	server, err := New(&HTTPServerConfig{Log: logger}, NewHandler(reg, l, NewAuthenticator(time.Minute, logger), logger))
	require.NoError(t, err)

	readyz := func() *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		return rr
	}

	rr := readyz()
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, store.Name(), decodeHealth(t, rr).Storage)

	require.NoError(t, os.RemoveAll(dir))
	rr = readyz()
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "state storage unavailable", decodeHealth(t, rr).Status)
}
