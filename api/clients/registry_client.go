package clients

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/people-registry/api"
	"github.com/ruteri/people-registry/interfaces"
)

// APIError is a non-2xx response from the registry server.
// It unwraps to the sentinel error registered for its code, so callers can
// use errors.Is(err, interfaces.ErrUnauthorized) and similar.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("registry returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return api.ErrorForCode(e.Code)
}

// RegistryClient is an HTTP client for the people registry API.
// Every authenticated request is signed with the client's key.
type RegistryClient struct {
	baseURL    string
	key        *ecdsa.PrivateKey
	httpClient *http.Client
	now        func() time.Time
}

// NewRegistryClient creates a client for the server at baseURL (e.g. "http://localhost:8080").
// The timeout defaults to 30 seconds.
func NewRegistryClient(baseURL string, key *ecdsa.PrivateKey, timeout ...time.Duration) *RegistryClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &RegistryClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		key:        key,
		httpClient: &http.Client{Timeout: clientTimeout},
		now:        time.Now,
	}
}

// Identity returns the address requests are signed as.
func (c *RegistryClient) Identity() interfaces.Identity {
	return crypto.PubkeyToAddress(c.key.PublicKey)
}

// CreatePerson registers the caller's record, paying with payment.
func (c *RegistryClient) CreatePerson(ctx context.Context, req api.CreatePersonRequest) (*api.CreatePersonResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	var resp api.CreatePersonResponse
	if err := c.do(ctx, http.MethodPost, "/api/people", body, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPerson returns the caller's record. Exists is false when none is stored.
func (c *RegistryClient) GetPerson(ctx context.Context) (*api.PersonResponse, error) {
	var resp api.PersonResponse
	if err := c.do(ctx, http.MethodGet, "/api/people/me", nil, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeletePerson clears target's record. Only the owner's key is accepted.
func (c *RegistryClient) DeletePerson(ctx context.Context, target common.Address) error {
	return c.do(ctx, http.MethodDelete, "/api/people/"+target.Hex(), nil, true, nil)
}

// WithdrawAll transfers the registry balance to the owner. Only the owner's key is accepted.
func (c *RegistryClient) WithdrawAll(ctx context.Context) (*api.WithdrawResponse, error) {
	var resp api.WithdrawResponse
	if err := c.do(ctx, http.MethodPost, "/api/withdraw", nil, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RegistryInfo returns the public registry parameters and totals.
func (c *RegistryClient) RegistryInfo(ctx context.Context) (*api.RegistryInfoResponse, error) {
	var resp api.RegistryInfoResponse
	if err := c.do(ctx, http.MethodGet, "/api/public/registry", nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RegistryClient) do(ctx context.Context, method, path string, body []byte, sign bool, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if sign {
		if err := api.SignRequest(req, body, c.key, c.now()); err != nil {
			return err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s request failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, api.MaxBodySize))
		var errResp api.ErrorResponse
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr != nil || errResp.Code == "" {
			return &APIError{StatusCode: resp.StatusCode, Code: api.ErrorCodeInternal, Message: strings.TrimSpace(string(respBody))}
		}
		return &APIError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse %s %s response: %w", method, path, err)
	}
	return nil
}
