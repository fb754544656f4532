package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrContentNotFound is returned when requested content cannot be found in the storage backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// Well-known state keys.
const (
	// RegistryStateKey holds the registry snapshot.
	RegistryStateKey = "registry-state"

	// PaymentClaimsKey holds the set of payment transactions already collected.
	PaymentClaimsKey = "payment-claims"
)

// StateStoreLocation represents URI for a state store backend.
type StateStoreLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStateStoreLocation creates a new storage location from a URI string with validation.
func NewStateStoreLocation(uri string) (StateStoreLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StateStoreLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "file", "s3", "ipfs", "vault", "redis", "rediss", "postgres", "postgresql":
	default:
		return StateStoreLocation{}, fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StateStoreLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StateStoreLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StateStoreLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StateStoreLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

// StateStore provides keyed blob storage for registry state.
type StateStore interface {
	// Load retrieves the value stored under key.
	// Returns ErrContentNotFound if nothing was stored yet.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save replaces the value stored under key.
	Save(ctx context.Context, key string, data []byte) error

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// StateStoreFactory creates state stores.
type StateStoreFactory interface {
	// StorageBackendFor creates backend from URI.
	// Supports file://, s3://, ipfs://, vault://, redis://, postgres://
	StorageBackendFor(location StateStoreLocation) (StateStore, error)

	// CreateMultiBackend creates aggregated storage backend.
	CreateMultiBackend(locations []StateStoreLocation) (StateStore, error)
}
