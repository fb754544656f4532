package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/people-registry/api"
	"github.com/ruteri/people-registry/interfaces"
)

// DefaultAuthWindow is the accepted clock skew between client and server.
const DefaultAuthWindow = 5 * time.Minute

// Authenticator derives the caller identity of a request from its signature.
//
// A signature is accepted when its timestamp is within the window of the
// server clock and the same signer has not presented its digest before.
// Accepted requests are remembered until they fall out of the window.
type Authenticator struct {
	window time.Duration
	now    func() time.Time
	log    *slog.Logger

	mu        sync.Mutex
	seen      map[replayKey]time.Time // forget after
	lastPrune time.Time
}

// replayKey scopes a digest to its signer, so one identity cannot use up
// another identity's request.
type replayKey struct {
	signer interfaces.Identity
	digest common.Hash
}

// NewAuthenticator creates an authenticator. A zero window uses DefaultAuthWindow.
func NewAuthenticator(window time.Duration, log *slog.Logger) *Authenticator {
	if window <= 0 {
		window = DefaultAuthWindow
	}
	return &Authenticator{
		window: window,
		now:    time.Now,
		log:    log,
		seen:   make(map[replayKey]time.Time),
	}
}

// Authenticate returns the identity that signed r.
// body is the already-read request body.
func (a *Authenticator) Authenticate(r *http.Request, body []byte) (interfaces.Identity, error) {
	signed, err := api.RecoverRequestSigner(r, body)
	if err != nil {
		return interfaces.Identity{}, err
	}

	now := a.now()
	skew := now.Sub(signed.Timestamp)
	if skew < -a.window || skew > a.window {
		return interfaces.Identity{}, fmt.Errorf("%w: signed at %s, server time %s",
			api.ErrRequestExpired, signed.Timestamp.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.pruneLocked(now)
	key := replayKey{signer: signed.Signer, digest: signed.Digest}
	if _, replayed := a.seen[key]; replayed {
		a.log.Warn("Replayed request rejected", "signer", signed.Signer.Hex(), "nonce", signed.Nonce, "path", r.URL.Path)
		return interfaces.Identity{}, api.ErrReplayedRequest
	}
	a.seen[key] = signed.Timestamp.Add(a.window)

	return signed.Signer, nil
}

func (a *Authenticator) pruneLocked(now time.Time) {
	if now.Sub(a.lastPrune) < a.window/4 {
		return
	}
	for key, forgetAfter := range a.seen {
		if now.After(forgetAfter) {
			delete(a.seen, key)
		}
	}
	a.lastPrune = now
}
