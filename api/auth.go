package api

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/ruteri/people-registry/interfaces"
)

var (
	// ErrMissingSignature is returned when the signing headers are absent.
	ErrMissingSignature = errors.New("missing request signature")

	// ErrInvalidSignature is returned when the signature cannot be decoded or recovered,
	// or does not match the declared caller.
	ErrInvalidSignature = errors.New("invalid request signature")

	// ErrRequestExpired is returned when the signing time is outside the accepted window.
	ErrRequestExpired = errors.New("request signature expired")

	// ErrReplayedRequest is returned when a signed request is presented twice.
	ErrReplayedRequest = errors.New("request already processed")
)

// RequestDigest returns the EIP-191 personal-message hash a client signs for a request:
//
//	TextHash(keccak256(METHOD "\n" PATH "\n" TIMESTAMP "\n" NONCE "\n" keccak256(body)))
func RequestDigest(method, path, timestamp, nonce string, body []byte) common.Hash {
	msg := make([]byte, 0, len(method)+len(path)+len(timestamp)+len(nonce)+4+common.HashLength)
	msg = append(msg, method...)
	msg = append(msg, '\n')
	msg = append(msg, path...)
	msg = append(msg, '\n')
	msg = append(msg, timestamp...)
	msg = append(msg, '\n')
	msg = append(msg, nonce...)
	msg = append(msg, '\n')
	msg = append(msg, crypto.Keccak256(body)...)

	return common.BytesToHash(accounts.TextHash(crypto.Keccak256(msg)))
}

// SignRequest signs req with key at time now and sets the signing headers.
// body must be the exact bytes sent as the request body. Every call uses a
// fresh random nonce.
func SignRequest(req *http.Request, body []byte, key *ecdsa.PrivateKey, now time.Time) error {
	timestamp := strconv.FormatInt(now.UnixMilli(), 10)
	nonce := uuid.NewString()
	digest := RequestDigest(req.Method, req.URL.EscapedPath(), timestamp, nonce, body)

	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	req.Header.Set(TimestampHeader, timestamp)
	req.Header.Set(NonceHeader, nonce)
	req.Header.Set(SignatureHeader, hexutil.Encode(sig))
	req.Header.Set(CallerHeader, crypto.PubkeyToAddress(key.PublicKey).Hex())
	return nil
}

// SignedRequest is the authenticated part of a request.
type SignedRequest struct {
	Signer    interfaces.Identity
	Timestamp time.Time
	Nonce     string
	Digest    common.Hash
}

// RecoverRequestSigner recovers the identity that signed r.
// body must be the request body already read from r.
// Both 0/1 and 27/28 recovery ids are accepted; high-S signatures are rejected.
func RecoverRequestSigner(r *http.Request, body []byte) (*SignedRequest, error) {
	timestamp := r.Header.Get(TimestampHeader)
	nonce := r.Header.Get(NonceHeader)
	sigHex := r.Header.Get(SignatureHeader)
	if timestamp == "" || nonce == "" || sigHex == "" {
		return nil, ErrMissingSignature
	}
	if len(nonce) > MaxNonceLength {
		return nil, fmt.Errorf("%w: nonce longer than %d bytes", ErrInvalidSignature, MaxNonceLength)
	}

	millis, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp: %v", ErrInvalidSignature, err)
	}

	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("%w: signature must be %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	rVal := new(big.Int).SetBytes(sig[:32])
	sVal := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[crypto.RecoveryIDOffset], rVal, sVal, true) {
		return nil, fmt.Errorf("%w: signature values out of range", ErrInvalidSignature)
	}

	digest := RequestDigest(r.Method, r.URL.EscapedPath(), timestamp, nonce, body)
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	signer := crypto.PubkeyToAddress(*pub)

	if declared := r.Header.Get(CallerHeader); declared != "" {
		if !common.IsHexAddress(declared) || common.HexToAddress(declared) != signer {
			return nil, fmt.Errorf("%w: signed by %s, declared caller %s", ErrInvalidSignature, signer.Hex(), declared)
		}
	}

	return &SignedRequest{
		Signer:    signer,
		Timestamp: time.UnixMilli(millis),
		Nonce:     nonce,
		Digest:    digest,
	}, nil
}
