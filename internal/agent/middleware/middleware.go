// Package middleware provides high-level abstractions for HTTP
// middleware. It wraps pkg/envelope's signed-envelope verification against
// the DID resolver to provide a simple authentication check HTTP handlers
// can call before trusting a request's claimed sender.
package middleware

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sage-x-project/sage/pkg/envelope"

	"github.com/sage-x-project/sage/internal/agent/did"
)

// DIDAuth provides DID-based authentication for signed request envelopes.
// It resolves the envelope's claimed sender against the registry and
// verifies the Ed25519 signature over the envelope's signed string.
type DIDAuth struct {
	resolver        *did.Resolver
	optional        bool
	freshnessWindow time.Duration
}

// Config contains configuration for DID authentication middleware.
type Config struct {
	// Resolver is the DID resolver to use for looking up sender identity
	// keys.
	Resolver *did.Resolver

	// Optional indicates whether authentication is optional.
	// If true, requests with a missing or invalid envelope are allowed
	// through with Verify reporting ok=false instead of an error.
	// If false, Verify returns an error on any failure.
	Optional bool

	// FreshnessWindow bounds how old an envelope's timestamp may be;
	// defaults to envelope.DefaultFreshnessWindow if zero.
	FreshnessWindow time.Duration
}

// NewDIDAuth creates a new DID authentication middleware.
//
// Parameters:
//   - config: Middleware configuration
//
// Returns:
//   - *DIDAuth: The initialized middleware
//   - error: Error if middleware cannot be created
//
// Example:
//
//	auth, err := middleware.NewDIDAuth(middleware.Config{
//	    Resolver: resolver,
//	    Optional: false,
//	})
func NewDIDAuth(config Config) (*DIDAuth, error) {
	if config.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	window := config.FreshnessWindow
	if window <= 0 {
		window = envelope.DefaultFreshnessWindow
	}

	return &DIDAuth{
		resolver:        config.Resolver,
		optional:        config.Optional,
		freshnessWindow: window,
	}, nil
}

// Verify resolves env's claimed sender and checks its signature and
// freshness. On success it returns the decoded plaintext message and
// ok=true. On failure: if Optional is set, it returns ok=false and a nil
// error instead of failing the request; otherwise it returns the error.
//
// Parameters:
//   - env: the inbound signed envelope
//
// Returns:
//   - []byte: the decoded plaintext message, nil if verification failed
//   - bool: whether the envelope verified
//   - error: non-nil only when Optional is false and verification failed
func (d *DIDAuth) Verify(env *envelope.Envelope) ([]byte, bool, error) {
	key, err := d.resolver.IdentityKey(env.SenderDID)
	if err != nil {
		if d.optional {
			return nil, false, nil
		}
		return nil, false, err
	}

	message, err := envelope.Verify(env, key, time.Now(), d.freshnessWindow)
	if err != nil {
		if d.optional {
			return nil, false, nil
		}
		return nil, false, err
	}
	return message, true, nil
}

// ComputeContentDigest creates an RFC 9421-compatible Content-Digest header
// value for an HTTP request/response body. SAGE envelopes carry their own
// signature over the full payload, but this digest is retained for
// endpoints that sit behind a standard HTTP signature layer.
//
// Parameters:
//   - body: The HTTP request/response body bytes
//
// Returns:
//   - string: The Content-Digest header value (format: "sha-256=:base64:")
//
// Example:
//
//	digest := middleware.ComputeContentDigest(requestBody)
//	// digest = "sha-256=:uU0nuZNNPgilLlLX2n2r+sSE7+N6U4DukIj3rOLvzek=:"
func ComputeContentDigest(body []byte) string {
	sum := sha256.Sum256(body)
	b64 := base64.StdEncoding.EncodeToString(sum[:])
	return fmt.Sprintf("sha-256=:%s:", b64)
}
