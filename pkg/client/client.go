// Package client implements a minimal SAGE client SDK: the debug
// introspection calls, dev-only registration, the HPKE handshake, and
// encrypted message exchange, all driven over plain net/http. Grounded on
// sdk/rust/sage-client/src/client.rs, translated from its async reqwest
// calls to Go's net/http plus this module's own envelope/handshake/session
// packages in place of the Rust crate's local equivalents.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sage-x-project/sage/pkg/crypto"
	"github.com/sage-x-project/sage/pkg/envelope"
	"github.com/sage-x-project/sage/pkg/handshake"
	"github.com/sage-x-project/sage/pkg/session"

	"github.com/sage-x-project/sage/resilience"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the server's base URL, e.g. "http://localhost:8080".
	BaseURL string

	// Timeout bounds each individual HTTP request; defaults to 30s.
	Timeout time.Duration

	// MaxSessions bounds how many sessions this client tracks locally;
	// defaults to 100, mirroring the Rust SDK's ClientConfig default.
	MaxSessions int

	// RetryConfig governs retries of the transport call itself (DNS,
	// connection refused, 5xx). It must never be used to wrap an HPKE
	// Context's Seal: a retried Seal would silently advance the sequence
	// counter for a ciphertext that may never reach the peer. Defaults to
	// resilience.DefaultRetryConfig().
	RetryConfig *resilience.RetryConfig

	// CircuitBreakerMaxFailures is the number of consecutive transport
	// failures, across calls, before the breaker opens and short-circuits
	// further requests without hitting the network. Defaults to 5.
	CircuitBreakerMaxFailures int

	// CircuitBreakerResetTimeout bounds how long the breaker stays open
	// before allowing a single half-open probe request through. Defaults
	// to 30s.
	CircuitBreakerResetTimeout time.Duration
}

// Client is a SAGE client: a signing identity, a KEM key, and the set of
// sessions it has established with servers it has handshaken with.
type Client struct {
	baseURL     string
	http        *http.Client
	retryConfig *resilience.RetryConfig
	breaker     *resilience.CircuitBreaker

	identityKey crypto.KeyPair
	kemKey      crypto.KeyPair
	clientDID   string

	sessions *session.Manager
}

// New constructs a Client, generating a fresh Ed25519 identity key and
// X25519 KEM key pair, mirroring the Rust SDK's Client::new/initialize.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxSessions := config.MaxSessions
	if maxSessions <= 0 {
		maxSessions = 100
	}
	retryConfig := config.RetryConfig
	if retryConfig == nil {
		retryConfig = resilience.DefaultRetryConfig()
	}
	maxFailures := config.CircuitBreakerMaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	resetTimeout := config.CircuitBreakerResetTimeout
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}

	identityKey, err := crypto.GenerateEd25519Keypair()
	if err != nil {
		return nil, fmt.Errorf("generate identity key: %w", err)
	}
	kemKey, err := crypto.GenerateX25519Keypair()
	if err != nil {
		return nil, fmt.Errorf("generate KEM key: %w", err)
	}

	return &Client{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		http:        &http.Client{Timeout: timeout},
		retryConfig: retryConfig,
		breaker:     resilience.NewCircuitBreaker(maxFailures, resetTimeout),
		identityKey: *identityKey,
		kemKey:      *kemKey,
		sessions:    session.NewManager(maxSessions),
	}, nil
}

// IdentityPublicKey returns the client's Ed25519 identity public key.
func (c *Client) IdentityPublicKey() []byte {
	return append([]byte(nil), c.identityKey.Public[:]...)
}

// KEMPublicKey returns the client's X25519 KEM public key.
func (c *Client) KEMPublicKey() []byte {
	return append([]byte(nil), c.kemKey.Public[:]...)
}

// ActiveSessions returns the number of live sessions this client tracks.
func (c *Client) ActiveSessions() int {
	return c.sessions.Count()
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.doWithRetry(ctx, http.MethodGet, path, nil, nil)
}

func (c *Client) post(ctx context.Context, path string, body []byte, headers map[string]string) ([]byte, error) {
	return c.doWithRetry(ctx, http.MethodPost, path, body, headers)
}

// doWithRetry issues one logical request, retrying transient transport and
// 5xx failures per c.retryConfig. Every underlying attempt is additionally
// gated by c.breaker: once CircuitBreakerMaxFailures consecutive attempts
// (across calls, not just within this retry loop) have failed, the breaker
// opens and short-circuits further attempts with ErrCircuitOpen instead of
// hitting a server that is already known to be down, per spec.md §5's
// resource/timeout model.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte, headers map[string]string) ([]byte, error) {
	var respBody []byte
	retryConfig := *c.retryConfig
	baseRetryIf := retryConfig.RetryIf
	retryConfig.RetryIf = func(err error) bool {
		if _, clientErr := err.(resilience.ErrMaxRetriesExceeded); clientErr {
			return false
		}
		return baseRetryIf == nil || baseRetryIf(err)
	}
	err := resilience.RetryWithConfig(ctx, &retryConfig, func() error {
		return c.breaker.Execute(func() error {
			var reqBody io.Reader
			if body != nil {
				reqBody = bytes.NewReader(body)
			}
			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
			if err != nil {
				return err
			}
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			for k, v := range headers {
				req.Header.Set(k, v)
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode >= 500 {
				// Transient server-side failure: retryable.
				return fmt.Errorf("server error %d: %s", resp.StatusCode, string(data))
			}
			if resp.StatusCode >= 400 {
				// Client error: not retryable, but still reported to the
				// caller with the server's response body.
				return resilience.ErrMaxRetriesExceeded{
					Attempts: 1,
					LastErr:  fmt.Errorf("request failed %d: %s", resp.StatusCode, string(data)),
				}
			}
			respBody = data
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return respBody, nil
}

// GetServerKEMKey fetches the server's X25519 KEM public key.
func (c *Client) GetServerKEMKey(ctx context.Context) ([]byte, error) {
	data, err := c.get(ctx, "/debug/kem-pub")
	if err != nil {
		return nil, err
	}
	var resp struct {
		KEMPublicKey string `json:"kem_public_key"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode kem-pub response: %w", err)
	}
	return base64.StdEncoding.DecodeString(resp.KEMPublicKey)
}

// GetServerDID fetches the server's own DID.
func (c *Client) GetServerDID(ctx context.Context) (string, error) {
	data, err := c.get(ctx, "/debug/server-did")
	if err != nil {
		return "", err
	}
	var resp struct {
		DID string `json:"did"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode server-did response: %w", err)
	}
	return resp.DID, nil
}

// HealthStatus mirrors the server's /debug/health response shape.
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Sessions  *struct {
		Active int `json:"active"`
		Total  int `json:"total"`
	} `json:"sessions,omitempty"`
}

// HealthCheck fetches the server's health status.
func (c *Client) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	data, err := c.get(ctx, "/debug/health")
	if err != nil {
		return nil, err
	}
	var status HealthStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &status, nil
}

// registerAgentRequest mirrors internal/server's dev-only registration
// wire shape.
type registerAgentRequest struct {
	DID          string     `json:"did"`
	Owner        string     `json:"owner"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Endpoint     string     `json:"endpoint"`
	Capabilities string     `json:"capabilities"`
	Keys         []keyEntry `json:"keys"`
}

type keyEntry struct {
	PublicKey string `json:"public_key"`
	KeyType   string `json:"key_type"`
	Signature string `json:"signature"`
}

// RegisterAgent registers this client as an agent via the server's
// dev-only /debug/register-agent endpoint, self-owned (owner == did), and
// records did as the client's own identity for subsequent handshakes.
// Development only: a production deployment registers agents through the
// real on-chain registry program, not this HTTP shortcut.
func (c *Client) RegisterAgent(ctx context.Context, did, name string) error {
	// Matches pkg/registry's unexported registrationMessage format:
	// owner_bytes || did_bytes with no separator.
	message := append([]byte(did), []byte(did)...)
	sig, err := crypto.Sign(message, c.identityKey.Private[:])
	if err != nil {
		return fmt.Errorf("sign registration message: %w", err)
	}

	req := registerAgentRequest{
		DID:          did,
		Owner:        did,
		Name:         name,
		Description:  "",
		Endpoint:     "",
		Capabilities: "[]",
		Keys: []keyEntry{{
			PublicKey: base64.StdEncoding.EncodeToString(c.identityKey.Public[:]),
			KeyType:   "ed25519",
			Signature: base64.StdEncoding.EncodeToString(sig),
		}},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode registration request: %w", err)
	}

	if _, err := c.post(ctx, "/debug/register-agent", body, nil); err != nil {
		return err
	}
	c.clientDID = did
	return nil
}

// sendMessageResponse mirrors internal/server's sendMessageResponse shape.
type sendMessageResponse struct {
	SessionID string `json:"session_id,omitempty"`
	Response  string `json:"response"`
}

// Handshake initiates an HPKE handshake with serverDID and returns the
// resulting session ID.
func (c *Client) Handshake(ctx context.Context, serverDID string) (string, error) {
	if c.clientDID == "" {
		return "", fmt.Errorf("client is not registered: call RegisterAgent first")
	}

	serverKemPub, err := c.GetServerKEMKey(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch server KEM key: %w", err)
	}

	req, err := handshake.BuildRequest(c.clientDID, serverDID, c.identityKey.Private[:], serverKemPub, time.Now())
	if err != nil {
		return "", fmt.Errorf("build handshake request: %w", err)
	}

	envBody, err := json.Marshal(req.Envelope)
	if err != nil {
		return "", fmt.Errorf("encode handshake envelope: %w", err)
	}

	respBody, err := c.post(ctx, "/v1/a2a:sendMessage", envBody, nil)
	if err != nil {
		return "", fmt.Errorf("send handshake: %w", err)
	}

	var resp sendMessageResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decode handshake response: %w", err)
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("server did not return a session id")
	}

	sess := session.New(resp.SessionID, c.clientDID, serverDID, req.Context, time.Hour)
	if err := c.sessions.Add(sess); err != nil {
		return "", err
	}
	return sess.ID, nil
}

// SendMessage encrypts message under sessionID's established context,
// signs the envelope, and returns the decrypted response payload.
func (c *Client) SendMessage(ctx context.Context, sessionID string, message []byte) ([]byte, error) {
	sess, err := c.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	ciphertext, err := sess.Encrypt(message)
	if err != nil {
		return nil, err
	}

	env, err := envelope.Sign(sess.ClientDID, sess.ServerDID, ciphertext, time.Now().Unix(), c.identityKey.Private[:])
	if err != nil {
		return nil, fmt.Errorf("sign message envelope: %w", err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode message envelope: %w", err)
	}

	respBody, err := c.post(ctx, "/v1/a2a:sendMessage", body, map[string]string{"X-Session-ID": sessionID})
	if err != nil {
		return nil, err
	}

	var resp sendMessageResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode message response: %w", err)
	}
	responseCiphertext, err := base64.StdEncoding.DecodeString(resp.Response)
	if err != nil {
		return nil, fmt.Errorf("decode response payload: %w", err)
	}

	// Sessions are reused across calls; re-fetch in case a concurrent
	// caller tore it down between Encrypt above and now.
	sess, err = c.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Decrypt(responseCiphertext)
}
