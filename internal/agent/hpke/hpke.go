// Package hpke provides high-level abstractions for HPKE (Hybrid Public
// Key Encryption) handshakes. It wires pkg/handshake (envelope + HPKE
// encapsulation) to pkg/session (the resulting encrypted channel) so that
// servers and clients deal only in DIDs, sessions, and plaintext.
package hpke

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sage-x-project/sage/pkg/envelope"
	"github.com/sage-x-project/sage/pkg/handshake"
	sagesession "github.com/sage-x-project/sage/pkg/session"

	agentdid "github.com/sage-x-project/sage/internal/agent/did"
	"github.com/sage-x-project/sage/internal/agent/keys"
	agentsession "github.com/sage-x-project/sage/internal/agent/session"
)

// handshakeAck is the wire response a server sends after accepting a
// handshake: the session ID the client must reuse on subsequent requests.
type handshakeAck struct {
	SessionID string `json:"session_id"`
	ServerDID string `json:"server_did"`
}

// Server accepts incoming HPKE handshakes: it verifies the signed envelope
// against the registry, decapsulates the HPKE payload, and opens a new
// session for the resulting shared context.
type Server struct {
	resolver       *agentdid.Resolver
	sessions       *agentsession.Manager
	kemKey         keys.KeyPair
	serverDID      string
	sessionMaxAge  time.Duration
	freshnessWindow time.Duration
}

// ServerConfig contains configuration for creating an HPKE server.
type ServerConfig struct {
	// KEMKey is the server's X25519 KEM key pair for HPKE decapsulation.
	KEMKey keys.KeyPair

	// DID is the server's own DID, used as the session's ServerDID.
	DID string

	// Resolver is the DID resolver for verifying client DIDs against the
	// registry.
	Resolver *agentdid.Resolver

	// SessionManager manages established HPKE sessions.
	SessionManager *agentsession.Manager

	// SessionMaxAge bounds how long an accepted session stays valid.
	SessionMaxAge time.Duration

	// FreshnessWindow bounds how old a handshake envelope's timestamp may
	// be; defaults to envelope.DefaultFreshnessWindow if zero.
	FreshnessWindow time.Duration
}

// NewServer creates a new HPKE server.
//
// Parameters:
//   - config: Server configuration
//
// Returns:
//   - *Server: The initialized HPKE server
//   - error: Error if required configuration is missing
//
// Example:
//
//	server, err := hpke.NewServer(hpke.ServerConfig{
//	    KEMKey:         keySet.KEMKey,
//	    DID:            serverDID,
//	    Resolver:       resolver,
//	    SessionManager: sessionMgr,
//	    SessionMaxAge:  time.Hour,
//	})
func NewServer(config ServerConfig) (*Server, error) {
	if config.DID == "" {
		return nil, fmt.Errorf("DID is required")
	}
	if config.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if config.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if config.SessionMaxAge <= 0 {
		return nil, fmt.Errorf("session max age must be positive")
	}
	window := config.FreshnessWindow
	if window <= 0 {
		window = envelope.DefaultFreshnessWindow
	}

	return &Server{
		resolver:        config.Resolver,
		sessions:        config.SessionManager,
		kemKey:          config.KEMKey,
		serverDID:       config.DID,
		sessionMaxAge:   config.SessionMaxAge,
		freshnessWindow: window,
	}, nil
}

// HandleHandshake verifies and decapsulates an inbound handshake envelope,
// opens a new session for the established HPKE context, and returns the
// JSON-encoded acknowledgement to send back to the client.
//
// Parameters:
//   - ctx: Context for the operation (currently unused, reserved for
//     future cancellation/tracing on the registry lookup)
//   - env: the inbound signed handshake envelope
//
// Returns:
//   - []byte: the JSON handshake acknowledgement body
//   - error: error if verification, decapsulation, or session admission
//     fails
func (s *Server) HandleHandshake(ctx context.Context, env *envelope.Envelope) ([]byte, error) {
	reg := s.resolver.GetRegistry()
	resolved, err := handshake.Accept(reg, env, s.kemKey.Private[:], time.Now(), s.freshnessWindow)
	if err != nil {
		return nil, err
	}

	sess := sagesession.New(sagesession.NewID(), resolved.ClientDID, s.serverDID, resolved.Context, s.sessionMaxAge)
	if err := s.sessions.Add(sess); err != nil {
		return nil, err
	}

	ack := handshakeAck{SessionID: sess.ID, ServerDID: s.serverDID}
	return json.Marshal(ack)
}

// Client initiates HPKE handshakes and holds the resulting sessions for
// subsequent encrypted traffic.
type Client struct {
	transport     Transport
	sessions      *agentsession.Manager
	signingKey    keys.KeyPair
	clientDID     string
	sessionMaxAge time.Duration
}

// ClientConfig contains configuration for creating an HPKE client.
type ClientConfig struct {
	// Transport delivers the signed handshake envelope to the server.
	Transport Transport

	// SigningKey is the client's Ed25519 identity key used to sign
	// envelopes.
	SigningKey keys.KeyPair

	// ClientDID is the client's own DID.
	ClientDID string

	// SessionManager tracks sessions this client has established.
	SessionManager *agentsession.Manager

	// SessionMaxAge bounds how long the locally tracked session stays
	// valid; should match (or be shorter than) the server's own bound.
	SessionMaxAge time.Duration
}

// NewClient creates a new HPKE client.
//
// Parameters:
//   - config: Client configuration
//
// Returns:
//   - *Client: The initialized HPKE client
//   - error: Error if required configuration is missing
//
// Example:
//
//	client, err := hpke.NewClient(hpke.ClientConfig{
//	    Transport:      transport,
//	    SigningKey:     keySet.SigningKey,
//	    ClientDID:      clientDID,
//	    SessionManager: sessionMgr,
//	    SessionMaxAge:  time.Hour,
//	})
func NewClient(config ClientConfig) (*Client, error) {
	if config.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if config.ClientDID == "" {
		return nil, fmt.Errorf("client DID is required")
	}
	if config.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if config.SessionMaxAge <= 0 {
		return nil, fmt.Errorf("session max age must be positive")
	}

	return &Client{
		transport:     config.Transport,
		sessions:      config.SessionManager,
		signingKey:    config.SigningKey,
		clientDID:     config.ClientDID,
		sessionMaxAge: config.SessionMaxAge,
	}, nil
}

// Handshake initiates an HPKE handshake with the target server: it seals a
// handshake payload under the server's KEM public key, wraps it in a
// signed envelope, sends it over Transport, and on a successful
// acknowledgement stores the resulting session locally.
//
// Parameters:
//   - ctx: Context for the send operation
//   - serverDID: the target server's DID
//   - serverKemPub: the target server's X25519 KEM public key
//
// Returns:
//   - string: the session ID to use for subsequent encrypted requests
//   - error: error if the handshake, transport, or session admission fails
func (c *Client) Handshake(ctx context.Context, serverDID string, serverKemPub []byte) (string, error) {
	req, err := handshake.BuildRequest(c.clientDID, serverDID, c.signingKey.Private[:], serverKemPub, time.Now())
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(req.Envelope)
	if err != nil {
		return "", fmt.Errorf("encode handshake envelope: %w", err)
	}
	respBody, err := c.transport.Send(ctx, serverDID, body)
	if err != nil {
		return "", fmt.Errorf("send handshake: %w", err)
	}

	var ack handshakeAck
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return "", fmt.Errorf("decode handshake acknowledgement: %w", err)
	}

	sess := sagesession.New(ack.SessionID, c.clientDID, serverDID, req.Context, c.sessionMaxAge)
	if err := c.sessions.Add(sess); err != nil {
		return "", err
	}
	return sess.ID, nil
}
