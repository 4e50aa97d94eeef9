// Package handshake implements the wire-level sequence between initiator
// and responder that produces a shared session: HPKE encapsulation wrapped
// in a signed envelope, and the responder-side verification that resolves
// the signed envelope against the registry before decapsulating. Grounded
// on sdk/rust/sage-client/src/client.rs's handshake() method.
package handshake

import (
	"encoding/json"
	"time"

	"github.com/sage-x-project/sage/pkg/crypto"
	"github.com/sage-x-project/sage/pkg/envelope"
	"github.com/sage-x-project/sage/pkg/hpke"
	"github.com/sage-x-project/sage/pkg/registry"
	"github.com/sage-x-project/sage/pkg/sageerr"
)

// payload is the plaintext sealed inside the handshake's HPKE ciphertext.
type payload struct {
	Type      string `json:"type"`
	ClientDID string `json:"client_did"`
	Timestamp int64  `json:"timestamp"`
}

// Request is the initiator's output: the envelope to send over the wire
// plus the HPKE context it must retain to build the session once the
// responder's reply arrives.
type Request struct {
	Envelope *envelope.Envelope
	Context  *hpke.Context
}

// BuildRequest runs HPKE sender setup against the responder's KEM public
// key, seals a handshake payload naming clientDID, and wraps the result in
// a signed envelope. now is the Unix-second clock value embedded in both
// the payload and the envelope.
func BuildRequest(clientDID, serverDID string, clientIdentityPriv, serverKemPub []byte, now time.Time) (*Request, error) {
	ctx, encapsulatedKey, err := hpke.SenderSetup(serverKemPub)
	if err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(payload{Type: "handshake", ClientDID: clientDID, Timestamp: now.Unix()})
	if err != nil {
		return nil, sageerr.Wrap(sageerr.CodeValidation, "failed to encode handshake payload", err)
	}
	sealed, err := ctx.Seal(plaintext)
	if err != nil {
		return nil, err
	}

	message := append(append([]byte(nil), encapsulatedKey...), sealed...)
	env, err := envelope.Sign(clientDID, serverDID, message, now.Unix(), clientIdentityPriv)
	if err != nil {
		return nil, err
	}

	return &Request{Envelope: env, Context: ctx}, nil
}

// Resolved is what the responder learns after successfully verifying and
// decapsulating an inbound handshake envelope.
type Resolved struct {
	ClientDID string
	Context   *hpke.Context
}

// Accept verifies env against the registry (sender found, active, with a
// non-revoked identity key) and the envelope freshness window, then
// decapsulates the HPKE payload and checks its declared client_did matches
// the envelope's signed sender_did. serverKemPriv is the responder's own
// KEM private key.
func Accept(reg *registry.Registry, env *envelope.Envelope, serverKemPriv []byte, now time.Time, freshnessWindow time.Duration) (*Resolved, error) {
	agent, err := reg.GetAgent(env.SenderDID)
	if err != nil {
		return nil, err
	}
	if !agent.Active {
		return nil, sageerr.New(sageerr.CodeAgentNotActive, env.SenderDID)
	}
	identityKey, ok := agent.IdentityKey()
	if !ok {
		return nil, sageerr.New(sageerr.CodeInvalidSignature, "sender has no active identity key")
	}

	message, err := envelope.Verify(env, identityKey.PublicKey, now, freshnessWindow)
	if err != nil {
		return nil, err
	}

	if len(message) < crypto.KeySize {
		return nil, sageerr.New(sageerr.CodeValidation, "handshake message shorter than encapsulated key")
	}
	encapsulatedKey := message[:crypto.KeySize]
	sealed := message[crypto.KeySize:]

	ctx, err := hpke.ReceiverSetup(encapsulatedKey, serverKemPriv)
	if err != nil {
		return nil, err
	}
	plaintext, err := ctx.Open(sealed)
	if err != nil {
		return nil, err
	}

	var p payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, sageerr.Wrap(sageerr.CodeValidation, "malformed handshake payload", err)
	}
	if p.Type != "handshake" {
		return nil, sageerr.New(sageerr.CodeValidation, "unexpected handshake payload type")
	}
	if p.ClientDID != env.SenderDID {
		return nil, sageerr.New(sageerr.CodeValidation, "handshake client_did does not match envelope sender")
	}

	return &Resolved{ClientDID: p.ClientDID, Context: ctx}, nil
}
