// Package envelope implements the signed request envelope reused for
// every client->server request: handshake initiation and subsequent
// session-bearing messages alike. Grounded on the Rust client SDK's
// envelope construction in sdk/rust/sage-client/src/client.rs and
// types.rs.
package envelope

import (
	"strconv"
	"time"

	"github.com/sage-x-project/sage/pkg/crypto"
	"github.com/sage-x-project/sage/pkg/sageerr"
)

// DefaultFreshnessWindow bounds how old (or how far in the future) an
// envelope's timestamp may be before it is rejected as stale, per
// spec.md §4.6 and Open Question (b): the Rust source has no equivalent
// check, added here because a signed envelope with no expiry is
// replayable indefinitely.
const DefaultFreshnessWindow = 5 * time.Minute

// Envelope is the signed wrapper carried on every authenticated request.
type Envelope struct {
	SenderDID   string `json:"sender_did"`
	ReceiverDID string `json:"receiver_did"`
	Message     string `json:"message"` // base64
	Timestamp   int64  `json:"timestamp"`
	Signature   string `json:"signature"` // base64
}

// signedString builds the exact UTF-8 concatenation that gets signed:
// sender_did | receiver_did | message_b64 | timestamp_decimal.
func signedString(senderDID, receiverDID, messageB64 string, timestamp int64) []byte {
	s := senderDID + "|" + receiverDID + "|" + messageB64 + "|" + strconv.FormatInt(timestamp, 10)
	return []byte(s)
}

// Sign builds and signs an Envelope carrying message (raw bytes, not yet
// base64-encoded) from senderDID to receiverDID, using the sender's
// current Ed25519 identity private key. timestamp is the Unix-second
// clock value to embed; callers pass time.Now().Unix() in production and
// a fixed value in tests.
func Sign(senderDID, receiverDID string, message []byte, timestamp int64, identityPriv []byte) (*Envelope, error) {
	messageB64 := crypto.B64Encode(message)
	sig, err := crypto.Sign(signedString(senderDID, receiverDID, messageB64, timestamp), identityPriv)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		SenderDID:   senderDID,
		ReceiverDID: receiverDID,
		Message:     messageB64,
		Timestamp:   timestamp,
		Signature:   crypto.B64Encode(sig),
	}, nil
}

// Verify checks e's signature against the sender's registered identity
// public key and enforces the freshness window around now. It does not
// look up the registry itself — callers resolve senderIdentityKey first
// (see pkg/registry) so this package stays free of a registry dependency.
// Returns the decoded plaintext message on success.
func Verify(e *Envelope, senderIdentityKey []byte, now time.Time, window time.Duration) ([]byte, error) {
	if e.SenderDID == "" || e.ReceiverDID == "" || e.Message == "" || e.Signature == "" {
		return nil, sageerr.New(sageerr.CodeMalformedEnvelope, "envelope is missing a required field")
	}

	sig, err := crypto.B64Decode(e.Signature)
	if err != nil {
		return nil, sageerr.Wrap(sageerr.CodeMalformedEnvelope, "malformed signature", err)
	}

	toSign := signedString(e.SenderDID, e.ReceiverDID, e.Message, e.Timestamp)
	if !crypto.Verify(toSign, sig, senderIdentityKey) {
		return nil, sageerr.New(sageerr.CodeInvalidSignature, "envelope signature verification failed")
	}

	age := now.Sub(time.Unix(e.Timestamp, 0))
	if age > window || age < -window {
		return nil, sageerr.New(sageerr.CodeStaleTimestamp, "envelope timestamp outside freshness window")
	}

	message, err := crypto.B64Decode(e.Message)
	if err != nil {
		return nil, sageerr.Wrap(sageerr.CodeMalformedEnvelope, "malformed message payload", err)
	}
	return message, nil
}
