// Package hpke implements the keyed, stateful AEAD channel used for every
// SAGE session: a single 32-byte key plus a monotonic sequence counter,
// producing self-describing ciphertexts (nonce || ct || tag).
package hpke

import (
	"encoding/binary"
	"sync"

	"github.com/sage-x-project/sage/pkg/crypto"
	"github.com/sage-x-project/sage/pkg/sageerr"
)

// Info is the HKDF context string binding derived keys to this protocol
// version; changing it invalidates interoperability with older peers by
// design.
const Info = "SAGE HPKE v1"

// Context is a stateful AEAD channel over a derived symmetric key. A
// pkg/session Session owns a single Context and uses it for both Seal and
// Open, so both directions share one sequence counter.
type Context struct {
	mu sync.Mutex

	key      [crypto.KeySize]byte
	sequence uint64

	// highestAccepted is the largest sequence number Open has accepted so
	// far; a ciphertext carrying a sequence <= highestAccepted is rejected.
	// This is the fix for the open question the Rust source left
	// unresolved: its Open trusted the embedded nonce outright.
	highestAccepted uint64
	everAccepted    bool
}

// New constructs a Context over a derived 32-byte key with its sequence
// counter at zero.
func New(key []byte) (*Context, error) {
	if len(key) != crypto.KeySize {
		return nil, sageerr.New(sageerr.CodeValidation, "hpke key must be 32 bytes")
	}
	ctx := &Context{}
	copy(ctx.key[:], key)
	return ctx, nil
}

// Seal computes the nonce from the current sequence (before incrementing
// it), encrypts pt, and returns nonce || ciphertext. Increments sequence
// only after a successful encryption, matching the source's ordering:
// callers that cancel a network send before it reaches the peer must
// discard the Context rather than reuse it, since the sequence has already
// advanced for a ciphertext that may never have been delivered.
func (c *Context) Seal(pt []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nonce := sequenceNonce(c.sequence)
	ct, err := crypto.AEADSeal(pt, c.key[:], nonce)
	if err != nil {
		return nil, err
	}
	c.sequence++
	return append(nonce, ct...), nil
}

// Open parses the leading 12-byte nonce, decrypts the remainder, and
// rejects any sequence not strictly greater than the highest previously
// accepted in this direction. The sequence counter advances only on a
// successful, in-order open — unlike the source, which advanced
// unconditionally and never checked ordering at all.
func (c *Context) Open(blob []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(blob) < crypto.NonceSize {
		return nil, sageerr.New(sageerr.CodeValidation, "hpke ciphertext shorter than nonce")
	}
	nonce := blob[:crypto.NonceSize]
	ct := blob[crypto.NonceSize:]

	seq := binary.BigEndian.Uint64(nonce[4:])
	if c.everAccepted && seq <= c.highestAccepted {
		return nil, sageerr.New(sageerr.CodeSequenceRegression, "hpke sequence did not advance")
	}

	pt, err := crypto.AEADOpen(ct, c.key[:], nonce)
	if err != nil {
		return nil, err
	}

	c.highestAccepted = seq
	c.everAccepted = true
	c.sequence++
	return pt, nil
}

// Sequence returns the context's sequence counter: the number of Seal calls
// plus the number of successful Open calls made so far on this context.
func (c *Context) Sequence() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sequence
}

// sequenceNonce big-endian encodes seq into the low 8 bytes of a 12-byte
// nonce, leaving the high 4 bytes zero.
func sequenceNonce(seq uint64) []byte {
	nonce := make([]byte, crypto.NonceSize)
	binary.BigEndian.PutUint64(nonce[4:], seq)
	return nonce
}

// SenderSetup generates an ephemeral X25519 keypair, derives the shared
// AEAD key against peerPub, and returns the Context plus the ephemeral
// public key to transmit as the encapsulated key.
func SenderSetup(peerPub []byte) (ctx *Context, encapsulatedKey []byte, err error) {
	ephemeral, err := crypto.GenerateX25519Keypair()
	if err != nil {
		return nil, nil, err
	}
	shared, err := crypto.DH(ephemeral.Private[:], peerPub)
	if err != nil {
		return nil, nil, err
	}
	key, err := crypto.HKDF(shared, []byte(Info), crypto.KeySize)
	if err != nil {
		return nil, nil, err
	}
	ctx, err = New(key)
	if err != nil {
		return nil, nil, err
	}
	return ctx, ephemeral.Public[:], nil
}

// ReceiverSetup derives the shared AEAD key from the sender's encapsulated
// key and the receiver's own X25519 private key.
func ReceiverSetup(encapsulatedKey, ownPriv []byte) (*Context, error) {
	shared, err := crypto.DH(ownPriv, encapsulatedKey)
	if err != nil {
		return nil, err
	}
	key, err := crypto.HKDF(shared, []byte(Info), crypto.KeySize)
	if err != nil {
		return nil, err
	}
	return New(key)
}
