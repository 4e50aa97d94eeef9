// Package crypto exposes the primitive operations SAGE builds everything
// else on: Ed25519 signing, X25519 agreement, HKDF-SHA256 derivation,
// AES-256-GCM sealing, SHA-256 hashing, and base64 helpers. Every operation
// is a pure function over byte slices; fixed-length inputs are hard errors
// on mismatch, never best-effort truncation.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/sage-x-project/sage/pkg/sageerr"
)

const (
	// KeySize is the length in bytes of every raw key used in this package
	// (Ed25519 and X25519 private/public halves, AES-256 keys).
	KeySize = 32
	// SignatureSize is the length in bytes of an Ed25519 signature.
	SignatureSize = 64
	// NonceSize is the length in bytes of an AES-256-GCM nonce.
	NonceSize = 12
)

// KeyPair holds a 32-byte private/public pair for either Ed25519 or X25519.
type KeyPair struct {
	Private [KeySize]byte
	Public  [KeySize]byte
}

// GenerateEd25519Keypair produces a fresh Ed25519 signing keypair.
func GenerateEd25519Keypair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, sageerr.Wrap(sageerr.CodeCSPRNGUnavailable, "ed25519 keygen", err)
	}
	kp := &KeyPair{}
	// ed25519.PrivateKey is the 32-byte seed followed by the 32-byte public
	// key; the seed is what callers must persist and re-derive from.
	copy(kp.Private[:], priv.Seed())
	copy(kp.Public[:], pub)
	return kp, nil
}

// Sign signs msg with an Ed25519 private key (32-byte seed form).
func Sign(msg []byte, priv []byte) ([]byte, error) {
	if len(priv) != KeySize {
		return nil, sageerr.New(sageerr.CodeValidation, fmt.Sprintf("ed25519 private key must be %d bytes, got %d", KeySize, len(priv)))
	}
	signer := ed25519.NewKeyFromSeed(priv)
	return ed25519.Sign(signer, msg), nil
}

// Verify reports whether sig is a valid Ed25519 signature over msg under
// pub. Malformed inputs are treated the same as an invalid signature: the
// caller only needs a boolean, per spec.
func Verify(msg, sig, pub []byte) bool {
	if len(sig) != SignatureSize || len(pub) != KeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}

// GenerateX25519Keypair produces a fresh X25519 key-agreement keypair.
func GenerateX25519Keypair() (*KeyPair, error) {
	kp := &KeyPair{}
	if _, err := rand.Read(kp.Private[:]); err != nil {
		return nil, sageerr.Wrap(sageerr.CodeCSPRNGUnavailable, "x25519 keygen", err)
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return nil, sageerr.Wrap(sageerr.CodeCSPRNGUnavailable, "x25519 basepoint mult", err)
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// DH computes the X25519 shared secret between a local private key and a
// peer public key.
func DH(priv, pub []byte) ([]byte, error) {
	if len(priv) != KeySize || len(pub) != KeySize {
		return nil, sageerr.New(sageerr.CodeValidation, "x25519 dh inputs must be 32 bytes")
	}
	shared, err := curve25519.X25519(priv, pub)
	if err != nil {
		return nil, sageerr.Wrap(sageerr.CodeValidation, "x25519 dh", err)
	}
	return shared, nil
}

// HKDF derives length bytes from secret using HKDF-SHA256 with info as the
// context string.
func HKDF(secret, info []byte, length int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, nil, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, sageerr.Wrap(sageerr.CodeValidation, "hkdf expand exceeded ceiling", err)
	}
	return out, nil
}

// AEADSeal encrypts pt under key with nonce using AES-256-GCM, returning
// ciphertext with the 16-byte authentication tag appended.
func AEADSeal(pt, key, nonce []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, sageerr.New(sageerr.CodeValidation, fmt.Sprintf("aead nonce must be %d bytes, got %d", NonceSize, len(nonce)))
	}
	return aead.Seal(nil, nonce, pt, nil), nil
}

// AEADOpen decrypts ct under key with nonce using AES-256-GCM. A tag
// mismatch surfaces as sageerr.CodeDecryption.
func AEADOpen(ct, key, nonce []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, sageerr.New(sageerr.CodeValidation, fmt.Sprintf("aead nonce must be %d bytes, got %d", NonceSize, len(nonce)))
	}
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, sageerr.Wrap(sageerr.CodeDecryption, "aead authentication failed", err)
	}
	return pt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, sageerr.New(sageerr.CodeValidation, fmt.Sprintf("aead key must be %d bytes, got %d", KeySize, len(key)))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, sageerr.Wrap(sageerr.CodeValidation, "aes cipher init", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, sageerr.Wrap(sageerr.CodeValidation, "gcm init", err)
	}
	return aead, nil
}

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// B64Encode encodes data as standard, padded base64.
func B64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// B64Decode decodes standard, padded base64.
func B64Decode(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, sageerr.Wrap(sageerr.CodeValidation, "malformed base64", err)
	}
	return data, nil
}
