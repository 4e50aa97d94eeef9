package crypto

import (
	"bytes"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/sage-x-project/sage/pkg/sageerr"
)

// Secp256k1KeyPair holds a secp256k1 signing keypair for the EVM-class
// network key type anticipated by the registry's key_type byte.
type Secp256k1KeyPair struct {
	Private *secp256k1.PrivateKey
	Public  *secp256k1.PublicKey
}

// GenerateSecp256k1Keypair produces a fresh secp256k1 keypair, backing the
// EVM-interop key type named as future work in the registry's design notes.
func GenerateSecp256k1Keypair() (*Secp256k1KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, sageerr.Wrap(sageerr.CodeCSPRNGUnavailable, "secp256k1 keygen", err)
	}
	return &Secp256k1KeyPair{Private: priv, Public: priv.PubKey()}, nil
}

// Secp256k1PublicKeyBytes returns the uncompressed (0x04-prefixed, 65-byte)
// public key encoding used by EVM-class address derivation.
func (kp *Secp256k1KeyPair) Secp256k1PublicKeyBytes() []byte {
	return kp.Public.SerializeUncompressed()
}

// EthereumAddress derives the Ethereum-style address (Keccak256 of the
// uncompressed public key, last 20 bytes) for this keypair.
func (kp *Secp256k1KeyPair) EthereumAddress() string {
	pub := ethcrypto.ToECDSAPub(kp.Secp256k1PublicKeyBytes())
	return ethcrypto.PubkeyToAddress(*pub).Hex()
}

// SignSecp256k1 produces a 65-byte compact, recoverable ECDSA signature
// (1 recovery byte + 32-byte r + 32-byte s) over the SHA-256 digest of msg.
func SignSecp256k1(msg []byte, priv *secp256k1.PrivateKey) []byte {
	digest := SHA256(msg)
	return ecdsa.SignCompact(priv, digest, true)
}

// VerifySecp256k1 reports whether sig is a valid compact secp256k1
// signature over msg's SHA-256 digest recovering to pub.
func VerifySecp256k1(msg, sig []byte, pub *secp256k1.PublicKey) bool {
	if len(sig) != SignatureSize+1 {
		return false
	}
	digest := SHA256(msg)
	recovered, _, err := ecdsa.RecoverCompact(sig, digest)
	if err != nil {
		return false
	}
	return bytes.Equal(recovered.SerializeCompressed(), pub.SerializeCompressed())
}

// ParseSecp256k1PublicKey parses a 33-byte compressed or 65-byte
// uncompressed secp256k1 public key.
func ParseSecp256k1PublicKey(raw []byte) (*secp256k1.PublicKey, error) {
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, sageerr.Wrap(sageerr.CodeUnsupportedKeyType, "invalid secp256k1 public key", err)
	}
	return pub, nil
}
