package registry

import "time"

// Bounds on Agent metadata, mirroring the on-chain program's MAX_* constants.
const (
	MaxDIDLen          = 128
	MaxNameLen         = 64
	MaxDescriptionLen  = 256
	MaxEndpointLen     = 128
	MaxCapabilitiesLen = 256
	MaxKeysPerAgent    = 5
)

// KeyType identifies the signature scheme a registered key uses. Ed25519 is
// the only type supported on Solana-class networks; EVM-class networks also
// accept Secp256k1.
type KeyType uint8

const (
	KeyTypeEd25519 KeyType = iota
	KeyTypeSecp256k1
)

// Network names the class of ledger a registry instance is anchored to,
// which in turn determines the supported key-type set.
type Network int

const (
	NetworkSolanaClass Network = iota
	NetworkEVMClass
)

// supportsKeyType reports whether kt is accepted on net.
func supportsKeyType(net Network, kt KeyType) bool {
	switch net {
	case NetworkSolanaClass:
		return kt == KeyTypeEd25519
	case NetworkEVMClass:
		return kt == KeyTypeEd25519 || kt == KeyTypeSecp256k1
	default:
		return false
	}
}

// AgentKey is one entry in an Agent's ordered, bounded key sequence.
type AgentKey struct {
	PublicKey []byte
	KeyType   KeyType
	Revoked   bool
}

// Agent is the on-chain account a registered principal owns: metadata, an
// owner, a lifecycle state, and a bounded multi-key set with a monotone
// nonce used as freshness in key-operation signatures.
type Agent struct {
	DID          string
	Name         string
	Description  string
	Endpoint     string
	Capabilities string // opaque serialized list of strings (JSON array)

	Owner string // principal identifier of the registering party

	Active       bool
	RegisteredAt time.Time
	UpdatedAt    time.Time
	Nonce        uint64

	Keys []AgentKey
}

// activeKeyCount returns the number of non-revoked keys.
func (a *Agent) activeKeyCount() int {
	n := 0
	for _, k := range a.Keys {
		if !k.Revoked {
			n++
		}
	}
	return n
}

// IdentityKey returns the agent's first non-revoked Ed25519 key, which is
// the key envelope signature verification checks against (see pkg/envelope).
func (a *Agent) IdentityKey() (*AgentKey, bool) {
	for i := range a.Keys {
		if !a.Keys[i].Revoked && a.Keys[i].KeyType == KeyTypeEd25519 {
			return &a.Keys[i], true
		}
	}
	return nil, false
}
