// Package did implements DID parsing and the resolved-identity document
// returned by the registry-backed resolver.
package did

import (
	"fmt"
	"strings"

	"github.com/sage-x-project/sage/pkg/sageerr"
)

const (
	scheme  = "did"
	method  = "sage"
	// MaxLength bounds a DID string per spec.md §3.
	MaxLength = 128
)

// Did is a parsed decentralized identifier of the form
// did:sage:<network>:<address>.
type Did struct {
	Network string
	Address string
}

// Parse accepts exactly four colon-separated segments, the first two being
// the literal "did" and "sage".
func Parse(s string) (*Did, error) {
	if len(s) > MaxLength {
		return nil, sageerr.New(sageerr.CodeValidation, fmt.Sprintf("did exceeds %d bytes", MaxLength))
	}
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return nil, sageerr.New(sageerr.CodeValidation, "did must have exactly 4 colon-separated segments")
	}
	if parts[0] != scheme || parts[1] != method {
		return nil, sageerr.New(sageerr.CodeValidation, "did must start with did:sage:")
	}
	if parts[2] == "" || parts[3] == "" {
		return nil, sageerr.New(sageerr.CodeValidation, "did network and address must be non-empty")
	}
	return &Did{Network: parts[2], Address: parts[3]}, nil
}

// Format renders network and address back into a DID string.
func Format(network, address string) string {
	return fmt.Sprintf("%s:%s:%s:%s", scheme, method, network, address)
}

// String implements fmt.Stringer.
func (d *Did) String() string {
	return Format(d.Network, d.Address)
}

// Document is the resolved-identity record a client looks up before
// handshaking: a DID's current identity key, KEM key, owning principal,
// and activation state. Supplemented from the original Rust client SDK's
// did.rs, which keeps this distinct from the wire-level Did parser above.
type Document struct {
	Did           string
	IdentityKey   []byte
	KemKey        []byte
	Owner         string
	Active        bool
	KeyRevoked    bool
}
