// Package did provides high-level abstractions for DID resolution. It
// wraps pkg/registry's in-process registry state machine to provide a
// unified lookup API for HPKE servers and middleware, independent of
// whichever registry backend (in-process, or eventually an on-chain RPC
// client) actually stores the Agent accounts.
package did

import (
	"fmt"

	"github.com/sage-x-project/sage/pkg/registry"
)

// Resolver resolves DIDs to registered Agent accounts and their public
// keys. This abstraction wraps pkg/registry.Registry so that the HPKE
// server and auth middleware don't need to know about its internals.
type Resolver struct {
	reg *registry.Registry
}

// Config contains configuration for creating a DID resolver.
type Config struct {
	// Registry is the backing registry instance agents are registered in.
	Registry *registry.Registry
}

// NewResolver creates a new DID resolver bound to the provided registry.
//
// Parameters:
//   - config: DID resolver configuration
//
// Returns:
//   - *Resolver: The initialized DID resolver
//   - error: Error if the registry is missing
//
// Example:
//
//	resolver, err := did.NewResolver(did.Config{Registry: reg})
func NewResolver(config Config) (*Resolver, error) {
	if config.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	return &Resolver{reg: config.Registry}, nil
}

// Resolve looks up an agent's registered account by DID.
//
// Parameters:
//   - did: the DID to resolve, e.g. "did:sage:ethereum:0xAlice"
//
// Returns:
//   - *registry.Agent: the registered agent account
//   - error: error if the DID is not registered
func (r *Resolver) Resolve(did string) (*registry.Agent, error) {
	return r.reg.GetAgent(did)
}

// IdentityKey resolves did and returns its current non-revoked Ed25519
// identity public key, the key envelope and registry signature
// verification checks against.
//
// Parameters:
//   - did: the DID to resolve
//
// Returns:
//   - []byte: the 32-byte Ed25519 public key
//   - error: error if the DID is not registered, inactive, or has no
//     active identity key
func (r *Resolver) IdentityKey(did string) ([]byte, error) {
	agent, err := r.reg.GetAgent(did)
	if err != nil {
		return nil, err
	}
	if !agent.Active {
		return nil, fmt.Errorf("agent %s is not active", did)
	}
	key, ok := agent.IdentityKey()
	if !ok {
		return nil, fmt.Errorf("agent %s has no active identity key", did)
	}
	return key.PublicKey, nil
}

// GetRegistry returns the underlying registry. Used by server wiring that
// needs direct registry access (registration endpoints, event
// subscriptions).
//
// Returns:
//   - *registry.Registry: the underlying registry
func (r *Resolver) GetRegistry() *registry.Registry {
	return r.reg
}
