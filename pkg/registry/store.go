// Package registry implements the SAGE on-chain registry's state machine
// as an in-process, mutex-guarded store: Registry and Agent "accounts",
// addressed by deterministic seed-derived keys exactly as the on-chain
// program derives PDAs, but backed by a Go map instead of a ledger.
package registry

import (
	"encoding/hex"

	"github.com/sage-x-project/sage/pkg/crypto"
)

// address is a deterministic, content-addressed key into the store, mirroring
// the on-chain program's seed -> PDA derivation (see spec.md §6).
type address [32]byte

func (a address) String() string {
	return hex.EncodeToString(a[:])
}

func seedAddress(parts ...[]byte) address {
	var buf []byte
	for _, p := range parts {
		buf = append(buf, p...)
	}
	var a address
	copy(a[:], crypto.SHA256(buf))
	return a
}

// agentAddress and userStateAddress are the only two content-addressed
// seeds the store needs: Registry and VerificationHook are each a single
// process-wide struct (no map to key into), so they carry no address of
// their own — only the per-agent and per-principal records they hold are
// addressed this way, mirroring the on-chain program's per-account PDAs.

func agentAddress(did string) address {
	return seedAddress([]byte("agent"), []byte(did))
}

func userStateAddress(principal []byte) address {
	return seedAddress([]byte("user_state"), principal)
}
