// Package registry implements the SAGE on-chain registry's state machine
// as an in-process, mutex-guarded store: Registry and Agent "accounts",
// addressed by deterministic seed-derived keys exactly as the on-chain
// program derives PDAs, but backed by a Go map instead of a ledger.
//
// The on-chain transaction model serializes all mutating instructions
// touching a single account and runs each instruction's checks-then-write
// body atomically; this package reproduces that guarantee with a single
// mutex held for the duration of each instruction (see spec.md §5).
package registry

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sage-x-project/sage/pkg/crypto"
	"github.com/sage-x-project/sage/pkg/sageerr"
)

// Registry is the singleton on-chain-style account mapping DID -> Agent.
// Capabilities JSON-schema validation and event publication are concerns
// layered on top of this mutex-guarded ledger.
type Registry struct {
	mu sync.Mutex

	network           Network
	authority         string
	agentCount        uint64
	verificationHook  string
	hookSet           bool
	agents            map[string]*Agent // keyed by agentAddress(did).String(), mirroring the on-chain PDA seed
	capabilitiesCheck *CapabilitiesValidator

	subMu       sync.Mutex
	subscribers []Subscriber
}

// New constructs an uninitialized Registry for the given network class.
// Initialize sets the authority that SetVerificationHook checks against;
// RegisterAgent and the key/metadata instructions do not check whether
// Initialize has been called.
func New(net Network, capsValidator *CapabilitiesValidator) *Registry {
	return &Registry{
		network:           net,
		agents:            make(map[string]*Agent),
		capabilitiesCheck: capsValidator,
	}
}

// Initialize sets the registry authority. Mirrors the on-chain program's
// `initialize` instruction: requires the caller to be the designated
// authority, called exactly once.
func (r *Registry) Initialize(authority string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.authority != "" {
		return sageerr.New(sageerr.CodeValidation, "registry already initialized")
	}
	if authority == "" {
		return sageerr.New(sageerr.CodeValidation, "authority is required")
	}
	r.authority = authority
	return nil
}

// Authority returns the registry's configured authority principal.
func (r *Registry) Authority() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authority
}

// AgentCount returns the number of registered agents.
func (r *Registry) AgentCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agentCount
}

// RegisterAgentInput carries the arguments to RegisterAgent.
type RegisterAgentInput struct {
	DID          string
	Owner        string
	Name         string
	Description  string
	Endpoint     string
	Capabilities string
	PublicKeys   [][]byte
	KeyTypes     []KeyType
	Signatures   [][]byte
}

// registrationMessage builds the canonical registration message
// owner_principal_bytes || did_utf8_bytes with no separator, per spec.md §4.4.
func registrationMessage(owner, did string) []byte {
	msg := make([]byte, 0, len(owner)+len(did))
	msg = append(msg, []byte(owner)...)
	msg = append(msg, []byte(did)...)
	return msg
}

// keyOpMessage builds the canonical key-operation message
// owner_principal_bytes || nonce_le_bytes_u64.
func keyOpMessage(owner string, nonce uint64) []byte {
	msg := make([]byte, 0, len(owner)+8)
	msg = append(msg, []byte(owner)...)
	for i := 0; i < 8; i++ {
		msg = append(msg, byte(nonce>>(8*i)))
	}
	return msg
}

// RegisterAgent creates a new Agent account. Preconditions and effects per
// spec.md §4.4.
func (r *Registry) RegisterAgent(in RegisterAgentInput) (*Agent, error) {
	if err := validateLen(in.DID, MaxDIDLen, sageerr.New(sageerr.CodeValidation, "DID too long")); err != nil {
		return nil, err
	}
	if err := validateLen(in.Name, MaxNameLen, sageerr.New(sageerr.CodeValidation, "name too long")); err != nil {
		return nil, err
	}
	if err := validateLen(in.Description, MaxDescriptionLen, sageerr.New(sageerr.CodeValidation, "description too long")); err != nil {
		return nil, err
	}
	if err := validateLen(in.Endpoint, MaxEndpointLen, sageerr.New(sageerr.CodeValidation, "endpoint too long")); err != nil {
		return nil, err
	}
	if err := validateLen(in.Capabilities, MaxCapabilitiesLen, sageerr.New(sageerr.CodeValidation, "capabilities too long")); err != nil {
		return nil, err
	}
	if len(in.PublicKeys) == 0 {
		return nil, sageerr.New(sageerr.CodeValidation, "no keys provided")
	}
	if len(in.PublicKeys) > MaxKeysPerAgent {
		return nil, sageerr.New(sageerr.CodeTooManyKeys, "too many keys")
	}
	if len(in.PublicKeys) != len(in.KeyTypes) || len(in.PublicKeys) != len(in.Signatures) {
		return nil, sageerr.New(sageerr.CodeValidation, "key/type/signature array length mismatch")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capabilitiesCheck != nil && in.Capabilities != "" {
		if err := r.capabilitiesCheck.Validate(in.Capabilities); err != nil {
			return nil, err
		}
	}

	if _, exists := r.agents[agentAddress(in.DID).String()]; exists {
		return nil, sageerr.New(sageerr.CodeAgentExists, "agent already registered for this DID")
	}

	message := registrationMessage(in.Owner, in.DID)
	keys := make([]AgentKey, len(in.PublicKeys))
	for i := range in.PublicKeys {
		if !supportsKeyType(r.network, in.KeyTypes[i]) {
			return nil, sageerr.New(sageerr.CodeUnsupportedKeyType, "unsupported key type for this network")
		}
		if !verifySignature(in.KeyTypes[i], message, in.Signatures[i], in.PublicKeys[i]) {
			return nil, sageerr.New(sageerr.CodeInvalidSignature, "key ownership proof failed")
		}
		keys[i] = AgentKey{PublicKey: append([]byte(nil), in.PublicKeys[i]...), KeyType: in.KeyTypes[i]}
	}

	now := time.Now()
	agent := &Agent{
		DID:          in.DID,
		Name:         in.Name,
		Description:  in.Description,
		Endpoint:     in.Endpoint,
		Capabilities: in.Capabilities,
		Owner:        in.Owner,
		Active:       true,
		RegisteredAt: now,
		UpdatedAt:    now,
		Nonce:        0,
		Keys:         keys,
	}
	r.agents[agentAddress(in.DID).String()] = agent
	r.agentCount++

	r.publish(Event{Kind: EventAgentRegistered, DID: in.DID, Principal: in.Owner, At: now})
	return agent, nil
}

// requireActiveOwned fetches an active agent and checks the caller is its owner.
func (r *Registry) requireActiveOwned(did, owner string) (*Agent, error) {
	agent, ok := r.agents[agentAddress(did).String()]
	if !ok {
		return nil, sageerr.New(sageerr.CodeAgentNotFound, did)
	}
	if agent.Owner != owner {
		return nil, sageerr.New(sageerr.CodeInvalidSignature, "caller is not the agent owner")
	}
	if !agent.Active {
		return nil, sageerr.New(sageerr.CodeAgentNotActive, did)
	}
	return agent, nil
}

// AddKey appends a new key to an agent's key set. Owner-signed.
func (r *Registry) AddKey(did, owner string, publicKey []byte, keyType KeyType, signature []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, err := r.requireActiveOwned(did, owner)
	if err != nil {
		return err
	}
	if len(agent.Keys) >= MaxKeysPerAgent {
		return sageerr.New(sageerr.CodeTooManyKeys, "agent already has the maximum number of keys")
	}
	if !supportsKeyType(r.network, keyType) {
		return sageerr.New(sageerr.CodeUnsupportedKeyType, "unsupported key type for this network")
	}

	message := keyOpMessage(owner, agent.Nonce)
	if !verifySignature(keyType, message, signature, publicKey) {
		return sageerr.New(sageerr.CodeInvalidSignature, "key ownership proof failed")
	}

	idx := len(agent.Keys)
	agent.Keys = append(agent.Keys, AgentKey{PublicKey: append([]byte(nil), publicKey...), KeyType: keyType})
	agent.Nonce++
	agent.UpdatedAt = time.Now()

	r.publish(Event{Kind: EventKeyAdded, DID: did, Principal: owner, At: agent.UpdatedAt, Detail: map[string]interface{}{"key_index": idx}})
	return nil
}

// RevokeKey marks a key revoked, refusing if it would leave the agent with
// zero active keys. Owner-signed.
func (r *Registry) RevokeKey(did, owner string, keyIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, err := r.requireActiveOwned(did, owner)
	if err != nil {
		return err
	}
	if keyIndex < 0 || keyIndex >= len(agent.Keys) {
		return sageerr.New(sageerr.CodeInvalidKeyIndex, "invalid key index")
	}
	if agent.Keys[keyIndex].Revoked {
		return sageerr.New(sageerr.CodeKeyAlreadyRevoked, "key already revoked")
	}
	if agent.activeKeyCount() <= 1 {
		return sageerr.New(sageerr.CodeCannotRevokeLast, "cannot revoke the last active key")
	}

	agent.Keys[keyIndex].Revoked = true
	agent.Nonce++
	agent.UpdatedAt = time.Now()

	r.publish(Event{Kind: EventKeyRevoked, DID: did, Principal: owner, At: agent.UpdatedAt, Detail: map[string]interface{}{"key_index": keyIndex}})
	return nil
}

// RotateKey atomically replaces a key in place: at no point does the key
// set lack a usable key at that index. Owner-signed.
func (r *Registry) RotateKey(did, owner string, keyIndex int, newPublicKey []byte, newKeyType KeyType, signature []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, err := r.requireActiveOwned(did, owner)
	if err != nil {
		return err
	}
	if keyIndex < 0 || keyIndex >= len(agent.Keys) {
		return sageerr.New(sageerr.CodeInvalidKeyIndex, "invalid key index")
	}
	if agent.Keys[keyIndex].Revoked {
		return sageerr.New(sageerr.CodeKeyAlreadyRevoked, "key already revoked")
	}
	if !supportsKeyType(r.network, newKeyType) {
		return sageerr.New(sageerr.CodeUnsupportedKeyType, "unsupported key type for this network")
	}

	message := keyOpMessage(owner, agent.Nonce)
	if !verifySignature(newKeyType, message, signature, newPublicKey) {
		return sageerr.New(sageerr.CodeInvalidSignature, "new key ownership proof failed")
	}

	agent.Keys[keyIndex].PublicKey = append([]byte(nil), newPublicKey...)
	agent.Keys[keyIndex].KeyType = newKeyType
	agent.Nonce++
	agent.UpdatedAt = time.Now()

	r.publish(Event{Kind: EventKeyRotated, DID: did, Principal: owner, At: agent.UpdatedAt, Detail: map[string]interface{}{"key_index": keyIndex}})
	return nil
}

// UpdateAgentInput carries optional metadata fields; nil fields are left
// untouched.
type UpdateAgentInput struct {
	Name         *string
	Description  *string
	Endpoint     *string
	Capabilities *string
}

// UpdateAgent updates any subset of an agent's metadata fields. Does not
// touch keys or nonce. Owner-signed.
func (r *Registry) UpdateAgent(did, owner string, in UpdateAgentInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, err := r.requireActiveOwned(did, owner)
	if err != nil {
		return err
	}

	if in.Name != nil {
		if err := validateLen(*in.Name, MaxNameLen, sageerr.New(sageerr.CodeValidation, "name too long")); err != nil {
			return err
		}
		agent.Name = *in.Name
	}
	if in.Description != nil {
		if err := validateLen(*in.Description, MaxDescriptionLen, sageerr.New(sageerr.CodeValidation, "description too long")); err != nil {
			return err
		}
		agent.Description = *in.Description
	}
	if in.Endpoint != nil {
		if err := validateLen(*in.Endpoint, MaxEndpointLen, sageerr.New(sageerr.CodeValidation, "endpoint too long")); err != nil {
			return err
		}
		agent.Endpoint = *in.Endpoint
	}
	if in.Capabilities != nil {
		if err := validateLen(*in.Capabilities, MaxCapabilitiesLen, sageerr.New(sageerr.CodeValidation, "capabilities too long")); err != nil {
			return err
		}
		if r.capabilitiesCheck != nil && *in.Capabilities != "" {
			if err := r.capabilitiesCheck.Validate(*in.Capabilities); err != nil {
				return err
			}
		}
		agent.Capabilities = *in.Capabilities
	}

	agent.UpdatedAt = time.Now()
	r.publish(Event{Kind: EventAgentUpdated, DID: did, Principal: owner, At: agent.UpdatedAt})
	return nil
}

// DeactivateAgent deactivates an agent. Terminal: no reactivation path.
// Owner-signed.
func (r *Registry) DeactivateAgent(did, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[agentAddress(did).String()]
	if !ok {
		return sageerr.New(sageerr.CodeAgentNotFound, did)
	}
	if agent.Owner != owner {
		return sageerr.New(sageerr.CodeInvalidSignature, "caller is not the agent owner")
	}
	if !agent.Active {
		return sageerr.New(sageerr.CodeAgentAlreadyInact, did)
	}

	agent.Active = false
	agent.UpdatedAt = time.Now()
	r.publish(Event{Kind: EventAgentDeactivated, DID: did, Principal: owner, At: agent.UpdatedAt})
	return nil
}

// SetVerificationHook stores (or clears, with an empty string) the
// principal identifying the verification-hook program. Authority-signed.
func (r *Registry) SetVerificationHook(authority, hookProgram string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if authority != r.authority {
		return sageerr.New(sageerr.CodeInvalidSignature, "caller is not the registry authority")
	}
	r.verificationHook = hookProgram
	r.hookSet = hookProgram != ""
	r.publish(Event{Kind: EventHookUpdated, Principal: authority, At: time.Now(), Detail: map[string]interface{}{"hook_program": hookProgram}})
	return nil
}

// GetAgent returns a copy-free read of the agent registered at did. Callers
// must not mutate the returned Agent's Keys slice in place.
func (r *Registry) GetAgent(did string) (*Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[agentAddress(did).String()]
	if !ok {
		return nil, sageerr.New(sageerr.CodeAgentNotFound, did)
	}
	return agent, nil
}

func validateLen(s string, max int, errOut *sageerr.Error) error {
	if len(s) > max {
		return errOut
	}
	return nil
}

func verifySignature(kt KeyType, message, signature, publicKey []byte) bool {
	switch kt {
	case KeyTypeEd25519:
		return crypto.Verify(message, signature, publicKey)
	case KeyTypeSecp256k1:
		pub, err := crypto.ParseSecp256k1PublicKey(publicKey)
		if err != nil {
			return false
		}
		return crypto.VerifySecp256k1(message, signature, pub)
	default:
		return false
	}
}

// CapabilitiesAsList decodes an agent's opaque capabilities string as a
// list of capability names. Returns an empty slice if Capabilities is empty.
func (a *Agent) CapabilitiesAsList() ([]string, error) {
	if a.Capabilities == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(a.Capabilities), &list); err != nil {
		return nil, sageerr.Wrap(sageerr.CodeValidation, "capabilities is not a JSON string array", err)
	}
	return list, nil
}
