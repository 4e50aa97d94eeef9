package registry

import (
	"testing"

	"github.com/sage-x-project/sage/pkg/crypto"
)

func mustCaps(t *testing.T) *CapabilitiesValidator {
	t.Helper()
	cv, err := NewCapabilitiesValidator()
	if err != nil {
		t.Fatalf("new capabilities validator: %v", err)
	}
	return cv
}

func registerTestAgent(t *testing.T, r *Registry, did, owner string) (*Agent, *crypto.KeyPair) {
	t.Helper()
	kp, err := crypto.GenerateEd25519Keypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	sig, err := crypto.Sign(registrationMessage(owner, did), kp.Private[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	agent, err := r.RegisterAgent(RegisterAgentInput{
		DID:        did,
		Owner:      owner,
		Name:       "alice-agent",
		PublicKeys: [][]byte{kp.Public[:]},
		KeyTypes:   []KeyType{KeyTypeEd25519},
		Signatures: [][]byte{sig},
	})
	if err != nil {
		t.Fatalf("register agent: %v", err)
	}
	return agent, kp
}

func TestRegisterAgentHappyPath(t *testing.T) {
	r := New(NetworkSolanaClass, mustCaps(t))
	agent, _ := registerTestAgent(t, r, "did:sage:ethereum:0xAlice", "owner-1")

	if !agent.Active || agent.Nonce != 0 || len(agent.Keys) != 1 {
		t.Fatalf("unexpected agent state: %+v", agent)
	}
	if r.AgentCount() != 1 {
		t.Fatalf("expected agent count 1, got %d", r.AgentCount())
	}
}

func TestRegisterAgentRejectsDuplicateDID(t *testing.T) {
	r := New(NetworkSolanaClass, mustCaps(t))
	registerTestAgent(t, r, "did:sage:ethereum:0xAlice", "owner-1")

	kp, _ := crypto.GenerateEd25519Keypair()
	sig, _ := crypto.Sign(registrationMessage("owner-2", "did:sage:ethereum:0xAlice"), kp.Private[:])
	_, err := r.RegisterAgent(RegisterAgentInput{
		DID:        "did:sage:ethereum:0xAlice",
		Owner:      "owner-2",
		PublicKeys: [][]byte{kp.Public[:]},
		KeyTypes:   []KeyType{KeyTypeEd25519},
		Signatures: [][]byte{sig},
	})
	if err == nil {
		t.Fatal("expected duplicate DID registration to fail")
	}
}

func TestRegisterAgentRejectsZeroAndTooManyKeys(t *testing.T) {
	r := New(NetworkSolanaClass, mustCaps(t))
	_, err := r.RegisterAgent(RegisterAgentInput{DID: "did:sage:ethereum:0xZero", Owner: "o"})
	if err == nil {
		t.Fatal("expected zero-key registration to fail")
	}

	keys := make([][]byte, 6)
	types := make([]KeyType, 6)
	sigs := make([][]byte, 6)
	for i := range keys {
		kp, _ := crypto.GenerateEd25519Keypair()
		keys[i] = kp.Public[:]
		types[i] = KeyTypeEd25519
		sigs[i] = make([]byte, 64)
	}
	_, err = r.RegisterAgent(RegisterAgentInput{DID: "did:sage:ethereum:0xSix", Owner: "o", PublicKeys: keys, KeyTypes: types, Signatures: sigs})
	if err == nil {
		t.Fatal("expected six-key registration to fail")
	}
}

func TestRegisterAgentRejectsMismatchedArrays(t *testing.T) {
	r := New(NetworkSolanaClass, mustCaps(t))
	kp, _ := crypto.GenerateEd25519Keypair()
	_, err := r.RegisterAgent(RegisterAgentInput{
		DID:        "did:sage:ethereum:0xMismatch",
		Owner:      "o",
		PublicKeys: [][]byte{kp.Public[:]},
		KeyTypes:   []KeyType{KeyTypeEd25519},
		Signatures: [][]byte{},
	})
	if err == nil {
		t.Fatal("expected mismatched array lengths to fail")
	}
}

func TestRegisterAgentBoundaryLengths(t *testing.T) {
	r := New(NetworkSolanaClass, mustCaps(t))
	kp, _ := crypto.GenerateEd25519Keypair()

	did129 := "did:sage:ethereum:" + repeat("a", 129-len("did:sage:ethereum:"))
	sig, _ := crypto.Sign(registrationMessage("o", did129), kp.Private[:])
	_, err := r.RegisterAgent(RegisterAgentInput{DID: did129, Owner: "o", PublicKeys: [][]byte{kp.Public[:]}, KeyTypes: []KeyType{KeyTypeEd25519}, Signatures: [][]byte{sig}})
	if err == nil {
		t.Fatal("expected 129-byte DID to be rejected")
	}
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n)
	for len(out) < n {
		out = append(out, s[0])
	}
	return string(out)
}

func TestAddRevokeRotateKeyLifecycle(t *testing.T) {
	r := New(NetworkSolanaClass, mustCaps(t))
	did := "did:sage:ethereum:0xAlice"
	owner := "owner-1"
	_, kp1 := registerTestAgent(t, r, did, owner)

	kp2, _ := crypto.GenerateEd25519Keypair()
	sig2, _ := crypto.Sign(keyOpMessage(owner, 0), kp2.Private[:])
	if err := r.AddKey(did, owner, kp2.Public[:], KeyTypeEd25519, sig2); err != nil {
		t.Fatalf("add key: %v", err)
	}

	agent, _ := r.GetAgent(did)
	if agent.Nonce != 1 || len(agent.Keys) != 2 {
		t.Fatalf("unexpected state after add: %+v", agent)
	}

	if err := r.RevokeKey(did, owner, 0); err != nil {
		t.Fatalf("revoke key: %v", err)
	}
	agent, _ = r.GetAgent(did)
	if !agent.Keys[0].Revoked || agent.Nonce != 2 {
		t.Fatalf("unexpected state after revoke: %+v", agent)
	}

	if err := r.RevokeKey(did, owner, 0); err == nil {
		t.Fatal("expected KeyAlreadyRevoked")
	}
	if err := r.RevokeKey(did, owner, 1); err == nil {
		t.Fatal("expected CannotRevokeLastKey")
	}

	kp3, _ := crypto.GenerateEd25519Keypair()
	sig3, _ := crypto.Sign(keyOpMessage(owner, 2), kp3.Private[:])
	if err := r.RotateKey(did, owner, 1, kp3.Public[:], KeyTypeEd25519, sig3); err != nil {
		t.Fatalf("rotate key: %v", err)
	}
	agent, _ = r.GetAgent(did)
	if agent.Nonce != 3 || string(agent.Keys[1].PublicKey) != string(kp3.Public[:]) {
		t.Fatalf("unexpected state after rotate: %+v", agent)
	}
	_ = kp1
}

func TestUpdateAgentDoesNotTouchNonceOrKeys(t *testing.T) {
	r := New(NetworkSolanaClass, mustCaps(t))
	did := "did:sage:ethereum:0xAlice"
	owner := "owner-1"
	registerTestAgent(t, r, did, owner)

	newName := "renamed"
	if err := r.UpdateAgent(did, owner, UpdateAgentInput{Name: &newName}); err != nil {
		t.Fatalf("update: %v", err)
	}
	agent, _ := r.GetAgent(did)
	if agent.Name != newName || agent.Nonce != 0 {
		t.Fatalf("expected name updated, nonce unchanged: %+v", agent)
	}
}

func TestDeactivateAgentIsTerminal(t *testing.T) {
	r := New(NetworkSolanaClass, mustCaps(t))
	did := "did:sage:ethereum:0xAlice"
	owner := "owner-1"
	registerTestAgent(t, r, did, owner)

	if err := r.DeactivateAgent(did, owner); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := r.DeactivateAgent(did, owner); err == nil {
		t.Fatal("expected second deactivate to fail")
	}
	if err := r.UpdateAgent(did, owner, UpdateAgentInput{}); err == nil {
		t.Fatal("expected update on inactive agent to fail")
	}
}

func TestSetVerificationHookRequiresAuthority(t *testing.T) {
	r := New(NetworkSolanaClass, mustCaps(t))
	if err := r.Initialize("authority-1"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := r.SetVerificationHook("someone-else", "hook-1"); err == nil {
		t.Fatal("expected non-authority to be rejected")
	}
	if err := r.SetVerificationHook("authority-1", "hook-1"); err != nil {
		t.Fatalf("expected authority to succeed: %v", err)
	}
}

func TestCapabilitiesValidation(t *testing.T) {
	r := New(NetworkSolanaClass, mustCaps(t))
	kp, _ := crypto.GenerateEd25519Keypair()
	did := "did:sage:ethereum:0xCaps"
	sig, _ := crypto.Sign(registrationMessage("o", did), kp.Private[:])

	caps, _ := EncodeCapabilities([]string{"translate", "summarize"})
	_, err := r.RegisterAgent(RegisterAgentInput{
		DID: did, Owner: "o", Capabilities: caps,
		PublicKeys: [][]byte{kp.Public[:]}, KeyTypes: []KeyType{KeyTypeEd25519}, Signatures: [][]byte{sig},
	})
	if err != nil {
		t.Fatalf("expected valid capabilities to register: %v", err)
	}

	kp2, _ := crypto.GenerateEd25519Keypair()
	did2 := "did:sage:ethereum:0xBadCaps"
	sig2, _ := crypto.Sign(registrationMessage("o2", did2), kp2.Private[:])
	_, err = r.RegisterAgent(RegisterAgentInput{
		DID: did2, Owner: "o2", Capabilities: `{"not":"an array"}`,
		PublicKeys: [][]byte{kp2.Public[:]}, KeyTypes: []KeyType{KeyTypeEd25519}, Signatures: [][]byte{sig2},
	})
	if err == nil {
		t.Fatal("expected malformed capabilities to be rejected")
	}
}

func TestEVMNetworkSupportsSecp256k1(t *testing.T) {
	r := New(NetworkEVMClass, mustCaps(t))
	kp, err := crypto.GenerateSecp256k1Keypair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	did := "did:sage:ethereum:0xEvm"
	sig := crypto.SignSecp256k1(registrationMessage("o", did), kp.Private)
	_, err = r.RegisterAgent(RegisterAgentInput{
		DID: did, Owner: "o",
		PublicKeys: [][]byte{kp.Secp256k1PublicKeyBytes()},
		KeyTypes:   []KeyType{KeyTypeSecp256k1},
		Signatures: [][]byte{sig},
	})
	if err != nil {
		t.Fatalf("expected secp256k1 registration on EVM-class network: %v", err)
	}
}

func TestSolanaNetworkRejectsSecp256k1(t *testing.T) {
	r := New(NetworkSolanaClass, mustCaps(t))
	kp, _ := crypto.GenerateSecp256k1Keypair()
	did := "did:sage:solana:0xEvm"
	sig := crypto.SignSecp256k1(registrationMessage("o", did), kp.Private)
	_, err := r.RegisterAgent(RegisterAgentInput{
		DID: did, Owner: "o",
		PublicKeys: [][]byte{kp.Secp256k1PublicKeyBytes()},
		KeyTypes:   []KeyType{KeyTypeSecp256k1},
		Signatures: [][]byte{sig},
	})
	if err == nil {
		t.Fatal("expected secp256k1 to be rejected on solana-class network")
	}
}
