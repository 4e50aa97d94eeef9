package handshake

import (
	"testing"
	"time"

	"github.com/sage-x-project/sage/pkg/crypto"
	"github.com/sage-x-project/sage/pkg/registry"
)

func mustCapsValidator(t *testing.T) *registry.CapabilitiesValidator {
	t.Helper()
	cv, err := registry.NewCapabilitiesValidator()
	if err != nil {
		t.Fatalf("new capabilities validator: %v", err)
	}
	return cv
}

func registerClient(t *testing.T, reg *registry.Registry, did, owner string, identityPub [32]byte, identityPriv [32]byte) {
	t.Helper()
	msg := append([]byte(owner), []byte(did)...)
	sig, err := crypto.Sign(msg, identityPriv[:])
	if err != nil {
		t.Fatalf("sign registration: %v", err)
	}
	_, err = reg.RegisterAgent(registry.RegisterAgentInput{
		DID: did, Owner: owner,
		PublicKeys: [][]byte{identityPub[:]},
		KeyTypes:   []registry.KeyType{registry.KeyTypeEd25519},
		Signatures: [][]byte{sig},
	})
	if err != nil {
		t.Fatalf("register client: %v", err)
	}
}

func TestHandshakeRoundTrip(t *testing.T) {
	reg := registry.New(registry.NetworkSolanaClass, mustCapsValidator(t))

	clientIdentity, err := crypto.GenerateEd25519Keypair()
	if err != nil {
		t.Fatalf("client identity keypair: %v", err)
	}
	serverKem, err := crypto.GenerateX25519Keypair()
	if err != nil {
		t.Fatalf("server kem keypair: %v", err)
	}

	clientDID := "did:sage:ethereum:0xclient"
	registerClient(t, reg, clientDID, "owner-1", clientIdentity.Public, clientIdentity.Private)

	now := time.Unix(1_700_000_000, 0)
	serverDID := "did:sage:ethereum:0xserver"
	req, err := BuildRequest(clientDID, serverDID, clientIdentity.Private[:], serverKem.Public[:], now)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	resolved, err := Accept(reg, req.Envelope, serverKem.Private[:], now, 5*time.Minute)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if resolved.ClientDID != clientDID {
		t.Fatalf("expected resolved client did %q, got %q", clientDID, resolved.ClientDID)
	}

	pt, err := req.Context.Seal([]byte("ping"))
	if err != nil {
		t.Fatalf("sender seal: %v", err)
	}
	got, err := resolved.Context.Open(pt)
	if err != nil {
		t.Fatalf("responder open: %v", err)
	}
	if string(got) != "ping" {
		t.Fatalf("expected shared session to decrypt, got %q", got)
	}
}

func TestHandshakeRejectsUnknownSender(t *testing.T) {
	reg := registry.New(registry.NetworkSolanaClass, mustCapsValidator(t))

	clientIdentity, _ := crypto.GenerateEd25519Keypair()
	serverKem, _ := crypto.GenerateX25519Keypair()

	now := time.Unix(1_700_000_000, 0)
	req, err := BuildRequest("did:sage:ethereum:0xunregistered", "did:sage:ethereum:0xserver", clientIdentity.Private[:], serverKem.Public[:], now)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	if _, err := Accept(reg, req.Envelope, serverKem.Private[:], now, 5*time.Minute); err == nil {
		t.Fatal("expected unregistered sender to be rejected")
	}
}

func TestHandshakeRejectsDeactivatedSender(t *testing.T) {
	reg := registry.New(registry.NetworkSolanaClass, mustCapsValidator(t))

	clientIdentity, _ := crypto.GenerateEd25519Keypair()
	serverKem, _ := crypto.GenerateX25519Keypair()
	clientDID := "did:sage:ethereum:0xclient"
	registerClient(t, reg, clientDID, "owner-1", clientIdentity.Public, clientIdentity.Private)
	if err := reg.DeactivateAgent(clientDID, "owner-1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	now := time.Unix(1_700_000_000, 0)
	req, err := BuildRequest(clientDID, "did:sage:ethereum:0xserver", clientIdentity.Private[:], serverKem.Public[:], now)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if _, err := Accept(reg, req.Envelope, serverKem.Private[:], now, 5*time.Minute); err == nil {
		t.Fatal("expected deactivated sender to be rejected")
	}
}

func TestHandshakeRejectsWrongServerKey(t *testing.T) {
	reg := registry.New(registry.NetworkSolanaClass, mustCapsValidator(t))

	clientIdentity, _ := crypto.GenerateEd25519Keypair()
	serverKem, _ := crypto.GenerateX25519Keypair()
	wrongServerKem, _ := crypto.GenerateX25519Keypair()
	clientDID := "did:sage:ethereum:0xclient"
	registerClient(t, reg, clientDID, "owner-1", clientIdentity.Public, clientIdentity.Private)

	now := time.Unix(1_700_000_000, 0)
	req, err := BuildRequest(clientDID, "did:sage:ethereum:0xserver", clientIdentity.Private[:], serverKem.Public[:], now)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	if _, err := Accept(reg, req.Envelope, wrongServerKem.Private[:], now, 5*time.Minute); err == nil {
		t.Fatal("expected decapsulation under the wrong server key to fail")
	}
}
