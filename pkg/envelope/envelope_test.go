package envelope

import (
	"testing"
	"time"

	"github.com/sage-x-project/sage/pkg/crypto"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := crypto.GenerateEd25519Keypair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	env, err := Sign("did:sage:ethereum:0xclient", "did:sage:ethereum:0xserver", []byte("payload"), now.Unix(), kp.Private[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := Verify(env, kp.Public[:], now, DefaultFreshnessWindow)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("expected round-trip payload, got %q", got)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	kp, _ := crypto.GenerateEd25519Keypair()
	signedAt := time.Unix(1_700_000_000, 0)
	env, _ := Sign("did:sage:ethereum:0xclient", "did:sage:ethereum:0xserver", []byte("payload"), signedAt.Unix(), kp.Private[:])

	tooLate := signedAt.Add(DefaultFreshnessWindow + time.Second)
	if _, err := Verify(env, kp.Public[:], tooLate, DefaultFreshnessWindow); err == nil {
		t.Fatal("expected stale timestamp to be rejected")
	}
}

func TestVerifyRejectsFutureTimestampOutsideWindow(t *testing.T) {
	kp, _ := crypto.GenerateEd25519Keypair()
	signedAt := time.Unix(1_700_000_000, 0)
	env, _ := Sign("did:sage:ethereum:0xclient", "did:sage:ethereum:0xserver", []byte("payload"), signedAt.Unix(), kp.Private[:])

	tooEarly := signedAt.Add(-DefaultFreshnessWindow - time.Second)
	if _, err := Verify(env, kp.Public[:], tooEarly, DefaultFreshnessWindow); err == nil {
		t.Fatal("expected far-future-relative timestamp to be rejected")
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	kp, _ := crypto.GenerateEd25519Keypair()
	now := time.Unix(1_700_000_000, 0)
	env, _ := Sign("did:sage:ethereum:0xclient", "did:sage:ethereum:0xserver", []byte("payload"), now.Unix(), kp.Private[:])

	env.ReceiverDID = "did:sage:ethereum:0xattacker"
	if _, err := Verify(env, kp.Public[:], now, DefaultFreshnessWindow); err == nil {
		t.Fatal("expected tampered field to invalidate signature")
	}
}

func TestVerifyRejectsMissingFields(t *testing.T) {
	kp, _ := crypto.GenerateEd25519Keypair()
	now := time.Unix(1_700_000_000, 0)
	env, _ := Sign("did:sage:ethereum:0xclient", "did:sage:ethereum:0xserver", []byte("payload"), now.Unix(), kp.Private[:])

	env.Signature = ""
	if _, err := Verify(env, kp.Public[:], now, DefaultFreshnessWindow); err == nil {
		t.Fatal("expected missing signature field to be rejected")
	}
}
