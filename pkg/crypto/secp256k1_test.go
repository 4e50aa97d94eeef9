package crypto

import "testing"

func TestSecp256k1SignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateSecp256k1Keypair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	msg := []byte("evm-interop registration")
	sig := SignSecp256k1(msg, kp.Private)
	if !VerifySecp256k1(msg, sig, kp.Public) {
		t.Fatal("expected signature to verify")
	}

	other, _ := GenerateSecp256k1Keypair()
	if VerifySecp256k1(msg, sig, other.Public) {
		t.Fatal("expected verification to fail under wrong public key")
	}
}

func TestParseSecp256k1PublicKey(t *testing.T) {
	kp, err := GenerateSecp256k1Keypair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	parsed, err := ParseSecp256k1PublicKey(kp.Secp256k1PublicKeyBytes())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.SerializeCompressed()[0] == 0 {
		t.Fatal("expected non-zero compressed key")
	}
}
