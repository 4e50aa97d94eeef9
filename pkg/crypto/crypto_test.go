package crypto

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateEd25519Keypair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	msg := []byte("sage handshake")
	sig, err := Sign(msg, kp.Private[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !Verify(msg, sig, kp.Public[:]) {
		t.Fatal("expected signature to verify")
	}

	flipped := append([]byte(nil), msg...)
	flipped[0] ^= 0xFF
	if Verify(flipped, sig, kp.Public[:]) {
		t.Fatal("expected verification to fail on flipped message")
	}

	badSig := append([]byte(nil), sig...)
	badSig[0] ^= 0xFF
	if Verify(msg, badSig, kp.Public[:]) {
		t.Fatal("expected verification to fail on flipped signature")
	}

	other, _ := GenerateEd25519Keypair()
	if Verify(msg, sig, other.Public[:]) {
		t.Fatal("expected verification to fail under wrong public key")
	}
}

func TestVerifyRejectsMalformedLengths(t *testing.T) {
	if Verify([]byte("x"), make([]byte, 10), make([]byte, KeySize)) {
		t.Fatal("expected false for short signature")
	}
	if Verify([]byte("x"), make([]byte, SignatureSize), make([]byte, 10)) {
		t.Fatal("expected false for short public key")
	}
}

func TestX25519DH(t *testing.T) {
	a, err := GenerateX25519Keypair()
	if err != nil {
		t.Fatalf("generate a: %v", err)
	}
	b, err := GenerateX25519Keypair()
	if err != nil {
		t.Fatalf("generate b: %v", err)
	}

	sharedA, err := DH(a.Private[:], b.Public[:])
	if err != nil {
		t.Fatalf("dh a: %v", err)
	}
	sharedB, err := DH(b.Private[:], a.Public[:])
	if err != nil {
		t.Fatalf("dh b: %v", err)
	}
	if string(sharedA) != string(sharedB) {
		t.Fatal("expected matching shared secrets")
	}
}

func TestDHRejectsMalformedLengths(t *testing.T) {
	if _, err := DH(make([]byte, 10), make([]byte, KeySize)); err == nil {
		t.Fatal("expected error for short private key")
	}
}

func TestHKDFDeterministic(t *testing.T) {
	secret := []byte("shared-secret")
	info := []byte("SAGE HPKE v1")
	out1, err := HKDF(secret, info, 32)
	if err != nil {
		t.Fatalf("hkdf: %v", err)
	}
	out2, err := HKDF(secret, info, 32)
	if err != nil {
		t.Fatalf("hkdf: %v", err)
	}
	if string(out1) != string(out2) {
		t.Fatal("expected deterministic hkdf output")
	}
	if len(out1) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(out1))
	}
}

func TestAEADSealOpenRoundTrip(t *testing.T) {
	key := make([]byte, KeySize)
	nonce := make([]byte, NonceSize)
	for i := range key {
		key[i] = byte(i)
	}
	pt := []byte("confidential payload")

	ct, err := AEADSeal(pt, key, nonce)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	got, err := AEADOpen(ct, key, nonce)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(got) != string(pt) {
		t.Fatalf("expected round-trip, got %q", got)
	}
}

func TestAEADOpenRejectsTamperedCiphertext(t *testing.T) {
	key := make([]byte, KeySize)
	nonce := make([]byte, NonceSize)
	ct, err := AEADSeal([]byte("hello"), key, nonce)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	ct[len(ct)-1] ^= 0xFF
	if _, err := AEADOpen(ct, key, nonce); err == nil {
		t.Fatal("expected tamper to be detected")
	}
}

func TestB64RoundTrip(t *testing.T) {
	data := []byte{0x00, 0x01, 0xFF, 0x7F}
	encoded := B64Encode(data)
	decoded, err := B64Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded) != string(data) {
		t.Fatal("expected round-trip")
	}
	if _, err := B64Decode("not valid base64!!"); err == nil {
		t.Fatal("expected error for malformed base64")
	}
}

func TestSHA256(t *testing.T) {
	sum := SHA256([]byte("sage"))
	if len(sum) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(sum))
	}
}
