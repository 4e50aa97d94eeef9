package hpke

import "testing"

import "github.com/sage-x-project/sage/pkg/crypto"

func TestSenderReceiverDeriveIdenticalKeys(t *testing.T) {
	receiverKP, err := crypto.GenerateX25519Keypair()
	if err != nil {
		t.Fatalf("generate receiver kp: %v", err)
	}

	sender, encapsulatedKey, err := SenderSetup(receiverKP.Public[:])
	if err != nil {
		t.Fatalf("sender setup: %v", err)
	}
	receiver, err := ReceiverSetup(encapsulatedKey, receiverKP.Private[:])
	if err != nil {
		t.Fatalf("receiver setup: %v", err)
	}

	pt := []byte("hello session")
	ct, err := sender.Seal(pt)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	got, err := receiver.Open(ct)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(got) != string(pt) {
		t.Fatalf("expected round-trip, got %q", got)
	}
}

func TestSequenceAdvancesInLockstep(t *testing.T) {
	receiverKP, _ := crypto.GenerateX25519Keypair()
	sender, encapsulatedKey, _ := SenderSetup(receiverKP.Public[:])
	receiver, _ := ReceiverSetup(encapsulatedKey, receiverKP.Private[:])

	for i := 0; i < 3; i++ {
		ct, err := sender.Seal([]byte("msg"))
		if err != nil {
			t.Fatalf("seal %d: %v", i, err)
		}
		if _, err := receiver.Open(ct); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
	}
	if sender.Sequence() != 3 {
		t.Fatalf("expected sender sequence 3, got %d", sender.Sequence())
	}
}

func TestOpenRejectsSequenceRegression(t *testing.T) {
	receiverKP, _ := crypto.GenerateX25519Keypair()
	sender, encapsulatedKey, _ := SenderSetup(receiverKP.Public[:])
	receiver, _ := ReceiverSetup(encapsulatedKey, receiverKP.Private[:])

	first, _ := sender.Seal([]byte("first"))
	second, _ := sender.Seal([]byte("second"))

	if _, err := receiver.Open(second); err != nil {
		t.Fatalf("expected second to open first: %v", err)
	}
	if _, err := receiver.Open(first); err == nil {
		t.Fatal("expected replay of an earlier sequence to be rejected")
	}
}

func TestOpenRejectsShortCiphertext(t *testing.T) {
	ctx, err := New(make([]byte, crypto.KeySize))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := ctx.Open(make([]byte, 4)); err == nil {
		t.Fatal("expected error for ciphertext shorter than nonce")
	}
}

func TestAEADTamperDetected(t *testing.T) {
	receiverKP, _ := crypto.GenerateX25519Keypair()
	sender, encapsulatedKey, _ := SenderSetup(receiverKP.Public[:])
	receiver, _ := ReceiverSetup(encapsulatedKey, receiverKP.Private[:])

	ct, _ := sender.Seal([]byte("response"))
	ct[len(ct)-1] ^= 0xFF
	if _, err := receiver.Open(ct); err == nil {
		t.Fatal("expected tampered ciphertext to fail to open")
	}
}

func TestNewRejectsWrongKeyLength(t *testing.T) {
	if _, err := New(make([]byte, 10)); err == nil {
		t.Fatal("expected error for short key")
	}
}
