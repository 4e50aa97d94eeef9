package session

import (
	"testing"
	"time"

	"github.com/sage-x-project/sage/pkg/crypto"
	"github.com/sage-x-project/sage/pkg/hpke"
)

func newTestContext(t *testing.T) *hpke.Context {
	t.Helper()
	ctx, err := hpke.New(make([]byte, crypto.KeySize))
	if err != nil {
		t.Fatalf("new hpke context: %v", err)
	}
	return ctx
}

func TestEncryptDecryptUpdatesActivityAndCount(t *testing.T) {
	s := New(NewID(), "did:sage:ethereum:0xalice", "did:sage:ethereum:0xserver", newTestContext(t), time.Hour)

	if s.MessageCount != 0 {
		t.Fatalf("expected message count 0, got %d", s.MessageCount)
	}
	ct, err := s.Encrypt([]byte("hi"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if s.MessageCount != 1 {
		t.Fatalf("expected message count 1, got %d", s.MessageCount)
	}
	if len(ct) == 0 {
		t.Fatal("expected non-empty ciphertext")
	}
}

func TestExpiredSessionRejectsOperations(t *testing.T) {
	s := New(NewID(), "did:sage:ethereum:0xalice", "did:sage:ethereum:0xserver", newTestContext(t), -time.Second)
	if !s.Expired(time.Now()) {
		t.Fatal("expected session to be expired")
	}
	if _, err := s.Encrypt([]byte("hi")); err == nil {
		t.Fatal("expected encrypt to fail on expired session")
	}
}

func TestDecryptFailureTearsDownSession(t *testing.T) {
	key := make([]byte, crypto.KeySize)
	senderCtx, err := hpke.New(key)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s := New(NewID(), "did:sage:ethereum:0xalice", "did:sage:ethereum:0xserver", senderCtx, time.Hour)

	other, err := hpke.New(key)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ct, err := other.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	ct[len(ct)-1] ^= 0xFF

	if _, err := s.Decrypt(ct); err == nil {
		t.Fatal("expected decrypt to fail on tampered ciphertext")
	}
	if _, err := s.Decrypt(ct); err == nil {
		t.Fatal("expected session to stay torn down on subsequent calls")
	}
}

func TestManagerCapacityRejectsThenAcceptsAfterRemove(t *testing.T) {
	m := NewManager(2)
	s1 := New(NewID(), "c1", "srv", newTestContext(t), time.Hour)
	s2 := New(NewID(), "c2", "srv", newTestContext(t), time.Hour)
	s3 := New(NewID(), "c3", "srv", newTestContext(t), time.Hour)

	if err := m.Add(s1); err != nil {
		t.Fatalf("add s1: %v", err)
	}
	if err := m.Add(s2); err != nil {
		t.Fatalf("add s2: %v", err)
	}
	if err := m.Add(s3); err == nil {
		t.Fatal("expected TooManySessions")
	}

	m.Remove(s1.ID)
	if err := m.Add(s3); err != nil {
		t.Fatalf("expected add to succeed after remove: %v", err)
	}
	if m.Count() != 2 {
		t.Fatalf("expected count 2, got %d", m.Count())
	}
}

func TestManagerSweepsExpiredBeforeCapacityCheck(t *testing.T) {
	m := NewManager(1)
	expired := New(NewID(), "c1", "srv", newTestContext(t), -time.Second)
	if err := m.Add(expired); err != nil {
		t.Fatalf("add expired: %v", err)
	}

	fresh := New(NewID(), "c2", "srv", newTestContext(t), time.Hour)
	if err := m.Add(fresh); err != nil {
		t.Fatalf("expected sweep to make room: %v", err)
	}
}

func TestManagerGetRemovesExpired(t *testing.T) {
	m := NewManager(10)
	s := New(NewID(), "c1", "srv", newTestContext(t), -time.Second)
	_ = m.Add(s)
	if _, err := m.Get(s.ID); err == nil {
		t.Fatal("expected not-found for expired session")
	}
}

func TestManagerRemoveIdempotent(t *testing.T) {
	m := NewManager(10)
	m.Remove("does-not-exist")
}

func TestManagerClear(t *testing.T) {
	m := NewManager(10)
	_ = m.Add(New(NewID(), "c1", "srv", newTestContext(t), time.Hour))
	m.Clear()
	if m.Count() != 0 {
		t.Fatalf("expected 0 after clear, got %d", m.Count())
	}
}
