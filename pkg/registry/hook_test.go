package registry

import (
	"testing"
	"time"

	"github.com/sage-x-project/sage/pkg/crypto"
)

func newTestHook(t *testing.T) (*VerificationHook, *Registry) {
	t.Helper()
	r := New(NetworkSolanaClass, mustCaps(t))
	h := NewVerificationHook(r)
	if err := h.Initialize("hook-authority"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return h, r
}

func TestVerifyRegistrationDisabledHook(t *testing.T) {
	h, _ := newTestHook(t)
	if err := h.SetEnabled("hook-authority", false); err != nil {
		t.Fatalf("set enabled: %v", err)
	}
	kp, _ := crypto.GenerateEd25519Keypair()
	msg := []byte("p" + "did:sage:ethereum:0xAlice")
	sig, _ := crypto.Sign(msg, kp.Private[:])
	if err := h.VerifyRegistration("did:sage:ethereum:0xAlice", "p", msg, sig, kp.Public[:]); err == nil {
		t.Fatal("expected HookDisabled error")
	}
}

func TestVerifyRegistrationBlacklisted(t *testing.T) {
	h, _ := newTestHook(t)
	if err := h.AddToBlacklist("hook-authority", "bad-principal"); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	kp, _ := crypto.GenerateEd25519Keypair()
	did := "did:sage:ethereum:0xAlice"
	msg := []byte("bad-principal" + did)
	sig, _ := crypto.Sign(msg, kp.Private[:])
	if err := h.VerifyRegistration(did, "bad-principal", msg, sig, kp.Public[:]); err == nil {
		t.Fatal("expected Blacklisted error")
	}

	if err := h.RemoveFromBlacklist("hook-authority", "bad-principal"); err != nil {
		t.Fatalf("unblacklist: %v", err)
	}
	if err := h.VerifyRegistration(did, "bad-principal", msg, sig, kp.Public[:]); err != nil {
		t.Fatalf("expected success after unblacklisting: %v", err)
	}
}

func TestVerifyRegistrationCooldown(t *testing.T) {
	h, _ := newTestHook(t)
	kp, _ := crypto.GenerateEd25519Keypair()
	principal := "p1"
	did := "did:sage:ethereum:0xAlice"
	msg := []byte(principal + did)
	sig, _ := crypto.Sign(msg, kp.Private[:])

	if err := h.VerifyRegistration(did, principal, msg, sig, kp.Public[:]); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	h.AfterRegistration(principal)

	if err := h.VerifyRegistration(did, principal, msg, sig, kp.Public[:]); err == nil {
		t.Fatal("expected CooldownActive on immediate re-registration")
	}
}

func TestVerifyRegistrationDailyQuota(t *testing.T) {
	h, _ := newTestHook(t)
	kp, _ := crypto.GenerateEd25519Keypair()
	principal := "p1"
	did := "did:sage:ethereum:0xAlice"
	msg := []byte(principal + did)
	sig, _ := crypto.Sign(msg, kp.Private[:])

	user := h.ensureUser(principal)
	user.registrationCount = MaxRegistrationsPerDay
	user.lastDay = time.Now().Unix() / 86400 // same day, so no rollover reset

	if err := h.VerifyRegistration(did, principal, msg, sig, kp.Public[:]); err == nil {
		t.Fatal("expected DailyLimitReached")
	}
}

func TestVerifyRegistrationDailyQuotaResetsOnNewDay(t *testing.T) {
	h, _ := newTestHook(t)
	kp, _ := crypto.GenerateEd25519Keypair()
	principal := "p1"
	did := "did:sage:ethereum:0xAlice"
	msg := []byte(principal + did)
	sig, _ := crypto.Sign(msg, kp.Private[:])

	user := h.ensureUser(principal)
	user.registrationCount = MaxRegistrationsPerDay
	user.lastDay = 1 // a day far in the past relative to time.Now()

	if err := h.VerifyRegistration(did, principal, msg, sig, kp.Public[:]); err != nil {
		t.Fatalf("expected day rollover to reset quota: %v", err)
	}
}

func TestVerifyRegistrationRejectsInvalidSignature(t *testing.T) {
	h, _ := newTestHook(t)
	kp, _ := crypto.GenerateEd25519Keypair()
	other, _ := crypto.GenerateEd25519Keypair()
	principal := "p1"
	did := "did:sage:ethereum:0xAlice"
	msg := []byte(principal + did)
	sig, _ := crypto.Sign(msg, kp.Private[:])

	if err := h.VerifyRegistration(did, principal, msg, sig, other.Public[:]); err == nil {
		t.Fatal("expected signature verification failure")
	}
}

func TestVerifyRegistrationRejectsMalformedDID(t *testing.T) {
	h, _ := newTestHook(t)
	kp, _ := crypto.GenerateEd25519Keypair()
	principal := "p1"
	did := "nope"
	msg := []byte(principal + did)
	sig, _ := crypto.Sign(msg, kp.Private[:])

	if err := h.VerifyRegistration(did, principal, msg, sig, kp.Public[:]); err == nil {
		t.Fatal("expected malformed-DID rejection")
	}
}

func TestSetEnabledRequiresAuthority(t *testing.T) {
	h, _ := newTestHook(t)
	if err := h.SetEnabled("not-authority", false); err == nil {
		t.Fatal("expected non-authority SetEnabled to fail")
	}
	if !h.Enabled() {
		t.Fatal("expected hook to remain enabled after rejected call")
	}
}
