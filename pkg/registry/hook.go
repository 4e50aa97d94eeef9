package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/sage-x-project/sage/pkg/crypto"
	"github.com/sage-x-project/sage/pkg/sageerr"
)

// MaxRegistrationsPerDay and RegistrationCooldown mirror the Solana hook
// program's MAX_REGISTRATIONS_PER_DAY / REGISTRATION_COOLDOWN constants.
const (
	MaxRegistrationsPerDay = 5
	RegistrationCooldown   = 60 * time.Second
)

// userState is one principal's per-day registration counter plus blacklist
// flag, addressed by userStateAddress(principal) in the on-chain model.
type userState struct {
	registrationCount int
	lastRegistration  time.Time
	lastDay           int64
	blacklisted       bool
}

// VerificationHook is the policy sub-state-machine guarding registration
// attempts: enabled/disabled, per-principal cooldown, daily quota, and
// blacklist. Grounded on contracts/solana/programs/sage-verification-hook.
type VerificationHook struct {
	mu sync.Mutex

	authority string
	enabled   bool
	users     map[string]*userState // keyed by userStateAddress(principal).String()

	registry *Registry
}

// NewVerificationHook constructs a hook wired to registry for event
// publication (RegistrationRecorded, BlacklistUpdated are emitted through
// the same event bus as registry events).
func NewVerificationHook(registry *Registry) *VerificationHook {
	return &VerificationHook{
		users:    make(map[string]*userState),
		registry: registry,
	}
}

// Initialize sets the hook's authority and enables it. Authority-signed,
// called once.
func (h *VerificationHook) Initialize(authority string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.authority != "" {
		return sageerr.New(sageerr.CodeValidation, "hook already initialized")
	}
	h.authority = authority
	h.enabled = true
	return nil
}

// InitializeUserState lazily creates a principal's UserState record; a
// no-op if it already exists, matching the on-chain program's
// init_if_needed semantics on VerifyRegistration's user_state account.
func (h *VerificationHook) InitializeUserState(principal string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ensureUser(principal)
}

func (h *VerificationHook) ensureUser(principal string) *userState {
	key := userStateAddress([]byte(principal)).String()
	u, ok := h.users[key]
	if !ok {
		u = &userState{}
		h.users[key] = u
	}
	return u
}

// VerifyRegistration runs the checks of spec.md §4.5 in order: enabled,
// blacklist, cooldown, daily quota (with its unconditional day-rollover
// reset applied before the quota check), DID shape, signature. Returns the
// specific failure reason; never a generic error.
func (h *VerificationHook) VerifyRegistration(did, principal string, message, signature, signerPublicKey []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.enabled {
		return sageerr.New(sageerr.CodeHookDisabled, "verification hook disabled")
	}

	user := h.ensureUser(principal)
	if user.blacklisted {
		return sageerr.New(sageerr.CodeBlacklisted, "principal is blacklisted")
	}

	now := time.Now()
	if !user.lastRegistration.IsZero() {
		if now.Before(user.lastRegistration.Add(RegistrationCooldown)) {
			return sageerr.New(sageerr.CodeCooldownActive, "registration cooldown active")
		}
	}

	// Day-rollover reset is unconditional: it happens even if the quota
	// check below will still fail, per spec.md §4.5.
	currentDay := now.Unix() / 86400
	if user.lastDay != currentDay {
		user.registrationCount = 0
		user.lastDay = currentDay
	}
	if user.registrationCount >= MaxRegistrationsPerDay {
		return sageerr.New(sageerr.CodeDailyLimitReached, "daily registration limit reached")
	}

	if !strings.HasPrefix(did, "did:") || len(did) < 10 {
		return sageerr.New(sageerr.CodeValidation, "invalid DID format")
	}

	if !crypto.Verify(message, signature, signerPublicKey) {
		return sageerr.New(sageerr.CodeInvalidSignature, "registration message signature invalid")
	}

	return nil
}

// AfterRegistration records a completed registration: increments the
// per-day counter and timestamps the cooldown. Called only after the
// registry itself has committed the registration (spec.md §5); idempotent
// relative to the committed registry state is the caller's responsibility,
// not this method's, since each call always advances the counter by one.
func (h *VerificationHook) AfterRegistration(principal string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	user := h.ensureUser(principal)
	user.registrationCount++
	user.lastRegistration = time.Now()

	if h.registry != nil {
		h.registry.publish(Event{
			Kind:      EventRegistrationRecorded,
			Principal: principal,
			At:        user.lastRegistration,
			Detail:    map[string]interface{}{"count": user.registrationCount},
		})
	}
}

// setBlacklist is shared by AddToBlacklist/RemoveFromBlacklist; both are
// idempotent and authority-signed.
func (h *VerificationHook) setBlacklist(authority, principal string, blacklisted bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if authority != h.authority {
		return sageerr.New(sageerr.CodeInvalidSignature, "caller is not the hook authority")
	}
	user := h.ensureUser(principal)
	user.blacklisted = blacklisted

	if h.registry != nil {
		h.registry.publish(Event{
			Kind:      EventBlacklistUpdated,
			Principal: principal,
			At:        time.Now(),
			Detail:    map[string]interface{}{"blacklisted": blacklisted, "authority": authority},
		})
	}
	return nil
}

// AddToBlacklist marks principal blacklisted. Authority-signed, idempotent.
func (h *VerificationHook) AddToBlacklist(authority, principal string) error {
	return h.setBlacklist(authority, principal, true)
}

// RemoveFromBlacklist clears principal's blacklist flag. Authority-signed,
// idempotent.
func (h *VerificationHook) RemoveFromBlacklist(authority, principal string) error {
	return h.setBlacklist(authority, principal, false)
}

// Enabled reports whether the hook currently enforces its checks.
func (h *VerificationHook) Enabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enabled
}

// SetEnabled toggles hook enforcement. Authority-signed.
func (h *VerificationHook) SetEnabled(authority string, enabled bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if authority != h.authority {
		return sageerr.New(sageerr.CodeInvalidSignature, "caller is not the hook authority")
	}
	h.enabled = enabled
	return nil
}
