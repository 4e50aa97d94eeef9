// Package sageerr defines the typed error taxonomy shared by the crypto,
// HPKE, session, registry, and envelope layers.
package sageerr

import (
	"errors"
	"fmt"
)

// Code identifies the machine-readable reason for a failure, independent of
// the human-readable message wrapped around it.
type Code string

const (
	CodeValidation         Code = "VALIDATION"
	CodeInvalidSignature   Code = "INVALID_SIGNATURE"
	CodeUnsupportedKeyType Code = "UNSUPPORTED_KEY_TYPE"
	CodeInvalidKeyIndex    Code = "INVALID_KEY_INDEX"
	CodeKeyAlreadyRevoked  Code = "KEY_ALREADY_REVOKED"
	CodeCannotRevokeLast   Code = "CANNOT_REVOKE_LAST_KEY"
	CodeTooManyKeys        Code = "TOO_MANY_KEYS"
	CodeAgentNotActive     Code = "AGENT_NOT_ACTIVE"
	CodeAgentAlreadyInact  Code = "AGENT_ALREADY_INACTIVE"
	CodeAgentNotFound      Code = "AGENT_NOT_FOUND"
	CodeAgentExists        Code = "AGENT_ALREADY_EXISTS"
	CodeCooldownActive     Code = "COOLDOWN_ACTIVE"
	CodeDailyLimitReached  Code = "DAILY_LIMIT_REACHED"
	CodeBlacklisted        Code = "BLACKLISTED"
	CodeHookDisabled       Code = "HOOK_DISABLED"
	CodeSessionExpired     Code = "SESSION_EXPIRED"
	CodeSessionNotFound    Code = "SESSION_NOT_FOUND"
	CodeTooManySessions    Code = "TOO_MANY_SESSIONS"
	CodeDecryption         Code = "DECRYPTION"
	CodeNetwork            Code = "NETWORK"
	CodeCSPRNGUnavailable  Code = "CSPRNG_UNAVAILABLE"
	CodeMalformedEnvelope  Code = "MALFORMED_ENVELOPE"
	CodeStaleTimestamp     Code = "STALE_TIMESTAMP"
	CodeSequenceRegression Code = "SEQUENCE_REGRESSION"
)

// Error is the taxonomy's concrete type: a Code plus a human-readable
// message and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("sage: %s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("sage: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an *Error carrying cause as its Unwrap target.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Is reports whether err is a *Error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
