package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for token verification. Each maps to a distinct failure
// kind surfaced to the client; anything outside this set is treated
// fail-closed as an authentication failure.
var (
	// ErrMissingToken indicates that no Authorization header was present.
	ErrMissingToken = errors.New("missing authorization token")

	// ErrMalformedHeader indicates that the Authorization header did not
	// have the form "Bearer <token>".
	ErrMalformedHeader = errors.New("invalid authorization header format")

	// ErrInvalidSignature indicates that the token is malformed or its
	// signature does not verify against the provider's signing keys.
	ErrInvalidSignature = errors.New("invalid auth token")

	// ErrInactiveToken indicates that introspection reported the token
	// as not active.
	ErrInactiveToken = errors.New("inactive auth token")

	// ErrTokenExpired indicates that the token's expiry is in the past.
	ErrTokenExpired = errors.New("auth token expired")

	// ErrProviderUnreachable indicates that the identity provider could
	// not be reached or did not answer in time.
	ErrProviderUnreachable = errors.New("identity provider unreachable")
)

// VerificationError wraps a verification failure with the sub-step it
// occurred in, preserving the cause for errors.Is matching.
type VerificationError struct {
	Step    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("verification failed (%s): %s: %v", e.Step, e.Message, e.Cause)
	}
	return fmt.Sprintf("verification failed (%s): %s", e.Step, e.Message)
}

// Unwrap returns the underlying error.
func (e *VerificationError) Unwrap() error {
	return e.Cause
}

// NewVerificationError creates a new VerificationError.
func NewVerificationError(step, message string, cause error) *VerificationError {
	return &VerificationError{
		Step:    step,
		Message: message,
		Cause:   cause,
	}
}

// FailureReason returns a short machine-readable label for a verification
// error, used as a metric label and log field.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return "missing_token"
	case errors.Is(err, ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrInactiveToken):
		return "inactive"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrProviderUnreachable):
		return "provider_unreachable"
	default:
		return "unclassified"
	}
}
