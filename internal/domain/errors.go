package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without
// leaking infrastructure details. The verification engines return only
// these kinds; message text is derived from the kind at the transport
// layer and never reveals record state.
var (
	// ErrInvalidToken covers a missing, expired, or mismatched code/token.
	// Callers cannot distinguish the three cases by design.
	ErrInvalidToken = errors.New("invalid token")

	// ErrAttemptsExceeded is terminal for the current code: the record has
	// been deleted and the caller must request a new one.
	ErrAttemptsExceeded = errors.New("attempts exceeded")

	// ErrAlreadyVerified means the credential was verified before this call.
	ErrAlreadyVerified = errors.New("already verified")

	// ErrCredentialExists means an account already holds the email or phone.
	ErrCredentialExists = errors.New("credential already exists")

	// ErrTransient marks a retryable infrastructure failure. Atomic store
	// operations get a single immediate retry before it surfaces.
	ErrTransient = errors.New("transient store error")

	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrValidationFailed = errors.New("validation failed")
)
