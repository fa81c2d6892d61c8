package common

import "github.com/pkg/errors"

// Error taxonomy shared by the verification and approval services.
var (
	// ErrUnauthenticated no current identity
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden identity lacks the required admin role
	ErrForbidden = errors.New("forbidden")

	// ErrMalformedInput bad address, url, contract or signature format
	ErrMalformedInput = errors.New("malformed input")

	// ErrInvalidSignature recovered signer does not match the claimed address
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrConflict url owned by another developer, or wallet already linked
	ErrConflict = errors.New("conflict")

	// ErrNotFound entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrRemoteUnavailable remote manifest or file could not be fetched
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrChallengeNotFound no pending domain challenge
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrChallengeExpired pending domain challenge outlived its ttl
	ErrChallengeExpired = errors.New("challenge expired")

	// ErrContentMismatch published content differs from the issued token
	ErrContentMismatch = errors.New("content mismatch")

	// ErrFetchFailed challenge file host unreachable
	ErrFetchFailed = errors.New("fetch failed")

	// ErrInvalidTransition admin action not allowed from the current app status
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStorageUnavailable persistence layer failure, retryable
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Malformed wraps ErrMalformedInput with a caller-facing detail.
func Malformed(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformedInput, format, args...)
}
