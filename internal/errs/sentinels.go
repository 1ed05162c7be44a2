// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across crypto/sync/store layers.
var (
	// ErrInvalidPhrase indicates a recovery phrase that cannot yield a keypair.
	ErrInvalidPhrase = errors.New("invalid recovery phrase")

	// ErrMalformedEnvelope indicates a structurally invalid encrypted envelope.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrTamperedOrWrongKey indicates AEAD verification failure (tampering or key mismatch).
	ErrTamperedOrWrongKey = errors.New("tampered ciphertext or wrong key")

	// ErrInvalidPayloadShape indicates the decrypted payload is not a JSON object.
	ErrInvalidPayloadShape = errors.New("invalid payload shape")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNetwork indicates a transport failure talking to the sync server.
	ErrNetwork = errors.New("network error")

	// ErrUnauthorized indicates the sync server rejected the chain credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotHydrated indicates the local store has not finished loading persisted state.
	ErrNotHydrated = errors.New("store not hydrated")

	// ErrRateLimited indicates the server temporarily refuses pushes for a chain.
	ErrRateLimited = errors.New("rate limited")
)
