// Package limiter rate limits pushes per sync chain.
//
// The transport's only credential is the chain's public key, so anyone who
// knows it may overwrite the blob. The limiter caps how fast that can
// happen per chain.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter caps push frequency per chain.
type Limiter interface {
	// Allow records a push attempt and reports whether it may proceed,
	// with an optional retry-after.
	Allow(ctx context.Context, keyHash []byte) (bool, time.Duration, error)
}

// HashKey hashes the chain credential; raw public keys are never stored
// in limiter state.
func HashKey(publicKeyHex string) []byte {
	sum := sha256.Sum256([]byte(publicKeyHex))
	return sum[:]
}

// Unlimited never blocks. For development and tests.
type Unlimited struct{}

// Allow always permits the push.
func (Unlimited) Allow(context.Context, []byte) (bool, time.Duration, error) {
	return true, 0, nil
}
