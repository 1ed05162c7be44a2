// Package repository defines storage interfaces for the sync server.
package repository

import (
	"context"

	"github.com/uledev/taskchain/internal/model"
)

// BlobRepository stores one encrypted snapshot per sync chain.
type BlobRepository interface {
	// Get returns the blob for a public key, or errs.ErrNotFound.
	Get(ctx context.Context, publicKey string) (*model.Blob, error)

	// Put inserts or replaces the blob for its public key.
	Put(ctx context.Context, blob model.Blob) error
}
