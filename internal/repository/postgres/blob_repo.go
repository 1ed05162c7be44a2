package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/uledev/taskchain/internal/errs"
	"github.com/uledev/taskchain/internal/model"
)

// BlobRepo implements BlobRepository using PostgreSQL. One row per chain,
// replaced wholesale on every push.
type BlobRepo struct{ db *DB }

// NewBlobRepo constructs a blob repository.
func NewBlobRepo(db *DB) *BlobRepo { return &BlobRepo{db: db} }

// Get returns the stored blob for a public key.
func (r *BlobRepo) Get(ctx context.Context, publicKey string) (*model.Blob, error) {
	const q = `
SELECT public_key, encrypted_string, created_at, updated_at
FROM blobs WHERE public_key=$1`
	row := r.db.Pool.QueryRow(ctx, q, publicKey)
	var b model.Blob
	if err := row.Scan(&b.PublicKey, &b.EncryptedString, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Put replaces the blob for its public key.
func (r *BlobRepo) Put(ctx context.Context, blob model.Blob) error {
	const q = `
INSERT INTO blobs (public_key, encrypted_string, created_at, updated_at)
VALUES ($1,$2,$3,now())
ON CONFLICT (public_key) DO UPDATE
SET encrypted_string=EXCLUDED.encrypted_string,
    created_at=EXCLUDED.created_at,
    updated_at=now()`
	_, err := r.db.Pool.Exec(ctx, q, blob.PublicKey, blob.EncryptedString, blob.CreatedAt)
	return err
}
