package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
)

// Kind partitions the blob namespace.
type Kind string

const (
	KindClip    Kind = "clips"
	KindSubclip Kind = "subclips"
)

// Hash returns the hex sha256 of data. Blobs are addressed by this value.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BlobStore is a content-addressed view over a Storage. Identical bytes
// always land on the same key, so repeated uploads are harmless.
type BlobStore struct {
	storage Storage
}

// NewBlobStore wraps s.
func NewBlobStore(s Storage) *BlobStore {
	return &BlobStore{storage: s}
}

// Key returns the object path for a blob.
func Key(kind Kind, hash string) string {
	return path.Join(string(kind), hash)
}

// Put stores data under its hash and returns the hash.
func (b *BlobStore) Put(ctx context.Context, kind Kind, data []byte) (string, error) {
	hash := Hash(data)
	if err := b.storage.Upload(ctx, Key(kind, hash), bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("storage: put %s/%s: %w", kind, hash, err)
	}
	return hash, nil
}

// Get returns the full contents of a blob.
func (b *BlobStore) Get(ctx context.Context, kind Kind, hash string) ([]byte, error) {
	rc, err := b.storage.Download(ctx, Key(kind, hash))
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s/%s: %w", kind, hash, err)
	}
	return data, nil
}

// Has reports whether a blob exists.
func (b *BlobStore) Has(ctx context.Context, kind Kind, hash string) (bool, error) {
	return b.storage.Exists(ctx, Key(kind, hash))
}

// Delete removes a blob. Missing blobs are not an error.
func (b *BlobStore) Delete(ctx context.Context, kind Kind, hash string) error {
	return b.storage.Delete(ctx, Key(kind, hash))
}
