// Package storage defines the object-store contract (C2): persisting and
// loading immutable objects keyed by content hash. Concrete backends live
// in storage/memory (in-memory, used by the tests) and
// storage/filesystem (on-disk repositories).
package storage

import (
	"context"

	"github.com/wit-vcs/wit/plumbing"
)

// ObjectIter yields hashes lazily; callers must Close it when done, even on
// early return, per the Design Notes cursor-object convention.
type ObjectIter interface {
	Next() (plumbing.Hash, bool)
	Close()
}

// ObjectStorer is the object-store contract. Put is idempotent: writing an
// object that already exists performs no I/O and returns the same hash.
// Reads accept a context so long scans (gc, fsck) can be cancelled.
type ObjectStorer interface {
	// Put computes the object's hash, writes it if absent, and returns the
	// hash either way.
	Put(ctx context.Context, o plumbing.EncodedObject) (plumbing.Hash, error)
	// Get loads and decompresses the object at hash, verifying its frame.
	Get(ctx context.Context, hash plumbing.Hash) (plumbing.EncodedObject, error)
	// GetRaw returns the object's type and payload without wrapping it in
	// an EncodedObject, for callers that only need the bytes (diff, hash
	// verification).
	GetRaw(ctx context.Context, hash plumbing.Hash) (plumbing.ObjectType, []byte, error)
	// Exists reports presence without reading the full payload.
	Exists(ctx context.Context, hash plumbing.Hash) (bool, error)
	// ListHashes returns a cursor over every hash in the store.
	ListHashes(ctx context.Context) (ObjectIter, error)
	// Delete removes hash from the store. Used only by gc, never by normal
	// mutation paths (spec.md §3 Lifecycles: objects are deleted only by
	// explicit gc).
	Delete(ctx context.Context, hash plumbing.Hash) error
	// HashAlgo reports the algorithm this store's hashes are computed with.
	HashAlgo() plumbing.HashAlgo
}
