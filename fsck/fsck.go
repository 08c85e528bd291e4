// Package fsck implements the integrity scan spec.md §7 carves out as the
// one place a corrupt object is recorded as a finding rather than
// surfaced immediately as an error: "Corrupt objects are surfaced
// immediately — they are never silently skipped except in the fsck tool
// that is explicitly scanning for them."
package fsck

import (
	"context"
	"fmt"

	"github.com/wit-vcs/wit/chunk"
	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/codec"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/storage"
)

// Kind classifies one integrity issue.
type Kind int

const (
	// Missing is a hash referenced by a commit or tree that the store
	// does not contain (spec.md §3's "weak invariant" fsck exists to
	// detect).
	Missing Kind = iota
	// Corrupt is an object whose frame or payload cannot be decoded.
	Corrupt
	// HashMismatch is an object whose content hash doesn't match its key
	// (only checked during a full scan, per spec.md §7: "Verification is
	// optional per read but mandatory during fsck --full").
	HashMismatch
)

func (k Kind) String() string {
	switch k {
	case Missing:
		return "missing"
	case Corrupt:
		return "corrupt"
	case HashMismatch:
		return "hash_mismatch"
	default:
		return "unknown"
	}
}

// Issue is one integrity violation found during a scan.
type Issue struct {
	Hash   plumbing.Hash
	Kind   Kind
	Detail string
}

// Options controls a scan's depth.
type Options struct {
	// Full additionally recomputes and verifies every object's hash.
	Full bool
}

// Scan walks every object in store, decoding it and (per Full) verifying
// its hash, and checks that every hash a commit or tree references is
// itself present. It never aborts on the first problem; every violation
// found becomes an Issue in the returned slice.
func Scan(ctx context.Context, store storage.ObjectStorer, opts Options) ([]Issue, error) {
	iter, err := store.ListHashes(ctx)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var issues []Issue
	for {
		if err := ctx.Err(); err != nil {
			return issues, err
		}
		hash, ok := iter.Next()
		if !ok {
			break
		}
		issues = append(issues, scanOne(ctx, store, hash, opts)...)
	}
	return issues, nil
}

func scanOne(ctx context.Context, store storage.ObjectStorer, hash plumbing.Hash, opts Options) []Issue {
	typ, payload, err := store.GetRaw(ctx, hash)
	if err != nil {
		return []Issue{{Hash: hash, Kind: Corrupt, Detail: err.Error()}}
	}

	if opts.Full {
		recomputed := plumbing.HashObject(store.HashAlgo(), codec.Frame(typ, payload))
		if !recomputed.Equal(hash) {
			return []Issue{{Hash: hash, Kind: HashMismatch, Detail: fmt.Sprintf("stored under %s, recomputes to %s", hash, recomputed)}}
		}
	}

	switch typ {
	case plumbing.CommitObject:
		return checkCommit(ctx, store, hash, payload)
	case plumbing.TreeObject:
		return checkTree(ctx, store, hash, payload)
	case plumbing.BlobObject:
		return checkBlob(ctx, store, hash, payload)
	default:
		return nil
	}
}

// asObject wraps a raw (type, payload) pair as the in-memory EncodedObject
// the object package's Decode* functions expect, the same way
// object.NewBlob builds one for writers.
func asObject(algo plumbing.HashAlgo, typ plumbing.ObjectType, payload []byte) *plumbing.MemoryObject {
	o := plumbing.NewMemoryObject(algo)
	o.SetType(typ)
	o.SetSize(int64(len(payload)))
	w, _ := o.Writer()
	_, _ = w.Write(payload)
	_ = w.Close()
	return o
}

func checkCommit(ctx context.Context, store storage.ObjectStorer, hash plumbing.Hash, payload []byte) []Issue {
	mo := asObject(store.HashAlgo(), plumbing.CommitObject, payload)
	c, err := object.DecodeCommit(mo, store.HashAlgo())
	if err != nil {
		return []Issue{{Hash: hash, Kind: Corrupt, Detail: err.Error()}}
	}

	var issues []Issue
	issues = append(issues, checkExists(ctx, store, c.TreeHash, hash, "tree")...)
	for _, p := range c.Parents {
		issues = append(issues, checkExists(ctx, store, p, hash, "parent")...)
	}
	return issues
}

func checkTree(ctx context.Context, store storage.ObjectStorer, hash plumbing.Hash, payload []byte) []Issue {
	mo := asObject(store.HashAlgo(), plumbing.TreeObject, payload)
	tree, err := object.DecodeTree(mo, store.HashAlgo())
	if err != nil {
		return []Issue{{Hash: hash, Kind: Corrupt, Detail: err.Error()}}
	}

	var issues []Issue
	for _, e := range tree.Entries {
		issues = append(issues, checkExists(ctx, store, e.Hash, hash, "entry "+e.Name)...)
	}
	return issues
}

func checkBlob(ctx context.Context, store storage.ObjectStorer, hash plumbing.Hash, payload []byte) []Issue {
	mo := asObject(store.HashAlgo(), plumbing.BlobObject, payload)
	m, err := chunk.DecodeManifest(mo)
	if err != nil || len(m.Chunks) == 0 {
		return nil
	}
	var issues []Issue
	for _, ref := range m.Chunks {
		issues = append(issues, checkExists(ctx, store, ref.Hash, hash, "chunk")...)
	}
	return issues
}

func checkExists(ctx context.Context, store storage.ObjectStorer, target, referrer plumbing.Hash, role string) []Issue {
	if target.IsZero() {
		return nil
	}
	ok, err := store.Exists(ctx, target)
	if err != nil {
		return []Issue{{Hash: target, Kind: Corrupt, Detail: err.Error()}}
	}
	if !ok {
		return []Issue{{Hash: target, Kind: Missing, Detail: fmt.Sprintf("%s of %s", role, referrer)}}
	}
	return nil
}
