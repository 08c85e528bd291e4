// Package merge implements the C9 merge engine: merge-base/ancestor
// queries, three-way tree and content merge with line-level conflict
// detection, squash, and cherry-pick-based rebase (spec.md §4.9).
package merge

import (
	"context"

	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/storage"
)

func loadCommit(ctx context.Context, store storage.ObjectStorer, hash plumbing.Hash) (*object.Commit, error) {
	o, err := store.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	return object.DecodeCommit(o, store.HashAlgo())
}

// LoadCommit decodes the commit stored at hash. Exported so callers outside
// this package (the merge queue's PR analysis) can resolve PR head/base
// hashes to their tree without duplicating the decode.
func LoadCommit(ctx context.Context, store storage.ObjectStorer, hash plumbing.Hash) (*object.Commit, error) {
	return loadCommit(ctx, store, hash)
}

// IsAncestor reports whether ancestor is reachable from descendant by
// following parent edges (spec.md §4.9: "BFS from b searching for a").
func IsAncestor(ctx context.Context, store storage.ObjectStorer, ancestor, descendant plumbing.Hash) (bool, error) {
	if ancestor.Equal(descendant) {
		return true, nil
	}
	queue := []plumbing.Hash{descendant}
	seen := map[string]bool{descendant.String(): true}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if h.Equal(ancestor) {
			return true, nil
		}
		c, err := loadCommit(ctx, store, h)
		if err != nil {
			return false, err
		}
		for _, p := range c.Parents {
			if !seen[p.String()] {
				seen[p.String()] = true
				queue = append(queue, p)
			}
		}
	}
	return false, nil
}

// MergeBase finds a lowest common ancestor of a and b via two-pointer BFS
// over parents: the ancestor set of a is gathered first, then b's ancestry
// is searched breadth-first for the first hash already in that set
// (spec.md §4.9, testable property 6: merge_base(a,b) = merge_base(b,a)).
func MergeBase(ctx context.Context, store storage.ObjectStorer, a, b plumbing.Hash) (plumbing.Hash, error) {
	ancestorsOfA, err := ancestorSet(ctx, store, a)
	if err != nil {
		return plumbing.Hash{}, err
	}

	queue := []plumbing.Hash{b}
	seen := map[string]bool{b.String(): true}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if ancestorsOfA[h.String()] {
			return h, nil
		}
		c, err := loadCommit(ctx, store, h)
		if err != nil {
			return plumbing.Hash{}, err
		}
		for _, p := range c.Parents {
			if !seen[p.String()] {
				seen[p.String()] = true
				queue = append(queue, p)
			}
		}
	}
	return plumbing.Hash{}, nil
}

func ancestorSet(ctx context.Context, store storage.ObjectStorer, start plumbing.Hash) (map[string]bool, error) {
	set := map[string]bool{start.String(): true}
	queue := []plumbing.Hash{start}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		c, err := loadCommit(ctx, store, h)
		if err != nil {
			return nil, err
		}
		for _, p := range c.Parents {
			if !set[p.String()] {
				set[p.String()] = true
				queue = append(queue, p)
			}
		}
	}
	return set, nil
}
