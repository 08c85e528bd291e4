package merge

import (
	"context"
	"fmt"

	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/storage"
)

// CherryPick applies commit onto ontoTree: the three-way merge base is
// commit's own parent tree, "ours" is ontoTree, and "theirs" is commit's
// tree, so only the changes commit itself introduced are replayed
// (spec.md §4.10 "attempt to cherry-pick each of its commits ... using
// C9's three-way merge").
func CherryPick(ctx context.Context, store storage.ObjectStorer, ontoTree plumbing.Hash, commit *object.Commit) (plumbing.Hash, []FileConflict, error) {
	var parentTree plumbing.Hash
	if len(commit.Parents) > 0 {
		parentCommit, err := loadCommit(ctx, store, commit.Parents[0])
		if err != nil {
			return plumbing.Hash{}, nil, err
		}
		parentTree = parentCommit.TreeHash
	}
	return mergeTrees(ctx, store, parentTree, ontoTree, commit.TreeHash)
}

// RebaseCommits cherry-picks each of theirs' commits (in chronological,
// i.e. oldest-first order as supplied by the caller) onto ours, stopping
// at the first conflict (spec.md §4.9 Rebase: "cherry-pick each commit of
// theirs onto ours, stopping at the first conflict; aborts restore the
// original ref and working tree" — restoring the ref/working tree is the
// caller's responsibility since this function only ever writes new
// objects, never mutates a ref).
func RebaseCommits(ctx context.Context, store storage.ObjectStorer, ours plumbing.Hash, theirsCommits []*object.Commit, sig object.Signature) (plumbing.Hash, []FileConflict, error) {
	head := ours
	for _, c := range theirsCommits {
		headCommit, err := loadCommit(ctx, store, head)
		if err != nil {
			return plumbing.Hash{}, nil, err
		}
		treeHash, conflicts, err := CherryPick(ctx, store, headCommit.TreeHash, c)
		if err != nil {
			return plumbing.Hash{}, nil, err
		}
		if len(conflicts) > 0 {
			return plumbing.Hash{}, conflicts, nil
		}
		newCommit := &object.Commit{
			TreeHash: treeHash,
			Parents:  []plumbing.Hash{head},
			Author:   c.Author, Committer: sig,
			Message: c.Message,
		}
		hash, err := store.Put(ctx, newCommit.Encode(store.HashAlgo()))
		if err != nil {
			return plumbing.Hash{}, nil, err
		}
		head = hash
	}
	return head, nil, nil
}

// RebasePR cherry-picks a single PR's commits (head..base chain, oldest
// first) onto base, returning either the new head or a conflict (spec.md
// §4.10 "rebase_pr(head, base) -> new_head | conflict").
func RebasePR(ctx context.Context, store storage.ObjectStorer, head, base plumbing.Hash, sig object.Signature) (plumbing.Hash, []FileConflict, error) {
	commits, err := commitsSince(ctx, store, base, head)
	if err != nil {
		return plumbing.Hash{}, nil, err
	}
	if len(commits) == 0 {
		return plumbing.Hash{}, nil, fmt.Errorf("rebase: %s is not a descendant of %s", head, base)
	}
	return RebaseCommits(ctx, store, base, commits, sig)
}

// CommitsSince walks descendant back to (but excluding) ancestor, returning
// the chain oldest-first. Exported so callers outside this package (the
// merge queue's per-PR commit walk) don't need to reimplement the walk.
func CommitsSince(ctx context.Context, store storage.ObjectStorer, ancestor, descendant plumbing.Hash) ([]*object.Commit, error) {
	return commitsSince(ctx, store, ancestor, descendant)
}

func commitsSince(ctx context.Context, store storage.ObjectStorer, ancestor, descendant plumbing.Hash) ([]*object.Commit, error) {
	var chain []*object.Commit
	h := descendant
	for !h.Equal(ancestor) {
		c, err := loadCommit(ctx, store, h)
		if err != nil {
			return nil, err
		}
		chain = append(chain, c)
		if len(c.Parents) == 0 {
			break
		}
		h = c.Parents[0]
	}
	// Reverse to oldest-first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
