package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wit-vcs/wit/chunk"
	"github.com/wit-vcs/wit/index"
	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/refs"
	"github.com/wit-vcs/wit/storage"
	"github.com/wit-vcs/wit/worktree"
)

// CheckoutMode is the closed enumeration spec.md §4.8 defines for checkout:
// safe refuses to clobber untracked or modified paths, force proceeds
// unconditionally.
type CheckoutMode int

const (
	CheckoutSafe CheckoutMode = iota
	CheckoutForce
)

// CheckoutConflictError reports the working-tree paths a safe checkout
// refused to touch.
type CheckoutConflictError struct {
	Paths []string
}

func (e *CheckoutConflictError) Error() string {
	return fmt.Sprintf("checkout: %d path(s) would be overwritten (use force)", len(e.Paths))
}

// Checkout resolves target (a branch name or a commit hash) to a commit,
// materializes its tree into the working directory, rebuilds the index
// from that tree, and repoints HEAD — symbolically at the branch if target
// named one, detached otherwise (spec.md §4.8).
func (r *Repository) Checkout(ctx context.Context, target string, mode CheckoutMode) error {
	hash, branch, err := r.resolveCheckoutTarget(target)
	if err != nil {
		return err
	}

	commit, err := r.loadCommit(ctx, hash)
	if err != nil {
		return err
	}

	if mode == CheckoutSafe {
		conflicts, err := r.unsafeToOverwrite(ctx)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &CheckoutConflictError{Paths: conflicts}
		}
	}

	newIndex := index.New(filepath.Join(r.GitDir, "index"), r.Store)
	wanted := map[string]bool{}
	if err := materializeTree(ctx, r.Store, r.WorkTree, "", commit.TreeHash, newIndex, wanted); err != nil {
		return err
	}
	if err := removeStalePaths(r.WorkTree, r.Index, wanted); err != nil {
		return err
	}
	if err := newIndex.Save(); err != nil {
		return err
	}
	r.Index = newIndex

	if branch != "" {
		return r.Refs.SetHeadSymbolic(branch)
	}
	return r.Refs.SetHeadDetached(hash)
}

// resolveCheckoutTarget accepts a branch short name or a raw hash, returning
// the commit hash and (if applicable) the branch name so HEAD can stay
// symbolic across the checkout.
func (r *Repository) resolveCheckoutTarget(target string) (plumbing.Hash, refs.Name, error) {
	branch := refs.BranchRef(target)
	if hash, err := r.Refs.Resolve(branch); err == nil {
		return hash, branch, nil
	}
	if hash, err := plumbing.NewHash(target); err == nil {
		return hash, "", nil
	}
	return plumbing.Hash{}, "", fmt.Errorf("%w: %q", plumbing.ErrRefNotFound, target)
}

// unsafeToOverwrite reports untracked or modified working-tree paths a safe
// checkout must refuse to clobber.
func (r *Repository) unsafeToOverwrite(ctx context.Context) ([]string, error) {
	entries, err := worktree.Walk(ctx, r.WorkTree, r.Index)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.Status == worktree.Modified || e.Status == worktree.Untracked {
			paths = append(paths, e.Path)
		}
	}
	return paths, nil
}

// materializeTree recursively writes treeHash's entries under
// workTree/prefix, recording a fresh stage-0 index entry for every file and
// marking every materialized path in wanted so removeStalePaths knows what
// to leave alone.
func materializeTree(ctx context.Context, store storage.ObjectStorer, workTree, prefix string, treeHash plumbing.Hash, ix *index.Index, wanted map[string]bool) error {
	o, err := store.Get(ctx, treeHash)
	if err != nil {
		return err
	}
	tree, err := object.DecodeTree(o, store.HashAlgo())
	if err != nil {
		return err
	}

	for _, e := range tree.Entries {
		relPath := e.Name
		if prefix != "" {
			relPath = prefix + "/" + e.Name
		}
		full := filepath.Join(workTree, filepath.FromSlash(relPath))

		if e.Mode == plumbing.ModeDirectory {
			if err := os.MkdirAll(full, 0o755); err != nil {
				return err
			}
			if err := materializeTree(ctx, store, workTree, relPath, e.Hash, ix, wanted); err != nil {
				return err
			}
			continue
		}

		content, _, err := loadBlobContent(ctx, store, e.Hash)
		if err != nil {
			return err
		}
		if err := writeWorkingFile(full, e.Mode, content); err != nil {
			return err
		}
		ix.AddConflict(relPath, index.StageNormal, e.Mode, e.Hash)
		wanted[relPath] = true
	}
	return nil
}

// loadBlobContent returns a blob's full content, transparently reassembling
// it through the chunker when the stored object is a chunk manifest rather
// than a whole blob.
func loadBlobContent(ctx context.Context, store storage.ObjectStorer, hash plumbing.Hash) ([]byte, int64, error) {
	content, err := chunk.ReadBlob(ctx, store, hash)
	if err != nil {
		return nil, 0, err
	}
	return content, int64(len(content)), nil
}

func writeWorkingFile(full string, mode plumbing.FileMode, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	if mode == plumbing.ModeSymlink {
		os.Remove(full)
		return os.Symlink(string(content), full)
	}
	perm := os.FileMode(0o644)
	if mode == plumbing.ModeExecutable {
		perm = 0o755
	}
	return os.WriteFile(full, content, perm)
}

// removeStalePaths deletes working-tree files that were tracked by the
// previous index but are absent from the newly checked-out tree.
func removeStalePaths(workTree string, oldIndex *index.Index, wanted map[string]bool) error {
	if oldIndex == nil {
		return nil
	}
	for _, e := range oldIndex.GetAll() {
		if e.Stage != index.StageNormal || wanted[e.Path] {
			continue
		}
		full := filepath.Join(workTree, filepath.FromSlash(e.Path))
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
