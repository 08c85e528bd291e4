package stash

import (
	"context"
	"os"
	"path/filepath"

	"github.com/wit-vcs/wit/branchstate"
	"github.com/wit-vcs/wit/chunk"
	"github.com/wit-vcs/wit/index"
	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/storage"
)

// resetTree recursively writes treeHash's entries under repoRoot/prefix and
// records a fresh stage-0 index entry for each, marking every written path
// in wanted. This mirrors repository.Checkout's materializeTree; it is
// duplicated here in miniature (no conflict handling, since a stash reset
// always targets the clean HEAD tree) rather than imported, to keep this
// package from depending on package repository.
func resetTree(ctx context.Context, store storage.ObjectStorer, repoRoot, prefix string, treeHash plumbing.Hash, ix *index.Index, wanted map[string]bool) error {
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
		full := filepath.Join(repoRoot, filepath.FromSlash(relPath))

		if e.Mode == plumbing.ModeDirectory {
			if err := os.MkdirAll(full, 0o755); err != nil {
				return err
			}
			if err := resetTree(ctx, store, repoRoot, relPath, e.Hash, ix, wanted); err != nil {
				return err
			}
			continue
		}

		content, err := chunk.ReadBlob(ctx, store, e.Hash)
		if err != nil {
			return err
		}
		if err := writeFile(full, e.Mode, content); err != nil {
			return err
		}
		ix.AddConflict(relPath, index.StageNormal, e.Mode, e.Hash)
		wanted[relPath] = true
	}
	return nil
}

func writeFile(full string, mode plumbing.FileMode, content []byte) error {
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

// removeUntracked deletes every captured path that resetTree didn't
// rewrite (i.e. paths that were untracked or deleted relative to HEAD),
// so a stash save leaves the working tree exactly at HEAD.
func removeUntracked(repoRoot string, captured []branchstate.FileSnapshot, wanted map[string]bool) error {
	for _, f := range captured {
		if wanted[f.Path] {
			continue
		}
		full := filepath.Join(repoRoot, filepath.FromSlash(f.Path))
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
