package stash

import (
	"context"

	"github.com/wit-vcs/wit/branchstate"
	"github.com/wit-vcs/wit/index"
)

// Apply restores the entry at index's files onto repoRoot and re-stages
// its previously staged paths, without removing the entry from the stack
// (spec.md §4.14: "apply(index) restores file contents and re-stages
// previously staged entries").
func Apply(ctx context.Context, s *Stack, repoRoot string, ix *index.Index, idx int) error {
	entry, err := s.Show(idx)
	if err != nil {
		return err
	}
	if err := branchstate.Materialize(repoRoot, &branchstate.Snapshot{Files: entry.Files}); err != nil {
		return err
	}
	for _, path := range entry.StagedPaths {
		if err := ix.Add(ctx, repoRoot, path); err != nil {
			return err
		}
	}
	return nil
}

// Pop applies the entry at idx then removes it from the stack (spec.md
// §4.14: "pop(index) = apply+drop").
func Pop(ctx context.Context, s *Stack, repoRoot string, ix *index.Index, idx int) error {
	if err := Apply(ctx, s, repoRoot, ix, idx); err != nil {
		return err
	}
	return s.Drop(idx)
}
