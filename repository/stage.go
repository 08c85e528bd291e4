package repository

import (
	"context"

	"github.com/wit-vcs/wit/worktree"
)

// stageForCommit applies the All/Files shorthand before building the tree:
// All restages every modified or deleted tracked path, Files restages a
// specific subset (spec.md §7's commit options).
func (r *Repository) stageForCommit(ctx context.Context, opts CommitOptions) error {
	if opts.All {
		entries, err := worktree.Walk(ctx, r.WorkTree, r.Index)
		if err != nil {
			return err
		}
		for _, e := range entries {
			switch e.Status {
			case worktree.Modified:
				if err := r.Index.Add(ctx, r.WorkTree, e.Path); err != nil {
					return err
				}
			case worktree.Deleted:
				r.Index.Remove(e.Path)
			}
		}
	}
	for _, path := range opts.Files {
		if err := r.Index.Add(ctx, r.WorkTree, path); err != nil {
			return err
		}
	}
	if err := r.Index.Save(); err != nil {
		return err
	}
	return nil
}
