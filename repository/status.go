package repository

import (
	"context"

	"github.com/wit-vcs/wit/worktree"
)

// Status wraps the working-tree walker against this repository's working
// directory and current index (spec.md §4.8 "status").
func (r *Repository) Status(ctx context.Context) ([]worktree.Entry, error) {
	return worktree.Walk(ctx, r.WorkTree, r.Index)
}
