package repository

import (
	"fmt"

	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/refs"
)

// CreateBranch points a new branch at HEAD's current commit, failing if the
// branch already exists (spec.md §7's branch-create conflict variant).
func (r *Repository) CreateBranch(name string) error {
	head, err := r.Refs.GetHead()
	if err != nil {
		return err
	}
	target := refs.BranchRef(name)
	if _, err := r.Refs.Resolve(target); err == nil {
		return fmt.Errorf("%w: %w: branch %q", plumbing.ErrAlreadyExists, plumbing.ErrRefExists, name)
	}
	return r.Refs.Set(target, head.Target, plumbing.ZeroHash(r.Algo), refs.CommitAuthor{}, "branch: create "+name)
}

// DeleteBranch removes a branch, refusing to delete the one HEAD currently
// points at (spec.md §7 "branch-delete-of-current").
func (r *Repository) DeleteBranch(name string) error {
	target := refs.BranchRef(name)
	head, err := r.Refs.Get(refs.HEAD)
	if err == nil && head.Type() == refs.SymbolicReference && head.Target() == target {
		return fmt.Errorf("%w: cannot delete the branch HEAD currently points at: %s", plumbing.ErrConflict, name)
	}
	return r.Refs.Delete(target)
}

// ListBranches returns every branch's short name.
func (r *Repository) ListBranches() ([]string, error) {
	names, err := r.Refs.ListBranches()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.Short()
	}
	return out, nil
}
