package repository

import (
	"context"
	"path/filepath"

	"github.com/wit-vcs/wit/index"
	"github.com/wit-vcs/wit/merge"
	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/refs"
)

// Merge merges target (a branch name or a raw commit hash, resolved the same
// way Checkout resolves its target) into the branch HEAD currently points
// at. On success it CAS-updates that branch the way Commit does
// (commit.go:143) and materializes the merged tree into the working
// directory; on conflict it writes each FileConflict's markers (or, for a
// modify/delete conflict with no marker text, whichever side survived) to
// the working tree and stages the index at stages 1/2/3 per conflicted path,
// leaving the branch ref untouched until the caller resolves and commits
// (spec.md §2 "C9 ... updates a ref atomically via C4", §4.9).
func (r *Repository) Merge(ctx context.Context, target string, opts merge.Options) (*merge.Result, error) {
	head, err := r.Refs.GetHead()
	if err != nil {
		return nil, err
	}
	branch, err := r.currentBranch()
	if err != nil {
		return nil, err
	}
	theirs, _, err := r.resolveCheckoutTarget(target)
	if err != nil {
		return nil, err
	}

	opts.Ours = head.Target
	opts.Theirs = theirs
	result, err := merge.Merge(ctx, r.Store, opts)
	if err != nil {
		return nil, err
	}

	if len(result.Conflicts) > 0 {
		if err := r.writeConflicts(ctx, result.Conflicts); err != nil {
			return nil, err
		}
		return result, nil
	}
	if result.AlreadyUpToDate {
		return result, nil
	}

	author := refs.CommitAuthor{Name: opts.Author.Name, Email: opts.Author.Email}
	if err := r.Refs.Set(branch, result.Commit, head.Target, author, "merge: "+target); err != nil {
		return nil, err
	}

	commit, err := r.loadCommit(ctx, result.Commit)
	if err != nil {
		return nil, err
	}
	newIndex := index.New(filepath.Join(r.GitDir, "index"), r.Store)
	wanted := map[string]bool{}
	if err := materializeTree(ctx, r.Store, r.WorkTree, "", commit.TreeHash, newIndex, wanted); err != nil {
		return nil, err
	}
	if err := removeStalePaths(r.WorkTree, r.Index, wanted); err != nil {
		return nil, err
	}
	if err := newIndex.Save(); err != nil {
		return nil, err
	}
	r.Index = newIndex

	return result, nil
}

// writeConflicts materializes every unresolved FileConflict onto the
// working tree and stages its present sides into the index at stages
// 1/2/3 (spec.md §4.9's "recorded in the index at stages 1/2/3"), leaving
// resolution to the caller.
func (r *Repository) writeConflicts(ctx context.Context, conflicts []merge.FileConflict) error {
	for _, c := range conflicts {
		if err := r.writeConflictWorkingFile(ctx, c); err != nil {
			return err
		}

		r.Index.Remove(c.Path)
		if c.BaseHash != nil {
			r.Index.AddConflict(c.Path, index.StageBase, c.BaseMode, *c.BaseHash)
		}
		if c.OursHash != nil {
			r.Index.AddConflict(c.Path, index.StageOurs, c.OursMode, *c.OursHash)
		}
		if c.TheirsHash != nil {
			r.Index.AddConflict(c.Path, index.StageTheirs, c.TheirsMode, *c.TheirsHash)
		}
	}
	return r.Index.Save()
}

// writeConflictWorkingFile writes the rendered conflict-marker text for a
// content conflict, or — for a modify/delete conflict, which carries no
// marker text — whichever side of ours/theirs survived, to path in the
// working tree.
func (r *Repository) writeConflictWorkingFile(ctx context.Context, c merge.FileConflict) error {
	full := filepath.Join(r.WorkTree, filepath.FromSlash(c.Path))
	if c.Markers != "" {
		return writeWorkingFile(full, plumbing.ModeRegular, []byte(c.Markers))
	}

	hash, mode := c.OursHash, c.OursMode
	if hash == nil {
		hash, mode = c.TheirsHash, c.TheirsMode
	}
	if hash == nil {
		return nil
	}
	content, _, err := loadBlobContent(ctx, r.Store, *hash)
	if err != nil {
		return err
	}
	return writeWorkingFile(full, mode, content)
}
