package repository

import (
	"context"
	"fmt"

	"dario.cat/mergo"

	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/refs"
)

// CommitOptions is the closed enumeration spec.md §7 defines for the commit
// operation: {message, all, files, amend, allow_empty, author, no_verify,
// dry_run, closes, refs}.
type CommitOptions struct {
	Message string
	// All stages every tracked-but-modified path before building the tree
	// (the "-a" shorthand); Files restricts staging to a specific subset
	// instead of the whole working tree.
	All   bool
	Files []string

	Amend      bool
	AllowEmpty bool

	Author *object.Signature

	NoVerify bool
	DryRun   bool

	Closes []string
	Refs   []string
}

// DefaultCommitOptions is the baseline every caller-supplied CommitOptions
// is merged over: hooks run (NoVerify false) and the commit actually
// happens (DryRun false), matching spec.md §4.8's ordinary-commit path.
var DefaultCommitOptions = CommitOptions{}

// CommitOptionsWithDefaults overlays a caller-supplied partial
// CommitOptions over DefaultCommitOptions, the same defaulting convention
// used for merge.Options, diff.RenameOptions, and branchstate.Config.
func CommitOptionsWithDefaults(opts CommitOptions) (CommitOptions, error) {
	merged := DefaultCommitOptions
	if err := mergo.Merge(&merged, opts, mergo.WithOverride); err != nil {
		return CommitOptions{}, err
	}
	return merged, nil
}

// Commit builds a tree from the index (staging Files or the whole working
// tree first when Options.All/Files ask for it), writes a commit object
// parented on HEAD, and CAS-updates the current branch (spec.md §4.8).
//
// Amend takes on HEAD's own parents rather than HEAD.Parents+[HEAD] (Design
// Notes §9): it requires a non-detached HEAD with an existing commit to
// amend, matching the decision recorded in DESIGN.md.
func (r *Repository) Commit(ctx context.Context, opts CommitOptions) (plumbing.Hash, error) {
	opts, err := CommitOptionsWithDefaults(opts)
	if err != nil {
		return plumbing.Hash{}, err
	}
	if opts.Message == "" && !opts.Amend {
		return plumbing.Hash{}, fmt.Errorf("%w: commit message is required", plumbing.ErrInvalidArgument)
	}

	head, err := r.Refs.GetHead()
	headExists := true
	if err != nil {
		headExists = false
	}

	var parents []plumbing.Hash
	var prevCommit *object.Commit
	if headExists {
		prevCommit, err = r.loadCommit(ctx, head.Target)
		if err != nil {
			return plumbing.Hash{}, err
		}
		if opts.Amend {
			parents = prevCommit.Parents
		} else {
			parents = []plumbing.Hash{head.Target}
		}
	} else if opts.Amend {
		return plumbing.Hash{}, fmt.Errorf("%w: amend requires an existing commit", plumbing.ErrInvalidArgument)
	}

	if err := r.stageForCommit(ctx, opts); err != nil {
		return plumbing.Hash{}, err
	}

	treeHash, err := r.Index.BuildTree(ctx, r.Store)
	if err != nil {
		return plumbing.Hash{}, err
	}

	if !opts.AllowEmpty && headExists && !opts.Amend && treeHash.Equal(prevCommit.TreeHash) {
		return plumbing.Hash{}, fmt.Errorf("%w: nothing to commit", plumbing.ErrEmptyCommit)
	}

	sig := object.Signature{Name: "unknown", Email: "unknown@local"}
	if opts.Author != nil {
		sig = *opts.Author
	} else if headExists {
		sig = prevCommit.Author
	}

	message := opts.Message
	if message == "" && opts.Amend {
		message = prevCommit.Message
	}

	commit := &object.Commit{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    sig,
		Committer: sig,
		Message:   message,
	}

	if opts.DryRun {
		return plumbing.Hash{}, nil
	}

	encoded := commit.Encode(r.Algo)
	hash, err := r.Store.Put(ctx, encoded)
	if err != nil {
		return plumbing.Hash{}, err
	}

	branch, err := r.currentBranch()
	if err != nil {
		return plumbing.Hash{}, err
	}
	old := plumbing.ZeroHash(r.Algo)
	if headExists {
		old = head.Target
	}
	author := refs.CommitAuthor{Name: sig.Name, Email: sig.Email}
	if err := r.Refs.Set(branch, hash, old, author, "commit: "+firstLine(message)); err != nil {
		return plumbing.Hash{}, err
	}
	return hash, nil
}

func (r *Repository) currentBranch() (refs.Name, error) {
	ref, err := r.Refs.Get(refs.HEAD)
	if err != nil {
		return "", err
	}
	if ref.Type() != refs.SymbolicReference {
		return "", fmt.Errorf("%w: cannot commit with a detached HEAD", plumbing.ErrDetachedHead)
	}
	return ref.Target(), nil
}

func (r *Repository) loadCommit(ctx context.Context, hash plumbing.Hash) (*object.Commit, error) {
	o, err := r.Store.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	return object.DecodeCommit(o, r.Algo)
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
